package internal

import (
	"sort"
	"time"

	"github.com/tliron/commonlog"
)

var gcLog = commonlog.GetLogger("jlrt.gc")

// Collect runs a full mark-sweep collection. It does nothing if collection
// is disabled or a collection is already in progress.
//
// Roots are the current and root tasks with their frame stacks, runnable
// tasks, preserved objects, the condition in transit, the binding store, and
// registered finalizer functions. Unreachable objects with finalizers have
// their finalizers run, once, and are reclaimed by the following collection.
func (vm *VM) Collect() {
	h := &vm.heap
	if !h.enabled || h.collecting {
		return
	}
	start := time.Now()
	h.collecting = true

	vm.markRoots()
	vm.drainMark()
	vm.clearWeakRefs()
	vm.runFinalizers()
	nobj, nbytes, tasks := vm.sweep()

	h.collecting = false
	h.allocd = 0
	pause := time.Since(start)
	h.stats.Collections++
	h.stats.LastFreed = nobj
	h.stats.LastFreedBytes = nbytes
	h.stats.TotalFreed += uint64(nobj)
	h.stats.PauseTotal += pause
	h.stats.LastCollection = start
	gcLog.Debugf("collection %d freed %d objects (%d bytes), %d bytes live, pause %v", h.stats.Collections, nobj, nbytes, h.live, pause)

	// Tasks that died while parked still have goroutines waiting for a
	// switch that will never come.
	for _, t := range tasks {
		vm.terminate(t)
	}
}

// mark adds o to the mark worklist if it is not yet marked.
func (vm *VM) mark(o *Object) {
	if o == nil || o.marked || o.freed || o.class == permClass {
		return
	}
	o.marked = true
	vm.heap.stack = append(vm.heap.stack, o)
}

// drainMark marks everything reachable from the worklist.
func (vm *VM) drainMark() {
	h := &vm.heap
	for len(h.stack) > 0 {
		o := h.stack[len(h.stack)-1]
		h.stack[len(h.stack)-1] = nil
		h.stack = h.stack[:len(h.stack)-1]
		vm.mark(o.typ)
		vm.scan(o)
	}
}

func (vm *VM) markRoots() {
	h := &vm.heap
	for o := range h.preserved {
		vm.mark(o)
	}
	for _, fs := range h.finalizers {
		for _, f := range fs {
			vm.mark(f)
		}
	}
	for _, u := range vm.unionCache {
		vm.mark(u)
	}
	for _, n := range vm.smallInts {
		vm.mark(n)
	}
	vm.mark(vm.root.obj)
	vm.mark(vm.cur.obj)
	// The current task's frames may be reachable only through the task
	// itself, which is marked above; mark them directly too in case the task
	// object is permanent.
	vm.markTask(vm.cur)
	vm.markTask(vm.root)
	for _, t := range vm.sched.queue {
		vm.mark(t.obj)
	}
	vm.mark(vm.exceptionInTransit)
	if vm.Bindings != nil {
		vm.Bindings.Roots(vm.mark)
	}
}

// markTask marks the references held by a task, including every slot of
// every frame on its root stack.
func (vm *VM) markTask(t *Task) {
	if t == nil {
		return
	}
	vm.mark(t.obj)
	vm.mark(t.Start)
	vm.mark(t.Result)
	vm.mark(t.Exception)
	if t.last != nil {
		vm.mark(t.last.obj)
	}
	for _, c := range t.consumers {
		vm.mark(c.obj)
	}
	for f := t.gcstack; f != nil; f = f.prev {
		for _, p := range f.refs {
			vm.mark(*p)
		}
		for _, x := range f.Slots {
			vm.mark(x)
		}
	}
}

// clearWeakRefs empties weak references whose targets are about to be
// reclaimed and forgets weak references that are themselves unreachable.
func (vm *VM) clearWeakRefs() {
	h := &vm.heap
	live := h.weakrefs[:0]
	for _, w := range h.weakrefs {
		if !w.marked {
			continue
		}
		r := w.Value.(*WeakRef)
		if r.Value != nil && !r.Value.marked && r.Value.class != permClass {
			r.Value = nil
		}
		live = append(live, w)
	}
	for i := len(live); i < len(h.weakrefs); i++ {
		h.weakrefs[i] = nil
	}
	h.weakrefs = live
}

// runFinalizers calls the finalizers of unreachable objects. Each object's
// finalizers are removed from the table before they run, so they run at most
// once. The objects and everything they reach survive this cycle, since a
// finalizer may store its argument somewhere reachable; they are reclaimed by
// the next collection unless resurrected. A finalizer that raises is logged
// and otherwise ignored.
func (vm *VM) runFinalizers() {
	h := &vm.heap
	h.dying = h.dying[:0]
	for o := range h.finalizers {
		if !o.marked && !o.freed {
			h.dying = append(h.dying, o)
		}
	}
	if len(h.dying) == 0 {
		return
	}
	sort.Slice(h.dying, func(i, j int) bool { return h.dying[i].id < h.dying[j].id })
	for _, o := range h.dying {
		vm.mark(o)
	}
	vm.drainMark()
	for _, o := range h.dying {
		fs := h.finalizers[o]
		delete(h.finalizers, o)
		for _, f := range fs {
			obj, fn := o, f
			if r, stop := vm.try(func() *Object { return vm.Apply(fn, obj) }); stop != NoStop {
				gcLog.Warningf("finalizer for object %d raised %s", obj.id, vm.ConditionMessage(r))
			}
		}
	}
	for i := range h.dying {
		h.dying[i] = nil
	}
	h.dying = h.dying[:0]
}

// sweep reclaims every unmarked object and clears marks on the rest. It
// returns the number of objects and bytes freed along with tasks whose
// goroutines must be terminated.
func (vm *VM) sweep() (nobj, nbytes int, tasks []*Task) {
	h := &vm.heap
	for i := range h.pools {
		p := &h.pools[i]
		for _, page := range p.pages {
			for j := range page {
				o := &page[j]
				if o.freed {
					continue
				}
				if o.marked {
					o.marked = false
					continue
				}
				nbytes += vm.reclaim(o, &tasks)
				p.release(o)
				nobj++
			}
		}
	}
	var prev *Object
	for o := h.big; o != nil; {
		next := o.next
		if o.marked {
			o.marked = false
			prev = o
			o = next
			continue
		}
		if prev == nil {
			h.big = next
		} else {
			prev.next = next
		}
		nbytes += vm.reclaim(o, &tasks)
		*o = Object{freed: true}
		h.nbig--
		nobj++
		o = next
	}
	h.live -= nbytes
	return nobj, nbytes, tasks
}

// reclaim releases resources owned by a dying object and returns the number
// of bytes it accounted for.
func (vm *VM) reclaim(o *Object, tasks *[]*Task) int {
	n := o.nbytes
	switch v := o.Value.(type) {
	case *Array:
		if v.external {
			n += v.extBytes
		}
	case *Task:
		if v.started && !v.State.Terminal() && v != vm.cur {
			*tasks = append(*tasks, v)
		}
	}
	return n
}

// Preserve makes o a permanent root until a matching call to Unpreserve.
// Calls nest.
func (vm *VM) Preserve(o *Object) *Object {
	if o != nil {
		vm.heap.preserved[o]++
	}
	return o
}

// Unpreserve undoes one call to Preserve.
func (vm *VM) Unpreserve(o *Object) {
	h := &vm.heap
	if n := h.preserved[o]; n > 1 {
		h.preserved[o] = n - 1
	} else {
		delete(h.preserved, o)
	}
}

// GCEnable enables or disables automatic and explicit collection and returns
// the previous setting. While disabled, allocation grows the heap instead of
// collecting, even past the configured ceiling.
func (vm *VM) GCEnable(on bool) bool {
	old := vm.heap.enabled
	vm.heap.enabled = on
	return old
}

// GCIsEnabled reports whether collection is enabled.
func (vm *VM) GCIsEnabled() bool {
	return vm.heap.enabled
}

// AddFinalizer registers f to be called with o as its only argument once o
// becomes unreachable. f itself is a root until it runs.
func (vm *VM) AddFinalizer(o, f *Object) {
	if o.class == permClass {
		// Permanent objects never die.
		return
	}
	if _, ok := f.Value.(*Function); !ok {
		vm.RaiseTypeError("finalizer", "", vm.FunctionType, f)
	}
	vm.heap.finalizers[o] = append(vm.heap.finalizers[o], f)
}

// NewWeakRef creates a weak reference to o. The reference does not keep o
// alive; once o is reclaimed, WeakRefValue returns nil.
func (vm *VM) NewWeakRef(o *Object) *Object {
	fr := vm.GCPush(&o)
	defer fr.Pop()
	w := vm.alloc(vm.WeakRefType, 2*wordSize, &WeakRef{Value: o})
	vm.heap.weakrefs = append(vm.heap.weakrefs, w)
	return w
}

// WeakRefValue returns the target of a weak reference, or nil if it has been
// collected.
func (vm *VM) WeakRefValue(w *Object) *Object {
	r, ok := w.Value.(*WeakRef)
	if !ok {
		return vm.RaiseTypeError("WeakRef", "", vm.WeakRefType, w)
	}
	return r.Value
}
