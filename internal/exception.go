package internal

import (
	"fmt"
)

// Handler is one entry in a task's chain of protected regions. It records
// the state to restore when a condition is caught there.
type Handler struct {
	prev *Handler
	task *Task
	// gcstack is the root frame in effect when the region was entered.
	gcstack *GCFrame
	// sigatomic is the interrupt deferral depth at entry.
	sigatomic int
	// depth is the task's call depth at entry.
	depth int
	// left is set once the handler has been popped by Leave.
	left bool
}

// Prev returns the enclosing handler, or nil.
func (h *Handler) Prev() *Handler {
	return h.prev
}

// thrown is the panic value carrying a raised condition to the Try that
// installed its target handler.
type thrown struct {
	handler *Handler
}

// FatalError is the panic value of a condition raised with no handler
// installed, i.e. one that escaped the root task.
type FatalError struct {
	Exception *Object
	Message   string
}

func (e *FatalError) Error() string {
	return "jlrt: fatal: uncaught " + e.Message
}

// ConditionError wraps a condition for Go callers that want an error.
type ConditionError struct {
	// Type is the name of the condition's type.
	Type string
	// Message describes the condition.
	Message string
	// Value is the condition itself. It is not rooted.
	Value *Object
}

func (e *ConditionError) Error() string {
	return e.Message
}

// ConditionError converts a condition into a Go error.
func (vm *VM) ConditionError(exc *Object) error {
	if exc == nil {
		return nil
	}
	return &ConditionError{Type: vm.TypeString(exc.typ), Message: vm.ConditionMessage(exc), Value: exc}
}

// CurrentHandler returns the innermost handler of the current task, or nil
// if none is installed.
func (vm *VM) CurrentHandler() *Handler {
	return vm.cur.eh
}

// ExceptionInTransit returns the condition most recently raised.
func (vm *VM) ExceptionInTransit() *Object {
	return vm.exceptionInTransit
}

// enterHandler pushes a handler recording the current task's state.
func (vm *VM) enterHandler() *Handler {
	t := vm.cur
	h := &Handler{prev: t.eh, task: t, gcstack: t.gcstack, sigatomic: vm.deferSignal, depth: t.depth}
	t.eh = h
	return h
}

// restoreHandler reinstates the state recorded by h and pops it, discarding
// every root frame and handler pushed since it was entered.
func (vm *VM) restoreHandler(h *Handler) {
	t := h.task
	t.gcstack = h.gcstack
	t.eh = h.prev
	t.depth = h.depth
	vm.deferSignal = h.sigatomic
	vm.unwinding = false
	h.left = true
}

// Try calls f in a protected region. If f returns normally, Try returns its
// result and NoStop. If a condition is raised within f and not caught by an
// inner region, Try returns the condition and ExceptionStop, with the root
// frame stack and handler chain restored to their state on entry. Other
// panics, including task exits, pass through.
func (vm *VM) Try(f func() *Object) (result *Object, stop Stop) {
	result, stop = vm.try(f)
	if stop == ExceptionStop {
		// Interrupts held while unwinding go to the enclosing region.
		vm.Safepoint()
	}
	return result, stop
}

// try is Try without delivering interrupts after a catch. It serves regions
// with no enclosing handler to deliver them to.
func (vm *VM) try(f func() *Object) (result *Object, stop Stop) {
	h := vm.enterHandler()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		th, ok := r.(*thrown)
		if !ok || th.handler != h {
			panic(r)
		}
		vm.restoreHandler(h)
		result, stop = vm.exceptionInTransit, ExceptionStop
	}()
	result = f()
	if !h.left {
		h.task.eh = h.prev
		h.left = true
	}
	return result, NoStop
}

// Leave pops the n innermost handlers of the current task without unwinding,
// as when control leaves several protected regions at once. Conditions
// raised afterward go to the handler that encloses them all.
func (vm *VM) Leave(n int) {
	t := vm.cur
	for ; n > 0 && t.eh != nil; n-- {
		t.eh.left = true
		t.eh = t.eh.prev
	}
}

// Raise raises exc as a condition. Control transfers to the innermost
// protected region of the current task, so Raise never returns; its result
// type lets callers write return vm.Raise(exc). With no region installed,
// Raise panics with a *FatalError.
func (vm *VM) Raise(exc *Object) *Object {
	t := vm.cur
	vm.exceptionInTransit = exc
	if t.eh == nil {
		panic(&FatalError{Exception: exc, Message: fmt.Sprintf("%s: %s", vm.TypeString(exc.typ), vm.ConditionMessage(exc))})
	}
	// Interrupts stay pending until the handler is reached.
	vm.unwinding = true
	panic(&thrown{handler: t.eh})
}

// Rethrow raises the condition in transit again, propagating it to the next
// enclosing region.
func (vm *VM) Rethrow() *Object {
	return vm.Raise(vm.exceptionInTransit)
}

// RethrowOther raises exc in place of the condition in transit.
func (vm *VM) RethrowOther(exc *Object) *Object {
	return vm.Raise(exc)
}
