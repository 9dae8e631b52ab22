package internal

import (
	"sync/atomic"
)

// wordSize is the size of a reference in bytes, used for allocation
// accounting.
const wordSize = 8

// sizeClasses are the cell sizes, in bytes, of the small-object pools.
var sizeClasses = [...]int{2 * wordSize, 3 * wordSize, 4 * wordSize}

// objectCounter is the source of object IDs.
var objectCounter uintptr

func nextObject() uintptr {
	return atomic.AddUintptr(&objectCounter, 1)
}

// pool is a size class of small objects. Cells live in fixed pages that are
// never moved or released, so cell addresses are stable.
type pool struct {
	osize int
	pages [][]Object
	free  *Object
	nfree int
	nlive int
}

// heap is the allocator and collector state of a VM.
type heap struct {
	pools [len(sizeClasses)]pool
	// big is the list of live objects larger than the largest size class.
	big *Object
	// nbig counts objects in big.
	nbig int

	// allocd is the number of bytes allocated since the last collection.
	allocd int
	// live is the number of bytes held by allocated objects, including
	// external array buffers.
	live int

	enabled    bool
	collecting bool
	// pageCells is the number of cells in each new pool page.
	pageCells int

	// stack is the mark worklist.
	stack []*Object
	// preserved holds permanent roots.
	preserved map[*Object]int
	// finalizers maps objects to functions to call when they die.
	finalizers map[*Object][]*Object
	// weakrefs lists WeakRef objects so their targets can be cleared.
	weakrefs []*Object
	// dying holds objects whose finalizers run during the current cycle.
	dying []*Object

	stats GCStats
}

func (h *heap) init(cfg *Config) {
	for i := range h.pools {
		h.pools[i].osize = sizeClasses[i]
	}
	h.pageCells = cfg.PoolPageCells
	if h.pageCells <= 0 {
		h.pageCells = 1024
	}
	h.preserved = make(map[*Object]int)
	h.finalizers = make(map[*Object][]*Object)
}

// classFor returns the pool index for an allocation of n bytes, or -1 if the
// allocation is too large for any pool.
func classFor(n int) int {
	for i, sz := range sizeClasses {
		if n <= sz {
			return i
		}
	}
	return -1
}

// cell takes a cell from the pool, adding a page if the free list is empty.
func (p *pool) cell(pageCells int) *Object {
	if p.free == nil {
		page := make([]Object, pageCells)
		for i := len(page) - 1; i >= 0; i-- {
			page[i].freed = true
			page[i].next = p.free
			p.free = &page[i]
		}
		p.pages = append(p.pages, page)
		p.nfree += pageCells
	}
	o := p.free
	p.free = o.next
	p.nfree--
	p.nlive++
	return o
}

// release returns a cell to the pool's free list.
func (p *pool) release(o *Object) {
	*o = Object{freed: true, next: p.free}
	p.free = o
	p.nfree++
	p.nlive--
}

// alloc allocates an object of the given type charging nbytes to the heap.
// It may run a collection first, so every reference the caller still needs,
// including typ, must be rooted or otherwise reachable.
func (vm *VM) alloc(typ *Object, nbytes int, value interface{}) *Object {
	vm.Safepoint()
	h := &vm.heap
	if nbytes < wordSize {
		nbytes = wordSize
	}
	vm.reserve(nbytes)
	var o *Object
	if c := classFor(nbytes); c >= 0 {
		o = h.pools[c].cell(h.pageCells)
		o.class = int8(c)
		o.next = nil
		// Pool cells are charged the whole cell.
		nbytes = sizeClasses[c]
	} else {
		o = &Object{class: bigClass, next: h.big}
		h.big = o
		h.nbig++
	}
	o.typ = typ
	o.Value = value
	o.id = nextObject()
	o.nbytes = nbytes
	o.freed = false
	// Objects allocated while a cycle is in progress (by finalizers) survive
	// that cycle.
	o.marked = h.collecting
	h.allocd += nbytes
	h.live += nbytes
	h.stats.TotalAllocated += uint64(nbytes)
	h.stats.Allocations++
	return o
}

// reserve prepares the heap for an allocation of n bytes, collecting if the
// collection interval has passed and raising OutOfMemoryError if the heap
// ceiling cannot accommodate it.
func (vm *VM) reserve(n int) {
	h := &vm.heap
	if h.enabled && !h.collecting && vm.config.CollectInterval > 0 && h.allocd+n > vm.config.CollectInterval {
		vm.Collect()
	}
	if vm.config.MaxHeap > 0 && h.live+n > vm.config.MaxHeap {
		// With collection disabled the heap grows past the ceiling instead.
		if h.enabled && !h.collecting {
			vm.Collect()
			if h.live+n > vm.config.MaxHeap {
				vm.Raise(vm.memoryException)
			}
		}
	}
}

// allocPerm allocates an object that is never collected. Permanent objects
// must not hold references to collectable objects unless those are also
// rooted some other way.
func (vm *VM) allocPerm(typ *Object, value interface{}) *Object {
	return &Object{typ: typ, Value: value, id: nextObject(), class: permClass}
}

// externalAlloc charges n bytes of storage outside any object, such as an
// array buffer, to the heap.
func (vm *VM) externalAlloc(n int) {
	vm.Safepoint()
	vm.reserve(n)
	h := &vm.heap
	h.allocd += n
	h.live += n
	h.stats.TotalAllocated += uint64(n)
}

// externalFree releases n bytes charged with externalAlloc.
func (vm *VM) externalFree(n int) {
	vm.heap.live -= n
}
