package internal

import "math"

// minInlineElems is the smallest capacity given to an inline array buffer.
const minInlineElems = 4

// Array is the payload of Array values. Elements occupy positions
// [offset, offset+length) of a buffer holding maxsize elements. The buffer
// starts inline, charged to the array object itself, and moves to an
// externally accounted buffer when it must grow.
type Array struct {
	// refs is the buffer of a reference array.
	refs []*Object
	// bits is the buffer of an inline bits array.
	bits []byte

	elsize  int
	offset  int
	length  int
	maxsize int
	dims    []int

	ptrarray bool
	external bool
	// extBytes is the size charged for an external buffer.
	extBytes int
}

// Len returns the logical number of elements.
func (a *Array) Len() int {
	return a.length
}

// Cap returns the number of elements the buffer can hold past the offset.
func (a *Array) Cap() int {
	return a.maxsize - a.offset
}

// External reports whether the buffer is externally allocated.
func (a *Array) External() bool {
	return a.external
}

// Dims returns the array's dimensions.
func (a *Array) Dims() []int {
	return a.dims
}

// PtrArray reports whether elements are stored as references.
func (a *Array) PtrArray() bool {
	return a.ptrarray
}

// ArrayOf returns the payload of an Array value, raising TypeError if v is not
// an array.
func (vm *VM) ArrayOf(v *Object) *Array {
	a, ok := v.Value.(*Array)
	if !ok {
		vm.RaiseTypeError("array", "", vm.ArrayType, v)
	}
	return a
}

// ArrayEltype returns the element type of an array type or value.
func (vm *VM) ArrayEltype(v *Object) *Object {
	t := v
	if v.typ != vm.DataTypeType {
		t = v.typ
	}
	return TupleElems(vm.DataTypeOf(t).Parameters)[0]
}

// elementLayout returns the storage size of elements of type el, with zero
// meaning elements are references.
func (vm *VM) elementLayout(el *Object) int {
	if el.typ != vm.DataTypeType {
		return 0
	}
	if dt := el.Value.(*DataType); isInline(dt) {
		return dt.Size
	}
	return 0
}

// NewArray creates an array of the given element type and dimensions. The
// elements of a reference array start unassigned; those of a bits array start
// zeroed.
func (vm *VM) NewArray(eltype *Object, dims ...int) *Object {
	if len(dims) == 0 {
		dims = []int{0}
	}
	n := 1
	for _, d := range dims {
		if d < 0 || d != 0 && n > math.MaxInt/d {
			return vm.Errorf("invalid array dimensions %v", dims)
		}
		n *= d
	}
	fr := vm.GCPush(&eltype)
	defer fr.Pop()
	sl := vm.GCPushSlots(1)
	defer sl.Pop()
	sl.Slots[0] = vm.ApplyType(vm.ArrayType, eltype, vm.BoxInt64(int64(len(dims))))
	return vm.newArray(sl.Slots[0], eltype, n, dims)
}

// NewArray1D creates an empty one-dimensional array with room for at least
// capacity elements.
func (vm *VM) NewArray1D(eltype *Object, capacity int) *Object {
	a := vm.NewArray(eltype, 0)
	if capacity > 0 {
		fr := vm.GCPush(&a)
		defer fr.Pop()
		vm.SizeHint(a, capacity)
	}
	return a
}

func (vm *VM) newArray(atype, eltype *Object, n int, dims []int) *Object {
	elsize := vm.elementLayout(eltype)
	a := &Array{
		elsize:   elsize,
		length:   n,
		dims:     append([]int(nil), dims...),
		ptrarray: elsize == 0,
	}
	esz := elsize
	if a.ptrarray {
		esz = wordSize
	}
	capacity := n
	if capacity < minInlineElems && len(dims) == 1 {
		capacity = minInlineElems
	}
	nbytes := 6 * wordSize
	if capacity*esz <= vm.config.ArrayInlineBytes {
		nbytes += capacity * esz
	} else {
		capacity = n
		a.external = true
		a.extBytes = capacity * esz
		vm.externalAlloc(a.extBytes)
	}
	a.maxsize = capacity
	if a.ptrarray {
		a.refs = make([]*Object, capacity)
	} else {
		a.bits = make([]byte, capacity*elsize)
	}
	return vm.alloc(atype, nbytes, a)
}

// checkIndex raises BoundsError if i is not a valid 0-based index of v.
func (vm *VM) checkIndex(v *Object, a *Array, i int) {
	if i < 0 || i >= a.length {
		vm.RaiseBoundsError(v, i+1)
	}
}

// ArrayRef returns element i (0-based) of an array. Inline elements are boxed
// anew. Reading an unassigned reference element raises UndefRefError.
func (vm *VM) ArrayRef(v *Object, i int) *Object {
	a := vm.ArrayOf(v)
	vm.checkIndex(v, a, i)
	if a.ptrarray {
		x := a.refs[a.offset+i]
		if x == nil {
			return vm.RaiseUndefRefError()
		}
		return x
	}
	p := (a.offset + i) * a.elsize
	return vm.loadInline(vm.ArrayEltype(v), a.bits[p:p+a.elsize])
}

// ArraySet stores x at index i (0-based) of an array.
func (vm *VM) ArraySet(v *Object, i int, x *Object) {
	a := vm.ArrayOf(v)
	vm.checkIndex(v, a, i)
	el := vm.ArrayEltype(v)
	if !vm.Isa(x, el) {
		vm.RaiseTypeError("arrayset", "", el, x)
		return
	}
	if a.ptrarray {
		a.refs[a.offset+i] = x
		return
	}
	p := (a.offset + i) * a.elsize
	switch d := x.Value.(type) {
	case []byte:
		copy(a.bits[p:p+a.elsize], d)
	case *Struct:
		copy(a.bits[p:p+a.elsize], d.Bits)
	}
}

// ArrayUnset clears reference element i (0-based).
func (vm *VM) ArrayUnset(v *Object, i int) {
	a := vm.ArrayOf(v)
	vm.checkIndex(v, a, i)
	if a.ptrarray {
		a.refs[a.offset+i] = nil
	}
}

// realloc moves the elements to a new external buffer with room for newcap
// elements, placing the first element at newoff.
func (vm *VM) realloc(v *Object, a *Array, newcap, newoff int) {
	esz := a.elsize
	if a.ptrarray {
		esz = wordSize
	}
	fr := vm.GCPush(&v)
	defer fr.Pop()
	nb := newcap * esz
	vm.externalAlloc(nb)
	if a.ptrarray {
		refs := make([]*Object, newcap)
		copy(refs[newoff:], a.refs[a.offset:a.offset+a.length])
		a.refs = refs
	} else {
		bits := make([]byte, newcap*a.elsize)
		copy(bits[newoff*a.elsize:], a.bits[a.offset*a.elsize:(a.offset+a.length)*a.elsize])
		a.bits = bits
	}
	if a.external {
		vm.externalFree(a.extBytes)
	}
	a.external = true
	a.extBytes = nb
	a.offset = newoff
	a.maxsize = newcap
}

func (vm *VM) check1D(v *Object, a *Array) {
	if len(a.dims) != 1 {
		vm.Errorf("cannot resize array with %d dimensions", len(a.dims))
	}
}

// resizable returns the payload of a one-dimensional array after checking
// that a resize by n elements is valid.
func (vm *VM) resizable(v *Object, op string, n int) *Array {
	a := vm.ArrayOf(v)
	vm.check1D(v, a)
	if n < 0 {
		vm.Errorf("%s: count must be non-negative, got %d", op, n)
	}
	return a
}

// GrowEnd adds inc elements at the end of a one-dimensional array.
func (vm *VM) GrowEnd(v *Object, inc int) {
	a := vm.resizable(v, "growend", inc)
	if a.offset+a.length+inc > a.maxsize {
		newcap := 2 * (a.length + inc)
		vm.realloc(v, a, newcap, 0)
	}
	if !a.ptrarray {
		for i := (a.offset + a.length) * a.elsize; i < (a.offset+a.length+inc)*a.elsize; i++ {
			a.bits[i] = 0
		}
	}
	a.length += inc
	a.dims[0] = a.length
}

// DelEnd removes dec elements from the end of a one-dimensional array.
func (vm *VM) DelEnd(v *Object, dec int) {
	a := vm.resizable(v, "delend", dec)
	if dec > a.length {
		vm.RaiseBoundsError(v, a.length-dec+1)
		return
	}
	if a.ptrarray {
		for i := a.offset + a.length - dec; i < a.offset+a.length; i++ {
			a.refs[i] = nil
		}
	}
	a.length -= dec
	a.dims[0] = a.length
}

// GrowBeg adds inc elements at the start of a one-dimensional array.
func (vm *VM) GrowBeg(v *Object, inc int) {
	a := vm.resizable(v, "growbeg", inc)
	if a.offset < inc {
		newcap := 2 * (a.length + inc)
		vm.realloc(v, a, newcap, newcap-a.length-(a.length+inc)/2)
	}
	a.offset -= inc
	a.length += inc
	a.dims[0] = a.length
	if !a.ptrarray {
		for i := a.offset * a.elsize; i < (a.offset+inc)*a.elsize; i++ {
			a.bits[i] = 0
		}
	}
}

// DelBeg removes dec elements from the start of a one-dimensional array.
func (vm *VM) DelBeg(v *Object, dec int) {
	a := vm.resizable(v, "delbeg", dec)
	if dec > a.length {
		vm.RaiseBoundsError(v, dec)
		return
	}
	if a.ptrarray {
		for i := a.offset; i < a.offset+dec; i++ {
			a.refs[i] = nil
		}
	}
	a.offset += dec
	a.length -= dec
	a.dims[0] = a.length
}

// SizeHint ensures room for n elements without further reallocation.
func (vm *VM) SizeHint(v *Object, n int) {
	a := vm.resizable(v, "sizehint", n)
	if n > a.maxsize-a.offset {
		vm.realloc(v, a, n, 0)
	}
}

// Push appends x to a one-dimensional array.
func (vm *VM) Push(v, x *Object) {
	if el := vm.ArrayEltype(v); !vm.Isa(x, el) {
		vm.RaiseTypeError("push", "", el, x)
		return
	}
	fr := vm.GCPush(&v, &x)
	defer fr.Pop()
	vm.GrowEnd(v, 1)
	a := v.Value.(*Array)
	vm.ArraySet(v, a.length-1, x)
}

// Pop removes and returns the last element of a one-dimensional array.
func (vm *VM) Pop(v *Object) *Object {
	a := vm.ArrayOf(v)
	if a.length == 0 {
		return vm.Errorf("array must be non-empty")
	}
	fr := vm.GCPush(&v)
	defer fr.Pop()
	x := vm.ArrayRef(v, a.length-1)
	vm.DelEnd(v, 1)
	return x
}

// PushFront prepends x to a one-dimensional array.
func (vm *VM) PushFront(v, x *Object) {
	if el := vm.ArrayEltype(v); !vm.Isa(x, el) {
		vm.RaiseTypeError("pushfront", "", el, x)
		return
	}
	fr := vm.GCPush(&v, &x)
	defer fr.Pop()
	vm.GrowBeg(v, 1)
	vm.ArraySet(v, 0, x)
}

// ArrayLen returns the number of elements of an array.
func (vm *VM) ArrayLen(v *Object) int {
	return vm.ArrayOf(v).length
}
