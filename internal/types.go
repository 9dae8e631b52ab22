package internal

// DataType is the payload of type objects describing concrete and abstract
// types. Every DataType object's own type is DataType.
type DataType struct {
	// Name is the TypeName anchoring this type's family.
	Name *Object
	// Super is the abstract supertype. Any is its own supertype.
	Super *Object
	// Parameters is the tuple of type parameters.
	Parameters *Object
	// Names are the field names, as symbols.
	Names []*Object
	// Types is the tuple of declared field types.
	Types *Object
	// Fields is the field layout, computed once at finalization.
	Fields []FieldDesc
	// Instance is the singleton instance of a concrete type with no fields.
	Instance *Object

	Size      int
	Alignment int
	UID       uint32

	Abstract    bool
	Mutable     bool
	PointerFree bool

	// nrefs is the number of reference fields.
	nrefs int
	// laidOut is set once Fields has been computed.
	laidOut bool
	// opaque types are builtin kinds whose instances have special payloads.
	opaque bool
}

// FieldDesc describes the storage of one field of a DataType.
type FieldDesc struct {
	// Offset is the byte offset of the field within the instance.
	Offset int
	// Size is the field's size in bytes.
	Size int
	// IsPtr is true if the field holds a reference.
	IsPtr bool
	// ref is the index into Struct.Refs of a reference field.
	ref int
}

// TypeName anchors a family of parametric types.
type TypeName struct {
	Name    *Object
	Module  *Object
	Primary *Object
	// cache maps parameter keys to instantiations of Primary.
	cache map[string]*Object
}

// Union is the payload of union types.
type Union struct {
	// Types is a tuple of member types.
	Types *Object
}

// TypeVar is the payload of type variables.
type TypeVar struct {
	Name *Object
	Lb   *Object
	Ub   *Object
}

func alignUp(n, a int) int {
	return (n + a - 1) / a * a
}

// NewTuple creates a tuple holding elems. The empty tuple is a singleton.
func (vm *VM) NewTuple(elems ...*Object) *Object {
	if len(elems) == 0 && vm.EmptyTuple != nil {
		return vm.EmptyTuple
	}
	fr := vm.GCPushValues(elems...)
	defer fr.Pop()
	v := make([]*Object, len(elems))
	copy(v, elems)
	return vm.alloc(vm.TupleType, (2+len(v))*wordSize, v)
}

// TupleElems returns the elements of a tuple, or nil if t is not a tuple.
// The returned slice must not be modified.
func TupleElems(t *Object) []*Object {
	v, _ := t.Value.([]*Object)
	return v
}

// IsTuple reports whether o is a tuple.
func (vm *VM) IsTuple(o *Object) bool {
	return o.typ == vm.TupleType
}

// TupleRef returns the i'th element of a tuple, raising BoundsError if i is
// out of range.
func (vm *VM) TupleRef(t *Object, i int) *Object {
	v, ok := t.Value.([]*Object)
	if !ok {
		return vm.RaiseTypeError("tupleref", "", vm.TupleType, t)
	}
	if i < 0 || i >= len(v) {
		return vm.RaiseBoundsError(t, i)
	}
	return v[i]
}

// NewTypeName creates the identity anchor for a type family. A nil module
// means the current module.
func (vm *VM) NewTypeName(name, module *Object) *Object {
	if module == nil {
		module = vm.CurrentModule
	}
	fr := vm.GCPush(&name, &module)
	defer fr.Pop()
	return vm.alloc(vm.TypeNameType, 5*wordSize, &TypeName{Name: name, Module: module, cache: make(map[string]*Object)})
}

// NewTypeVar creates a type variable with the given bounds. Nil bounds mean
// Union{} and Any respectively.
func (vm *VM) NewTypeVar(name, lb, ub *Object) *Object {
	if lb == nil {
		lb = vm.Bottom
	}
	if ub == nil {
		ub = vm.Any
	}
	fr := vm.GCPush(&name, &lb, &ub)
	defer fr.Pop()
	return vm.alloc(vm.TypeVarType, 4*wordSize, &TypeVar{Name: name, Lb: lb, Ub: ub})
}

// NewUnionType creates a union over the members of a tuple of types without
// simplifying it. Most callers want TypeUnion.
func (vm *VM) NewUnionType(types *Object) *Object {
	fr := vm.GCPush(&types)
	defer fr.Pop()
	return vm.alloc(vm.UnionTypeType, 2*wordSize, &Union{Types: types})
}

// UnionMembers returns the members of a union type.
func UnionMembers(u *Object) []*Object {
	return TupleElems(u.Value.(*Union).Types)
}

// NewAbstractType creates an abstract type. A nil super means Any.
func (vm *VM) NewAbstractType(name, super, params *Object) *Object {
	return vm.NewDataType(name, super, params, nil, nil, true, false)
}

// NewDataType creates a new type family and returns its primary type. If the
// parameters contain no type variables and the type is concrete, its field
// layout is computed immediately; otherwise layout happens as ApplyType
// instantiates it. A nil super means Any; nil params or ftypes mean none.
func (vm *VM) NewDataType(name, super, params *Object, fnames []*Object, ftypes *Object, abstract, mutable bool) *Object {
	fr := vm.GCPush(&name, &super, &params, &ftypes)
	defer fr.Pop()
	nf := vm.GCPushValues(fnames...)
	defer nf.Pop()
	if super == nil {
		super = vm.Any
	}
	if params == nil {
		params = vm.EmptyTuple
	}
	if ftypes == nil {
		ftypes = vm.EmptyTuple
	}
	if sdt, ok := super.Value.(*DataType); !ok || super.typ != vm.DataTypeType || !sdt.Abstract {
		return vm.Errorf("invalid subtyping in definition of %s", vm.SymbolName(name))
	}
	if len(fnames) != len(TupleElems(ftypes)) {
		return vm.Errorf("%s has %d field names but %d field types", vm.SymbolName(name), len(fnames), len(TupleElems(ftypes)))
	}
	for _, ft := range TupleElems(ftypes) {
		if !vm.IsType(ft) {
			vm.RaiseTypeError(vm.SymbolName(name), "field type", vm.Any, ft)
		}
	}
	sl := vm.GCPushSlots(2)
	defer sl.Pop()
	sl.Slots[0] = vm.NewTypeName(name, nil)
	dt := &DataType{
		Name:       sl.Slots[0],
		Super:      super,
		Parameters: params,
		Names:      append([]*Object(nil), fnames...),
		Types:      ftypes,
		Abstract:   abstract,
		Mutable:    mutable,
		UID:        vm.nextTypeUID(),
	}
	t := vm.alloc(vm.DataTypeType, (16+len(fnames))*wordSize, dt)
	sl.Slots[1] = t
	sl.Slots[0].Value.(*TypeName).Primary = t
	if !abstract && !vm.HasTypeVars(params) && !vm.HasTypeVars(ftypes) {
		vm.finalizeLayout(t)
	}
	return t
}

// NewBitsType creates a concrete immutable type whose instances are nbits of
// plain data.
func (vm *VM) NewBitsType(name, super, params *Object, nbits int) *Object {
	if nbits <= 0 || nbits%8 != 0 {
		return vm.Errorf("invalid number of bits in type %s", vm.SymbolName(name))
	}
	t := vm.NewDataType(name, super, params, nil, nil, true, false)
	dt := t.Value.(*DataType)
	dt.Abstract = false
	dt.Size = nbits / 8
	dt.Alignment = dt.Size
	if dt.Alignment > wordSize {
		dt.Alignment = wordSize
	}
	dt.PointerFree = true
	dt.laidOut = true
	return t
}

// newOpaqueType creates a builtin type whose instances carry a special
// payload rather than declared fields.
func (vm *VM) newOpaqueType(name string, super *Object, params *Object, mutable bool) *Object {
	t := vm.NewDataType(vm.Symbol(name), super, params, nil, nil, true, mutable)
	dt := t.Value.(*DataType)
	dt.Abstract = false
	dt.opaque = true
	dt.laidOut = true
	vm.bindCore(name, t)
	return vm.Preserve(t)
}

// finalizeLayout computes the field layout of a concrete type. Immutable
// pointer-free fields of known size are stored inline; everything else is a
// reference.
func (vm *VM) finalizeLayout(t *Object) {
	dt := t.Value.(*DataType)
	if dt.laidOut {
		return
	}
	ftypes := TupleElems(dt.Types)
	dt.Fields = make([]FieldDesc, len(ftypes))
	off, align, nrefs := 0, 1, 0
	for i, ft := range ftypes {
		sz, al, ptr := wordSize, wordSize, true
		if fdt, ok := ft.Value.(*DataType); ok && ft.typ == vm.DataTypeType && isInline(fdt) {
			sz, al, ptr = fdt.Size, fdt.Alignment, false
		}
		off = alignUp(off, al)
		dt.Fields[i] = FieldDesc{Offset: off, Size: sz, IsPtr: ptr}
		if ptr {
			dt.Fields[i].ref = nrefs
			nrefs++
		}
		off += sz
		if al > align {
			align = al
		}
	}
	dt.Size = alignUp(off, align)
	dt.Alignment = align
	dt.nrefs = nrefs
	dt.PointerFree = nrefs == 0
	dt.laidOut = true
	if len(ftypes) == 0 && !dt.Abstract && dt.Instance == nil {
		dt.Instance = vm.alloc(t, wordSize, nil)
	}
}

// isInline reports whether values of a type are stored inline in fields and
// arrays.
func isInline(dt *DataType) bool {
	return dt.laidOut && !dt.Abstract && !dt.Mutable && !dt.opaque && dt.PointerFree && dt.Size > 0
}

func (vm *VM) nextTypeUID() uint32 {
	vm.typeUID++
	return vm.typeUID
}

// IsType reports whether o can be used as a type: a DataType, union, type
// variable, or tuple of types.
func (vm *VM) IsType(o *Object) bool {
	if o == nil {
		return false
	}
	switch o.typ {
	case vm.DataTypeType, vm.UnionTypeType, vm.TypeVarType:
		return true
	case vm.TupleType:
		for _, e := range TupleElems(o) {
			if !vm.IsType(e) {
				return false
			}
		}
		return true
	}
	return false
}

// HasTypeVars reports whether t mentions any type variable.
func (vm *VM) HasTypeVars(t *Object) bool {
	switch t.typ {
	case vm.TypeVarType:
		return true
	case vm.TupleType:
		for _, e := range TupleElems(t) {
			if vm.HasTypeVars(e) {
				return true
			}
		}
	case vm.UnionTypeType:
		for _, e := range UnionMembers(t) {
			if vm.HasTypeVars(e) {
				return true
			}
		}
	case vm.DataTypeType:
		return vm.HasTypeVars(t.Value.(*DataType).Parameters)
	}
	return false
}

// IsLeafType reports whether t is a concrete type with no type variables,
// i.e. a type that values can have exactly.
func (vm *VM) IsLeafType(t *Object) bool {
	switch t.typ {
	case vm.DataTypeType:
		dt := t.Value.(*DataType)
		return !dt.Abstract && !vm.HasTypeVars(dt.Parameters)
	case vm.TupleType:
		for _, e := range TupleElems(t) {
			if vm.isVararg(e) || !vm.IsLeafType(e) {
				return false
			}
		}
		return true
	}
	return false
}

// isVararg reports whether t is an instantiation of Vararg.
func (vm *VM) isVararg(t *Object) bool {
	if t.typ != vm.DataTypeType {
		return false
	}
	return t.Value.(*DataType).Name == vm.varargName
}

// isTypeType reports whether t is an instantiation of Type.
func (vm *VM) isTypeType(t *Object) bool {
	if t.typ != vm.DataTypeType {
		return false
	}
	return t.Value.(*DataType).Name == vm.typeTypeName
}

// NewTypeType returns Type{t}, whose only instance is the type t itself.
func (vm *VM) NewTypeType(t *Object) *Object {
	return vm.ApplyType(vm.TypeType, t)
}

// typeTypeParam returns T given Type{T}.
func typeTypeParam(t *Object) *Object {
	return TupleElems(t.Value.(*DataType).Parameters)[0]
}

// argType returns the type dispatch uses for the argument v. Types passed as
// values dispatch as Type{v}.
func (vm *VM) argType(v *Object) *Object {
	if v.typ == vm.DataTypeType || v.typ == vm.UnionTypeType {
		return vm.NewTypeType(v)
	}
	return vm.Typeof(v)
}

// varargElem returns T given Vararg{T}.
func varargElem(t *Object) *Object {
	return TupleElems(t.Value.(*DataType).Parameters)[0]
}

// NewVararg returns Vararg{T}, which as the final element of a tuple type
// matches any number of trailing elements of type T.
func (vm *VM) NewVararg(t *Object) *Object {
	return vm.ApplyType(vm.VarargType, t)
}

// DataTypeOf returns the payload of a DataType object, raising TypeError if t
// is not one.
func (vm *VM) DataTypeOf(t *Object) *DataType {
	if t.typ != vm.DataTypeType {
		vm.RaiseTypeError("DataType", "", vm.DataTypeType, t)
	}
	return t.Value.(*DataType)
}

// Supertype returns the abstract supertype of a DataType.
func (vm *VM) Supertype(t *Object) *Object {
	return vm.DataTypeOf(t).Super
}

// TypeParameters returns the parameters of a DataType.
func (vm *VM) TypeParameters(t *Object) []*Object {
	return TupleElems(vm.DataTypeOf(t).Parameters)
}

// Typeof returns the type of a value. The type of a tuple is the tuple of its
// elements' types, which is allocated on demand.
func (vm *VM) Typeof(v *Object) *Object {
	if v.typ != vm.TupleType {
		return v.typ
	}
	elems := TupleElems(v)
	if len(elems) == 0 {
		return vm.EmptyTuple
	}
	fr := vm.GCPush(&v)
	defer fr.Pop()
	sl := vm.GCPushSlots(len(elems))
	defer sl.Pop()
	for i, e := range elems {
		sl.Slots[i] = vm.Typeof(e)
	}
	return vm.NewTuple(sl.Slots...)
}

// Isa reports whether v is an instance of t.
func (vm *VM) Isa(v, t *Object) bool {
	if v.typ == t || t == vm.Any {
		return true
	}
	if vm.isTypeType(t) {
		if v.typ != vm.DataTypeType && v.typ != vm.UnionTypeType {
			return false
		}
		p := typeTypeParam(t)
		if p.typ == vm.TypeVarType {
			return vm.withinBounds(v, p)
		}
		return vm.TypesEqual(v, p)
	}
	if v.typ != vm.TupleType {
		return vm.Subtype(v.typ, t)
	}
	fr := vm.GCPush(&t)
	defer fr.Pop()
	return vm.Subtype(vm.Typeof(v), t)
}
