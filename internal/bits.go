package internal

import (
	"encoding/binary"
	"math"
)

// smallIntMin and smallIntMax bound the cache of boxed Int64 values.
const (
	smallIntMin = -512
	smallIntMax = 1023
)

// NewBits boxes a copy of data as a value of the bits type t.
func (vm *VM) NewBits(t *Object, data []byte) *Object {
	dt := vm.DataTypeOf(t)
	if !dt.PointerFree || dt.Abstract || len(TupleElems(dt.Types)) > 0 || dt.Size != len(data) {
		return vm.Errorf("cannot box %d bytes as %s", len(data), vm.TypeString(t))
	}
	fr := vm.GCPush(&t)
	defer fr.Pop()
	b := make([]byte, len(data))
	copy(b, data)
	return vm.alloc(t, wordSize+len(b), b)
}

// BitsData returns the contents of a bits value, or nil if v is not one. The
// returned slice must not be modified.
func BitsData(v *Object) []byte {
	b, _ := v.Value.([]byte)
	return b
}

// BoxInt64 returns an Int64 value. Small values are cached.
func (vm *VM) BoxInt64(x int64) *Object {
	if x >= smallIntMin && x <= smallIntMax && vm.smallInts != nil {
		return vm.smallInts[x-smallIntMin]
	}
	return vm.boxInt64(x)
}

func (vm *VM) boxInt64(x int64) *Object {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(x))
	return vm.alloc(vm.Int64Type, 2*wordSize, b[:])
}

// UnboxInt64 returns the value of an Int64, raising TypeError otherwise.
func (vm *VM) UnboxInt64(v *Object) int64 {
	if v.typ != vm.Int64Type {
		vm.RaiseTypeError("unbox", "", vm.Int64Type, v)
	}
	return int64(binary.LittleEndian.Uint64(v.Value.([]byte)))
}

// BoxInt32 returns an Int32 value.
func (vm *VM) BoxInt32(x int32) *Object {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(x))
	return vm.alloc(vm.Int32Type, 2*wordSize, b[:])
}

// UnboxInt32 returns the value of an Int32, raising TypeError otherwise.
func (vm *VM) UnboxInt32(v *Object) int32 {
	if v.typ != vm.Int32Type {
		vm.RaiseTypeError("unbox", "", vm.Int32Type, v)
	}
	return int32(binary.LittleEndian.Uint32(v.Value.([]byte)))
}

// BoxUInt8 returns a UInt8 value.
func (vm *VM) BoxUInt8(x uint8) *Object {
	return vm.alloc(vm.UInt8Type, 2*wordSize, []byte{x})
}

// UnboxUInt8 returns the value of a UInt8, raising TypeError otherwise.
func (vm *VM) UnboxUInt8(v *Object) uint8 {
	if v.typ != vm.UInt8Type {
		vm.RaiseTypeError("unbox", "", vm.UInt8Type, v)
	}
	return v.Value.([]byte)[0]
}

// BoxFloat64 returns a Float64 value.
func (vm *VM) BoxFloat64(x float64) *Object {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(x))
	return vm.alloc(vm.Float64Type, 2*wordSize, b[:])
}

// UnboxFloat64 returns the value of a Float64, raising TypeError otherwise.
func (vm *VM) UnboxFloat64(v *Object) float64 {
	if v.typ != vm.Float64Type {
		vm.RaiseTypeError("unbox", "", vm.Float64Type, v)
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(v.Value.([]byte)))
}

// BoxBool returns the canonical true or false.
func (vm *VM) BoxBool(x bool) *Object {
	if x {
		return vm.True
	}
	return vm.False
}

// UnboxBool returns the value of a Bool, raising TypeError otherwise.
func (vm *VM) UnboxBool(v *Object) bool {
	if v.typ != vm.BoolType {
		vm.RaiseTypeError("unbox", "", vm.BoolType, v)
	}
	return v.Value.([]byte)[0] != 0
}

// NewString creates a String value.
func (vm *VM) NewString(s string) *Object {
	return vm.alloc(vm.StringType, (2+words(len(s)))*wordSize, s)
}

// AsString returns the contents of a String value, raising TypeError if v is
// not one.
func (vm *VM) AsString(v *Object) string {
	s, ok := v.Value.(string)
	if !ok {
		vm.RaiseTypeError("string", "", vm.StringType, v)
	}
	return s
}

// NewStruct creates an instance of a concrete composite type. Missing
// trailing fields are left unassigned; nil values also leave reference
// fields unassigned. Values must match the declared field types.
func (vm *VM) NewStruct(t *Object, fields ...*Object) *Object {
	fr := vm.GCPush(&t)
	defer fr.Pop()
	ff := vm.GCPushValues(fields...)
	defer ff.Pop()
	dt := vm.DataTypeOf(t)
	if dt.Abstract || dt.opaque || !dt.laidOut {
		return vm.Errorf("cannot instantiate type %s", vm.TypeString(t))
	}
	if len(fields) > len(dt.Fields) {
		return vm.RaiseArityError(vm.TypeString(t), len(dt.Fields), len(dt.Fields), len(fields))
	}
	if len(dt.Fields) == 0 {
		return dt.Instance
	}
	if len(fields) < len(dt.Fields) {
		for _, fd := range dt.Fields[len(fields):] {
			if !fd.IsPtr {
				return vm.RaiseArityError(vm.TypeString(t), len(dt.Fields), len(dt.Fields), len(fields))
			}
		}
	}
	s := &Struct{Bits: make([]byte, dt.Size)}
	if dt.nrefs > 0 {
		s.Refs = make([]*Object, dt.nrefs)
	}
	ftypes := TupleElems(dt.Types)
	for i, x := range fields {
		if x == nil {
			if !dt.Fields[i].IsPtr {
				return vm.RaiseUndefRefError()
			}
			continue
		}
		if !vm.Isa(x, ftypes[i]) {
			vm.RaiseTypeError(vm.TypeString(t), vm.SymbolName(dt.Names[i]), ftypes[i], x)
		}
		storeField(s, dt.Fields[i], x)
	}
	return vm.alloc(t, (1+words(dt.Size)+dt.nrefs)*wordSize, s)
}

// storeField writes x into field fd of s. x must already be known to have
// the field's type.
func storeField(s *Struct, fd FieldDesc, x *Object) {
	if fd.IsPtr {
		s.Refs[fd.ref] = x
		return
	}
	switch v := x.Value.(type) {
	case []byte:
		copy(s.Bits[fd.Offset:fd.Offset+fd.Size], v)
	case *Struct:
		copy(s.Bits[fd.Offset:fd.Offset+fd.Size], v.Bits)
	}
}

// FieldIndex returns the index of the field named by the symbol name, or -1.
func (vm *VM) FieldIndex(t, name *Object) int {
	for i, n := range vm.DataTypeOf(t).Names {
		if n == name {
			return i
		}
	}
	return -1
}

// GetField returns field i of a composite value. Inline fields are boxed
// anew. Reading an unassigned reference field raises UndefRefError.
func (vm *VM) GetField(v *Object, i int) *Object {
	dt := vm.DataTypeOf(v.typ)
	s, ok := v.Value.(*Struct)
	if !ok || i < 0 || i >= len(dt.Fields) {
		return vm.RaiseBoundsError(v, i+1)
	}
	fd := dt.Fields[i]
	if fd.IsPtr {
		x := s.Refs[fd.ref]
		if x == nil {
			return vm.RaiseUndefRefError()
		}
		return x
	}
	fr := vm.GCPush(&v)
	defer fr.Pop()
	return vm.loadInline(TupleElems(dt.Types)[i], s.Bits[fd.Offset:fd.Offset+fd.Size])
}

// loadInline boxes a copy of inline storage as a value of type t, which is
// either a bits type or an immutable pointer-free composite.
func (vm *VM) loadInline(t *Object, data []byte) *Object {
	dt := t.Value.(*DataType)
	if len(TupleElems(dt.Types)) == 0 {
		return vm.NewBits(t, data)
	}
	b := make([]byte, len(data))
	copy(b, data)
	fr := vm.GCPush(&t)
	defer fr.Pop()
	return vm.alloc(t, (1+words(dt.Size))*wordSize, &Struct{Bits: b})
}

// SetField assigns field i of a mutable composite value.
func (vm *VM) SetField(v *Object, i int, x *Object) {
	dt := vm.DataTypeOf(v.typ)
	s, ok := v.Value.(*Struct)
	if !ok || i < 0 || i >= len(dt.Fields) {
		vm.RaiseBoundsError(v, i+1)
		return
	}
	if !dt.Mutable {
		vm.RaiseTypeError("setfield", "immutable type", v.typ, v)
		return
	}
	ft := TupleElems(dt.Types)[i]
	if !vm.Isa(x, ft) {
		vm.RaiseTypeError("setfield", vm.SymbolName(dt.Names[i]), ft, x)
		return
	}
	storeField(s, dt.Fields[i], x)
}

// NFields returns the number of fields of a value's type.
func (vm *VM) NFields(v *Object) int {
	if dt, ok := v.typ.Value.(*DataType); ok {
		return len(dt.Fields)
	}
	return 0
}
