package internal

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/zephyrtronium/contains"
)

// TypeString formats a type the way it is written in source. Values that are
// not types are formatted with Show.
func (vm *VM) TypeString(t *Object) string {
	var b strings.Builder
	vm.writeType(&b, t)
	return b.String()
}

func (vm *VM) writeType(b *strings.Builder, t *Object) {
	if t == nil {
		b.WriteString("#undef")
		return
	}
	switch t.typ {
	case vm.DataTypeType:
		dt := t.Value.(*DataType)
		if dt.Name == nil {
			// Still bootstrapping.
			b.WriteString("DataType")
			return
		}
		b.WriteString(vm.SymbolName(dt.Name.Value.(*TypeName).Name))
		if params := TupleElems(dt.Parameters); len(params) > 0 {
			b.WriteByte('{')
			for i, p := range params {
				if i > 0 {
					b.WriteByte(',')
				}
				vm.writeType(b, p)
			}
			b.WriteByte('}')
		}
	case vm.UnionTypeType:
		b.WriteString("Union{")
		for i, m := range UnionMembers(t) {
			if i > 0 {
				b.WriteByte(',')
			}
			vm.writeType(b, m)
		}
		b.WriteByte('}')
	case vm.TypeVarType:
		v := t.Value.(*TypeVar)
		if v.Lb != vm.Bottom {
			vm.writeType(b, v.Lb)
			b.WriteString("<:")
		}
		b.WriteString(vm.SymbolName(v.Name))
		if v.Ub != vm.Any {
			b.WriteString("<:")
			vm.writeType(b, v.Ub)
		}
	case vm.TupleType:
		if !vm.IsType(t) {
			b.WriteString(vm.Show(t))
			return
		}
		b.WriteString("Tuple{")
		for i, e := range TupleElems(t) {
			if i > 0 {
				b.WriteByte(',')
			}
			vm.writeType(b, e)
		}
		b.WriteByte('}')
	default:
		b.WriteString(vm.Show(t))
	}
}

// Show formats a value for display.
func (vm *VM) Show(v *Object) string {
	var b strings.Builder
	vm.show(&b, v, contains.Set{})
	return b.String()
}

// show writes v to b. seen holds the IDs of mutable containers being written,
// so cycles are shown once.
func (vm *VM) show(b *strings.Builder, v *Object, seen contains.Set) {
	if v == nil {
		b.WriteString("#undef")
		return
	}
	if v.freed {
		b.WriteString(v.String())
		return
	}
	switch v.typ {
	case vm.DataTypeType, vm.UnionTypeType, vm.TypeVarType:
		vm.writeType(b, v)
		return
	case vm.Int64Type:
		b.WriteString(strconv.FormatInt(vm.UnboxInt64(v), 10))
		return
	case vm.Int32Type:
		b.WriteString(strconv.FormatInt(int64(vm.UnboxInt32(v)), 10))
		return
	case vm.UInt8Type:
		b.WriteString("0x")
		b.WriteString(hex.EncodeToString(BitsData(v)))
		return
	case vm.Float64Type:
		b.WriteString(strconv.FormatFloat(vm.UnboxFloat64(v), 'g', -1, 64))
		return
	case vm.BoolType:
		b.WriteString(strconv.FormatBool(vm.UnboxBool(v)))
		return
	case vm.NothingType:
		b.WriteString("nothing")
		return
	}
	switch x := v.Value.(type) {
	case *Symbol:
		b.WriteString(x.Name)
	case string:
		b.WriteString(strconv.Quote(x))
	case []byte:
		vm.writeType(b, v.typ)
		b.WriteString("(0x")
		b.WriteString(hex.EncodeToString(x))
		b.WriteByte(')')
	case []*Object:
		if vm.IsType(v) {
			vm.writeType(b, v)
			return
		}
		b.WriteByte('(')
		for i, e := range x {
			if i > 0 {
				b.WriteString(", ")
			}
			vm.show(b, e, seen)
		}
		if len(x) == 1 {
			b.WriteByte(',')
		}
		b.WriteByte(')')
	case *Array:
		vm.writeType(b, v.typ)
		if !seen.Add(v.UniqueID()) {
			b.WriteString("[...]")
			return
		}
		b.WriteByte('[')
		for i := 0; i < x.length; i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			if x.ptrarray {
				vm.show(b, x.refs[x.offset+i], seen)
			} else {
				vm.show(b, vm.ArrayRef(v, i), seen)
			}
		}
		b.WriteByte(']')
	case *Struct:
		dt := v.typ.Value.(*DataType)
		vm.writeType(b, v.typ)
		if dt.Mutable && !seen.Add(v.UniqueID()) {
			b.WriteString("(...)")
			return
		}
		b.WriteByte('(')
		for i, fd := range dt.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			if fd.IsPtr {
				vm.show(b, x.Refs[fd.ref], seen)
			} else {
				vm.show(b, vm.GetField(v, i), seen)
			}
		}
		b.WriteByte(')')
	case *TypeName:
		b.WriteString("typename(")
		b.WriteString(vm.SymbolName(x.Name))
		b.WriteByte(')')
	case *Function:
		vm.showFunction(b, x)
	case *LambdaInfo:
		b.WriteString("LambdaInfo for ")
		b.WriteString(vm.lambdaName(v))
		if x.SpecTypes != nil {
			vm.writeType(b, x.SpecTypes)
		}
	case *MethodTable:
		b.WriteString("MethodTable(")
		b.WriteString(vm.SymbolName(x.Name))
		b.WriteByte(')')
	case *Task:
		b.WriteString("Task(")
		b.WriteString(x.State.String())
		b.WriteString(", ")
		b.WriteString(x.ID.String())
		b.WriteByte(')')
	case *WeakRef:
		b.WriteString("WeakRef(")
		if x.Value == nil {
			b.WriteString("empty")
		} else {
			vm.show(b, x.Value, seen)
		}
		b.WriteByte(')')
	case *Expr:
		b.WriteString(":(")
		b.WriteString(vm.SymbolName(x.Head))
		for _, a := range x.Args {
			b.WriteByte(' ')
			vm.show(b, a, seen)
		}
		b.WriteByte(')')
	case *Module:
		b.WriteString(vm.SymbolName(x.Name))
	default:
		vm.writeType(b, v.typ)
		b.WriteString("()")
	}
}

func (vm *VM) showFunction(b *strings.Builder, f *Function) {
	if f.Env != nil {
		if mt, ok := f.Env.Value.(*MethodTable); ok {
			b.WriteString(vm.SymbolName(mt.Name))
			b.WriteString(" (generic function with ")
			b.WriteString(strconv.Itoa(len(mt.Defs)))
			b.WriteString(" method(s))")
			return
		}
	}
	if f.Linfo != nil {
		b.WriteString(vm.lambdaName(f.Linfo))
		return
	}
	b.WriteString("anonymous function")
}
