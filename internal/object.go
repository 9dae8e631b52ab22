package internal

import (
	"fmt"
)

// Object is a heap-allocated runtime value. Every Object carries a reference
// to its type, which is itself an Object whose Value is a *DataType.
//
// Always use an allocating constructor such as NewTuple, NewStruct, or
// BoxInt64 to obtain new objects. Objects are never moved once allocated, so
// pointers to them remain valid for as long as they are reachable.
type Object struct {
	// typ is the object's type. It never changes after allocation.
	typ *Object
	// Value is the object's kind-specific payload.
	Value interface{}

	// id is the object's unique ID. Cells reused by the allocator receive a
	// fresh ID, so IDs are never shared between distinct lifetimes.
	id uintptr
	// nbytes is the size charged to the heap for this object.
	nbytes int
	// class is the pool index holding the object, or one of bigClass and
	// permClass.
	class int8
	// marked is set during the mark phase of a collection.
	marked bool
	// freed is set on cells that are on a free list.
	freed bool
	// next links free cells within a pool and big objects in the big list.
	next *Object
}

const (
	bigClass  int8 = -1
	permClass int8 = -2
)

// Type returns the object's type. For tuples this is the Tuple type; use
// VM.Typeof for the full tuple-of-element-types.
func (o *Object) Type() *Object {
	return o.typ
}

// UniqueID returns the object's unique ID.
func (o *Object) UniqueID() uintptr {
	return o.id
}

// IsFreed reports whether the object's cell has been reclaimed. A program
// that observes a freed object has violated the rooting discipline.
func (o *Object) IsFreed() bool {
	return o.freed
}

// String returns a short description of the object, mostly for debugging.
func (o *Object) String() string {
	if o == nil {
		return "#null"
	}
	if o.freed {
		return fmt.Sprintf("#freed@%d", o.id)
	}
	return fmt.Sprintf("%T@%d", o.Value, o.id)
}

// Struct is the payload of instances of user-defined composite types.
// Reference fields live in Refs, inline bits fields in Bits, placed according
// to the owning DataType's field layout.
type Struct struct {
	Refs []*Object
	Bits []byte
}

// WeakRef is the payload of WeakRef objects. Value is nil once the target has
// been reclaimed.
type WeakRef struct {
	Value *Object
}

// Expr is the payload of AST expression nodes.
type Expr struct {
	Head *Object
	Args []*Object
}

// Module is the payload of Module objects. Bindings live in the VM's
// BindingStore.
type Module struct {
	Name   *Object
	Parent *Object
}

// words returns the number of machine words needed to hold n bytes.
func words(n int) int {
	return (n + wordSize - 1) / wordSize
}

// scan calls mark for every reference held by o's payload.
func (vm *VM) scan(o *Object) {
	switch v := o.Value.(type) {
	case *DataType:
		vm.mark(v.Name)
		vm.mark(v.Super)
		vm.mark(v.Parameters)
		vm.mark(v.Types)
		vm.mark(v.Instance)
		for _, n := range v.Names {
			vm.mark(n)
		}
	case *TypeName:
		vm.mark(v.Name)
		vm.mark(v.Module)
		vm.mark(v.Primary)
		for _, t := range v.cache {
			vm.mark(t)
		}
	case []*Object:
		for _, x := range v {
			vm.mark(x)
		}
	case *Union:
		vm.mark(v.Types)
	case *TypeVar:
		vm.mark(v.Name)
		vm.mark(v.Lb)
		vm.mark(v.Ub)
	case *Struct:
		if dt, ok := o.typ.Value.(*DataType); ok && dt.PointerFree {
			return
		}
		for _, x := range v.Refs {
			vm.mark(x)
		}
	case *Array:
		if v.ptrarray {
			for _, x := range v.refs[v.offset : v.offset+v.length] {
				vm.mark(x)
			}
		}
	case *LambdaInfo:
		vm.mark(v.AST)
		vm.mark(v.SParams)
		vm.mark(v.SpecTypes)
		vm.mark(v.Def)
		vm.mark(v.Name)
		vm.mark(v.Module)
		for _, s := range v.Specializations {
			vm.mark(s)
		}
	case *Function:
		vm.mark(v.Env)
		vm.mark(v.Linfo)
	case *MethodTable:
		vm.mark(v.Name)
		vm.mark(v.Module)
		for _, m := range v.Defs {
			vm.mark(m.Sig)
			vm.mark(m.TVars)
			vm.mark(m.Func)
		}
		for _, f := range v.cache {
			vm.mark(f)
		}
	case *Task:
		vm.markTask(v)
	case *Expr:
		vm.mark(v.Head)
		for _, x := range v.Args {
			vm.mark(x)
		}
	case *Module:
		vm.mark(v.Name)
		vm.mark(v.Parent)
	case *WeakRef, *Symbol, []byte, string, nil:
		// no references
	default:
		panic(fmt.Sprintf("jlrt: unknown payload %T in object %d", v, o.id))
	}
}
