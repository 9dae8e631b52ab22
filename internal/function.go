package internal

import (
	"fmt"
)

// Fptr is the calling convention of every callable entry point: the invoked
// function value, its arguments, and their count (len(args)). It returns one
// reference.
type Fptr func(vm *VM, f *Object, args []*Object) *Object

// Function is the payload of callable values.
type Function struct {
	Fptr Fptr
	// Env is the function's closure environment. For generic functions it is
	// the MethodTable.
	Env *Object
	// Linfo is the implementation record, if any.
	Linfo *Object
}

// LambdaInfo is the implementation record of one method, or of one
// specialization of a method to concrete argument types.
type LambdaInfo struct {
	// AST is the method body as supplied by the front end.
	AST *Object
	// SParams is a tuple alternating static parameter symbols and values.
	SParams *Object
	// SpecTypes is the argument type tuple of a specialization, or nil.
	SpecTypes *Object
	// Fptr is the compiled entry point, nil until compiled.
	Fptr Fptr
	// Native is a Go implementation supplied when the method was defined.
	Native Fptr
	// Specializations are the LambdaInfos specialized from this one.
	Specializations []*Object
	// Def is the unspecialized LambdaInfo this one was specialized from.
	Def    *Object
	Name   *Object
	Module *Object
}

// Compiler turns a LambdaInfo into a callable entry point. The dispatcher
// requests compilation once per specialization. Implementations may call
// back into the type system.
type Compiler interface {
	Compile(vm *VM, li *Object) (Fptr, error)
}

// NativeCompiler is the default Compiler. It supplies the Go implementation
// given when a method was defined, and fails for methods that have only an
// AST.
type NativeCompiler struct{}

// Compile returns the native entry point of li or of the LambdaInfo it was
// specialized from.
func (NativeCompiler) Compile(vm *VM, li *Object) (Fptr, error) {
	l := li.Value.(*LambdaInfo)
	for l != nil {
		if l.Native != nil {
			return l.Native, nil
		}
		if l.Def == nil {
			break
		}
		l = l.Def.Value.(*LambdaInfo)
	}
	return nil, fmt.Errorf("no code generator available for %s", vm.lambdaName(li))
}

func (vm *VM) lambdaName(li *Object) string {
	if n := li.Value.(*LambdaInfo).Name; n != nil {
		return vm.SymbolName(n)
	}
	return "anonymous function"
}

// NewLambdaInfo creates an implementation record from an AST and a tuple of
// static parameters.
func (vm *VM) NewLambdaInfo(ast, sparams *Object) *Object {
	if sparams == nil {
		sparams = vm.EmptyTuple
	}
	fr := vm.GCPush(&ast, &sparams)
	defer fr.Pop()
	return vm.alloc(vm.LambdaInfoType, 14*wordSize, &LambdaInfo{AST: ast, SParams: sparams, Module: vm.MainModule})
}

// NewFunction creates a callable value.
func (vm *VM) NewFunction(fptr Fptr, env, linfo *Object) *Object {
	fr := vm.GCPush(&env, &linfo)
	defer fr.Pop()
	return vm.alloc(vm.FunctionType, 4*wordSize, &Function{Fptr: fptr, Env: env, Linfo: linfo})
}

// NewBuiltin creates a named function implemented in Go.
func (vm *VM) NewBuiltin(name string, fptr Fptr) *Object {
	sl := vm.GCPushSlots(1)
	defer sl.Pop()
	sl.Slots[0] = vm.NewLambdaInfo(nil, nil)
	l := sl.Slots[0].Value.(*LambdaInfo)
	l.Name = vm.Symbol(name)
	l.Native = fptr
	l.Fptr = fptr
	return vm.NewFunction(fptr, nil, sl.Slots[0])
}

// FunctionOf returns the payload of a callable value, raising TypeError if f
// is not one.
func (vm *VM) FunctionOf(f *Object) *Function {
	fn, ok := f.Value.(*Function)
	if !ok {
		vm.RaiseTypeError("apply", "", vm.FunctionType, f)
	}
	return fn
}

// Apply calls f with args. The arguments are rooted for the duration of the
// call. Apply is a safepoint for interrupts and enforces the current task's
// depth limit.
func (vm *VM) Apply(f *Object, args ...*Object) *Object {
	fn := vm.FunctionOf(f)
	t := vm.cur
	t.depth++
	defer func() { t.depth-- }()
	if t.maxDepth > 0 && t.depth > t.maxDepth {
		return vm.Raise(vm.stackOverflowException)
	}
	vm.Safepoint()
	fr := vm.GCPush(&f)
	defer fr.Pop()
	af := vm.GCPushValues(args...)
	defer af.Pop()
	return fn.Fptr(vm, f, args)
}

// CheckArgs raises ArityError unless min <= len(args) <= max. A negative max
// means no upper limit.
func (vm *VM) CheckArgs(name string, args []*Object, min, max int) {
	if len(args) < min || max >= 0 && len(args) > max {
		vm.RaiseArityError(name, min, max, len(args))
	}
}

// StaticParameter returns the value bound to the static parameter named sym
// in a specialization, or nil.
func (vm *VM) StaticParameter(li, sym *Object) *Object {
	sp := TupleElems(li.Value.(*LambdaInfo).SParams)
	for i := 0; i+1 < len(sp); i += 2 {
		if sp[i] == sym {
			return sp[i+1]
		}
	}
	return nil
}
