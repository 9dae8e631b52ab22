package internal

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// initConditions creates the builtin condition types and the preallocated
// conditions that must be raisable without allocating.
func (vm *VM) initConditions() {
	vm.ExceptionType = vm.Preserve(vm.NewAbstractType(vm.Symbol("Exception"), vm.Any, nil))
	vm.ErrorExceptionType = vm.conditionType("ErrorException", []string{"msg"}, vm.StringType)
	vm.TypeErrorType = vm.conditionType("TypeError", []string{"func", "context", "expected", "got"}, vm.SymbolType, vm.StringType, vm.Any, vm.Any)
	vm.MethodErrorType = vm.conditionType("MethodError", []string{"f", "args"}, vm.Any, vm.Any)
	vm.AmbiguousMethodErrorType = vm.conditionType("AmbiguousMethodError", []string{"f", "args", "candidates"}, vm.Any, vm.Any, vm.Any)
	vm.ArityErrorType = vm.conditionType("ArityError", []string{"func", "min", "max", "got"}, vm.StringType, vm.Int64Type, vm.Int64Type, vm.Int64Type)
	vm.BoundsErrorType = vm.conditionType("BoundsError", []string{"a", "i"}, vm.Any, vm.Int64Type)
	vm.UndefRefErrorType = vm.conditionType("UndefRefError", nil)
	vm.UndefVarErrorType = vm.conditionType("UndefVarError", []string{"var"}, vm.SymbolType)
	vm.OutOfMemoryErrorType = vm.conditionType("OutOfMemoryError", nil)
	vm.StackOverflowErrorType = vm.conditionType("StackOverflowError", nil)
	vm.InterruptExceptionType = vm.conditionType("InterruptException", nil)

	vm.undefRefException = vm.DataTypeOf(vm.UndefRefErrorType).Instance
	vm.memoryException = vm.DataTypeOf(vm.OutOfMemoryErrorType).Instance
	vm.stackOverflowException = vm.DataTypeOf(vm.StackOverflowErrorType).Instance
	vm.interruptException = vm.DataTypeOf(vm.InterruptExceptionType).Instance
}

// conditionType creates a concrete immutable subtype of Exception.
func (vm *VM) conditionType(name string, fields []string, ftypes ...*Object) *Object {
	names := make([]*Object, len(fields))
	for i, f := range fields {
		names[i] = vm.Symbol(f)
	}
	sl := vm.GCPushSlots(1)
	defer sl.Pop()
	sl.Slots[0] = vm.NewTuple(ftypes...)
	t := vm.NewDataType(vm.Symbol(name), vm.ExceptionType, nil, names, sl.Slots[0], false, false)
	vm.bindCore(name, t)
	return vm.Preserve(t)
}

// Errorf raises an ErrorException with a formatted message.
func (vm *VM) Errorf(format string, args ...interface{}) *Object {
	return vm.Raise(vm.NewStruct(vm.ErrorExceptionType, vm.NewString(fmt.Sprintf(format, args...))))
}

// RaiseTypeError raises a TypeError reporting that got was not an instance
// of expected in the function fn. ctx optionally names the argument or
// field involved.
func (vm *VM) RaiseTypeError(fn, ctx string, expected, got *Object) *Object {
	fr := vm.GCPush(&expected, &got)
	defer fr.Pop()
	return vm.Raise(vm.NewStruct(vm.TypeErrorType, vm.Symbol(fn), vm.NewString(ctx), expected, got))
}

// RaiseMethodError raises a MethodError for a call to the function named
// name with a tuple of argument types.
func (vm *VM) RaiseMethodError(name, argtypes *Object) *Object {
	fr := vm.GCPush(&argtypes)
	defer fr.Pop()
	return vm.Raise(vm.NewStruct(vm.MethodErrorType, name, argtypes))
}

// RaiseAmbiguousMethodError raises an AmbiguousMethodError for a call to the
// function named name with a tuple of argument types, listing the candidate
// signatures.
func (vm *VM) RaiseAmbiguousMethodError(name, argtypes, candidates *Object) *Object {
	fr := vm.GCPush(&argtypes, &candidates)
	defer fr.Pop()
	return vm.Raise(vm.NewStruct(vm.AmbiguousMethodErrorType, name, argtypes, candidates))
}

// RaiseArityError raises an ArityError for a call to name with got
// arguments where min to max were expected. A negative max means no limit.
func (vm *VM) RaiseArityError(name string, min, max, got int) *Object {
	sl := vm.GCPushSlots(4)
	defer sl.Pop()
	sl.Slots[0] = vm.NewString(name)
	sl.Slots[1] = vm.BoxInt64(int64(min))
	sl.Slots[2] = vm.BoxInt64(int64(max))
	sl.Slots[3] = vm.BoxInt64(int64(got))
	return vm.Raise(vm.NewStruct(vm.ArityErrorType, sl.Slots...))
}

// RaiseBoundsError raises a BoundsError for an access to v at the 1-based
// index i.
func (vm *VM) RaiseBoundsError(v *Object, i int) *Object {
	fr := vm.GCPush(&v)
	defer fr.Pop()
	sl := vm.GCPushSlots(1)
	defer sl.Pop()
	sl.Slots[0] = vm.BoxInt64(int64(i))
	return vm.Raise(vm.NewStruct(vm.BoundsErrorType, v, sl.Slots[0]))
}

// RaiseUndefRefError raises UndefRefError.
func (vm *VM) RaiseUndefRefError() *Object {
	return vm.Raise(vm.undefRefException)
}

// RaiseUndefVarError raises UndefVarError for the symbol sym.
func (vm *VM) RaiseUndefVarError(sym *Object) *Object {
	return vm.Raise(vm.NewStruct(vm.UndefVarErrorType, sym))
}

// IsCondition reports whether v is an instance of a subtype of Exception.
func (vm *VM) IsCondition(v *Object) bool {
	return v != nil && vm.Subtype(v.typ, vm.ExceptionType)
}

// ConditionMessage describes a condition for humans.
func (vm *VM) ConditionMessage(exc *Object) string {
	if exc == nil {
		return "nothing"
	}
	field := func(i int) *Object {
		return exc.Value.(*Struct).Refs[vm.DataTypeOf(exc.typ).Fields[i].ref]
	}
	bits := func(i int) int64 {
		fd := vm.DataTypeOf(exc.typ).Fields[i]
		return int64(binary.LittleEndian.Uint64(exc.Value.(*Struct).Bits[fd.Offset : fd.Offset+fd.Size]))
	}
	switch exc.typ {
	case vm.ErrorExceptionType:
		return vm.AsString(field(0))
	case vm.TypeErrorType:
		var b strings.Builder
		b.WriteString(vm.SymbolName(field(0)))
		if ctx := vm.AsString(field(1)); ctx != "" {
			b.WriteString(": in ")
			b.WriteString(ctx)
		}
		fmt.Fprintf(&b, ", expected %s, got %s", vm.TypeString(field(2)), vm.TypeString(vm.Typeof(field(3))))
		return b.String()
	case vm.MethodErrorType:
		return fmt.Sprintf("no method matching %s%s", vm.Show(field(0)), vm.argsString(field(1)))
	case vm.AmbiguousMethodErrorType:
		name := vm.Show(field(0))
		var b strings.Builder
		fmt.Fprintf(&b, "%s%s is ambiguous. Candidates:", name, vm.argsString(field(1)))
		for _, c := range TupleElems(field(2)) {
			fmt.Fprintf(&b, "\n  %s%s", name, vm.argsString(c))
		}
		return b.String()
	case vm.ArityErrorType:
		min, max, got := bits(1), bits(2), bits(3)
		switch {
		case min == max:
			return fmt.Sprintf("%s: expected %d argument(s), got %d", vm.AsString(field(0)), min, got)
		case max < 0:
			return fmt.Sprintf("%s: expected at least %d argument(s), got %d", vm.AsString(field(0)), min, got)
		}
		return fmt.Sprintf("%s: expected %d to %d arguments, got %d", vm.AsString(field(0)), min, max, got)
	case vm.BoundsErrorType:
		return fmt.Sprintf("attempt to access %s at index [%d]", vm.TypeString(vm.Typeof(field(0))), bits(1))
	case vm.UndefRefErrorType:
		return "access to undefined reference"
	case vm.UndefVarErrorType:
		return vm.SymbolName(field(0)) + " not defined"
	case vm.OutOfMemoryErrorType:
		return "out of memory"
	case vm.StackOverflowErrorType:
		return "stack overflow"
	case vm.InterruptExceptionType:
		return "interrupt"
	}
	return vm.Show(exc)
}

// argsString formats a tuple of argument types as a call signature.
func (vm *VM) argsString(args *Object) string {
	elems := TupleElems(args)
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = "::" + vm.TypeString(e)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
