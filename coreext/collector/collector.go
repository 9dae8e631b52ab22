// Package collector binds the collector's controls into Core.
package collector

import (
	"github.com/zephyrtronium/jlrt"
	"github.com/zephyrtronium/jlrt/internal"
)

func init() {
	internal.Register(initCollector)
}

func initCollector(vm *jlrt.VM) {
	define := func(name string, fptr jlrt.Fptr, sig ...*jlrt.Object) {
		vm.AddBuiltinMethod(vm.GenericFunction(vm.CoreModule, name), fptr, sig...)
	}
	define("gc", gc)
	define("gc_enable", gcEnable, vm.BoolType)
	define("gc_is_enabled", gcIsEnabled)
	define("gc_stats", gcStats)
	define("finalizer", finalizer, vm.Any, vm.FunctionType)
	define("weakref", weakref, vm.Any)
	define("weakref_value", weakrefValue, vm.WeakRefType)
}

// gc is a Core function.
//
// gc() runs a full collection and returns the number of objects it freed.
func gc(vm *jlrt.VM, f *jlrt.Object, args []*jlrt.Object) *jlrt.Object {
	vm.Collect()
	return vm.BoxInt64(int64(vm.Stats().LastFreed))
}

// gcEnable is a Core function.
//
// gc_enable(on::Bool) turns collection on or off and returns the previous
// setting.
func gcEnable(vm *jlrt.VM, f *jlrt.Object, args []*jlrt.Object) *jlrt.Object {
	return vm.BoxBool(vm.GCEnable(vm.UnboxBool(args[0])))
}

// gcIsEnabled is a Core function.
func gcIsEnabled(vm *jlrt.VM, f *jlrt.Object, args []*jlrt.Object) *jlrt.Object {
	return vm.BoxBool(vm.GCIsEnabled())
}

// gcStats is a Core function.
//
// gc_stats() returns a description of the collector's statistics.
func gcStats(vm *jlrt.VM, f *jlrt.Object, args []*jlrt.Object) *jlrt.Object {
	return vm.NewString(vm.Stats().String())
}

// finalizer is a Core function.
//
// finalizer(x, f::Function) arranges for f(x) to be called once x becomes
// unreachable, and returns x.
func finalizer(vm *jlrt.VM, f *jlrt.Object, args []*jlrt.Object) *jlrt.Object {
	vm.AddFinalizer(args[0], args[1])
	return args[0]
}

// weakref is a Core function.
//
// weakref(x) creates a WeakRef to x.
func weakref(vm *jlrt.VM, f *jlrt.Object, args []*jlrt.Object) *jlrt.Object {
	return vm.NewWeakRef(args[0])
}

// weakrefValue is a Core function.
//
// weakref_value(w::WeakRef) returns the target of w, or nothing if it has
// been collected.
func weakrefValue(vm *jlrt.VM, f *jlrt.Object, args []*jlrt.Object) *jlrt.Object {
	if v := vm.WeakRefValue(args[0]); v != nil {
		return v
	}
	return vm.Nothing
}
