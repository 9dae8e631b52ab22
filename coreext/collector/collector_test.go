package collector_test

import (
	"testing"

	"github.com/zephyrtronium/jlrt"
	_ "github.com/zephyrtronium/jlrt/coreext/collector" // side effects
	"github.com/zephyrtronium/jlrt/testutils"
)

func TestRegister(t *testing.T) {
	testutils.CheckNewBindings(t, []string{"gc", "gc_enable", "gc_is_enabled", "gc_stats", "finalizer", "weakref", "weakref_value"})
}

func call(vm *jlrt.VM, name string, args ...*jlrt.Object) *jlrt.Object {
	return vm.Apply(vm.ResolveGlobal(vm.CoreModule, vm.Symbol(name)), args...)
}

func TestCollectorFunctions(t *testing.T) {
	vm := testutils.VM()
	cases := map[string]testutils.TestCase{
		"gc": {
			Run:  func(vm *jlrt.VM) *jlrt.Object { return call(vm, "gc") },
			Pass: testutils.PassType(vm.Int64Type),
		},
		"gc_enable": {
			Run: func(vm *jlrt.VM) *jlrt.Object {
				call(vm, "gc_enable", vm.False)
				return call(vm, "gc_enable", vm.True)
			},
			Pass: testutils.PassIdentical(vm.False),
		},
		"gc_is_enabled": {
			Run:  func(vm *jlrt.VM) *jlrt.Object { return call(vm, "gc_is_enabled") },
			Pass: testutils.PassIdentical(vm.True),
		},
		"gc_stats": {
			Run:  func(vm *jlrt.VM) *jlrt.Object { return call(vm, "gc_stats") },
			Pass: testutils.PassType(vm.StringType),
		},
		"gc_enable_wrong_type": {
			Run:  func(vm *jlrt.VM) *jlrt.Object { return call(vm, "gc_enable", vm.BoxInt64(1)) },
			Pass: testutils.PassCondition(vm.MethodErrorType),
		},
		"weakref_value_live": {
			Run: func(vm *jlrt.VM) *jlrt.Object {
				x := vm.Preserve(vm.NewString("kept"))
				defer vm.Unpreserve(x)
				w := call(vm, "weakref", x)
				fr := vm.GCPush(&w)
				defer fr.Pop()
				call(vm, "gc")
				if call(vm, "weakref_value", w) != x {
					return vm.Nothing
				}
				return vm.True
			},
			Pass: testutils.PassIdentical(vm.True),
		},
		"weakref_value_dead": {
			Run: func(vm *jlrt.VM) *jlrt.Object {
				w := call(vm, "weakref", vm.NewString("lost"))
				fr := vm.GCPush(&w)
				defer fr.Pop()
				call(vm, "gc")
				return call(vm, "weakref_value", w)
			},
			Pass: testutils.PassIdentical(vm.Nothing),
		},
	}
	for name, c := range cases {
		t.Run(name, c.TestFunc(name))
	}
}

func TestFinalizerBuiltin(t *testing.T) {
	vm := testutils.NewVM(t)
	ran := 0
	fin := vm.NewBuiltin("fin", func(vm *jlrt.VM, f *jlrt.Object, args []*jlrt.Object) *jlrt.Object {
		ran++
		return vm.Nothing
	})
	fr := vm.GCPush(&fin)
	defer fr.Pop()
	_, s := vm.Try(func() *jlrt.Object {
		return call(vm, "finalizer", vm.NewString("doomed"), fin)
	})
	if s != jlrt.NoStop {
		t.Fatal("finalizer raised")
	}
	call(vm, "gc")
	call(vm, "gc")
	if ran != 1 {
		t.Errorf("finalizer ran %d times, want 1", ran)
	}
}
