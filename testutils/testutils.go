// Package testutils provides utilities for testing code that uses the runtime.
package testutils

import (
	"sync"
	"testing"

	"github.com/zephyrtronium/jlrt"
)

// testVM is the VM used for all tests.
var testVM *jlrt.VM

var testVMInit sync.Once

// VM returns a VM for testing. The VM is shared by all tests that use this
// package, so tests using it must not run in parallel.
func VM() *jlrt.VM {
	testVMInit.Do(ResetVM)
	return testVM
}

// ResetVM reinitializes the VM returned by VM. It is not safe to call this in
// parallel tests.
func ResetVM() {
	testVM = jlrt.NewVM()
}

// NewVM creates a VM that belongs to a single test. Its tasks are closed
// when the test finishes.
func NewVM(t testing.TB) *jlrt.VM {
	t.Helper()
	vm := jlrt.NewVM()
	t.Cleanup(vm.Close)
	return vm
}

// A TestCase is a function to run in the test VM and a predicate to check
// its result.
type TestCase struct {
	// Run computes the result to check. Conditions it raises are caught and
	// passed to Pass with ExceptionStop.
	Run func(vm *jlrt.VM) *jlrt.Object
	// Pass is a predicate taking the result of Run. If Pass returns false,
	// then the test fails.
	Pass func(result *jlrt.Object, control jlrt.Stop) bool
}

// TestFunc returns a test function for the test case. This uses VM to run
// the case.
func (c TestCase) TestFunc(name string) func(*testing.T) {
	return func(t *testing.T) {
		vm := VM()
		r, s := vm.Try(func() *jlrt.Object { return c.Run(vm) })
		if !c.Pass(r, s) {
			if s == jlrt.ExceptionStop {
				t.Errorf("%s produced wrong result; a condition was raised: %s", name, vm.ConditionMessage(r))
			} else {
				t.Errorf("%s produced wrong result; got %s (%s)", name, vm.Show(r), s)
			}
		}
	}
}

// PassIdentical returns a Pass function for a TestCase that predicates on
// identity, i.e. the result must be exactly the given object. If the Stop is
// not NoStop, then the predicate returns false.
func PassIdentical(want *jlrt.Object) func(*jlrt.Object, jlrt.Stop) bool {
	return func(result *jlrt.Object, control jlrt.Stop) bool {
		if control != jlrt.NoStop {
			return false
		}
		return want == result
	}
}

// PassEqual returns a Pass function for a TestCase that predicates on
// egality: identical objects, or immutable values of the same type with the
// same contents. If the Stop is not NoStop, then the predicate returns false.
func PassEqual(want *jlrt.Object) func(*jlrt.Object, jlrt.Stop) bool {
	return func(result *jlrt.Object, control jlrt.Stop) bool {
		if control != jlrt.NoStop {
			return false
		}
		return VM().Egal(want, result)
	}
}

// PassType returns a Pass function for a TestCase that predicates on the
// result being an instance of typ. If the Stop is not NoStop, then the
// predicate returns false.
func PassType(typ *jlrt.Object) func(*jlrt.Object, jlrt.Stop) bool {
	return func(result *jlrt.Object, control jlrt.Stop) bool {
		if control != jlrt.NoStop {
			return false
		}
		return VM().Isa(result, typ)
	}
}

// PassCondition returns a Pass function for a TestCase that returns true iff
// the result is a raised condition of type typ.
func PassCondition(typ *jlrt.Object) func(*jlrt.Object, jlrt.Stop) bool {
	return func(result *jlrt.Object, control jlrt.Stop) bool {
		return control == jlrt.ExceptionStop && result != nil && result.Type() == typ
	}
}

// PassFailure returns a Pass function for a TestCase that returns true iff
// the result is a raised condition.
func PassFailure() func(*jlrt.Object, jlrt.Stop) bool {
	return func(result *jlrt.Object, control jlrt.Stop) bool {
		return control == jlrt.ExceptionStop
	}
}

// PassSuccess returns a Pass function for a TestCase that returns true iff
// the control flow status is NoStop.
func PassSuccess() func(*jlrt.Object, jlrt.Stop) bool {
	return func(result *jlrt.Object, control jlrt.Stop) bool {
		return control == jlrt.NoStop
	}
}

// CheckBindings is a testing helper to check whether a module binds each of
// the given names.
func CheckBindings(t *testing.T, vm *jlrt.VM, module *jlrt.Object, names []string) {
	t.Helper()
	for _, name := range names {
		t.Run("Have_"+name, func(t *testing.T) {
			v, ok := vm.LookupBinding(module, vm.Symbol(name))
			if !ok {
				t.Fatal("no binding", name)
			}
			if v == nil {
				t.Fatal("binding", name, "is nil")
			}
		})
	}
}

// CheckNewBindings is a testing helper to check that the test VM's Core
// module binds generic functions with the given names.
func CheckNewBindings(t *testing.T, names []string) {
	t.Helper()
	vm := VM()
	CheckBindings(t, vm, vm.CoreModule, names)
	for _, name := range names {
		t.Run("Generic_"+name, func(t *testing.T) {
			v, _ := vm.LookupBinding(vm.CoreModule, vm.Symbol(name))
			if v == nil || !vm.IsGeneric(v) {
				t.Fatal(name, "is not a generic function")
			}
		})
	}
}

// CheckSubtype is a testing helper to check the subtype relation between two
// types.
func CheckSubtype(t *testing.T, vm *jlrt.VM, a, b *jlrt.Object, want bool) {
	t.Helper()
	if got := vm.Subtype(a, b); got != want {
		t.Errorf("%s <: %s: want %t, got %t", vm.TypeString(a), vm.TypeString(b), want, got)
	}
}

// CheckRaises is a testing helper to check that f raises a condition of type
// typ.
func CheckRaises(t *testing.T, vm *jlrt.VM, typ *jlrt.Object, f func() *jlrt.Object) {
	t.Helper()
	r, s := vm.Try(f)
	if s != jlrt.ExceptionStop {
		t.Errorf("expected %s, got normal result %s", vm.TypeString(typ), vm.Show(r))
		return
	}
	if r.Type() != typ {
		t.Errorf("expected %s, got %s: %s", vm.TypeString(typ), vm.TypeString(r.Type()), vm.ConditionMessage(r))
	}
}
