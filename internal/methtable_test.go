package internal_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/zephyrtronium/jlrt"
	"github.com/zephyrtronium/jlrt/testutils"
)

// tag returns an entry point that returns the symbol named s.
func tag(s string) jlrt.Fptr {
	return func(vm *jlrt.VM, f *jlrt.Object, args []*jlrt.Object) *jlrt.Object {
		return vm.Symbol(s)
	}
}

// TestDispatch tests that calls select the most specific applicable method.
func TestDispatch(t *testing.T) {
	vm := testutils.VM()
	gf := vm.NewGenericFunction(nil, "describe")
	vm.AddBuiltinMethod(gf, tag("any"), vm.Any)
	vm.AddBuiltinMethod(gf, tag("int64"), vm.Int64Type)
	vm.AddBuiltinMethod(gf, tag("integer"), vm.IntegerType)
	vm.AddBuiltinMethod(gf, tag("strings"), vm.StringType, vm.StringType, vm.NewVararg(vm.Any))
	call := func(args ...*jlrt.Object) func(*jlrt.VM) *jlrt.Object {
		return func(vm *jlrt.VM) *jlrt.Object {
			return vm.Apply(gf, args...)
		}
	}
	cases := map[string]testutils.TestCase{
		"Exact":      {Run: call(vm.BoxInt64(1)), Pass: testutils.PassIdentical(vm.Symbol("int64"))},
		"Abstract":   {Run: call(vm.BoxInt32(1)), Pass: testutils.PassIdentical(vm.Symbol("integer"))},
		"Bool":       {Run: call(vm.True), Pass: testutils.PassIdentical(vm.Symbol("integer"))},
		"Fallback":   {Run: call(vm.BoxFloat64(1.5)), Pass: testutils.PassIdentical(vm.Symbol("any"))},
		"String":     {Run: call(vm.NewString("a")), Pass: testutils.PassIdentical(vm.Symbol("any"))},
		"VarargNone": {Run: call(vm.NewString("a"), vm.NewString("b")), Pass: testutils.PassIdentical(vm.Symbol("strings"))},
		"VarargMany": {Run: call(vm.NewString("a"), vm.NewString("b"), vm.BoxInt64(1), vm.Nothing), Pass: testutils.PassIdentical(vm.Symbol("strings"))},
		"NoArgs":     {Run: call(), Pass: testutils.PassCondition(vm.MethodErrorType)},
		"TooMany":    {Run: call(vm.BoxInt64(1), vm.BoxInt64(2)), Pass: testutils.PassCondition(vm.MethodErrorType)},
	}
	for name, c := range cases {
		t.Run(name, c.TestFunc("TestDispatch/"+name))
	}
}

// TestDispatchOrder tests that methods are kept most specific first
// regardless of definition order.
func TestDispatchOrder(t *testing.T) {
	vm := testutils.VM()
	gf := vm.NewGenericFunction(nil, "ordered")
	vm.AddBuiltinMethod(gf, tag("any"), vm.Any)
	vm.AddBuiltinMethod(gf, tag("int64"), vm.Int64Type)
	vm.AddBuiltinMethod(gf, tag("integer"), vm.IntegerType)
	defs := vm.MethodTableOf(gf).Defs
	want := []*jlrt.Object{vm.Int64Type, vm.IntegerType, vm.Any}
	if len(defs) != len(want) {
		t.Fatalf("wrong number of methods: want %d, got %d", len(want), len(defs))
	}
	for i, d := range defs {
		if got := jlrt.TupleElems(d.Sig)[0]; got != want[i] {
			t.Errorf("method %d has signature %s, want %s", i, vm.TypeString(got), vm.TypeString(want[i]))
		}
	}
}

// TestAmbiguity tests that calls matching several unordered methods raise
// AmbiguousMethodError until a method covers the intersection.
func TestAmbiguity(t *testing.T) {
	vm := testutils.VM()
	gf := vm.NewGenericFunction(nil, "amb")
	vm.AddBuiltinMethod(gf, tag("left"), vm.Int64Type, vm.Any)
	vm.AddBuiltinMethod(gf, tag("right"), vm.Any, vm.Int64Type)
	cases := map[string]testutils.TestCase{
		"Left": {
			Run:  func(vm *jlrt.VM) *jlrt.Object { return vm.Apply(gf, vm.BoxInt64(1), vm.NewString("x")) },
			Pass: testutils.PassIdentical(vm.Symbol("left")),
		},
		"Right": {
			Run:  func(vm *jlrt.VM) *jlrt.Object { return vm.Apply(gf, vm.NewString("x"), vm.BoxInt64(1)) },
			Pass: testutils.PassIdentical(vm.Symbol("right")),
		},
		"Both": {
			Run:  func(vm *jlrt.VM) *jlrt.Object { return vm.Apply(gf, vm.BoxInt64(1), vm.BoxInt64(2)) },
			Pass: testutils.PassCondition(vm.AmbiguousMethodErrorType),
		},
	}
	for name, c := range cases {
		t.Run(name, c.TestFunc("TestAmbiguity/"+name))
	}
	t.Run("Candidates", func(t *testing.T) {
		r, stop := vm.Try(func() *jlrt.Object { return vm.Apply(gf, vm.BoxInt64(1), vm.BoxInt64(2)) })
		if stop != jlrt.ExceptionStop {
			t.Fatalf("no condition raised; got %s", vm.Show(r))
		}
		msg := vm.ConditionMessage(r)
		if !strings.Contains(msg, "amb(::Int64, ::Any)") || !strings.Contains(msg, "amb(::Any, ::Int64)") {
			t.Errorf("candidates missing from message %q", msg)
		}
	})
	t.Run("Resolved", func(t *testing.T) {
		vm.AddBuiltinMethod(gf, tag("both"), vm.Int64Type, vm.Int64Type)
		r, stop := vm.Try(func() *jlrt.Object { return vm.Apply(gf, vm.BoxInt64(1), vm.BoxInt64(2)) })
		if stop != jlrt.NoStop || r != vm.Symbol("both") {
			t.Errorf("wrong result %s (%s)", vm.Show(r), stop)
		}
	})
}

// TestStaticParameters tests methods whose signatures repeat a type
// variable, and that specializations see the variable's binding.
func TestStaticParameters(t *testing.T) {
	vm := testutils.VM()
	gf := vm.NewGenericFunction(nil, "same")
	tv := vm.NewTypeVar(vm.Symbol("T"), nil, nil)
	sparam := func(vm *jlrt.VM, f *jlrt.Object, args []*jlrt.Object) *jlrt.Object {
		return vm.StaticParameter(f.Value.(*jlrt.Function).Linfo, vm.Symbol("T"))
	}
	vm.AddMethod(gf, vm.NewTuple(tv, tv), vm.NewBuiltin("same", sparam), vm.NewTuple(tv))
	vm.AddBuiltinMethod(gf, tag("different"), vm.Any, vm.Any)
	cases := map[string]testutils.TestCase{
		"Ints": {
			Run:  func(vm *jlrt.VM) *jlrt.Object { return vm.Apply(gf, vm.BoxInt64(1), vm.BoxInt64(2)) },
			Pass: testutils.PassIdentical(vm.Int64Type),
		},
		"Strings": {
			Run:  func(vm *jlrt.VM) *jlrt.Object { return vm.Apply(gf, vm.NewString("a"), vm.NewString("b")) },
			Pass: testutils.PassIdentical(vm.StringType),
		},
		"Mixed": {
			Run:  func(vm *jlrt.VM) *jlrt.Object { return vm.Apply(gf, vm.BoxInt64(1), vm.NewString("b")) },
			Pass: testutils.PassIdentical(vm.Symbol("different")),
		},
	}
	for name, c := range cases {
		t.Run(name, c.TestFunc("TestStaticParameters/"+name))
	}
	t.Run("Element", func(t *testing.T) {
		push := vm.NewGenericFunction(nil, "push")
		vec := vm.ApplyType(vm.ArrayType, tv, vm.BoxInt64(1))
		vm.AddMethod(push, vm.NewTuple(vec, tv), vm.NewBuiltin("push", sparam), vm.NewTuple(tv))
		a := vm.NewArray(vm.NumberType, 0)
		fr := vm.GCPush(&push, &a)
		defer fr.Pop()
		if r := vm.Apply(push, a, vm.BoxInt64(3)); r != vm.NumberType {
			t.Errorf("T bound to %s, want Number", vm.Show(r))
		}
	})
	t.Run("Specializations", func(t *testing.T) {
		li := vm.MethodTableOf(gf).Defs[0].Func.Value.(*jlrt.Function).Linfo.Value.(*jlrt.LambdaInfo)
		if len(li.Specializations) != 2 {
			t.Errorf("want 2 specializations, got %d", len(li.Specializations))
		}
	})
}

// TestDispatchCache tests that repeated calls with the same argument types
// hit the cache and that defining a method invalidates it.
func TestDispatchCache(t *testing.T) {
	vm := testutils.VM()
	gf := vm.NewGenericFunction(nil, "cached")
	vm.AddBuiltinMethod(gf, tag("any"), vm.Any)
	mt := vm.MethodTableOf(gf)
	for i := 0; i < 3; i++ {
		vm.Apply(gf, vm.BoxInt64(int64(i)))
	}
	if mt.Misses != 1 || mt.Hits != 2 {
		t.Errorf("want 1 miss and 2 hits, got %d and %d", mt.Misses, mt.Hits)
	}
	vm.Apply(gf, vm.NewString("x"))
	if mt.CacheLen() != 2 {
		t.Errorf("want 2 cache entries, got %d", mt.CacheLen())
	}
	vm.AddBuiltinMethod(gf, tag("int64"), vm.Int64Type)
	if mt.CacheLen() != 0 {
		t.Errorf("cache has %d entries after adding a method", mt.CacheLen())
	}
	if r := vm.Apply(gf, vm.BoxInt64(1)); r != vm.Symbol("int64") {
		t.Errorf("stale dispatch: got %s", vm.Show(r))
	}
}

// TestMethodOverwrite tests that a method with an existing signature
// replaces the old definition.
func TestMethodOverwrite(t *testing.T) {
	vm := testutils.VM()
	gf := vm.NewGenericFunction(nil, "redefined")
	vm.AddBuiltinMethod(gf, tag("old"), vm.Int64Type)
	if r := vm.Apply(gf, vm.BoxInt64(1)); r != vm.Symbol("old") {
		t.Fatalf("wrong result before redefinition: %s", vm.Show(r))
	}
	vm.AddBuiltinMethod(gf, tag("new"), vm.Int64Type)
	if n := len(vm.MethodTableOf(gf).Defs); n != 1 {
		t.Errorf("want 1 method, got %d", n)
	}
	if r := vm.Apply(gf, vm.BoxInt64(1)); r != vm.Symbol("new") {
		t.Errorf("wrong result after redefinition: %s", vm.Show(r))
	}
}

// countingCompiler compiles every method to an entry point returning the
// number of compilations so far.
type countingCompiler struct {
	n int
}

func (c *countingCompiler) Compile(vm *jlrt.VM, li *jlrt.Object) (jlrt.Fptr, error) {
	if li.Value.(*jlrt.LambdaInfo).AST == nil {
		return nil, errors.New("nothing to compile")
	}
	c.n++
	n := int64(c.n)
	return func(vm *jlrt.VM, f *jlrt.Object, args []*jlrt.Object) *jlrt.Object {
		return vm.BoxInt64(n)
	}, nil
}

// TestCompiler tests that specializations are compiled once each by the
// VM's Compiler and that compilation failures raise.
func TestCompiler(t *testing.T) {
	vm := testutils.NewVM(t)
	cc := &countingCompiler{}
	vm.Compiler = cc
	gf := vm.NewGenericFunction(nil, "compiled")
	li := vm.NewLambdaInfo(vm.NewExpr(vm.Symbol("block")), nil)
	vm.AddMethod(gf, vm.NewTuple(vm.Any), vm.NewFunction(nil, nil, li), nil)
	if r := vm.UnboxInt64(vm.Apply(gf, vm.BoxInt64(1))); r != 1 {
		t.Errorf("first call: want 1, got %d", r)
	}
	if r := vm.UnboxInt64(vm.Apply(gf, vm.BoxInt64(2))); r != 1 {
		t.Errorf("cached call: want 1, got %d", r)
	}
	if r := vm.UnboxInt64(vm.Apply(gf, vm.NewString("x"))); r != 2 {
		t.Errorf("new specialization: want 2, got %d", r)
	}
	if cc.n != 2 {
		t.Errorf("want 2 compilations, got %d", cc.n)
	}
	empty := vm.NewGenericFunction(nil, "uncompilable")
	vm.AddMethod(empty, vm.NewTuple(), vm.NewFunction(nil, nil, vm.NewLambdaInfo(nil, nil)), nil)
	testutils.CheckRaises(t, vm, vm.ErrorExceptionType, func() *jlrt.Object {
		return vm.Apply(empty)
	})
}

// TestAddMethodErrors tests that invalid definitions raise TypeError.
func TestAddMethodErrors(t *testing.T) {
	vm := testutils.VM()
	gf := vm.NewGenericFunction(nil, "invalid")
	cases := map[string]func() *jlrt.Object{
		"NotGeneric": func() *jlrt.Object {
			vm.AddBuiltinMethod(vm.NewBuiltin("plain", tag("x")), tag("x"), vm.Any)
			return nil
		},
		"NotSignature": func() *jlrt.Object {
			vm.AddMethod(gf, vm.Int64Type, vm.NewBuiltin("invalid", tag("x")), nil)
			return nil
		},
		"NotFunction": func() *jlrt.Object {
			vm.AddMethod(gf, vm.NewTuple(vm.Any), vm.BoxInt64(1), nil)
			return nil
		},
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			testutils.CheckRaises(t, vm, vm.TypeErrorType, f)
		})
	}
}

// TestShowMethodTable tests the method listing.
func TestShowMethodTable(t *testing.T) {
	vm := testutils.VM()
	gf := vm.NewGenericFunction(nil, "listed")
	tv := vm.NewTypeVar(vm.Symbol("T"), nil, vm.NumberType)
	vm.AddBuiltinMethod(gf, tag("any"), vm.Any)
	vm.AddMethod(gf, vm.NewTuple(tv, tv), vm.NewBuiltin("listed", tag("t")), vm.NewTuple(tv))
	s := vm.ShowMethodTable(gf)
	for _, want := range []string{
		"# 2 method(s) for generic function listed:",
		"listed(::T<:Number, ::T<:Number) where T<:Number",
		"listed(::Any)",
		"# cache: 0 entries",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("%q missing from\n%s", want, s)
		}
	}
}

// TestBuiltin tests calling plain functions and argument count checks.
func TestBuiltin(t *testing.T) {
	vm := testutils.VM()
	f := vm.NewBuiltin("second", func(vm *jlrt.VM, f *jlrt.Object, args []*jlrt.Object) *jlrt.Object {
		vm.CheckArgs("second", args, 2, -1)
		return args[1]
	})
	cases := map[string]testutils.TestCase{
		"Call": {
			Run:  func(vm *jlrt.VM) *jlrt.Object { return vm.Apply(f, vm.BoxInt64(1), vm.BoxInt64(2)) },
			Pass: testutils.PassIdentical(vm.BoxInt64(2)),
		},
		"Arity": {
			Run:  func(vm *jlrt.VM) *jlrt.Object { return vm.Apply(f, vm.BoxInt64(1)) },
			Pass: testutils.PassCondition(vm.ArityErrorType),
		},
		"NotFunction": {
			Run:  func(vm *jlrt.VM) *jlrt.Object { return vm.Apply(vm.BoxInt64(1)) },
			Pass: testutils.PassCondition(vm.TypeErrorType),
		},
	}
	for name, c := range cases {
		t.Run(name, c.TestFunc("TestBuiltin/"+name))
	}
}

// TestTypeDispatch tests dispatch on types passed as values.
func TestTypeDispatch(t *testing.T) {
	vm := testutils.VM()
	gf := vm.NewGenericFunction(nil, "kind")
	tv := vm.NewTypeVar(vm.Symbol("T"), nil, vm.NumberType)
	vm.AddBuiltinMethod(gf, tag("any"), vm.Any)
	vm.AddBuiltinMethod(gf, tag("datatype"), vm.DataTypeType)
	vm.AddBuiltinMethod(gf, tag("int64"), vm.NewTypeType(vm.Int64Type))
	sparam := func(vm *jlrt.VM, f *jlrt.Object, args []*jlrt.Object) *jlrt.Object {
		return vm.StaticParameter(f.Value.(*jlrt.Function).Linfo, vm.Symbol("T"))
	}
	vm.AddMethod(gf, vm.NewTuple(vm.NewTypeType(tv)), vm.NewBuiltin("kind", sparam), vm.NewTuple(tv))
	cases := map[string]testutils.TestCase{
		"Exact": {
			Run:  func(vm *jlrt.VM) *jlrt.Object { return vm.Apply(gf, vm.Int64Type) },
			Pass: testutils.PassIdentical(vm.Symbol("int64")),
		},
		"Parameter": {
			Run:  func(vm *jlrt.VM) *jlrt.Object { return vm.Apply(gf, vm.Float64Type) },
			Pass: testutils.PassIdentical(vm.Float64Type),
		},
		"Kind": {
			Run:  func(vm *jlrt.VM) *jlrt.Object { return vm.Apply(gf, vm.StringType) },
			Pass: testutils.PassIdentical(vm.Symbol("datatype")),
		},
		"Union": {
			Run:  func(vm *jlrt.VM) *jlrt.Object { return vm.Apply(gf, vm.TypeUnion(vm.Int64Type, vm.StringType)) },
			Pass: testutils.PassIdentical(vm.Symbol("any")),
		},
		"Value": {
			Run:  func(vm *jlrt.VM) *jlrt.Object { return vm.Apply(gf, vm.BoxInt64(1)) },
			Pass: testutils.PassIdentical(vm.Symbol("any")),
		},
	}
	for name, c := range cases {
		t.Run(name, c.TestFunc("TestTypeDispatch/"+name))
	}
}

// TestInvoke tests calling less specific methods through an explicit
// signature.
func TestInvoke(t *testing.T) {
	vm := testutils.VM()
	gf := vm.NewGenericFunction(nil, "describe")
	vm.AddBuiltinMethod(gf, tag("any"), vm.Any)
	vm.AddBuiltinMethod(gf, tag("integer"), vm.IntegerType)
	vm.AddBuiltinMethod(gf, tag("int64"), vm.Int64Type)
	narrow := vm.NewGenericFunction(nil, "narrow")
	vm.AddBuiltinMethod(narrow, tag("integer"), vm.IntegerType)
	amb := vm.NewGenericFunction(nil, "crossed")
	vm.AddBuiltinMethod(amb, tag("left"), vm.Int64Type, vm.Any)
	vm.AddBuiltinMethod(amb, tag("right"), vm.Any, vm.Int64Type)
	cases := map[string]testutils.TestCase{
		"Dispatch": {
			Run:  func(vm *jlrt.VM) *jlrt.Object { return vm.Apply(gf, vm.BoxInt64(1)) },
			Pass: testutils.PassIdentical(vm.Symbol("int64")),
		},
		"Exact": {
			Run:  func(vm *jlrt.VM) *jlrt.Object { return vm.Invoke(gf, vm.NewTuple(vm.Int64Type), vm.BoxInt64(1)) },
			Pass: testutils.PassIdentical(vm.Symbol("int64")),
		},
		"Abstract": {
			Run:  func(vm *jlrt.VM) *jlrt.Object { return vm.Invoke(gf, vm.NewTuple(vm.IntegerType), vm.BoxInt64(1)) },
			Pass: testutils.PassIdentical(vm.Symbol("integer")),
		},
		"Between": {
			Run:  func(vm *jlrt.VM) *jlrt.Object { return vm.Invoke(gf, vm.NewTuple(vm.SignedType), vm.BoxInt64(1)) },
			Pass: testutils.PassIdentical(vm.Symbol("integer")),
		},
		"Any": {
			Run:  func(vm *jlrt.VM) *jlrt.Object { return vm.Invoke(gf, vm.NewTuple(vm.Any), vm.BoxInt64(1)) },
			Pass: testutils.PassIdentical(vm.Symbol("any")),
		},
		"ArgumentType": {
			Run:  func(vm *jlrt.VM) *jlrt.Object { return vm.Invoke(gf, vm.NewTuple(vm.IntegerType), vm.NewString("x")) },
			Pass: testutils.PassCondition(vm.TypeErrorType),
		},
		"Signature": {
			Run:  func(vm *jlrt.VM) *jlrt.Object { return vm.Invoke(gf, vm.IntegerType, vm.BoxInt64(1)) },
			Pass: testutils.PassCondition(vm.TypeErrorType),
		},
		"NoMethod": {
			Run:  func(vm *jlrt.VM) *jlrt.Object { return vm.Invoke(narrow, vm.NewTuple(vm.NumberType), vm.BoxInt64(1)) },
			Pass: testutils.PassCondition(vm.MethodErrorType),
		},
		"Ambiguous": {
			Run: func(vm *jlrt.VM) *jlrt.Object {
				return vm.Invoke(amb, vm.NewTuple(vm.Int64Type, vm.Int64Type), vm.BoxInt64(1), vm.BoxInt64(2))
			},
			Pass: testutils.PassCondition(vm.AmbiguousMethodErrorType),
		},
		"Resolved": {
			Run: func(vm *jlrt.VM) *jlrt.Object {
				return vm.Invoke(amb, vm.NewTuple(vm.Int64Type, vm.Any), vm.BoxInt64(1), vm.BoxInt64(2))
			},
			Pass: testutils.PassIdentical(vm.Symbol("left")),
		},
	}
	for name, c := range cases {
		t.Run(name, c.TestFunc("TestInvoke/"+name))
	}
	t.Run("Cache", func(t *testing.T) {
		mt := vm.MethodTableOf(gf)
		sig := vm.NewTuple(vm.RealType)
		fr := vm.GCPush(&sig)
		defer fr.Pop()
		n := mt.InvokeCacheLen()
		for i := 0; i < 3; i++ {
			r, stop := vm.Try(func() *jlrt.Object { return vm.Invoke(gf, sig, vm.BoxInt64(int64(i))) })
			if stop != jlrt.NoStop || r != vm.Symbol("any") {
				t.Fatalf("wrong result %s (%s)", vm.Show(r), stop)
			}
		}
		if got := mt.InvokeCacheLen(); got != n+1 {
			t.Errorf("want %d invoke cache entries, got %d", n+1, got)
		}
		vm.AddBuiltinMethod(gf, tag("real"), vm.RealType)
		if got := mt.InvokeCacheLen(); got != 0 {
			t.Errorf("defining a method left %d invoke cache entries", got)
		}
		r, stop := vm.Try(func() *jlrt.Object { return vm.Invoke(gf, sig, vm.BoxInt64(1)) })
		if stop != jlrt.NoStop || r != vm.Symbol("real") {
			t.Errorf("wrong result after redefinition %s (%s)", vm.Show(r), stop)
		}
	})
}
