package internal_test

import (
	"testing"

	"github.com/zephyrtronium/jlrt"
	"github.com/zephyrtronium/jlrt/testutils"
)

// TestCompressAST tests that ASTs survive compression.
func TestCompressAST(t *testing.T) {
	vm := testutils.VM()
	build := map[string]func() *jlrt.Object{
		"Symbol": func() *jlrt.Object { return vm.Symbol("x") },
		"Call": func() *jlrt.Object {
			return vm.NewExpr(vm.Symbol("call"), vm.Symbol("+"), vm.BoxInt64(1), vm.BoxFloat64(2.5))
		},
		"Nested": func() *jlrt.Object {
			inner := vm.NewExpr(vm.Symbol("call"), vm.Symbol("f"), vm.NewString("s"), vm.True)
			fr := vm.GCPush(&inner)
			defer fr.Pop()
			return vm.NewExpr(vm.Symbol("block"), inner, vm.Nothing, vm.False)
		},
		"Tuple": func() *jlrt.Object {
			tup := vm.NewTuple(vm.BoxInt64(-7), vm.Symbol("y"))
			fr := vm.GCPush(&tup)
			defer fr.Pop()
			return vm.NewExpr(vm.Symbol("tuple"), tup)
		},
		"Empty": func() *jlrt.Object { return vm.NewExpr(vm.Symbol("block")) },
	}
	for name, f := range build {
		t.Run(name, func(t *testing.T) {
			ast := f()
			fr := vm.GCPush(&ast)
			defer fr.Pop()
			b, err := vm.CompressAST(ast)
			if err != nil {
				t.Fatal(err)
			}
			got, err := vm.UncompressAST(b)
			if err != nil {
				t.Fatal(err)
			}
			if vm.Show(got) != vm.Show(ast) {
				t.Errorf("want %s, got %s", vm.Show(ast), vm.Show(got))
			}
			if vm.Typeof(got) != vm.Typeof(ast) {
				t.Errorf("want %s, got %s", vm.TypeString(vm.Typeof(ast)), vm.TypeString(vm.Typeof(got)))
			}
		})
	}
}

// TestCompressASTErrors tests values that cannot appear in compressed ASTs
// and corrupt input.
func TestCompressASTErrors(t *testing.T) {
	vm := testutils.VM()
	a := vm.Preserve(vm.NewArray(vm.Any, 1))
	defer vm.Unpreserve(a)
	e := vm.Preserve(vm.NewExpr(vm.Symbol("call"), a))
	defer vm.Unpreserve(e)
	if _, err := vm.CompressAST(e); err == nil {
		t.Error("array in AST compressed without error")
	}
	if _, err := vm.UncompressAST([]byte("not zlib")); err == nil {
		t.Error("corrupt data decompressed without error")
	}
}

// TestExpr tests constructing expressions.
func TestExpr(t *testing.T) {
	vm := testutils.VM()
	e := vm.NewExpr(vm.Symbol("call"), vm.Symbol("f"))
	fr := vm.GCPush(&e)
	defer fr.Pop()
	x := vm.ExprOf(e)
	if x.Head != vm.Symbol("call") || len(x.Args) != 1 {
		t.Errorf("wrong expression %s", vm.Show(e))
	}
	if s := vm.Show(e); s != ":(call f)" {
		t.Errorf("wrong display %q", s)
	}
	testutils.CheckRaises(t, vm, vm.TypeErrorType, func() *jlrt.Object { return vm.NewExpr(vm.NewString("call")) })
	testutils.CheckRaises(t, vm, vm.TypeErrorType, func() *jlrt.Object { vm.ExprOf(vm.Nothing); return nil })
}
