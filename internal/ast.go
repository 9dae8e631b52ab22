package internal

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// NewExpr creates an AST expression node with the given head symbol.
func (vm *VM) NewExpr(head *Object, args ...*Object) *Object {
	if head.typ != vm.SymbolType {
		return vm.RaiseTypeError("Expr", "head", vm.SymbolType, head)
	}
	af := vm.GCPushValues(args...)
	defer af.Pop()
	a := make([]*Object, len(args))
	copy(a, args)
	return vm.alloc(vm.ExprType, (3+len(a))*wordSize, &Expr{Head: head, Args: a})
}

// ExprOf returns the payload of an Expr, raising TypeError if e is not one.
func (vm *VM) ExprOf(e *Object) *Expr {
	x, ok := e.Value.(*Expr)
	if !ok {
		vm.RaiseTypeError("Expr", "", vm.ExprType, e)
	}
	return x
}

// AST node kinds in the serialized form.
const (
	astExpr uint8 = iota
	astSymbol
	astString
	astInt
	astFloat
	astBool
	astNothing
	astTuple
)

// astNode is the serialized form of one AST value.
type astNode struct {
	Kind  uint8     `cbor:"k"`
	Text  string    `cbor:"s,omitempty"`
	Int   int64     `cbor:"i,omitempty"`
	Float float64   `cbor:"f,omitempty"`
	Args  []astNode `cbor:"a,omitempty"`
}

var astEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("jlrt: failed to create CBOR enc mode: %v", err))
	}
	astEncMode = em
}

// CompressAST encodes an AST as bytes. The AST may contain expressions,
// symbols, strings, Int64, Float64, Bool, nothing, and tuples of these.
func (vm *VM) CompressAST(ast *Object) ([]byte, error) {
	n, err := vm.toASTNode(ast)
	if err != nil {
		return nil, err
	}
	b, err := astEncMode.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("jlrt: encoding AST: %w", err)
	}
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		return nil, fmt.Errorf("jlrt: compressing AST: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("jlrt: compressing AST: %w", err)
	}
	return buf.Bytes(), nil
}

func (vm *VM) toASTNode(v *Object) (astNode, error) {
	switch x := v.Value.(type) {
	case *Expr:
		n := astNode{Kind: astExpr, Text: vm.SymbolName(x.Head), Args: make([]astNode, len(x.Args))}
		for i, a := range x.Args {
			an, err := vm.toASTNode(a)
			if err != nil {
				return n, err
			}
			n.Args[i] = an
		}
		return n, nil
	case *Symbol:
		return astNode{Kind: astSymbol, Text: x.Name}, nil
	case string:
		return astNode{Kind: astString, Text: x}, nil
	case []*Object:
		n := astNode{Kind: astTuple, Args: make([]astNode, len(x))}
		for i, a := range x {
			an, err := vm.toASTNode(a)
			if err != nil {
				return n, err
			}
			n.Args[i] = an
		}
		return n, nil
	}
	switch v.typ {
	case vm.Int64Type:
		return astNode{Kind: astInt, Int: vm.UnboxInt64(v)}, nil
	case vm.Float64Type:
		return astNode{Kind: astFloat, Float: vm.UnboxFloat64(v)}, nil
	case vm.BoolType:
		n := astNode{Kind: astBool}
		if vm.UnboxBool(v) {
			n.Int = 1
		}
		return n, nil
	case vm.NothingType:
		return astNode{Kind: astNothing}, nil
	}
	return astNode{}, fmt.Errorf("jlrt: cannot serialize value of type %s in AST", vm.TypeString(v.typ))
}

// UncompressAST decodes bytes produced by CompressAST.
func (vm *VM) UncompressAST(data []byte) (*Object, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("jlrt: decompressing AST: %w", err)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("jlrt: decompressing AST: %w", err)
	}
	var n astNode
	if err := cbor.Unmarshal(b, &n); err != nil {
		return nil, fmt.Errorf("jlrt: decoding AST: %w", err)
	}
	return vm.fromASTNode(&n)
}

func (vm *VM) fromASTNode(n *astNode) (*Object, error) {
	switch n.Kind {
	case astExpr, astTuple:
		sl := vm.GCPushSlots(len(n.Args))
		defer sl.Pop()
		for i := range n.Args {
			a, err := vm.fromASTNode(&n.Args[i])
			if err != nil {
				return nil, err
			}
			sl.Slots[i] = a
		}
		if n.Kind == astTuple {
			return vm.NewTuple(sl.Slots...), nil
		}
		return vm.NewExpr(vm.Symbol(n.Text), sl.Slots...), nil
	case astSymbol:
		return vm.Symbol(n.Text), nil
	case astString:
		return vm.NewString(n.Text), nil
	case astInt:
		return vm.BoxInt64(n.Int), nil
	case astFloat:
		return vm.BoxFloat64(n.Float), nil
	case astBool:
		return vm.BoxBool(n.Int != 0), nil
	case astNothing:
		return vm.Nothing, nil
	}
	return nil, fmt.Errorf("jlrt: unknown AST node kind %d", n.Kind)
}
