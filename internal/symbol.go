package internal

import (
	"fmt"
	"hash/fnv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Symbol is the payload of interned names. Symbols are permanent and compare
// by identity.
type Symbol struct {
	Name string
	Hash uint64

	left, right *Object
}

func symbolHash(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// symtab is a binary search tree of symbols ordered by hash, then text.
type symtab struct {
	root *Object
	n    int
	// gensyms counts generated symbols.
	gensyms uint64
}

// find returns the link where a symbol with the given text and hash is or
// would be stored.
func (s *symtab) find(name string, h uint64) **Object {
	p := &s.root
	for *p != nil {
		sym := (*p).Value.(*Symbol)
		var c int
		switch {
		case h < sym.Hash:
			c = -1
		case h > sym.Hash:
			c = 1
		default:
			c = strings.Compare(name, sym.Name)
		}
		switch {
		case c < 0:
			p = &sym.left
		case c > 0:
			p = &sym.right
		default:
			return p
		}
	}
	return p
}

// Symbol returns the interned symbol for name, creating it if needed. Text
// is normalized to NFC first, so canonically equivalent names are the same
// symbol.
func (vm *VM) Symbol(name string) *Object {
	name = norm.NFC.String(name)
	h := symbolHash(name)
	p := vm.symbols.find(name, h)
	if *p == nil {
		*p = vm.allocPerm(vm.SymbolType, &Symbol{Name: name, Hash: h})
		vm.symbols.n++
	}
	return *p
}

// SymbolLookup returns the symbol for name if it has been interned.
func (vm *VM) SymbolLookup(name string) (*Object, bool) {
	name = norm.NFC.String(name)
	p := vm.symbols.find(name, symbolHash(name))
	return *p, *p != nil
}

// Gensym returns a fresh symbol, distinct from every symbol interned so far.
func (vm *VM) Gensym() *Object {
	return vm.gensym(func(n uint64) string { return fmt.Sprintf("#%d", n) })
}

// TaggedGensym returns a fresh symbol incorporating tag.
func (vm *VM) TaggedGensym(tag string) *Object {
	return vm.gensym(func(n uint64) string { return fmt.Sprintf("##%s#%d", tag, n) })
}

func (vm *VM) gensym(name func(uint64) string) *Object {
	for {
		vm.symbols.gensyms++
		s := norm.NFC.String(name(vm.symbols.gensyms))
		if _, ok := vm.SymbolLookup(s); !ok {
			return vm.Symbol(s)
		}
	}
}

// SymbolName returns the text of a symbol.
func (vm *VM) SymbolName(s *Object) string {
	if sym, ok := s.Value.(*Symbol); ok {
		return sym.Name
	}
	vm.RaiseTypeError("symbol", "", vm.SymbolType, s)
	return ""
}

// IsSymbol reports whether o is a symbol.
func (vm *VM) IsSymbol(o *Object) bool {
	return o.typ == vm.SymbolType
}

// SymbolCount returns the number of interned symbols.
func (vm *VM) SymbolCount() int {
	return vm.symbols.n
}
