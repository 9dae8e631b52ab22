package internal

import (
	"github.com/zephyrtronium/contains"
)

// TypeEnv accumulates type variable bindings during matching.
type TypeEnv struct {
	Vars []*Object
	Vals []*Object
	// fixed marks bindings made by an invariant occurrence, which may not
	// change afterward.
	fixed []bool
}

// Lookup returns the value bound to tv, or nil.
func (e *TypeEnv) Lookup(tv *Object) *Object {
	if i := e.index(tv); i >= 0 {
		return e.Vals[i]
	}
	return nil
}

func (e *TypeEnv) index(tv *Object) int {
	for i, v := range e.Vars {
		if v == tv {
			return i
		}
	}
	return -1
}

func (e *TypeEnv) bind(tv, val *Object, fixed bool) {
	e.Vars = append(e.Vars, tv)
	e.Vals = append(e.Vals, val)
	e.fixed = append(e.fixed, fixed)
}

func (e *TypeEnv) snapshot() TypeEnv {
	if e == nil {
		return TypeEnv{}
	}
	return TypeEnv{
		Vars:  append([]*Object(nil), e.Vars...),
		Vals:  append([]*Object(nil), e.Vals...),
		fixed: append([]bool(nil), e.fixed...),
	}
}

func (e *TypeEnv) restore(s TypeEnv) {
	if e == nil {
		return
	}
	e.Vars = append(e.Vars[:0], s.Vars...)
	e.Vals = append(e.Vals[:0], s.Vals...)
	e.fixed = append(e.fixed[:0], s.fixed...)
}

// Subtype reports whether a <: b. Type variables appearing in b match any
// type within their bounds.
func (vm *VM) Subtype(a, b *Object) bool {
	return vm.subtype(a, b, nil, false)
}

// TypeMatch reports whether a <: b, binding the type variables of b
// consistently. The returned environment holds the bindings.
func (vm *VM) TypeMatch(a, b *Object) (*TypeEnv, bool) {
	env := &TypeEnv{}
	if !vm.subtype(a, b, env, false) {
		return nil, false
	}
	return env, true
}

// TypesEqual reports whether a and b denote the same type, or are egal if
// they are not types.
func (vm *VM) TypesEqual(a, b *Object) bool {
	if a == b {
		return true
	}
	if !vm.IsType(a) || !vm.IsType(b) {
		return vm.Egal(a, b)
	}
	return vm.subtype(a, b, nil, false) && vm.subtype(b, a, nil, false)
}

// subtype is the core of the subtype and matching relations. With env
// non-nil, type variables in b are bound in env. With invariant set, a must
// equal b exactly rather than merely be a subtype.
func (vm *VM) subtype(a, b *Object, env *TypeEnv, invariant bool) bool {
	if a == b {
		return true
	}
	if invariant && !vm.HasTypeVars(b) {
		return vm.TypesEqual(a, b)
	}
	if !invariant && b == vm.Any {
		return true
	}
	if b.typ == vm.TypeVarType {
		if env == nil {
			return vm.withinBounds(a, b)
		}
		if invariant {
			return vm.bindInvariant(env, b, a)
		}
		return vm.bindCovariant(env, b, a)
	}
	if a.typ == vm.TypeVarType {
		return vm.subtype(a.Value.(*TypeVar).Ub, b, env, invariant)
	}
	if a.typ == vm.UnionTypeType {
		// Union{} has no members and is a subtype of everything.
		for _, m := range UnionMembers(a) {
			if !vm.subtype(m, b, env, invariant) {
				return false
			}
		}
		return true
	}
	if b.typ == vm.UnionTypeType {
		s := env.snapshot()
		for _, m := range UnionMembers(b) {
			if vm.subtype(a, m, env, invariant) {
				return true
			}
			env.restore(s)
		}
		return false
	}
	if a.typ == vm.TupleType {
		if b == vm.TupleType {
			return !invariant
		}
		if b.typ != vm.TupleType {
			return false
		}
		return vm.tupleSubtype(TupleElems(a), TupleElems(b), env, invariant)
	}
	if vm.isTypeType(a) && !vm.isTypeType(b) {
		if invariant {
			return false
		}
		p := typeTypeParam(a)
		if p.typ == vm.TypeVarType {
			// With T free, Type{T} stands for the kinds of its instances.
			return vm.subtype(vm.DataTypeType, b, env, false)
		}
		return vm.subtype(p.typ, b, env, false)
	}
	if b.typ == vm.TupleType || a.typ != vm.DataTypeType || b.typ != vm.DataTypeType {
		return false
	}
	bd := b.Value.(*DataType)
	for t := a; ; {
		d := t.Value.(*DataType)
		if d.Name == bd.Name {
			return vm.paramsMatch(d.Parameters, bd.Parameters, env)
		}
		if invariant || t == vm.Any {
			return false
		}
		t = d.Super
	}
}

// tupleSubtype compares tuple types element by element. A Vararg{T} final
// element of the parent matches any number of trailing elements of type T. A
// variadic child only matches a variadic parent.
func (vm *VM) tupleSubtype(c, p []*Object, env *TypeEnv, invariant bool) bool {
	ci, pi := 0, 0
	for {
		pseq := pi < len(p) && vm.isVararg(p[pi])
		if ci >= len(c) {
			return pi >= len(p) || (pseq && !invariant)
		}
		if pi >= len(p) {
			return false
		}
		cseq := vm.isVararg(c[ci])
		if cseq && !pseq || invariant && cseq != pseq {
			return false
		}
		ce, pe := c[ci], p[pi]
		if cseq {
			ce = varargElem(ce)
		}
		if pseq {
			pe = varargElem(pe)
		}
		if !vm.subtype(ce, pe, env, invariant) {
			return false
		}
		if cseq {
			// Both are variadic.
			return true
		}
		ci++
		if !pseq {
			pi++
		}
	}
}

// paramsMatch compares the parameters of two instantiations of the same type
// family. Parameters are invariant.
func (vm *VM) paramsMatch(ap, bp *Object, env *TypeEnv) bool {
	ae, be := TupleElems(ap), TupleElems(bp)
	if len(ae) != len(be) {
		return false
	}
	for i := range ae {
		a, b := ae[i], be[i]
		if a == b {
			continue
		}
		if !vm.IsType(a) || !vm.IsType(b) {
			if b.typ == vm.TypeVarType {
				if env == nil {
					if !vm.withinBounds(a, b) {
						return false
					}
					continue
				}
				if !vm.bindInvariant(env, b, a) {
					return false
				}
				continue
			}
			if !vm.Egal(a, b) {
				return false
			}
			continue
		}
		if !vm.subtype(a, b, env, true) {
			return false
		}
	}
	return true
}

// withinBounds reports whether a satisfies the bounds of the type variable
// tv. Non-type values satisfy only unbounded variables.
func (vm *VM) withinBounds(a, tv *Object) bool {
	v := tv.Value.(*TypeVar)
	if !vm.IsType(a) {
		return v.Ub == vm.Any
	}
	if a.typ == vm.TypeVarType {
		// A variable on the left stands for any type within its own bounds.
		return vm.Subtype(a.Value.(*TypeVar).Ub, v.Ub)
	}
	return vm.Subtype(a, v.Ub) && vm.Subtype(v.Lb, a)
}

// bindCovariant matches a against tv in a position where subtypes are
// acceptable. A binding fixed by an invariant occurrence must contain a.
// Otherwise the binding widens to cover every occurrence but never narrows;
// distinct concrete types fail.
func (vm *VM) bindCovariant(env *TypeEnv, tv, a *Object) bool {
	i := env.index(tv)
	if i < 0 {
		if !vm.withinBounds(a, tv) {
			return false
		}
		env.bind(tv, a, false)
		return true
	}
	cur := env.Vals[i]
	if vm.TypesEqual(cur, a) {
		return true
	}
	if !vm.IsType(cur) || !vm.IsType(a) {
		return false
	}
	if env.fixed[i] {
		return vm.Subtype(a, cur)
	}
	if vm.IsLeafType(cur) && vm.IsLeafType(a) {
		return false
	}
	if vm.Subtype(a, cur) {
		return true
	}
	if vm.Subtype(cur, a) && vm.withinBounds(a, tv) {
		env.Vals[i] = a
		return true
	}
	return false
}

// bindInvariant matches a against tv in a position requiring equality. A
// binding from covariant occurrences only may be replaced by a wider a,
// which then becomes fixed.
func (vm *VM) bindInvariant(env *TypeEnv, tv, a *Object) bool {
	i := env.index(tv)
	if i < 0 {
		if !vm.withinBounds(a, tv) {
			return false
		}
		env.bind(tv, a, true)
		return true
	}
	cur := env.Vals[i]
	if vm.TypesEqual(cur, a) {
		env.fixed[i] = true
		return true
	}
	if env.fixed[i] || !vm.IsType(cur) || !vm.IsType(a) {
		return false
	}
	if vm.Subtype(cur, a) && vm.withinBounds(a, tv) {
		env.Vals[i] = a
		env.fixed[i] = true
		return true
	}
	return false
}

// MoreSpecific reports whether a is strictly more specific than b: every
// value matching a matches b but not conversely. When each is at least as
// specific as the other, the one constraining more repeated type variables
// wins. The relation is a partial order; neither may be more specific.
func (vm *VM) MoreSpecific(a, b *Object) bool {
	ab := vm.specLE(a, b)
	ba := vm.specLE(b, a)
	switch {
	case ab && !ba:
		return true
	case ab && ba:
		return typeVarRepeats(vm, a) > typeVarRepeats(vm, b)
	}
	return false
}

func (vm *VM) specLE(a, b *Object) bool {
	var env *TypeEnv
	if vm.HasTypeVars(b) {
		env = &TypeEnv{}
	}
	return vm.subtype(a, b, env, false)
}

// typeVarRepeats counts occurrences of type variables in t beyond the first
// of each.
func typeVarRepeats(vm *VM, t *Object) int {
	seen := contains.Set{}
	n := 0
	var walk func(*Object)
	walk = func(t *Object) {
		switch t.typ {
		case vm.TypeVarType:
			if !seen.Add(t.UniqueID()) {
				n++
			}
		case vm.TupleType:
			for _, e := range TupleElems(t) {
				walk(e)
			}
		case vm.UnionTypeType:
			for _, e := range UnionMembers(t) {
				walk(e)
			}
		case vm.DataTypeType:
			for _, e := range TupleElems(t.Value.(*DataType).Parameters) {
				walk(e)
			}
		}
	}
	walk(t)
	return n
}

// Egal reports whether two values are indistinguishable: identical objects,
// bits values of the same type and contents, equal strings, or tuples of
// egal elements.
func (vm *VM) Egal(a, b *Object) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.typ != b.typ {
		return false
	}
	switch x := a.Value.(type) {
	case []byte:
		y, ok := b.Value.([]byte)
		return ok && string(x) == string(y)
	case string:
		y, ok := b.Value.(string)
		return ok && x == y
	case []*Object:
		y := b.Value.([]*Object)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !vm.Egal(x[i], y[i]) {
				return false
			}
		}
		return true
	case *Struct:
		dt := a.typ.Value.(*DataType)
		if dt.Mutable {
			return false
		}
		y := b.Value.(*Struct)
		if string(x.Bits) != string(y.Bits) || len(x.Refs) != len(y.Refs) {
			return false
		}
		for i := range x.Refs {
			if !vm.Egal(x.Refs[i], y.Refs[i]) {
				return false
			}
		}
		return true
	}
	return false
}
