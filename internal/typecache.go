package internal

import (
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// writeKey appends a key identifying t up to type equality for leaf types
// and egality for values. Tuples, unions, and bits values are encoded
// structurally; everything else by identity.
func (vm *VM) writeKey(b *strings.Builder, t *Object) {
	switch v := t.Value.(type) {
	case []*Object:
		b.WriteByte('(')
		for i, e := range v {
			if i > 0 {
				b.WriteByte(',')
			}
			vm.writeKey(b, e)
		}
		b.WriteByte(')')
	case []byte:
		b.WriteByte('v')
		b.WriteString(strconv.FormatUint(uint64(t.typ.id), 36))
		b.WriteByte(':')
		b.WriteString(hex.EncodeToString(v))
	case string:
		b.WriteString(strconv.Quote(v))
	default:
		b.WriteByte('#')
		b.WriteString(strconv.FormatUint(uint64(t.id), 36))
	}
}

func (vm *VM) typesKey(ts []*Object) string {
	var b strings.Builder
	for i, t := range ts {
		if i > 0 {
			b.WriteByte(';')
		}
		vm.writeKey(&b, t)
	}
	return b.String()
}

// ApplyType instantiates a parametric type with the given parameters. Each
// distinct parameter list yields the same object every time.
func (vm *VM) ApplyType(tc *Object, params ...*Object) *Object {
	fr := vm.GCPush(&tc)
	defer fr.Pop()
	pf := vm.GCPushValues(params...)
	defer pf.Pop()
	dt := vm.DataTypeOf(tc)
	tn := dt.Name.Value.(*TypeName)
	primary := tn.Primary
	tvars := TupleElems(primary.Value.(*DataType).Parameters)
	if len(params) != len(tvars) {
		return vm.Errorf("wrong number of parameters for type %s: expected %d, got %d", vm.SymbolName(tn.Name), len(tvars), len(params))
	}
	if len(params) == 0 {
		return primary
	}
	env := &TypeEnv{}
	for i, p := range params {
		tv := tvars[i]
		if tv.typ != vm.TypeVarType {
			return vm.Errorf("type %s is not parametric in position %d", vm.SymbolName(tn.Name), i+1)
		}
		if !vm.withinBounds(p, tv) {
			vm.RaiseTypeError(vm.SymbolName(tn.Name), vm.SymbolName(tv.Value.(*TypeVar).Name), tv.Value.(*TypeVar).Ub, p)
		}
		env.bind(tv, p, true)
	}
	key := vm.typesKey(params)
	if t, ok := tn.cache[key]; ok {
		return t
	}
	return vm.instantiate(primary, env, key)
}

// instantiate creates a new instantiation of a primary type. The new type is
// entered into the cache before its supertype and field types are
// instantiated so that self-referential definitions terminate.
func (vm *VM) instantiate(primary *Object, env *TypeEnv, key string) *Object {
	pdt := primary.Value.(*DataType)
	tn := pdt.Name.Value.(*TypeName)
	sl := vm.GCPushSlots(3)
	defer sl.Pop()
	sl.Slots[0] = vm.NewTuple(env.Vals...)
	ndt := &DataType{
		Name:       pdt.Name,
		Super:      pdt.Super,
		Parameters: sl.Slots[0],
		Names:      pdt.Names,
		Types:      pdt.Types,
		Abstract:   pdt.Abstract,
		Mutable:    pdt.Mutable,
		opaque:     pdt.opaque,
		laidOut:    pdt.opaque,
		UID:        vm.nextTypeUID(),
	}
	t := vm.alloc(vm.DataTypeType, (16+len(pdt.Names))*wordSize, ndt)
	sl.Slots[1] = t
	tn.cache[key] = t
	if pdt.Super != nil && vm.HasTypeVars(pdt.Super) {
		ndt.Super = vm.InstantiateTypeWith(pdt.Super, env)
	}
	if vm.HasTypeVars(pdt.Types) {
		ndt.Types = vm.InstantiateTypeWith(pdt.Types, env)
	}
	if !ndt.Abstract && !ndt.opaque && !vm.HasTypeVars(ndt.Parameters) && !vm.HasTypeVars(ndt.Types) {
		vm.finalizeLayout(t)
	}
	return t
}

// InstantiateTypeWith substitutes the bindings of env into t.
func (vm *VM) InstantiateTypeWith(t *Object, env *TypeEnv) *Object {
	if !vm.HasTypeVars(t) {
		return t
	}
	fr := vm.GCPush(&t)
	defer fr.Pop()
	switch t.typ {
	case vm.TypeVarType:
		if v := env.Lookup(t); v != nil {
			return v
		}
		return t
	case vm.TupleType:
		elems := TupleElems(t)
		sl := vm.GCPushSlots(len(elems))
		defer sl.Pop()
		for i, e := range elems {
			sl.Slots[i] = vm.InstantiateTypeWith(e, env)
		}
		return vm.NewTuple(sl.Slots...)
	case vm.UnionTypeType:
		elems := UnionMembers(t)
		sl := vm.GCPushSlots(len(elems))
		defer sl.Pop()
		for i, e := range elems {
			sl.Slots[i] = vm.InstantiateTypeWith(e, env)
		}
		return vm.TypeUnion(sl.Slots...)
	case vm.DataTypeType:
		dt := t.Value.(*DataType)
		params := TupleElems(dt.Parameters)
		sl := vm.GCPushSlots(len(params))
		defer sl.Pop()
		for i, p := range params {
			sl.Slots[i] = vm.InstantiateTypeWith(p, env)
		}
		if vm.HasTypeVarsIn(sl.Slots) {
			// Partially instantiated types are not cached.
			return vm.partial(t, sl.Slots)
		}
		return vm.ApplyType(dt.Name.Value.(*TypeName).Primary, sl.Slots...)
	}
	return t
}

// HasTypeVarsIn reports whether any element of ts mentions a type variable.
func (vm *VM) HasTypeVarsIn(ts []*Object) bool {
	for _, t := range ts {
		if vm.HasTypeVars(t) {
			return true
		}
	}
	return false
}

// partial creates an uncached instantiation of a parametric type whose
// parameters still mention type variables.
func (vm *VM) partial(t *Object, params []*Object) *Object {
	fr := vm.GCPush(&t)
	defer fr.Pop()
	sl := vm.GCPushSlots(1)
	defer sl.Pop()
	sl.Slots[0] = vm.NewTuple(params...)
	dt := *t.Value.(*DataType)
	dt.Parameters = sl.Slots[0]
	dt.UID = vm.nextTypeUID()
	dt.Fields = nil
	dt.laidOut = dt.opaque
	return vm.alloc(vm.DataTypeType, (16+len(dt.Names))*wordSize, &dt)
}

// TypeUnion returns the union of the given types. Nested unions are
// flattened, members subsumed by other members are dropped, and the result
// is canonical: equal member sets yield the same object. A union of one type
// is that type, and the empty union is Union{}.
func (vm *VM) TypeUnion(types ...*Object) *Object {
	fr := vm.GCPushValues(types...)
	defer fr.Pop()
	var flat []*Object
	var add func(t *Object)
	add = func(t *Object) {
		if t.typ == vm.UnionTypeType {
			for _, m := range UnionMembers(t) {
				add(m)
			}
			return
		}
		flat = append(flat, t)
	}
	for _, t := range types {
		if !vm.IsType(t) {
			vm.RaiseTypeError("Union", "", vm.Any, t)
		}
		add(t)
	}
	members := make([]*Object, 0, len(flat))
	for i, t := range flat {
		keep := true
		for j, u := range flat {
			if i == j {
				continue
			}
			// Of mutually subtyped members, keep the first.
			if vm.Subtype(t, u) && (!vm.Subtype(u, t) || j < i) {
				keep = false
				break
			}
		}
		if keep {
			members = append(members, t)
		}
	}
	switch len(members) {
	case 0:
		return vm.Bottom
	case 1:
		return members[0]
	}
	sort.Slice(members, func(i, j int) bool { return members[i].id < members[j].id })
	key := vm.typesKey(members)
	if u, ok := vm.unionCache[key]; ok {
		return u
	}
	mf := vm.GCPushValues(members...)
	defer mf.Pop()
	sl := vm.GCPushSlots(1)
	defer sl.Pop()
	sl.Slots[0] = vm.NewTuple(members...)
	u := vm.NewUnionType(sl.Slots[0])
	vm.unionCache[key] = u
	return u
}

// Intersection returns the greatest type that is a subtype of both a and b,
// or Union{} if they share no values. Because abstract types have single
// inheritance, unrelated data types are disjoint.
func (vm *VM) Intersection(a, b *Object) *Object {
	if vm.Subtype(a, b) {
		return a
	}
	if vm.Subtype(b, a) {
		return b
	}
	fr := vm.GCPush(&a, &b)
	defer fr.Pop()
	switch {
	case a.typ == vm.UnionTypeType:
		return vm.intersectMembers(UnionMembers(a), b)
	case b.typ == vm.UnionTypeType:
		return vm.intersectMembers(UnionMembers(b), a)
	case a.typ == vm.TypeVarType:
		return vm.Intersection(a.Value.(*TypeVar).Ub, b)
	case b.typ == vm.TypeVarType:
		return vm.Intersection(a, b.Value.(*TypeVar).Ub)
	case a.typ == vm.TupleType && b.typ == vm.TupleType:
		return vm.intersectTuples(TupleElems(a), TupleElems(b))
	case a.typ == vm.DataTypeType && b.typ == vm.DataTypeType:
		ad, bd := a.Value.(*DataType), b.Value.(*DataType)
		if ad.Name != bd.Name {
			return vm.Bottom
		}
		ap, bp := TupleElems(ad.Parameters), TupleElems(bd.Parameters)
		sl := vm.GCPushSlots(len(ap))
		defer sl.Pop()
		for i := range ap {
			switch {
			case vm.TypesEqual(ap[i], bp[i]):
				sl.Slots[i] = ap[i]
			case bp[i].typ == vm.TypeVarType && vm.withinBounds(ap[i], bp[i]):
				sl.Slots[i] = ap[i]
			case ap[i].typ == vm.TypeVarType && vm.withinBounds(bp[i], ap[i]):
				sl.Slots[i] = bp[i]
			default:
				return vm.Bottom
			}
		}
		if vm.HasTypeVarsIn(sl.Slots) {
			return vm.partial(a, sl.Slots)
		}
		return vm.ApplyType(ad.Name.Value.(*TypeName).Primary, sl.Slots...)
	}
	return vm.Bottom
}

func (vm *VM) intersectMembers(members []*Object, t *Object) *Object {
	sl := vm.GCPushSlots(len(members))
	defer sl.Pop()
	for i, m := range members {
		sl.Slots[i] = vm.Intersection(m, t)
	}
	return vm.TypeUnion(sl.Slots...)
}

// intersectTuples intersects tuple types position by position, expanding
// variadic tails as needed.
func (vm *VM) intersectTuples(a, b []*Object) *Object {
	la, va := vm.tupleShape(a)
	lb, vb := vm.tupleShape(b)
	n := la
	if lb > n {
		n = lb
	}
	if !va && n > la || !vb && n > lb {
		return vm.Bottom
	}
	if !va && !vb && la != lb {
		return vm.Bottom
	}
	tail := va && vb
	size := n
	if tail {
		size++
	}
	sl := vm.GCPushSlots(size)
	defer sl.Pop()
	for i := 0; i < n; i++ {
		x := vm.Intersection(tupleElemAt(vm, a, i), tupleElemAt(vm, b, i))
		if x == vm.Bottom {
			return vm.Bottom
		}
		sl.Slots[i] = x
	}
	if tail {
		x := vm.Intersection(varargElem(a[len(a)-1]), varargElem(b[len(b)-1]))
		if x == vm.Bottom {
			// Only the fixed prefix remains.
			return vm.NewTuple(sl.Slots[:n]...)
		}
		sl.Slots[n] = vm.NewVararg(x)
	}
	return vm.NewTuple(sl.Slots...)
}

// tupleShape returns the number of fixed elements of a tuple type and
// whether it ends in a Vararg.
func (vm *VM) tupleShape(elems []*Object) (int, bool) {
	if len(elems) > 0 && vm.isVararg(elems[len(elems)-1]) {
		return len(elems) - 1, true
	}
	return len(elems), false
}

// tupleElemAt returns the type of position i of a tuple type, looking into a
// trailing Vararg when needed.
func tupleElemAt(vm *VM, elems []*Object, i int) *Object {
	if n, va := vm.tupleShape(elems); va && i >= n {
		return varargElem(elems[n])
	}
	return elems[i]
}
