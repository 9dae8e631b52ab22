package internal

import (
	"fmt"
	"strings"

	"github.com/tliron/commonlog"
	"github.com/zephyrtronium/contains"
)

var dispatchLog = commonlog.GetLogger("jlrt.dispatch")

// Method is one definition in a generic function.
type Method struct {
	// Sig is the signature tuple type.
	Sig *Object
	// TVars is a tuple of the type variables the signature mentions.
	TVars *Object
	// Func is the implementation; its Linfo is the method's LambdaInfo.
	Func *Object
	// Va is true if the signature ends in a Vararg.
	Va bool
}

// MethodTable is the payload of generic functions' method tables.
type MethodTable struct {
	Name   *Object
	Module *Object
	// Defs is ordered most specific first. Mutually unordered signatures
	// keep declaration order.
	Defs []*Method
	// cache maps concrete argument type keys to specialized functions.
	cache map[string]*Object
	// invokes caches the specializations selected by Invoke, keyed by the
	// requested signature and the argument types.
	invokes map[string]*Object
	MaxArgs int

	Hits   uint64
	Misses uint64
}

// CacheLen returns the number of cached specializations.
func (mt *MethodTable) CacheLen() int {
	return len(mt.cache)
}

// InvokeCacheLen returns the number of specializations cached by Invoke.
func (mt *MethodTable) InvokeCacheLen() int {
	return len(mt.invokes)
}

func (mt *MethodTable) clearCaches() {
	mt.cache = make(map[string]*Object)
	mt.invokes = make(map[string]*Object)
}

// NewGenericFunction creates a generic function named name in module and
// binds it there. A nil module means the current module.
func (vm *VM) NewGenericFunction(module *Object, name string) *Object {
	if module == nil {
		module = vm.CurrentModule
	}
	fr := vm.GCPush(&module)
	defer fr.Pop()
	sym := vm.Symbol(name)
	sl := vm.GCPushSlots(2)
	defer sl.Pop()
	sl.Slots[0] = vm.alloc(vm.MethodTableType, 8*wordSize, &MethodTable{Name: sym, Module: module, cache: make(map[string]*Object), invokes: make(map[string]*Object)})
	sl.Slots[1] = vm.NewLambdaInfo(nil, nil)
	sl.Slots[1].Value.(*LambdaInfo).Name = sym
	gf := vm.NewFunction(applyGeneric, sl.Slots[0], sl.Slots[1])
	vm.Bindings.SetBinding(module, sym, gf)
	return gf
}

// GenericFunction returns the generic function bound to name in module,
// creating it if there is none.
func (vm *VM) GenericFunction(module *Object, name string) *Object {
	if module == nil {
		module = vm.CurrentModule
	}
	if f, ok := vm.Bindings.LookupBinding(module, vm.Symbol(name)); ok && vm.IsGeneric(f) {
		return f
	}
	return vm.NewGenericFunction(module, name)
}

// IsGeneric reports whether f is a generic function.
func (vm *VM) IsGeneric(f *Object) bool {
	fn, ok := f.Value.(*Function)
	if !ok || fn.Env == nil {
		return false
	}
	_, ok = fn.Env.Value.(*MethodTable)
	return ok
}

// MethodTableOf returns the method table of a generic function.
func (vm *VM) MethodTableOf(gf *Object) *MethodTable {
	if !vm.IsGeneric(gf) {
		vm.RaiseTypeError("methods", "", vm.FunctionType, gf)
	}
	return gf.Value.(*Function).Env.Value.(*MethodTable)
}

// AddMethod defines a method of gf for signature sig, a tuple type, with the
// given implementation function and tuple of type variables. A method with a
// signature equal to an existing one replaces it. Adding a method clears the
// dispatch caches.
func (vm *VM) AddMethod(gf, sig, impl, tvars *Object) {
	fr := vm.GCPush(&gf, &sig, &impl, &tvars)
	defer fr.Pop()
	mt := vm.MethodTableOf(gf)
	if sig.typ != vm.TupleType || !vm.IsType(sig) {
		vm.RaiseTypeError(vm.SymbolName(mt.Name), "method signature", vm.TupleType, sig)
		return
	}
	vm.FunctionOf(impl)
	if tvars == nil {
		tvars = vm.EmptyTuple
	}
	elems := TupleElems(sig)
	m := &Method{Sig: sig, TVars: tvars, Func: impl}
	m.Va = len(elems) > 0 && vm.isVararg(elems[len(elems)-1])
	if li := impl.Value.(*Function).Linfo; li != nil {
		l := li.Value.(*LambdaInfo)
		if l.Name == nil {
			l.Name = mt.Name
		}
	}

	vm.SigatomicBegin()
	defer vm.SigatomicEnd()
	for _, d := range mt.Defs {
		if vm.TypesEqual(d.Sig, sig) && vm.TypesEqual(d.TVars, tvars) {
			dispatchLog.Infof("method %s%s overwritten", vm.SymbolName(mt.Name), vm.TypeString(sig))
			d.Func = impl
			d.Sig = sig
			mt.clearCaches()
			return
		}
	}
	vm.warnAmbiguous(mt, m)
	at := len(mt.Defs)
	for i, d := range mt.Defs {
		if vm.MoreSpecific(sig, d.Sig) {
			at = i
			break
		}
	}
	mt.Defs = append(mt.Defs, nil)
	copy(mt.Defs[at+1:], mt.Defs[at:])
	mt.Defs[at] = m
	if n := len(elems); n > mt.MaxArgs {
		mt.MaxArgs = n
	}
	mt.clearCaches()
}

// warnAmbiguous logs when m is ambiguous with an existing method and no
// method covers their intersection. Calls in the intersection will raise
// AmbiguousMethodError.
func (vm *VM) warnAmbiguous(mt *MethodTable, m *Method) {
	for _, d := range mt.Defs {
		if vm.MoreSpecific(m.Sig, d.Sig) || vm.MoreSpecific(d.Sig, m.Sig) {
			continue
		}
		isect := vm.Intersection(m.Sig, d.Sig)
		if isect == vm.Bottom {
			continue
		}
		fr := vm.GCPush(&isect)
		covered := false
		for _, e := range mt.Defs {
			if vm.Subtype(isect, e.Sig) && vm.MoreSpecific(e.Sig, d.Sig) {
				covered = true
				break
			}
		}
		fr.Pop()
		if !covered {
			dispatchLog.Warningf("method %s%s is ambiguous with %s%s", vm.SymbolName(mt.Name), vm.TypeString(m.Sig), vm.SymbolName(mt.Name), vm.TypeString(d.Sig))
		}
	}
}

type match struct {
	m   *Method
	env *TypeEnv
}

// Dispatch returns the specialized implementation of gf for the given
// concrete argument types. It raises MethodError if no method applies and
// AmbiguousMethodError if several most specific methods apply.
func (vm *VM) Dispatch(gf *Object, types []*Object) *Object {
	mt := vm.MethodTableOf(gf)
	tf := vm.GCPushValues(types...)
	defer tf.Pop()
	key := vm.typesKey(types)
	if f, ok := mt.cache[key]; ok {
		mt.Hits++
		return f
	}
	mt.Misses++
	var matches []match
	for _, m := range mt.Defs {
		env := &TypeEnv{}
		if vm.tupleSubtype(types, TupleElems(m.Sig), env, false) {
			matches = append(matches, match{m: m, env: env})
		}
	}
	if len(matches) == 0 {
		sl := vm.GCPushSlots(1)
		defer sl.Pop()
		sl.Slots[0] = vm.NewTuple(types...)
		return vm.RaiseMethodError(mt.Name, sl.Slots[0])
	}
	best := vm.maximal(matches)
	if len(best) > 1 {
		return vm.raiseAmbiguous(mt, types, best)
	}
	f := vm.specialize(best[0].m, types, best[0].env)
	mt.cache[key] = f
	return f
}

// Invoke calls gf on args with the most specific method applicable to the
// tuple type types, which may be less specific than the method the
// arguments' own types select. The arguments must be instances of types.
func (vm *VM) Invoke(gf, types *Object, args ...*Object) *Object {
	fr := vm.GCPush(&gf, &types)
	defer fr.Pop()
	mt := vm.MethodTableOf(gf)
	if types.typ != vm.TupleType || !vm.IsType(types) {
		return vm.RaiseTypeError("invoke", "signature", vm.TupleType, types)
	}
	af := vm.GCPushValues(args...)
	defer af.Pop()
	sl := vm.GCPushSlots(len(args))
	defer sl.Pop()
	for i, a := range af.Slots {
		sl.Slots[i] = vm.argType(a)
	}
	want := TupleElems(types)
	if !vm.tupleSubtype(sl.Slots, want, nil, false) {
		return vm.RaiseTypeError("invoke", "argument types", types, vm.NewTuple(af.Slots...))
	}
	key := vm.typesKey(want) + "|" + vm.typesKey(sl.Slots)
	f, ok := mt.invokes[key]
	if !ok {
		m := vm.selectMethod(mt, want)
		env := &TypeEnv{}
		vm.tupleSubtype(sl.Slots, TupleElems(m.Sig), env, false)
		f = vm.specialize(m, sl.Slots, env)
		mt.invokes[key] = f
		dispatchLog.Debugf("invoke %s%s for %s", vm.SymbolName(mt.Name), vm.TypeString(types), vm.typesKey(sl.Slots))
	}
	return f.Value.(*Function).Fptr(vm, f, af.Slots)
}

// selectMethod returns the most specific method of mt applicable to every
// tuple of the given types.
func (vm *VM) selectMethod(mt *MethodTable, types []*Object) *Method {
	var matches []match
	for _, m := range mt.Defs {
		if vm.tupleSubtype(types, TupleElems(m.Sig), &TypeEnv{}, false) {
			matches = append(matches, match{m: m})
		}
	}
	if len(matches) == 0 {
		sl := vm.GCPushSlots(1)
		defer sl.Pop()
		sl.Slots[0] = vm.NewTuple(types...)
		vm.RaiseMethodError(mt.Name, sl.Slots[0])
		return nil
	}
	best := vm.maximal(matches)
	if len(best) > 1 {
		vm.raiseAmbiguous(mt, types, best)
		return nil
	}
	return best[0].m
}

// maximal returns the matches not strictly less specific than any other, in
// definition order.
func (vm *VM) maximal(matches []match) []match {
	var best []match
	for _, c := range matches {
		dominated := false
		for _, o := range matches {
			if o.m != c.m && vm.MoreSpecific(o.m.Sig, c.m.Sig) {
				dominated = true
				break
			}
		}
		if !dominated {
			best = append(best, c)
		}
	}
	return best
}

func (vm *VM) raiseAmbiguous(mt *MethodTable, types []*Object, best []match) *Object {
	seen := contains.Set{}
	sl := vm.GCPushSlots(len(best) + 1)
	defer sl.Pop()
	n := 0
	for _, b := range best {
		if seen.Add(b.m.Sig.UniqueID()) {
			sl.Slots[n] = b.m.Sig
			n++
		}
	}
	sl.Slots[len(best)] = vm.NewTuple(types...)
	cands := vm.NewTuple(sl.Slots[:n]...)
	return vm.RaiseAmbiguousMethodError(mt.Name, sl.Slots[len(best)], cands)
}

// specialize returns a function implementing m for exactly the given
// argument types, compiling a new specialization if needed.
func (vm *VM) specialize(m *Method, types []*Object, env *TypeEnv) *Object {
	impl := m.Func.Value.(*Function)
	if impl.Linfo == nil {
		return m.Func
	}
	li := impl.Linfo.Value.(*LambdaInfo)
	for _, s := range li.Specializations {
		st := TupleElems(s.Value.(*LambdaInfo).SpecTypes)
		if typesIdentical(vm, st, types) {
			return vm.NewFunction(s.Value.(*LambdaInfo).Fptr, impl.Env, s)
		}
	}
	sl := vm.GCPushSlots(4)
	defer sl.Pop()
	sl.Slots[0] = vm.NewTuple(types...)
	sp := make([]*Object, 0, 2*len(env.Vars))
	for i, tv := range env.Vars {
		sp = append(sp, tv.Value.(*TypeVar).Name, env.Vals[i])
	}
	sl.Slots[1] = vm.NewTuple(sp...)
	sl.Slots[2] = vm.NewLambdaInfo(li.AST, sl.Slots[1])
	spec := sl.Slots[2].Value.(*LambdaInfo)
	spec.SpecTypes = sl.Slots[0]
	spec.Def = impl.Linfo
	spec.Name = li.Name
	spec.Module = li.Module
	fptr, err := vm.Compiler.Compile(vm, sl.Slots[2])
	if err != nil {
		return vm.Errorf("%v", err)
	}
	spec.Fptr = fptr
	li.Specializations = append(li.Specializations, sl.Slots[2])
	dispatchLog.Debugf("specialized %s for %s", vm.lambdaName(sl.Slots[2]), vm.TypeString(sl.Slots[0]))
	return vm.NewFunction(fptr, impl.Env, sl.Slots[2])
}

func typesIdentical(vm *VM, a, b []*Object) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !vm.TypesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// applyGeneric is the entry point of every generic function.
func applyGeneric(vm *VM, f *Object, args []*Object) *Object {
	sl := vm.GCPushSlots(len(args))
	defer sl.Pop()
	for i, a := range args {
		sl.Slots[i] = vm.argType(a)
	}
	spec := vm.Dispatch(f, sl.Slots)
	return spec.Value.(*Function).Fptr(vm, spec, args)
}

// AddBuiltinMethod defines a method of gf implemented in Go.
func (vm *VM) AddBuiltinMethod(gf *Object, fptr Fptr, sig ...*Object) {
	fr := vm.GCPush(&gf)
	defer fr.Pop()
	sl := vm.GCPushSlots(3)
	defer sl.Pop()
	sl.Slots[0] = vm.NewTuple(sig...)
	sl.Slots[1] = vm.NewLambdaInfo(nil, nil)
	sl.Slots[1].Value.(*LambdaInfo).Native = fptr
	sl.Slots[2] = vm.NewFunction(fptr, nil, sl.Slots[1])
	vm.AddMethod(gf, sl.Slots[0], sl.Slots[2], nil)
}

// ShowMethodTable describes the methods of a generic function in dispatch
// order.
func (vm *VM) ShowMethodTable(gf *Object) string {
	mt := vm.MethodTableOf(gf)
	var b strings.Builder
	name := vm.SymbolName(mt.Name)
	fmt.Fprintf(&b, "# %d method(s) for generic function %s:\n", len(mt.Defs), name)
	for _, m := range mt.Defs {
		b.WriteString(name)
		b.WriteString(vm.argsString(m.Sig))
		if tv := TupleElems(m.TVars); len(tv) > 0 {
			b.WriteString(" where ")
			for i, v := range tv {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(vm.TypeString(v))
			}
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "# cache: %d entries, %d hits, %d misses\n", len(mt.cache), mt.Hits, mt.Misses)
	return b.String()
}
