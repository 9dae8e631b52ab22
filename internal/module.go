package internal

// BindingStore holds the global bindings of modules. The runtime anchors
// method tables and type names under modules but is otherwise agnostic to
// namespace rules.
type BindingStore interface {
	// LookupBinding returns the value bound to sym in module.
	LookupBinding(module, sym *Object) (*Object, bool)
	// SetBinding binds sym to val in module.
	SetBinding(module, sym, val *Object)
	// Roots calls mark for every module and value the store holds.
	Roots(mark func(*Object))
}

// memoryBindings is the default BindingStore.
type memoryBindings struct {
	m map[*Object]map[*Object]*Object
}

// NewMemoryBindings returns an empty in-memory BindingStore.
func NewMemoryBindings() BindingStore {
	return &memoryBindings{m: make(map[*Object]map[*Object]*Object)}
}

func (b *memoryBindings) LookupBinding(module, sym *Object) (*Object, bool) {
	v, ok := b.m[module][sym]
	return v, ok
}

func (b *memoryBindings) SetBinding(module, sym, val *Object) {
	mb := b.m[module]
	if mb == nil {
		mb = make(map[*Object]*Object)
		b.m[module] = mb
	}
	mb[sym] = val
}

func (b *memoryBindings) Roots(mark func(*Object)) {
	for module, mb := range b.m {
		mark(module)
		for _, v := range mb {
			mark(v)
		}
	}
}

// NewModule creates a module. A nil parent means Main.
func (vm *VM) NewModule(name string, parent *Object) *Object {
	if parent == nil {
		parent = vm.MainModule
	}
	fr := vm.GCPush(&parent)
	defer fr.Pop()
	return vm.alloc(vm.ModuleType, 3*wordSize, &Module{Name: vm.Symbol(name), Parent: parent})
}

// ModuleName returns the name of a module.
func (vm *VM) ModuleName(m *Object) string {
	mod, ok := m.Value.(*Module)
	if !ok {
		vm.RaiseTypeError("module", "", vm.ModuleType, m)
	}
	return vm.SymbolName(mod.Name)
}

// LookupBinding returns the value bound to sym in module itself.
func (vm *VM) LookupBinding(module, sym *Object) (*Object, bool) {
	return vm.Bindings.LookupBinding(module, sym)
}

// SetGlobal binds sym to val in module.
func (vm *VM) SetGlobal(module, sym, val *Object) {
	vm.Bindings.SetBinding(module, sym, val)
}

// ResolveGlobal returns the value bound to sym in module, falling back to
// Core, which every module uses implicitly. It raises UndefVarError if sym
// is bound in neither.
func (vm *VM) ResolveGlobal(module, sym *Object) *Object {
	if module == nil {
		module = vm.MainModule
	}
	if v, ok := vm.Bindings.LookupBinding(module, sym); ok {
		return v
	}
	if v, ok := vm.Bindings.LookupBinding(vm.CoreModule, sym); ok {
		return v
	}
	return vm.RaiseUndefVarError(sym)
}
