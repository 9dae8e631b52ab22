package internal

import (
	"fmt"
	"sync/atomic"
)

// VM is a runtime instance: a heap, a type lattice, method tables, and a set
// of tasks. A VM is not safe for concurrent use; only the goroutine of its
// current task may call its methods, except for Interrupt.
type VM struct {
	// Types of the type system itself.
	Any           *Object
	Bottom        *Object
	DataTypeType  *Object
	TypeNameType  *Object
	UnionTypeType *Object
	TypeVarType   *Object
	TupleType     *Object
	VarargType    *Object
	SymbolType    *Object
	// TypeType is Type{T}, whose only instance is the type T.
	TypeType *Object

	// Numeric types.
	NumberType        *Object
	RealType          *Object
	IntegerType       *Object
	SignedType        *Object
	FloatingPointType *Object
	Int64Type         *Object
	Int32Type         *Object
	UInt8Type         *Object
	Float64Type       *Object
	BoolType          *Object

	// Other builtin types.
	StringType      *Object
	NothingType     *Object
	ArrayType       *Object
	LambdaInfoType  *Object
	FunctionType    *Object
	MethodTableType *Object
	TaskType        *Object
	WeakRefType     *Object
	ModuleType      *Object
	ExprType        *Object

	// Condition types.
	ExceptionType            *Object
	ErrorExceptionType       *Object
	TypeErrorType            *Object
	MethodErrorType          *Object
	AmbiguousMethodErrorType *Object
	ArityErrorType           *Object
	BoundsErrorType          *Object
	UndefRefErrorType        *Object
	UndefVarErrorType        *Object
	OutOfMemoryErrorType     *Object
	StackOverflowErrorType   *Object
	InterruptExceptionType   *Object

	// Singletons.
	EmptyTuple *Object
	True       *Object
	False      *Object
	Nothing    *Object

	// CoreModule holds the builtin bindings. MainModule is the default
	// module for user definitions.
	CoreModule *Object
	MainModule *Object
	// CurrentModule is the module that new type names and generic functions
	// belong to when none is given.
	CurrentModule *Object

	// Bindings is the module binding store.
	Bindings BindingStore
	// Compiler produces entry points for specializations.
	Compiler Compiler

	config  Config
	heap    heap
	symbols symtab
	// unionCache holds canonical unions keyed by their sorted members.
	unionCache map[string]*Object
	// smallInts holds the cached boxes of small Int64 values.
	smallInts []*Object
	typeUID   uint32
	// varargName is the TypeName of Vararg.
	varargName *Object
	// typeTypeName is the TypeName of Type.
	typeTypeName *Object

	root  *Task
	cur   *Task
	sched scheduler

	exceptionInTransit *Object
	// Preallocated conditions.
	undefRefException      *Object
	memoryException        *Object
	stackOverflowException *Object
	interruptException     *Object

	// deferSignal is the interrupt deferral depth of the current task.
	deferSignal int
	// interrupt is an atomic flag set by Interrupt.
	interrupt int32
	// unwinding is set while a raised condition travels to its handler.
	unwinding bool
	// closing is set while task goroutines are being terminated.
	closing bool
}

// NewVM creates a VM with the default configuration.
func NewVM() *VM {
	return NewVMWithConfig(DefaultConfig())
}

// NewVMWithConfig creates a VM with the given configuration. Panics if the
// configuration is invalid.
func NewVMWithConfig(cfg Config) *VM {
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	atomic.StoreInt32(&haveVM, 1)

	vm := &VM{
		Bindings:   NewMemoryBindings(),
		Compiler:   NativeCompiler{},
		config:     cfg,
		unionCache: make(map[string]*Object),
	}
	vm.heap.init(&vm.config)
	vm.sched.init()
	vm.root = newTask(cfg.TaskStackDepth)
	vm.root.State = TaskRunning
	vm.root.started = true
	vm.cur = vm.root

	// There is a specific order for initialization. The types that describe
	// types, symbols, and tuples must exist before any type can be named,
	// then the rest of the lattice, then conditions, which need strings and
	// integers, and lastly the values built from them. Collection stays
	// disabled until the end, so nothing created here needs rooting.
	vm.initTypes()
	vm.initConditions()
	vm.initSingletons()
	vm.root.obj = vm.Preserve(vm.alloc(vm.TaskType, 12*wordSize, vm.root))
	vm.CurrentModule = vm.MainModule
	vm.heap.enabled = true

	vm.finalInit()
	return vm
}

// Config returns the VM's configuration.
func (vm *VM) Config() Config {
	return vm.config
}

// rawType allocates an empty DataType to be filled in by fillType.
func (vm *VM) rawType() *Object {
	t := vm.alloc(vm.DataTypeType, 16*wordSize, &DataType{})
	if t.typ == nil {
		t.typ = t
	}
	return vm.Preserve(t)
}

// fillType completes a type created by rawType.
func (vm *VM) fillType(t *Object, name string, super *Object, abstract bool) {
	dt := t.Value.(*DataType)
	dt.Name = vm.NewTypeName(vm.Symbol(name), vm.CoreModule)
	dt.Name.Value.(*TypeName).Primary = t
	dt.Super = super
	dt.Parameters = vm.EmptyTuple
	dt.Types = vm.EmptyTuple
	dt.Abstract = abstract
	dt.UID = vm.nextTypeUID()
	if !abstract {
		dt.opaque = true
		dt.laidOut = true
	}
	vm.bindCore(name, t)
}

func (vm *VM) bindCore(name string, v *Object) {
	vm.Bindings.SetBinding(vm.CoreModule, vm.Symbol(name), v)
}

func (vm *VM) abstractType(name string, super *Object) *Object {
	t := vm.Preserve(vm.NewAbstractType(vm.Symbol(name), super, nil))
	vm.bindCore(name, t)
	return t
}

func (vm *VM) bitsType(name string, super *Object, nbits int) *Object {
	t := vm.Preserve(vm.NewBitsType(vm.Symbol(name), super, nil, nbits))
	vm.bindCore(name, t)
	return t
}

// initTypes creates the builtin type lattice.
func (vm *VM) initTypes() {
	vm.DataTypeType = vm.rawType()
	vm.SymbolType = vm.rawType()
	vm.TypeNameType = vm.rawType()
	vm.TupleType = vm.rawType()
	vm.ModuleType = vm.rawType()
	vm.Any = vm.rawType()
	vm.EmptyTuple = vm.Preserve(vm.NewTuple())

	vm.MainModule = vm.Preserve(vm.alloc(vm.ModuleType, 3*wordSize, &Module{Name: vm.Symbol("Main")}))
	vm.MainModule.Value.(*Module).Parent = vm.MainModule
	vm.CoreModule = vm.Preserve(vm.alloc(vm.ModuleType, 3*wordSize, &Module{Name: vm.Symbol("Core"), Parent: vm.MainModule}))
	vm.CurrentModule = vm.CoreModule

	vm.fillType(vm.Any, "Any", vm.Any, true)
	vm.fillType(vm.DataTypeType, "DataType", vm.Any, false)
	vm.fillType(vm.SymbolType, "Symbol", vm.Any, false)
	vm.fillType(vm.TypeNameType, "TypeName", vm.Any, false)
	vm.fillType(vm.TupleType, "Tuple", vm.Any, false)
	vm.fillType(vm.ModuleType, "Module", vm.Any, false)
	vm.bindCore("Core", vm.CoreModule)
	vm.bindCore("Main", vm.MainModule)

	vm.UnionTypeType = vm.newOpaqueType("UnionType", vm.Any, nil, false)
	vm.TypeVarType = vm.newOpaqueType("TypeVar", vm.Any, nil, false)
	vm.Bottom = vm.Preserve(vm.NewUnionType(vm.EmptyTuple))

	t := vm.NewTypeVar(vm.Symbol("T"), nil, nil)
	vm.VarargType = vm.abstractType("Vararg", vm.Any)
	vm.DataTypeOf(vm.VarargType).Parameters = vm.NewTuple(t)
	vm.varargName = vm.DataTypeOf(vm.VarargType).Name
	t = vm.NewTypeVar(vm.Symbol("T"), nil, nil)
	vm.TypeType = vm.abstractType("Type", vm.Any)
	vm.DataTypeOf(vm.TypeType).Parameters = vm.NewTuple(t)
	vm.typeTypeName = vm.DataTypeOf(vm.TypeType).Name

	vm.NumberType = vm.abstractType("Number", vm.Any)
	vm.RealType = vm.abstractType("Real", vm.NumberType)
	vm.IntegerType = vm.abstractType("Integer", vm.RealType)
	vm.SignedType = vm.abstractType("Signed", vm.IntegerType)
	vm.FloatingPointType = vm.abstractType("FloatingPoint", vm.RealType)
	vm.Int64Type = vm.bitsType("Int64", vm.SignedType, 64)
	vm.Int32Type = vm.bitsType("Int32", vm.SignedType, 32)
	vm.UInt8Type = vm.bitsType("UInt8", vm.IntegerType, 8)
	vm.Float64Type = vm.bitsType("Float64", vm.FloatingPointType, 64)
	vm.BoolType = vm.bitsType("Bool", vm.IntegerType, 8)

	vm.StringType = vm.newOpaqueType("String", vm.Any, nil, false)
	vm.LambdaInfoType = vm.newOpaqueType("LambdaInfo", vm.Any, nil, true)
	vm.FunctionType = vm.newOpaqueType("Function", vm.Any, nil, false)
	vm.MethodTableType = vm.newOpaqueType("MethodTable", vm.Any, nil, true)
	vm.TaskType = vm.newOpaqueType("Task", vm.Any, nil, true)
	vm.WeakRefType = vm.newOpaqueType("WeakRef", vm.Any, nil, true)
	vm.ExprType = vm.newOpaqueType("Expr", vm.Any, nil, true)
	et := vm.NewTypeVar(vm.Symbol("T"), nil, nil)
	nt := vm.NewTypeVar(vm.Symbol("N"), nil, nil)
	vm.ArrayType = vm.newOpaqueType("Array", vm.Any, vm.NewTuple(et, nt), true)

	vm.NothingType = vm.Preserve(vm.NewDataType(vm.Symbol("Nothing"), vm.Any, nil, nil, nil, false, false))
	vm.bindCore("Nothing", vm.NothingType)
	vm.Nothing = vm.DataTypeOf(vm.NothingType).Instance
	vm.bindCore("nothing", vm.Nothing)
}

// initSingletons creates the boolean values and the small integer cache.
func (vm *VM) initSingletons() {
	vm.True = vm.Preserve(vm.NewBits(vm.BoolType, []byte{1}))
	vm.False = vm.Preserve(vm.NewBits(vm.BoolType, []byte{0}))
	vm.bindCore("true", vm.True)
	vm.bindCore("false", vm.False)
	ints := make([]*Object, smallIntMax-smallIntMin+1)
	for i := range ints {
		ints[i] = vm.boxInt64(int64(i + smallIntMin))
	}
	vm.smallInts = ints
}

// finalInit runs registered core extensions.
func (vm *VM) finalInit() {
	for _, ext := range coreExt {
		if r, stop := vm.Try(func() *Object { ext(vm); return nil }); stop != NoStop {
			panic(fmt.Errorf("jlrt: error initializing core extension: %s", vm.ConditionMessage(r)))
		}
	}
}

// Register registers a core extension. Each function is called in the order
// it is registered; extensions that depend on other extensions need only
// import them. Register should be called from within init funcs. Panics if
// NewVM has been called.
func Register(f func(*VM)) {
	if atomic.LoadInt32(&haveVM) != 0 {
		panic("jlrt/internal: Register must be called before any VM is created")
	}
	coreExt = append(coreExt, f)
}

// coreExt is a list of core extensions that have been registered.
var coreExt = make([]func(*VM), 0, 4)

// haveVM becomes nonzero once NewVM has been called.
var haveVM int32
