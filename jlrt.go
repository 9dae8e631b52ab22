package jlrt

import (
	"github.com/zephyrtronium/jlrt/internal"
)

// A VM is a runtime instance.
type VM = internal.VM

// Object is every value in the runtime, including types.
type Object = internal.Object

// A Stop represents a reason for nonlocal control flow.
type Stop = internal.Stop

// Config holds the tunable settings of a VM.
type Config = internal.Config

// GCStats is a snapshot of collector statistics.
type GCStats = internal.GCStats

// GCFrame is a frame of roots on the current task's root stack.
type GCFrame = internal.GCFrame

// DataType is the payload of a named type.
type DataType = internal.DataType

// TypeName is the identity shared by all instantiations of a type family.
type TypeName = internal.TypeName

// TypeVar is the payload of a type variable.
type TypeVar = internal.TypeVar

// TypeEnv holds type variable bindings found by TypeMatch.
type TypeEnv = internal.TypeEnv

// Array is the payload of an array.
type Array = internal.Array

// Function is the payload of a callable.
type Function = internal.Function

// LambdaInfo describes the code of a function or specialization.
type LambdaInfo = internal.LambdaInfo

// Fptr is the entry point of a callable.
type Fptr = internal.Fptr

// A Compiler produces entry points for specializations.
type Compiler = internal.Compiler

// MethodTable is the payload of a generic function's method table.
type MethodTable = internal.MethodTable

// Method is a single definition in a method table.
type Method = internal.Method

// Task is the payload of a task object.
type Task = internal.Task

// TaskState is the lifecycle state of a task.
type TaskState = internal.TaskState

// Handler is an installed condition handler.
type Handler = internal.Handler

// BindingStore holds module bindings.
type BindingStore = internal.BindingStore

// ConditionError is a condition converted to a Go error.
type ConditionError = internal.ConditionError

// FatalError is the panic value of a condition raised with no handler.
type FatalError = internal.FatalError

// Control flow reasons.
const (
	NoStop        = internal.NoStop
	ExceptionStop = internal.ExceptionStop
	ExitStop      = internal.ExitStop
)

// Task states.
const (
	TaskRunnable = internal.TaskRunnable
	TaskRunning  = internal.TaskRunning
	TaskDone     = internal.TaskDone
	TaskFailed   = internal.TaskFailed
)

// NewVM creates a VM with the default configuration.
func NewVM() *VM {
	return internal.NewVM()
}

// NewVMWithConfig creates a VM with the given configuration. It panics if
// the configuration is invalid.
func NewVMWithConfig(cfg Config) *VM {
	return internal.NewVMWithConfig(cfg)
}

// DefaultConfig returns the default VM configuration.
func DefaultConfig() Config {
	return internal.DefaultConfig()
}

// LoadConfig reads a configuration from a YAML or TOML file. Settings absent
// from the file keep their default values.
func LoadConfig(path string) (Config, error) {
	return internal.LoadConfig(path)
}

// NewMemoryBindings returns an empty in-memory BindingStore.
func NewMemoryBindings() BindingStore {
	return internal.NewMemoryBindings()
}

// TupleElems returns the elements of a tuple.
func TupleElems(t *Object) []*Object {
	return internal.TupleElems(t)
}

// UnionMembers returns the members of a union type.
func UnionMembers(u *Object) []*Object {
	return internal.UnionMembers(u)
}

// BitsData returns the bytes of a bits value.
func BitsData(v *Object) []byte {
	return internal.BitsData(v)
}
