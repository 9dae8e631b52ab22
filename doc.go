/*
Package jlrt implements the core of a runtime for a dynamically typed language
with parametric types and multiple dispatch.

The runtime provides a value and type model, a subtype relation over that
model, generic functions that select a method by the types of all arguments,
a non-moving mark-sweep collector with explicit root frames, weak references
and finalizers, and cooperative tasks with their own handler stacks and
deferred interrupts.

The runtime is meant to be embedded. To start, create a VM with NewVM or
NewVMWithConfig. The VM's exported type fields, such as Any and Int64Type,
name the builtin lattice, and its methods create values, define types, and
add methods to generic functions.

Values

Every value is an *Object. Its type is another *Object, obtained with
vm.Typeof. Types are DataTypes, unions, or type variables. A DataType is
abstract, or concrete with a fixed layout of fields; concrete types may be
bits types, whose instances are plain bytes, or composite types whose
pointer fields are scanned by the collector.

	vm := jlrt.NewVM()
	x := vm.BoxInt64(42)
	vm.Isa(x, vm.IntegerType) // true

Dispatch

A generic function owns a method table. AddMethod inserts a method by its
signature, a tuple type; Apply calls the most specific applicable method,
compiling and caching a specialization for the concrete argument types. Calls
with no applicable method raise MethodError, and calls matching several
equally specific methods raise AmbiguousMethodError.

Collection

The collector never moves objects. Go code holding an *Object across an
allocation must keep it reachable, either through a GCPush frame or by
storing it in another reachable object:

	fr := vm.GCPush(&a, &b)
	defer fr.Pop()

Conditions

Runtime errors are conditions, instances of subtypes of Exception. Raise
unwinds to the innermost handler installed by Try; Try reports ExceptionStop
with the condition as its result.

	r, stop := vm.Try(func() *jlrt.Object {
		return vm.Apply(f, args...)
	})

Tasks

Tasks are coroutines. Each has its own root frames, handler stack, and
interrupt deferral depth, and exactly one task runs at a time. SwitchTo,
Yield, and Wait move control between them.
*/
package jlrt
