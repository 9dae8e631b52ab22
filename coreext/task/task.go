// Package task binds cooperative task operations into Core.
package task

import (
	"github.com/zephyrtronium/jlrt"
	"github.com/zephyrtronium/jlrt/internal"
)

func init() {
	internal.Register(initTask)
}

func initTask(vm *jlrt.VM) {
	define := func(name string, fptr jlrt.Fptr, sig ...*jlrt.Object) {
		vm.AddBuiltinMethod(vm.GenericFunction(vm.CoreModule, name), fptr, sig...)
	}
	define("task", newTask, vm.FunctionType)
	define("current_task", currentTask)
	define("schedule", schedule, vm.TaskType)
	define("yield", yield)
	define("yieldto", yieldto, vm.TaskType)
	define("yieldto", yieldto, vm.TaskType, vm.Any)
	define("wait", wait, vm.TaskType)
	define("istaskdone", istaskdone, vm.TaskType)
}

// newTask is a Core function.
//
// task(f::Function) creates a runnable task that calls f. The task does not
// run until it is scheduled or switched to.
func newTask(vm *jlrt.VM, f *jlrt.Object, args []*jlrt.Object) *jlrt.Object {
	return vm.NewTask(args[0])
}

// currentTask is a Core function.
func currentTask(vm *jlrt.VM, f *jlrt.Object, args []*jlrt.Object) *jlrt.Object {
	return vm.CurrentTask()
}

// schedule is a Core function.
//
// schedule(t::Task) adds t to the run queue and returns t.
func schedule(vm *jlrt.VM, f *jlrt.Object, args []*jlrt.Object) *jlrt.Object {
	vm.Schedule(args[0])
	return args[0]
}

// yield is a Core function.
//
// yield() lets the next runnable task run.
func yield(vm *jlrt.VM, f *jlrt.Object, args []*jlrt.Object) *jlrt.Object {
	vm.Yield()
	return vm.Nothing
}

// yieldto is a Core function.
//
// yieldto(t::Task, val) switches directly to t, delivering val, which
// defaults to nothing. It returns the value delivered when the current task
// is resumed.
func yieldto(vm *jlrt.VM, f *jlrt.Object, args []*jlrt.Object) *jlrt.Object {
	val := vm.Nothing
	if len(args) > 1 {
		val = args[1]
	}
	return vm.SwitchTo(args[0], val)
}

// wait is a Core function.
//
// wait(t::Task) blocks until t finishes and returns its result.
func wait(vm *jlrt.VM, f *jlrt.Object, args []*jlrt.Object) *jlrt.Object {
	return vm.Wait(args[0])
}

// istaskdone is a Core function.
func istaskdone(vm *jlrt.VM, f *jlrt.Object, args []*jlrt.Object) *jlrt.Object {
	return vm.BoxBool(vm.IsTaskDone(args[0]))
}
