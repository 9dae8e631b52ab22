package internal

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

var taskLog = commonlog.GetLogger("jlrt.task")

// TaskState is the scheduling state of a task.
type TaskState int32

// Task states. A task starts Runnable, is Running while it is the current
// task, and ends Done or Failed.
const (
	TaskRunnable TaskState = iota
	TaskRunning
	TaskDone
	TaskFailed
)

var taskStateNames = [...]string{"runnable", "running", "done", "failed"}

// String returns the name of the state.
func (s TaskState) String() string {
	if s < TaskRunnable || s > TaskFailed {
		return fmt.Sprintf("TaskState(%d)", s)
	}
	return taskStateNames[s]
}

// Terminal reports whether s is Done or Failed.
func (s TaskState) Terminal() bool {
	return s == TaskDone || s == TaskFailed
}

// Task is the payload of Task objects. Each task owns its root frame stack
// and handler chain; switching tasks swaps both at once, since both live
// here and the VM tracks only which task is current.
//
// Every started task other than the root runs on its own goroutine, but only
// the current task's goroutine is ever unblocked.
type Task struct {
	// ID identifies the task in logs.
	ID    uuid.UUID
	State TaskState
	// Start is the function the task runs.
	Start *Object
	// Result is the value returned by Start once the task is Done.
	Result *Object
	// Exception is the condition that escaped Start once the task is Failed.
	Exception *Object

	obj     *Object
	gcstack *GCFrame
	eh      *Handler
	// last is the task that most recently switched to this one.
	last *Task
	// consumers are tasks waiting for this one to finish.
	consumers []*Task

	depth    int
	maxDepth int
	// sigatomic is the interrupt deferral depth saved while the task is not
	// current.
	sigatomic int

	started bool
	// wake delivers control to the task's goroutine.
	wake chan transfer
	// exited is closed when the task's goroutine returns.
	exited chan struct{}
}

// transfer is the message passed to a task when it becomes current.
type transfer struct {
	val  *Object
	exc  *Object
	exit bool
}

func newTask(maxDepth int) *Task {
	return &Task{
		ID:       uuid.New(),
		maxDepth: maxDepth,
		wake:     make(chan transfer),
		exited:   make(chan struct{}),
	}
}

// NewTask creates a runnable task that will call start with the value it is
// first switched to with.
func (vm *VM) NewTask(start *Object) *Object {
	vm.FunctionOf(start)
	fr := vm.GCPush(&start)
	defer fr.Pop()
	t := newTask(vm.config.TaskStackDepth)
	t.Start = start
	// The new task's goroutine ends its first switch.
	t.sigatomic = 1
	t.obj = vm.alloc(vm.TaskType, 12*wordSize, t)
	taskLog.Debugf("created task %s", t.ID)
	return t.obj
}

// TaskOf returns the payload of a Task object, raising TypeError if t is not
// one.
func (vm *VM) TaskOf(t *Object) *Task {
	tk, ok := t.Value.(*Task)
	if !ok {
		vm.RaiseTypeError("task", "", vm.TaskType, t)
	}
	return tk
}

// CurrentTask returns the running task.
func (vm *VM) CurrentTask() *Object {
	return vm.cur.obj
}

// RootTask returns the task that runs on the goroutine which created the VM.
func (vm *VM) RootTask() *Object {
	return vm.root.obj
}

// IsTaskDone reports whether a task has finished, successfully or not.
func (vm *VM) IsTaskDone(t *Object) bool {
	return vm.TaskOf(t).State.Terminal()
}

// SwitchTo suspends the current task and resumes t, delivering val as the
// result of t's pending switch or as the argument to its start function. It
// returns the value delivered when the current task is next resumed. If the
// resuming task is t finishing with a condition, that condition is raised.
//
// Switching to a finished task does not suspend: a Done task yields its
// result and a Failed task raises its condition again.
func (vm *VM) SwitchTo(t, val *Object) *Object {
	target := vm.TaskOf(t)
	if val == nil {
		val = vm.Nothing
	}
	switch {
	case target == vm.cur:
		return val
	case target.State == TaskDone:
		return target.Result
	case target.State == TaskFailed:
		return vm.Raise(target.Exception)
	}
	tr := vm.switchTo(target, val)
	if tr.exc != nil {
		return vm.Raise(tr.exc)
	}
	return tr.val
}

// switchTo makes target current and parks the calling goroutine until some
// task switches back.
func (vm *VM) switchTo(target *Task, val *Object) transfer {
	cur := vm.cur
	if cur.State == TaskRunning {
		cur.State = TaskRunnable
	}
	// The matching SigatomicEnd runs on whichever side resumes next.
	vm.SigatomicBegin()
	cur.sigatomic = vm.deferSignal
	vm.resume(target, cur, transfer{val: val})
	tr := <-cur.wake
	if tr.exit {
		panic(exitSignal{})
	}
	vm.SigatomicEnd()
	return tr
}

// resume installs target as the current task and hands it tr. from is the
// task giving up control.
func (vm *VM) resume(target, from *Task, tr transfer) {
	vm.sched.remove(target)
	target.last = from
	target.State = TaskRunning
	vm.cur = target
	vm.deferSignal = target.sigatomic
	if !target.started {
		target.started = true
		vm.sched.live[target] = struct{}{}
		go vm.runTask(target, tr.val)
		return
	}
	target.wake <- tr
}

// runTask is the body of a task's goroutine.
func (vm *VM) runTask(t *Task, arg *Object) {
	defer func() {
		close(t.exited)
		if r := recover(); r != nil {
			if _, ok := r.(exitSignal); !ok {
				panic(r)
			}
		}
	}()
	taskLog.Debugf("task %s started", t.ID)
	r, stop := vm.try(func() *Object {
		fr := vm.GCPush(&arg)
		defer fr.Pop()
		vm.SigatomicEnd()
		return vm.Apply(t.Start, arg)
	})
	vm.finishTask(t, r, stop)
}

// finishTask records the outcome of a task, wakes its consumers, and passes
// control to the task that last switched to it.
func (vm *VM) finishTask(t *Task, r *Object, stop Stop) {
	var tr transfer
	if stop == ExceptionStop {
		t.State, t.Exception = TaskFailed, r
		tr.exc = r
		taskLog.Debugf("task %s failed: %s", t.ID, vm.ConditionMessage(r))
	} else {
		t.State, t.Result = TaskDone, r
		tr.val = r
		taskLog.Debugf("task %s done", t.ID)
	}
	delete(vm.sched.live, t)
	delete(vm.sched.waits, t)
	for _, c := range t.consumers {
		vm.sched.enqueue(c)
	}
	t.consumers = nil
	t.gcstack, t.eh = nil, nil
	next := t.last
	if next == nil || next.State.Terminal() {
		next = vm.root
		tr = transfer{val: vm.Nothing}
	}
	vm.resume(next, t, tr)
}

// terminate unwinds the goroutine of a parked task. Deferred cleanup in the
// task runs with interrupts suppressed.
func (vm *VM) terminate(t *Task) {
	if !t.started || t.State.Terminal() || t == vm.cur {
		return
	}
	saved, closing := vm.deferSignal, vm.closing
	vm.closing = true
	t.wake <- transfer{exit: true}
	<-t.exited
	vm.closing = closing
	vm.deferSignal = saved
	t.State = TaskFailed
	t.gcstack, t.eh = nil, nil
	delete(vm.sched.live, t)
	delete(vm.sched.waits, t)
	vm.sched.remove(t)
	taskLog.Debugf("task %s terminated", t.ID)
}

// Close terminates every parked task. It must be called from the root task.
// The VM must not be used to run tasks afterward.
func (vm *VM) Close() {
	if vm.cur != vm.root {
		panic("jlrt: Close called outside the root task")
	}
	for t := range vm.sched.live {
		vm.terminate(t)
	}
	vm.sched.queue = nil
}
