package internal_test

import (
	"strings"
	"testing"

	"github.com/zephyrtronium/jlrt"
	"github.com/zephyrtronium/jlrt/testutils"
)

// builtin wraps a Go function as a callable value.
func builtin(vm *jlrt.VM, name string, f func(vm *jlrt.VM, args []*jlrt.Object) *jlrt.Object) *jlrt.Object {
	return vm.NewBuiltin(name, func(vm *jlrt.VM, _ *jlrt.Object, args []*jlrt.Object) *jlrt.Object {
		return f(vm, args)
	})
}

// TestTaskSwitch tests passing values back and forth between tasks.
func TestTaskSwitch(t *testing.T) {
	vm := testutils.NewVM(t)
	echo := builtin(vm, "echo", func(vm *jlrt.VM, args []*jlrt.Object) *jlrt.Object {
		x := vm.SwitchTo(vm.RootTask(), args[0])
		return vm.BoxInt64(vm.UnboxInt64(x) * 10)
	})
	task := vm.Preserve(vm.NewTask(echo))
	defer vm.Unpreserve(task)
	tk := vm.TaskOf(task)
	if tk.State != jlrt.TaskRunnable {
		t.Errorf("new task is %s", tk.State)
	}
	if r := vm.SwitchTo(task, vm.BoxInt64(1)); vm.UnboxInt64(r) != 1 {
		t.Errorf("first switch: want 1, got %s", vm.Show(r))
	}
	if tk.State != jlrt.TaskRunnable || vm.IsTaskDone(task) {
		t.Errorf("parked task is %s", tk.State)
	}
	if vm.CurrentTask() != vm.RootTask() {
		t.Error("control did not return to the root task")
	}
	if r := vm.SwitchTo(task, vm.BoxInt64(2)); vm.UnboxInt64(r) != 20 {
		t.Errorf("second switch: want 20, got %s", vm.Show(r))
	}
	if tk.State != jlrt.TaskDone || !vm.IsTaskDone(task) {
		t.Errorf("finished task is %s", tk.State)
	}
	if r := vm.SwitchTo(task, vm.BoxInt64(3)); vm.UnboxInt64(r) != 20 {
		t.Errorf("switch to done task: want 20, got %s", vm.Show(r))
	}
	if r := vm.SwitchTo(vm.CurrentTask(), vm.BoxInt64(4)); vm.UnboxInt64(r) != 4 {
		t.Errorf("switch to self: want 4, got %s", vm.Show(r))
	}
}

// TestTaskIsolation tests that each task has its own root frames and
// handlers.
func TestTaskIsolation(t *testing.T) {
	vm := testutils.NewVM(t)
	var taskFrame *jlrt.GCFrame
	var taskHandler *jlrt.Handler
	probe := builtin(vm, "probe", func(vm *jlrt.VM, args []*jlrt.Object) *jlrt.Object {
		taskFrame, taskHandler = vm.CurrentFrame(), vm.CurrentHandler()
		vm.SwitchTo(vm.RootTask(), nil)
		// The root's condition must not reach here.
		r, _ := vm.Try(func() *jlrt.Object { return vm.Errorf("in task") })
		return r
	})
	task := vm.Preserve(vm.NewTask(probe))
	defer vm.Unpreserve(task)
	sl := vm.GCPushSlots(2)
	defer sl.Pop()
	r, stop := vm.Try(func() *jlrt.Object {
		frame, handler := vm.CurrentFrame(), vm.CurrentHandler()
		vm.SwitchTo(task, nil)
		if vm.CurrentFrame() != frame || vm.CurrentHandler() != handler {
			t.Error("switching tasks disturbed the root's frames or handlers")
		}
		if taskFrame == nil || taskFrame == frame {
			t.Error("task shares the root's frames")
		}
		if taskHandler == nil || taskHandler == handler || taskHandler.Prev() != nil {
			t.Error("task shares the root's handlers")
		}
		x := vm.SwitchTo(task, nil)
		if vm.ConditionMessage(x) != "in task" {
			t.Errorf("task caught the wrong condition: %s", vm.Show(x))
		}
		return vm.Errorf("in root")
	})
	if stop != jlrt.ExceptionStop || vm.ConditionMessage(r) != "in root" {
		t.Errorf("root caught the wrong result %s (%s)", vm.Show(r), stop)
	}
}

// TestTaskFailure tests that a condition escaping a task is raised in the
// task that resumes and in every later switch or wait.
func TestTaskFailure(t *testing.T) {
	vm := testutils.NewVM(t)
	fail := builtin(vm, "fail", func(vm *jlrt.VM, args []*jlrt.Object) *jlrt.Object {
		return vm.Errorf("task failed")
	})
	task := vm.Preserve(vm.NewTask(fail))
	defer vm.Unpreserve(task)
	cases := []struct {
		name string
		f    func() *jlrt.Object
	}{
		{"Switch", func() *jlrt.Object { return vm.SwitchTo(task, nil) }},
		{"SwitchAgain", func() *jlrt.Object { return vm.SwitchTo(task, nil) }},
		{"Wait", func() *jlrt.Object { return vm.Wait(task) }},
	}
	// Cases depend on the task's history, so they run in order.
	for _, c := range cases {
		r, stop := vm.Try(c.f)
		if stop != jlrt.ExceptionStop || vm.ConditionMessage(r) != "task failed" {
			t.Errorf("%s: wrong result %s (%s)", c.name, vm.Show(r), stop)
		}
	}
	tk := vm.TaskOf(task)
	if tk.State != jlrt.TaskFailed || vm.ConditionMessage(tk.Exception) != "task failed" {
		t.Errorf("failed task is %s with %s", tk.State, vm.Show(tk.Exception))
	}
	if vm.CurrentTask() != vm.RootTask() {
		t.Error("failure did not return control to the root task")
	}
}

// TestSchedule tests that yielding tasks interleave in queue order and that
// Wait returns results.
func TestSchedule(t *testing.T) {
	vm := testutils.NewVM(t)
	log := vm.Preserve(vm.NewArray1D(vm.SymbolType, 0))
	defer vm.Unpreserve(log)
	worker := func(name string) *jlrt.Object {
		return builtin(vm, name, func(vm *jlrt.VM, args []*jlrt.Object) *jlrt.Object {
			vm.Push(log, vm.Symbol(name+"1"))
			vm.Yield()
			vm.Push(log, vm.Symbol(name+"2"))
			return vm.Symbol(name)
		})
	}
	a := vm.NewTask(worker("a"))
	b := vm.NewTask(worker("b"))
	fr := vm.GCPush(&a, &b)
	defer fr.Pop()
	vm.Schedule(a)
	vm.Schedule(b)
	vm.Schedule(a)
	if n := vm.Queued(); n != 2 {
		t.Errorf("want 2 queued tasks, got %d", n)
	}
	if r := vm.Wait(a); r != vm.Symbol("a") {
		t.Errorf("Wait(a): got %s", vm.Show(r))
	}
	if r := vm.Wait(b); r != vm.Symbol("b") {
		t.Errorf("Wait(b): got %s", vm.Show(r))
	}
	want := []string{"a1", "b1", "a2", "b2"}
	if n := vm.ArrayLen(log); n != len(want) {
		t.Fatalf("want %d log entries, got %d", len(want), n)
	}
	for i, w := range want {
		if got := vm.SymbolName(vm.ArrayRef(log, i)); got != w {
			t.Errorf("log entry %d: want %s, got %s", i, w, got)
		}
	}
	if n := vm.Queued(); n != 0 {
		t.Errorf("%d tasks left queued", n)
	}
	// Nothing else is runnable, so Yield returns at once.
	vm.Yield()
}

// TestDeadlock tests that waits which could never finish raise conditions.
func TestDeadlock(t *testing.T) {
	vm := testutils.NewVM(t)
	t.Run("Self", func(t *testing.T) {
		r, stop := vm.Try(func() *jlrt.Object { return vm.Wait(vm.CurrentTask()) })
		if stop != jlrt.ExceptionStop || !strings.HasPrefix(vm.ConditionMessage(r), "deadlock detected") {
			t.Errorf("wrong result %s (%s)", vm.Show(r), stop)
		}
	})
	t.Run("Cycle", func(t *testing.T) {
		waiter := builtin(vm, "waiter", func(vm *jlrt.VM, args []*jlrt.Object) *jlrt.Object {
			return vm.Wait(vm.RootTask())
		})
		task := vm.Preserve(vm.NewTask(waiter))
		defer vm.Unpreserve(task)
		r, stop := vm.Try(func() *jlrt.Object { return vm.Wait(task) })
		if stop != jlrt.ExceptionStop || !strings.HasPrefix(vm.ConditionMessage(r), "deadlock detected") {
			t.Errorf("wrong result %s (%s)", vm.Show(r), stop)
		}
		if vm.TaskOf(task).State != jlrt.TaskFailed {
			t.Errorf("waiting task is %s", vm.TaskOf(task).State)
		}
	})
}

// TestStackOverflow tests the per-task call depth limit.
func TestStackOverflow(t *testing.T) {
	cfg := jlrt.DefaultConfig()
	cfg.TaskStackDepth = 50
	vm := jlrt.NewVMWithConfig(cfg)
	t.Cleanup(vm.Close)
	var calls int
	var recurse *jlrt.Object
	recurse = builtin(vm, "recurse", func(vm *jlrt.VM, args []*jlrt.Object) *jlrt.Object {
		calls++
		return vm.Apply(recurse)
	})
	vm.Preserve(recurse)
	testutils.CheckRaises(t, vm, vm.StackOverflowErrorType, func() *jlrt.Object { return vm.Apply(recurse) })
	if calls != 50 {
		t.Errorf("want 50 calls before overflow, got %d", calls)
	}
	// The depth is restored, so the limit applies afresh.
	calls = 0
	testutils.CheckRaises(t, vm, vm.StackOverflowErrorType, func() *jlrt.Object { return vm.Apply(recurse) })
	if calls != 50 {
		t.Errorf("want 50 calls after recovering, got %d", calls)
	}
	task := vm.Preserve(vm.NewTask(recurse))
	defer vm.Unpreserve(task)
	testutils.CheckRaises(t, vm, vm.StackOverflowErrorType, func() *jlrt.Object { return vm.SwitchTo(task, nil) })
}

// TestTaskCollect tests that a parked task nothing refers to is collected
// and its goroutine unwound.
func TestTaskCollect(t *testing.T) {
	vm := testutils.NewVM(t)
	var unwound bool
	park := builtin(vm, "park", func(vm *jlrt.VM, args []*jlrt.Object) *jlrt.Object {
		defer func() { unwound = true }()
		return vm.SwitchTo(vm.RootTask(), nil)
	})
	done := builtin(vm, "done", func(vm *jlrt.VM, args []*jlrt.Object) *jlrt.Object {
		return vm.Nothing
	})
	fr := vm.GCPush(&park, &done)
	defer fr.Pop()
	task := vm.NewTask(park)
	tfr := vm.GCPush(&task)
	defer tfr.Pop()
	tk := vm.TaskOf(task)
	w := vm.Preserve(vm.NewWeakRef(task))
	defer vm.Unpreserve(w)
	vm.SwitchTo(task, nil)
	// Switch through another task so the root no longer refers to the
	// parked one.
	vm.SwitchTo(vm.NewTask(done), nil)
	task = nil
	vm.Collect()
	if vm.WeakRefValue(w) != nil {
		t.Fatal("parked task survived collection")
	}
	if !unwound || tk.State != jlrt.TaskFailed {
		t.Errorf("collected task not terminated: unwound %t, state %s", unwound, tk.State)
	}
}

// TestClose tests that closing a VM unwinds its parked tasks.
func TestClose(t *testing.T) {
	vm := jlrt.NewVM()
	var unwound int
	park := builtin(vm, "park", func(vm *jlrt.VM, args []*jlrt.Object) *jlrt.Object {
		defer func() { unwound++ }()
		return vm.SwitchTo(vm.RootTask(), nil)
	})
	vm.Preserve(park)
	for i := 0; i < 3; i++ {
		vm.SwitchTo(vm.Preserve(vm.NewTask(park)), nil)
	}
	vm.Close()
	if unwound != 3 {
		t.Errorf("want 3 tasks unwound, got %d", unwound)
	}
}

// TestTaskState tests task state names.
func TestTaskState(t *testing.T) {
	cases := map[jlrt.TaskState]struct {
		name     string
		terminal bool
	}{
		jlrt.TaskRunnable: {"runnable", false},
		jlrt.TaskRunning:  {"running", false},
		jlrt.TaskDone:     {"done", true},
		jlrt.TaskFailed:   {"failed", true},
		jlrt.TaskState(9): {"TaskState(9)", false},
	}
	for s, c := range cases {
		if s.String() != c.name || s.Terminal() != c.terminal {
			t.Errorf("%d: want %s/%t, got %s/%t", s, c.name, c.terminal, s, s.Terminal())
		}
	}
}

// TestTaskOf tests that task operations reject other values.
func TestTaskOf(t *testing.T) {
	vm := testutils.VM()
	testutils.CheckRaises(t, vm, vm.TypeErrorType, func() *jlrt.Object { return vm.SwitchTo(vm.Nothing, nil) })
	testutils.CheckRaises(t, vm, vm.TypeErrorType, func() *jlrt.Object { return vm.NewTask(vm.Nothing) })
}
