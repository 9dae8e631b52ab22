package internal

import (
	"github.com/zephyrtronium/contains"
)

// scheduler tracks runnable tasks and the wait graph between tasks.
type scheduler struct {
	// queue holds tasks made runnable by Schedule, Yield, or the completion
	// of a task they wait on. Queued tasks are roots.
	queue []*Task
	// waits maps each task blocked in Wait to the task it waits on. This
	// allows us to detect deadlocks ahead of time and raise a condition
	// instead of parking forever.
	waits map[*Task]*Task
	// live is the set of started tasks that have not finished. It is not a
	// root set.
	live map[*Task]struct{}
}

func (s *scheduler) init() {
	s.waits = make(map[*Task]*Task)
	s.live = make(map[*Task]struct{})
}

// enqueue adds t to the end of the run queue if it is not already there.
func (s *scheduler) enqueue(t *Task) {
	if t.State.Terminal() {
		return
	}
	for _, q := range s.queue {
		if q == t {
			return
		}
	}
	s.queue = append(s.queue, t)
}

// remove deletes t from the run queue.
func (s *scheduler) remove(t *Task) {
	for i, q := range s.queue {
		if q == t {
			copy(s.queue[i:], s.queue[i+1:])
			s.queue[len(s.queue)-1] = nil
			s.queue = s.queue[:len(s.queue)-1]
			return
		}
	}
}

// pop removes and returns the first queued task other than except, or nil.
func (s *scheduler) pop(except *Task) *Task {
	for _, q := range s.queue {
		if q != except && !q.State.Terminal() {
			s.remove(q)
			return q
		}
	}
	return nil
}

// waitsOn reports whether a follows the wait graph to b.
func (s *scheduler) waitsOn(a, b *Task) bool {
	seen := contains.Set{}
	for c := s.waits[a]; c != nil; c = s.waits[c] {
		if c == b {
			return true
		}
		if !seen.Add(c.obj.UniqueID()) {
			break
		}
	}
	return false
}

// Queued returns the number of tasks in the run queue.
func (vm *VM) Queued() int {
	return len(vm.sched.queue)
}

// Schedule makes t runnable. It will run when some task yields or waits.
func (vm *VM) Schedule(t *Object) {
	tk := vm.TaskOf(t)
	if tk == vm.cur {
		return
	}
	vm.sched.enqueue(tk)
}

// Yield lets the next runnable task run, requeueing the current task behind
// it. It returns immediately if no other task is runnable. The outcome of
// the task switched to is observed through Wait, not here.
func (vm *VM) Yield() {
	cur := vm.cur
	next := vm.sched.pop(cur)
	if next == nil {
		return
	}
	vm.sched.enqueue(cur)
	vm.switchTo(next, vm.Nothing)
}

// Wait blocks the current task until t finishes and returns its result. If t
// failed, its condition is raised in the waiting task. Waiting on a task that
// waits, directly or transitively, on the current task, or waiting when no
// task could ever finish t, raises ErrorException.
func (vm *VM) Wait(t *Object) *Object {
	target := vm.TaskOf(t)
	cur := vm.cur
	fr := vm.GCPush(&t)
	defer fr.Pop()
	for !target.State.Terminal() {
		if target == cur || vm.sched.waitsOn(target, cur) {
			return vm.Errorf("deadlock detected: task %s waits on itself", cur.ID)
		}
		next := target
		if _, waiting := vm.sched.waits[target]; waiting {
			next = vm.sched.pop(cur)
		}
		if next == nil {
			return vm.Errorf("deadlock detected: no task can run while %s waits on %s", cur.ID, target.ID)
		}
		vm.sched.waits[cur] = target
		isConsumer := false
		for _, c := range target.consumers {
			if c == cur {
				isConsumer = true
				break
			}
		}
		if !isConsumer {
			target.consumers = append(target.consumers, cur)
		}
		vm.switchTo(next, vm.Nothing)
		delete(vm.sched.waits, cur)
	}
	if target.State == TaskFailed {
		return vm.Raise(target.Exception)
	}
	return target.Result
}
