package internal

// GCFrame is one record on a task's root stack. Every reference it holds is
// treated as a root until the frame is popped, or until a raised condition
// unwinds past the point where it was pushed.
//
// The usual pattern roots a function's locals for its whole extent:
//
//	fr := vm.GCPush(&a, &b)
//	defer fr.Pop()
//
// Frames must be popped in LIFO order.
type GCFrame struct {
	prev *GCFrame
	task *Task
	refs []**Object
	// Slots holds references owned directly by the frame.
	Slots []*Object
}

// GCPush pushes a frame rooting the variables pointed to by refs. Later
// assignments to those variables are seen by the collector.
func (vm *VM) GCPush(refs ...**Object) *GCFrame {
	t := vm.cur
	f := &GCFrame{prev: t.gcstack, task: t, refs: refs}
	t.gcstack = f
	return f
}

// GCPushValues pushes a frame rooting the elements of vals. The frame aliases
// vals, so later stores into it are seen by the collector.
func (vm *VM) GCPushValues(vals ...*Object) *GCFrame {
	t := vm.cur
	f := &GCFrame{prev: t.gcstack, task: t, Slots: vals}
	t.gcstack = f
	return f
}

// GCPushSlots pushes a frame with n empty slots.
func (vm *VM) GCPushSlots(n int) *GCFrame {
	return vm.GCPushValues(make([]*Object, n)...)
}

// Pop removes the frame from its task's root stack. Pop works correctly even
// when frames pushed after f were abandoned by an unwinding condition.
func (f *GCFrame) Pop() {
	f.task.gcstack = f.prev
}

// Depth returns the number of frames from f to the bottom of its stack.
func (f *GCFrame) Depth() int {
	n := 0
	for ; f != nil; f = f.prev {
		n++
	}
	return n
}

// CurrentFrame returns the innermost root frame of the current task.
func (vm *VM) CurrentFrame() *GCFrame {
	return vm.cur.gcstack
}
