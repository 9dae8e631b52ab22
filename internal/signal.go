package internal

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
)

// SigatomicBegin enters a region in which interrupts are deferred. Regions
// nest.
func (vm *VM) SigatomicBegin() {
	vm.deferSignal++
}

// SigatomicEnd leaves a region entered with SigatomicBegin. Leaving the
// outermost region delivers any interrupt that arrived inside it.
func (vm *VM) SigatomicEnd() {
	if vm.deferSignal <= 0 {
		panic("jlrt: SigatomicEnd without SigatomicBegin")
	}
	vm.deferSignal--
	if vm.deferSignal == 0 {
		vm.Safepoint()
	}
}

// SigatomicDepth returns the current interrupt deferral depth.
func (vm *VM) SigatomicDepth() int {
	return vm.deferSignal
}

// Interrupt requests that InterruptException be raised in the current task
// at its next safepoint outside any deferral region. It is safe to call from
// any goroutine. Requests made before the pending one is delivered are
// coalesced.
func (vm *VM) Interrupt() {
	atomic.StoreInt32(&vm.interrupt, 1)
}

// InterruptPending reports whether an interrupt is waiting for delivery.
func (vm *VM) InterruptPending() bool {
	return atomic.LoadInt32(&vm.interrupt) != 0
}

// Safepoint delivers a pending interrupt if interrupts are not deferred.
// Allocation, calls, and the end of deferral regions are safepoints.
func (vm *VM) Safepoint() {
	if vm.deferSignal > 0 || vm.unwinding || vm.closing {
		return
	}
	if atomic.CompareAndSwapInt32(&vm.interrupt, 1, 0) {
		vm.Raise(vm.interruptException)
	}
}

// NotifyInterrupts arranges for the platform's interrupt signals to call
// Interrupt until ctx is done.
func (vm *VM) NotifyInterrupts(ctx context.Context) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, interruptSignals...)
	go func() {
		defer signal.Stop(c)
		for {
			select {
			case <-ctx.Done():
				return
			case <-c:
				vm.Interrupt()
			}
		}
	}()
}
