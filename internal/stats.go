package internal

import (
	"fmt"
	"strings"
	"time"

	"gitlab.com/variadico/lctime"
)

// GCStats summarizes the allocator and collector.
type GCStats struct {
	// Collections is the number of completed collections.
	Collections int
	// LastFreed and LastFreedBytes describe the most recent collection.
	LastFreed      int
	LastFreedBytes int
	// TotalFreed is the number of objects reclaimed by all collections.
	TotalFreed uint64
	// TotalAllocated is the number of bytes ever allocated, including
	// external array storage.
	TotalAllocated uint64
	// Allocations is the number of objects ever allocated.
	Allocations uint64
	// PauseTotal is the time spent in collections.
	PauseTotal time.Duration
	// LastCollection is the start time of the most recent collection.
	LastCollection time.Time

	// Live is the number of bytes currently charged to the heap.
	Live int
	// PoolCells and PoolFree count cells of each small-object size class.
	PoolCells []int
	PoolFree  []int
	// BigObjects is the number of live objects outside the pools.
	BigObjects int
	// Preserved is the number of permanent roots.
	Preserved int
	// Finalizers is the number of objects with pending finalizers.
	Finalizers int
	// WeakRefs is the number of live weak references.
	WeakRefs int
}

// Stats returns a snapshot of the collector's statistics.
func (vm *VM) Stats() GCStats {
	h := &vm.heap
	s := h.stats
	s.Live = h.live
	s.BigObjects = h.nbig
	s.Preserved = len(h.preserved)
	s.Finalizers = len(h.finalizers)
	s.WeakRefs = len(h.weakrefs)
	s.PoolCells = make([]int, len(h.pools))
	s.PoolFree = make([]int, len(h.pools))
	for i := range h.pools {
		p := &h.pools[i]
		s.PoolCells[i] = len(p.pages) * h.pageCells
		s.PoolFree[i] = p.nfree
	}
	return s
}

// String formats the statistics for display.
func (s GCStats) String() string {
	var b strings.Builder
	if s.Collections > 0 {
		fmt.Fprintf(&b, "Last collection at %s (%v ago)\n", lctime.Strftime("%Y-%m-%d %H:%M:%S", s.LastCollection), time.Since(s.LastCollection).Round(time.Millisecond))
	} else {
		b.WriteString("No collection has run\n")
	}
	fmt.Fprintf(&b, `Collections: %d
Total pause: %v
Allocated: %d bytes in %d objects
Live: %d bytes
Last freed: %d objects (%d bytes)
Total freed: %d objects
`, s.Collections, s.PauseTotal, s.TotalAllocated, s.Allocations, s.Live, s.LastFreed, s.LastFreedBytes, s.TotalFreed)
	for i := range s.PoolCells {
		fmt.Fprintf(&b, "Pool %d bytes: %d cells, %d free\n", sizeClasses[i], s.PoolCells[i], s.PoolFree[i])
	}
	fmt.Fprintf(&b, "Big objects: %d\nPreserved: %d\nFinalizers: %d\nWeak references: %d", s.BigObjects, s.Preserved, s.Finalizers, s.WeakRefs)
	return b.String()
}
