// Package pmm contains code that manages physical memory frame allocations.
package pmm

import (
	"runtime"

	"github.com/gopher-riscv/sv39kernel/kernel/mem"
)

// frameTrackerState is the heap-allocated backing store for a FrameTracker.
// It is kept separate from FrameTracker so a runtime.SetFinalizer can be
// attached to it (finalizers never fire on values that contain no pointers,
// and a bare mem.PhysPageNum is such a value).
type frameTrackerState struct {
	ppn   mem.PhysPageNum
	freed bool
}

// FrameTracker is a handle to a physical frame obtained from the package
// allocator. Alloc already zeroes the frame contents before returning a
// tracker. Exactly one live tracker exists per PPN at any instant.
//
// Go has no destructors, so the Rust tutorial's "dropping the tracker frees
// the frame" contract is expressed as an explicit Free method. Every call
// site in this tree calls Free when a mapping is torn down; a
// runtime.SetFinalizer is additionally attached as a backstop in case a
// tracker is ever discarded without that explicit call.
type FrameTracker struct {
	state *frameTrackerState
}

// PPN returns the physical page number wrapped by this tracker.
func (t FrameTracker) PPN() mem.PhysPageNum {
	return t.state.ppn
}

// Free returns the frame to the package allocator. Free is idempotent: a
// second call is a no-op.
func (t FrameTracker) Free() {
	if t.state.freed {
		return
	}
	t.state.freed = true
	runtime.SetFinalizer(t.state, nil)
	dealloc(t.state.ppn)
}

func newFrameTracker(ppn mem.PhysPageNum) FrameTracker {
	mem.Memset(uintptr(ppn.PhysAddr().Pointer()), 0, mem.PageSize)

	state := &frameTrackerState{ppn: ppn}
	runtime.SetFinalizer(state, func(s *frameTrackerState) {
		if !s.freed {
			s.freed = true
			dealloc(s.ppn)
		}
	})
	return FrameTracker{state: state}
}
