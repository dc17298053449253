package pmm

import (
	"github.com/gopher-riscv/sv39kernel/kernel"
	"github.com/gopher-riscv/sv39kernel/kernel/kfmt/early"
	"github.com/gopher-riscv/sv39kernel/kernel/mem"
)

var (
	// allocator is the package-level frame allocator instance. Like the
	// teacher's allocator.FrameAllocator, this is a single-writer global:
	// callers must not hold a reference across a task context switch.
	allocator stackFrameAllocator

	errAllocatorExhausted = &kernel.Error{Module: "pmm", Message: "no free physical frames remain"}
	errFrameNotAllocated  = &kernel.Error{Module: "pmm", Message: "dealloc called with a frame that was never allocated"}
	errDoubleFree         = &kernel.Error{Module: "pmm", Message: "dealloc called with a frame that is already free"}

	// panicFn is swapped out by tests so a fatal allocator invariant
	// violation does not actually halt the test binary.
	panicFn = kernel.Panic
)

// stackFrameAllocator hands out 4 KiB physical frames from a fixed
// [next, end) PPN range, preferring previously-freed frames over advancing
// the bump pointer. It mirrors the original tutorial's StackFrameAllocator
// exactly: a (next, end, recycled) triple with no bitmap and no pool
// structure, appropriate for the single contiguous RAM region QEMU's virt
// machine exposes (unlike the teacher's BitmapAllocator, which has to
// support multiple, possibly disjoint, multiboot-reported memory regions).
type stackFrameAllocator struct {
	next      mem.PhysPageNum
	end       mem.PhysPageNum
	recycled  []mem.PhysPageNum
	allocated uint64
}

func (a *stackFrameAllocator) init(start, end mem.PhysPageNum) {
	a.next = start
	a.end = end
	a.recycled = nil
	a.allocated = 0
}

func (a *stackFrameAllocator) alloc() (mem.PhysPageNum, bool) {
	if n := len(a.recycled); n > 0 {
		ppn := a.recycled[n-1]
		a.recycled = a.recycled[:n-1]
		a.allocated++
		return ppn, true
	}

	if a.next == a.end {
		return 0, false
	}

	ppn := a.next
	a.next++
	a.allocated++
	return ppn, true
}

func (a *stackFrameAllocator) dealloc(ppn mem.PhysPageNum) *kernel.Error {
	if ppn >= a.next {
		return errFrameNotAllocated
	}
	for _, r := range a.recycled {
		if r == ppn {
			return errDoubleFree
		}
	}

	a.recycled = append(a.recycled, ppn)
	a.allocated--
	return nil
}

// Init sets up the frame allocator to serve frames from the half-open PPN
// range [ceil(kernelEnd), floor(memEnd)). It is fatal configuration error to
// call any other function in this package before Init.
func Init(kernelEnd, memEnd mem.PhysAddr) {
	start := kernelEnd.Ceil()
	end := memEnd.Floor()
	allocator.init(start, end)

	early.Printf(
		"[pmm] frame pool: [0x%16x, 0x%16x), %d frames available\n",
		uint64(start.PhysAddr()), uint64(end.PhysAddr()), uint64(end)-uint64(start),
	)
}

// Alloc reserves a single physical frame and returns a FrameTracker wrapping
// it. The returned frame's contents have already been zeroed.
func Alloc() (FrameTracker, *kernel.Error) {
	ppn, ok := allocator.alloc()
	if !ok {
		return FrameTracker{}, errAllocatorExhausted
	}

	return newFrameTracker(ppn), nil
}

// dealloc returns ppn to the allocator. A double-free or an out-of-range PPN
// is a fatal kernel invariant violation, matching the original tutorial's
// "dealloc is fatal on out-of-range or double free" contract.
func dealloc(ppn mem.PhysPageNum) {
	if err := allocator.dealloc(ppn); err != nil {
		panicFn(err)
	}
}
