package vmm

import (
	"github.com/gopher-riscv/sv39kernel/kernel"
	"github.com/gopher-riscv/sv39kernel/kernel/mem"
	"github.com/gopher-riscv/sv39kernel/kernel/mem/pmm"
)

// FlagPresent aliases FlagValid so call sites written against the teacher's
// x86-flavored flag names still read naturally.
const FlagPresent = FlagValid

// FlagRW grants both read and write access to a mapping.
const FlagRW = FlagRead | FlagWrite

// FlagNoExecute documents intent at call sites adapted from the teacher's
// x86 vmm, which carries an explicit NX bit. Sv39 PTEs have no such bit:
// a mapping is executable only if FlagExec is set, so "no execute" is
// already the default and this flag contributes no bits.
const FlagNoExecute = PTEFlags(0)

var (
	// ErrHeapNotInitialized is returned by EarlyReserveRegion before Init
	// has been called.
	ErrHeapNotInitialized = &kernel.Error{Module: "vmm", Message: "early heap region not initialized"}
	// ErrHeapExhausted is returned by EarlyReserveRegion once the reserved
	// virtual address range has been fully handed out.
	ErrHeapExhausted = &kernel.Error{Module: "vmm", Message: "early heap region exhausted"}
)

var (
	activeTable  *PageTable
	heapNextVA   mem.VirtAddr
	heapLimitVA  mem.VirtAddr
	heapDidStart bool
)

// Init records the page table that backs the running kernel and the
// [base, limit) virtual address range goruntime may grow its bootstrap heap
// into. pt must already be the table installed via satp: Map and
// EarlyReserveRegion mutate it directly rather than switching address
// spaces, matching how the teacher's goruntime package operates against a
// single always-active kernel page table.
func Init(pt *PageTable, base, limit mem.VirtAddr) {
	activeTable = pt
	heapNextVA = base
	heapLimitVA = limit
	heapDidStart = true
}

// EarlyReserveRegion bump-allocates size bytes of unmapped virtual address
// space from the region passed to Init, rounded up to a whole number of
// pages. It establishes no mapping: callers are expected to follow up with
// Map for each page they intend to use, exactly like the teacher's
// EarlyReserveRegion/Map pairing.
func EarlyReserveRegion(size mem.Size) (mem.VirtAddr, *kernel.Error) {
	if !heapDidStart {
		return 0, ErrHeapNotInitialized
	}

	pageCount := size.Pages()
	regionSize := mem.Size(pageCount) * mem.PageSize

	start := heapNextVA
	next := mem.VirtAddr(uint64(start) + uint64(regionSize))
	if next > heapLimitVA {
		return 0, ErrHeapExhausted
	}

	heapNextVA = next
	return start, nil
}

// Map installs a mapping for va in the active kernel page table to the
// frame ppn, which the caller has already allocated (only interior page
// table frames are allocated here). It is a thin adapter over PageTable.Map for
// callers, like kernel/goruntime, that only ever operate against the single
// running kernel address space rather than an explicit *PageTable value.
func Map(va mem.VirtAddr, ppn mem.PhysPageNum, flags PTEFlags) *kernel.Error {
	if activeTable == nil {
		return ErrHeapNotInitialized
	}
	return activeTable.Map(mem.VirtAddrToPage(va), ppn, flags)
}

// PageFromAddress returns the virtual page number containing addr, rounding
// down to the containing page rather than requiring exact alignment.
func PageFromAddress(addr mem.VirtAddr) mem.VirtPageNum {
	return addr.Floor()
}

// AllocFrame allocates a single physical frame for use by Map, releasing
// ownership to the caller: the returned FrameTracker is not tracked by any
// PageTable or MemorySet and must be freed by whoever holds onto it (or
// left for the finalizer) once unmapped.
func AllocFrame() (pmm.FrameTracker, *kernel.Error) {
	return pmm.Alloc()
}
