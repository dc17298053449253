package vmm

import (
	"unsafe"

	"github.com/gopher-riscv/sv39kernel/kernel"
	"github.com/gopher-riscv/sv39kernel/kernel/mem"
	"github.com/gopher-riscv/sv39kernel/kernel/mem/pmm"
)

var (
	// ErrMappingExists is returned by Map when the target virtual page is
	// already mapped.
	ErrMappingExists = &kernel.Error{Module: "vmm", Message: "virtual page is already mapped"}
	// ErrMappingMissing is returned by Unmap and Translate when the target
	// virtual page carries no mapping.
	ErrMappingMissing = &kernel.Error{Module: "vmm", Message: "virtual page is not mapped"}
)

// PageTable owns the frames that make up a single Sv39 three-level page
// table tree; the data frames mapped Framed into it are owned by their
// MapArea, not by the PageTable. Unlike the single
// recursively-mapped page directory the teacher's x86 vmm package used,
// each PageTable here is a standalone value: address spaces never share
// mutable page table state, and the walk below never installs a recursive
// self-mapping to reach non-root levels. It is populated by explicitly
// walking from the root on every access instead.
type PageTable struct {
	rootPPN mem.PhysPageNum
	frames  []pmm.FrameTracker
}

// New allocates a fresh, empty three-level page table.
func New() (*PageTable, *kernel.Error) {
	root, err := pmm.Alloc()
	if err != nil {
		return nil, err
	}

	return &PageTable{
		rootPPN: root.PPN(),
		frames:  []pmm.FrameTracker{root},
	}, nil
}

// FromToken reconstructs a non-owning view of the page table whose root PPN
// is encoded in a satp token. The returned PageTable does not own any
// frames: callers must not call Free on it.
func FromToken(token uint64) *PageTable {
	return &PageTable{rootPPN: mem.PhysPageNum(token & ((1 << mem.PhysPageNumBits) - 1))}
}

// Token returns the satp register value that activates this page table:
// mode field 8 (Sv39) in the top 4 bits, root PPN in the bottom 44.
func (pt *PageTable) Token() uint64 {
	return uint64(8)<<60 | uint64(pt.rootPPN)
}

// Free releases every frame owned by this page table, including
// intermediate directory frames and the root. It is a no-op on a
// FromToken view, which owns nothing.
func (pt *PageTable) Free() {
	for _, f := range pt.frames {
		f.Free()
	}
	pt.frames = nil
}

const ptesPerTable = 1 << mem.PageTableIndexBits

// ptesOf overlays the 512-entry PTE array stored in the frame at ppn.
func ptesOf(ppn mem.PhysPageNum) []PageTableEntry {
	return unsafe.Slice((*PageTableEntry)(ppn.PhysAddr().Pointer()), ptesPerTable)
}

// walk returns the leaf PTE slot for vpn, allocating intermediate directory
// frames along the way when create is true. When create is false, walk stops
// and returns ok=false as soon as it encounters a directory slot that is not
// yet valid.
func (pt *PageTable) walk(vpn mem.VirtPageNum, create bool) (slot *PageTableEntry, ok bool) {
	idx := vpn.Indexes()
	ppn := pt.rootPPN

	for level := 0; level < mem.PageTableLevels; level++ {
		ptes := ptesOf(ppn)
		pte := &ptes[idx[level]]

		if level == mem.PageTableLevels-1 {
			return pte, true
		}

		if !pte.IsValid() {
			if !create {
				return nil, false
			}

			frame, err := pmm.Alloc()
			if err != nil {
				return nil, false
			}
			pt.frames = append(pt.frames, frame)
			*pte = NewPTE(frame.PPN(), FlagValid)
		}

		ppn = pte.PPN()
	}

	// unreachable: mem.PageTableLevels is always >= 1
	return nil, false
}

// Map installs a mapping from vpn to ppn with the given flags, allocating
// any intermediate directory frames required to reach the leaf slot. The
// FlagValid bit is added automatically. It is an error to map a vpn that is
// already mapped.
func (pt *PageTable) Map(vpn mem.VirtPageNum, ppn mem.PhysPageNum, flags PTEFlags) *kernel.Error {
	pte, ok := pt.walk(vpn, true)
	if !ok {
		return &kernel.Error{Module: "vmm", Message: "failed to allocate a page table frame"}
	}
	if pte.IsValid() {
		return ErrMappingExists
	}

	*pte = NewPTE(ppn, flags|FlagValid)
	return nil
}

// Unmap clears the mapping for vpn. It is an error to unmap a vpn that
// carries no mapping.
func (pt *PageTable) Unmap(vpn mem.VirtPageNum) *kernel.Error {
	pte, ok := pt.walk(vpn, false)
	if !ok || !pte.IsValid() {
		return ErrMappingMissing
	}

	*pte = PageTableEntry(0)
	return nil
}

// Translate returns the leaf page table entry mapping vpn, if any.
func (pt *PageTable) Translate(vpn mem.VirtPageNum) (PageTableEntry, *kernel.Error) {
	pte, ok := pt.walk(vpn, false)
	if !ok || !pte.IsValid() {
		return 0, ErrMappingMissing
	}
	return *pte, nil
}
