package vmm

import (
	"github.com/gopher-riscv/sv39kernel/kernel"
	"github.com/gopher-riscv/sv39kernel/kernel/elf"
	"github.com/gopher-riscv/sv39kernel/kernel/kfmt/early"
	"github.com/gopher-riscv/sv39kernel/kernel/mem"
)

// KernelSections describes the physical extents of the kernel image, as
// produced by the linker script symbols stext/etext/srodata/.../ekernel.
// The boot stub fills this in (as BootInfo.Sections) from those symbols and
// Kmain passes it to NewKernel; it is
// the Go-side stand-in for reading `extern` addresses directly, since this
// kernel has no linker symbols available as importable Go values.
type KernelSections struct {
	TextStart, TextEnd         mem.VirtAddr
	RodataStart, RodataEnd     mem.VirtAddr
	DataStart, DataEnd         mem.VirtAddr
	BSSStart, BSSEnd           mem.VirtAddr
	KernelEnd                  mem.VirtAddr
	MemoryEnd                  mem.VirtAddr
}

// MemorySet is a page table plus the map areas populating it: a full
// address space, either the kernel's own or a user application's.
type MemorySet struct {
	pageTable *PageTable
	areas     []*MapArea
}

// NewBare allocates an empty address space with no mapped areas.
func NewBare() (*MemorySet, *kernel.Error) {
	pt, err := New()
	if err != nil {
		return nil, err
	}
	return &MemorySet{pageTable: pt}, nil
}

// Token returns the satp value that activates this address space.
func (ms *MemorySet) Token() uint64 {
	return ms.pageTable.Token()
}

// PageTable returns the page table backing this address space, for callers
// outside this package (kmain's early-heap bring-up) that need to hand it
// to vmm.Init once this address space is the one installed via satp.
func (ms *MemorySet) PageTable() *PageTable {
	return ms.pageTable
}

// Translate looks up vpn in this address space's page table.
func (ms *MemorySet) Translate(vpn mem.VirtPageNum) (PageTableEntry, *kernel.Error) {
	return ms.pageTable.Translate(vpn)
}

// Free tears down every map area (releasing Framed frames) and then the
// page table itself (releasing interior-node frames). Mirrors the
// cascading-destruction invariant: dropping an address space drops its
// areas, which drops its frames.
func (ms *MemorySet) Free() {
	for _, a := range ms.areas {
		a.Unmap(ms.pageTable)
	}
	ms.areas = nil
	ms.pageTable.Free()
}

// push maps area into the page table and, if data is non-nil, copies it in,
// then records the area so Free can later tear it down. Callers must ensure
// area's VPN range does not overlap any area already pushed.
func (ms *MemorySet) push(area *MapArea, data []byte) *kernel.Error {
	if err := area.Map(ms.pageTable); err != nil {
		return err
	}
	if data != nil {
		if err := area.CopyData(ms.pageTable, data); err != nil {
			return err
		}
	}
	ms.areas = append(ms.areas, area)
	return nil
}

// InsertFramedArea adds a Framed, zero-initialized area with no backing
// data. Callers must guarantee it does not overlap any existing area.
func (ms *MemorySet) InsertFramedArea(startVA, endVA mem.VirtAddr, perm MapPermission) *kernel.Error {
	return ms.push(NewMapArea(startVA, endVA, Framed, perm), nil)
}

func (ms *MemorySet) mapTrampoline() *kernel.Error {
	// The trampoline page is shared, identically mapped, read+execute
	// code at the same high virtual address in every address space. It
	// is not tracked as a MapArea: its physical page is the kernel's own
	// trampoline code page, owned by nobody, and must never be unmapped
	// by tearing down a user address space.
	return ms.pageTable.Map(
		mem.VirtAddrFromUint64(mem.Trampoline).Floor(),
		mem.PhysAddrFromUint64(trampolinePhysAddr).Floor(),
		FlagRead|FlagExec,
	)
}

// trampolinePhysAddr is set by Kmain before the first call to NewKernel or
// FromELF, once the linker-provided strampoline symbol is known.
var trampolinePhysAddr uint64

// SetTrampolinePhysAddr records the physical address of the trampoline
// code page, read from the linker's strampoline symbol.
func SetTrampolinePhysAddr(pa uint64) {
	trampolinePhysAddr = pa
}

// NewKernel builds the kernel's own identity-mapped address space: one
// Identical area per linker-reported section plus the remaining physical
// RAM up to sections.MemoryEnd, all available for framed allocation by
// user-space map areas later on.
func NewKernel(sections KernelSections) (*MemorySet, *kernel.Error) {
	ms, err := NewBare()
	if err != nil {
		return nil, err
	}

	if err := ms.mapTrampoline(); err != nil {
		return nil, err
	}

	early.Printf(".text [0x%16x, 0x%16x)\n", sections.TextStart.Uint64(), sections.TextEnd.Uint64())
	if err := ms.push(NewMapArea(sections.TextStart, sections.TextEnd, Identical, PermRead|PermExec), nil); err != nil {
		return nil, err
	}

	early.Printf(".rodata [0x%16x, 0x%16x)\n", sections.RodataStart.Uint64(), sections.RodataEnd.Uint64())
	if err := ms.push(NewMapArea(sections.RodataStart, sections.RodataEnd, Identical, PermRead), nil); err != nil {
		return nil, err
	}

	early.Printf(".data [0x%16x, 0x%16x)\n", sections.DataStart.Uint64(), sections.DataEnd.Uint64())
	if err := ms.push(NewMapArea(sections.DataStart, sections.DataEnd, Identical, PermRead|PermWrite), nil); err != nil {
		return nil, err
	}

	early.Printf(".bss [0x%16x, 0x%16x)\n", sections.BSSStart.Uint64(), sections.BSSEnd.Uint64())
	if err := ms.push(NewMapArea(sections.BSSStart, sections.BSSEnd, Identical, PermRead|PermWrite), nil); err != nil {
		return nil, err
	}

	early.Printf("mapping physical memory [0x%16x, 0x%16x)\n", sections.KernelEnd.Uint64(), sections.MemoryEnd.Uint64())
	if err := ms.push(NewMapArea(sections.KernelEnd, sections.MemoryEnd, Identical, PermRead|PermWrite), nil); err != nil {
		return nil, err
	}

	return ms, nil
}

// FromELF parses elfData and builds a fresh user address space: one Framed
// area per LOAD segment (with its file contents copied in), a guard page,
// a user stack, and a trap-context page. It returns the new address space,
// the user stack's top virtual address, and the ELF entry point.
func FromELF(elfData []byte) (*MemorySet, mem.VirtAddr, mem.VirtAddr, *kernel.Error) {
	ms, err := NewBare()
	if err != nil {
		return nil, 0, 0, err
	}
	if err := ms.mapTrampoline(); err != nil {
		return nil, 0, 0, err
	}

	f, err := elf.Parse(elfData)
	if err != nil {
		return nil, 0, 0, err
	}

	var maxEndVPN mem.VirtPageNum
	for _, ph := range f.ProgramHeaders {
		if ph.Type != elf.PTLoad {
			continue
		}

		startVA := mem.VirtAddrFromUint64(ph.VirtAddr)
		endVA := mem.VirtAddrFromUint64(ph.VirtAddr + ph.MemSize)

		perm := PermUser
		if ph.Flags&elf.PFRead != 0 {
			perm |= PermRead
		}
		if ph.Flags&elf.PFWrite != 0 {
			perm |= PermWrite
		}
		if ph.Flags&elf.PFExec != 0 {
			perm |= PermExec
		}

		area := NewMapArea(startVA, endVA, Framed, perm)
		if area.endVPN > maxEndVPN {
			maxEndVPN = area.endVPN
		}

		fileBytes, err := ph.FileBytes(f)
		if err != nil {
			return nil, 0, 0, err
		}
		if err := ms.push(area, fileBytes); err != nil {
			return nil, 0, 0, err
		}
	}

	maxEndVA := maxEndVPN.VirtAddr()
	userStackBottom := maxEndVA.Uint64() + uint64(mem.PageSize) // one guard page
	userStackTop := userStackBottom + mem.UserStackSize

	if err := ms.push(NewMapArea(
		mem.VirtAddrFromUint64(userStackBottom),
		mem.VirtAddrFromUint64(userStackTop),
		Framed, PermRead|PermWrite|PermUser,
	), nil); err != nil {
		return nil, 0, 0, err
	}

	if err := ms.push(NewMapArea(
		mem.VirtAddrFromUint64(mem.TrapContext),
		mem.VirtAddrFromUint64(mem.Trampoline),
		Framed, PermRead|PermWrite,
	), nil); err != nil {
		return nil, 0, 0, err
	}

	return ms, mem.VirtAddrFromUint64(userStackTop), mem.VirtAddrFromUint64(f.Entry), nil
}
