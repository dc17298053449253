// Package vmm implements the Sv39 three-level virtual memory subsystem: page
// table entries, page tables, mapped logical segments (MapArea) and
// per-process address spaces (MemorySet).
package vmm

import (
	"github.com/gopher-riscv/sv39kernel/kernel/mem"
)

// PTEFlags is the low byte of a page table entry: the V/R/W/X/U/G/A/D bits
// defined by the Sv39 page table entry format.
type PTEFlags uint8

const (
	// FlagValid marks the entry as present; all other flags are
	// meaningless on an entry that does not carry this bit.
	FlagValid PTEFlags = 1 << 0
	// FlagRead permits loads through mappings that carry this entry.
	FlagRead PTEFlags = 1 << 1
	// FlagWrite permits stores through mappings that carry this entry.
	FlagWrite PTEFlags = 1 << 2
	// FlagExec permits instruction fetch through mappings that carry this entry.
	FlagExec PTEFlags = 1 << 3
	// FlagUser allows access from U-mode. Without this bit only S-mode
	// may use the mapping.
	FlagUser PTEFlags = 1 << 4
	// FlagGlobal marks the mapping present in all address spaces. Unused
	// by this kernel but kept so the flag byte matches the hardware format.
	FlagGlobal PTEFlags = 1 << 5
	// FlagAccessed is set by hardware on first use of the entry.
	FlagAccessed PTEFlags = 1 << 6
	// FlagDirty is set by hardware on first store through the entry.
	FlagDirty PTEFlags = 1 << 7
)

const (
	pteFlagMask = 0xFF
	ptePPNShift = 10
	ptePPNMask  = (uint64(1)<<44 - 1) << ptePPNShift
)

// PageTableEntry is the in-memory representation of a single Sv39 page table
// entry: a 44-bit physical page number in bits [53:10] and an 8-bit flag
// byte in bits [7:0].
type PageTableEntry uint64

// NewPTE packs ppn and flags into a page table entry.
func NewPTE(ppn mem.PhysPageNum, flags PTEFlags) PageTableEntry {
	return PageTableEntry(uint64(ppn)<<ptePPNShift | uint64(flags))
}

// PPN returns the physical page number this entry points to.
func (pte PageTableEntry) PPN() mem.PhysPageNum {
	return mem.PhysPageNum((uint64(pte) & ptePPNMask) >> ptePPNShift)
}

// Flags returns the flag byte carried by this entry.
func (pte PageTableEntry) Flags() PTEFlags {
	return PTEFlags(uint64(pte) & pteFlagMask)
}

// IsValid reports whether the V bit is set.
func (pte PageTableEntry) IsValid() bool {
	return pte.Flags()&FlagValid != 0
}

// Readable reports whether the R bit is set.
func (pte PageTableEntry) Readable() bool {
	return pte.Flags()&FlagRead != 0
}

// Writable reports whether the W bit is set.
func (pte PageTableEntry) Writable() bool {
	return pte.Flags()&FlagWrite != 0
}

// Executable reports whether the X bit is set.
func (pte PageTableEntry) Executable() bool {
	return pte.Flags()&FlagExec != 0
}

// isLeaf reports whether this entry terminates the page table walk, i.e. it
// carries at least one of R/W/X. An entry that is valid but carries none of
// those bits is a pointer to the next-level table.
func (pte PageTableEntry) isLeaf() bool {
	return pte.Flags()&(FlagRead|FlagWrite|FlagExec) != 0
}
