package vmm

import (
	"unsafe"

	"github.com/gopher-riscv/sv39kernel/kernel"
	"github.com/gopher-riscv/sv39kernel/kernel/mem"
	"github.com/gopher-riscv/sv39kernel/kernel/mem/pmm"
)

// ErrCopyDataRequiresFramed is returned by MapArea.CopyData when called on
// an Identical-mapped area: there is no dedicated frame to copy the
// initializer bytes into, since the area's physical pages are whatever
// physical pages its virtual pages numerically equal.
var ErrCopyDataRequiresFramed = &kernel.Error{Module: "vmm", Message: "CopyData requires a Framed map area"}

// MapType selects how a MapArea's virtual pages are backed by physical
// frames.
type MapType uint8

const (
	// Identical maps each virtual page vpn to the physical page with the
	// same number. Used for kernel sections, which run with the MMU
	// enabled but are linked at their physical load address.
	Identical MapType = iota
	// Framed maps each virtual page to a freshly allocated, independent
	// physical frame.
	Framed
)

// MapPermission carries the R/W/X/U access bits a MapArea grants. The bit
// positions intentionally match PTEFlags so converting one to the other is
// a plain cast.
type MapPermission uint8

const (
	PermRead  MapPermission = MapPermission(FlagRead)
	PermWrite MapPermission = MapPermission(FlagWrite)
	PermExec  MapPermission = MapPermission(FlagExec)
	PermUser  MapPermission = MapPermission(FlagUser)
)

// MapArea is one contiguous logical segment of an address space: a run of
// virtual pages sharing a single MapType and MapPermission. A MemorySet is
// built up out of non-overlapping MapAreas.
type MapArea struct {
	startVPN, endVPN mem.VirtPageNum
	mapType          MapType
	perm             MapPermission
	frames           map[mem.VirtPageNum]pmm.FrameTracker
}

// NewMapArea describes the logical segment spanning [startVA, endVA), with
// startVA rounded down and endVA rounded up to a page boundary.
func NewMapArea(startVA, endVA mem.VirtAddr, mapType MapType, perm MapPermission) *MapArea {
	return &MapArea{
		startVPN: startVA.Floor(),
		endVPN:   endVA.Ceil(),
		mapType:  mapType,
		perm:     perm,
		frames:   make(map[mem.VirtPageNum]pmm.FrameTracker),
	}
}

func (a *MapArea) mapOne(pt *PageTable, vpn mem.VirtPageNum) *kernel.Error {
	var ppn mem.PhysPageNum

	switch a.mapType {
	case Identical:
		ppn = mem.PhysPageNum(vpn)
	case Framed:
		frame, err := pmm.Alloc()
		if err != nil {
			return err
		}
		ppn = frame.PPN()
		a.frames[vpn] = frame
	}

	return pt.Map(vpn, ppn, PTEFlags(a.perm))
}

func (a *MapArea) unmapOne(pt *PageTable, vpn mem.VirtPageNum) {
	if a.mapType == Framed {
		if frame, ok := a.frames[vpn]; ok {
			frame.Free()
			delete(a.frames, vpn)
		}
	}
	pt.Unmap(vpn)
}

// Map installs every page in this area into pt.
func (a *MapArea) Map(pt *PageTable) *kernel.Error {
	for vpn := a.startVPN; vpn < a.endVPN; vpn = vpn.Add(1) {
		if err := a.mapOne(pt, vpn); err != nil {
			return err
		}
	}
	return nil
}

// Unmap removes every page in this area from pt, freeing any Framed frames
// it owns.
func (a *MapArea) Unmap(pt *PageTable) {
	for vpn := a.startVPN; vpn < a.endVPN; vpn = vpn.Add(1) {
		a.unmapOne(pt, vpn)
	}
}

// CopyData copies data into this area's backing frames, one page at a time,
// starting at the area's first page. data must fit within the area and the
// area must be Framed: there is no reason to copy initializer bytes into an
// Identical mapping since its physical pages are not privately owned.
func (a *MapArea) CopyData(pt *PageTable, data []byte) *kernel.Error {
	if a.mapType != Framed {
		return ErrCopyDataRequiresFramed
	}

	vpn := a.startVPN
	for start := 0; start < len(data); start += int(mem.PageSize) {
		end := start + int(mem.PageSize)
		if end > len(data) {
			end = len(data)
		}

		pte, err := pt.Translate(vpn)
		if err != nil {
			return err
		}

		dst := unsafe.Slice((*byte)(pte.PPN().PhysAddr().Pointer()), end-start)
		copy(dst, data[start:end])

		vpn = vpn.Add(1)
	}
	return nil
}
