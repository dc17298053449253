package mem

// PhysAddr describes a 56-bit physical memory address. Values are always
// truncated to PhysAddrBits bits; physical addresses never carry a sign bit.
type PhysAddr uint64

// VirtAddr describes a 39-bit virtual memory address (Sv39). Values are
// truncated to VirtAddrBits bits when constructed; widening a VirtAddr back
// to a machine word sign-extends from bit (VirtAddrBits-1).
type VirtAddr uint64

// PhysPageNum identifies a physical memory page (PhysAddr >> PageShift).
type PhysPageNum uint64

// VirtPageNum identifies a virtual memory page (VirtAddr >> PageShift).
type VirtPageNum uint64

// PhysAddrFromUint64 truncates v to the legal physical address width and
// returns the corresponding PhysAddr.
func PhysAddrFromUint64(v uint64) PhysAddr {
	return PhysAddr(v & ((1 << PhysAddrBits) - 1))
}

// VirtAddrFromUint64 truncates v to the legal virtual address width and
// returns the corresponding VirtAddr.
func VirtAddrFromUint64(v uint64) VirtAddr {
	return VirtAddr(v & ((1 << VirtAddrBits) - 1))
}

// PhysPageNumFromUint64 truncates v to the legal physical page number width.
func PhysPageNumFromUint64(v uint64) PhysPageNum {
	return PhysPageNum(v & ((1 << PhysPageNumBits) - 1))
}

// VirtPageNumFromUint64 truncates v to the legal virtual page number width.
func VirtPageNumFromUint64(v uint64) VirtPageNum {
	return VirtPageNum(v & ((1 << VirtPageNumBits) - 1))
}

// Uint64 returns the raw physical address as a machine word. Physical
// addresses never require sign extension.
func (pa PhysAddr) Uint64() uint64 {
	return uint64(pa)
}

// Uint64 returns the virtual address widened back to a machine word. If bit
// (VirtAddrBits-1) is set the result is sign-extended by OR-ing in all the
// upper bits, matching the Sv39 convention that only sign-extended virtual
// addresses are legal.
func (va VirtAddr) Uint64() uint64 {
	v := uint64(va)
	if v&(1<<(VirtAddrBits-1)) != 0 {
		return v | ^uint64((1<<VirtAddrBits)-1)
	}
	return v
}

// Uint64 returns the raw physical page number.
func (ppn PhysPageNum) Uint64() uint64 {
	return uint64(ppn)
}

// Uint64 returns the raw virtual page number.
func (vpn VirtPageNum) Uint64() uint64 {
	return uint64(vpn)
}

// PageOffset returns the byte offset of pa within its containing page.
func (pa PhysAddr) PageOffset() uint64 {
	return uint64(pa) & uint64(PageSize-1)
}

// PageOffset returns the byte offset of va within its containing page.
func (va VirtAddr) PageOffset() uint64 {
	return uint64(va) & uint64(PageSize-1)
}

// Aligned returns true if pa falls exactly on a page boundary.
func (pa PhysAddr) Aligned() bool {
	return pa.PageOffset() == 0
}

// Aligned returns true if va falls exactly on a page boundary.
func (va VirtAddr) Aligned() bool {
	return va.PageOffset() == 0
}

// Floor returns the physical page number containing pa, rounding down.
func (pa PhysAddr) Floor() PhysPageNum {
	return PhysPageNum(uint64(pa) >> PageShift)
}

// Ceil returns the physical page number that starts at or after pa,
// rounding up.
func (pa PhysAddr) Ceil() PhysPageNum {
	return PhysPageNum((uint64(pa) + uint64(PageSize) - 1) >> PageShift)
}

// Floor returns the virtual page number containing va, rounding down.
func (va VirtAddr) Floor() VirtPageNum {
	return VirtPageNum(uint64(va) >> PageShift)
}

// Ceil returns the virtual page number that starts at or after va,
// rounding up.
func (va VirtAddr) Ceil() VirtPageNum {
	return VirtPageNum((uint64(va) + uint64(PageSize) - 1) >> PageShift)
}

// PhysAddr converts a page-aligned physical page number back to the address
// of its first byte.
func (ppn PhysPageNum) PhysAddr() PhysAddr {
	return PhysAddr(uint64(ppn) << PageShift)
}

// PhysAddrToPage converts a physical address to its containing page number. The
// address must already be page-aligned; callers that need rounding should
// use Floor/Ceil instead.
func PhysAddrToPage(pa PhysAddr) PhysPageNum {
	if !pa.Aligned() {
		panic("mem: PhysAddrToPage called with a non page-aligned address")
	}
	return pa.Floor()
}

// VirtAddr converts a page-aligned virtual page number back to the address
// of its first byte.
func (vpn VirtPageNum) VirtAddr() VirtAddr {
	return VirtAddr(uint64(vpn) << PageShift)
}

// VirtAddrToPage converts a virtual address to its containing page number.
// The address must already be page-aligned; callers that need rounding
// should use Floor/Ceil instead.
func VirtAddrToPage(va VirtAddr) VirtPageNum {
	if !va.Aligned() {
		panic("mem: VirtAddrToPage called with a non page-aligned address")
	}
	return va.Floor()
}

// Indexes decomposes a virtual page number into the three 9-bit indices used
// to walk the Sv39 page table tree, ordered [L2, L1, L0] (top level first).
func (vpn VirtPageNum) Indexes() [PageTableLevels]uint16 {
	var (
		idx [PageTableLevels]uint16
		v   = uint64(vpn)
	)
	for i := PageTableLevels - 1; i >= 0; i-- {
		idx[i] = uint16(v & ((1 << PageTableIndexBits) - 1))
		v >>= PageTableIndexBits
	}
	return idx
}

// Add returns vpn advanced by delta pages.
func (vpn VirtPageNum) Add(delta uint64) VirtPageNum {
	return VirtPageNum(uint64(vpn) + delta)
}
