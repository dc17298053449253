package vmm

import (
	"encoding/binary"
	"testing"

	"github.com/gopher-riscv/sv39kernel/kernel/mem"
)

func TestNewKernelMapsIdenticalSections(t *testing.T) {
	withTestPhysMem(t, 32)
	SetTrampolinePhysAddr(uint64(31) * uint64(mem.PageSize))
	defer SetTrampolinePhysAddr(0)

	sections := KernelSections{
		TextStart: mem.VirtAddr(0), TextEnd: mem.VirtAddr(uint64(mem.PageSize)),
		RodataStart: mem.VirtAddr(uint64(mem.PageSize)), RodataEnd: mem.VirtAddr(2 * uint64(mem.PageSize)),
		DataStart: mem.VirtAddr(2 * uint64(mem.PageSize)), DataEnd: mem.VirtAddr(3 * uint64(mem.PageSize)),
		BSSStart: mem.VirtAddr(3 * uint64(mem.PageSize)), BSSEnd: mem.VirtAddr(4 * uint64(mem.PageSize)),
		KernelEnd: mem.VirtAddr(4 * uint64(mem.PageSize)), MemoryEnd: mem.VirtAddr(8 * uint64(mem.PageSize)),
	}

	ms, err := NewKernel(sections)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer ms.Free()

	pte, err := ms.Translate(mem.VirtPageNum(0))
	if err != nil {
		t.Fatalf("unexpected error translating .text page: %v", err)
	}
	if pte.PPN() != mem.PhysPageNum(0) {
		t.Errorf("expected identical mapping vpn 0 -> ppn 0; got ppn %d", pte.PPN())
	}
	if !pte.Readable() || !pte.Executable() || pte.Writable() {
		t.Errorf("expected .text page to be R|X only; got flags %+v", pte.Flags())
	}

	trampolineVPN := mem.VirtAddrFromUint64(mem.Trampoline).Floor()
	tpte, err := ms.Translate(trampolineVPN)
	if err != nil {
		t.Fatalf("unexpected error translating trampoline page: %v", err)
	}
	if tpte.PPN() != mem.PhysPageNum(31) {
		t.Errorf("expected trampoline ppn 31; got %d", tpte.PPN())
	}
}

// buildTestELF hand-assembles a minimal ELF64 little-endian image with a
// single R|W LOAD segment, mirroring the layout kernel/elf's own tests use.
func buildTestELF(entry, vaddr uint64, segData []byte, memExtra uint64) []byte {
	const (
		ehHeaderSize   = 0x40
		phentsize      = 56
		ehEntryOffset  = 0x18
		ehPhoffOffset  = 0x20
		ehPhentsizeOff = 0x36
		ehPhnumOffset  = 0x38
		phTypeOffset   = 0x00
		phFlagsOffset  = 0x04
		phOffsetOffset = 0x08
		phVAddrOffset  = 0x10
		phFileSzOffset = 0x20
		phMemSzOffset  = 0x28
	)

	phoff := uint64(ehHeaderSize)
	segOffset := phoff + phentsize

	buf := make([]byte, int(segOffset)+len(segData))
	buf[0], buf[1], buf[2], buf[3] = 0x7F, 'E', 'L', 'F'
	buf[4] = 2 // ELFCLASS64
	buf[5] = 1 // little-endian

	binary.LittleEndian.PutUint64(buf[ehEntryOffset:], entry)
	binary.LittleEndian.PutUint64(buf[ehPhoffOffset:], phoff)
	binary.LittleEndian.PutUint16(buf[ehPhentsizeOff:], phentsize)
	binary.LittleEndian.PutUint16(buf[ehPhnumOffset:], 1)

	ph := buf[phoff:]
	binary.LittleEndian.PutUint32(ph[phTypeOffset:], 1) // PT_LOAD
	binary.LittleEndian.PutUint32(ph[phFlagsOffset:], 0b110) // R|W
	binary.LittleEndian.PutUint64(ph[phOffsetOffset:], segOffset)
	binary.LittleEndian.PutUint64(ph[phVAddrOffset:], vaddr)
	binary.LittleEndian.PutUint64(ph[phFileSzOffset:], uint64(len(segData)))
	binary.LittleEndian.PutUint64(ph[phMemSzOffset:], uint64(len(segData))+memExtra)

	copy(buf[segOffset:], segData)
	return buf
}

func TestFromELFBuildsUserAddressSpace(t *testing.T) {
	withTestPhysMem(t, 64)
	SetTrampolinePhysAddr(uint64(63) * uint64(mem.PageSize))
	defer SetTrampolinePhysAddr(0)

	segData := []byte{1, 2, 3, 4}
	raw := buildTestELF(0x10000, 0x10000, segData, 16)

	ms, userSP, entry, err := FromELF(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer ms.Free()

	if entry.Uint64() != 0x10000 {
		t.Errorf("expected entry 0x10000; got 0x%x", entry.Uint64())
	}

	// One guard page above the single segment's end, then a full user
	// stack; top must exceed the segment's own end.
	segEndVA := uint64(0x10000) + uint64(len(segData)) + 16
	if userSP.Uint64() <= segEndVA {
		t.Errorf("expected user stack top above segment end 0x%x; got 0x%x", segEndVA, userSP.Uint64())
	}

	segVPN := mem.VirtAddrFromUint64(0x10000).Floor()
	pte, err := ms.Translate(segVPN)
	if err != nil {
		t.Fatalf("unexpected error translating loaded segment: %v", err)
	}
	if !pte.Readable() || !pte.Writable() {
		t.Errorf("expected loaded segment to be R|W; got flags %+v", pte.Flags())
	}

	trapCtxVPN := mem.VirtAddrFromUint64(mem.TrapContext).Floor()
	if _, err := ms.Translate(trapCtxVPN); err != nil {
		t.Fatalf("expected trap context page to be mapped: %v", err)
	}
}

func TestFromELFRejectsBadMagic(t *testing.T) {
	withTestPhysMem(t, 8)

	raw := buildTestELF(0, 0, nil, 0)
	raw[0] = 0x00

	if _, _, _, err := FromELF(raw); err == nil {
		t.Fatal("expected an error for a corrupted ELF magic")
	}
}
