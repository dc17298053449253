package vmm

import (
	"bytes"
	"testing"
	"unsafe"

	"github.com/gopher-riscv/sv39kernel/kernel/mem"
)

func TestMapAreaFramedMapAndCopyData(t *testing.T) {
	withTestPhysMem(t, 16)

	pt, _ := New()
	defer pt.Free()

	area := NewMapArea(mem.VirtAddr(0), mem.VirtAddr(uint64(mem.PageSize)*2+10), Framed, PermRead|PermWrite)
	if err := area.Map(pt); err != nil {
		t.Fatalf("unexpected error mapping: %v", err)
	}

	data := make([]byte, uint64(mem.PageSize)*2+10)
	for i := range data {
		data[i] = byte(i)
	}

	if err := area.CopyData(pt, data); err != nil {
		t.Fatalf("unexpected error copying data: %v", err)
	}

	for page := 0; page < 3; page++ {
		vpn := mem.VirtPageNum(page)
		pte, err := pt.Translate(vpn)
		if err != nil {
			t.Fatalf("page %d: unexpected error translating: %v", page, err)
		}

		size := int(mem.PageSize)
		start := page * size
		end := start + size
		if end > len(data) {
			end = len(data)
		}

		got := unsafe.Slice((*byte)(pte.PPN().PhysAddr().Pointer()), end-start)
		if !bytes.Equal(got, data[start:end]) {
			t.Errorf("page %d: copied data mismatch", page)
		}
	}
}

func TestMapAreaIdenticalMapsSamePage(t *testing.T) {
	withTestPhysMem(t, 8)

	pt, _ := New()
	defer pt.Free()

	area := NewMapArea(mem.VirtAddr(0), mem.VirtAddr(uint64(mem.PageSize)), Identical, PermRead|PermWrite)
	if err := area.Map(pt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pte, err := pt.Translate(mem.VirtPageNum(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pte.PPN() != mem.PhysPageNum(0) {
		t.Errorf("expected identical mapping to vpn 0 -> ppn 0; got ppn %d", pte.PPN())
	}
}

func TestMapAreaCopyDataRejectsIdentical(t *testing.T) {
	withTestPhysMem(t, 8)

	pt, _ := New()
	defer pt.Free()

	area := NewMapArea(mem.VirtAddr(0), mem.VirtAddr(uint64(mem.PageSize)), Identical, PermRead)
	area.Map(pt)

	if err := area.CopyData(pt, []byte{1, 2, 3}); err != ErrCopyDataRequiresFramed {
		t.Fatalf("expected ErrCopyDataRequiresFramed; got %v", err)
	}
}

func TestMapAreaUnmapFreesFramedPages(t *testing.T) {
	withTestPhysMem(t, 8)

	pt, _ := New()
	defer pt.Free()

	area := NewMapArea(mem.VirtAddr(0), mem.VirtAddr(uint64(mem.PageSize)), Framed, PermRead|PermWrite)
	area.Map(pt)
	area.Unmap(pt)

	if _, err := pt.Translate(mem.VirtPageNum(0)); err != ErrMappingMissing {
		t.Fatalf("expected unmapped page after Unmap; got err=%v", err)
	}
	if len(area.frames) != 0 {
		t.Fatalf("expected Unmap to release all tracked frames; got %d remaining", len(area.frames))
	}
}
