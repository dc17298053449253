package vmm

import (
	"testing"

	"github.com/gopher-riscv/sv39kernel/kernel/mem"
	"github.com/gopher-riscv/sv39kernel/kernel/mem/pmm"
)

// withTestPhysMem backs physical memory with a host byte slice and points
// the package-level frame allocator at the same range, so New() and every
// intermediate directory-frame allocation a test triggers can actually be
// satisfied.
func withTestPhysMem(t *testing.T, pages int) {
	t.Helper()
	mem.SetPhysMemForTesting(make([]byte, pages*int(mem.PageSize)))
	pmm.Init(mem.PhysAddr(0), mem.PhysAddr(uint64(pages)*uint64(mem.PageSize)))
	t.Cleanup(func() { mem.SetPhysMemForTesting(nil) })
}

func TestPageTableMapAndTranslate(t *testing.T) {
	withTestPhysMem(t, 8)

	pt, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer pt.Free()

	vpn := mem.VirtPageNum(0x1234)
	ppn := mem.PhysPageNum(7)

	if err := pt.Map(vpn, ppn, FlagRead|FlagWrite); err != nil {
		t.Fatalf("unexpected error mapping: %v", err)
	}

	pte, err := pt.Translate(vpn)
	if err != nil {
		t.Fatalf("unexpected error translating: %v", err)
	}
	if pte.PPN() != ppn {
		t.Errorf("expected ppn %d; got %d", ppn, pte.PPN())
	}
	if !pte.IsValid() || !pte.Readable() || !pte.Writable() || pte.Executable() {
		t.Errorf("unexpected flags: %+v", pte.Flags())
	}
}

func TestPageTableMapRejectsDuplicate(t *testing.T) {
	withTestPhysMem(t, 8)

	pt, _ := New()
	defer pt.Free()

	vpn := mem.VirtPageNum(1)
	if err := pt.Map(vpn, mem.PhysPageNum(2), FlagRead); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := pt.Map(vpn, mem.PhysPageNum(3), FlagRead); err != ErrMappingExists {
		t.Fatalf("expected ErrMappingExists; got %v", err)
	}
}

func TestPageTableUnmap(t *testing.T) {
	withTestPhysMem(t, 8)

	pt, _ := New()
	defer pt.Free()

	vpn := mem.VirtPageNum(1)
	pt.Map(vpn, mem.PhysPageNum(2), FlagRead)

	if err := pt.Unmap(vpn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := pt.Translate(vpn); err != ErrMappingMissing {
		t.Fatalf("expected ErrMappingMissing after unmap; got %v", err)
	}
	if err := pt.Unmap(vpn); err != ErrMappingMissing {
		t.Fatalf("expected ErrMappingMissing on double unmap; got %v", err)
	}
}

func TestPageTableTranslateMissing(t *testing.T) {
	withTestPhysMem(t, 8)

	pt, _ := New()
	defer pt.Free()

	if _, err := pt.Translate(mem.VirtPageNum(42)); err != ErrMappingMissing {
		t.Fatalf("expected ErrMappingMissing; got %v", err)
	}
}

func TestPageTableTokenEncodesMode8(t *testing.T) {
	withTestPhysMem(t, 8)

	pt, _ := New()
	defer pt.Free()

	token := pt.Token()
	if mode := token >> 60; mode != 8 {
		t.Fatalf("expected satp mode field 8 (Sv39); got %d", mode)
	}

	restored := FromToken(token)
	if restored.rootPPN != pt.rootPPN {
		t.Fatalf("expected FromToken to recover the root ppn")
	}
}

func TestPageTableDistinctVPNsGetDistinctLeafSlots(t *testing.T) {
	withTestPhysMem(t, 16)

	pt, _ := New()
	defer pt.Free()

	// vpns that differ only in their L0 index share L2/L1 directory frames.
	base := mem.VirtPageNum(5 << 18)
	for i := uint64(0); i < 4; i++ {
		vpn := base.Add(i)
		if err := pt.Map(vpn, mem.PhysPageNum(100+i), FlagRead); err != nil {
			t.Fatalf("unexpected error mapping vpn %d: %v", vpn, err)
		}
	}

	for i := uint64(0); i < 4; i++ {
		vpn := base.Add(i)
		pte, err := pt.Translate(vpn)
		if err != nil {
			t.Fatalf("unexpected error translating vpn %d: %v", vpn, err)
		}
		if exp := mem.PhysPageNum(100 + i); pte.PPN() != exp {
			t.Errorf("vpn %d: expected ppn %d; got %d", vpn, exp, pte.PPN())
		}
	}
}
