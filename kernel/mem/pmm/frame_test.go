package pmm

import (
	"testing"

	"github.com/gopher-riscv/sv39kernel/kernel/mem"
)

func TestFrameTrackerFreeReturnsFrameToAllocator(t *testing.T) {
	mem.SetPhysMemForTesting(make([]byte, 2*uint64(mem.PageSize)))
	defer mem.SetPhysMemForTesting(nil)

	Init(mem.PhysAddr(0), mem.PhysAddr(2*uint64(mem.PageSize)))

	first, err := Alloc()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first.Free()

	second, err := Alloc()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.PPN() != first.PPN() {
		t.Fatalf("expected freed frame %d to be reused; got %d", first.PPN(), second.PPN())
	}
}

func TestFrameTrackerFreeIsIdempotent(t *testing.T) {
	mem.SetPhysMemForTesting(make([]byte, uint64(mem.PageSize)))
	defer mem.SetPhysMemForTesting(nil)

	Init(mem.PhysAddr(0), mem.PhysAddr(uint64(mem.PageSize)))

	tr, err := Alloc()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tr.Free()
	tr.Free() // must not double-free the underlying PPN
}
