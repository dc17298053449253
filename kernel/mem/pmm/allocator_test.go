package pmm

import (
	"testing"

	"github.com/gopher-riscv/sv39kernel/kernel"
	"github.com/gopher-riscv/sv39kernel/kernel/mem"
)

func TestStackFrameAllocatorAllocDeallocCycle(t *testing.T) {
	var a stackFrameAllocator
	a.init(mem.PhysPageNum(10), mem.PhysPageNum(13))

	var got []mem.PhysPageNum
	for {
		ppn, ok := a.alloc()
		if !ok {
			break
		}
		got = append(got, ppn)
	}

	exp := []mem.PhysPageNum{10, 11, 12}
	if len(got) != len(exp) {
		t.Fatalf("expected %d frames to be allocated; got %d", len(exp), len(got))
	}
	for i := range exp {
		if got[i] != exp[i] {
			t.Errorf("frame %d: expected ppn %d; got %d", i, exp[i], got[i])
		}
	}

	if _, ok := a.alloc(); ok {
		t.Fatal("expected allocator to be exhausted")
	}

	// Deallocating and reallocating must preserve the set of in-use PPNs:
	// the recycled frame must be handed back out before the (already
	// exhausted) bump pointer is consulted again.
	if err := a.dealloc(mem.PhysPageNum(11)); err != nil {
		t.Fatalf("unexpected error deallocating an in-use frame: %v", err)
	}

	ppn, ok := a.alloc()
	if !ok || ppn != mem.PhysPageNum(11) {
		t.Fatalf("expected recycled frame 11 to be served first; got (%d, %v)", ppn, ok)
	}
}

func TestStackFrameAllocatorRejectsOutOfRangeDealloc(t *testing.T) {
	var a stackFrameAllocator
	a.init(mem.PhysPageNum(0), mem.PhysPageNum(4))
	a.alloc()

	if err := a.dealloc(mem.PhysPageNum(100)); err != errFrameNotAllocated {
		t.Fatalf("expected errFrameNotAllocated; got %v", err)
	}
}

func TestStackFrameAllocatorRejectsDoubleFree(t *testing.T) {
	var a stackFrameAllocator
	a.init(mem.PhysPageNum(0), mem.PhysPageNum(4))
	ppn, _ := a.alloc()

	if err := a.dealloc(ppn); err != nil {
		t.Fatalf("unexpected error on first dealloc: %v", err)
	}
	if err := a.dealloc(ppn); err != errDoubleFree {
		t.Fatalf("expected errDoubleFree on second dealloc; got %v", err)
	}
}

func TestInitServesFromEkernelToMemEnd(t *testing.T) {
	mem.SetPhysMemForTesting(make([]byte, 0x5000))
	defer mem.SetPhysMemForTesting(nil)

	Init(mem.PhysAddr(0x1000), mem.PhysAddr(0x5000))

	var frames []mem.PhysPageNum
	for {
		tr, err := Alloc()
		if err != nil {
			break
		}
		frames = append(frames, tr.PPN())
	}

	if len(frames) != 4 {
		t.Fatalf("expected 4 frames between 0x1000 and 0x5000; got %d", len(frames))
	}
	if frames[0] != mem.PhysPageNum(1) {
		t.Fatalf("expected first frame to be ppn 1; got %d", frames[0])
	}
}

func TestDeallocPanicsOnInvariantViolation(t *testing.T) {
	defer func() { panicFn = kernel.Panic }()
	mem.SetPhysMemForTesting(make([]byte, uint64(mem.PageSize)))
	defer mem.SetPhysMemForTesting(nil)

	var panicked bool
	panicFn = func(e interface{}) { panicked = true }

	Init(mem.PhysAddr(0), mem.PhysAddr(mem.PageSize))
	tr, err := Alloc()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tr.Free()
	dealloc(tr.PPN())
	if !panicked {
		t.Fatal("expected a double-free to invoke the panic function")
	}
}
