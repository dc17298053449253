package kmain

import (
	"unsafe"

	"github.com/gopher-riscv/sv39kernel/kernel"
	"github.com/gopher-riscv/sv39kernel/kernel/cpu"
	"github.com/gopher-riscv/sv39kernel/kernel/loader"
	"github.com/gopher-riscv/sv39kernel/kernel/mem"
	"github.com/gopher-riscv/sv39kernel/kernel/mem/pmm"
	"github.com/gopher-riscv/sv39kernel/kernel/mem/vmm"
	"github.com/gopher-riscv/sv39kernel/kernel/syscall"
	"github.com/gopher-riscv/sv39kernel/kernel/task"
	"github.com/gopher-riscv/sv39kernel/kernel/timer"
	"github.com/gopher-riscv/sv39kernel/kernel/trap"

	_ "github.com/gopher-riscv/sv39kernel/kernel/goruntime"
)

var errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}

// BootInfo carries every linker- and boot-stub-provided value Kmain needs
// to bring the kernel up. It plays the same role the raw multibootInfoPtr
// once did: the one opaque pointer rt0 hands to Kmain. The boot assembly
// fills in the package-level bootInfo (boot.go) from the linker script's
// section symbols before calling into Go, since there is no way to import
// an `extern` symbol as a Go value directly.
type BootInfo struct {
	Sections           vmm.KernelSections
	TrampolinePhysAddr uint64
	EarlyHeapBase      mem.VirtAddr
	EarlyHeapLimit     mem.VirtAddr
	AppCount           func() int
	AppImage           func(i int) []byte
}

// taskStacks pins every per-task kernel and user stack buffer so the
// garbage collector never reclaims memory the task manager or a running
// application references only by raw address.
var taskStacks [][]byte

// newStack allocates one task's stack (kernel or user) from the Go heap of
// the given size and returns its top address. This kernel's own address
// space identity-maps all of physical memory, so a heap-allocated buffer's
// address already doubles as a valid address to park a stack pointer at,
// with no separate guard-paged stack area required.
func newStack(size mem.Size) uint64 {
	stack := make([]byte, size)
	taskStacks = append(taskStacks, stack)
	top := uintptr(unsafe.Pointer(&stack[0])) + uintptr(size)
	return uint64(top)
}

// Kmain is the only Go symbol that is visible (exported) from the rt0
// initialization code. This function is invoked by the rt0 assembly code
// after zeroing BSS and setting up a minimal g0 struct that allows Go code
// to run on the small stack the assembly code allocated.
//
// Kmain is not expected to return. If it does, errKmainReturned is a fatal
// panic.
//
//go:noinline
func Kmain(info *BootInfo) {
	pmm.Init(
		mem.PhysAddrFromUint64(info.Sections.KernelEnd.Uint64()),
		mem.PhysAddrFromUint64(info.Sections.MemoryEnd.Uint64()),
	)

	vmm.SetTrampolinePhysAddr(info.TrampolinePhysAddr)
	kernelSpace, err := vmm.NewKernel(info.Sections)
	if err != nil {
		kernel.Panic(err)
	}

	// From here on, address translation is governed by the identity map
	// kernelSpace just built rather than whatever satp held at boot.
	cpu.WriteSATP(kernelSpace.Token())
	cpu.FenceVMA()

	vmm.Init(kernelSpace.PageTable(), info.EarlyHeapBase, info.EarlyHeapLimit)

	trap.Init()
	trap.SetHandlers(syscall.Dispatch, task.SuspendCurrentAndRunNext, task.ExitCurrentAndRunNext, timer.SetNextTrigger)
	syscall.SetSchedulerHooks(task.SuspendCurrentAndRunNext, task.ExitCurrentAndRunNext)

	loader.SetAppTable(info.AppCount, info.AppImage)
	images, err := loader.LoadApps()
	if err != nil {
		kernel.Panic(err)
	}

	// Each slot's entry point is its fixed physical load address; apps run
	// directly in the kernel's own identity-mapped address space rather
	// than a private one, so there is no satp switch on a context switch.
	layouts := make([]task.AppLayout, len(images))
	for i := range images {
		layouts[i] = task.AppLayout{
			Entry:          mem.AppBaseAddress + uint64(i)*mem.AppSizeLimit,
			UserSP:         newStack(mem.UserStackSize),
			KernelStackTop: newStack(mem.KernelStackSize),
		}
	}
	task.Init(layouts)

	timer.Init()

	// Use kernel.Panic instead of panic to prevent the compiler from
	// treating kernel.Panic as dead-code and eliminating it.
	task.RunFirstTask()
	kernel.Panic(errKmainReturned)
}
