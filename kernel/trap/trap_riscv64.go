package trap

import (
	"unsafe"

	"github.com/gopher-riscv/sv39kernel/kernel/cpu"
)

// trapEntry is installed as the direct-mode trap vector target via
// cpu.WriteSTVEC. Hardware jumps here directly on any trap; it is never
// called as an ordinary Go function, only its address is taken, exactly
// like the teacher takes the address of hand-assembled primitives in
// cpu_amd64.go. Implemented in trap_riscv64.s.
func trapEntry()

// trapReturn resumes a task from the TrapContext that sp points at,
// swapping the kernel stack pointer back out via sscratch and issuing
// sret. It is never called as an ordinary Go function: Switch's ret
// enters it with sp set by task.NewRestoreContext, and control passes to
// whatever sepc/sstatus say it should, which may be user mode or (for the
// very first task) still effectively user mode for the first time.
// Implemented in trap_riscv64.s.
func trapReturn()

// funcPC extracts the entry program counter of a non-nil, non-closure
// function value. Go gives no portable way to take the address of a
// declared function as a plain uintptr; this is the standard trick freestanding
// Go kernels use to feed a function's address to hardware (here, stvec).
func funcPC(f func()) uintptr {
	return **(**uintptr)(unsafe.Pointer(&f))
}

// kernelG is this hart's one and only g (g0), captured once by Init while
// running with a known-good x27. The riscv64 Go ABI permanently reserves
// x27 for g, but a trap can land with a trapped application's arbitrary
// leftover value sitting in that physical register; trapEntry reloads x27
// from kernelG before calling into any ordinary Go function, so compiled
// Go code (stack-split prologues, goroutine-local state) never observes
// anything but this one valid g. Switch never touches x27 at all, so a
// kernel-to-kernel task switch can't disturb it either.
var kernelG uintptr

// getg reads the current value of x27 (g). Implemented in trap_riscv64.s.
func getg() uintptr

// Init captures the current g and installs trapEntry as the trap vector
// in direct mode.
func Init() {
	kernelG = getg()
	cpu.WriteSTVEC(funcPC(trapEntry))
}

// ReturnPC returns the entry address of trapReturn, used by the task
// manager to build the initial TaskContext a freshly loaded app resumes
// into (see task.NewRestoreContext).
func ReturnPC() uintptr {
	f := trapReturn
	return **(**uintptr)(unsafe.Pointer(&f))
}
