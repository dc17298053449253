// Package syscall dispatches the trap handler's decoded ecall requests to
// the small set of syscalls this kernel implements.
package syscall

import (
	"unsafe"

	"github.com/gopher-riscv/sv39kernel/kernel"
	"github.com/gopher-riscv/sv39kernel/kernel/kfmt/early"
	"github.com/gopher-riscv/sv39kernel/kernel/timer"
)

var (
	errUnsupportedFd = &kernel.Error{Module: "syscall", Message: "Unsupported fd in sys_write!"}
	errUnsupportedID = &kernel.Error{Module: "syscall", Message: "unsupported syscall id"}
)

// Syscall numbers, fixed by the user-space ABI this kernel's apps are
// built against.
const (
	SysWrite   = 64
	SysExit    = 93
	SysYield   = 124
	SysGetTime = 169
)

const stdout = 1

// Hooks the scheduler installs at boot, mirroring trap's handler-injection
// convention so this package never needs to import task directly.
var (
	suspendAndRunNextFn func()
	exitAndRunNextFn    func()
)

// SetSchedulerHooks wires the scheduler operations yield and exit invoke.
func SetSchedulerHooks(suspendAndRunNext, exitAndRunNext func()) {
	suspendAndRunNextFn = suspendAndRunNext
	exitAndRunNextFn = exitAndRunNext
}

// Dispatch runs the syscall identified by num with the raw a0..a2
// arguments already extracted from the trap context, and returns the
// value to place back in a0. exit and yield never return to their own
// caller in the sense that matters: they switch to a different task's
// kernel context before this call's Switch returns, but from trapHandler's
// point of view Dispatch still "returns" once the current task is later
// resumed.
func Dispatch(num uint64, args [3]uint64) uint64 {
	switch num {
	case SysWrite:
		return sysWrite(args[0], args[1], args[2])
	case SysExit:
		early.Printf("[kernel] Application exited with code %d\n", int64(args[0]))
		exitAndRunNextFn()
		return 0
	case SysYield:
		suspendAndRunNextFn()
		return 0
	case SysGetTime:
		return timer.GetTimeMs()
	default:
		kernel.Panic(errUnsupportedID)
		return ^uint64(0)
	}
}

// sysWrite implements the write syscall for fd == stdout only: every other
// fd is a fatal error, since this kernel has no filesystem or general fd
// table to consult before deciding whether the write was ever going to
// succeed.
func sysWrite(fd, bufPtr, length uint64) uint64 {
	if fd != stdout {
		kernel.Panic(errUnsupportedFd)
	}

	buf := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(bufPtr))), length)
	early.Printf("%s", buf)
	return length
}
