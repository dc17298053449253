package kernel

import (
	"github.com/gopher-riscv/sv39kernel/kernel/cpu"
	"github.com/gopher-riscv/sv39kernel/kernel/kfmt/early"
)

var (
	// cpuHaltFn is mocked by tests and is automatically inlined by the compiler.
	cpuHaltFn = cpu.Halt

	errRuntimePanic = &Error{Module: "rt", Message: "unknown cause"}
)

// SetHaltForTesting redirects Panic's final CPU halt to fn, returning the
// previous halt function so callers can restore it. Passing nil restores
// the real cpu.Halt. Lets packages that call into kernel.Panic indirectly
// (syscall, trap) assert that a fatal path was taken without actually
// hanging the test binary.
func SetHaltForTesting(fn func()) (prev func()) {
	prev = cpuHaltFn
	if fn == nil {
		fn = cpu.Halt
	}
	cpuHaltFn = fn
	return prev
}

// Panic outputs the supplied error (if not nil) to the console and halts the
// CPU. Calls to Panic never return. Panic also works as a redirection target
// for calls to panic() (resolved via runtime.gopanic)
//go:redirect-from runtime.gopanic
func Panic(e interface{}) {
	var err *Error

	switch t := e.(type) {
	case *Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	early.Printf("\n-----------------------------------\n")
	if err != nil {
		early.Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	early.Printf("*** kernel panic: system halted ***")
	early.Printf("\n-----------------------------------\n")

	cpuHaltFn()
}
