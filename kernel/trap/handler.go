package trap

import (
	"fmt"

	"github.com/gopher-riscv/sv39kernel/kernel"
	"github.com/gopher-riscv/sv39kernel/kernel/cpu"
	"github.com/gopher-riscv/sv39kernel/kernel/kfmt/early"
)

const causeInterruptBit = uint64(1) << 63

// RISC-V privileged-spec exception and interrupt codes this handler cares
// about; everything else falls through to the fatal case.
const (
	excIllegalInstruction  = 2
	excStoreAccessFault    = 7
	excUserEnvCall         = 8
	excStoreGuestPageFault = 23

	intSupervisorTimer = 5
)

// action describes what runNextTask-level response a trapped cause
// requires, decoupled from the scause bit layout so it can be unit tested
// without a hart.
type action int

const (
	actionHandledInline action = iota
	actionSuspendCurrent
	actionExitCurrent
	actionFatal
)

// classify maps a raw scause value to the action §4.5's dispatch table
// describes.
func classify(scause uint64) action {
	isInterrupt := scause&causeInterruptBit != 0
	code := scause &^ causeInterruptBit

	switch {
	case isInterrupt && code == intSupervisorTimer:
		return actionSuspendCurrent
	case !isInterrupt && code == excUserEnvCall:
		return actionHandledInline
	case !isInterrupt && (code == excStoreAccessFault || code == excStoreGuestPageFault || code == excIllegalInstruction):
		return actionExitCurrent
	default:
		return actionFatal
	}
}

// Hooks the scheduler and syscall dispatcher install at boot. trap cannot
// import task or syscall directly without inviting an import cycle (task
// needs ReturnPC from trap, and the syscall dispatcher's write syscall
// wants no dependency on task at all) so, following the teacher's
// package-level-function-variable convention (vmm.Map, allocator.AllocFrame
// and friends), kmain wires these in once during bring-up.
var (
	dispatchSyscallFn   func(num uint64, args [3]uint64) uint64
	suspendAndRunNextFn func()
	exitAndRunNextFn    func()
	setNextTriggerFn    func()
)

// SetHandlers installs the scheduler and syscall callbacks trapHandler
// dispatches into. Must be called during kernel bring-up before the trap
// vector is armed.
func SetHandlers(dispatchSyscall func(uint64, [3]uint64) uint64, suspendAndRunNext, exitAndRunNext, setNextTrigger func()) {
	dispatchSyscallFn = dispatchSyscall
	suspendAndRunNextFn = suspendAndRunNext
	exitAndRunNextFn = exitAndRunNext
	setNextTriggerFn = setNextTrigger
}

// trapHandler is invoked directly from trapEntry's assembly tail with the
// just-saved context, and returns the context to resume into. It is
// exported to assembly only (lower-case, referenced via ·trapHandler(SB)).
func trapHandler(ctx *TrapContext) *TrapContext {
	scause := cpu.ReadSCause()

	switch classify(scause) {
	case actionHandledInline:
		ctx.AdvancePastEcall()
		num, args := ctx.SyscallArgs()
		ctx.SetReturnValue(dispatchSyscallFn(num, args))
	case actionSuspendCurrent:
		setNextTriggerFn()
		suspendAndRunNextFn()
	case actionExitCurrent:
		if scause&^causeInterruptBit == excIllegalInstruction {
			early.Printf("[kernel] IllegalInstruction in application, kernel killed it.\n")
		} else {
			early.Printf("[kernel] trap: fatal exception, scause=0x%16x, killing task\n", scause)
		}
		exitAndRunNextFn()
	case actionFatal:
		kernel.Panic(&kernel.Error{Module: "trap", Message: fmt.Sprintf("unhandled scause=0x%x, sepc=0x%x", scause, ctx.Sepc)})
	}

	return ctx
}
