// Package task implements the fixed-size cooperative/preemptive scheduler:
// task control blocks, kernel-context switching, and the ready-task scan
// that picks what runs next on yield, exit, or timer tick.
package task

// TaskContext holds exactly the registers Switch needs to suspend and
// later resume a kernel control flow: the callee-saved registers plus the
// return address. Caller-saved registers and the Go stack beneath them are
// already spilled by the compiler across any call that can reach Switch.
//
// S holds s0..s10 (x8, x9, x18..x26) only: s11 (x27) is permanently
// reserved by the Go riscv64 ABI as the goroutine pointer g and must never
// be saved or restored by Switch. This kernel runs a single hart with a
// single g0, so g is never supposed to change across a task switch in the
// first place; Switch leaving x27 alone is what keeps it that way.
type TaskContext struct {
	Ra uint64
	Sp uint64
	S  [11]uint64
}

// NewRestoreContext builds the TaskContext a task resumes into the very
// first time it is switched in: Ra points at trap.trapReturn's epilogue,
// and Sp sits exactly at the TrapContext pushed onto the task's own
// kernel stack, which that epilogue expects to find there.
func NewRestoreContext(trapReturnPC uintptr, kernelSP uint64) TaskContext {
	return TaskContext{Ra: uint64(trapReturnPC), Sp: kernelSP}
}
