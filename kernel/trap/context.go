// Package trap implements the single funnel all exceptions, syscalls, and
// timer interrupts flow through: a direct-mode trap vector that saves a
// task's register file into a TrapContext, a Go-level handler that
// dispatches on scause, and the assembly that resumes a (possibly
// different) task from its TrapContext.
package trap

import "github.com/gopher-riscv/sv39kernel/kernel/kfmt/early"

const (
	regSP = 2
	regA0 = 10
	regA1 = 11
	regA2 = 12
	regA7 = 17

	// SstatusSPIE is sstatus bit 5: the previous interrupt-enable state,
	// restored into sstatus.SIE by sret. Set in a fresh app's initial
	// context so interrupts are enabled once it starts running.
	SstatusSPIE = uint64(1) << 5
	// SstatusSPP is sstatus bit 8: the privilege level sret returns to.
	// 0 selects U-mode, which every app context wants.
	SstatusSPP = uint64(1) << 8
)

// TrapContext is the 34-word snapshot trapEntry builds on a task's kernel
// stack: the 32 general-purpose registers x0..x31 followed by sstatus and
// sepc. It folds the teacher's irq.Regs/irq.Frame split into one struct
// because Sv39 traps push no separate hardware-provided frame.
type TrapContext struct {
	X       [32]uint64
	Sstatus uint64
	Sepc    uint64
}

// Print dumps the register file, mirroring the teacher's irq.Regs.Print.
func (tc *TrapContext) Print() {
	for i := 0; i < 32; i++ {
		early.Printf("x%d = 0x%16x\n", i, tc.X[i])
	}
	early.Printf("sstatus = 0x%16x sepc = 0x%16x\n", tc.Sstatus, tc.Sepc)
}

// Sp returns the saved stack pointer (x2).
func (tc *TrapContext) Sp() uint64 { return tc.X[regSP] }

// SetSp overwrites the saved stack pointer (x2).
func (tc *TrapContext) SetSp(v uint64) { tc.X[regSP] = v }

// SyscallArgs returns the syscall number (a7) and its first three
// arguments (a0..a2), per the convention the syscall dispatcher uses.
func (tc *TrapContext) SyscallArgs() (num uint64, args [3]uint64) {
	return tc.X[regA7], [3]uint64{tc.X[regA0], tc.X[regA1], tc.X[regA2]}
}

// SetReturnValue stores v in a0, where a resumed syscall reads its result.
func (tc *TrapContext) SetReturnValue(v uint64) { tc.X[regA0] = v }

// AdvancePastEcall advances sepc past the 4-byte ecall instruction that
// trapped, so that sret resumes at the instruction following it rather
// than re-issuing the same syscall.
func (tc *TrapContext) AdvancePastEcall() { tc.Sepc += 4 }

// NewAppContext builds the initial trap context a freshly loaded
// application resumes into: entry is its ELF entry point, userSP the top
// of its user stack.
func NewAppContext(entry, userSP uint64) *TrapContext {
	tc := &TrapContext{Sstatus: SstatusSPIE, Sepc: entry}
	tc.X[regSP] = userSP
	return tc
}
