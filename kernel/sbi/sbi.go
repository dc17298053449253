// Package sbi wraps the three SBI (Supervisor Binary Interface) calls this
// kernel consumes: console output, the timer comparator, and shutdown. Each
// is an `ecall` trap into M-mode firmware; the actual trap is issued by
// sbi_riscv64.s since Go has no `ecall` mnemonic.
package sbi

// ConsolePutchar writes a single byte to the SBI debug console.
func ConsolePutchar(ch byte)

// SetTimer arms the next timer interrupt to fire when the time CSR reaches
// stimeValue.
func SetTimer(stimeValue uint64)

// ShutdownReason selects the outcome code reported to the SBI firmware's
// system reset call.
type ShutdownReason uint64

const (
	// ReasonNone reports a normal, expected shutdown.
	ReasonNone ShutdownReason = iota
	// ReasonSystemFailure reports an abnormal shutdown. Nothing in this
	// kernel passes it: kernel.Panic halts the hart with cpu.Halt rather
	// than shutting down.
	ReasonSystemFailure
)

// Shutdown never returns: it issues an SBI system reset of type Shutdown
// with the given reason.
func Shutdown(reason ShutdownReason)
