// Package cpu declares the small set of privileged RISC-V operations the
// kernel needs that Go cannot express directly: CSR reads/writes and
// fence instructions. Each function below is implemented in cpu_riscv64.s.
package cpu

// EnableTimerInterrupt sets sie.STIE, allowing the supervisor timer
// interrupt to be delivered.
func EnableTimerInterrupt()

// EnableSupervisorInterrupts sets sstatus.SIE, the supervisor-mode global
// interrupt enable bit.
func EnableSupervisorInterrupts()

// ReadTime returns the value of the time CSR: the machine-mode mtime
// counter, as visible to supervisor mode.
func ReadTime() uint64

// WriteSTVEC installs addr, in direct mode, as the trap vector.
func WriteSTVEC(addr uintptr)

// WriteSATP installs token as the active page table and fences all ASIDs.
func WriteSATP(token uint64)

// FenceVMA flushes all TLB entries. Must be issued after modifying any page
// table the hart may have cached translations for.
func FenceVMA()

// FenceI flushes the instruction cache. Must be issued after writing
// executable code into memory (e.g. after loading an application image)
// to guarantee the hart observes the new instructions.
func FenceI()

// Halt parks the hart in an infinite wfi loop. Calls to Halt never return.
func Halt()

// ReadSCause returns the scause CSR: the interrupt bit plus exception or
// interrupt code identifying why the hart most recently trapped into
// supervisor mode.
func ReadSCause() uint64
