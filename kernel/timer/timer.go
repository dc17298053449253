// Package timer wraps the time CSR and the SBI timer extension to drive
// the kernel's 10ms preemption tick.
package timer

import (
	"github.com/gopher-riscv/sv39kernel/kernel/cpu"
	"github.com/gopher-riscv/sv39kernel/kernel/sbi"
)

const (
	// ClockFreq is the QEMU virt machine's CLINT tick rate in Hz.
	ClockFreq = 12500000
	// TicksPerSec is the kernel's scheduling tick rate: a 10ms quantum.
	TicksPerSec = 100
	// MSecPerSec converts a time-CSR delta into milliseconds.
	MSecPerSec = 1000
)

// GetMtime reads the time CSR directly.
func GetMtime() uint64 {
	return cpu.ReadTime()
}

// SetNextTrigger arms the SBI timer to fire one tick (10ms) from now.
func SetNextTrigger() {
	sbi.SetTimer(GetMtime() + ClockFreq/TicksPerSec)
}

// GetTimeMs returns the current time in milliseconds since boot, as the
// get_time syscall reports it.
func GetTimeMs() uint64 {
	return GetMtime() * MSecPerSec / ClockFreq
}

// Init enables the supervisor timer interrupt and arms the first trigger.
// Must run after the trap vector is installed.
func Init() {
	cpu.EnableSupervisorInterrupts()
	cpu.EnableTimerInterrupt()
	SetNextTrigger()
}
