package task

// Switch saves the currently running kernel control flow's callee-saved
// registers into currentCtxOut, then loads the same registers from
// nextCtxIn and returns into it. It is callable from any kernel path; it
// touches neither sstatus nor the caller-saved registers, since the
// compiler has already spilled those across the call. Declared body-less;
// implemented in switch_riscv64.s, following cpu_riscv64.go's idiom for
// hand-assembled primitives.
func Switch(currentCtxOut, nextCtxIn *TaskContext)
