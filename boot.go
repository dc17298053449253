package main

import "github.com/gopher-riscv/sv39kernel/kernel/kmain"

// bootInfo is filled in by the boot assembly stub before it jumps here: the
// linker script's section symbols (stext, etext, ...) copied into ordinary
// fields, since there is no way to import an `extern` symbol as a Go value.
var bootInfo kmain.BootInfo

// main is the only Go symbol visible (exported) from the rt0 initialization
// code. It is a trampoline for the actual kernel entrypoint (kmain.Kmain)
// and is intentionally defined to prevent the Go compiler from optimizing
// away the real kernel code, which it has no other reason to consider
// reachable.
//
// main is invoked by the rt0 assembly stub after it has zeroed BSS and set
// up a minimal g0 struct, letting Go code run on the boot stack the
// assembly allocated.
//
// main is not expected to return. If it does, the rt0 code halts the hart.
func main() {
	kmain.Kmain(&bootInfo)
}
