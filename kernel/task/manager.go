package task

import (
	"unsafe"

	"github.com/gopher-riscv/sv39kernel/kernel/kfmt/early"
	"github.com/gopher-riscv/sv39kernel/kernel/sbi"
	"github.com/gopher-riscv/sv39kernel/kernel/trap"
)

// Status describes where a task control block sits in its lifecycle.
type Status uint8

const (
	StatusUnInit Status = iota
	StatusReady
	StatusRunning
	StatusExited
)

type controlBlock struct {
	status Status
	ctx    TaskContext
}

// Guarded as a single-writer global, following the teacher's
// allocator.FrameAllocator/vmm package-level-var convention: the scheduler
// is never touched concurrently because this kernel is single-hart and
// every mutation happens with interrupts settled at a trap boundary.
var (
	tasks       []controlBlock
	currentTask int
)

// AppLayout describes the one loaded application slot i needs in order to
// build its initial task control block.
type AppLayout struct {
	Entry          uint64
	UserSP         uint64
	KernelStackTop uint64
}

// Init builds the fixed task table: one control block per loaded
// application, each primed with the initial TrapContext §4.7 describes,
// pushed onto the top of its own kernel stack.
func Init(layouts []AppLayout) {
	tasks = make([]controlBlock, len(layouts))
	returnPC := trap.ReturnPC()

	for i, layout := range layouts {
		ctxBase := pushInitialTrapContext(layout.KernelStackTop, layout.Entry, layout.UserSP)
		tasks[i] = controlBlock{
			status: StatusReady,
			ctx:    NewRestoreContext(returnPC, ctxBase),
		}
	}
	currentTask = 0
}

// pushInitialTrapContext writes a fresh TrapContext at the top of the
// given kernel stack and returns its address: the stack pointer
// trap.trapReturn's epilogue expects to find waiting for it the first
// time this task is switched in.
func pushInitialTrapContext(kernelStackTop, entry, userSP uint64) uint64 {
	ctxBase := kernelStackTop - uint64(unsafe.Sizeof(trap.TrapContext{}))
	ctx := (*trap.TrapContext)(unsafe.Pointer(uintptr(ctxBase)))
	*ctx = *trap.NewAppContext(entry, userSP)
	return ctxBase
}

// RunFirstTask switches from a throwaway local context into slot 0.
// Control never returns to the caller.
func RunFirstTask() {
	tasks[0].status = StatusRunning
	currentTask = 0

	var discard TaskContext
	Switch(&discard, &tasks[0].ctx)
}

// findNextTask starts scanning at currentTask+1, wrapping modulo
// len(tasks), and returns the index of the first Ready task found.
func findNextTask() (next int, ok bool) {
	n := len(tasks)
	for i := 1; i <= n; i++ {
		candidate := (currentTask + i) % n
		if tasks[candidate].status == StatusReady {
			return candidate, true
		}
	}
	return 0, false
}

// runNextTask marks the task found by findNextTask Running, makes it
// current, and switches into it. If every task has exited, there is
// nothing left for this kernel to schedule, and it shuts down through SBI
// rather than panicking: an empty ready queue is this kernel's normal,
// expected terminal condition, not an invariant violation.
func runNextTask() {
	next, ok := findNextTask()
	if !ok {
		early.Printf("[kernel] all tasks completed, shutting down\n")
		sbi.Shutdown(sbi.ReasonNone)
	}

	prev := currentTask
	tasks[next].status = StatusRunning
	currentTask = next

	// The exclusive borrow over scheduler state must be dropped before
	// the context switch below, since Switch may not return for a long
	// time (or, for an exited task, ever): &tasks[prev].ctx is read here,
	// before the switch, rather than held across it.
	Switch(&tasks[prev].ctx, &tasks[next].ctx)
}

func markCurrentSuspended() {
	tasks[currentTask].status = StatusReady
}

func markCurrentExited() {
	tasks[currentTask].status = StatusExited
}

// SuspendCurrentAndRunNext implements the yield syscall and the timer-tick
// preemption path: the current task goes back to Ready and the scheduler
// picks the next one.
func SuspendCurrentAndRunNext() {
	markCurrentSuspended()
	runNextTask()
}

// ExitCurrentAndRunNext implements the exit syscall and the fatal-trap
// path: the current task is retired permanently and the scheduler picks
// the next one.
func ExitCurrentAndRunNext() {
	early.Printf("[kernel] task %d exited\n", currentTask)
	markCurrentExited()
	runNextTask()
}
