package task

import "testing"

func resetTasks(statuses ...Status) {
	tasks = make([]controlBlock, len(statuses))
	for i, s := range statuses {
		tasks[i].status = s
	}
	currentTask = 0
}

func TestFindNextTaskScansForwardFromCurrentPlusOne(t *testing.T) {
	resetTasks(StatusRunning, StatusExited, StatusReady, StatusReady)
	currentTask = 0

	next, ok := findNextTask()
	if !ok || next != 2 {
		t.Fatalf("expected next=2, ok=true; got next=%d, ok=%v", next, ok)
	}
}

func TestFindNextTaskWrapsAround(t *testing.T) {
	resetTasks(StatusReady, StatusExited, StatusRunning)
	currentTask = 2

	next, ok := findNextTask()
	if !ok || next != 0 {
		t.Fatalf("expected next=0, ok=true; got next=%d, ok=%v", next, ok)
	}
}

func TestFindNextTaskReturnsFalseWhenNoneReady(t *testing.T) {
	resetTasks(StatusExited, StatusExited, StatusRunning)
	currentTask = 2

	if _, ok := findNextTask(); ok {
		t.Fatal("expected ok=false when no task is Ready")
	}
}

func TestMarkCurrentSuspendedAndExited(t *testing.T) {
	resetTasks(StatusRunning, StatusReady)
	currentTask = 0

	markCurrentSuspended()
	if tasks[0].status != StatusReady {
		t.Fatalf("expected task 0 to become Ready; got %v", tasks[0].status)
	}

	markCurrentExited()
	if tasks[0].status != StatusExited {
		t.Fatalf("expected task 0 to become Exited; got %v", tasks[0].status)
	}
}
