package domain

import "testing"

// --- Transition Tests ---

func TestCanTransition_Allowed(t *testing.T) {
	allowed := []struct {
		from, to RunState
	}{
		{RunStateIdle, RunStateRunning},
		{RunStateRunning, RunStatePaused},
		{RunStateRunning, RunStateAwaitingQueue},
		{RunStateRunning, RunStateCompleted},
		{RunStatePaused, RunStateRunning},
		{RunStateAwaitingQueue, RunStateRunning},
		{RunStateAwaitingQueue, RunStatePaused},
		{RunStateCompleted, RunStateRunning},
	}

	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("transition %s -> %s should be allowed", tc.from, tc.to)
		}
	}
}

func TestCanTransition_Forbidden(t *testing.T) {
	forbidden := []struct {
		from, to RunState
	}{
		{RunStateIdle, RunStatePaused},
		{RunStateIdle, RunStateCompleted},
		{RunStateCompleted, RunStatePaused},
		{RunStatePaused, RunStateCompleted},
		{RunStatePaused, RunStateAwaitingQueue},
		{RunStateCompleted, RunStateAwaitingQueue},
	}

	for _, tc := range forbidden {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("transition %s -> %s should be forbidden", tc.from, tc.to)
		}
	}
}

func TestRunState_CanStart(t *testing.T) {
	if !RunStateIdle.CanStart() {
		t.Error("IDLE should allow start")
	}
	if !RunStateCompleted.CanStart() {
		t.Error("COMPLETED should allow start")
	}
	if RunStateRunning.CanStart() {
		t.Error("RUNNING should not allow start")
	}
	if RunStatePaused.CanStart() {
		t.Error("PAUSED should not allow start")
	}
	if RunStateAwaitingQueue.CanStart() {
		t.Error("AWAITING_QUEUE should not allow start")
	}
}

// --- Run Tests ---

func TestRun_Halted(t *testing.T) {
	run := &Run{State: RunStatePaused, LastError: "boom"}
	if !run.Halted() {
		t.Error("paused run with error should be halted")
	}

	run = &Run{State: RunStatePaused}
	if run.Halted() {
		t.Error("operator pause should not be halted")
	}

	run = &Run{State: RunStateRunning, LastError: "boom"}
	if run.Halted() {
		t.Error("running run should not be halted")
	}
}

func TestRun_ProgressPercent(t *testing.T) {
	run := &Run{SelectedSteps: 4, CompletedSteps: 1}
	if got := run.ProgressPercent(); got != 25 {
		t.Errorf("expected 25, got %d", got)
	}

	run.CompletedSteps = 4
	if got := run.ProgressPercent(); got != 100 {
		t.Errorf("expected 100, got %d", got)
	}

	run.CompletedSteps = 9
	if got := run.ProgressPercent(); got != 100 {
		t.Errorf("progress should cap at 100, got %d", got)
	}

	run = &Run{}
	if got := run.ProgressPercent(); got != 0 {
		t.Errorf("expected 0 for no selected steps, got %d", got)
	}
}
