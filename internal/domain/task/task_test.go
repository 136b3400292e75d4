package task_test

import (
	"testing"

	"github.com/trademesh/trademesh/internal/domain/task"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to task.Status }{
		{task.StatusPending, task.StatusInProgress},
		{task.StatusPending, task.StatusCanceled},
		{task.StatusInProgress, task.StatusCompleted},
		{task.StatusInProgress, task.StatusFailed},
		{task.StatusInProgress, task.StatusCanceled},
	}
	for _, tr := range allowed {
		if !tr.from.CanTransition(tr.to) {
			t.Errorf("%s -> %s should be allowed", tr.from, tr.to)
		}
	}

	all := []task.Status{
		task.StatusPending, task.StatusInProgress,
		task.StatusCompleted, task.StatusFailed, task.StatusCanceled,
	}
	isAllowed := func(from, to task.Status) bool {
		for _, tr := range allowed {
			if tr.from == from && tr.to == to {
				return true
			}
		}
		return false
	}
	// Every transition outside the allowed table is rejected.
	for _, from := range all {
		for _, to := range all {
			if isAllowed(from, to) {
				continue
			}
			if from.CanTransition(to) {
				t.Errorf("%s -> %s should be rejected", from, to)
			}
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []task.Status{task.StatusCompleted, task.StatusFailed, task.StatusCanceled} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []task.Status{task.StatusPending, task.StatusInProgress} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestPriorityValid(t *testing.T) {
	for _, p := range []task.Priority{task.PriorityLow, task.PriorityMedium, task.PriorityHigh, task.PriorityCritical} {
		if !p.Valid() {
			t.Errorf("%s should be valid", p)
		}
	}
	if task.Priority("urgent").Valid() {
		t.Error("unknown priority should be invalid")
	}
}

func TestCloneIsolation(t *testing.T) {
	orig := &task.Task{
		ID:         "t1",
		Parameters: map[string]any{"pair": "BTC/USD"},
		Status:     task.StatusPending,
	}
	snap := orig.Clone()
	snap.Parameters["pair"] = "ETH/USD"
	snap.Status = task.StatusCompleted

	if orig.Parameters["pair"] != "BTC/USD" {
		t.Error("clone mutation leaked into original parameters")
	}
	if orig.Status != task.StatusPending {
		t.Error("clone mutation leaked into original status")
	}
}
