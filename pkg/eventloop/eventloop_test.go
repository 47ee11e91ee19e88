package eventloop

import (
	"testing"
	"time"
)

func TestTimedCallbackFiresOnce(t *testing.T) {
	el := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cur := base
	el.SetNowFunc(func() time.Time { return cur })

	fired := 0
	el.AddTimed(func(time.Time) { fired++ }, base.Add(time.Second))

	el.Run(0) // not yet due
	if fired != 0 {
		t.Fatalf("fired early: %d", fired)
	}

	cur = base.Add(2 * time.Second)
	el.Run(0)
	if fired != 1 {
		t.Fatalf("want 1 fire, got %d", fired)
	}

	el.Run(0) // should not fire again
	if fired != 1 {
		t.Fatalf("timed callback refired: %d", fired)
	}
}

func TestCyclicCurrentTimePolicyDropsPhase(t *testing.T) {
	el := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cur := base
	el.SetNowFunc(func() time.Time { return cur })

	fired := 0
	el.AddCyclic(func(time.Time) { fired++ }, time.Second, base, CycleMissWithCurrentTime)

	// Simulate a big stall: jump 10 intervals ahead. Under
	// CycleMissWithCurrentTime this should fire exactly once, rebasing
	// off "now" rather than catching up.
	cur = base.Add(10 * time.Second)
	el.Run(0)
	if fired != 1 {
		t.Fatalf("want 1 fire after stall, got %d", fired)
	}
	if el.Pending() != 1 {
		t.Fatalf("cyclic callback should remain scheduled")
	}
}

func TestCyclicBaseTimePolicySkipsMissedSlots(t *testing.T) {
	el := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cur := base
	el.SetNowFunc(func() time.Time { return cur })

	var fireTimes []time.Time
	el.AddCyclic(func(now time.Time) { fireTimes = append(fireTimes, now) }, time.Second, base, CycleMissWithBaseTime)

	cur = base.Add(3500 * time.Millisecond)
	el.Run(0)
	if len(fireTimes) != 1 {
		t.Fatalf("want exactly 1 fire (no catch-up), got %d", len(fireTimes))
	}
}

func TestRemoveCancelsCallback(t *testing.T) {
	el := New()
	base := time.Now()
	fired := false
	id := el.AddTimed(func(time.Time) { fired = true }, base)
	el.Remove(id)
	el.SetNowFunc(func() time.Time { return base.Add(time.Hour) })
	el.Run(0)
	if fired {
		t.Fatal("removed callback fired anyway")
	}
}

func TestDelayedCallbackRunsAfterTimedQueue(t *testing.T) {
	el := New()
	var order []string
	el.AddTimed(func(time.Time) { order = append(order, "timed") }, time.Now().Add(-time.Second))
	el.AddDelayed(func(time.Time) { order = append(order, "delayed") })
	el.Run(0)
	if len(order) != 2 || order[0] != "timed" || order[1] != "delayed" {
		t.Fatalf("unexpected ordering: %v", order)
	}
}

func TestRunInvokesPollFuncWithRemainingBudget(t *testing.T) {
	el := New()
	var gotBudget time.Duration
	el.SetPollFunc(func(budget time.Duration) { gotBudget = budget })
	el.Run(50 * time.Millisecond)
	if gotBudget <= 0 {
		t.Fatalf("expected positive poll budget, got %v", gotBudget)
	}
}
