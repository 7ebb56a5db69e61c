package progress_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"veritas.app/relay/internal/domain"
	"veritas.app/relay/internal/progress"
)

func TestSubscribeReceivesEmittedEvents(t *testing.T) {
	bus := progress.New(nil)
	ctx := context.Background()

	var mu sync.Mutex
	var received []domain.ProgressEvent
	done := make(chan struct{}, 1)

	bus.Subscribe(ctx, func(_ context.Context, e domain.ProgressEvent) {
		mu.Lock()
		received = append(received, e)
		n := len(received)
		mu.Unlock()
		if n == 2 {
			done <- struct{}{}
		}
	})

	bus.Emit(domain.NewPlanStartedEvent(2, "q"))
	bus.Emit(domain.NewPlanCompletedEvent(2, 2, 0, 1.0))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for events")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("want 2 events, got %d", len(received))
	}
	if received[0].EventKind != domain.EventPlanStarted {
		t.Fatalf("want plan_started first, got %s", received[0].EventKind)
	}
}

func TestSubscribeFilterByKind(t *testing.T) {
	bus := progress.New(nil)
	ctx := context.Background()

	got := make(chan domain.ProgressEvent, 4)
	bus.Subscribe(ctx, func(_ context.Context, e domain.ProgressEvent) { got <- e }, domain.EventStepFailed)

	bus.Emit(domain.NewPlanStartedEvent(1, "q"))
	bus.Emit(domain.NewStepFailedEvent("s1", "Search", 1, 1, "boom"))

	select {
	case e := <-got:
		if e.EventKind != domain.EventStepFailed {
			t.Fatalf("want step_failed, got %s", e.EventKind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for filtered event")
	}

	select {
	case e := <-got:
		t.Fatalf("unexpected second event delivered: %v", e.EventKind)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTrackerAggregatesCounts(t *testing.T) {
	bus := progress.New(nil)
	ctx := context.Background()
	tr := progress.NewTracker(ctx, bus)

	bus.Emit(domain.NewPlanStartedEvent(2, "q"))
	bus.Emit(domain.NewStepStartedEvent("s1", "Search", 1, 2, nil))
	bus.Emit(domain.NewStepCompletedEvent("s1", "Search", 1, 2, 0.5, nil))
	bus.Emit(domain.NewStepStartedEvent("s2", "Retrieve", 2, 2, nil))
	bus.Emit(domain.NewStepFailedEvent("s2", "Retrieve", 2, 2, "boom"))
	bus.Emit(domain.NewPlanCompletedEvent(2, 1, 1, 1.2))

	deadline := time.Now().Add(2 * time.Second)
	var snap progress.Snapshot
	for time.Now().Before(deadline) {
		snap = tr.Snapshot()
		if len(snap.Events) == 6 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if snap.Completed != 1 || snap.Failed != 1 {
		t.Fatalf("want completed=1 failed=1, got completed=%d failed=%d", snap.Completed, snap.Failed)
	}
	if len(snap.Events) != 6 {
		t.Fatalf("want 6 events in history, got %d", len(snap.Events))
	}
	// The terminal event was plan_failed (1 of 2 steps failed), so the
	// tracker must not report 100%: it stops at the completed-step
	// baseline of 1/2.
	if snap.Percentage != 50 {
		t.Fatalf("want percentage 50 after a failed plan, got %v", snap.Percentage)
	}
}
