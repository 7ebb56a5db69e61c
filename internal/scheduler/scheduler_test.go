package scheduler_test

import (
	"context"
	"errors"
	"testing"

	"veritas.app/relay/internal/domain"
	"veritas.app/relay/internal/executor"
	"veritas.app/relay/internal/scheduler"
)

type fakeRetriever struct {
	fail map[string]bool
}

func (f *fakeRetriever) HybridSearch(_ context.Context, query string, _ domain.SearchFilters, _ domain.Weights, _ domain.RankingStrategy, _ int, _ bool) (*domain.SearchResult, error) {
	if f.fail[query] {
		return nil, errors.New("backend down")
	}
	return &domain.SearchResult{Query: query}, nil
}

type fakeBus struct {
	events []domain.ProgressEvent
}

func (b *fakeBus) Emit(e domain.ProgressEvent) {
	b.events = append(b.events, e)
}

func linearPlan(t *testing.T, failStepB bool) *domain.Plan {
	t.Helper()
	plan := domain.NewPlan(1, "q", domain.QueryAnalysis{})
	a := &domain.Step{ID: "a", Name: "a", Kind: domain.StepKindSearch, Status: domain.StepStatusReady}
	b := &domain.Step{ID: "b", Name: "b", Kind: domain.StepKindAnalysis, Status: domain.StepStatusReady, DependsOn: []string{"a"}}
	c := &domain.Step{ID: "c", Name: "c", Kind: domain.StepKindSynthesis, Status: domain.StepStatusReady, DependsOn: []string{"b"}}
	if err := plan.AddStep(a); err != nil {
		t.Fatal(err)
	}
	if err := plan.AddStep(b); err != nil {
		t.Fatal(err)
	}
	if err := plan.AddStep(c); err != nil {
		t.Fatal(err)
	}
	if failStepB {
		b.Description = "FAIL"
	}
	return plan
}

func TestExecuteRunsLevelsInOrderAndSucceeds(t *testing.T) {
	plan := linearPlan(t, false)
	retriever := &fakeRetriever{fail: map[string]bool{}}
	ex := executor.New(retriever, nil)
	bus := &fakeBus{}
	sched := scheduler.New(ex, bus, nil, scheduler.Config{MaxWorkers: 2}, nil)

	result, err := sched.Execute(context.Background(), plan, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("want success, got %+v", result)
	}
	if len(result.FinalResults) != 1 || result.FinalResults["c"] == nil {
		t.Fatalf("want c as sole leaf final result, got %+v", result.FinalResults)
	}

	var started []string
	for _, e := range bus.events {
		if e.EventKind == domain.EventStepStarted {
			started = append(started, e.StepID)
		}
	}
	if len(started) != 3 || started[0] != "a" || started[1] != "b" || started[2] != "c" {
		t.Fatalf("want steps started in level order a, b, c, got %v", started)
	}
}

func TestExecuteSkipsSuccessorsOfFailedStep(t *testing.T) {
	plan := linearPlan(t, true)
	retriever := &fakeRetriever{fail: map[string]bool{"Analysis and evaluation of FAIL": true}}
	ex := executor.New(retriever, nil)
	bus := &fakeBus{}
	sched := scheduler.New(ex, bus, nil, scheduler.Config{MaxWorkers: 2}, nil)

	result, err := sched.Execute(context.Background(), plan, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatalf("want overall failure")
	}
	if plan.Steps["c"].Status != domain.StepStatusSkipped {
		t.Fatalf("want successor c skipped, got %s", plan.Steps["c"].Status)
	}
	if plan.Steps["c"].Result.Error != "predecessor failed" {
		t.Fatalf("want predecessor failed error, got %q", plan.Steps["c"].Result.Error)
	}
}

func TestExecuteCancelledBeforeLevelSkipsRemaining(t *testing.T) {
	plan := linearPlan(t, false)
	retriever := &fakeRetriever{}
	ex := executor.New(retriever, nil)
	bus := &fakeBus{}
	sched := scheduler.New(ex, bus, nil, scheduler.Config{MaxWorkers: 2}, nil)

	cancel := make(chan struct{})
	close(cancel)

	result, err := sched.Execute(context.Background(), plan, cancel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatalf("want cancelled run to report failure")
	}
	for _, id := range []string{"a", "b", "c"} {
		if plan.Steps[id].Status != domain.StepStatusSkipped {
			t.Fatalf("want step %s skipped on immediate cancellation, got %s", id, plan.Steps[id].Status)
		}
	}
}

type countingRetriever struct {
	calls int
	err   error
}

func (c *countingRetriever) HybridSearch(_ context.Context, _ string, _ domain.SearchFilters, _ domain.Weights, _ domain.RankingStrategy, _ int, _ bool) (*domain.SearchResult, error) {
	c.calls++
	return nil, c.err
}

// retry_failed retries only failures classified transient; a
// deterministic failure gets exactly one attempt.
func TestRetryFailedRetriesOnlyTransientFailures(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCalls int
	}{
		{"deterministic failure runs once", errors.New("malformed step params"), 1},
		{"timeout failure retried once", context.DeadlineExceeded, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := domain.NewPlan(1, "q", domain.QueryAnalysis{})
			step := &domain.Step{ID: "a", Name: "a", Kind: domain.StepKindSearch, Status: domain.StepStatusPending}
			if err := plan.AddStep(step); err != nil {
				t.Fatal(err)
			}

			retriever := &countingRetriever{err: tt.err}
			sched := scheduler.New(executor.New(retriever, nil), &fakeBus{}, nil, scheduler.Config{MaxWorkers: 1, RetryFailed: true}, nil)

			result, err := sched.Execute(context.Background(), plan, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Success {
				t.Fatal("want overall failure")
			}
			if retriever.calls != tt.wantCalls {
				t.Fatalf("want %d executor attempts, got %d", tt.wantCalls, retriever.calls)
			}
		})
	}
}

func TestExecuteCyclicPlanFailsWithoutStarting(t *testing.T) {
	plan := domain.NewPlan(1, "q", domain.QueryAnalysis{})
	plan.Steps["A"] = &domain.Step{ID: "A"}
	plan.Steps["B"] = &domain.Step{ID: "B"}
	plan.Graph["A"] = []string{"B"}
	plan.Graph["B"] = []string{"A"}
	plan.ReverseGraph["A"] = []string{"B"}
	plan.ReverseGraph["B"] = []string{"A"}

	bus := &fakeBus{}
	sched := scheduler.New(executor.New(&fakeRetriever{}, nil), bus, nil, scheduler.Config{}, nil)

	_, err := sched.Execute(context.Background(), plan, nil)
	if err == nil {
		t.Fatal("want an error for a cyclic plan")
	}
	if len(bus.events) != 0 {
		t.Fatalf("want no events for an unexecutable plan, got %d", len(bus.events))
	}
}

func TestExecuteEmptyPlanEmitsStartedThenCompleted(t *testing.T) {
	plan := domain.NewPlan(1, "q", domain.QueryAnalysis{})
	ex := executor.New(&fakeRetriever{}, nil)
	bus := &fakeBus{}
	sched := scheduler.New(ex, bus, nil, scheduler.Config{}, nil)

	result, err := sched.Execute(context.Background(), plan, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("want empty plan to succeed trivially")
	}
	if len(bus.events) != 2 {
		t.Fatalf("want exactly plan-started and plan-completed, got %d events", len(bus.events))
	}
	if bus.events[0].EventKind != domain.EventPlanStarted || bus.events[1].EventKind != domain.EventPlanCompleted {
		t.Fatalf("want started-then-completed ordering, got %v", bus.events)
	}
}
