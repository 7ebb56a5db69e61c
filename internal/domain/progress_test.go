package domain_test

import (
	"math"
	"testing"

	"veritas.app/relay/internal/domain"
)

func TestPlanCompletedEventReaches100OnlyOnSuccess(t *testing.T) {
	done := domain.NewPlanCompletedEvent(3, 3, 0, 1.0)
	if done.EventKind != domain.EventPlanCompleted {
		t.Fatalf("want plan_completed with zero failures, got %s", done.EventKind)
	}
	if done.Percentage != 100 {
		t.Fatalf("want percentage 100 on plan_completed, got %v", done.Percentage)
	}

	failed := domain.NewPlanCompletedEvent(3, 2, 1, 1.0)
	if failed.EventKind != domain.EventPlanFailed {
		t.Fatalf("want plan_failed with one failure, got %s", failed.EventKind)
	}
	if failed.Percentage == 100 {
		t.Fatal("plan_failed must not reach percentage 100")
	}
	want := (2.0 / 3.0) * 100
	if math.Abs(failed.Percentage-want) > 1e-9 {
		t.Fatalf("want failed-plan percentage %v (completed-step baseline), got %v", want, failed.Percentage)
	}
}

func TestStepEventPercentageFormulas(t *testing.T) {
	started := domain.NewStepStartedEvent("s2", "Retrieve", 2, 4, nil)
	if started.Percentage != 25 {
		t.Fatalf("want ((2-1)/4)*100 = 25, got %v", started.Percentage)
	}

	progress := domain.NewStepProgressEvent("s2", "Retrieve", 2, 4, 50, "", nil)
	if progress.Percentage != 37.5 {
		t.Fatalf("want 25 + (1/4)*50%% = 37.5, got %v", progress.Percentage)
	}

	completed := domain.NewStepCompletedEvent("s2", "Retrieve", 2, 4, 0.1, nil)
	if completed.Percentage != 50 {
		t.Fatalf("want (2/4)*100 = 50, got %v", completed.Percentage)
	}
}
