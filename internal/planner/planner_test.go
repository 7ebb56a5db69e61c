package planner_test

import (
	"testing"

	"veritas.app/relay/internal/domain"
	"veritas.app/relay/internal/planner"
)

func analysisOf(intent domain.Intent, query string, entities ...domain.Entity) domain.QueryAnalysis {
	return domain.QueryAnalysis{Query: query, Intent: intent, Entities: entities}
}

func stepKinds(t *testing.T, plan *domain.Plan) map[string]domain.StepKind {
	t.Helper()
	kinds := make(map[string]domain.StepKind, len(plan.Steps))
	for id, s := range plan.Steps {
		kinds[id] = s.Kind
	}
	return kinds
}

// S4: procedure intent builds search(requirements), search(forms) in
// parallel, then a synthesis step depending on both.
func TestBuildProcedurePlan(t *testing.T) {
	analysis := analysisOf(domain.IntentProcedure, "how do I renew a passport")
	plan, err := planner.Build(1, analysis)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.Steps) != 3 {
		t.Fatalf("want 3 steps, got %d", len(plan.Steps))
	}
	if len(plan.ExecutionOrder) != 2 {
		t.Fatalf("want 2 levels, got %d: %v", len(plan.ExecutionOrder), plan.ExecutionOrder)
	}
	if len(plan.ExecutionOrder[0]) != 2 {
		t.Fatalf("level 0 should hold the two parallel searches, got %v", plan.ExecutionOrder[0])
	}
	if len(plan.ExecutionOrder[1]) != 1 {
		t.Fatalf("level 1 should hold the synthesis step, got %v", plan.ExecutionOrder[1])
	}

	kinds := stepKinds(t, plan)
	var searchCount, synthCount int
	for _, k := range kinds {
		switch k {
		case domain.StepKindSearch:
			searchCount++
		case domain.StepKindSynthesis:
			synthCount++
		}
	}
	if searchCount != 2 || synthCount != 1 {
		t.Fatalf("want 2 search + 1 synthesis, got searches=%d synth=%d", searchCount, synthCount)
	}
}

// S5: comparison intent with two entities builds two parallel searches,
// two dependent analyses, and a final comparison step.
func TestBuildComparisonPlanWithTwoEntities(t *testing.T) {
	analysis := analysisOf(domain.IntentComparison, "compare the DMV and the post office",
		domain.Entity{Text: "DMV", Kind: "organisation"},
		domain.Entity{Text: "post office", Kind: "organisation"},
	)
	plan, err := planner.Build(2, analysis)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.Steps) != 5 {
		t.Fatalf("want 5 steps, got %d", len(plan.Steps))
	}
	if len(plan.ExecutionOrder) != 3 {
		t.Fatalf("want 3 levels, got %d: %v", len(plan.ExecutionOrder), plan.ExecutionOrder)
	}
	if len(plan.ExecutionOrder[0]) != 2 || len(plan.ExecutionOrder[1]) != 2 || len(plan.ExecutionOrder[2]) != 1 {
		t.Fatalf("want level shape [2,2,1], got %v", plan.ExecutionOrder)
	}

	kinds := stepKinds(t, plan)
	var compareCount int
	for _, k := range kinds {
		if k == domain.StepKindComparison {
			compareCount++
		}
	}
	if compareCount != 1 {
		t.Fatalf("want exactly 1 comparison step, got %d", compareCount)
	}
}

// Comparison intent with fewer than two entities degrades to a single
// search step, per spec.
func TestBuildComparisonPlanDegradesWithoutEntities(t *testing.T) {
	analysis := analysisOf(domain.IntentComparison, "which is better")
	plan, err := planner.Build(3, analysis)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.Steps) != 1 {
		t.Fatalf("want 1 step, got %d", len(plan.Steps))
	}
	for _, s := range plan.Steps {
		if s.Kind != domain.StepKindSearch {
			t.Fatalf("want a search step, got %s", s.Kind)
		}
	}
}

// S6 (calculation): search(cost info) feeds a dependent calculation step.
func TestBuildCalculationPlan(t *testing.T) {
	analysis := analysisOf(domain.IntentCalculation, "how much does a passport cost")
	plan, err := planner.Build(4, analysis)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.ExecutionOrder) != 2 {
		t.Fatalf("want 2 levels, got %d: %v", len(plan.ExecutionOrder), plan.ExecutionOrder)
	}
	kinds := stepKinds(t, plan)
	var hasCalc bool
	for _, k := range kinds {
		if k == domain.StepKindCalculation {
			hasCalc = true
		}
	}
	if !hasCalc {
		t.Fatal("want a calculation step")
	}
}

// S1-S3: fact/definition/contact lookups chain search -> retrieval.
func TestBuildLookupPlans(t *testing.T) {
	for _, intent := range []domain.Intent{domain.IntentFact, domain.IntentDefinition, domain.IntentLocation, domain.IntentContact} {
		analysis := analysisOf(intent, "where is the nearest DMV")
		plan, err := planner.Build(5, analysis)
		if err != nil {
			t.Fatalf("intent %s: unexpected error: %v", intent, err)
		}
		if len(plan.Steps) != 2 {
			t.Fatalf("intent %s: want 2 steps, got %d", intent, len(plan.Steps))
		}
		if len(plan.ExecutionOrder) != 2 {
			t.Fatalf("intent %s: want 2 levels, got %v", intent, plan.ExecutionOrder)
		}
	}
}

// Timeline intent chains search -> retrieval -> aggregation.
func TestBuildTimelinePlan(t *testing.T) {
	analysis := analysisOf(domain.IntentTimeline, "history of the passport office")
	plan, err := planner.Build(6, analysis)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Steps) != 3 {
		t.Fatalf("want 3 steps, got %d", len(plan.Steps))
	}
	if len(plan.ExecutionOrder) != 3 {
		t.Fatalf("want 3 levels (fully chained), got %v", plan.ExecutionOrder)
	}
}

// Unknown intent still resolves to a single search step, never an empty
// plan.
func TestBuildUnknownIntentFallsBackToSearch(t *testing.T) {
	analysis := analysisOf(domain.IntentUnknown, "asdkjalksjd")
	plan, err := planner.Build(7, analysis)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Steps) != 1 {
		t.Fatalf("want 1 step, got %d", len(plan.Steps))
	}
}

func TestBuildRejectsEmptyQuery(t *testing.T) {
	_, err := planner.Build(8, domain.QueryAnalysis{Intent: domain.IntentFact})
	if err == nil {
		t.Fatal("want an error for an empty query")
	}
}

// Estimated duration sums per-level maxima: a procedure plan is
// max(search,search)=2.0 for level 0, plus synthesis=2.0 for level 1.
func TestEstimatedDurationSumsLevelMaxima(t *testing.T) {
	analysis := analysisOf(domain.IntentProcedure, "how do I renew a passport")
	plan, err := planner.Build(9, analysis)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.EstimatedDuration != 4.0 {
		t.Fatalf("want estimated duration 4.0, got %v", plan.EstimatedDuration)
	}
}
