// Package planner implements the Plan Builder (C2): turning a Query
// Analysis into a DAG of typed steps with inferred dependencies.
//
// Grounded on internal/planner/planner.go's intent-dispatch switch (one
// case per analysis kind, each producing a slice of domain jobs) and on
// original_source/backend/services/process_builder.py's exact step
// templates and per-kind duration heuristics.
package planner

import (
	"fmt"

	"veritas.app/relay/internal/domain"
	"veritas.app/relay/internal/resolver"
)

// durationHeuristics are the fixed per-kind second estimates used to
// compute a plan's estimated duration, taken verbatim from
// process_builder.py's _estimate_execution_time.
var durationHeuristics = map[domain.StepKind]float64{
	domain.StepKindSearch:         2.0,
	domain.StepKindRetrieval:      1.0,
	domain.StepKindAnalysis:       3.0,
	domain.StepKindSynthesis:      2.0,
	domain.StepKindValidation:     1.0,
	domain.StepKindTransformation: 1.0,
	domain.StepKindCalculation:    1.5,
	domain.StepKindComparison:     2.5,
	domain.StepKindAggregation:    2.0,
	domain.StepKindOther:          2.0,
}

func durationFor(kind domain.StepKind) float64 {
	if d, ok := durationHeuristics[kind]; ok {
		return d
	}
	return durationHeuristics[domain.StepKindOther]
}

// builder assigns monotonically increasing step ids within one plan; ids
// are unique within the plan but not stable across builder runs.
type builder struct {
	plan    *domain.Plan
	counter int
}

func (b *builder) nextID() string {
	b.counter++
	return fmt.Sprintf("step_%d", b.counter)
}

// addStep creates a step with the given shape, wires it into the plan, and
// returns its assigned id.
func (b *builder) addStep(name, description string, kind domain.StepKind, params map[string]any, dependsOn ...string) (string, error) {
	id := b.nextID()
	step := &domain.Step{
		ID:          id,
		Name:        name,
		Description: description,
		Kind:        kind,
		Parameters:  params,
		DependsOn:   dependsOn,
		Status:      domain.StepStatusPending,
	}
	if err := b.plan.AddStep(step); err != nil {
		return "", err
	}
	return id, nil
}

// Build turns a Query Analysis into a fully wired Plan: steps, dependency
// edges, cached execution order, and estimated duration. It never returns
// a zero-step plan — every intent, including unknown, resolves to at
// least one search step.
func Build(planID int64, analysis domain.QueryAnalysis) (*domain.Plan, error) {
	if analysis.Query == "" {
		return nil, fmt.Errorf("%w: query analysis has no query text", domain.ErrInvalidInput)
	}

	plan := domain.NewPlan(planID, analysis.Query, analysis)
	b := &builder{plan: plan}

	var err error
	switch analysis.Intent {
	case domain.IntentFact, domain.IntentDefinition, domain.IntentLocation, domain.IntentContact:
		err = buildLookupSteps(b, analysis)
	case domain.IntentProcedure:
		err = buildProcedureSteps(b, analysis)
	case domain.IntentComparison:
		err = buildComparisonSteps(b, analysis)
	case domain.IntentCalculation:
		err = buildCalculationSteps(b, analysis)
	case domain.IntentTimeline:
		err = buildTimelineSteps(b, analysis)
	default:
		err = buildDefaultSteps(b, analysis)
	}
	if err != nil {
		return nil, err
	}

	order, err := resolver.ExecutionOrder(plan)
	if err != nil {
		return nil, err
	}
	plan.ExecutionOrder = order
	plan.EstimatedDuration = estimateDuration(plan, order)

	return plan, nil
}

// estimateDuration sums, across levels, the maximum of the per-kind
// heuristics of the steps in that level — steps within a level run in
// parallel, so the level's cost is its slowest member.
func estimateDuration(plan *domain.Plan, levels [][]string) float64 {
	var total float64
	for _, level := range levels {
		var levelMax float64
		for _, id := range level {
			if d := durationFor(plan.Steps[id].Kind); d > levelMax {
				levelMax = d
			}
		}
		total += levelMax
	}
	return total
}

// baseParams projects the common fields of an analysis (location,
// organisation, document-type, procedure-type, entity list) into a step's
// parameter map.
func baseParams(analysis domain.QueryAnalysis) map[string]any {
	params := map[string]any{"query": analysis.Query}
	for _, key := range []string{"location", "organisation", "document_type", "procedure_type"} {
		if v := analysis.Param(key); v != "" {
			params[key] = v
		}
	}
	if len(analysis.Entities) > 0 {
		params["entities"] = analysis.Entities
	}
	return params
}

func buildLookupSteps(b *builder, analysis domain.QueryAnalysis) error {
	search, err := b.addStep("Search", "Search for relevant information", domain.StepKindSearch, baseParams(analysis))
	if err != nil {
		return err
	}
	_, err = b.addStep("Retrieve", "Retrieve supporting documents", domain.StepKindRetrieval, baseParams(analysis), search)
	return err
}

func buildProcedureSteps(b *builder, analysis domain.QueryAnalysis) error {
	requirements, err := b.addStep("Search requirements", "Search for procedural requirements", domain.StepKindSearch, baseParams(analysis))
	if err != nil {
		return err
	}
	forms, err := b.addStep("Search forms", "Search for required forms", domain.StepKindSearch, baseParams(analysis))
	if err != nil {
		return err
	}
	_, err = b.addStep("Synthesize checklist", "Build a checklist from requirements and forms", domain.StepKindSynthesis, baseParams(analysis), requirements, forms)
	return err
}

// buildComparisonSteps degrades to a single search over the raw query when
// fewer than two comparable entities were extracted from the analysis.
func buildComparisonSteps(b *builder, analysis domain.QueryAnalysis) error {
	entities := comparableEntities(analysis)
	if len(entities) < 2 {
		_, err := b.addStep("Search", "Search for relevant information", domain.StepKindSearch, baseParams(analysis))
		return err
	}

	first, second := entities[0], entities[1]

	searchA, err := b.addStep("Search "+first.Text, "Search information about "+first.Text, domain.StepKindSearch, withEntity(analysis, first))
	if err != nil {
		return err
	}
	searchB, err := b.addStep("Search "+second.Text, "Search information about "+second.Text, domain.StepKindSearch, withEntity(analysis, second))
	if err != nil {
		return err
	}
	analysisA, err := b.addStep("Analyze "+first.Text, "Analyze information about "+first.Text, domain.StepKindAnalysis, withEntity(analysis, first), searchA)
	if err != nil {
		return err
	}
	analysisB, err := b.addStep("Analyze "+second.Text, "Analyze information about "+second.Text, domain.StepKindAnalysis, withEntity(analysis, second), searchB)
	if err != nil {
		return err
	}
	_, err = b.addStep("Compare", "Compare "+first.Text+" and "+second.Text, domain.StepKindComparison, baseParams(analysis), analysisA, analysisB)
	return err
}

func buildCalculationSteps(b *builder, analysis domain.QueryAnalysis) error {
	cost, err := b.addStep("Search cost information", "Search for cost information", domain.StepKindSearch, baseParams(analysis))
	if err != nil {
		return err
	}
	_, err = b.addStep("Calculate", "Calculate the result", domain.StepKindCalculation, baseParams(analysis), cost)
	return err
}

func buildTimelineSteps(b *builder, analysis domain.QueryAnalysis) error {
	search, err := b.addStep("Search", "Search for relevant information", domain.StepKindSearch, baseParams(analysis))
	if err != nil {
		return err
	}
	retrieval, err := b.addStep("Retrieve", "Retrieve supporting documents", domain.StepKindRetrieval, baseParams(analysis), search)
	if err != nil {
		return err
	}
	_, err = b.addStep("Aggregate timeline", "Aggregate events into a timeline", domain.StepKindAggregation, baseParams(analysis), retrieval)
	return err
}

func buildDefaultSteps(b *builder, analysis domain.QueryAnalysis) error {
	_, err := b.addStep("Search", "Search for relevant information", domain.StepKindSearch, baseParams(analysis))
	return err
}

func comparableEntities(analysis domain.QueryAnalysis) []domain.Entity {
	var out []domain.Entity
	for _, e := range analysis.Entities {
		if e.Kind == "organisation" || e.Kind == "entity" || e.Kind == "" {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		out = analysis.Entities
	}
	return out
}

func withEntity(analysis domain.QueryAnalysis, entity domain.Entity) map[string]any {
	params := baseParams(analysis)
	params["entity"] = entity.Text
	return params
}
