package domain

import "time"

// Plan is the DAG produced by the Plan Builder and consumed by the
// scheduler. It carries both the forward adjacency (step -> dependents)
// and the reverse adjacency (step -> dependencies) so that readiness
// computation (reverse) and failure propagation (forward) never need to
// re-walk the step set — see SPEC_FULL.md §1's "Graph representation"
// design note.
type Plan struct {
	ID       int64            `json:"id"`
	Query    string           `json:"query"`
	Analysis QueryAnalysis    `json:"analysis"`
	Steps    map[string]*Step `json:"steps"`

	// Graph maps a step id to the ids of steps that depend on it.
	Graph map[string][]string `json:"graph"`
	// ReverseGraph maps a step id to the ids it depends on.
	ReverseGraph map[string][]string `json:"reverse_graph"`

	ExecutionOrder    [][]string     `json:"execution_order,omitempty"`
	EstimatedDuration float64        `json:"estimated_duration_seconds"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// NewPlan builds an empty plan shell; steps are added with AddStep.
func NewPlan(id int64, query string, analysis QueryAnalysis) *Plan {
	return &Plan{
		ID:           id,
		Query:        query,
		Analysis:     analysis,
		Steps:        make(map[string]*Step),
		Graph:        make(map[string][]string),
		ReverseGraph: make(map[string][]string),
		Metadata:     make(map[string]any),
		CreatedAt:    time.Now().UTC(),
	}
}

// AddStep inserts step into the plan and wires its dependency edges into
// both adjacency maps. It fails with ErrUnknownDependency if step depends
// on an id not already present in the plan — dependencies must be added in
// topological order by the builder, matching the Python original's
// construction-time validation.
func (p *Plan) AddStep(step *Step) error {
	for _, dep := range step.DependsOn {
		if _, ok := p.Steps[dep]; !ok {
			return &PlanError{Err: ErrUnknownDependency, Detail: dep, StepID: step.ID}
		}
		p.Graph[dep] = append(p.Graph[dep], step.ID)
		p.ReverseGraph[step.ID] = append(p.ReverseGraph[step.ID], dep)
	}
	if _, ok := p.Graph[step.ID]; !ok {
		p.Graph[step.ID] = nil
	}
	if _, ok := p.ReverseGraph[step.ID]; !ok {
		p.ReverseGraph[step.ID] = nil
	}
	p.Steps[step.ID] = step
	return nil
}

// LeafSteps returns the ids of steps no other step depends on — the set
// used to build the scheduler's "final_results" submap.
func (p *Plan) LeafSteps() []string {
	var leaves []string
	for id := range p.Steps {
		if len(p.Graph[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

// AllSucceeded reports whether every step in the plan completed
// successfully.
func (p *Plan) AllSucceeded() bool {
	for _, s := range p.Steps {
		if s.Status != StepStatusCompleted {
			return false
		}
	}
	return true
}
