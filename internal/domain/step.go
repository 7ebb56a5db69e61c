package domain

import (
	"fmt"
	"time"
)

// Step is a single unit of work in a Plan. Its status field is owned
// exclusively by the scheduler (C6); every other reader must treat a Step
// as read-only once it has observed a terminal status.
type Step struct {
	ID          string         `json:"step_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Kind        StepKind       `json:"kind"`
	Parameters  map[string]any `json:"parameters"`
	DependsOn   []string       `json:"depends_on"`

	Status StepStatus  `json:"status"`
	Result *StepResult `json:"result,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// monotone status transitions, except pending<->ready which may cycle
// freely while the resolver recomputes readiness. Failed->running is the
// one documented exception: the scheduler's retry_failed policy re-enters
// a failed step exactly once rather than cycling it back through ready.
var validTransitions = map[StepStatus]map[StepStatus]bool{
	StepStatusPending:   {StepStatusReady: true, StepStatusPending: true, StepStatusSkipped: true},
	StepStatusReady:     {StepStatusPending: true, StepStatusReady: true, StepStatusRunning: true, StepStatusSkipped: true},
	StepStatusRunning:   {StepStatusCompleted: true, StepStatusFailed: true, StepStatusSkipped: true},
	StepStatusCompleted: {},
	StepStatusFailed:    {StepStatusRunning: true},
	StepStatusSkipped:   {},
}

// CanTransitionTo reports whether moving from the step's current status to
// next is a legal transition under the monotone-status invariant.
func (s *Step) CanTransitionTo(next StepStatus) bool {
	return validTransitions[s.Status][next]
}

// Transition moves the step to next, returning an error if the transition
// violates the monotone-status invariant.
func (s *Step) Transition(next StepStatus) error {
	if !s.CanTransitionTo(next) {
		return fmt.Errorf("%w: step %s cannot move from %s to %s", ErrInvalidInput, s.ID, s.Status, next)
	}
	s.Status = next
	return nil
}

// HasResult reports the result-slot-freshness invariant: a result is set
// iff the step has reached a terminal status.
func (s *Step) HasResult() bool {
	return s.Result != nil
}

// StepResult is set exactly once, on the step's transition out of running
// (or directly to skipped, without ever running).
type StepResult struct {
	Success       bool           `json:"success"`
	Data          map[string]any `json:"data,omitempty"`
	Error         string         `json:"error,omitempty"`
	ExecutionTime float64        `json:"execution_time"`
	Citations     []Citation     `json:"source_citations,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}
