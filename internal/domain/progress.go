package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ProgressEvent is one immutable lifecycle record produced by the
// scheduler or a step executor and delivered to every Progress Bus
// subscriber. Field shapes and the percentage formulas below mirror
// original_source/backend/models/streaming_progress.py.
type ProgressEvent struct {
	EventKind     EventKind      `json:"event_kind"`
	StepID        string         `json:"step_id,omitempty"`
	StepName      string         `json:"step_name"`
	CurrentStep   int            `json:"current_step"`
	TotalSteps    int            `json:"total_steps"`
	Percentage    float64        `json:"percentage"`
	Status        ProgressStatus `json:"status"`
	Message       string         `json:"message"`
	Data          map[string]any `json:"data,omitempty"`
	Error         string         `json:"error,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	EventID       string         `json:"event_id"`
	ExecutionTime float64        `json:"execution_time"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// IsError reports whether the event signals a failure, either via status
// or via a populated error string.
func (e ProgressEvent) IsError() bool {
	return e.Status == ProgressFailed || e.Error != ""
}

func newEvent(kind EventKind) ProgressEvent {
	return ProgressEvent{
		EventKind: kind,
		EventID:   uuid.NewString(),
		Timestamp: time.Now().UTC(),
	}
}

// NewPlanStartedEvent announces the start of a plan with totalSteps steps.
func NewPlanStartedEvent(totalSteps int, query string) ProgressEvent {
	e := newEvent(EventPlanStarted)
	e.TotalSteps = totalSteps
	e.Status = ProgressStarting
	e.Message = fmt.Sprintf("Starting execution plan with %d steps", totalSteps)
	e.Data = map[string]any{"query": query}
	return e
}

// NewStepStartedEvent announces step current (1-based) of total starting.
// Percentage follows the wire-format contract: ((current-1)/total)*100.
func NewStepStartedEvent(stepID, stepName string, current, total int, metadata map[string]any) ProgressEvent {
	e := newEvent(EventStepStarted)
	e.StepID = stepID
	e.StepName = stepName
	e.CurrentStep = current
	e.TotalSteps = total
	e.Percentage = basePercentage(current, total)
	e.Status = ProgressStarting
	e.Message = fmt.Sprintf("Step %d/%d: Starting %s", current, total, stepName)
	e.Metadata = metadata
	return e
}

// NewStepProgressEvent reports partial progress (stepPercentage in [0,100])
// within one step. Overall percentage combines the completed-step baseline
// with this step's share of one step-slot.
func NewStepProgressEvent(stepID, stepName string, current, total int, stepPercentage float64, message string, data map[string]any) ProgressEvent {
	e := newEvent(EventStepProgress)
	e.StepID = stepID
	e.StepName = stepName
	e.CurrentStep = current
	e.TotalSteps = total
	base := basePercentage(current, total)
	weight := stepWeight(total)
	e.Percentage = base + weight*(stepPercentage/100)
	e.Status = ProgressProgress
	if message == "" {
		message = fmt.Sprintf("Step %d/%d: %s (%.0f%%)", current, total, stepName, stepPercentage)
	}
	e.Message = message
	e.Data = data
	return e
}

// NewStepCompletedEvent announces step current of total finishing
// successfully. Percentage is (current/total)*100.
func NewStepCompletedEvent(stepID, stepName string, current, total int, executionTime float64, resultData map[string]any) ProgressEvent {
	e := newEvent(EventStepCompleted)
	e.StepID = stepID
	e.StepName = stepName
	e.CurrentStep = current
	e.TotalSteps = total
	e.Percentage = completedPercentage(current, total)
	e.Status = ProgressCompleted
	e.Message = fmt.Sprintf("Step %d/%d: Completed %s", current, total, stepName)
	e.ExecutionTime = executionTime
	e.Data = resultData
	return e
}

// NewStepFailedEvent announces step current of total failing with error.
// Percentage stays at the step's starting baseline — the step never
// reached completion.
func NewStepFailedEvent(stepID, stepName string, current, total int, errMsg string) ProgressEvent {
	e := newEvent(EventStepFailed)
	e.StepID = stepID
	e.StepName = stepName
	e.CurrentStep = current
	e.TotalSteps = total
	e.Percentage = basePercentage(current, total)
	e.Status = ProgressFailed
	e.Message = fmt.Sprintf("Step %d/%d: Failed - %s", current, total, errMsg)
	e.Error = errMsg
	return e
}

// NewPlanCompletedEvent announces overall completion. success is false if
// any step failed, in which case the event kind is plan_failed instead of
// plan_completed. Percentage reaches 100 only on the plan_completed kind;
// a failed plan stops at the completed-step baseline.
func NewPlanCompletedEvent(total, completed, failed int, executionTime float64) ProgressEvent {
	success := failed == 0
	kind := EventPlanCompleted
	status := ProgressCompleted
	if !success {
		kind = EventPlanFailed
		status = ProgressFailed
	}
	e := newEvent(kind)
	e.TotalSteps = total
	e.CurrentStep = total
	if success {
		e.Percentage = 100
	} else {
		e.Percentage = basePercentage(completed+1, total)
	}
	e.Status = status
	e.ExecutionTime = executionTime
	msg := fmt.Sprintf("Execution completed: %d/%d steps succeeded", completed, total)
	if failed > 0 {
		msg += fmt.Sprintf(", %d failed", failed)
	}
	e.Message = msg
	e.Data = map[string]any{"completed_steps": completed, "failed_steps": failed, "success": success}
	return e
}

// NewPlanCancelledEvent announces cancellation of an in-flight plan.
func NewPlanCancelledEvent(total, completed int) ProgressEvent {
	e := newEvent(EventPlanFailed)
	e.TotalSteps = total
	e.CurrentStep = completed
	e.Percentage = basePercentage(completed+1, total)
	e.Status = ProgressCancelled
	e.Message = "Execution cancelled"
	return e
}

func basePercentage(current, total int) float64 {
	if total <= 0 {
		return 0
	}
	return (float64(current-1) / float64(total)) * 100
}

func completedPercentage(current, total int) float64 {
	if total <= 0 {
		return 0
	}
	return (float64(current) / float64(total)) * 100
}

func stepWeight(total int) float64 {
	if total <= 0 {
		return 0
	}
	return (1.0 / float64(total)) * 100
}
