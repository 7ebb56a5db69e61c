package domain

import "errors"

// Sentinel errors for the closed error-kind set at the core boundary.
// Callers classify with errors.Is; wrapped occurrences carry the
// offending detail via fmt.Errorf("...: %w", ErrX).
var (
	// ErrInvalidInput covers malformed analyses, negative top_k, an
	// out-of-range score, or an unknown dependency reference.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCyclicDependency is raised by the resolver when a plan's
	// dependency graph contains a cycle.
	ErrCyclicDependency = errors.New("cyclic dependency")

	// ErrDeadlockDetected is raised by the resolver when level
	// computation cannot make progress despite steps remaining. It is
	// informationally equivalent to ErrCyclicDependency but kept
	// distinct for diagnostics, per spec.
	ErrDeadlockDetected = errors.New("deadlock detected")

	// ErrUnknownDependency is raised at plan construction when a step
	// depends on an id not present in the same plan.
	ErrUnknownDependency = errors.New("unknown dependency")

	// ErrBackendUnavailable marks a retrieval backend that could not be
	// reached. Never surfaced to a caller; logged and absorbed by C4.
	ErrBackendUnavailable = errors.New("retrieval backend unavailable")

	// ErrStepExecutionFailed wraps any exception raised while a step
	// executes. Recorded on the step's result, never raised.
	ErrStepExecutionFailed = errors.New("step execution failed")

	// ErrLLMFailed wraps any failure talking to the LLM client from C8
	// or C9. Absorbed: C8 falls back to a default Hypothesis, C9 falls
	// back to the pre-rerank ordering.
	ErrLLMFailed = errors.New("llm call failed")

	// ErrCancelled marks a plan or step abandoned via external
	// cancellation.
	ErrCancelled = errors.New("cancelled")
)

// PlanError wraps one of the sentinel errors above with plan-specific
// detail (the offending step id, the extracted cycle, etc).
type PlanError struct {
	Err    error
	Detail string
	StepID string
	Cycle  []string
}

func (e *PlanError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Detail
}

func (e *PlanError) Unwrap() error { return e.Err }
