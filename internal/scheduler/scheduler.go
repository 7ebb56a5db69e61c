// Package scheduler implements the Plan Scheduler (C6): orchestrates the
// Step Executor level-by-level with bounded parallelism, tracks step
// lifecycle, and aggregates the plan's final result.
//
// Grounded on the teacher's internal/worker/pool.go (bounded worker-pool
// dispatch shape, one goroutine per in-flight job capped by a semaphore)
// and common/logger/context.go (context-scoped structured fields), applied
// to original_source/backend/agents/orchestrator.py's level-by-level
// execute loop and failure-propagation rules.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"veritas.app/relay/common"
	"veritas.app/relay/common/llm"
	"veritas.app/relay/common/logger"
	"veritas.app/relay/internal/domain"
	"veritas.app/relay/internal/executor"
	"veritas.app/relay/internal/resolver"
)

// HypothesisGenerator is C8's contract as seen from C6.
type HypothesisGenerator interface {
	Generate(ctx context.Context, query, ragContext string) domain.Hypothesis
}

// ProgressEmitter is the subset of the Progress Bus the scheduler needs.
type ProgressEmitter interface {
	Emit(event domain.ProgressEvent)
}

// Config controls one Scheduler instance, mirroring the closed
// configuration set recognised by the scheduler (spec §6).
type Config struct {
	MaxWorkers       int
	RetryFailed      bool
	EnableHypothesis bool
}

func (c Config) withDefaults() Config {
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = 4
	}
	return c
}

// Scheduler is the C6 implementation.
type Scheduler struct {
	Executor   *executor.Executor
	Progress   ProgressEmitter
	Hypothesis HypothesisGenerator
	Log        *slog.Logger
	cfg        Config
}

// New constructs a Scheduler. A nil logger falls back to slog.Default.
func New(exec *executor.Executor, progress ProgressEmitter, hyp HypothesisGenerator, cfg Config, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{Executor: exec, Progress: progress, Hypothesis: hyp, Log: log, cfg: cfg.withDefaults()}
}

// retryBackoff is the single retry delay applied under retry_failed, per
// DESIGN.md's resolution of the spec's unspecified retry policy: off by
// default, at most one retry, fixed backoff.
const retryBackoff = 500 * time.Millisecond

// Execute runs plan to completion, streaming lifecycle events on the
// Progress Bus and returning the aggregated result. cancel, if non-nil, is
// polled at level boundaries and before each step dispatch.
func (s *Scheduler) Execute(ctx context.Context, plan *domain.Plan, cancel <-chan struct{}) (*domain.AggregatedResult, error) {
	start := time.Now()

	var hyp *domain.Hypothesis
	if s.cfg.EnableHypothesis && s.Hypothesis != nil {
		h := s.Hypothesis.Generate(ctx, plan.Query, "")
		hyp = &h
	}

	// Resolve before announcing anything: an unexecutable plan must fail
	// synchronously with no plan_started on the bus.
	levels := plan.ExecutionOrder
	if levels == nil {
		resolved, err := resolver.ExecutionOrder(plan)
		if err != nil {
			return nil, err
		}
		levels = resolved
	}

	total := len(plan.Steps)
	s.emit(domain.NewPlanStartedEvent(total, plan.Query))

	order := make(map[string]int, total)
	for _, level := range levels {
		for _, id := range level {
			order[id] = len(order) + 1
		}
	}

	completed, failed := 0, 0
	cancelled := false

	for levelIndex, level := range levels {
		if isCancelled(cancel) {
			cancelled = true
			break
		}

		runnable, skip := s.partitionLevel(plan, level)
		for _, id := range skip {
			step := plan.Steps[id]
			current := order[id]
			_ = step.Transition(domain.StepStatusSkipped)
			step.Result = &domain.StepResult{Success: false, Error: "predecessor failed"}
			s.emit(domain.NewStepFailedEvent(id, step.Name, current, total, "predecessor failed"))
			failed++
		}

		for _, id := range runnable {
			step := plan.Steps[id]
			_ = step.Transition(domain.StepStatusReady)
			s.emit(domain.NewStepStartedEvent(id, step.Name, order[id], total, nil))
		}

		results := s.runLevel(ctx, plan, runnable, order, total, cancel)

		for _, id := range runnable {
			result := results[id]
			step := plan.Steps[id]
			current := order[id]
			if result.Success {
				completed++
				s.emit(domain.NewStepCompletedEvent(id, step.Name, current, total, result.ExecutionTime, result.Data))
			} else {
				failed++
				s.emit(domain.NewStepFailedEvent(id, step.Name, current, total, result.Error))
			}
			s.Log.DebugContext(ctx, "step finished",
				"step_id", id, "success", result.Success, "execution_time", result.ExecutionTime)
		}
		s.Log.DebugContext(ctx, "level finished",
			"level", levelIndex, "runnable", len(runnable), "skipped", len(skip))
	}

	executionTime := time.Since(start).Seconds()
	if cancelled {
		s.skipRemaining(plan, order, total)
		s.emit(domain.NewPlanCancelledEvent(total, completed))
	} else {
		s.emit(domain.NewPlanCompletedEvent(total, completed, failed, executionTime))
	}

	return s.aggregate(plan, hyp, len(levels), completed, failed, executionTime, failed == 0 && !cancelled), nil
}

// partitionLevel splits a level into steps whose entire predecessor set
// completed successfully (runnable) and steps with a failed or skipped
// predecessor (to be marked skipped), per spec §4.5 step 5.
func (s *Scheduler) partitionLevel(plan *domain.Plan, level []string) (runnable, skip []string) {
	for _, id := range level {
		ready := true
		for _, dep := range plan.ReverseGraph[id] {
			if plan.Steps[dep].Status != domain.StepStatusCompleted {
				ready = false
				break
			}
		}
		if ready {
			runnable = append(runnable, id)
		} else {
			skip = append(skip, id)
		}
	}
	return runnable, skip
}

// runLevel dispatches runnable steps to a bounded worker pool, each step
// checked against cancel immediately before it starts.
func (s *Scheduler) runLevel(ctx context.Context, plan *domain.Plan, runnable []string, order map[string]int, total int, cancel <-chan struct{}) map[string]domain.StepResult {
	results := make(map[string]domain.StepResult, len(runnable))
	var mu sync.Mutex

	sem := semaphore.NewWeighted(int64(s.cfg.MaxWorkers))
	g, gctx := errgroup.WithContext(ctx)

	for _, id := range runnable {
		id := id
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			step := plan.Steps[id]

			stepCtx := logger.WithLogFields(gctx, logger.LogFields{
				StepID:    logger.Ptr(id),
				Component: "relay.scheduler",
			})
			sc := logger.StartSpan(stepCtx, "scheduler.execute_step")
			defer sc.End()

			result := s.executeWithRetry(sc.Context(), step, order[id], total, isCancelled(cancel))
			mu.Lock()
			results[id] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// executeWithRetry runs the step once, retrying it exactly once after a
// fixed backoff when retry_failed is enabled and the failure is classified
// transient by llm.IsRetryable (timeouts and network-level errors). A
// deterministic failure is never retried.
func (s *Scheduler) executeWithRetry(ctx context.Context, step *domain.Step, current, total int, cancelled bool) domain.StepResult {
	result, cause := s.Executor.Execute(ctx, step, current, total, cancelled)
	if result.Success || !s.cfg.RetryFailed || step.Status != domain.StepStatusFailed || !llm.IsRetryable(ctx, cause) {
		return result
	}

	select {
	case <-ctx.Done():
		return result
	case <-time.After(retryBackoff):
	}

	result, _ = s.Executor.Execute(ctx, step, current, total, false)
	return result
}

func (s *Scheduler) skipRemaining(plan *domain.Plan, order map[string]int, total int) {
	for id, step := range plan.Steps {
		switch step.Status {
		case domain.StepStatusPending, domain.StepStatusReady:
			_ = step.Transition(domain.StepStatusSkipped)
			step.Result = &domain.StepResult{Success: false, Error: "cancelled"}
			s.emit(domain.NewStepFailedEvent(id, step.Name, order[id], total, "cancelled"))
		}
	}
}

func (s *Scheduler) aggregate(plan *domain.Plan, hyp *domain.Hypothesis, levels, completed, failed int, executionTime float64, success bool) *domain.AggregatedResult {
	results := make(map[string]*domain.StepResult, len(plan.Steps))
	for id, step := range plan.Steps {
		results[id] = step.Result
	}

	// final_results is keyed by the leaf step's name (slugged); on a name
	// collision between two leaves, the step id keeps the entries distinct.
	final := make(map[string]*domain.StepResult)
	for _, id := range plan.LeafSteps() {
		key, err := common.Slugify(plan.Steps[id].Name, id)
		if err != nil {
			key = id
		}
		if _, taken := final[key]; taken {
			key = id
		}
		final[key] = results[id]
	}

	return &domain.AggregatedResult{
		PlanID:        plan.ID,
		Query:         plan.Query,
		Success:       success,
		Results:       results,
		FinalResults:  final,
		Hypothesis:    hyp,
		ExecutionTime: executionTime,
		Metadata: map[string]any{
			"total_steps":     len(plan.Steps),
			"levels":          levels,
			"completed_steps": completed,
			"failed_steps":    failed,
		},
	}
}

func (s *Scheduler) emit(event domain.ProgressEvent) {
	if s.Progress != nil {
		s.Progress.Emit(event)
	}
}

func isCancelled(cancel <-chan struct{}) bool {
	if cancel == nil {
		return false
	}
	select {
	case <-cancel:
		return true
	default:
		return false
	}
}
