// Package handler holds the HTTP handlers exposing the pipeline: query
// execution (JSON or SSE streaming) and hypothesis service statistics.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"veritas.app/relay/common/id"
	"veritas.app/relay/common/logger"
	"veritas.app/relay/internal/app"
	"veritas.app/relay/internal/domain"
	"veritas.app/relay/internal/planner"
	"veritas.app/relay/internal/progress"
	"veritas.app/relay/internal/progress/redissink"
	"veritas.app/relay/internal/scheduler"
)

// QueryRequest is the analyser's output shape as accepted over HTTP. The
// natural-language analyser is an external collaborator; clients submit
// its structured analysis alongside the raw query.
type QueryRequest struct {
	Query      string          `json:"query" binding:"required"`
	Intent     string          `json:"intent"`
	Parameters map[string]any  `json:"parameters"`
	Entities   []domain.Entity `json:"entities"`
	Stream     bool            `json:"stream"`
}

func (r QueryRequest) toAnalysis() domain.QueryAnalysis {
	intent := domain.Intent(r.Intent)
	if r.Intent == "" {
		intent = domain.IntentUnknown
	}
	return domain.QueryAnalysis{
		Query:      r.Query,
		Intent:     intent,
		Parameters: r.Parameters,
		Entities:   r.Entities,
	}
}

type QueryHandler struct {
	app *app.App
}

func NewQueryHandler(a *app.App) *QueryHandler {
	return &QueryHandler{app: a}
}

// Execute runs one query through the pipeline. With stream=true (or an
// Accept: text/event-stream header) progress events are delivered as SSE
// before the final result; otherwise the aggregated result is returned as
// one JSON response.
func (h *QueryHandler) Execute(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	planID := id.New()
	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
		PlanID:    logger.Ptr(planID),
		Component: "relay.http",
	})

	plan, err := planner.Build(planID, req.toAnalysis())
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	bus := progress.New(slog.Default())
	if h.app.Redis != nil {
		sink := redissink.New(h.app.Redis, h.app.Cfg.Redis.Stream, slog.Default())
		sink.Attach(ctx, bus)
	}
	sched := h.app.NewScheduler(bus)

	if !req.Stream && c.GetHeader("Accept") != "text/event-stream" {
		result, err := sched.Execute(ctx, plan, ctx.Done())
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	h.stream(ctx, c, sched, plan, bus)
}

func (h *QueryHandler) stream(ctx context.Context, c *gin.Context, sched *scheduler.Scheduler, plan *domain.Plan, bus *progress.Bus) {
	events := make(chan domain.ProgressEvent, 256)
	bus.Subscribe(ctx, func(_ context.Context, event domain.ProgressEvent) {
		events <- event
	})

	type execOutcome struct {
		result *domain.AggregatedResult
		err    error
	}
	outcome := make(chan execOutcome, 1)
	go func() {
		result, err := sched.Execute(ctx, plan, ctx.Done())
		outcome <- execOutcome{result: result, err: err}
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			c.SSEvent("progress", event)
			c.Writer.Flush()

			// The terminal plan event is the last thing the scheduler
			// emits before returning, so the outcome is (or is about to
			// be) available once we have relayed it.
			if event.EventKind == domain.EventPlanCompleted || event.EventKind == domain.EventPlanFailed {
				out := <-outcome
				if out.err != nil {
					c.SSEvent("error", gin.H{"error": out.err.Error()})
				} else {
					c.SSEvent("result", out.result)
				}
				c.Writer.Flush()
				return
			}
		}
	}
}

// HypothesisStats reports the hypothesis service's running statistics.
func (h *QueryHandler) HypothesisStats(c *gin.Context) {
	if h.app.Hypothesis == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "hypothesis service disabled"})
		return
	}
	c.JSON(http.StatusOK, h.app.Hypothesis.Stats())
}
