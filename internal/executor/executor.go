// Package executor implements the Step Executor (C5): runs one step to
// completion, reformulating its query, invoking the Retrieval Engine,
// building an LLM-sized context, and extracting citations.
//
// Grounded on the teacher's internal/brain/executor.go (step dispatch
// shape) and internal/brain/context_builder.go (chars/4 token budget,
// source excerpt format), applied to
// original_source/backend/services/process_executor.py's
// `_reformulate_query_for_step`, `_build_context`, `_extract_citations`.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"veritas.app/relay/internal/domain"
)

// Retriever is C4's contract as seen from C5.
type Retriever interface {
	HybridSearch(ctx context.Context, query string, filters domain.SearchFilters, weights domain.Weights, strategy domain.RankingStrategy, topK int, rerank bool) (*domain.SearchResult, error)
}

// ProgressEmitter is the subset of the Progress Bus the executor needs to
// report mid-step progress.
type ProgressEmitter interface {
	Emit(event domain.ProgressEvent)
}

// contextCharBudget is the chars/4 ≈ tokens heuristic the teacher's
// context_builder.go uses to bound how much document text feeds an LLM
// context window.
const contextCharBudget = 4000

// reformulationPrefixes maps a step kind to the reformulation hint spec
// §4.4 prescribes. Kinds the spec doesn't name a prefix for reuse the
// closest documented hint: synthesis/comparison read as "documentation and
// guides" requests, aggregation as a "data and facts" request, and
// calculation/transformation/other default to the plain "information
// about" framing.
var reformulationPrefixes = map[domain.StepKind]string{
	domain.StepKindSearch:         "Information about",
	domain.StepKindRetrieval:      "Data and facts about",
	domain.StepKindAnalysis:       "Analysis and evaluation of",
	domain.StepKindValidation:     "Legal requirements and regulations for",
	domain.StepKindSynthesis:      "Documentation and guides for",
	domain.StepKindComparison:     "Documentation and guides for",
	domain.StepKindAggregation:    "Data and facts about",
	domain.StepKindCalculation:    "Information about",
	domain.StepKindTransformation: "Information about",
	domain.StepKindOther:          "Information about",
}

// Executor is the C5 implementation.
type Executor struct {
	Retriever Retriever
	Progress  ProgressEmitter
	Weights   domain.Weights
	Strategy  domain.RankingStrategy
	TopK      int
	Rerank    bool

	// UseAgents marks analysis-family step outputs as destined for the
	// richer agent-produced path, which an external collaborator fills
	// in downstream.
	UseAgents bool
}

// New constructs an Executor bound to a retriever and progress sink.
func New(retriever Retriever, progress ProgressEmitter) *Executor {
	return &Executor{
		Retriever: retriever,
		Progress:  progress,
		Weights:   domain.DefaultWeights(),
		Strategy:  domain.RankingWeightedLinear,
		TopK:      10,
	}
}

// Execute runs step end-to-end, returning its StepResult plus the
// underlying cause when the step failed (nil on success) so the scheduler
// can classify failures for its retry policy. It mutates the step's own
// status/timing fields in place (the scheduler is the sole writer of the
// plan otherwise, but the executor owns the step it was handed for the
// duration of this call).
func (ex *Executor) Execute(ctx context.Context, step *domain.Step, current, total int, cancelled bool) (domain.StepResult, error) {
	if cancelled {
		_ = step.Transition(domain.StepStatusSkipped)
		result := domain.StepResult{Success: false, Error: "cancelled before start"}
		step.Result = &result
		return result, domain.ErrCancelled
	}

	now := time.Now().UTC()
	step.StartedAt = &now
	if err := step.Transition(domain.StepStatusRunning); err != nil {
		return domain.StepResult{Success: false, Error: err.Error()}, err
	}

	result, cause := ex.run(ctx, step, current, total)

	completedAt := time.Now().UTC()
	step.CompletedAt = &completedAt
	if result.Success {
		_ = step.Transition(domain.StepStatusCompleted)
	} else {
		_ = step.Transition(domain.StepStatusFailed)
	}
	step.Result = &result

	return result, cause
}

func (ex *Executor) run(ctx context.Context, step *domain.Step, current, total int) (domain.StepResult, error) {
	start := time.Now()
	query := reformulateQuery(step)

	var searchResult *domain.SearchResult
	if ex.Retriever != nil {
		res, err := ex.Retriever.HybridSearch(ctx, query, domain.SearchFilters{}, ex.Weights, ex.Strategy, ex.TopK, ex.Rerank)
		if err != nil {
			return domain.StepResult{Success: false, Error: fmt.Sprintf("retrieval failed: %v", err), ExecutionTime: time.Since(start).Seconds()}, err
		}
		searchResult = res
	} else {
		searchResult = &domain.SearchResult{Query: query}
	}

	if ex.Progress != nil {
		ex.Progress.Emit(domain.NewStepProgressEvent(step.ID, step.Name, current, total, 70,
			fmt.Sprintf("Retrieved %d documents", len(searchResult.Documents)), nil))
	}

	data := buildStepOutput(step, searchResult, ex.UseAgents)
	citations := extractCitations(searchResult.Documents)

	return domain.StepResult{
		Success:       true,
		Data:          data,
		ExecutionTime: time.Since(start).Seconds(),
		Citations:     citations,
	}, nil
}

// reformulateQuery builds a retrieval-ready sub-query from a step's own
// descriptor, per spec §4.4 step 2.
func reformulateQuery(step *domain.Step) string {
	prefix, ok := reformulationPrefixes[step.Kind]
	if !ok {
		prefix = "Information about"
	}
	subject := step.Description
	if subject == "" {
		subject = step.Name
	}
	return fmt.Sprintf("%s %s", prefix, subject)
}

// buildStepOutput populates titles/scores/context for search and
// retrieval kinds, per spec §4.4 step 5; other kinds carry a placeholder
// pending the richer agent-produced path (use_agents, out of this core's
// scope per spec.md's external-collaborator boundary).
func buildStepOutput(step *domain.Step, result *domain.SearchResult, useAgents bool) map[string]any {
	data := map[string]any{
		"methods_used": result.SearchMethodsUsed,
	}

	switch step.Kind {
	case domain.StepKindSearch, domain.StepKindRetrieval:
		titles := make([]string, 0, len(result.Documents))
		scores := make([]float64, 0, len(result.Documents))
		for _, d := range result.Documents {
			titles = append(titles, d.Title)
			scores = append(scores, d.RelevanceScore.Fused)
		}
		data["titles"] = titles
		data["relevance_scores"] = scores
		data["context"] = buildContext(result.Documents)
	default:
		data["document_count"] = len(result.Documents)
		if useAgents {
			data["requires_agent"] = true
			data["agent_kind"] = string(step.Kind)
			data["context"] = buildContext(result.Documents)
		}
	}

	return data
}

// buildContext concatenates bounded per-document excerpts up to
// contextCharBudget characters total, approximating a token budget via
// the chars/4 heuristic.
func buildContext(documents []domain.Document) string {
	var b strings.Builder
	remaining := contextCharBudget
	for _, d := range documents {
		if remaining <= 0 {
			break
		}
		header := fmt.Sprintf("### %s\n", d.Title)
		excerptBudget := remaining - len(header)
		if excerptBudget <= 0 {
			break
		}
		excerpt := d.Excerpt(excerptBudget)
		b.WriteString(header)
		b.WriteString(excerpt)
		b.WriteString("\n\n")
		remaining -= len(header) + len(excerpt) + 2
	}
	return b.String()
}

// extractCitations builds one Citation per retrieved document, carrying
// confidence tier and a bounded excerpt, per spec §4.4 step 6.
func extractCitations(documents []domain.Document) []domain.Citation {
	citations := make([]domain.Citation, 0, len(documents))
	for _, d := range documents {
		citations = append(citations, domain.CitationFromDocument(d, 300))
	}
	return citations
}
