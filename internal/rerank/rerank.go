// Package rerank implements the Re-Ranker (C9): batched LLM rescoring of
// a retrieved document set, combined into the fused score by replacement
// (see DESIGN.md's Open Question decision).
//
// Grounded on the teacher's common/llm/llm.go batched-invocation idiom and
// original_source/backend/services/process_executor.py's
// `_retrieve_documents` rerank-combination mechanics.
package rerank

import (
	"context"
	"fmt"
	"sort"

	"veritas.app/relay/common/llm"
	"veritas.app/relay/internal/domain"
)

// Config controls one Reranker instance.
type Config struct {
	BatchSize   int
	ScoringMode domain.ScoringMode
	// RelevanceWeight and QualityWeight are only consulted in combined
	// scoring mode; they need not sum to 1 — the result is clamped.
	RelevanceWeight float64
	QualityWeight   float64
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 5
	}
	if c.ScoringMode == "" {
		c.ScoringMode = domain.ScoringRelevanceOnly
	}
	if c.RelevanceWeight == 0 && c.QualityWeight == 0 {
		c.RelevanceWeight, c.QualityWeight = 0.7, 0.3
	}
	return c
}

// Reranker is the C9 implementation, satisfying internal/retrieval's
// Reranker interface.
type Reranker struct {
	client llm.Client
	cfg    Config
}

// New constructs a Reranker bound to an LLM client.
func New(client llm.Client, cfg Config) *Reranker {
	return &Reranker{client: client, cfg: cfg.withDefaults()}
}

type docScore struct {
	Index     int     `json:"index"`
	Relevance float64 `json:"relevance"`
	Quality   float64 `json:"quality"`
}

type batchScores struct {
	Scores []docScore `json:"scores"`
}

// Rerank scores documents (already fused and filtered by C4) in batches
// and returns a copy ordered by the combined score. On any LLM or parse
// failure for a batch, that batch's documents keep their pre-rerank fused
// scores and original relative order, per spec §4.8.
func (r *Reranker) Rerank(ctx context.Context, query string, documents []domain.Document, topK int) ([]domain.Document, error) {
	n := len(documents)
	if topK > 0 && topK < n {
		n = topK
	}

	candidates := make([]domain.Document, n)
	copy(candidates, documents[:n])
	rest := documents[n:]

	for start := 0; start < len(candidates); start += r.cfg.BatchSize {
		end := start + r.cfg.BatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		r.rerankBatch(ctx, query, candidates[start:end])
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].RelevanceScore.Fused != candidates[j].RelevanceScore.Fused {
			return candidates[i].RelevanceScore.Fused > candidates[j].RelevanceScore.Fused
		}
		return candidates[i].ID < candidates[j].ID
	})

	out := make([]domain.Document, 0, len(documents))
	out = append(out, candidates...)
	out = append(out, rest...)
	return out, nil
}

func (r *Reranker) rerankBatch(ctx context.Context, query string, batch []domain.Document) {
	prompt := buildBatchPrompt(query, batch)
	var scores batchScores
	_, err := r.client.Chat(ctx, llm.Request{
		SystemPrompt: "You score how well each document answers the query. Respond only with the requested JSON.",
		UserPrompt:   prompt,
		SchemaName:   "rerank_batch_scores",
		Schema:       llm.GenerateSchema[batchScores](),
		MaxTokens:    512,
		Temperature:  llm.Temp(0),
	}, &scores)
	if err != nil {
		// Leave this batch's documents at their pre-rerank fused scores.
		return
	}

	byIndex := make(map[int]docScore, len(scores.Scores))
	for _, s := range scores.Scores {
		byIndex[s.Index] = s
	}

	for i := range batch {
		s, ok := byIndex[i]
		if !ok {
			continue
		}
		combined := r.combine(s)
		pre := batch[i].RelevanceScore.Fused
		batch[i].RelevanceScore.PreRerankFused = &pre
		batch[i].RelevanceScore.Fused = domain.Clamp01(combined)
	}
}

func (r *Reranker) combine(s docScore) float64 {
	switch r.cfg.ScoringMode {
	case domain.ScoringQualityOnly:
		return s.Quality
	case domain.ScoringCombined:
		total := r.cfg.RelevanceWeight + r.cfg.QualityWeight
		if total == 0 {
			return s.Relevance
		}
		return (r.cfg.RelevanceWeight*s.Relevance + r.cfg.QualityWeight*s.Quality) / total
	default: // relevance_only
		return s.Relevance
	}
}

func buildBatchPrompt(query string, batch []domain.Document) string {
	prompt := fmt.Sprintf("Query: %s\n\nScore each document's relevance (0-1) and quality (0-1) for answering the query. Documents:\n", query)
	for i, d := range batch {
		prompt += fmt.Sprintf("[%d] %s: %s\n", i, d.Title, d.Excerpt(400))
	}
	return prompt
}
