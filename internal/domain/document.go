package domain

import (
	"fmt"
	"time"
)

// RelevanceScore carries the independent per-method scores a document
// accrued during hybrid_search, plus the fused score computed from them by
// the chosen ranking strategy. NewRelevanceScore rejects any of the four
// scores that lies outside [0,1].
type RelevanceScore struct {
	Semantic float64 `json:"semantic_score"`
	Keyword  float64 `json:"keyword_score"`
	Graph    float64 `json:"graph_score"`
	Fused    float64 `json:"fused_score"`

	// PreRerankFused preserves the fused score C9 observed before
	// overwriting Fused with the reranked score — see SPEC_FULL.md's
	// resolution of the re-rank combination open question.
	PreRerankFused *float64 `json:"pre_rerank_fused,omitempty"`
}

// NewRelevanceScore validates that every component lies in [0,1] before
// constructing the record, per the data model's "invalid scores are
// rejected at construction" guarantee.
func NewRelevanceScore(semantic, keyword, graph, fused float64) (RelevanceScore, error) {
	for _, v := range []float64{semantic, keyword, graph, fused} {
		if v < 0 || v > 1 {
			return RelevanceScore{}, fmt.Errorf("%w: score %v out of [0,1]", ErrInvalidInput, v)
		}
	}
	return RelevanceScore{Semantic: semantic, Keyword: keyword, Graph: graph, Fused: fused}, nil
}

// Tier derives the document's confidence tier from its fused score.
func (r RelevanceScore) Tier() ConfidenceTier {
	return ConfidenceFromScore(r.Fused)
}

// Clamp01 clamps a score into [0,1], used by fusion strategies that would
// otherwise produce values outside the range (e.g. a convex combination
// with caller-supplied weights that don't sum to 1).
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Document is one retrievable unit returned by a backend and carried
// through fusion, filtering, and re-ranking.
type Document struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Content  string     `json:"content"`
	Source   SourceType `json:"source_type"`
	FilePath string     `json:"file_path,omitempty"`
	Author   string     `json:"author,omitempty"`

	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	PageCount int    `json:"page_count,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
	Language  string `json:"language,omitempty"`

	Tags     []string       `json:"tags,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`

	RelevanceScore RelevanceScore `json:"relevance_score"`
}

// Excerpt returns at most maxChars characters of Content, used to build
// bounded per-document context excerpts (see internal/executor's chars/4
// token-budget heuristic).
func (d Document) Excerpt(maxChars int) string {
	if maxChars <= 0 || len(d.Content) <= maxChars {
		return d.Content
	}
	return d.Content[:maxChars]
}
