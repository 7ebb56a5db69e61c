package domain

import "time"

// SearchFilters is the closed set of options recognised by hybrid_search.
type SearchFilters struct {
	MaxResults   int          `json:"max_results,omitempty"`
	MinRelevance float64      `json:"min_relevance,omitempty"`
	SourceTypes  []SourceType `json:"source_types,omitempty"`
	Language     string       `json:"language,omitempty"`
	DateFrom     *time.Time   `json:"date_from,omitempty"`
	DateTo       *time.Time   `json:"date_to,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
}

// Weights supplies the per-method weights for the weighted-linear ranking
// strategy. A zero value for any weight means "skip this component",
// matching the fusion formula in spec.md §4.3.
type Weights struct {
	Semantic float64
	Keyword  float64
	Graph    float64
}

// DefaultWeights returns the engine's baseline weighting: semantic-leaning,
// matching the emphasis a RAG-style hybrid search typically gives vector
// similarity over keyword and graph signals.
func DefaultWeights() Weights {
	return Weights{Semantic: 0.5, Keyword: 0.3, Graph: 0.2}
}

// SearchResult is C4's return value: the fused, filtered (and optionally
// re-ranked) document list plus execution metadata.
type SearchResult struct {
	Query             string          `json:"query"`
	Documents         []Document      `json:"documents"`
	SearchMethodsUsed []string        `json:"search_methods_used"`
	RankingStrategy   RankingStrategy `json:"ranking_strategy"`
	Reranked          bool            `json:"reranked"`
	ExecutionTime     float64         `json:"execution_time"`
	Metadata          map[string]any  `json:"metadata,omitempty"`
}
