// Package retrieval implements the Retrieval Engine (C4): fan-out across
// vector/graph/relational backends, score fusion, filtering, and an
// optional re-rank pass.
//
// Grounded on the teacher's internal/brain/retriever.go bounded-parallel
// fan-out idiom (adapted here to a fixed three-way fan-out via
// golang.org/x/sync/errgroup rather than a semaphore, since the backend
// count is fixed and small) and on
// original_source/backend/services/process_executor.py's
// `_retrieve_documents`.
package retrieval

import (
	"context"

	"veritas.app/relay/internal/domain"
)

// ScoredDocument is one backend's verdict on a document: the document and
// the score that backend gave it. Backends leave Document.RelevanceScore
// unset; the engine files Score under the backend's component when it
// merges results.
type ScoredDocument struct {
	Document domain.Document
	Score    float64
}

// Backend is the contract each retrieval backend (vector, graph,
// relational) must satisfy. Per spec §4.3, each backend is optional and a
// failure from one is non-fatal to the overall hybrid search.
type Backend interface {
	Search(ctx context.Context, query string, topK int, filters domain.SearchFilters) ([]ScoredDocument, error)
}

// Reranker is C9's contract as seen from C4: given a query and the
// fused-and-filtered top documents, return a re-ordered copy.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []domain.Document, topK int) ([]domain.Document, error)
}
