package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"veritas.app/relay/internal/domain"
)

// Engine is the C4 implementation. Each backend is optional — a nil field
// means that backend is unavailable and is simply skipped, per spec §4.3.
type Engine struct {
	Vector     Backend
	Graph      Backend
	Relational Backend
	Reranker   Reranker
	Log        *slog.Logger
}

// New constructs an Engine. A nil logger falls back to slog.Default.
func New(vector, graph, relational Backend, reranker Reranker, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{Vector: vector, Graph: graph, Relational: relational, Reranker: reranker, Log: log}
}

type backendResult struct {
	method string
	docs   []ScoredDocument
	err    error
}

// backendTimeout bounds each backend call independently; a hung backend is
// indistinguishable from an unavailable one past this point.
const backendTimeout = 5 * time.Second

// HybridSearch fans the query out to every available backend, fuses the
// results, applies the filter pass, and optionally re-ranks. It never
// returns an error for a backend failure — per spec, a backend outage is
// logged and treated as an empty contribution; only a caller-level
// cancellation propagates as an error.
func (e *Engine) HybridSearch(ctx context.Context, query string, filters domain.SearchFilters, weights domain.Weights, strategy domain.RankingStrategy, topK int, rerank bool) (*domain.SearchResult, error) {
	start := time.Now()

	overfetch := topK * 2
	if overfetch < topK+5 {
		overfetch = topK + 5
	}

	results := e.fanOut(ctx, query, overfetch, filters)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	merged, methodsUsed := e.merge(results, strategy, weights)

	documents := applyFilters(merged, filters)
	sortDocuments(documents)
	if filters.MaxResults > 0 && len(documents) > filters.MaxResults {
		documents = documents[:filters.MaxResults]
	} else if filters.MaxResults == 0 && topK > 0 && len(documents) > topK {
		documents = documents[:topK]
	}

	reranked := false
	if rerank && e.Reranker != nil && len(documents) > 0 {
		if out, err := e.Reranker.Rerank(ctx, query, documents, topK); err != nil {
			e.Log.Warn("rerank failed, keeping fused ordering", "error", err)
		} else {
			documents = out
			reranked = true
		}
	}

	return &domain.SearchResult{
		Query:             query,
		Documents:         documents,
		SearchMethodsUsed: methodsUsed,
		RankingStrategy:   strategy,
		Reranked:          reranked,
		ExecutionTime:     time.Since(start).Seconds(),
	}, nil
}

func (e *Engine) fanOut(ctx context.Context, query string, topK int, filters domain.SearchFilters) []backendResult {
	type job struct {
		method  string
		backend Backend
	}
	jobs := []job{
		{"vector", e.Vector},
		{"graph", e.Graph},
		{"relational", e.Relational},
	}

	results := make([]backendResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, j := range jobs {
		i, j := i, j
		if j.backend == nil {
			results[i] = backendResult{method: j.method}
			continue
		}
		g.Go(func() error {
			bctx, cancel := context.WithTimeout(gctx, backendTimeout)
			defer cancel()
			docs, err := j.backend.Search(bctx, query, topK, filters)
			if err != nil {
				e.Log.Warn("retrieval backend unavailable", "backend", j.method, "error", err)
				results[i] = backendResult{method: j.method}
				return nil
			}
			results[i] = backendResult{method: j.method, docs: docs}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

type mergedDoc struct {
	doc                         domain.Document
	sem, key, graph             float64
	haveSem, haveKey, haveGraph bool
	rankSem, rankKey, rankGraph int
}

func (e *Engine) merge(results []backendResult, strategy domain.RankingStrategy, weights domain.Weights) ([]domain.Document, []string) {
	byID := make(map[string]*mergedDoc)
	order := make([]string, 0)
	var methodsUsed []string

	apply := func(method string, docs []ScoredDocument, set func(m *mergedDoc, score float64, rank int)) {
		if len(docs) == 0 {
			return
		}
		methodsUsed = append(methodsUsed, method)
		for i, sd := range docs {
			m, ok := byID[sd.Document.ID]
			if !ok {
				m = &mergedDoc{doc: sd.Document}
				byID[sd.Document.ID] = m
				order = append(order, sd.Document.ID)
			}
			set(m, domain.Clamp01(sd.Score), i+1)
		}
	}

	for _, r := range results {
		switch r.method {
		case "vector":
			apply("vector", r.docs, func(m *mergedDoc, score float64, rank int) {
				m.sem, m.haveSem, m.rankSem = score, true, rank
			})
		case "graph":
			apply("graph", r.docs, func(m *mergedDoc, score float64, rank int) {
				m.graph, m.haveGraph, m.rankGraph = score, true, rank
			})
		case "relational":
			apply("relational", r.docs, func(m *mergedDoc, score float64, rank int) {
				m.key, m.haveKey, m.rankKey = score, true, rank
			})
		}
	}

	documents := make([]domain.Document, 0, len(order))
	for _, id := range order {
		m := byID[id]
		fused := fuse(strategy, m.sem, m.key, m.graph, m.haveSem, m.haveKey, m.haveGraph, m.rankSem, m.rankKey, m.rankGraph, weights)
		score, err := domain.NewRelevanceScore(m.sem, m.key, m.graph, fused)
		if err != nil {
			// Component scores are always clamped above; this only guards
			// against a future change relaxing that guarantee.
			continue
		}
		doc := m.doc
		doc.RelevanceScore = score
		documents = append(documents, doc)
	}

	return documents, methodsUsed
}

func applyFilters(documents []domain.Document, filters domain.SearchFilters) []domain.Document {
	out := make([]domain.Document, 0, len(documents))
	for _, d := range documents {
		if filters.MinRelevance > 0 && d.RelevanceScore.Fused < filters.MinRelevance {
			continue
		}
		if len(filters.SourceTypes) > 0 && !containsSource(filters.SourceTypes, d.Source) {
			continue
		}
		if filters.Language != "" && d.Language != "" && d.Language != filters.Language {
			continue
		}
		if filters.DateFrom != nil && d.CreatedAt != nil && d.CreatedAt.Before(*filters.DateFrom) {
			continue
		}
		if filters.DateTo != nil && d.CreatedAt != nil && d.CreatedAt.After(*filters.DateTo) {
			continue
		}
		if len(filters.Tags) > 0 && !hasAnyTag(d.Tags, filters.Tags) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func containsSource(set []domain.SourceType, s domain.SourceType) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func hasAnyTag(docTags, wanted []string) bool {
	for _, w := range wanted {
		for _, t := range docTags {
			if t == w {
				return true
			}
		}
	}
	return false
}

// sortDocuments orders by fused score descending, tie-broken by
// document-id ascending, per spec §4.3's determinism guarantee.
func sortDocuments(documents []domain.Document) {
	sort.SliceStable(documents, func(i, j int) bool {
		if documents[i].RelevanceScore.Fused != documents[j].RelevanceScore.Fused {
			return documents[i].RelevanceScore.Fused > documents[j].RelevanceScore.Fused
		}
		return documents[i].ID < documents[j].ID
	})
}

// BatchSearch runs a HybridSearch per query concurrently, each fully
// independent, per spec §4.3's `batch_search`.
func (e *Engine) BatchSearch(ctx context.Context, queries []string, filters domain.SearchFilters, weights domain.Weights, strategy domain.RankingStrategy, topK int, rerank bool) ([]*domain.SearchResult, error) {
	out := make([]*domain.SearchResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			res, err := e.HybridSearch(gctx, q, filters, weights, strategy, topK, rerank)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
