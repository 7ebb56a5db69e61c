package retrieval_test

import (
	"context"
	"errors"
	"testing"

	"veritas.app/relay/internal/domain"
	"veritas.app/relay/internal/retrieval"
)

type fakeBackend struct {
	docs []retrieval.ScoredDocument
	err  error
}

func (f fakeBackend) Search(_ context.Context, _ string, _ int, _ domain.SearchFilters) ([]retrieval.ScoredDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

func doc(id, title string) domain.Document {
	return domain.Document{ID: id, Title: title, Content: "content for " + title, Source: domain.SourceFile}
}

func TestHybridSearchMergesAcrossBackends(t *testing.T) {
	vector := fakeBackend{docs: []retrieval.ScoredDocument{{Document: doc("a", "A"), Score: 0.9}}}
	relational := fakeBackend{docs: []retrieval.ScoredDocument{{Document: doc("a", "A"), Score: 0.4}, {Document: doc("b", "B"), Score: 0.8}}}

	engine := retrieval.New(vector, nil, relational, nil, nil)
	result, err := engine.HybridSearch(context.Background(), "q", domain.SearchFilters{}, domain.DefaultWeights(), domain.RankingWeightedLinear, 10, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Documents) != 2 {
		t.Fatalf("want 2 merged documents, got %d", len(result.Documents))
	}

	var a *domain.Document
	for i := range result.Documents {
		if result.Documents[i].ID == "a" {
			a = &result.Documents[i]
		}
	}
	if a == nil {
		t.Fatal("document a missing from result")
	}
	if a.RelevanceScore.Semantic != 0.9 || a.RelevanceScore.Keyword != 0.4 {
		t.Fatalf("want coalesced component scores, got %+v", a.RelevanceScore)
	}
}

func TestHybridSearchAllBackendsUnavailableReturnsEmptyResult(t *testing.T) {
	failing := fakeBackend{err: errors.New("connection refused")}
	engine := retrieval.New(failing, failing, failing, nil, nil)

	result, err := engine.HybridSearch(context.Background(), "q", domain.SearchFilters{}, domain.DefaultWeights(), domain.RankingWeightedLinear, 5, false)
	if err != nil {
		t.Fatalf("want no error even when every backend fails, got %v", err)
	}
	if len(result.Documents) != 0 {
		t.Fatalf("want 0 documents, got %d", len(result.Documents))
	}
	if len(result.SearchMethodsUsed) != 0 {
		t.Fatalf("want no methods used, got %v", result.SearchMethodsUsed)
	}
}

func TestHybridSearchAppliesMinRelevanceFilter(t *testing.T) {
	vector := fakeBackend{docs: []retrieval.ScoredDocument{
		{Document: doc("a", "A"), Score: 0.9},
		{Document: doc("b", "B"), Score: 0.1},
	}}
	engine := retrieval.New(vector, nil, nil, nil, nil)

	result, err := engine.HybridSearch(context.Background(), "q", domain.SearchFilters{MinRelevance: 0.5}, domain.DefaultWeights(), domain.RankingWeightedLinear, 10, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Documents) != 1 || result.Documents[0].ID != "a" {
		t.Fatalf("want only document a to survive the filter, got %v", result.Documents)
	}
}

func TestHybridSearchOrdersByFusedScoreDescendingTieBrokenByID(t *testing.T) {
	vector := fakeBackend{docs: []retrieval.ScoredDocument{
		{Document: doc("b", "B"), Score: 0.5},
		{Document: doc("a", "A"), Score: 0.5},
	}}
	engine := retrieval.New(vector, nil, nil, nil, nil)

	result, err := engine.HybridSearch(context.Background(), "q", domain.SearchFilters{}, domain.DefaultWeights(), domain.RankingWeightedLinear, 10, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Documents) != 2 || result.Documents[0].ID != "a" {
		t.Fatalf("want tie broken by id ascending, got %v", result.Documents)
	}
}

func TestExpandQueryDeduplicatesAndRespectsMax(t *testing.T) {
	variants := retrieval.ExpandQuery("Wie viel kostet ein Bauantrag", 3)
	if len(variants) > 3 {
		t.Fatalf("want at most 3 variants, got %d", len(variants))
	}
	seen := map[string]bool{}
	for _, v := range variants {
		if seen[v] {
			t.Fatalf("duplicate variant: %s", v)
		}
		seen[v] = true
	}
}
