package rerank_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"veritas.app/relay/common/llm"
	"veritas.app/relay/internal/domain"
	"veritas.app/relay/internal/rerank"
)

type fakeLLM struct {
	response string
	err      error
}

func (f fakeLLM) Chat(_ context.Context, req llm.Request, result any) (*llm.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	if err := json.Unmarshal([]byte(f.response), result); err != nil {
		return nil, err
	}
	return &llm.Response{Content: f.response}, nil
}

func (f fakeLLM) Invoke(context.Context, string, float64, int) (string, error) {
	return f.response, nil
}

func docWithFused(id string, fused float64) domain.Document {
	return domain.Document{ID: id, Title: id, RelevanceScore: domain.RelevanceScore{Fused: fused}}
}

func TestRerankReordersByCombinedScore(t *testing.T) {
	client := fakeLLM{response: `{"scores":[{"index":0,"relevance":0.2,"quality":0.2},{"index":1,"relevance":0.9,"quality":0.9}]}`}
	reranker := rerank.New(client, rerank.Config{ScoringMode: domain.ScoringRelevanceOnly})

	docs := []domain.Document{docWithFused("a", 0.9), docWithFused("b", 0.1)}
	out, err := reranker.Rerank(context.Background(), "q", docs, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].ID != "b" {
		t.Fatalf("want b ranked first after rerank, got %s", out[0].ID)
	}
	if out[0].RelevanceScore.PreRerankFused == nil || *out[0].RelevanceScore.PreRerankFused != 0.1 {
		t.Fatalf("want pre-rerank fused preserved as 0.1, got %+v", out[0].RelevanceScore.PreRerankFused)
	}
}

func TestRerankFallsBackToOriginalOrderingOnFailure(t *testing.T) {
	client := fakeLLM{err: errors.New("llm unavailable")}
	reranker := rerank.New(client, rerank.Config{})

	docs := []domain.Document{docWithFused("a", 0.9), docWithFused("b", 0.1)}
	out, err := reranker.Rerank(context.Background(), "q", docs, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].ID != "a" || out[1].ID != "b" {
		t.Fatalf("want original ordering preserved, got %v, %v", out[0].ID, out[1].ID)
	}
}
