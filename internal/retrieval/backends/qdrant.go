// Package backends adapts external storage/search systems to the C4
// Retrieval Engine's Backend contract.
//
// QdrantBackend is grounded on
// _examples/Tangerg-lynx/ai/providers/vectorstores/qdrant/store.go's
// client usage (NewQuery/QueryPoints/WithPayload, payload<->metadata
// conversion), trimmed to a read-only search path — the engine never
// writes through this adapter; ingestion is an external collaborator's
// concern per spec.md's scope boundary.
package backends

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"veritas.app/relay/internal/domain"
	"veritas.app/relay/internal/retrieval"
)

// Embedder turns query text into the dense vector a vector backend
// searches against. The engine is vector-store-agnostic about how an
// embedding is produced; callers wire in whichever provider's embedding
// endpoint they use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// QdrantBackend implements internal/retrieval.Backend against a Qdrant
// collection.
type QdrantBackend struct {
	Client     *qdrant.Client
	Collection string
	Embedder   Embedder
}

var _ retrieval.Backend = (*QdrantBackend)(nil)

// Search embeds query and runs a nearest-neighbour lookup, converting
// each scored point's payload back into a Document with its semantic
// relevance component populated.
func (b *QdrantBackend) Search(ctx context.Context, query string, topK int, filters domain.SearchFilters) ([]retrieval.ScoredDocument, error) {
	vector, err := b.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("qdrant: embedding query: %w", err)
	}

	limit := uint64(topK)
	req := &qdrant.QueryPoints{
		CollectionName: b.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if filters.MinRelevance > 0 {
		threshold := float32(filters.MinRelevance)
		req.ScoreThreshold = &threshold
	}
	if filter := toQdrantFilter(filters); filter != nil {
		req.Filter = filter
	}

	points, err := b.Client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant: query collection %s: %w", b.Collection, err)
	}

	out := make([]retrieval.ScoredDocument, 0, len(points))
	for _, p := range points {
		id := p.GetId().GetUuid()
		out = append(out, retrieval.ScoredDocument{
			Document: documentFromPayload(id, p.GetPayload()),
			Score:    float64(p.GetScore()),
		})
	}
	return out, nil
}

func toQdrantFilter(filters domain.SearchFilters) *qdrant.Filter {
	var must []*qdrant.Condition
	if len(filters.SourceTypes) > 0 {
		values := make([]string, 0, len(filters.SourceTypes))
		for _, s := range filters.SourceTypes {
			values = append(values, string(s))
		}
		must = append(must, qdrant.NewMatchKeywords("source_type", values...))
	}
	if filters.Language != "" {
		must = append(must, qdrant.NewMatchKeyword("language", filters.Language))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

func documentFromPayload(id string, payload map[string]*qdrant.Value) domain.Document {
	str := func(key string) string {
		if v, ok := payload[key]; ok {
			return v.GetStringValue()
		}
		return ""
	}

	doc := domain.Document{
		ID:       id,
		Title:    str("title"),
		Content:  str("content"),
		Source:   domain.SourceType(str("source_type")),
		FilePath: str("file_path"),
		Author:   str("author"),
		Language: str("language"),
	}

	if v, ok := payload["tags"]; ok {
		for _, item := range v.GetListValue().GetValues() {
			doc.Tags = append(doc.Tags, item.GetStringValue())
		}
	}

	return doc
}
