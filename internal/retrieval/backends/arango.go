package backends

import (
	"context"
	"fmt"
	"strings"

	"github.com/arangodb/go-driver/v2/arangodb"

	"veritas.app/relay/internal/domain"
	"veritas.app/relay/internal/retrieval"
)

// ArangoBackend implements internal/retrieval.Backend by scoring documents
// on graph connectivity: the keyword match against the query only selects
// which documents are returned, and each match is scored by how many edges
// connect it in the knowledge graph relative to the best-connected match,
// approximating the "graph signal" spec §4.3
// describes as distinct from pure keyword/semantic scoring.
//
// Grounded on the teacher's common/arangodb/client.go AQL cursor idiom
// (db.Query + arangodb.QueryOptions + cursor.ReadDocument), trimmed from
// its call-graph traversal operations down to a single document-search
// query over a "documents" collection plus its "related_to" edge
// collection.
type ArangoBackend struct {
	DB                 arangodb.Database
	DocumentCollection string
	EdgeCollection     string
}

var _ retrieval.Backend = (*ArangoBackend)(nil)

type arangoSearchRow struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	SourceType string   `json:"source_type"`
	FilePath   string   `json:"file_path"`
	Language   string   `json:"language"`
	Tags       []string `json:"tags"`
	EdgeCount  int      `json:"edge_count"`
}

// Search runs a bounded full-text AQL filter over the document collection,
// joining each match against its edge count in EdgeCollection to derive a
// [0,1] graph-connectivity score.
func (b *ArangoBackend) Search(ctx context.Context, query string, topK int, filters domain.SearchFilters) ([]retrieval.ScoredDocument, error) {
	pattern := "%" + strings.ToLower(query) + "%"

	aql := fmt.Sprintf(`
		FOR doc IN %s
			FILTER LIKE(LOWER(doc.title), @pattern, true) OR LIKE(LOWER(doc.content), @pattern, true)
			LET edges = (
				FOR e IN %s
					FILTER e._from == doc._id OR e._to == doc._id
					RETURN 1
			)
			LIMIT @limit
			RETURN {
				id: doc._key,
				title: doc.title,
				content: doc.content,
				source_type: doc.source_type,
				file_path: doc.file_path,
				language: doc.language,
				tags: doc.tags,
				edge_count: LENGTH(edges)
			}
	`, b.DocumentCollection, b.EdgeCollection)

	cursor, err := b.DB.Query(ctx, aql, &arangodb.QueryOptions{
		BindVars: map[string]any{
			"pattern": pattern,
			"limit":   topK,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("arangodb: query %s: %w", b.DocumentCollection, err)
	}
	defer cursor.Close()

	var maxEdges int
	rows := make([]arangoSearchRow, 0, topK)
	for cursor.HasMore() {
		var row arangoSearchRow
		if _, err := cursor.ReadDocument(ctx, &row); err != nil {
			return nil, fmt.Errorf("arangodb: read document: %w", err)
		}
		rows = append(rows, row)
		if row.EdgeCount > maxEdges {
			maxEdges = row.EdgeCount
		}
	}

	out := make([]retrieval.ScoredDocument, 0, len(rows))
	for _, row := range rows {
		score := 0.0
		if maxEdges > 0 {
			score = float64(row.EdgeCount) / float64(maxEdges)
		}
		out = append(out, retrieval.ScoredDocument{
			Document: domain.Document{
				ID:       row.ID,
				Title:    row.Title,
				Content:  row.Content,
				Source:   domain.SourceType(row.SourceType),
				FilePath: row.FilePath,
				Language: row.Language,
				Tags:     row.Tags,
			},
			Score: score,
		})
	}
	return out, nil
}
