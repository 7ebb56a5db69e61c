package backends

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"veritas.app/relay/internal/domain"
	"veritas.app/relay/internal/retrieval"
)

// PostgresBackend implements internal/retrieval.Backend via full-text
// search against a `documents` table, contributing the keyword relevance
// component of hybrid_search. It reads through the pool exposed by
// core/db.DB rather than owning its own connection lifecycle.
type PostgresBackend struct {
	Pool *pgxpool.Pool
}

var _ retrieval.Backend = (*PostgresBackend)(nil)

const searchQuery = `
	SELECT id, title, content, source_type, file_path, author, language,
	       coalesce(tags, '{}'), ts_rank(content_tsv, query) AS rank
	FROM documents, websearch_to_tsquery('english', $1) AS query
	WHERE content_tsv @@ query
	  AND ($2::text[] IS NULL OR source_type = ANY($2))
	  AND ($3::text IS NULL OR language = $3)
	ORDER BY rank DESC
	LIMIT $4
`

// Search runs the full-text query and normalises ts_rank output into a
// [0,1] keyword relevance score via a fixed saturation constant — ts_rank
// is unbounded above in general but settles well under this for
// single-to-few-term website-style queries.
func (b *PostgresBackend) Search(ctx context.Context, query string, topK int, filters domain.SearchFilters) ([]retrieval.ScoredDocument, error) {
	var sourceTypes []string
	for _, s := range filters.SourceTypes {
		sourceTypes = append(sourceTypes, string(s))
	}
	var languageFilter *string
	if filters.Language != "" {
		languageFilter = &filters.Language
	}

	rows, err := b.Pool.Query(ctx, searchQuery, query, sourceTypes, languageFilter, topK)
	if err != nil {
		return nil, fmt.Errorf("postgres: full text search: %w", err)
	}
	defer rows.Close()

	const rankSaturation = 0.5

	out := make([]retrieval.ScoredDocument, 0, topK)
	for rows.Next() {
		var (
			id, title, content, sourceType, filePath, author, language string
			tags                                                       []string
			rank                                                       float64
		)
		if err := rows.Scan(&id, &title, &content, &sourceType, &filePath, &author, &language, &tags, &rank); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		out = append(out, retrieval.ScoredDocument{
			Document: domain.Document{
				ID:       id,
				Title:    title,
				Content:  content,
				Source:   domain.SourceType(sourceType),
				FilePath: filePath,
				Author:   author,
				Language: language,
				Tags:     tags,
			},
			Score: domain.Clamp01(rank / rankSaturation),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate rows: %w", err)
	}
	return out, nil
}
