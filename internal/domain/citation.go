package domain

import "fmt"

// Citation references one retrieved document from a step's output.
type Citation struct {
	DocumentID    string         `json:"document_id"`
	Title         string         `json:"title"`
	Confidence    ConfidenceTier `json:"confidence"`
	Page          *int           `json:"page,omitempty"`
	Section       string         `json:"section,omitempty"`
	Excerpt       string         `json:"excerpt"`
	ExcerptStart  *int           `json:"excerpt_start,omitempty"`
	ExcerptEnd    *int           `json:"excerpt_end,omitempty"`
	ContextBefore string         `json:"context_before,omitempty"`
	ContextAfter  string         `json:"context_after,omitempty"`
}

// CitationFromDocument builds a Citation from a retrieved document,
// carrying its confidence tier and a bounded excerpt.
func CitationFromDocument(doc Document, excerptChars int) Citation {
	return Citation{
		DocumentID: doc.ID,
		Title:      doc.Title,
		Confidence: doc.RelevanceScore.Tier(),
		Excerpt:    doc.Excerpt(excerptChars),
	}
}

// Reference formats a short locator string: "Title (Page N)" if a page
// number is known, else just "Title".
func (c Citation) Reference() string {
	if c.Page != nil {
		return fmt.Sprintf("%s (Page %d)", c.Title, *c.Page)
	}
	return c.Title
}
