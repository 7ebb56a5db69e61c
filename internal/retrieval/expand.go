package retrieval

import "strings"

// synonyms is the built-in construction-domain vocabulary table, mirroring
// the shape of the original source's query_expansion_example (referenced
// in its example index but not itself part of the core spec) — a
// supplemented feature, not required by spec.md, which only names
// `expand_query` abstractly.
var synonyms = map[string][]string{
	"bauantrag":     {"baugenehmigung", "bauantragsformular"},
	"baugenehmigung": {"bauantrag", "baubescheid"},
	"kosten":        {"gebühren", "preis"},
	"gebühren":      {"kosten", "abgaben"},
	"formular":      {"antrag", "vordruck"},
	"antrag":        {"formular", "gesuch"},
	"frist":         {"termin", "deadline"},
	"unterlagen":    {"dokumente", "nachweise"},
}

// ExpandQuery produces up to maxExpansions near-duplicate query variations
// by substituting each recognised word with its synonyms, one substitution
// per variation. Matching is case-insensitive; the result is deduplicated
// and never includes the original query itself.
func ExpandQuery(query string, maxExpansions int) []string {
	if maxExpansions <= 0 {
		return nil
	}

	words := strings.Fields(query)
	seen := map[string]bool{strings.ToLower(query): true}
	var out []string

	for i, word := range words {
		key := strings.ToLower(strings.Trim(word, ".,!?;:"))
		alts, ok := synonyms[key]
		if !ok {
			continue
		}
		for _, alt := range alts {
			variant := make([]string, len(words))
			copy(variant, words)
			variant[i] = alt
			candidate := strings.Join(variant, " ")
			lower := strings.ToLower(candidate)
			if seen[lower] {
				continue
			}
			seen[lower] = true
			out = append(out, candidate)
			if len(out) >= maxExpansions {
				return out
			}
		}
	}

	return out
}
