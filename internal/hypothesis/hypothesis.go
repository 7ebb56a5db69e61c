// Package hypothesis implements the Hypothesis Service (C8): a pre-flight
// LLM call producing a typed opinion about a query's intent and
// information gaps.
//
// Grounded on the teacher's common/llm/client.go (GenerateSchema,
// structured JSON-schema chat) and
// original_source/backend/services/hypothesis_service.py (prompt
// template, permissive JSON parsing, fallback and running-statistics
// behaviour).
package hypothesis

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"text/template"
	"time"

	"veritas.app/relay/common/llm"
	"veritas.app/relay/internal/domain"
)

const defaultPromptTemplate = `Analyze the following query and produce a structured hypothesis.

Query: {{.Query}}

{{if .RAGContext}}Context already gathered:
{{.RAGContext}}
{{end}}

Identify the question type, the primary intent, your confidence, the
information required to answer it fully, any information gaps, and your
assumptions. Respond only with JSON matching the requested schema.`

// Service is the C8 implementation.
type Service struct {
	client llm.Client
	tmpl   *template.Template

	mu             sync.Mutex
	stats          Stats
	totalGenMillis float64
	genCount       int
}

// Stats holds the Hypothesis Service's running statistics (supplemented
// feature; spec.md §4.7 requires they be maintained but does not shape
// them further).
type Stats struct {
	ByConfidence     map[domain.ConfidenceTier]int
	WithGaps         int
	WithCriticalGaps int
	Fallbacks        int
	FallbackRate     float64
	Total            int
	AvgGenerationMs  float64
}

// New constructs a Service. An empty promptTemplate falls back to the
// built-in default, per spec §4.7's "loaded once at construction (file or
// built-in default)".
func New(client llm.Client, promptTemplate string) (*Service, error) {
	if promptTemplate == "" {
		promptTemplate = defaultPromptTemplate
	}
	tmpl, err := template.New("hypothesis").Parse(promptTemplate)
	if err != nil {
		return nil, err
	}
	return &Service{
		client: client,
		tmpl:   tmpl,
		stats:  Stats{ByConfidence: make(map[domain.ConfidenceTier]int)},
	}, nil
}

type templateData struct {
	Query      string
	RAGContext string
}

type rawHypothesis struct {
	QuestionType   string   `json:"question_type"`
	PrimaryIntent  string   `json:"primary_intent"`
	Confidence     string   `json:"confidence"`
	RequiredInfo   []string `json:"required_information"`
	Gaps           []rawGap `json:"information_gaps"`
	Assumptions    []string `json:"assumptions"`
	SuggestedSteps []string `json:"suggested_steps"`
	ResponseType   string   `json:"expected_response_type"`
}

type rawGap struct {
	Kind           string   `json:"kind"`
	Severity       string   `json:"severity"`
	SuggestedQuery string   `json:"suggested_probing_query"`
	Examples       []string `json:"examples"`
}

// Generate produces a Hypothesis for query, optionally informed by
// ragContext already gathered by an earlier pass. On any failure it
// returns the fallback Hypothesis defined by spec §4.7, never an error —
// C8's failures are locally recovered per the error-handling design.
func (s *Service) Generate(ctx context.Context, query, ragContext string) domain.Hypothesis {
	start := time.Now()
	h, fellBack := s.generate(ctx, query, ragContext)
	s.record(h, fellBack, time.Since(start))
	return h
}

func (s *Service) generate(ctx context.Context, query, ragContext string) (domain.Hypothesis, bool) {
	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, templateData{Query: query, RAGContext: ragContext}); err != nil {
		return domain.FallbackHypothesis(query, "prompt template render failed: "+err.Error()), true
	}

	resp, err := s.client.Chat(ctx, llm.Request{
		SystemPrompt: "You are a query analysis assistant. Respond only with JSON.",
		UserPrompt:   buf.String(),
		SchemaName:   "hypothesis",
		Schema:       llm.GenerateSchema[rawHypothesis](),
		MaxTokens:    800,
		Temperature:  llm.Temp(0.2),
	}, nil)
	if err != nil {
		return domain.FallbackHypothesis(query, "llm call failed: "+err.Error()), true
	}

	raw, err := parsePermissive(resp.Content)
	if err != nil {
		return domain.FallbackHypothesis(query, "json parse failed: "+err.Error()), true
	}

	h, ok := toHypothesis(query, raw)
	if !ok {
		return domain.FallbackHypothesis(query, "missing required fields"), true
	}
	return h, false
}

// parsePermissive strips code-fence markers and decodes the span from the
// first '{' to the last '}', per spec's §9 design note for untrusted LLM
// text. Brace balance is not checked separately; an unbalanced span fails
// the JSON decode.
func parsePermissive(content string) (rawHypothesis, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	start := strings.IndexByte(trimmed, '{')
	end := strings.LastIndexByte(trimmed, '}')
	if start == -1 || end == -1 || end < start {
		return rawHypothesis{}, errNoJSONObject
	}
	candidate := trimmed[start : end+1]

	var raw rawHypothesis
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		return rawHypothesis{}, err
	}
	return raw, nil
}

func toHypothesis(query string, raw rawHypothesis) (domain.Hypothesis, bool) {
	if raw.PrimaryIntent == "" {
		return domain.Hypothesis{}, false
	}

	gaps := make([]domain.InformationGap, 0, len(raw.Gaps))
	for _, g := range raw.Gaps {
		gaps = append(gaps, domain.InformationGap{
			Kind:           g.Kind,
			Severity:       normalizeSeverity(g.Severity),
			SuggestedQuery: g.SuggestedQuery,
			Examples:       g.Examples,
		})
	}

	return domain.Hypothesis{
		Query:          query,
		QuestionType:   normalizeQuestionType(raw.QuestionType),
		PrimaryIntent:  raw.PrimaryIntent,
		Confidence:     normalizeConfidence(raw.Confidence),
		RequiredInfo:   raw.RequiredInfo,
		Gaps:           gaps,
		Assumptions:    raw.Assumptions,
		SuggestedSteps: raw.SuggestedSteps,
		ResponseType:   raw.ResponseType,
	}, true
}

// normalize* map unknown enumeration values to their documented defaults
// (fact / medium / optional), per spec §4.7.
func normalizeQuestionType(s string) domain.QuestionType {
	switch domain.QuestionType(s) {
	case domain.QuestionFact, domain.QuestionComparison, domain.QuestionProcedural,
		domain.QuestionCalculation, domain.QuestionOpinion, domain.QuestionTimeline,
		domain.QuestionCausal, domain.QuestionHypothetical:
		return domain.QuestionType(s)
	default:
		return domain.QuestionFact
	}
}

func normalizeConfidence(s string) domain.ConfidenceTier {
	switch domain.ConfidenceTier(s) {
	case domain.ConfidenceHigh, domain.ConfidenceMedium, domain.ConfidenceLow, domain.ConfidenceUnknown:
		return domain.ConfidenceTier(s)
	default:
		return domain.ConfidenceMedium
	}
}

func normalizeSeverity(s string) domain.GapSeverity {
	switch domain.GapSeverity(s) {
	case domain.GapCritical, domain.GapImportant, domain.GapOptional:
		return domain.GapSeverity(s)
	default:
		return domain.GapOptional
	}
}

func (s *Service) record(h domain.Hypothesis, fellBack bool, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Total++
	s.stats.ByConfidence[h.Confidence]++
	if len(h.Gaps) > 0 {
		s.stats.WithGaps++
	}
	if h.HasCriticalGap() {
		s.stats.WithCriticalGaps++
	}
	if fellBack {
		s.stats.Fallbacks++
	}
	s.stats.FallbackRate = float64(s.stats.Fallbacks) / float64(s.stats.Total)

	s.genCount++
	s.totalGenMillis += float64(elapsed.Milliseconds())
	s.stats.AvgGenerationMs = s.totalGenMillis / float64(s.genCount)
}

// Stats returns a snapshot of the service's running statistics.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	byConfidence := make(map[domain.ConfidenceTier]int, len(s.stats.ByConfidence))
	for k, v := range s.stats.ByConfidence {
		byConfidence[k] = v
	}
	snapshot := s.stats
	snapshot.ByConfidence = byConfidence
	return snapshot
}

var errNoJSONObject = jsonObjectNotFoundError{}

type jsonObjectNotFoundError struct{}

func (jsonObjectNotFoundError) Error() string { return "no JSON object found in LLM response" }
