package domain

// InformationGap is one item the Hypothesis Service flagged as missing
// from the query's stated information.
type InformationGap struct {
	Kind           string      `json:"kind"`
	Severity       GapSeverity `json:"severity"`
	SuggestedQuery string      `json:"suggested_probing_query"`
	Examples       []string    `json:"examples,omitempty"`
}

// Hypothesis is the structured, pre-flight opinion about a query produced
// by C8 before C6 starts executing the plan.
type Hypothesis struct {
	Query          string           `json:"query"`
	QuestionType   QuestionType     `json:"question_type"`
	PrimaryIntent  string           `json:"primary_intent"`
	Confidence     ConfidenceTier   `json:"confidence"`
	RequiredInfo   []string         `json:"required_information"`
	Gaps           []InformationGap `json:"information_gaps,omitempty"`
	Assumptions    []string         `json:"assumptions,omitempty"`
	SuggestedSteps []string         `json:"suggested_steps,omitempty"`
	ResponseType   string           `json:"expected_response_type"`
	Metadata       map[string]any   `json:"metadata,omitempty"`
}

// HasCriticalGap reports whether any information gap is tagged critical.
func (h Hypothesis) HasCriticalGap() bool {
	for _, g := range h.Gaps {
		if g.Severity == GapCritical {
			return true
		}
	}
	return false
}

// FallbackHypothesis builds the degraded Hypothesis returned when the LLM
// call, JSON parse, or field validation fails. Per spec §4.7: confidence
// unknown, a single "llm_failure" gap of severity important, and an
// assumption noting the fallback origin.
func FallbackHypothesis(query string, reason string) Hypothesis {
	return Hypothesis{
		Query:         query,
		QuestionType:  QuestionFact,
		PrimaryIntent: "unknown",
		Confidence:    ConfidenceUnknown,
		RequiredInfo:  nil,
		Gaps: []InformationGap{{
			Kind:           "llm_failure",
			Severity:       GapImportant,
			SuggestedQuery: query,
		}},
		Assumptions:  []string{"hypothesis generation fell back after: " + reason},
		ResponseType: "text",
	}
}
