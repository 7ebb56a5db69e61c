package hypothesis_test

import (
	"context"
	"errors"
	"testing"

	"veritas.app/relay/common/llm"
	"veritas.app/relay/internal/domain"
	"veritas.app/relay/internal/hypothesis"
)

type fakeLLM struct {
	content string
	err     error
}

func (f fakeLLM) Chat(_ context.Context, _ llm.Request, result any) (*llm.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.content}, nil
}

func (f fakeLLM) Invoke(context.Context, string, float64, int) (string, error) {
	return f.content, nil
}

func TestGenerateParsesWellFormedResponse(t *testing.T) {
	client := fakeLLM{content: "```json\n" + `{"question_type":"procedural","primary_intent":"find requirements","confidence":"high","required_information":["form"],"information_gaps":[],"assumptions":[],"expected_response_type":"text"}` + "\n```"}
	svc, err := hypothesis.New(client, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h := svc.Generate(context.Background(), "how do I renew a passport", "")
	if h.Confidence != domain.ConfidenceHigh {
		t.Fatalf("want confidence high, got %s", h.Confidence)
	}
	if h.PrimaryIntent != "find requirements" {
		t.Fatalf("want parsed primary intent, got %s", h.PrimaryIntent)
	}
}

func TestGenerateFallsBackOnLLMFailure(t *testing.T) {
	client := fakeLLM{err: errors.New("unavailable")}
	svc, err := hypothesis.New(client, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h := svc.Generate(context.Background(), "q", "")
	if h.Confidence != domain.ConfidenceUnknown {
		t.Fatalf("want fallback confidence unknown, got %s", h.Confidence)
	}
	if len(h.Gaps) != 1 {
		t.Fatalf("want exactly one gap on fallback, got %d", len(h.Gaps))
	}

	stats := svc.Stats()
	if stats.Fallbacks != 1 || stats.Total != 1 {
		t.Fatalf("want 1 fallback counted, got %+v", stats)
	}
}

func TestGenerateFallsBackOnUnparsableJSON(t *testing.T) {
	client := fakeLLM{content: "not json at all"}
	svc, err := hypothesis.New(client, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h := svc.Generate(context.Background(), "q", "")
	if h.Confidence != domain.ConfidenceUnknown {
		t.Fatalf("want fallback on unparsable content, got %s", h.Confidence)
	}
}

func TestGenerateNormalizesUnknownEnumValues(t *testing.T) {
	client := fakeLLM{content: `{"question_type":"bogus","primary_intent":"x","confidence":"bogus","required_information":[],"information_gaps":[{"kind":"k","severity":"bogus","suggested_probing_query":"q"}]}`}
	svc, err := hypothesis.New(client, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h := svc.Generate(context.Background(), "q", "")
	if h.QuestionType != domain.QuestionFact {
		t.Fatalf("want unknown question_type to default to fact, got %s", h.QuestionType)
	}
	if h.Confidence != domain.ConfidenceMedium {
		t.Fatalf("want unknown confidence to default to medium, got %s", h.Confidence)
	}
	if h.Gaps[0].Severity != domain.GapOptional {
		t.Fatalf("want unknown severity to default to optional, got %s", h.Gaps[0].Severity)
	}
}
