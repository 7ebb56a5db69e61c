// Package llm provides the LLM client used by the Hypothesis Service (C8)
// and the Re-Ranker (C9). It is specified by spec.md §6 only by its
// request/response contract (`invoke(prompt, temperature, max_tokens) ->
// {content}`); this package additionally carries the structured
// JSON-schema chat capability C8/C9 need to get typed output back, the way
// the teacher's common/llm/client.go does for its own callers.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/invopop/jsonschema"

	"veritas.app/relay/internal/domain"
)

// Request is one chat invocation: a system/user prompt pair, an optional
// named JSON schema for structured output, and generation controls.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	SchemaName   string
	Schema       any
	MaxTokens    int
	Temperature  *float64
}

// Response carries the raw text content plus token accounting.
type Response struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// Client is the contract both providers implement. Chat is the structured
// path (C8/C9); Invoke is spec.md §6's plain prompt-in/content-out
// contract, implemented here as Chat without a schema.
type Client interface {
	Chat(ctx context.Context, req Request, result any) (*Response, error)
	Invoke(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
}

// Config selects and configures a single provider.
type Config struct {
	Provider string // "openai" or "anthropic"
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
}

// New constructs the configured provider's Client.
func New(cfg Config) (Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	switch cfg.Provider {
	case "anthropic":
		return newAnthropicClient(cfg), nil
	case "", "openai":
		return newOpenAIClient(cfg), nil
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", domain.ErrInvalidInput, cfg.Provider)
	}
}

// Temp returns a pointer to t, for filling Request.Temperature inline.
func Temp(t float64) *float64 { return &t }

// GenerateSchema builds a JSON Schema for T via reflection, used to pin an
// LLM response to a known Go shape (the hypothesis service's raw hypothesis
// shape and the re-ranker's batch-score shape).
func GenerateSchema[T any]() any {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// decode unmarshals a Chat response's content into result when a schema
// was requested.
func decode(content string, result any) error {
	if result == nil {
		return nil
	}
	return json.Unmarshal([]byte(content), result)
}

// IsRetryable classifies an error from a provider call as transient
// (network-level, timeout, or a context deadline) versus terminal. Mirrors
// the teacher's common/llm/client.go classification used by the scheduler's
// retry_failed policy.
func IsRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
