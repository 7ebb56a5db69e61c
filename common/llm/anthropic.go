package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"veritas.app/relay/internal/domain"
)

type anthropicClient struct {
	client anthropic.Client
	model  string
}

func newAnthropicClient(cfg Config) *anthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	model := cfg.Model
	if model == "" {
		model = string(anthropic.ModelClaude3_5HaikuLatest)
	}
	return &anthropicClient{client: anthropic.NewClient(opts...), model: model}
}

func (c *anthropicClient) Chat(ctx context.Context, req Request, result any) (*Response, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: anthropic message create: %v", domain.ErrLLMFailed, err)
	}
	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("%w: anthropic returned no content blocks", domain.ErrLLMFailed)
	}

	var content string
	for _, block := range resp.Content {
		if text := block.Text; text != "" {
			content += text
		}
	}

	if err := decode(content, result); err != nil {
		return nil, fmt.Errorf("%w: decoding anthropic response for schema %s: %v", domain.ErrLLMFailed, req.SchemaName, err)
	}

	return &Response{
		Content:          content,
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
	}, nil
}

func (c *anthropicClient) Invoke(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	resp, err := c.Chat(ctx, Request{UserPrompt: prompt, Temperature: Temp(temperature), MaxTokens: maxTokens}, nil)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
