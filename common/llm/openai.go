package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"veritas.app/relay/internal/domain"
)

type openAIClient struct {
	client openai.Client
	model  string
}

func newOpenAIClient(cfg Config) *openAIClient {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &openAIClient{client: openai.NewClient(opts...), model: model}
}

func (c *openAIClient) Chat(ctx context.Context, req Request, result any) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.UserPrompt),
		},
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: openai chat completion: %v", domain.ErrLLMFailed, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: openai returned no choices", domain.ErrLLMFailed)
	}

	content := resp.Choices[0].Message.Content
	if err := decode(content, result); err != nil {
		return nil, fmt.Errorf("%w: decoding openai response for schema %s: %v", domain.ErrLLMFailed, req.SchemaName, err)
	}

	return &Response{
		Content:          content,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

func (c *openAIClient) Invoke(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	resp, err := c.Chat(ctx, Request{UserPrompt: prompt, Temperature: Temp(temperature), MaxTokens: maxTokens}, nil)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
