package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var ErrEmptyResponse = errors.New("llm returned no content")

type client struct {
	openai    openai.Client
	model     string
	maxTokens int
}

func New(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &client{
		openai:    openai.NewClient(requestOptions(cfg)...),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

func requestOptions(cfg Config) []option.RequestOption {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return opts
}

func (c *client) Invoke(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := []openai.ChatCompletionMessageParamUnion{}
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.UserPrompt))

	params := openai.ChatCompletionNewParams{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: openai.Int(int64(maxTokens)),
	}
	if req.Structured {
		params.ResponseFormat = responseFormat(req)
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	start := time.Now()
	resp, err := c.openai.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response: %w", ErrEmptyResponse)
	}

	slog.DebugContext(ctx, "llm invoke completed",
		"model", c.model,
		"structured", req.Structured,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"finish_reason", resp.Choices[0].FinishReason)

	content := resp.Choices[0].Message.Content
	if content == "" {
		return nil, ErrEmptyResponse
	}

	return &Response{
		Content:          content,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

func (c *client) Model() string {
	return c.model
}

func responseFormat(req Request) openai.ChatCompletionNewParamsResponseFormatUnion {
	if req.Schema == nil {
		return openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	name := req.SchemaName
	if name == "" {
		name = "response"
	}

	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
			JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:        name,
				Description: openai.String("Structured response schema"),
				Schema:      req.Schema,
				Strict:      openai.Bool(false),
			},
		},
	}
}
