package llm

import (
	"context"
	"errors"
	"log/slog"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
)

// Config holds LLM client configuration.
type Config struct {
	APIKey    string // Required: API key for the provider
	BaseURL   string // Optional: custom OpenAI-compatible endpoint
	Model     string // Model name (e.g., "gpt-4o-mini")
	MaxTokens int    // Default completion budget when a request sets none
}

// Client performs a single system+user completion.
type Client interface {
	Invoke(ctx context.Context, req Request) (*Response, error)
	Model() string
}

type Request struct {
	SystemPrompt string
	UserPrompt   string

	// Structured asks the model for JSON. With a Schema the response is constrained to it,
	// otherwise any JSON object is accepted. Callers still parse with ParseStructured.
	Structured bool
	SchemaName string
	Schema     any

	MaxTokens   int
	Temperature *float64 // nil = model default, explicit 0 = deterministic
}

type Response struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// GenerateSchema reflects a JSON schema for T suitable for structured responses.
func GenerateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

func Temp(t float64) *float64 {
	return &t
}

func IsRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		slog.DebugContext(ctx, "llm error not retryable: context cancelled or deadline exceeded")
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			slog.WarnContext(ctx, "llm rate limited", "status_code", apiErr.StatusCode)
			return true
		case apiErr.StatusCode >= 500:
			slog.WarnContext(ctx, "llm server error", "status_code", apiErr.StatusCode)
			return true
		default:
			slog.ErrorContext(ctx, "llm client error, not retryable",
				"status_code", apiErr.StatusCode,
				"error_type", apiErr.Type,
				"error_code", apiErr.Code)
			return false
		}
	}

	if errors.Is(err, ErrParse) || errors.Is(err, ErrEmptyResponse) {
		return false
	}

	// Network errors (no API response) are generally retryable
	slog.WarnContext(ctx, "llm network error", "error", err)
	return true
}
