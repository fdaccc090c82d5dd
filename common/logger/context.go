package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment so that every log line emitted while a cycle,
// stage or agent is being processed carries that business context without extra arguments.
type LogFields struct {
	CycleID   *int64  // Pipeline cycle ID
	AgentID   *int    // Agent ID (1-9)
	Area      *string // Domain area code (PS, IU, LZ)
	Stage     *string // Pipeline stage name
	Source    *string // Data source type (data, news, gov)
	Component string  // Component name (OTel semantic convention style, e.g., "lighthouse.pipeline.orchestrator")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.CycleID != nil {
		result.CycleID = next.CycleID
	}
	if next.AgentID != nil {
		result.AgentID = next.AgentID
	}
	if next.Area != nil {
		result.Area = next.Area
	}
	if next.Stage != nil {
		result.Stage = next.Stage
	}
	if next.Source != nil {
		result.Source = next.Source
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{CycleID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
// Useful for logging potentially long strings like payloads or LLM output.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
