package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrParse marks model output that could not be decoded into the expected shape.
var ErrParse = errors.New("unparseable structured response")

// StripFormatting removes markdown code fences and any prose around the outermost JSON value.
func StripFormatting(raw string) string {
	s := strings.ReplaceAll(raw, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}

// ParseStructured decodes a model response into T after stripping incidental formatting.
// Every failure wraps ErrParse.
func ParseStructured[T any](raw string) (T, error) {
	var result T

	cleaned := StripFormatting(raw)
	if cleaned == "" {
		return result, fmt.Errorf("%w: empty response", ErrParse)
	}

	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return result, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return result, nil
}
