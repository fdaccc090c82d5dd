package brain

import (
	"encoding/json"
	"fmt"
	"strings"

	"lighthouse.app/cityintel/common/llm"
)

// parseList accepts either a bare JSON array or an object wrapping the array under key.
func parseList[T any](raw, key string) ([]T, error) {
	cleaned := llm.StripFormatting(raw)
	if strings.HasPrefix(cleaned, "[") {
		return llm.ParseStructured[[]T](cleaned)
	}

	wrapper, err := llm.ParseStructured[map[string]json.RawMessage](cleaned)
	if err != nil {
		return nil, err
	}
	inner, ok := wrapper[key]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", llm.ErrParse, key)
	}
	return llm.ParseStructured[[]T](string(inner))
}
