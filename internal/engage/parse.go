// File: internal/engage/parse.go
package engage

import (
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// stripCodeFence removes a surrounding markdown code fence from a model
// response, tolerating a language tag after the opening backticks. Text
// without a fence passes through untouched, so the function is idempotent.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop a language tag such as "json" on the opening fence line.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		first := strings.TrimSpace(s[:i])
		if first != "" && !strings.ContainsAny(first, "{[") {
			s = s[i+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// parseList decodes a model response into a slice of T. The model is asked
// for a JSON array but sometimes wraps it in a fence or returns a single
// object; both are tolerated. Output that is not JSON at all yields an
// empty slice, never an error -- a mangled response is not worth failing a
// request over.
func parseList[T any](raw string, logger *zap.Logger) []T {
	cleaned := stripCodeFence(raw)

	var list []T
	if err := json.UnmarshalFromString(cleaned, &list); err == nil {
		return list
	}

	var single T
	if err := json.UnmarshalFromString(cleaned, &single); err == nil {
		return []T{single}
	}

	logger.Warn("Model response was not valid JSON; dropping it.",
		zap.Int("length", len(raw)))
	return nil
}
