package llm

import (
	"encoding/json"
	"strings"
)

// ParseJSONResponse extracts a JSON object from model output that may wrap
// it in prose or a markdown code fence. Returns nil when no object can be
// recovered; callers fall back to a safe default.
func ParseJSONResponse(text string) map[string]any {
	text = strings.TrimSpace(text)

	// Strip a ```json ... ``` fence if present.
	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx >= 0 {
			text = text[idx+1:]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return nil
	}
	return parsed
}
