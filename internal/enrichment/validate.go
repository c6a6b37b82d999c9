package enrichment

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	leadingFenceRe  = regexp.MustCompile("^```(?:json)?\\s*")
	trailingFenceRe = regexp.MustCompile("\\s*```$")
)

var levels = map[string]bool{LevelHigh: true, LevelMedium: true, LevelLow: true}

// ParseResult validates raw model output. Markdown fences are tolerated;
// anything else that is not exactly the expected object yields false.
func ParseResult(raw string) (Result, bool) {
	cleaned := leadingFenceRe.ReplaceAllString(strings.TrimSpace(raw), "")
	cleaned = trailingFenceRe.ReplaceAllString(cleaned, "")

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return Result{}, false
	}

	var r Result
	if !decodeField(fields, "is_genuine", &r.IsGenuine) ||
		!decodeField(fields, "owner", &r.Owner) ||
		!decodeField(fields, "priority", &r.Priority) ||
		!decodeField(fields, "summary", &r.Summary) ||
		!decodeField(fields, "confidence", &r.Confidence) {
		return Result{}, false
	}

	if strings.TrimSpace(r.Summary) == "" || !levels[r.Priority] || !levels[r.Confidence] {
		return Result{}, false
	}
	return r, true
}

// decodeField requires key to be present and of dst's exact JSON type.
func decodeField(fields map[string]json.RawMessage, key string, dst any) bool {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}
