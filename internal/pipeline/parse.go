package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// cleanModelJSON strips markdown fences and, if the payload still does not
// start with the expected bracket, extracts the outermost JSON array. Model
// output is untrusted; parsing is the only access path.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	if !strings.HasPrefix(s, "[") {
		start := strings.Index(s, "[")
		end := strings.LastIndex(s, "]")
		if start >= 0 && end > start {
			s = s[start : end+1]
		}
	}

	return s
}

func decodeArray(raw string, v interface{}) error {
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), v); err != nil {
		return fmt.Errorf("response is not the expected JSON array: %w", err)
	}
	return nil
}

// normalizeText is the comparison key for duplicate detection and answer
// reconciliation: case-insensitive, whitespace-collapsed.
func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// distinctNormalized reports whether all options are pairwise distinct under
// normalization.
func distinctNormalized(options []string) bool {
	seen := make(map[string]struct{}, len(options))
	for _, opt := range options {
		key := normalizeText(opt)
		if _, dup := seen[key]; dup {
			return false
		}
		seen[key] = struct{}{}
	}
	return true
}
