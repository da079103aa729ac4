package utils

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
)

var (
	fenceRe        = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	unquotedKeyRe  = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	trailingComma  = regexp.MustCompile(`,\s*([}\]])`)
	singleQuoteStr = regexp.MustCompile(`'([^'\\]*(?:\\.[^'\\]*)*)'`)
)

// RepairJSON parses raw as a JSON object, applying a best-effort repair
// pass when strict parsing fails: markdown fences are stripped, single
// quotes become double quotes, bare keys get quoted, and trailing commas
// are dropped. Returns the parsed object or an error if the text is
// unsalvageable.
func RepairJSON(raw string) (map[string]interface{}, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return map[string]interface{}{}, nil
	}

	var out map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
		return out, nil
	}

	repaired := repairPass(trimmed)
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return nil, err
	}

	slog.Debug("repaired malformed JSON arguments",
		"original_len", len(trimmed), "repaired_len", len(repaired))
	return out, nil
}

func repairPass(s string) string {
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	}

	// Narrow to the outermost object when the model wrapped it in prose.
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}

	s = singleQuoteStr.ReplaceAllString(s, `"$1"`)
	s = unquotedKeyRe.ReplaceAllString(s, `$1"$2":`)
	s = trailingComma.ReplaceAllString(s, `$1`)

	return strings.TrimSpace(s)
}
