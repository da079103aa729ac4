package tools

import (
	"github.com/pmezard/go-difflib/difflib"
)

// unifiedDiff renders the pending change for confirmation prompts and
// previews.
func unifiedDiff(path, before, after string) string {
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return ""
	}
	return text
}

// diffStats counts added and removed lines in a unified diff.
func diffStats(diff string) (added, removed int) {
	inHeader := true
	for _, line := range difflib.SplitLines(diff) {
		if len(line) == 0 {
			continue
		}
		switch {
		case len(line) >= 3 && (line[:3] == "+++" || line[:3] == "---"):
			continue
		case len(line) >= 2 && line[:2] == "@@":
			inHeader = false
			continue
		}
		if inHeader {
			continue
		}
		switch line[0] {
		case '+':
			added++
		case '-':
			removed++
		}
	}
	return added, removed
}
