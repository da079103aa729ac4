package agent

import (
	"fmt"
	"strings"

	"github.com/songbird-ai/songbird/pkg/tools"
)

// FallbackSummary builds a deterministic closing message from the
// turn's tool results, used when the synthesis call is unavailable.
func FallbackSummary(results []tools.ToolResult) string {
	if len(results) == 0 {
		return "Done."
	}

	lines := make([]string, 0, len(results))
	for _, r := range results {
		if r.Success {
			lines = append(lines, "✓ "+describeResult(r))
		} else {
			lines = append(lines, fmt.Sprintf("✗ %s failed: %s", r.ToolName, r.Error))
		}
	}
	return strings.Join(lines, "\n")
}

func describeResult(r tools.ToolResult) string {
	if r.Content != "" {
		first := r.Content
		if idx := strings.IndexByte(first, '\n'); idx >= 0 {
			first = first[:idx]
		}
		if len(first) > 100 {
			first = first[:97] + "..."
		}
		if r.ToolName == "shell_exec" || r.ToolName == "file_read" || r.ToolName == "file_search" || r.ToolName == "ls" {
			return r.ToolName + " completed"
		}
		return first
	}
	return r.ToolName + " completed"
}
