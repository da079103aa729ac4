package tools

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/songbird-ai/songbird/pkg/utils"
)

// maxReadSize caps file_read payloads so one large file cannot blow the
// context window.
const maxReadSize = 1 << 20

// ReadFileTool reads UTF-8 text files inside the workspace.
type ReadFileTool struct {
	workspace *Workspace
}

func NewReadFileTool(workspace *Workspace) *ReadFileTool {
	return &ReadFileTool{workspace: workspace}
}

func (t *ReadFileTool) GetName() string { return "file_read" }

func (t *ReadFileTool) GetDescription() string {
	return "Read the contents of a text file, optionally a line range"
}

func (t *ReadFileTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{Name: "path", Type: "string", Description: "File path relative to the project root", Required: true},
			{Name: "start_line", Type: "integer", Description: "First line to read (1-based)"},
			{Name: "end_line", Type: "integer", Description: "Last line to read (inclusive)"},
			{Name: "lines", Type: "integer", Description: "Number of lines to read from start_line"},
		},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	var params struct {
		Path      string `json:"path"`
		StartLine int    `json:"start_line"`
		EndLine   int    `json:"end_line"`
		Lines     int    `json:"lines"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return errorResult(t.GetName(), err.Error()), nil
	}
	if params.Path == "" {
		return errorResult(t.GetName(), "path parameter is required"), nil
	}

	path, err := t.workspace.Resolve(params.Path)
	if err != nil {
		return errorResult(t.GetName(), err.Error()), nil
	}

	start := time.Now()
	info, err := os.Stat(path)
	if err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("cannot read %s: %v", params.Path, err)), nil
	}
	if info.IsDir() {
		return errorResult(t.GetName(), fmt.Sprintf("%s is a directory", params.Path)), nil
	}
	if info.Size() > maxReadSize {
		return errorResult(t.GetName(),
			fmt.Sprintf("%s is too large (%d bytes, limit %d)", params.Path, info.Size(), maxReadSize)), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("cannot read %s: %v", params.Path, err)), nil
	}
	if utils.LooksBinary(data) {
		return errorResult(t.GetName(), fmt.Sprintf("%s appears to be a binary file", params.Path)), nil
	}

	content := string(data)
	lineCount := strings.Count(content, "\n") + 1
	if params.Lines > 0 && params.EndLine == 0 {
		start := params.StartLine
		if start < 1 {
			start = 1
		}
		params.EndLine = start + params.Lines - 1
	}
	if params.StartLine > 0 || params.EndLine > 0 {
		content, err = sliceLines(content, params.StartLine, params.EndLine)
		if err != nil {
			return errorResult(t.GetName(), err.Error()), nil
		}
	}

	return successResult(t.GetName(), content, time.Since(start), map[string]interface{}{
		"path":  params.Path,
		"size":  info.Size(),
		"lines": lineCount,
	}), nil
}

func sliceLines(content string, start, end int) (string, error) {
	lines := strings.Split(content, "\n")
	if start < 1 {
		start = 1
	}
	if end < 1 || end > len(lines) {
		end = len(lines)
	}
	if start > len(lines) {
		return "", fmt.Errorf("start_line %d is past the end of the file (%d lines)", start, len(lines))
	}
	if start > end {
		return "", fmt.Errorf("start_line %d is after end_line %d", start, end)
	}
	return strings.Join(lines[start-1:end], "\n"), nil
}
