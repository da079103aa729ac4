package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/songbird-ai/songbird/pkg/utils"
)

// CreateFileTool writes a new file. It refuses to overwrite; edits to
// existing files go through file_edit so they get a diff and a
// confirmation.
type CreateFileTool struct {
	workspace *Workspace
}

func NewCreateFileTool(workspace *Workspace) *CreateFileTool {
	return &CreateFileTool{workspace: workspace}
}

func (t *CreateFileTool) GetName() string { return "file_create" }

func (t *CreateFileTool) GetDescription() string {
	return "Create a new file with the given content, creating parent directories as needed"
}

func (t *CreateFileTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{Name: "path", Type: "string", Description: "File path relative to the project root", Required: true},
			{Name: "content", Type: "string", Description: "Full file content", Required: true},
		},
	}
}

func (t *CreateFileTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	var params struct {
		Path    string `json:"path"`
		Content string `json:"content"`
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

	if _, err := os.Stat(path); err == nil {
		return errorResult(t.GetName(),
			fmt.Sprintf("%s already exists; use file_edit to modify it", params.Path)), nil
	}

	start := time.Now()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("failed to create parent directories: %v", err)), nil
	}
	if err := utils.WriteFileAtomic(path, []byte(params.Content), 0644); err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("failed to write %s: %v", params.Path, err)), nil
	}

	lines := strings.Count(params.Content, "\n") + 1
	return successResult(t.GetName(),
		fmt.Sprintf("Created %s (%d lines)", params.Path, lines),
		time.Since(start),
		map[string]interface{}{
			"path":  params.Path,
			"bytes": len(params.Content),
			"lines": lines,
		}), nil
}
