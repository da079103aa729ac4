package tools

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// LsTool lists a directory inside the workspace.
type LsTool struct {
	workspace *Workspace
}

func NewLsTool(workspace *Workspace) *LsTool {
	return &LsTool{workspace: workspace}
}

func (t *LsTool) GetName() string { return "ls" }

func (t *LsTool) GetDescription() string {
	return "List the entries of a directory"
}

func (t *LsTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{Name: "path", Type: "string", Description: "Directory to list, relative to the project root", Default: "."},
			{Name: "show_hidden", Type: "boolean", Description: "Include dotfiles", Default: false},
		},
	}
}

func (t *LsTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	var params struct {
		Path       string `json:"path"`
		ShowHidden bool   `json:"show_hidden"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return errorResult(t.GetName(), err.Error()), nil
	}
	if params.Path == "" {
		params.Path = "."
	}

	path, err := t.workspace.Resolve(params.Path)
	if err != nil {
		return errorResult(t.GetName(), err.Error()), nil
	}

	start := time.Now()
	entries, err := os.ReadDir(path)
	if err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("cannot list %s: %v", params.Path, err)), nil
	}

	var dirs, files []string
	for _, entry := range entries {
		name := entry.Name()
		if !params.ShowHidden && strings.HasPrefix(name, ".") {
			continue
		}
		if entry.IsDir() {
			dirs = append(dirs, name+"/")
		} else {
			files = append(files, name)
		}
	}
	sort.Strings(dirs)
	sort.Strings(files)

	lines := append(dirs, files...)
	content := strings.Join(lines, "\n")
	if content == "" {
		content = "(empty directory)"
	}
	return successResult(t.GetName(), content, time.Since(start), map[string]interface{}{
		"path":    params.Path,
		"entries": len(lines),
	}), nil
}
