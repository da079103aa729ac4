package tools

import (
	"context"
)

// GlobTool is file_search pinned to name mode.
type GlobTool struct {
	search *SearchTool
}

func NewGlobTool(search *SearchTool) *GlobTool {
	return &GlobTool{search: search}
}

func (t *GlobTool) GetName() string { return "glob" }

func (t *GlobTool) GetDescription() string {
	return "Find files whose names match a glob pattern"
}

func (t *GlobTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{Name: "pattern", Type: "string", Description: "Glob pattern, e.g. *.go or cmd/*/main.go", Required: true},
		},
	}
}

func (t *GlobTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	var params struct {
		Pattern string `json:"pattern"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return errorResult(t.GetName(), err.Error()), nil
	}
	if params.Pattern == "" {
		return errorResult(t.GetName(), "pattern parameter is required"), nil
	}

	result, err := t.search.Execute(ctx, map[string]interface{}{
		"pattern": params.Pattern,
		"mode":    "name",
	})
	result.ToolName = t.GetName()
	return result, err
}

// GrepTool is file_search pinned to text mode.
type GrepTool struct {
	search *SearchTool
}

func NewGrepTool(search *SearchTool) *GrepTool {
	return &GrepTool{search: search}
}

func (t *GrepTool) GetName() string { return "grep" }

func (t *GrepTool) GetDescription() string {
	return "Search file contents for a string"
}

func (t *GrepTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{Name: "pattern", Type: "string", Description: "Text to find in file contents", Required: true},
			{Name: "case_sensitive", Type: "boolean", Description: "Match case-sensitively", Default: false},
		},
	}
}

func (t *GrepTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	var params struct {
		Pattern       string `json:"pattern"`
		CaseSensitive bool   `json:"case_sensitive"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return errorResult(t.GetName(), err.Error()), nil
	}
	if params.Pattern == "" {
		return errorResult(t.GetName(), "pattern parameter is required"), nil
	}

	result, err := t.search.Execute(ctx, map[string]interface{}{
		"pattern":        params.Pattern,
		"mode":           "text",
		"case_sensitive": params.CaseSensitive,
	})
	result.ToolName = t.GetName()
	return result, err
}
