package tools

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/songbird-ai/songbird/pkg/utils"
)

// CancelledMessage is the exact content reported when the user declines
// a change, so the model knows not to retry the same edit.
const CancelledMessage = "Changes cancelled by user"

// EditTool modifies an existing file. The change is computed, rendered
// as a unified diff, and gated on the confirmation callback before any
// byte hits disk. A .bak copy of the previous content is kept.
type EditTool struct {
	workspace *Workspace
	confirm   ConfirmFunc
}

func NewEditTool(workspace *Workspace, confirm ConfirmFunc) *EditTool {
	return &EditTool{workspace: workspace, confirm: confirm}
}

func (t *EditTool) GetName() string { return "file_edit" }

func (t *EditTool) GetDescription() string {
	return "Edit an existing file by replacing a text fragment or supplying new content; shows a diff and asks for confirmation"
}

func (t *EditTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{Name: "path", Type: "string", Description: "File path relative to the project root", Required: true},
			{Name: "search", Type: "string", Description: "Exact text to replace; must occur exactly once unless replace_all is set"},
			{Name: "replace", Type: "string", Description: "Replacement text for search"},
			{Name: "new_content", Type: "string", Description: "Full replacement content, used instead of search/replace"},
			{Name: "replace_all", Type: "boolean", Description: "Replace every occurrence of search", Default: false},
		},
	}
}

func (t *EditTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	var params struct {
		Path       string  `json:"path"`
		Search     *string `json:"search"`
		Replace    string  `json:"replace"`
		NewContent *string `json:"new_content"`
		ReplaceAll bool    `json:"replace_all"`
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

	data, err := os.ReadFile(path)
	if err != nil {
		return errorResult(t.GetName(),
			fmt.Sprintf("cannot edit %s: %v (use file_create for new files)", params.Path, err)), nil
	}
	if utils.LooksBinary(data) {
		return errorResult(t.GetName(), fmt.Sprintf("%s appears to be a binary file", params.Path)), nil
	}
	before := string(data)

	after, err := applyEdit(before, params.Search, params.NewContent, params.Replace, params.ReplaceAll)
	if err != nil {
		return errorResult(t.GetName(), err.Error()), nil
	}
	if after == before {
		return successResult(t.GetName(),
			fmt.Sprintf("No changes needed in %s", params.Path), 0, nil), nil
	}

	diff := unifiedDiff(params.Path, before, after)

	start := time.Now()
	accepted, err := t.confirm(ctx, params.Path, diff)
	if err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("confirmation failed: %v", err)), nil
	}
	if !accepted {
		return ToolResult{
			Success:  false,
			Content:  CancelledMessage,
			Error:    CancelledMessage,
			ToolName: t.GetName(),
			Metadata: map[string]interface{}{"path": params.Path, "cancelled": true},
		}, nil
	}

	if err := writeWithBackup(path, []byte(after)); err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("failed to write %s: %v", params.Path, err)), nil
	}

	added, removed := diffStats(diff)
	return successResult(t.GetName(),
		fmt.Sprintf("Edited %s (+%d -%d)", params.Path, added, removed),
		time.Since(start),
		map[string]interface{}{
			"path":          params.Path,
			"lines_added":   added,
			"lines_removed": removed,
			"changes_made":  diff,
		}), nil
}

// applyEdit computes the post-edit content from either a full
// replacement or a search/replace pair.
func applyEdit(before string, search, newContent *string, replace string, replaceAll bool) (string, error) {
	switch {
	case newContent != nil && search != nil:
		return "", fmt.Errorf("provide either new_content or search/replace, not both")
	case newContent != nil:
		return *newContent, nil
	case search != nil:
		if *search == "" {
			return "", fmt.Errorf("search text must not be empty")
		}
		count := strings.Count(before, *search)
		if count == 0 {
			return "", fmt.Errorf("search text not found in file")
		}
		if count > 1 && !replaceAll {
			return "", fmt.Errorf("search text occurs %d times; make it unique or set replace_all", count)
		}
		if replaceAll {
			return strings.ReplaceAll(before, *search, replace), nil
		}
		return strings.Replace(before, *search, replace, 1), nil
	default:
		return "", fmt.Errorf("either new_content or search/replace is required")
	}
}

// writeWithBackup keeps the previous content in path.bak, then writes
// the new content atomically.
func writeWithBackup(path string, data []byte) error {
	if err := utils.CopyFile(path, path+".bak"); err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}
	return utils.WriteFileAtomic(path, data, 0644)
}
