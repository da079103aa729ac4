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

// MultiEditTool applies an ordered batch of creates and edits across
// files behind a single confirmation. In atomic mode (the default)
// either every operation lands or none do: originals are restored and
// created files removed, in reverse order, when a write fails partway.
type MultiEditTool struct {
	workspace *Workspace
	confirm   ConfirmFunc
}

func NewMultiEditTool(workspace *Workspace, confirm ConfirmFunc) *MultiEditTool {
	return &MultiEditTool{workspace: workspace, confirm: confirm}
}

func (t *MultiEditTool) GetName() string { return "multi_edit" }

func (t *MultiEditTool) GetDescription() string {
	return "Apply several file edits as one atomic change with a single combined diff and confirmation"
}

func (t *MultiEditTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{
				Name:        "edits",
				Type:        "array",
				Description: "Ordered create/edit operations, each with path and either search/replace or new_content",
				Required:    true,
				Items: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"path":        map[string]interface{}{"type": "string"},
						"search":      map[string]interface{}{"type": "string"},
						"replace":     map[string]interface{}{"type": "string"},
						"new_content": map[string]interface{}{"type": "string"},
						"replace_all": map[string]interface{}{"type": "boolean"},
					},
					"required": []string{"path"},
				},
			},
			{Name: "atomic", Type: "boolean", Description: "Roll back earlier operations when a later one fails", Default: true},
		},
	}
}

type multiEditOp struct {
	Path       string  `json:"path"`
	Search     *string `json:"search"`
	Replace    string  `json:"replace"`
	NewContent *string `json:"new_content"`
	ReplaceAll bool    `json:"replace_all"`
}

func (t *MultiEditTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	var params struct {
		Edits  []multiEditOp `json:"edits"`
		Atomic *bool         `json:"atomic"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return errorResult(t.GetName(), err.Error()), nil
	}
	if len(params.Edits) == 0 {
		return errorResult(t.GetName(), "edits parameter is required"), nil
	}
	atomic := params.Atomic == nil || *params.Atomic

	// Stage every operation in memory first so a bad one aborts before
	// anything is written. Later operations observe earlier ones. A
	// new_content op on a missing file is a create.
	type staged struct {
		path    string
		rel     string
		before  string
		after   string
		created bool
	}
	contents := make(map[string]string)
	created := make(map[string]bool)
	order := make([]string, 0, len(params.Edits))

	for i, op := range params.Edits {
		if op.Path == "" {
			return errorResult(t.GetName(), fmt.Sprintf("edit %d: path is required", i+1)), nil
		}
		path, err := t.workspace.Resolve(op.Path)
		if err != nil {
			return errorResult(t.GetName(), fmt.Sprintf("edit %d: %v", i+1, err)), nil
		}

		current, seen := contents[path]
		if !seen {
			data, err := os.ReadFile(path)
			switch {
			case err == nil:
				if utils.LooksBinary(data) {
					return errorResult(t.GetName(),
						fmt.Sprintf("edit %d: %s appears to be a binary file", i+1, op.Path)), nil
				}
				current = string(data)
			case os.IsNotExist(err) && op.NewContent != nil:
				created[path] = true
			default:
				return errorResult(t.GetName(),
					fmt.Sprintf("edit %d: cannot edit %s: %v", i+1, op.Path, err)), nil
			}
			order = append(order, path)
		}

		after, err := applyEdit(current, op.Search, op.NewContent, op.Replace, op.ReplaceAll)
		if err != nil {
			return errorResult(t.GetName(), fmt.Sprintf("edit %d (%s): %v", i+1, op.Path, err)), nil
		}
		contents[path] = after
	}

	var stagedEdits []staged
	var combined strings.Builder
	for _, path := range order {
		before := ""
		if !created[path] {
			data, err := os.ReadFile(path)
			if err != nil {
				return errorResult(t.GetName(), fmt.Sprintf("cannot read %s: %v", path, err)), nil
			}
			before = string(data)
		}
		after := contents[path]
		if before == after {
			continue
		}
		rel := t.workspace.Rel(path)
		stagedEdits = append(stagedEdits, staged{
			path: path, rel: rel, before: before, after: after, created: created[path],
		})
		combined.WriteString(unifiedDiff(rel, before, after))
	}

	if len(stagedEdits) == 0 {
		return successResult(t.GetName(), "No changes needed", 0, nil), nil
	}

	start := time.Now()
	accepted, err := t.confirm(ctx, fmt.Sprintf("%d files", len(stagedEdits)), combined.String())
	if err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("confirmation failed: %v", err)), nil
	}
	if !accepted {
		return ToolResult{
			Success:  false,
			Content:  CancelledMessage,
			Error:    CancelledMessage,
			ToolName: t.GetName(),
			Metadata: map[string]interface{}{"cancelled": true},
		}, nil
	}

	written := make([]staged, 0, len(stagedEdits))
	var failures []string
	for _, e := range stagedEdits {
		err := t.writeOne(e.path, []byte(e.after), e.created)
		if err == nil {
			written = append(written, e)
			continue
		}
		if !atomic {
			failures = append(failures, fmt.Sprintf("%s: %v", e.rel, err))
			continue
		}
		// Roll back in reverse so the workspace returns to its
		// pre-batch state.
		for j := len(written) - 1; j >= 0; j-- {
			var rbErr error
			if written[j].created {
				rbErr = os.Remove(written[j].path)
			} else {
				rbErr = utils.WriteFileAtomic(written[j].path, []byte(written[j].before), 0644)
			}
			if rbErr != nil {
				return errorResult(t.GetName(),
					fmt.Sprintf("failed to write %s (%v) and rollback of %s also failed: %v",
						e.rel, err, written[j].rel, rbErr)), nil
			}
		}
		return errorResult(t.GetName(),
			fmt.Sprintf("failed to write %s: %v; all changes rolled back", e.rel, err)), nil
	}

	if len(failures) > 0 {
		return errorResult(t.GetName(),
			fmt.Sprintf("%d of %d operations failed: %s",
				len(failures), len(stagedEdits), strings.Join(failures, "; "))), nil
	}

	files := make([]string, len(written))
	for i, e := range written {
		files[i] = e.rel
	}
	added, removed := diffStats(combined.String())
	return successResult(t.GetName(),
		fmt.Sprintf("Edited %d files (+%d -%d): %s", len(written), added, removed, strings.Join(files, ", ")),
		time.Since(start),
		map[string]interface{}{
			"files":         files,
			"lines_added":   added,
			"lines_removed": removed,
			"changes_made":  combined.String(),
		}), nil
}

// writeOne lands a staged operation: creates get parent directories and
// no backup, edits keep a .bak of the previous content.
func (t *MultiEditTool) writeOne(path string, data []byte, isCreate bool) error {
	if isCreate {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		return utils.WriteFileAtomic(path, data, 0644)
	}
	return writeWithBackup(path, data)
}
