package tools

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/songbird-ai/songbird/pkg/utils"
)

const (
	defaultMaxResults = 50
	maxSearchResults  = 200
	maxSearchDepth    = 12
)

// skipDirs are never descended into during walks.
var skipDirs = map[string]bool{
	".git": true, "node_modules": true, ".venv": true, "venv": true,
	"__pycache__": true, ".idea": true, ".vscode": true, "dist": true,
	"build": true, "target": true,
}

// knownExtensions marks patterns like "main.go" as exact filename
// lookups rather than content searches.
var knownExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".tsx": true,
	".jsx": true, ".rs": true, ".c": true, ".h": true, ".cpp": true,
	".java": true, ".rb": true, ".sh": true, ".md": true, ".txt": true,
	".json": true, ".yaml": true, ".yml": true, ".toml": true,
	".html": true, ".css": true, ".sql": true, ".proto": true,
	".mod": true, ".sum": true,
}

// SearchTool finds files and text. The mode is inferred from the
// pattern: glob metacharacters match file names, a bare name with a
// known extension is an exact filename lookup, anything else searches
// file contents. Content search shells out to ripgrep when available
// and falls back to a walk.
type SearchTool struct {
	workspace *Workspace

	// rgPath caches the ripgrep lookup; empty means not found.
	rgPath     string
	rgResolved bool
}

func NewSearchTool(workspace *Workspace) *SearchTool {
	return &SearchTool{workspace: workspace}
}

func (t *SearchTool) GetName() string { return "file_search" }

func (t *SearchTool) GetDescription() string {
	return "Search the project for file names matching a glob or file contents matching text"
}

func (t *SearchTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{Name: "pattern", Type: "string", Description: "Glob (e.g. *.go), exact file name, or text to find", Required: true},
			{Name: "directory", Type: "string", Description: "Directory to search, relative to the project root", Default: "."},
			{Name: "file_type", Type: "string", Description: "Restrict content matches to files with this extension (e.g. go)"},
			{Name: "mode", Type: "string", Description: "Force a mode instead of inferring one", Enum: []string{"name", "text"}},
			{Name: "case_sensitive", Type: "boolean", Description: "Match text case-sensitively", Default: false},
			{Name: "max_results", Type: "integer", Description: "Maximum number of matches to return", Default: defaultMaxResults},
		},
	}
}

type searchParams struct {
	Pattern       string `json:"pattern"`
	Directory     string `json:"directory"`
	FileType      string `json:"file_type"`
	Mode          string `json:"mode"`
	CaseSensitive bool   `json:"case_sensitive"`
	MaxResults    int    `json:"max_results"`
}

func (t *SearchTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	var params searchParams
	if err := decodeArgs(args, &params); err != nil {
		return errorResult(t.GetName(), err.Error()), nil
	}
	if params.Pattern == "" {
		// older transcripts used "query"
		if q, ok := args["query"].(string); ok {
			params.Pattern = q
		}
	}
	if params.Pattern == "" {
		return errorResult(t.GetName(), "pattern parameter is required"), nil
	}
	if params.MaxResults <= 0 || params.MaxResults > maxSearchResults {
		params.MaxResults = defaultMaxResults
	}

	root := t.workspace.Root()
	if params.Directory != "" && params.Directory != "." {
		resolved, err := t.workspace.Resolve(params.Directory)
		if err != nil {
			return errorResult(t.GetName(), err.Error()), nil
		}
		root = resolved
	}

	mode := params.Mode
	if mode == "" {
		mode = detectMode(params.Pattern)
	}

	start := time.Now()
	var lines []string
	var err error
	switch mode {
	case "name":
		lines, err = t.searchNames(ctx, root, params.Pattern)
	case "text":
		lines, err = t.searchText(ctx, root, params)
	default:
		return errorResult(t.GetName(), fmt.Sprintf("unknown mode %q", mode)), nil
	}
	if err != nil {
		return errorResult(t.GetName(), err.Error()), nil
	}

	truncated := false
	if len(lines) > params.MaxResults {
		lines = lines[:params.MaxResults]
		truncated = true
	}

	content := strings.Join(lines, "\n")
	if len(lines) == 0 {
		content = fmt.Sprintf("No matches for %q", params.Pattern)
	}
	return successResult(t.GetName(), content, time.Since(start), map[string]interface{}{
		"pattern":   params.Pattern,
		"mode":      mode,
		"matches":   len(lines),
		"truncated": truncated,
	}), nil
}

// detectMode picks name matching for globs and bare file names with a
// known extension, content search otherwise.
func detectMode(pattern string) string {
	if strings.ContainsAny(pattern, "*?[") {
		return "name"
	}
	if !strings.ContainsAny(pattern, " \t") && knownExtensions[strings.ToLower(filepath.Ext(pattern))] {
		return "name"
	}
	return "text"
}

func (t *SearchTool) searchNames(ctx context.Context, root, pattern string) ([]string, error) {
	var matches []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if skipDirs[d.Name()] || tooDeep(root, path) {
				return filepath.SkipDir
			}
			return nil
		}
		ok, _ := filepath.Match(pattern, d.Name())
		if !ok && strings.Contains(pattern, "/") {
			ok, _ = filepath.Match(pattern, t.workspace.Rel(path))
		}
		if ok {
			matches = append(matches, t.workspace.Rel(path))
		}
		if len(matches) > maxSearchResults {
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil && err != filepath.SkipAll {
		return nil, err
	}
	return matches, nil
}

func (t *SearchTool) searchText(ctx context.Context, root string, params searchParams) ([]string, error) {
	if rg := t.ripgrep(); rg != "" {
		lines, err := t.searchWithRipgrep(ctx, rg, root, params)
		if err == nil {
			return lines, nil
		}
		// rg exit code 1 means no matches; anything else falls through
		// to the walk.
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return nil, nil
		}
	}
	return t.searchWithWalk(ctx, root, params)
}

func (t *SearchTool) ripgrep() string {
	if !t.rgResolved {
		t.rgPath, _ = exec.LookPath("rg")
		t.rgResolved = true
	}
	return t.rgPath
}

func (t *SearchTool) searchWithRipgrep(ctx context.Context, rg, root string, params searchParams) ([]string, error) {
	args := []string{"--line-number", "--no-heading", "--fixed-strings", "--max-count", "50"}
	if !params.CaseSensitive {
		args = append(args, "--ignore-case")
	}
	if params.FileType != "" {
		args = append(args, "--glob", "*."+strings.TrimPrefix(params.FileType, "."))
	}
	args = append(args, "--", params.Pattern, ".")

	cmd := exec.CommandContext(ctx, rg, args...)
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, nil
}

func (t *SearchTool) searchWithWalk(ctx context.Context, root string, params searchParams) ([]string, error) {
	needle := params.Pattern
	if !params.CaseSensitive {
		needle = strings.ToLower(needle)
	}
	ext := ""
	if params.FileType != "" {
		ext = "." + strings.TrimPrefix(params.FileType, ".")
	}

	var matches []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if skipDirs[d.Name()] || tooDeep(root, path) {
				return filepath.SkipDir
			}
			return nil
		}
		if ext != "" && !strings.EqualFold(filepath.Ext(path), ext) {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > maxReadSize {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil || utils.LooksBinary(data) {
			return nil
		}

		rel := t.workspace.Rel(path)
		for i, line := range strings.Split(string(data), "\n") {
			haystack := line
			if !params.CaseSensitive {
				haystack = strings.ToLower(line)
			}
			if strings.Contains(haystack, needle) {
				matches = append(matches, fmt.Sprintf("%s:%d:%s", rel, i+1, strings.TrimSpace(line)))
				if len(matches) > maxSearchResults {
					return filepath.SkipAll
				}
			}
		}
		return nil
	})
	if err != nil && err != filepath.SkipAll {
		return nil, err
	}
	return matches, nil
}

func tooDeep(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return strings.Count(rel, string(filepath.Separator)) > maxSearchDepth
}
