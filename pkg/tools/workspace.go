package tools

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Workspace confines file tools to a root directory. Every path a tool
// touches resolves through here; escapes via ".." or absolute paths
// outside the root are rejected.
type Workspace struct {
	root string
}

func NewWorkspace(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid workspace root: %w", err)
	}
	return &Workspace{root: abs}, nil
}

func (w *Workspace) Root() string {
	return w.root
}

// Resolve turns a tool-supplied path into an absolute path inside the
// workspace, or fails if it would land outside.
func (w *Workspace) Resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}

	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(w.root, abs)
	}
	abs = filepath.Clean(abs)

	rel, err := filepath.Rel(w.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside the project root", path)
	}
	return abs, nil
}

// Rel renders an absolute path relative to the workspace root for
// display.
func (w *Workspace) Rel(abs string) string {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		return abs
	}
	return rel
}
