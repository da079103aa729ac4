// Package session persists conversation transcripts as JSONL files
// under a per-project directory keyed by the project root path.
package session

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ProjectRoot resolves the project root for a directory: the enclosing
// git worktree when there is one, otherwise the directory itself.
func ProjectRoot(dir string) string {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err == nil {
		if root := strings.TrimSpace(string(out)); root != "" {
			return root
		}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	return abs
}

// CurrentProjectRoot resolves the project root for the working
// directory.
func CurrentProjectRoot() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return ProjectRoot(cwd)
}

// SanitizeProjectPath flattens an absolute project path into a single
// directory name: path separators become dashes, drive colons are
// dropped.
func SanitizeProjectPath(root string) string {
	s := strings.ReplaceAll(root, "\\", "/")
	s = strings.ReplaceAll(s, ":", "")
	s = strings.Trim(s, "/")
	s = strings.ReplaceAll(s, "/", "-")
	if s == "" {
		return "root"
	}
	return s
}
