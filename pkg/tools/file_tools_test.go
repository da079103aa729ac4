package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)
	return ws
}

func acceptAll(ctx context.Context, path, diff string) (bool, error) { return true, nil }
func rejectAll(ctx context.Context, path, diff string) (bool, error) { return false, nil }

func TestWorkspaceResolveRejectsEscape(t *testing.T) {
	ws := newTestWorkspace(t)

	_, err := ws.Resolve("../outside.txt")
	assert.Error(t, err)

	_, err = ws.Resolve("/etc/passwd")
	assert.Error(t, err)

	abs, err := ws.Resolve("sub/dir/file.txt")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(abs))
}

func TestCreateFile(t *testing.T) {
	ws := newTestWorkspace(t)
	tool := NewCreateFileTool(ws)

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"path":    "src/hello.go",
		"content": "package main\n",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)

	data, err := os.ReadFile(filepath.Join(ws.Root(), "src/hello.go"))
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(data))
}

func TestCreateFileRefusesOverwrite(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(ws.Root(), "a.txt"), []byte("old"), 0644))

	tool := NewCreateFileTool(ws)
	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"path": "a.txt", "content": "new",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "already exists")
}

func TestReadFile(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(ws.Root(), "f.txt"), []byte("l1\nl2\nl3\nl4\n"), 0644))

	tool := NewReadFileTool(ws)
	result, err := tool.Execute(context.Background(), map[string]interface{}{"path": "f.txt"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Content, "l3")

	result, err = tool.Execute(context.Background(), map[string]interface{}{
		"path": "f.txt", "start_line": 2, "end_line": 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "l2\nl3", result.Content)
}

func TestReadFileRejectsBinary(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(ws.Root(), "bin"), []byte{0x00, 0x01, 0x02}, 0644))

	tool := NewReadFileTool(ws)
	result, err := tool.Execute(context.Background(), map[string]interface{}{"path": "bin"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "binary")
}

func TestEditSearchReplace(t *testing.T) {
	ws := newTestWorkspace(t)
	path := filepath.Join(ws.Root(), "f.go")
	require.NoError(t, os.WriteFile(path, []byte("func old() {}\n"), 0644))

	tool := NewEditTool(ws, acceptAll)
	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"path": "f.go", "search": "old", "replace": "renamed",
	})
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "func renamed() {}\n", string(data))

	// previous content preserved as backup
	bak, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	assert.Equal(t, "func old() {}\n", string(bak))
}

func TestEditDeclinedLeavesFileUntouched(t *testing.T) {
	ws := newTestWorkspace(t)
	path := filepath.Join(ws.Root(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0644))

	tool := NewEditTool(ws, rejectAll)
	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"path": "f.txt", "new_content": "changed",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, CancelledMessage, result.Error)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestEditAmbiguousSearch(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(ws.Root(), "f.txt"), []byte("x x"), 0644))

	tool := NewEditTool(ws, acceptAll)
	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"path": "f.txt", "search": "x", "replace": "y",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "occurs 2 times")

	result, err = tool.Execute(context.Background(), map[string]interface{}{
		"path": "f.txt", "search": "x", "replace": "y", "replace_all": true,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestMultiEditAtomic(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(ws.Root(), "a.txt"), []byte("alpha"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(ws.Root(), "b.txt"), []byte("beta"), 0644))

	tool := NewMultiEditTool(ws, acceptAll)
	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"edits": []interface{}{
			map[string]interface{}{"path": "a.txt", "search": "alpha", "replace": "ALPHA"},
			map[string]interface{}{"path": "b.txt", "search": "beta", "replace": "BETA"},
		},
	})
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)

	a, _ := os.ReadFile(filepath.Join(ws.Root(), "a.txt"))
	b, _ := os.ReadFile(filepath.Join(ws.Root(), "b.txt"))
	assert.Equal(t, "ALPHA", string(a))
	assert.Equal(t, "BETA", string(b))
}

func TestMultiEditCreatesMissingFile(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(ws.Root(), "a.txt"), []byte("alpha"), 0644))

	tool := NewMultiEditTool(ws, acceptAll)
	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"edits": []interface{}{
			map[string]interface{}{"path": "a.txt", "search": "alpha", "replace": "ALPHA"},
			map[string]interface{}{"path": "sub/new.txt", "new_content": "fresh\n"},
		},
	})
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)

	created, err := os.ReadFile(filepath.Join(ws.Root(), "sub", "new.txt"))
	require.NoError(t, err)
	assert.Equal(t, "fresh\n", string(created))
}

func TestMultiEditBadOpAbortsBeforeWriting(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(ws.Root(), "a.txt"), []byte("alpha"), 0644))

	tool := NewMultiEditTool(ws, acceptAll)
	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"edits": []interface{}{
			map[string]interface{}{"path": "a.txt", "search": "alpha", "replace": "ALPHA"},
			map[string]interface{}{"path": "missing.txt", "search": "x", "replace": "y"},
		},
	})
	require.NoError(t, err)
	assert.False(t, result.Success)

	a, _ := os.ReadFile(filepath.Join(ws.Root(), "a.txt"))
	assert.Equal(t, "alpha", string(a))
}

func TestMultiEditDeclined(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(ws.Root(), "a.txt"), []byte("alpha"), 0644))

	tool := NewMultiEditTool(ws, rejectAll)
	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"edits": []interface{}{
			map[string]interface{}{"path": "a.txt", "new_content": "changed"},
		},
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, CancelledMessage, result.Error)

	a, _ := os.ReadFile(filepath.Join(ws.Root(), "a.txt"))
	assert.Equal(t, "alpha", string(a))
}

func TestUnifiedDiffStats(t *testing.T) {
	diff := unifiedDiff("f.txt", "a\nb\nc\n", "a\nB\nc\nd\n")
	assert.Contains(t, diff, "-b")
	assert.Contains(t, diff, "+B")

	added, removed := diffStats(diff)
	assert.Equal(t, 2, added)
	assert.Equal(t, 1, removed)
}
