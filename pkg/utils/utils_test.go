package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCounterKnownModel(t *testing.T) {
	tc, err := NewTokenCounter("gpt-4o")
	require.NoError(t, err)

	assert.Equal(t, 0, tc.CountText(""))
	assert.Greater(t, tc.CountText("hello world"), 0)
	assert.Greater(t, tc.CountMessage("user", "hello"), tc.CountText("hello"))
}

func TestTokenCounterUnknownModelFallsBack(t *testing.T) {
	tc, err := NewTokenCounter("some-unknown-model-xyz")
	require.NoError(t, err)
	assert.Greater(t, tc.CountText("fallback encoding still counts"), 0)
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	require.NoError(t, WriteFileAtomic(path, []byte("first"), 0644))
	require.NoError(t, WriteFileAtomic(path, []byte("second"), 0644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestLooksBinary(t *testing.T) {
	assert.False(t, LooksBinary([]byte("plain text\nwith lines\n")))
	assert.True(t, LooksBinary([]byte{0x89, 'P', 'N', 'G', 0x00, 0x1a}))
	assert.True(t, LooksBinary([]byte{0xff, 0xfe, 0xfd}))
}

func TestRepairJSONStrict(t *testing.T) {
	out, err := RepairJSON(`{"path": "a.txt", "n": 3}`)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", out["path"])
	assert.Equal(t, float64(3), out["n"])
}

func TestRepairJSONEmpty(t *testing.T) {
	out, err := RepairJSON("   ")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRepairJSONFenced(t *testing.T) {
	out, err := RepairJSON("```json\n{\"cmd\": \"ls\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "ls", out["cmd"])
}

func TestRepairJSONSingleQuotesAndBareKeys(t *testing.T) {
	out, err := RepairJSON(`{path: 'b.txt', content: 'hi',}`)
	require.NoError(t, err)
	assert.Equal(t, "b.txt", out["path"])
	assert.Equal(t, "hi", out["content"])
}

func TestRepairJSONUnsalvageable(t *testing.T) {
	_, err := RepairJSON("not even close to json")
	assert.Error(t, err)
}
