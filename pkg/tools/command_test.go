package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellExecSuccess(t *testing.T) {
	ws := newTestWorkspace(t)
	tool := NewShellTool(ws)

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"command": "echo hello",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Content, "hello")
	assert.Equal(t, 0, result.Metadata["exit_code"])
}

func TestShellExecNonZeroExit(t *testing.T) {
	ws := newTestWorkspace(t)
	tool := NewShellTool(ws)

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"command": "exit 3",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 3, result.Metadata["exit_code"])
}

func TestShellExecRefusesDangerousCommands(t *testing.T) {
	ws := newTestWorkspace(t)
	tool := NewShellTool(ws)

	for _, cmd := range []string{
		"rm -rf / --no-preserve-root",
		"sudo rm important",
		"dd if=/dev/zero of=/dev/sda",
		"echo hi > /dev/sda",
	} {
		result, err := tool.Execute(context.Background(), map[string]interface{}{"command": cmd})
		require.NoError(t, err)
		assert.False(t, result.Success, cmd)
		assert.Contains(t, result.Error, "refused", cmd)
	}
}

func TestShellExecTimeout(t *testing.T) {
	ws := newTestWorkspace(t)
	tool := NewShellTool(ws)

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"command": "sleep 5",
		"timeout": 1,
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "timed out")
}

func TestShellExecTruncatesOutput(t *testing.T) {
	ws := newTestWorkspace(t)
	tool := NewShellTool(ws)

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"command": "yes x | head -c 10000",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, true, result.Metadata["truncated"])
	assert.LessOrEqual(t, len(result.Metadata["stdout"].(string)), shellOutputCap+64)
}

func TestShellExecMaxOutputSize(t *testing.T) {
	ws := newTestWorkspace(t)
	tool := NewShellTool(ws)

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"command":         "yes x | head -c 1000",
		"max_output_size": 100,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, true, result.Metadata["truncated"])
	assert.LessOrEqual(t, len(result.Metadata["stdout"].(string)), 100+64)
}

func TestRefused(t *testing.T) {
	_, refused := Refused("ls -la")
	assert.False(t, refused)

	pattern, refused := Refused("mkfs.ext4 /dev/sdb1")
	assert.True(t, refused)
	assert.Equal(t, "mkfs", pattern)
}
