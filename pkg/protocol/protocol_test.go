package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateWellFormed(t *testing.T) {
	msgs := []Message{
		NewSystemMessage("you are helpful"),
		NewUserMessage("create a file"),
		NewAssistantMessage("", []ToolCall{{ID: "c1", Name: "file_create"}}),
		NewToolMessage("c1", `{"success":true}`),
		NewAssistantMessage("done", nil),
	}
	require.NoError(t, Validate(msgs))
}

func TestValidateUnansweredToolCall(t *testing.T) {
	msgs := []Message{
		NewUserMessage("hi"),
		NewAssistantMessage("", []ToolCall{{ID: "c1", Name: "shell_exec"}}),
		NewAssistantMessage("skipped the result", nil),
	}
	assert.Error(t, Validate(msgs))
}

func TestValidateOrphanToolMessage(t *testing.T) {
	msgs := []Message{
		NewUserMessage("hi"),
		NewToolMessage("ghost", "{}"),
	}
	assert.Error(t, Validate(msgs))
}

func TestValidateToolMessageWithoutID(t *testing.T) {
	msgs := []Message{
		NewAssistantMessage("", []ToolCall{{ID: "c1", Name: "file_read"}}),
		{Role: RoleTool, Content: "{}"},
	}
	assert.Error(t, Validate(msgs))
}

func TestValidateTrailingUnanswered(t *testing.T) {
	msgs := []Message{
		NewAssistantMessage("", []ToolCall{{ID: "c1", Name: "file_read"}}),
	}
	assert.Error(t, Validate(msgs))
}
