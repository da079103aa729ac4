// Package protocol defines the canonical conversation types exchanged
// between the orchestrator, providers, and the session store. Provider
// backends normalize their wire formats into these types exactly once;
// everything above the provider layer speaks only protocol.
package protocol

import (
	"fmt"
	"time"
)

// Message roles. RoleTool messages must reference the tool call they
// answer via ToolCallID.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a provider-issued request to run a named tool. IDs are
// unique within a single assistant message; backends that do not issue
// IDs (Gemini) get synthetic ones during normalization.
type ToolCall struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`

	// RawArgs preserves the provider's argument text when it did not
	// parse as JSON, so the repair pass can retry it.
	RawArgs string `json:"raw_args,omitempty"`
}

// Message is one entry in a conversation transcript.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Timestamp  time.Time  `json:"timestamp,omitempty"`
}

// NewUserMessage returns a user message stamped with the current time.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: time.Now().UTC()}
}

// NewAssistantMessage returns an assistant message, optionally carrying
// tool calls.
func NewAssistantMessage(content string, toolCalls []ToolCall) Message {
	return Message{
		Role:      RoleAssistant,
		Content:   content,
		ToolCalls: toolCalls,
		Timestamp: time.Now().UTC(),
	}
}

// NewToolMessage returns a tool result message bound to a tool call ID.
// Content is expected to be the JSON-serialized tool result.
func NewToolMessage(toolCallID, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: toolCallID,
		Timestamp:  time.Now().UTC(),
	}
}

// NewSystemMessage returns a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content, Timestamp: time.Now().UTC()}
}

// Validate checks structural invariants on a transcript: tool messages
// must answer a tool call issued by a preceding assistant message, and
// every assistant tool call must be answered before the next assistant
// message appears.
func Validate(messages []Message) error {
	pending := make(map[string]bool)

	for i, m := range messages {
		switch m.Role {
		case RoleAssistant:
			if len(pending) > 0 {
				return fmt.Errorf("message %d: assistant message while %d tool calls unanswered", i, len(pending))
			}
			for _, tc := range m.ToolCalls {
				pending[tc.ID] = true
			}
		case RoleTool:
			if m.ToolCallID == "" {
				return fmt.Errorf("message %d: tool message without tool_call_id", i)
			}
			if !pending[m.ToolCallID] {
				return fmt.Errorf("message %d: tool message answers unknown call %q", i, m.ToolCallID)
			}
			delete(pending, m.ToolCallID)
		case RoleSystem, RoleUser:
			// no structural constraints
		default:
			return fmt.Errorf("message %d: unknown role %q", i, m.Role)
		}
	}

	if len(pending) > 0 {
		return fmt.Errorf("transcript ends with %d unanswered tool calls", len(pending))
	}
	return nil
}
