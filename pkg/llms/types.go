// Package llms implements the provider abstraction: hand-rolled HTTP
// backends for the OpenAI-compatible, Anthropic, and Gemini wire
// formats, unified behind a single adapter that normalizes responses
// into protocol types.
package llms

import (
	"context"

	"github.com/songbird-ai/songbird/pkg/protocol"
)

// ToolDefinition describes a callable tool in the JSON schema form all
// providers consume.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Usage reports token consumption for one provider call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is a normalized provider reply.
type ChatResponse struct {
	Content   string
	Model     string
	ToolCalls []protocol.ToolCall
	Usage     Usage
}

// StreamChunk is one unit of a streaming response.
type StreamChunk struct {
	Type     string // "text", "tool_call", "done", "error"
	Text     string
	ToolCall *protocol.ToolCall
	Usage    *Usage
	Error    error
}

// Provider is a single-vendor chat backend. Implementations normalize
// their wire format into protocol types exactly once, at the response
// boundary.
type Provider interface {
	Generate(ctx context.Context, messages []protocol.Message, tools []ToolDefinition) (*ChatResponse, error)
	GenerateStreaming(ctx context.Context, messages []protocol.Message, tools []ToolDefinition) (<-chan StreamChunk, error)
	ModelName() string
	SetModel(model string)
	Close() error
}
