// Package tools implements the built-in tool suite: file reads and
// writes, sandboxed shell execution, search, and the todo list. Tools
// never call the terminal directly; destructive ones go through an
// injected confirmation gate.
package tools

import (
	"context"
	"time"
)

// ToolInfo describes a tool to the provider layer.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters,omitempty"`
}

// ToolParameter is one named argument in a tool's schema.
type ToolParameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
	Enum        []string    `json:"enum,omitempty"`

	// Items describes array element schemas.
	Items map[string]interface{} `json:"items,omitempty"`
}

// ToolResult is the outcome of one tool execution. Content is what the
// model sees; Output carries structured data for the UI.
type ToolResult struct {
	Success       bool                   `json:"success"`
	Content       string                 `json:"content,omitempty"`
	Output        interface{}            `json:"output,omitempty"`
	Error         string                 `json:"error,omitempty"`
	ToolName      string                 `json:"tool_name"`
	ExecutionTime time.Duration          `json:"execution_time,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// Tool is a callable capability exposed to the model.
type Tool interface {
	GetInfo() ToolInfo

	Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error)

	GetName() string

	GetDescription() string
}

// ConfirmFunc decides whether a proposed change may be applied. The
// diff is a unified diff of the pending change. Implementations block
// until the user answers; auto-apply mode answers true immediately.
type ConfirmFunc func(ctx context.Context, path, diff string) (bool, error)
