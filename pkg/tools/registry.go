package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/songbird-ai/songbird/pkg/registry"
)

// Registry holds the active tool set.
type Registry struct {
	tools *registry.Registry[Tool]
}

func NewRegistry() *Registry {
	return &Registry{tools: registry.New[Tool]()}
}

func (r *Registry) Register(tool Tool) error {
	return r.tools.Register(tool.GetName(), tool)
}

func (r *Registry) Get(name string) (Tool, bool) {
	return r.tools.Get(name)
}

// List returns tool descriptions sorted by name.
func (r *Registry) List() []ToolInfo {
	names := r.tools.Names()
	infos := make([]ToolInfo, 0, len(names))
	for _, name := range names {
		if tool, ok := r.tools.Get(name); ok {
			infos = append(infos, tool.GetInfo())
		}
	}
	return infos
}

// ExecuteTool runs a named tool. An unknown tool name is reported as a
// failed result rather than an error, so the model can recover.
func (r *Registry) ExecuteTool(ctx context.Context, name string, args map[string]interface{}) ToolResult {
	tool, ok := r.tools.Get(name)
	if !ok {
		return errorResult(name, fmt.Sprintf("unknown tool: %s", name))
	}

	start := time.Now()
	result, err := tool.Execute(ctx, args)
	if result.ExecutionTime == 0 {
		result.ExecutionTime = time.Since(start)
	}
	if result.ToolName == "" {
		result.ToolName = name
	}
	if err != nil && result.Error == "" {
		result.Success = false
		result.Error = err.Error()
	}

	slog.Debug("tool executed",
		"tool", name, "success", result.Success, "duration", result.ExecutionTime)
	return result
}
