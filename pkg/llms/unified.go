package llms

import (
	"context"
	"log/slog"
	"strings"

	"github.com/songbird-ai/songbird/pkg/config"
	"github.com/songbird-ai/songbird/pkg/protocol"
)

// UnifiedAdapter wraps a vendor backend behind a stable surface: model
// string parsing, tool schema validation, and key preflight warnings
// happen here so the orchestrator never sees vendor differences.
type UnifiedAdapter struct {
	vendor   string
	provider Provider
}

// NewUnifiedAdapter builds the backend for a provider/model pair.
// When model carries a "vendor/" prefix it overrides the provider
// argument.
func NewUnifiedAdapter(providerName, model, baseURL string) (*UnifiedAdapter, error) {
	vendor := providerName
	if idx := strings.Index(model, "/"); idx > 0 {
		if _, ok := factories.Get(model[:idx]); ok {
			vendor, model = model[:idx], model[idx+1:]
		}
	}
	if vendor == "" {
		vendor = "openai"
	}

	provider, err := NewProvider(vendor, baseURL, model)
	if err != nil {
		return nil, err
	}

	if key, needsKey := config.APIKey(vendor); needsKey && key == "" {
		slog.Warn("no API key configured for provider",
			"provider", vendor, "env", strings.Join(config.EnvKeyNames(vendor), " or "))
	}

	return &UnifiedAdapter{vendor: vendor, provider: provider}, nil
}

func (a *UnifiedAdapter) Vendor() string {
	return a.vendor
}

func (a *UnifiedAdapter) ModelName() string {
	return a.provider.ModelName()
}

// SetModel switches the active model in place. Conversation state lives
// above this layer, so a switch takes effect on the next call.
func (a *UnifiedAdapter) SetModel(model string) {
	a.provider.SetModel(model)
}

func (a *UnifiedAdapter) Generate(ctx context.Context, messages []protocol.Message, tools []ToolDefinition) (*ChatResponse, error) {
	return a.provider.Generate(ctx, messages, ValidateToolDefinitions(tools))
}

func (a *UnifiedAdapter) GenerateStreaming(ctx context.Context, messages []protocol.Message, tools []ToolDefinition) (<-chan StreamChunk, error) {
	return a.provider.GenerateStreaming(ctx, messages, ValidateToolDefinitions(tools))
}

func (a *UnifiedAdapter) Cleanup() error {
	return a.provider.Close()
}

// ValidateToolDefinitions drops malformed tool definitions rather than
// letting a provider reject the whole request. Each drop is logged.
func ValidateToolDefinitions(tools []ToolDefinition) []ToolDefinition {
	valid := make([]ToolDefinition, 0, len(tools))
	for _, tool := range tools {
		switch {
		case tool.Name == "":
			slog.Warn("dropping tool definition without a name")
		case tool.Parameters == nil:
			slog.Warn("dropping tool definition without parameters", "tool", tool.Name)
		case tool.Parameters["type"] != "object":
			slog.Warn("dropping tool definition with non-object parameters", "tool", tool.Name)
		default:
			valid = append(valid, tool)
		}
	}
	return valid
}
