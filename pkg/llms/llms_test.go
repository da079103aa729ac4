package llms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songbird-ai/songbird/pkg/protocol"
)

func TestParseModelString(t *testing.T) {
	tests := []struct {
		in     string
		vendor string
		model  string
	}{
		{"gpt-4o", "openai", "gpt-4o"},
		{"openai/gpt-4o", "openai", "gpt-4o"},
		{"anthropic/claude-sonnet-4-20250514", "anthropic", "claude-sonnet-4-20250514"},
		{"ollama/qwen2.5-coder:7b", "ollama", "qwen2.5-coder:7b"},
		{"openrouter/anthropic/claude-sonnet-4", "openrouter", "anthropic/claude-sonnet-4"},
		{"mistralai/mixtral-8x7b", "openai", "mistralai/mixtral-8x7b"},
	}
	for _, tt := range tests {
		vendor, model := ParseModelString(tt.in)
		assert.Equal(t, tt.vendor, vendor, tt.in)
		assert.Equal(t, tt.model, model, tt.in)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status  int
		message string
		kind    ErrorKind
	}{
		{401, "invalid api key", ErrorAuth},
		{0, "Incorrect API key provided", ErrorAuth},
		{0, "authentication failed", ErrorAuth},
		{429, "slow down", ErrorRateLimit},
		{0, "You exceeded your current quota", ErrorRateLimit},
		{404, "no such model", ErrorModel},
		{0, "model not found", ErrorModel},
		{0, "this model is not supported", ErrorModel},
		{503, "overloaded", ErrorConnection},
		{0, "connection refused", ErrorConnection},
		{500, "internal error", ErrorGeneric},
	}
	for _, tt := range tests {
		err := Classify("openai", tt.status, tt.message, nil)
		assert.Equal(t, tt.kind, err.Kind, tt.message)
	}
}

func TestClassifyHints(t *testing.T) {
	authErr := Classify("anthropic", 401, "unauthorized", nil)
	assert.Contains(t, authErr.Hint(), "ANTHROPIC_API_KEY")

	connErr := Classify("ollama", 0, "connection refused", nil)
	assert.Contains(t, connErr.Hint(), "ollama serve")
}

func TestValidateToolDefinitions(t *testing.T) {
	objSchema := map[string]interface{}{"type": "object"}
	tools := []ToolDefinition{
		{Name: "good", Description: "ok", Parameters: objSchema},
		{Name: "", Parameters: objSchema},
		{Name: "no_params"},
		{Name: "bad_type", Parameters: map[string]interface{}{"type": "string"}},
	}

	valid := ValidateToolDefinitions(tools)
	require.Len(t, valid, 1)
	assert.Equal(t, "good", valid[0].Name)
}

func TestOpenAIGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req.Model)
		assert.Equal(t, "auto", req.ToolChoice)
		require.Len(t, req.Tools, 1)

		resp := openAIResponse{
			Model: "gpt-4o",
			Choices: []openAIChoice{{
				Message: openAIMessage{
					Role: "assistant",
					ToolCalls: []openAIToolCall{{
						ID:   "call_1",
						Type: "function",
						Function: openAIFunctionCall{
							Name:      "file_read",
							Arguments: `{"path": "main.go"}`,
						},
					}},
				},
				FinishReason: "tool_calls",
			}},
			Usage: Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := NewOpenAIProvider("openai", server.URL, "test-key", "gpt-4o")
	defer p.Close()

	tools := []ToolDefinition{{
		Name:       "file_read",
		Parameters: map[string]interface{}{"type": "object"},
	}}
	resp, err := p.Generate(context.Background(), []protocol.Message{
		protocol.NewUserMessage("read main.go"),
	}, tools)
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.Equal(t, "file_read", resp.ToolCalls[0].Name)
	assert.Equal(t, "main.go", resp.ToolCalls[0].Args["path"])
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestOpenAIGenerateRepairsMalformedArguments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openAIResponse{
			Choices: []openAIChoice{{
				Message: openAIMessage{
					Role: "assistant",
					ToolCalls: []openAIToolCall{{
						ID:   "call_1",
						Type: "function",
						Function: openAIFunctionCall{
							Name:      "shell_exec",
							Arguments: `{command: 'ls -la',}`,
						},
					}},
				},
			}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := NewOpenAIProvider("openai", server.URL, "k", "gpt-4o")
	defer p.Close()

	resp, err := p.Generate(context.Background(), []protocol.Message{protocol.NewUserMessage("ls")}, nil)
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "ls -la", resp.ToolCalls[0].Args["command"])
	assert.Empty(t, resp.ToolCalls[0].RawArgs)
}

func TestOpenAIGenerateAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error"}}`)
	}))
	defer server.Close()

	p := NewOpenAIProvider("openai", server.URL, "bad-key", "gpt-4o")
	defer p.Close()

	_, err := p.Generate(context.Background(), []protocol.Message{protocol.NewUserMessage("hi")}, nil)
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrorAuth, perr.Kind)
	assert.Equal(t, http.StatusUnauthorized, perr.StatusCode)
}

func TestOpenAIStreamingAccumulatesToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"choices":[{"delta":{"content":"On it. "}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"id":"call_9","type":"function","function":{"name":"file_create","arguments":"{\"path\":"}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"function":{"arguments":"\"a.txt\"}"}}]}}]}`,
			`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		}
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	p := NewOpenAIProvider("openai", server.URL, "k", "gpt-4o")
	defer p.Close()

	ch, err := p.GenerateStreaming(context.Background(), []protocol.Message{protocol.NewUserMessage("make a.txt")}, nil)
	require.NoError(t, err)

	var text string
	var calls []protocol.ToolCall
	sawDone := false
	for chunk := range ch {
		switch chunk.Type {
		case "text":
			text += chunk.Text
		case "tool_call":
			calls = append(calls, *chunk.ToolCall)
		case "done":
			sawDone = true
		case "error":
			t.Fatalf("unexpected stream error: %v", chunk.Error)
		}
	}

	assert.Equal(t, "On it. ", text)
	assert.True(t, sawDone)
	require.Len(t, calls, 1)
	assert.Equal(t, "call_9", calls[0].ID)
	assert.Equal(t, "file_create", calls[0].Name)
	assert.Equal(t, "a.txt", calls[0].Args["path"])
}

func TestAnthropicBuildRequest(t *testing.T) {
	p := NewAnthropicProvider("", "k", "claude-sonnet-4-20250514")
	defer p.Close()

	messages := []protocol.Message{
		protocol.NewSystemMessage("be terse"),
		protocol.NewUserMessage("create a.txt"),
		protocol.NewAssistantMessage("", []protocol.ToolCall{
			{ID: "toolu_1", Name: "file_create", Args: map[string]interface{}{"path": "a.txt"}},
		}),
		protocol.NewToolMessage("toolu_1", `{"success":true}`),
	}

	req := p.buildRequest(messages, false, nil)
	assert.Equal(t, "be terse", req.System)
	require.Len(t, req.Messages, 3)

	assert.Equal(t, "assistant", req.Messages[1].Role)
	assert.Equal(t, "tool_use", req.Messages[1].Content[0].Type)
	assert.Equal(t, "toolu_1", req.Messages[1].Content[0].ID)

	assert.Equal(t, "user", req.Messages[2].Role)
	assert.Equal(t, "tool_result", req.Messages[2].Content[0].Type)
	assert.Equal(t, "toolu_1", req.Messages[2].Content[0].ToolUseID)
}

func TestGeminiBuildRequestRecoversFunctionNames(t *testing.T) {
	p := NewGeminiProvider("", "k", "gemini-2.0-flash")
	defer p.Close()

	messages := []protocol.Message{
		protocol.NewSystemMessage("be terse"),
		protocol.NewUserMessage("list files"),
		protocol.NewAssistantMessage("", []protocol.ToolCall{
			{ID: "call_abc", Name: "ls", Args: map[string]interface{}{}},
		}),
		protocol.NewToolMessage("call_abc", `{"entries":[]}`),
	}

	req := p.buildRequest(messages, nil)
	require.NotNil(t, req.SystemInstruction)
	require.Len(t, req.Contents, 3)

	assert.Equal(t, "model", req.Contents[1].Role)
	require.NotNil(t, req.Contents[1].Parts[0].FunctionCall)

	fr := req.Contents[2].Parts[0].FunctionResponse
	require.NotNil(t, fr)
	assert.Equal(t, "ls", fr.Name)
}

func TestUnifiedAdapterVendorOverride(t *testing.T) {
	a, err := NewUnifiedAdapter("openai", "anthropic/claude-sonnet-4-20250514", "")
	require.NoError(t, err)
	defer a.Cleanup()

	assert.Equal(t, "anthropic", a.Vendor())
	assert.Equal(t, "claude-sonnet-4-20250514", a.ModelName())
}

func TestUnifiedAdapterSetModel(t *testing.T) {
	a, err := NewUnifiedAdapter("ollama", "qwen2.5-coder:7b", "")
	require.NoError(t, err)
	defer a.Cleanup()

	a.SetModel("llama3.1:8b")
	assert.Equal(t, "llama3.1:8b", a.ModelName())
}

func TestNewProviderUnknownVendor(t *testing.T) {
	_, err := NewProvider("watson", "", "m")
	assert.Error(t, err)
}
