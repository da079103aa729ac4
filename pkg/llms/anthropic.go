package llms

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/songbird-ai/songbird/pkg/httpclient"
	"github.com/songbird-ai/songbird/pkg/protocol"
	"github.com/songbird-ai/songbird/pkg/utils"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
	anthropicMaxTokens      = 8192
)

// AnthropicProvider speaks the native Anthropic messages API.
type AnthropicProvider struct {
	baseURL string
	apiKey  string

	mu    sync.RWMutex
	model string

	httpClient *httpclient.Client
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
	Stream    bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`

	// tool_use fields
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`

	// tool_result fields
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

type anthropicTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type anthropicResponse struct {
	Model   string             `json:"model"`
	Content []anthropicContent `json:"content"`
	Usage   anthropicUsage     `json:"usage"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicStreamEvent struct {
	Type         string `json:"type"`
	Index        int    `json:"index"`
	ContentBlock *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block,omitempty"`
	Delta *struct {
		Type        string `json:"type"`
		Text        string `json:"text,omitempty"`
		PartialJSON string `json:"partial_json,omitempty"`
	} `json:"delta,omitempty"`
	Usage   *anthropicUsage `json:"usage,omitempty"`
	Message *struct {
		Usage anthropicUsage `json:"usage"`
	} `json:"message,omitempty"`
	Error *anthropicError `json:"error,omitempty"`
}

func NewAnthropicProvider(baseURL, apiKey, model string) *AnthropicProvider {
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}
	return &AnthropicProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: httpclient.New(
			httpclient.WithHeaderParser(httpclient.ParseAnthropicRateLimitHeaders),
		),
	}
}

func (p *AnthropicProvider) ModelName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model
}

func (p *AnthropicProvider) SetModel(model string) {
	p.mu.Lock()
	p.model = model
	p.mu.Unlock()
}

func (p *AnthropicProvider) Close() error {
	p.httpClient.Close()
	return nil
}

func (p *AnthropicProvider) Generate(ctx context.Context, messages []protocol.Message, tools []ToolDefinition) (*ChatResponse, error) {
	request := p.buildRequest(messages, false, tools)

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := p.newRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil || resp == nil || resp.StatusCode != http.StatusOK {
		return nil, p.classifyHTTPFailure(resp, err)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response anthropicResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if response.Error != nil {
		return nil, Classify("anthropic", 0, response.Error.Message, nil)
	}

	out := &ChatResponse{
		Model: response.Model,
		Usage: Usage{
			PromptTokens:     response.Usage.InputTokens,
			CompletionTokens: response.Usage.OutputTokens,
			TotalTokens:      response.Usage.InputTokens + response.Usage.OutputTokens,
		},
	}
	if out.Model == "" {
		out.Model = p.ModelName()
	}
	for _, block := range response.Content {
		switch block.Type {
		case "text":
			out.Content += block.Text
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, protocol.ToolCall{
				ID:   block.ID,
				Name: block.Name,
				Args: block.Input,
			})
		}
	}
	return out, nil
}

func (p *AnthropicProvider) GenerateStreaming(ctx context.Context, messages []protocol.Message, tools []ToolDefinition) (<-chan StreamChunk, error) {
	request := p.buildRequest(messages, true, tools)

	outputCh := make(chan StreamChunk, 100)
	go func() {
		defer close(outputCh)
		if err := p.makeStreamingRequest(ctx, request, outputCh); err != nil {
			outputCh <- StreamChunk{Type: "error", Error: err}
		}
	}()
	return outputCh, nil
}

// buildRequest maps the canonical transcript onto Anthropic's shape:
// system prompts move to the top-level field, tool results become
// tool_result blocks inside user messages, and assistant tool calls
// become tool_use blocks.
func (p *AnthropicProvider) buildRequest(messages []protocol.Message, stream bool, tools []ToolDefinition) anthropicRequest {
	request := anthropicRequest{
		Model:     p.ModelName(),
		MaxTokens: anthropicMaxTokens,
		Stream:    stream,
	}

	for _, msg := range messages {
		switch msg.Role {
		case protocol.RoleSystem:
			if request.System != "" {
				request.System += "\n\n"
			}
			request.System += msg.Content
		case protocol.RoleUser:
			request.Messages = append(request.Messages, anthropicMessage{
				Role:    "user",
				Content: []anthropicContent{{Type: "text", Text: msg.Content}},
			})
		case protocol.RoleAssistant:
			var blocks []anthropicContent
			if msg.Content != "" {
				blocks = append(blocks, anthropicContent{Type: "text", Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				input := tc.Args
				if input == nil {
					input = map[string]interface{}{}
				}
				blocks = append(blocks, anthropicContent{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: input,
				})
			}
			if len(blocks) == 0 {
				blocks = []anthropicContent{{Type: "text", Text: ""}}
			}
			request.Messages = append(request.Messages, anthropicMessage{Role: "assistant", Content: blocks})
		case protocol.RoleTool:
			request.Messages = append(request.Messages, anthropicMessage{
				Role: "user",
				Content: []anthropicContent{{
					Type:      "tool_result",
					ToolUseID: msg.ToolCallID,
					Content:   msg.Content,
				}},
			})
		}
	}

	if len(tools) > 0 {
		request.Tools = make([]anthropicTool, len(tools))
		for i, tool := range tools {
			request.Tools[i] = anthropicTool{
				Name:        tool.Name,
				Description: tool.Description,
				InputSchema: tool.Parameters,
			}
		}
	}
	return request
}

func (p *AnthropicProvider) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	return req, nil
}

func (p *AnthropicProvider) classifyHTTPFailure(resp *http.Response, err error) error {
	statusCode := 0
	message := ""

	if resp != nil {
		statusCode = resp.StatusCode
		if body, readErr := io.ReadAll(resp.Body); readErr == nil && len(body) > 0 {
			var errorResp struct {
				Error anthropicError `json:"error"`
			}
			if json.Unmarshal(body, &errorResp) == nil && errorResp.Error.Message != "" {
				message = errorResp.Error.Message
			} else {
				message = string(body)
			}
		}
	}
	if message == "" && err != nil {
		message = err.Error()
	}
	if statusCode == 0 {
		if sc, ok := httpclient.StatusCodeOf(err); ok {
			statusCode = sc
		}
	}
	return Classify("anthropic", statusCode, message, err)
}

func (p *AnthropicProvider) makeStreamingRequest(ctx context.Context, request anthropicRequest, outputCh chan<- StreamChunk) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := p.newRequest(ctx, body)
	if err != nil {
		return err
	}

	resp, err := p.httpClient.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil || resp == nil || resp.StatusCode != http.StatusOK {
		return p.classifyHTTPFailure(resp, err)
	}

	type toolBuilder struct {
		id   string
		name string
		json string
	}
	builders := make(map[int]*toolBuilder)
	var usage Usage

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read stream: %w", err)
		}

		line = bytes.TrimSpace(line)
		if !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}

		var event anthropicStreamEvent
		if err := json.Unmarshal(line[6:], &event); err != nil {
			continue
		}

		switch event.Type {
		case "error":
			if event.Error != nil {
				return Classify("anthropic", 0, event.Error.Message, nil)
			}
		case "content_block_start":
			if event.ContentBlock != nil && event.ContentBlock.Type == "tool_use" {
				builders[event.Index] = &toolBuilder{
					id:   event.ContentBlock.ID,
					name: event.ContentBlock.Name,
				}
			}
		case "content_block_delta":
			if event.Delta == nil {
				continue
			}
			switch event.Delta.Type {
			case "text_delta":
				outputCh <- StreamChunk{Type: "text", Text: event.Delta.Text}
			case "input_json_delta":
				if b, ok := builders[event.Index]; ok {
					b.json += event.Delta.PartialJSON
				}
			}
		case "content_block_stop":
			if b, ok := builders[event.Index]; ok {
				call := protocol.ToolCall{ID: b.id, Name: b.name}
				args, err := utils.RepairJSON(b.json)
				if err != nil {
					call.RawArgs = b.json
				} else {
					call.Args = args
				}
				outputCh <- StreamChunk{Type: "tool_call", ToolCall: &call}
				delete(builders, event.Index)
			}
		case "message_delta":
			if event.Usage != nil {
				usage.CompletionTokens = event.Usage.OutputTokens
				usage.TotalTokens = usage.PromptTokens + event.Usage.OutputTokens
			}
		case "message_start":
			if event.Message != nil {
				usage.PromptTokens = event.Message.Usage.InputTokens
			}
		case "message_stop":
			outputCh <- StreamChunk{Type: "done", Usage: &usage}
			return nil
		}
	}

	outputCh <- StreamChunk{Type: "done", Usage: &usage}
	return nil
}
