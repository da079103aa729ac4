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

// OpenAIProvider speaks the OpenAI chat completions wire format. It also
// serves OpenRouter and local Ollama, both of which expose the same API
// under a different base URL.
type OpenAIProvider struct {
	name    string
	baseURL string
	apiKey  string

	mu    sync.RWMutex
	model string

	httpClient *httpclient.Client
}

type openAIRequest struct {
	Model      string          `json:"model"`
	Messages   []openAIMessage `json:"messages"`
	MaxTokens  *int            `json:"max_tokens,omitempty"`
	Stream     bool            `json:"stream"`
	Tools      []openAITool    `json:"tools,omitempty"`
	ToolChoice string          `json:"tool_choice,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAITool struct {
	Type     string             `json:"type"`
	Function openAIToolFunction `json:"function"`
}

type openAIToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type openAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openAIFunctionCall `json:"function"`
}

type openAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAIChoice struct {
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIResponse struct {
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   Usage          `json:"usage"`
	Error   *openAIError   `json:"error,omitempty"`
}

type openAIStreamResponse struct {
	Choices []openAIStreamChoice `json:"choices"`
	Usage   *Usage               `json:"usage,omitempty"`
	Error   *openAIError         `json:"error,omitempty"`
}

type openAIStreamChoice struct {
	Delta        openAIDelta `json:"delta"`
	FinishReason string      `json:"finish_reason"`
}

type openAIDelta struct {
	Content   string           `json:"content,omitempty"`
	ToolCalls []openAIToolCall `json:"tool_calls,omitempty"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// NewOpenAIProvider builds an OpenAI-compatible backend. The name is
// used for error classification so OpenRouter and Ollama failures carry
// the right remediation hints.
func NewOpenAIProvider(name, baseURL, apiKey, model string) *OpenAIProvider {
	return &OpenAIProvider{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: httpclient.New(
			httpclient.WithHeaderParser(httpclient.ParseOpenAIRateLimitHeaders),
		),
	}
}

func (p *OpenAIProvider) ModelName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model
}

func (p *OpenAIProvider) SetModel(model string) {
	p.mu.Lock()
	p.model = model
	p.mu.Unlock()
}

func (p *OpenAIProvider) Close() error {
	p.httpClient.Close()
	return nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, messages []protocol.Message, tools []ToolDefinition) (*ChatResponse, error) {
	request := p.buildRequest(messages, false, tools)

	response, err := p.makeRequest(ctx, request)
	if err != nil {
		return nil, err
	}
	if response.Error != nil {
		return nil, Classify(p.name, 0, response.Error.Message, nil)
	}
	if len(response.Choices) == 0 {
		return nil, Classify(p.name, 0, "no response choices returned", nil)
	}

	choice := response.Choices[0]
	model := response.Model
	if model == "" {
		model = p.ModelName()
	}

	return &ChatResponse{
		Content:   choice.Message.Content,
		Model:     model,
		ToolCalls: parseOpenAIToolCalls(choice.Message.ToolCalls),
		Usage:     response.Usage,
	}, nil
}

func (p *OpenAIProvider) GenerateStreaming(ctx context.Context, messages []protocol.Message, tools []ToolDefinition) (<-chan StreamChunk, error) {
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

func (p *OpenAIProvider) buildRequest(messages []protocol.Message, stream bool, tools []ToolDefinition) openAIRequest {
	wire := make([]openAIMessage, 0, len(messages))
	for _, msg := range messages {
		m := openAIMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		if len(msg.ToolCalls) > 0 {
			m.ToolCalls = make([]openAIToolCall, len(msg.ToolCalls))
			for i, tc := range msg.ToolCalls {
				argsJSON, _ := json.Marshal(tc.Args)
				m.ToolCalls[i] = openAIToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: openAIFunctionCall{
						Name:      tc.Name,
						Arguments: string(argsJSON),
					},
				}
			}
		}
		wire = append(wire, m)
	}

	request := openAIRequest{
		Model:    p.ModelName(),
		Messages: wire,
		Stream:   stream,
	}
	if len(tools) > 0 {
		request.Tools = make([]openAITool, len(tools))
		for i, tool := range tools {
			request.Tools[i] = openAITool{
				Type:     "function",
				Function: openAIToolFunction(tool),
			}
		}
		request.ToolChoice = "auto"
	}
	return request
}

// parseOpenAIToolCalls normalizes wire tool calls. Malformed argument
// JSON goes through the repair pass; still-broken text is preserved in
// RawArgs so the orchestrator can surface a parse error to the model.
func parseOpenAIToolCalls(wire []openAIToolCall) []protocol.ToolCall {
	if len(wire) == 0 {
		return nil
	}
	result := make([]protocol.ToolCall, len(wire))
	for i, tc := range wire {
		call := protocol.ToolCall{ID: tc.ID, Name: tc.Function.Name}
		args, err := utils.RepairJSON(tc.Function.Arguments)
		if err != nil {
			call.RawArgs = tc.Function.Arguments
		} else {
			call.Args = args
		}
		result[i] = call
	}
	return result
}

func (p *OpenAIProvider) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	return req, nil
}

func (p *OpenAIProvider) makeRequest(ctx context.Context, request openAIRequest) (*openAIResponse, error) {
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

	var response openAIResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &response, nil
}

func (p *OpenAIProvider) classifyHTTPFailure(resp *http.Response, err error) error {
	statusCode := 0
	message := ""

	if resp != nil {
		statusCode = resp.StatusCode
		if body, readErr := io.ReadAll(resp.Body); readErr == nil && len(body) > 0 {
			var errorResp struct {
				Error openAIError `json:"error"`
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
	return Classify(p.name, statusCode, message, err)
}

func (p *OpenAIProvider) makeStreamingRequest(ctx context.Context, request openAIRequest, outputCh chan<- StreamChunk) error {
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

	reader := bufio.NewReader(resp.Body)
	toolCallsMap := make(map[int]*openAIToolCall)
	var usage *Usage

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
		line = line[6:]
		if bytes.Equal(line, []byte("[DONE]")) {
			break
		}

		var streamResp openAIStreamResponse
		if err := json.Unmarshal(line, &streamResp); err != nil {
			continue
		}
		if streamResp.Error != nil {
			return Classify(p.name, 0, streamResp.Error.Message, nil)
		}
		if streamResp.Usage != nil {
			usage = streamResp.Usage
		}
		if len(streamResp.Choices) == 0 {
			continue
		}

		choice := streamResp.Choices[0]
		if choice.Delta.Content != "" {
			outputCh <- StreamChunk{Type: "text", Text: choice.Delta.Content}
		}

		// Tool calls arrive fragmented: the first delta carries the ID
		// and name, subsequent deltas append argument text.
		for _, deltaCall := range choice.Delta.ToolCalls {
			if deltaCall.ID != "" {
				toolCallsMap[len(toolCallsMap)] = &openAIToolCall{
					ID:       deltaCall.ID,
					Type:     deltaCall.Type,
					Function: deltaCall.Function,
				}
			} else if len(toolCallsMap) > 0 {
				lastIdx := len(toolCallsMap) - 1
				if toolCall, exists := toolCallsMap[lastIdx]; exists {
					toolCall.Function.Arguments += deltaCall.Function.Arguments
				}
			}
		}

		if choice.FinishReason == "stop" || choice.FinishReason == "tool_calls" {
			break
		}
	}

	accumulated := make([]openAIToolCall, 0, len(toolCallsMap))
	for i := 0; i < len(toolCallsMap); i++ {
		if toolCall, exists := toolCallsMap[i]; exists {
			accumulated = append(accumulated, *toolCall)
		}
	}
	for _, tc := range parseOpenAIToolCalls(accumulated) {
		call := tc
		outputCh <- StreamChunk{Type: "tool_call", ToolCall: &call}
	}

	outputCh <- StreamChunk{Type: "done", Usage: usage}
	return nil
}
