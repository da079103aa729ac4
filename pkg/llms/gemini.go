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

	"github.com/google/uuid"
	"github.com/songbird-ai/songbird/pkg/httpclient"
	"github.com/songbird-ai/songbird/pkg/protocol"
)

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider speaks the native Gemini generateContent API. Gemini
// does not issue tool call IDs, so normalization mints synthetic ones.
type GeminiProvider struct {
	baseURL string
	apiKey  string

	mu    sync.RWMutex
	model string

	httpClient *httpclient.Client
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	Tools             []geminiTools   `json:"tools,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string                  `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

type geminiFunctionResponse struct {
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

type geminiTools struct {
	FunctionDeclarations []geminiFunctionDecl `json:"functionDeclarations"`
}

type geminiFunctionDecl struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata *geminiUsage `json:"usageMetadata,omitempty"`
	Error         *geminiError `json:"error,omitempty"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func NewGeminiProvider(baseURL, apiKey, model string) *GeminiProvider {
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}
	return &GeminiProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: httpclient.New(
			httpclient.WithHeaderParser(httpclient.ParseGeminiRateLimitHeaders),
		),
	}
}

func (p *GeminiProvider) ModelName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model
}

func (p *GeminiProvider) SetModel(model string) {
	p.mu.Lock()
	p.model = model
	p.mu.Unlock()
}

func (p *GeminiProvider) Close() error {
	p.httpClient.Close()
	return nil
}

func (p *GeminiProvider) Generate(ctx context.Context, messages []protocol.Message, tools []ToolDefinition) (*ChatResponse, error) {
	request := p.buildRequest(messages, tools)

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, p.ModelName(), p.apiKey)
	req, err := p.newRequest(ctx, url, body)
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

	var response geminiResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if response.Error != nil {
		return nil, Classify("gemini", response.Error.Code, response.Error.Message, nil)
	}
	if len(response.Candidates) == 0 {
		return nil, Classify("gemini", 0, "no candidates returned", nil)
	}

	out := &ChatResponse{Model: p.ModelName()}
	if response.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens:     response.UsageMetadata.PromptTokenCount,
			CompletionTokens: response.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      response.UsageMetadata.TotalTokenCount,
		}
	}
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			out.Content += part.Text
		}
		if part.FunctionCall != nil {
			out.ToolCalls = append(out.ToolCalls, protocol.ToolCall{
				ID:   "call_" + uuid.NewString(),
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
		}
	}
	return out, nil
}

func (p *GeminiProvider) GenerateStreaming(ctx context.Context, messages []protocol.Message, tools []ToolDefinition) (<-chan StreamChunk, error) {
	request := p.buildRequest(messages, tools)

	outputCh := make(chan StreamChunk, 100)
	go func() {
		defer close(outputCh)
		if err := p.makeStreamingRequest(ctx, request, outputCh); err != nil {
			outputCh <- StreamChunk{Type: "error", Error: err}
		}
	}()
	return outputCh, nil
}

// buildRequest maps the canonical transcript onto Gemini's shape. Tool
// messages become functionResponse parts; the function name is
// recovered from the assistant tool call the message answers.
func (p *GeminiProvider) buildRequest(messages []protocol.Message, tools []ToolDefinition) geminiRequest {
	request := geminiRequest{}

	callNames := make(map[string]string)
	for _, msg := range messages {
		for _, tc := range msg.ToolCalls {
			callNames[tc.ID] = tc.Name
		}
	}

	for _, msg := range messages {
		switch msg.Role {
		case protocol.RoleSystem:
			if request.SystemInstruction == nil {
				request.SystemInstruction = &geminiContent{}
			}
			request.SystemInstruction.Parts = append(request.SystemInstruction.Parts,
				geminiPart{Text: msg.Content})
		case protocol.RoleUser:
			request.Contents = append(request.Contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: msg.Content}},
			})
		case protocol.RoleAssistant:
			var parts []geminiPart
			if msg.Content != "" {
				parts = append(parts, geminiPart{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				args := tc.Args
				if args == nil {
					args = map[string]interface{}{}
				}
				parts = append(parts, geminiPart{
					FunctionCall: &geminiFunctionCall{Name: tc.Name, Args: args},
				})
			}
			if len(parts) == 0 {
				parts = []geminiPart{{Text: ""}}
			}
			request.Contents = append(request.Contents, geminiContent{Role: "model", Parts: parts})
		case protocol.RoleTool:
			var payload map[string]interface{}
			if err := json.Unmarshal([]byte(msg.Content), &payload); err != nil {
				payload = map[string]interface{}{"output": msg.Content}
			}
			request.Contents = append(request.Contents, geminiContent{
				Role: "user",
				Parts: []geminiPart{{
					FunctionResponse: &geminiFunctionResponse{
						Name:     callNames[msg.ToolCallID],
						Response: payload,
					},
				}},
			})
		}
	}

	if len(tools) > 0 {
		decls := make([]geminiFunctionDecl, len(tools))
		for i, tool := range tools {
			decls[i] = geminiFunctionDecl{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			}
		}
		request.Tools = []geminiTools{{FunctionDeclarations: decls}}
	}
	return request
}

func (p *GeminiProvider) newRequest(ctx context.Context, url string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (p *GeminiProvider) classifyHTTPFailure(resp *http.Response, err error) error {
	statusCode := 0
	message := ""

	if resp != nil {
		statusCode = resp.StatusCode
		if body, readErr := io.ReadAll(resp.Body); readErr == nil && len(body) > 0 {
			var errorResp struct {
				Error geminiError `json:"error"`
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
	return Classify("gemini", statusCode, message, err)
}

func (p *GeminiProvider) makeStreamingRequest(ctx context.Context, request geminiRequest, outputCh chan<- StreamChunk) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", p.baseURL, p.ModelName(), p.apiKey)
	req, err := p.newRequest(ctx, url, body)
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

		var chunk geminiResponse
		if err := json.Unmarshal(line[6:], &chunk); err != nil {
			continue
		}
		if chunk.Error != nil {
			return Classify("gemini", chunk.Error.Code, chunk.Error.Message, nil)
		}
		if chunk.UsageMetadata != nil {
			usage = Usage{
				PromptTokens:     chunk.UsageMetadata.PromptTokenCount,
				CompletionTokens: chunk.UsageMetadata.CandidatesTokenCount,
				TotalTokens:      chunk.UsageMetadata.TotalTokenCount,
			}
		}
		if len(chunk.Candidates) == 0 {
			continue
		}
		for _, part := range chunk.Candidates[0].Content.Parts {
			if part.Text != "" {
				outputCh <- StreamChunk{Type: "text", Text: part.Text}
			}
			if part.FunctionCall != nil {
				call := protocol.ToolCall{
					ID:   "call_" + uuid.NewString(),
					Name: part.FunctionCall.Name,
					Args: part.FunctionCall.Args,
				}
				outputCh <- StreamChunk{Type: "tool_call", ToolCall: &call}
			}
		}
	}

	outputCh <- StreamChunk{Type: "done", Usage: &usage}
	return nil
}
