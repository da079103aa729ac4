// Package discovery lists the models each configured provider offers.
// Live probes run with short timeouts and results are cached; when a
// probe fails or fast mode is on, static fallback lists keep the CLI
// usable offline.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/songbird-ai/songbird/pkg/config"
)

const (
	// ProbeTimeout bounds each provider's model listing request.
	ProbeTimeout = 3 * time.Second

	// CacheTTL is how long a successful probe result stays fresh.
	CacheTTL = 300 * time.Second
)

// Model is one discoverable model.
type Model struct {
	ID                      string `json:"id"`
	Provider                string `json:"provider"`
	DisplayName             string `json:"display_name,omitempty"`
	Description             string `json:"description,omitempty"`
	ContextLength           int    `json:"context_length,omitempty"`
	SupportsFunctionCalling bool   `json:"supports_function_calling"`
	SupportsStreaming       bool   `json:"supports_streaming"`
}

// fallbackModels keeps each provider usable when its listing endpoint
// is unreachable or unauthenticated.
var fallbackModels = map[string][]string{
	"openai":     {"gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-4.1-mini", "o4-mini"},
	"anthropic":  {"claude-sonnet-4-20250514", "claude-opus-4-20250514", "claude-3-5-haiku-20241022"},
	"gemini":     {"gemini-2.0-flash", "gemini-2.5-flash", "gemini-2.5-pro"},
	"openrouter": {"anthropic/claude-sonnet-4", "openai/gpt-4o", "deepseek/deepseek-chat-v3-0324", "qwen/qwen-2.5-coder-32b-instruct"},
	"ollama":     {"qwen2.5-coder:7b", "llama3.1:8b", "deepseek-r1:8b"},
}

type cacheEntry struct {
	models   []Model
	fetched  time.Time
	fallback bool
}

// Service probes providers and caches results.
type Service struct {
	httpClient *http.Client
	fastMode   bool

	// baseURLs overrides per-provider endpoints, mainly for tests and
	// remote Ollama hosts.
	baseURLs map[string]string

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// Option configures a Service.
type Option func(*Service)

// WithFastMode skips live probes entirely.
func WithFastMode(enabled bool) Option {
	return func(s *Service) { s.fastMode = enabled }
}

// WithBaseURL overrides one provider's endpoint.
func WithBaseURL(provider, baseURL string) Option {
	return func(s *Service) { s.baseURLs[provider] = baseURL }
}

// WithHTTPClient replaces the probe client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.httpClient = c }
}

func NewService(opts ...Option) *Service {
	s := &Service{
		httpClient: &http.Client{Timeout: ProbeTimeout},
		baseURLs:   make(map[string]string),
		cache:      make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListModels returns the models for one provider, from cache when
// fresh. Probe failures fall back to the static list and are cached
// too, so a dead endpoint is not re-probed on every call.
func (s *Service) ListModels(ctx context.Context, provider string) ([]Model, error) {
	if _, known := fallbackModels[provider]; !known {
		return nil, fmt.Errorf("unknown provider %q", provider)
	}

	s.mu.Lock()
	entry, ok := s.cache[provider]
	s.mu.Unlock()
	if ok && time.Since(entry.fetched) < CacheTTL {
		return entry.models, nil
	}

	var models []Model
	fallback := false
	if s.fastMode {
		models = s.fallbackFor(provider)
		fallback = true
	} else {
		probeCtx, cancel := context.WithTimeout(ctx, ProbeTimeout)
		probed, err := s.probe(probeCtx, provider)
		cancel()
		if err != nil {
			slog.Debug("model probe failed, using fallback list", "provider", provider, "error", err)
			models = s.fallbackFor(provider)
			fallback = true
		} else {
			models = probed
		}
	}

	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })

	s.mu.Lock()
	s.cache[provider] = cacheEntry{models: models, fetched: time.Now(), fallback: fallback}
	s.mu.Unlock()
	return models, nil
}

// ListAll probes every known provider concurrently.
func (s *Service) ListAll(ctx context.Context) (map[string][]Model, error) {
	results := make(map[string][]Model)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, provider := range config.KnownProviders() {
		provider := provider
		g.Go(func() error {
			models, err := s.ListModels(gctx, provider)
			if err != nil {
				return err
			}
			mu.Lock()
			results[provider] = models
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// UsedFallback reports whether the cached entry for a provider came
// from the static list rather than a live probe.
func (s *Service) UsedFallback(provider string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache[provider].fallback
}

func (s *Service) fallbackFor(provider string) []Model {
	ids := fallbackModels[provider]
	models := make([]Model, len(ids))
	for i, id := range ids {
		// fallback lists only name models known to do tool calling
		models[i] = Model{
			ID:                      id,
			Provider:                provider,
			SupportsFunctionCalling: true,
			SupportsStreaming:       true,
		}
	}
	return models
}

func (s *Service) baseURL(provider, def string) string {
	if u, ok := s.baseURLs[provider]; ok && u != "" {
		return strings.TrimSuffix(u, "/")
	}
	return def
}

func (s *Service) probe(ctx context.Context, provider string) ([]Model, error) {
	switch provider {
	case "openai":
		return s.probeOpenAIStyle(ctx, provider, s.baseURL(provider, "https://api.openai.com/v1")+"/models")
	case "openrouter":
		return s.probeOpenAIStyle(ctx, provider, s.baseURL(provider, "https://openrouter.ai/api/v1")+"/models")
	case "anthropic":
		return s.probeAnthropic(ctx)
	case "gemini":
		return s.probeGemini(ctx)
	case "ollama":
		return s.probeOllama(ctx)
	}
	return nil, fmt.Errorf("unknown provider %q", provider)
}

func (s *Service) get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

func (s *Service) probeOpenAIStyle(ctx context.Context, provider, url string) ([]Model, error) {
	key, needsKey := config.APIKey(provider)
	if needsKey && key == "" {
		return nil, fmt.Errorf("no API key for %s", provider)
	}

	body, err := s.get(ctx, url, map[string]string{"Authorization": "Bearer " + key})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data []struct {
			ID            string `json:"id"`
			Name          string `json:"name"`
			Description   string `json:"description"`
			ContextLength int    `json:"context_length"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	models := make([]Model, 0, len(payload.Data))
	for _, m := range payload.Data {
		models = append(models, Model{
			ID:                      m.ID,
			Provider:                provider,
			DisplayName:             m.Name,
			Description:             m.Description,
			ContextLength:           m.ContextLength,
			SupportsFunctionCalling: true,
			SupportsStreaming:       true,
		})
	}
	return models, nil
}

func (s *Service) probeAnthropic(ctx context.Context) ([]Model, error) {
	key, _ := config.APIKey("anthropic")
	if key == "" {
		return nil, fmt.Errorf("no API key for anthropic")
	}

	url := s.baseURL("anthropic", "https://api.anthropic.com") + "/v1/models"
	body, err := s.get(ctx, url, map[string]string{
		"x-api-key":         key,
		"anthropic-version": "2023-06-01",
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data []struct {
			ID          string `json:"id"`
			DisplayName string `json:"display_name"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	models := make([]Model, 0, len(payload.Data))
	for _, m := range payload.Data {
		models = append(models, Model{
			ID:                      m.ID,
			Provider:                "anthropic",
			DisplayName:             m.DisplayName,
			SupportsFunctionCalling: true,
			SupportsStreaming:       true,
		})
	}
	return models, nil
}

func (s *Service) probeGemini(ctx context.Context) ([]Model, error) {
	key, _ := config.APIKey("gemini")
	if key == "" {
		return nil, fmt.Errorf("no API key for gemini")
	}

	url := s.baseURL("gemini", "https://generativelanguage.googleapis.com/v1beta") + "/models?key=" + key
	body, err := s.get(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Models []struct {
			Name                       string   `json:"name"`
			DisplayName                string   `json:"displayName"`
			Description                string   `json:"description"`
			InputTokenLimit            int      `json:"inputTokenLimit"`
			SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	models := make([]Model, 0, len(payload.Models))
	for _, m := range payload.Models {
		streaming := false
		generate := false
		for _, method := range m.SupportedGenerationMethods {
			switch method {
			case "streamGenerateContent":
				streaming = true
			case "generateContent":
				generate = true
			}
		}
		models = append(models, Model{
			ID:                      strings.TrimPrefix(m.Name, "models/"),
			Provider:                "gemini",
			DisplayName:             m.DisplayName,
			Description:             m.Description,
			ContextLength:           m.InputTokenLimit,
			SupportsFunctionCalling: generate,
			SupportsStreaming:       streaming,
		})
	}
	return models, nil
}

func (s *Service) probeOllama(ctx context.Context) ([]Model, error) {
	url := s.baseURL("ollama", "http://localhost:11434") + "/api/tags"
	body, err := s.get(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	models := make([]Model, 0, len(payload.Models))
	for _, m := range payload.Models {
		models = append(models, Model{
			ID:                      m.Name,
			Provider:                "ollama",
			SupportsFunctionCalling: true,
			SupportsStreaming:       true,
		})
	}
	return models, nil
}
