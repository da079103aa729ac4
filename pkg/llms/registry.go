package llms

import (
	"fmt"
	"strings"

	"github.com/songbird-ai/songbird/pkg/config"
	"github.com/songbird-ai/songbird/pkg/registry"
)

const (
	openAIDefaultBaseURL     = "https://api.openai.com/v1"
	openRouterDefaultBaseURL = "https://openrouter.ai/api/v1"
	ollamaDefaultBaseURL     = "http://localhost:11434"
)

// Factory builds a Provider for one vendor. baseURL overrides the
// vendor default when non-empty.
type Factory func(baseURL, apiKey, model string) Provider

var factories = registry.New[Factory]()

func init() {
	register := func(name string, f Factory) {
		if err := factories.Register(name, f); err != nil {
			panic(err)
		}
	}

	register("openai", func(baseURL, apiKey, model string) Provider {
		if baseURL == "" {
			baseURL = openAIDefaultBaseURL
		}
		return NewOpenAIProvider("openai", baseURL, apiKey, model)
	})
	register("openrouter", func(baseURL, apiKey, model string) Provider {
		if baseURL == "" {
			baseURL = openRouterDefaultBaseURL
		}
		return NewOpenAIProvider("openrouter", baseURL, apiKey, model)
	})
	register("ollama", func(baseURL, apiKey, model string) Provider {
		if baseURL == "" {
			baseURL = ollamaDefaultBaseURL
		}
		// Ollama exposes an OpenAI-compatible surface under /v1.
		return NewOpenAIProvider("ollama", strings.TrimSuffix(baseURL, "/")+"/v1", apiKey, model)
	})
	register("anthropic", func(baseURL, apiKey, model string) Provider {
		return NewAnthropicProvider(baseURL, apiKey, model)
	})
	register("gemini", func(baseURL, apiKey, model string) Provider {
		return NewGeminiProvider(baseURL, apiKey, model)
	})
}

// NewProvider builds a backend for the named vendor.
func NewProvider(vendor, baseURL, model string) (Provider, error) {
	factory, ok := factories.Get(vendor)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (known: %s)",
			vendor, strings.Join(factories.Names(), ", "))
	}
	apiKey, _ := config.APIKey(vendor)
	return factory(baseURL, apiKey, model), nil
}

// ParseModelString splits a "vendor/model" reference. A bare model name
// with no recognized vendor prefix belongs to openai. OpenRouter model
// names themselves contain slashes, so only the first segment is
// considered a vendor candidate.
func ParseModelString(s string) (vendor, model string) {
	if idx := strings.Index(s, "/"); idx > 0 {
		head := s[:idx]
		if _, ok := factories.Get(head); ok {
			return head, s[idx+1:]
		}
	}
	return "openai", s
}
