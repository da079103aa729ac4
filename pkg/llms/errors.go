package llms

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind buckets provider failures so the CLI can print targeted
// remediation instead of raw HTTP noise.
type ErrorKind int

const (
	ErrorGeneric ErrorKind = iota
	ErrorAuth
	ErrorRateLimit
	ErrorModel
	ErrorConnection
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorAuth:
		return "authentication"
	case ErrorRateLimit:
		return "rate limit"
	case ErrorModel:
		return "model"
	case ErrorConnection:
		return "connection"
	default:
		return "provider"
	}
}

// ProviderError is a classified provider failure carrying a remediation
// hint.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s error (HTTP %d): %s", e.Provider, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s error: %s", e.Provider, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// keyConsoles maps providers to where their API keys are minted.
var keyConsoles = map[string][2]string{
	"openai":     {"OPENAI_API_KEY", "https://platform.openai.com/api-keys"},
	"anthropic":  {"ANTHROPIC_API_KEY", "https://console.anthropic.com/settings/keys"},
	"gemini":     {"GEMINI_API_KEY", "https://aistudio.google.com/apikey"},
	"openrouter": {"OPENROUTER_API_KEY", "https://openrouter.ai/keys"},
}

// Hint returns a short actionable suggestion for the failure, or an
// empty string when there is nothing useful to say.
func (e *ProviderError) Hint() string {
	switch e.Kind {
	case ErrorAuth:
		if kc, ok := keyConsoles[e.Provider]; ok {
			return fmt.Sprintf("Set %s (get a key at %s)", kc[0], kc[1])
		}
		return "Check your API key configuration"
	case ErrorRateLimit:
		return "Rate limited. Wait a moment and retry, or switch providers with --provider"
	case ErrorModel:
		return fmt.Sprintf("Model not available. Run 'songbird providers' to list models for %s", e.Provider)
	case ErrorConnection:
		if e.Provider == "ollama" {
			return "Cannot reach Ollama. Start it with 'ollama serve' or set --provider-url"
		}
		return "Check your network connection and any proxy settings"
	}
	return ""
}

// Classify turns a raw provider failure into a ProviderError. Matching
// follows status code first, then well-known message substrings.
func Classify(provider string, statusCode int, message string, err error) *ProviderError {
	lower := strings.ToLower(message)

	kind := ErrorGeneric
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden,
		strings.Contains(lower, "api key"), strings.Contains(lower, "unauthorized"),
		strings.Contains(lower, "authentication"):
		kind = ErrorAuth
	case statusCode == http.StatusTooManyRequests,
		strings.Contains(lower, "rate limit"), strings.Contains(lower, "quota"):
		kind = ErrorRateLimit
	case statusCode == http.StatusNotFound,
		strings.Contains(lower, "not found"), strings.Contains(lower, "not supported"):
		kind = ErrorModel
	case statusCode == http.StatusServiceUnavailable,
		strings.Contains(lower, "connection"), strings.Contains(lower, "timeout"):
		kind = ErrorConnection
	}

	return &ProviderError{
		Provider:   provider,
		Kind:       kind,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}
