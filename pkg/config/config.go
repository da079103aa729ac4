// Package config loads Songbird configuration from environment files,
// the optional ~/.songbird/config.yaml, and process environment, in
// that order of increasing precedence.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultMaxToolIterations bounds the orchestrator's tool loop per
	// user turn.
	DefaultMaxToolIterations = 20

	configDirName  = ".songbird"
	configFileName = "config.yaml"
)

// Config holds the resolved runtime configuration.
type Config struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`

	// ProviderURL overrides the provider's default API base, mainly for
	// OpenAI-compatible gateways and remote Ollama hosts.
	ProviderURL string `yaml:"provider_url"`

	MaxToolIterations int    `yaml:"max_tool_iterations"`
	LogLevel          string `yaml:"log_level"`

	// AutoApply skips the interactive confirmation on file edits.
	AutoApply bool `yaml:"auto_apply"`

	// FastMode skips model discovery probes and uses static fallbacks.
	FastMode bool `yaml:"fast_mode"`
}

// envKeys maps provider names to the environment variables that carry
// their API keys, in lookup order. Ollama needs no key.
var envKeys = map[string][]string{
	"openai":     {"OPENAI_API_KEY"},
	"anthropic":  {"ANTHROPIC_API_KEY"},
	"gemini":     {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"openrouter": {"OPENROUTER_API_KEY"},
	"ollama":     {},
}

// providerOrder is the preference order when auto-selecting a provider.
var providerOrder = []string{"openai", "anthropic", "gemini", "openrouter", "ollama"}

// defaultModels holds the model each provider starts with when the user
// did not choose one.
var defaultModels = map[string]string{
	"openai":     "gpt-4o",
	"anthropic":  "claude-sonnet-4-20250514",
	"gemini":     "gemini-2.0-flash",
	"openrouter": "anthropic/claude-sonnet-4",
	"ollama":     "qwen2.5-coder:7b",
}

// LoadEnvFiles loads .env.local then .env from the working directory.
// Already-set process variables win; missing files are not errors.
func LoadEnvFiles() {
	for _, name := range []string{".env.local", ".env"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			slog.Warn("failed to load env file", "file", name, "error", err)
		} else {
			slog.Debug("loaded env file", "file", name)
		}
	}
}

// Load builds the configuration: defaults, then config.yaml, then
// environment overrides.
func Load() (*Config, error) {
	cfg := &Config{
		MaxToolIterations: DefaultMaxToolIterations,
		LogLevel:          "warn",
	}

	if err := cfg.loadFile(); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	if cfg.MaxToolIterations < 1 {
		cfg.MaxToolIterations = DefaultMaxToolIterations
	}

	if cfg.Provider == "" {
		cfg.Provider = DetectProvider()
	}
	if cfg.Model == "" {
		cfg.Model = defaultModels[cfg.Provider]
	}

	return cfg, nil
}

func (c *Config) loadFile() error {
	path, err := Path()
	if err != nil {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SONGBIRD_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := os.Getenv("SONGBIRD_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("SONGBIRD_PROVIDER_URL"); v != "" {
		c.ProviderURL = v
	}
	if v := os.Getenv("SONGBIRD_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("SONGBIRD_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxToolIterations = n
		} else {
			slog.Warn("ignoring invalid SONGBIRD_MAX_ITERATIONS", "value", v)
		}
	}
	if isTruthy(os.Getenv("SONGBIRD_AUTO_APPLY")) {
		c.AutoApply = true
	}
	if isTruthy(os.Getenv("SONGBIRD_FAST_MODE")) {
		c.FastMode = true
	}
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "y", "yes", "true", "on":
		return true
	}
	return false
}

// Path returns the location of the user config file.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDirName, configFileName), nil
}

// DataDir returns the per-user data directory, creating it on demand.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	dir := filepath.Join(home, configDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

// APIKey returns the API key for a provider from its environment
// variables. The second return reports whether the provider needs a key
// at all.
func APIKey(provider string) (string, bool) {
	keys, known := envKeys[provider]
	if !known || len(keys) == 0 {
		return "", false
	}
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v, true
		}
	}
	return "", true
}

// EnvKeyNames returns the environment variable names checked for a
// provider's API key.
func EnvKeyNames(provider string) []string {
	return envKeys[provider]
}

// KnownProviders returns all supported provider names in preference
// order.
func KnownProviders() []string {
	out := make([]string, len(providerOrder))
	copy(out, providerOrder)
	return out
}

// DefaultModel returns the starting model for a provider.
func DefaultModel(provider string) string {
	return defaultModels[provider]
}

// DetectProvider picks the first provider with an API key configured,
// falling back to ollama which runs locally without one.
func DetectProvider() string {
	for _, p := range providerOrder {
		keys := envKeys[p]
		if len(keys) == 0 {
			continue
		}
		for _, k := range keys {
			if os.Getenv(k) != "" {
				return p
			}
		}
	}
	return "ollama"
}

var envVarRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv substitutes ${VAR} and ${VAR:-default} references.
func ExpandEnv(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarRe.FindStringSubmatch(match)
		if v, ok := os.LookupEnv(groups[1]); ok && v != "" {
			return v
		}
		return groups[2]
	})
}
