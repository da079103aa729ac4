// Package utils provides small shared helpers: token counting, atomic
// filesystem writes, and JSON argument repair.
package utils

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates token usage for a model's encoding. Used by the
// orchestrator to report transcript size; estimates only, billing truth
// comes from provider usage fields.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
}

var (
	encodingCache   = make(map[string]*tiktoken.Tiktoken)
	encodingCacheMu sync.RWMutex
)

// NewTokenCounter creates a counter for the given model, falling back to
// the cl100k_base encoding for models tiktoken does not know.
func NewTokenCounter(model string) (*TokenCounter, error) {
	encodingCacheMu.RLock()
	cached, exists := encodingCache[model]
	encodingCacheMu.RUnlock()

	if exists {
		return &TokenCounter{encoding: cached, model: model}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	encodingCacheMu.Lock()
	encodingCache[model] = encoding
	encodingCacheMu.Unlock()

	return &TokenCounter{encoding: encoding, model: model}, nil
}

// CountText returns the token count for a single text.
func (tc *TokenCounter) CountText(text string) int {
	if text == "" {
		return 0
	}
	return len(tc.encoding.Encode(text, nil, nil))
}

// CountMessage approximates the tokens a chat message consumes: content
// plus the ~4-token per-message framing overhead OpenAI documents.
func (tc *TokenCounter) CountMessage(role, content string) int {
	return tc.CountText(content) + tc.CountText(role) + 4
}

func (tc *TokenCounter) Model() string {
	return tc.model
}
