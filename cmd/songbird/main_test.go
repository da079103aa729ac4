package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/songbird-ai/songbird/pkg/llms"
)

func TestRecoverableErrors(t *testing.T) {
	rateLimited := llms.Classify("openai", 429, "rate limit exceeded", nil)
	assert.True(t, recoverable(rateLimited))

	// runTurn wraps provider errors with their hint; the wrap must not
	// hide the classification
	wrapped := fmt.Errorf("%w\n  hint: %s", rateLimited, rateLimited.Hint())
	assert.True(t, recoverable(wrapped))

	assert.False(t, recoverable(errors.New("broken pipe")))
	assert.False(t, recoverable(nil))
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "0123abcd", shortID("0123abcd-4567-89ef"))
	assert.Equal(t, "tiny", shortID("tiny"))
}
