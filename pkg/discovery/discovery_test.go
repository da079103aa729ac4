package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListModelsOllama(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		fmt.Fprint(w, `{"models":[{"name":"qwen2.5-coder:7b"},{"name":"llama3.1:8b"}]}`)
	}))
	defer server.Close()

	s := NewService(WithBaseURL("ollama", server.URL))
	models, err := s.ListModels(context.Background(), "ollama")
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.False(t, s.UsedFallback("ollama"))
}

func TestListModelsCaches(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"models":[{"name":"m1"}]}`)
	}))
	defer server.Close()

	s := NewService(WithBaseURL("ollama", server.URL))
	_, err := s.ListModels(context.Background(), "ollama")
	require.NoError(t, err)
	_, err = s.ListModels(context.Background(), "ollama")
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
}

func TestListModelsFallbackOnProbeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	s := NewService(WithBaseURL("ollama", server.URL))
	models, err := s.ListModels(context.Background(), "ollama")
	require.NoError(t, err)
	assert.NotEmpty(t, models)
	assert.True(t, s.UsedFallback("ollama"))
}

func TestListModelsFastMode(t *testing.T) {
	s := NewService(WithFastMode(true))
	models, err := s.ListModels(context.Background(), "anthropic")
	require.NoError(t, err)
	assert.NotEmpty(t, models)
	assert.True(t, s.UsedFallback("anthropic"))
	for _, m := range models {
		assert.Equal(t, "anthropic", m.Provider)
	}
}

func TestListModelsUnknownProvider(t *testing.T) {
	s := NewService(WithFastMode(true))
	_, err := s.ListModels(context.Background(), "watson")
	assert.Error(t, err)
}

func TestListAll(t *testing.T) {
	s := NewService(WithFastMode(true))
	results, err := s.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 5)
	assert.NotEmpty(t, results["openai"])
}

func TestOpenAIStyleProbeRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("probe should not reach the server without a key")
	}))
	defer server.Close()

	s := NewService(WithBaseURL("openai", server.URL))
	models, err := s.ListModels(context.Background(), "openai")
	require.NoError(t, err)
	assert.True(t, s.UsedFallback("openai"))
	assert.NotEmpty(t, models)
}
