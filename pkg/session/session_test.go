package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songbird-ai/songbird/pkg/protocol"
)

func TestSanitizeProjectPath(t *testing.T) {
	assert.Equal(t, "home-dev-songbird", SanitizeProjectPath("/home/dev/songbird"))
	assert.Equal(t, "C-Users-dev-proj", SanitizeProjectPath(`C:\Users\dev\proj`))
	assert.Equal(t, "root", SanitizeProjectPath("/"))
}

func TestProjectRootFallsBackToDir(t *testing.T) {
	dir := t.TempDir()
	root := ProjectRoot(dir)
	resolved, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	expected, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Equal(t, expected, resolved)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	s := New("/home/dev/proj", ProviderConfig{Provider: "anthropic", Model: "claude-sonnet-4-20250514"})
	s.Append(protocol.NewUserMessage("hello"))
	s.Append(protocol.NewAssistantMessage("hi there", nil))
	s.SetSummary("hello")

	require.NoError(t, store.Save(s))

	loaded, err := store.Load("/home/dev/proj", s.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 2)
	assert.Equal(t, "hello", loaded.Messages[0].Content)
	assert.Equal(t, "hello", loaded.Summary)
	assert.Equal(t, "anthropic", loaded.Provider.Provider)
}

func TestSaveIsIdempotent(t *testing.T) {
	store := NewStore(t.TempDir())

	s := New("/p", ProviderConfig{Provider: "ollama"})
	s.Append(protocol.NewUserMessage("one"))
	require.NoError(t, store.Save(s))
	require.NoError(t, store.Save(s))
	require.NoError(t, store.Save(s))

	loaded, err := store.Load("/p", s.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Messages, 1)
}

func TestSaveAppendsOnlyNewMessages(t *testing.T) {
	store := NewStore(t.TempDir())

	s := New("/p", ProviderConfig{Provider: "ollama"})
	s.Append(protocol.NewUserMessage("one"))
	require.NoError(t, store.Save(s))

	s.Append(protocol.NewAssistantMessage("two", nil))
	require.NoError(t, store.Save(s))

	loaded, err := store.Load("/p", s.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 2)
	assert.Equal(t, "one", loaded.Messages[0].Content)
	assert.Equal(t, "two", loaded.Messages[1].Content)
}

func TestLoadSkipsMalformedLines(t *testing.T) {
	store := NewStore(t.TempDir())

	s := New("/p", ProviderConfig{Provider: "ollama"})
	s.Append(protocol.NewUserMessage("ok"))
	require.NoError(t, store.Save(s))

	path := store.sessionPath("/p", s.ID)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("{torn write\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	loaded, err := store.Load("/p", s.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Messages, 1)
}

func TestListNewestFirst(t *testing.T) {
	store := NewStore(t.TempDir())

	older := New("/p", ProviderConfig{Provider: "ollama"})
	older.Append(protocol.NewUserMessage("old"))
	older.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.Save(older))

	newer := New("/p", ProviderConfig{Provider: "ollama"})
	newer.Append(protocol.NewUserMessage("new"))
	require.NoError(t, store.Save(newer))

	stubs, err := store.List("/p")
	require.NoError(t, err)
	require.Len(t, stubs, 2)
	assert.Equal(t, newer.ID, stubs[0].ID)
	assert.Equal(t, 1, stubs[0].NMessages)

	latest, err := store.Latest("/p")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, newer.ID, latest.ID)
}

func TestListEmptyProject(t *testing.T) {
	store := NewStore(t.TempDir())

	stubs, err := store.List("/nowhere")
	require.NoError(t, err)
	assert.Empty(t, stubs)

	latest, err := store.Latest("/nowhere")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestResumeAfterLoadAppends(t *testing.T) {
	store := NewStore(t.TempDir())

	s := New("/p", ProviderConfig{Provider: "ollama"})
	s.Append(protocol.NewUserMessage("first"))
	require.NoError(t, store.Save(s))

	loaded, err := store.Load("/p", s.ID)
	require.NoError(t, err)
	loaded.Append(protocol.NewUserMessage("second"))
	require.NoError(t, store.Save(loaded))

	again, err := store.Load("/p", s.ID)
	require.NoError(t, err)
	assert.Len(t, again.Messages, 2)
}
