package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/songbird-ai/songbird/pkg/protocol"
)

// ProviderConfig records which backend a session was using, so resume
// restores the same provider and model.
type ProviderConfig struct {
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	APIBase       string `json:"api_base,omitempty"`
	ResolvedModel string `json:"resolved_model,omitempty"`
}

// Session is one conversation with its metadata.
type Session struct {
	ID          string         `json:"id"`
	ProjectRoot string         `json:"project_root"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Summary     string         `json:"summary,omitempty"`
	Provider    ProviderConfig `json:"provider_config"`

	Messages []protocol.Message `json:"-"`

	// persisted counts the messages already written to disk, so Save
	// appends only the tail.
	persisted int
	metaDirty bool
}

// New creates a session for a project.
func New(projectRoot string, provider ProviderConfig) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:          uuid.NewString(),
		ProjectRoot: projectRoot,
		CreatedAt:   now,
		UpdatedAt:   now,
		Provider:    provider,
		metaDirty:   true,
	}
}

// Append adds a message to the transcript and touches UpdatedAt.
func (s *Session) Append(msg protocol.Message) {
	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = time.Now().UTC()
	s.metaDirty = true
}

// SetSummary updates the one-line session summary shown in listings.
func (s *Session) SetSummary(summary string) {
	if summary == s.Summary {
		return
	}
	s.Summary = summary
	s.UpdatedAt = time.Now().UTC()
	s.metaDirty = true
}

// SetProvider records a provider or model switch.
func (s *Session) SetProvider(cfg ProviderConfig) {
	if cfg == s.Provider {
		return
	}
	s.Provider = cfg
	s.UpdatedAt = time.Now().UTC()
	s.metaDirty = true
}

// Dirty reports whether Save would write anything.
func (s *Session) Dirty() bool {
	return s.metaDirty || len(s.Messages) > s.persisted
}
