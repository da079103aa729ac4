package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/songbird-ai/songbird/pkg/protocol"
)

// JSONL record types. A session file is a sequence of meta and message
// records; on load, the last meta record wins and messages accumulate
// in order.
const (
	recordMeta    = "meta"
	recordMessage = "message"
)

type record struct {
	Type    string            `json:"type"`
	Meta    *sessionMeta      `json:"meta,omitempty"`
	Message *protocol.Message `json:"message,omitempty"`
}

type sessionMeta struct {
	ID          string         `json:"id"`
	ProjectRoot string         `json:"project_root"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Summary     string         `json:"summary,omitempty"`
	Provider    ProviderConfig `json:"provider_config"`
}

// Stub is a session listing entry, loaded without the transcript.
type Stub struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Summary   string
	Provider  ProviderConfig
	NMessages int
}

// Store reads and writes sessions under baseDir/<sanitized project>/sessions.
type Store struct {
	baseDir string
}

// NewStore creates a store rooted at baseDir, typically
// ~/.songbird/projects.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// ProjectDir returns the storage directory for a project root.
func (st *Store) ProjectDir(projectRoot string) string {
	return filepath.Join(st.baseDir, SanitizeProjectPath(projectRoot))
}

func (st *Store) sessionsDir(projectRoot string) string {
	return filepath.Join(st.ProjectDir(projectRoot), "sessions")
}

func (st *Store) sessionPath(projectRoot, id string) string {
	return filepath.Join(st.sessionsDir(projectRoot), id+".jsonl")
}

// Save appends the unpersisted tail of the session to its JSONL file:
// new message records, then a meta record when metadata changed.
// Saving an unchanged session writes nothing.
func (st *Store) Save(s *Session) error {
	if !s.Dirty() {
		return nil
	}

	dir := st.sessionsDir(s.ProjectRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create sessions directory: %w", err)
	}

	path := st.sessionPath(s.ProjectRoot, s.ID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open session file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)

	for _, msg := range s.Messages[s.persisted:] {
		m := msg
		if err := enc.Encode(record{Type: recordMessage, Message: &m}); err != nil {
			return fmt.Errorf("failed to write message record: %w", err)
		}
	}

	if s.metaDirty {
		meta := sessionMeta{
			ID:          s.ID,
			ProjectRoot: s.ProjectRoot,
			CreatedAt:   s.CreatedAt,
			UpdatedAt:   s.UpdatedAt,
			Summary:     s.Summary,
			Provider:    s.Provider,
		}
		if err := enc.Encode(record{Type: recordMeta, Meta: &meta}); err != nil {
			return fmt.Errorf("failed to write meta record: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush session file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync session file: %w", err)
	}

	s.persisted = len(s.Messages)
	s.metaDirty = false
	return nil
}

// Load reads one session. Malformed lines are skipped with a warning so
// a torn write cannot brick a session.
func (st *Store) Load(projectRoot, id string) (*Session, error) {
	path := st.sessionPath(projectRoot, id)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session %s: %w", id, err)
	}
	defer f.Close()

	s := &Session{ID: id, ProjectRoot: projectRoot}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			slog.Warn("skipping malformed session record", "session", id, "line", lineNo, "error", err)
			continue
		}

		switch rec.Type {
		case recordMessage:
			if rec.Message != nil {
				s.Messages = append(s.Messages, *rec.Message)
			}
		case recordMeta:
			if rec.Meta != nil {
				s.CreatedAt = rec.Meta.CreatedAt
				s.UpdatedAt = rec.Meta.UpdatedAt
				s.Summary = rec.Meta.Summary
				s.Provider = rec.Meta.Provider
				if rec.Meta.ProjectRoot != "" {
					s.ProjectRoot = rec.Meta.ProjectRoot
				}
			}
		default:
			slog.Warn("skipping unknown session record type", "session", id, "line", lineNo, "type", rec.Type)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}

	s.persisted = len(s.Messages)
	return s, nil
}

// List returns session stubs for a project, newest first.
func (st *Store) List(projectRoot string) ([]Stub, error) {
	dir := st.sessionsDir(projectRoot)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var stubs []Stub
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		id := strings.TrimSuffix(name, ".jsonl")
		meta, nMessages, err := st.readMeta(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("skipping unreadable session", "session", id, "error", err)
			continue
		}
		stubs = append(stubs, Stub{
			ID:        id,
			CreatedAt: meta.CreatedAt,
			UpdatedAt: meta.UpdatedAt,
			Summary:   meta.Summary,
			Provider:  meta.Provider,
			NMessages: nMessages,
		})
	}

	sort.Slice(stubs, func(i, j int) bool {
		return stubs[i].UpdatedAt.After(stubs[j].UpdatedAt)
	})
	return stubs, nil
}

// Latest returns the most recently updated session stub, or nil when
// the project has none.
func (st *Store) Latest(projectRoot string) (*Stub, error) {
	stubs, err := st.List(projectRoot)
	if err != nil {
		return nil, err
	}
	if len(stubs) == 0 {
		return nil, nil
	}
	return &stubs[0], nil
}

// readMeta scans a session file for its last meta record and counts
// message records along the way.
func (st *Store) readMeta(path string) (*sessionMeta, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var meta *sessionMeta
	nMessages := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		switch rec.Type {
		case recordMeta:
			if rec.Meta != nil {
				meta = rec.Meta
			}
		case recordMessage:
			nMessages++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, err
	}
	if meta == nil {
		return nil, 0, fmt.Errorf("no meta record in %s", path)
	}
	return meta, nMessages, nil
}
