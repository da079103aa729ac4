package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/songbird-ai/songbird/pkg/utils"
)

// SimilarityThreshold is the minimum content similarity at which a new
// todo is treated as an update of an existing one instead of a
// duplicate entry.
const SimilarityThreshold = 0.75

// Todo statuses.
const (
	TodoPending    = "pending"
	TodoInProgress = "in_progress"
	TodoCompleted  = "completed"
)

// Todo priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Todo is one tracked work item.
type Todo struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Status    string    `json:"status"`
	Priority  string    `json:"priority"`
	SessionID string    `json:"session_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TodoStore persists a project's todo list as a single JSON file.
type TodoStore struct {
	path      string
	sessionID string

	mu sync.Mutex
}

// NewTodoStore creates a store writing to dir/todos.json.
func NewTodoStore(dir string) *TodoStore {
	return &TodoStore{path: filepath.Join(dir, "todos.json")}
}

// SetSessionID tags new todos with the session that created them.
func (s *TodoStore) SetSessionID(id string) {
	s.mu.Lock()
	s.sessionID = id
	s.mu.Unlock()
}

func (s *TodoStore) load() ([]Todo, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read todos: %w", err)
	}
	var todos []Todo
	if err := json.Unmarshal(data, &todos); err != nil {
		return nil, fmt.Errorf("failed to parse todos: %w", err)
	}
	return todos, nil
}

func (s *TodoStore) save(todos []Todo) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create todo directory: %w", err)
	}
	data, err := json.MarshalIndent(todos, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode todos: %w", err)
	}
	return utils.WriteFileAtomic(s.path, data, 0644)
}

// List returns all todos.
func (s *TodoStore) List() ([]Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Upsert adds or updates a todo. A new item whose content is similar to
// an existing one updates that item's status and priority instead of
// duplicating it.
func (s *TodoStore) Upsert(content, status, priority string) (Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	todos, err := s.load()
	if err != nil {
		return Todo{}, err
	}
	if priority == "" {
		priority = PriorityMedium
	}

	now := time.Now().UTC()
	for i := range todos {
		if ContentSimilarity(todos[i].Content, content) >= SimilarityThreshold {
			todos[i].Status = status
			todos[i].Priority = priority
			todos[i].UpdatedAt = now
			if err := s.save(todos); err != nil {
				return Todo{}, err
			}
			return todos[i], nil
		}
	}

	todo := Todo{
		ID:        uuid.NewString(),
		Content:   content,
		Status:    status,
		Priority:  priority,
		SessionID: s.sessionID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	todos = append(todos, todo)
	if err := s.save(todos); err != nil {
		return Todo{}, err
	}
	return todo, nil
}

// Apply records one incoming item. An id addresses an existing todo
// directly; id-less items fall back to similarity matching via Upsert.
// Only the fields present on an id-bearing item change.
func (s *TodoStore) Apply(id, content, status, priority string) (Todo, error) {
	if id == "" {
		return s.Upsert(content, status, priority)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	todos, err := s.load()
	if err != nil {
		return Todo{}, err
	}
	for i := range todos {
		if todos[i].ID != id {
			continue
		}
		if content != "" {
			todos[i].Content = content
		}
		if status != "" {
			todos[i].Status = status
		}
		if priority != "" {
			todos[i].Priority = priority
		}
		todos[i].UpdatedAt = time.Now().UTC()
		if err := s.save(todos); err != nil {
			return Todo{}, err
		}
		return todos[i], nil
	}
	return Todo{}, fmt.Errorf("no todo with id %s", id)
}

var (
	todoPrefixRe = regexp.MustCompile(`^(todo:?|need to|needs to|should|must|task:?)\s+`)
	todoPunctRe  = regexp.MustCompile(`[^a-z0-9\s]`)
)

// normalizeTodo reduces todo text to bare lowercase tokens so phrasing
// differences do not defeat duplicate detection.
func normalizeTodo(content string) []string {
	s := strings.ToLower(strings.TrimSpace(content))
	s = todoPrefixRe.ReplaceAllString(s, "")
	s = todoPunctRe.ReplaceAllString(s, " ")
	return strings.Fields(s)
}

// ContentSimilarity scores two todo texts in [0,1]: the Jaccard index
// of their token sets, or 0.9 when one token set contains the other,
// whichever is higher.
func ContentSimilarity(a, b string) float64 {
	tokensA := normalizeTodo(a)
	tokensB := normalizeTodo(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	setA := make(map[string]bool, len(tokensA))
	for _, t := range tokensA {
		setA[t] = true
	}
	setB := make(map[string]bool, len(tokensB))
	for _, t := range tokensB {
		setB[t] = true
	}

	intersection := 0
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection

	jaccard := float64(intersection) / float64(union)
	subset := 0.0
	if intersection == len(setA) || intersection == len(setB) {
		subset = 0.9
	}
	if subset > jaccard {
		return subset
	}
	return jaccard
}

// TodoReadTool lists the project's todos.
type TodoReadTool struct {
	store *TodoStore
}

func NewTodoReadTool(store *TodoStore) *TodoReadTool {
	return &TodoReadTool{store: store}
}

func (t *TodoReadTool) GetName() string { return "todo_read" }

func (t *TodoReadTool) GetDescription() string {
	return "List the current todo items for this project"
}

func (t *TodoReadTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{Name: "status", Type: "string", Description: "Only show todos with this status",
				Enum: []string{TodoPending, TodoInProgress, TodoCompleted}},
			{Name: "show_completed", Type: "boolean", Description: "Include completed todos", Default: false},
		},
	}
}

func (t *TodoReadTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	var params struct {
		Status        string `json:"status"`
		ShowCompleted bool   `json:"show_completed"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return errorResult(t.GetName(), err.Error()), nil
	}

	start := time.Now()
	todos, err := t.store.List()
	if err != nil {
		return errorResult(t.GetName(), err.Error()), nil
	}

	var lines []string
	shown := 0
	for _, todo := range todos {
		if params.Status != "" && todo.Status != params.Status {
			continue
		}
		if params.Status == "" && !params.ShowCompleted && todo.Status == TodoCompleted {
			continue
		}
		marker := "[ ]"
		switch todo.Status {
		case TodoInProgress:
			marker = "[~]"
		case TodoCompleted:
			marker = "[x]"
		}
		lines = append(lines, fmt.Sprintf("%s %s", marker, todo.Content))
		shown++
	}

	content := strings.Join(lines, "\n")
	if content == "" {
		content = "No todos"
	}
	return successResult(t.GetName(), content, time.Since(start), map[string]interface{}{
		"count": shown,
		"todos": todos,
	}), nil
}

// TodoWriteTool adds or updates todo items.
type TodoWriteTool struct {
	store *TodoStore
}

func NewTodoWriteTool(store *TodoStore) *TodoWriteTool {
	return &TodoWriteTool{store: store}
}

func (t *TodoWriteTool) GetName() string { return "todo_write" }

func (t *TodoWriteTool) GetDescription() string {
	return "Add todo items or update their status; similar items are merged"
}

func (t *TodoWriteTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{
				Name:        "todos",
				Type:        "array",
				Description: "Items to add or update",
				Required:    true,
				Items: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"id": map[string]interface{}{
							"type":        "string",
							"description": "Update an existing todo by id; omit for new items",
						},
						"content": map[string]interface{}{
							"type":        "string",
							"description": "Todo text; required unless id is given",
						},
						"status": map[string]interface{}{
							"type": "string",
							"enum": []string{TodoPending, TodoInProgress, TodoCompleted},
						},
						"priority": map[string]interface{}{
							"type": "string",
							"enum": []string{PriorityHigh, PriorityMedium, PriorityLow},
						},
					},
				},
			},
		},
	}
}

func (t *TodoWriteTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	var params struct {
		Todos []struct {
			ID       string `json:"id"`
			Content  string `json:"content"`
			Status   string `json:"status"`
			Priority string `json:"priority"`
		} `json:"todos"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return errorResult(t.GetName(), err.Error()), nil
	}
	if len(params.Todos) == 0 {
		return errorResult(t.GetName(), "todos parameter is required"), nil
	}

	start := time.Now()
	updated := 0
	for _, item := range params.Todos {
		if item.ID == "" && strings.TrimSpace(item.Content) == "" {
			continue
		}
		status := item.Status
		// new items start pending; id updates leave status alone
		if item.ID == "" && status == "" {
			status = TodoPending
		}
		if _, err := t.store.Apply(item.ID, item.Content, status, item.Priority); err != nil {
			return errorResult(t.GetName(), err.Error()), nil
		}
		updated++
	}

	return successResult(t.GetName(),
		fmt.Sprintf("Updated %d todo(s)", updated),
		time.Since(start),
		map[string]interface{}{"updated": updated}), nil
}
