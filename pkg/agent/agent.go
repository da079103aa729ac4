package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/songbird-ai/songbird/pkg/llms"
	"github.com/songbird-ai/songbird/pkg/protocol"
	"github.com/songbird-ai/songbird/pkg/session"
	"github.com/songbird-ai/songbird/pkg/tools"
)

// ErrCancelled reports that the user interrupted the turn. The
// transcript is left exactly as it was before the interrupted provider
// call.
var ErrCancelled = errors.New("turn cancelled")

// LLM is the provider surface the orchestrator needs.
type LLM interface {
	Generate(ctx context.Context, messages []protocol.Message, tools []llms.ToolDefinition) (*llms.ChatResponse, error)
	ModelName() string
	SetModel(model string)
}

// UI is the terminal surface the orchestrator reports through. The CLI
// implements it; tests stub it.
type UI interface {
	// ShowText renders assistant output.
	ShowText(text string)
	// ShowToolResult renders one executed tool result.
	ShowToolResult(result tools.ToolResult)
	// ShowStatus starts a transient status line and returns a stop
	// function.
	ShowStatus(message string) (stop func())
	// Notify prints an out-of-band notice (model switches, warnings).
	Notify(message string)
}

// noopUI backs headless use; a nil Options.UI falls back to it.
type noopUI struct{}

func (noopUI) ShowText(string)                 {}
func (noopUI) ShowToolResult(tools.ToolResult) {}
func (noopUI) ShowStatus(string) (stop func()) { return func() {} }
func (noopUI) Notify(string)                   {}

// Agent orchestrates one conversation.
type Agent struct {
	llm      LLM
	registry *tools.Registry
	store    *session.Store
	sess     *session.Session
	ui       UI

	maxToolIterations int
	fastMode          bool

	state atomic.Int32

	// statusStop ends the active tool status line, when one exists.
	// The confirmation gate calls it so the spinner never redraws over
	// the diff prompt.
	statusStop func()
}

// Options configures optional agent behavior.
type Options struct {
	UI                UI
	MaxToolIterations int
	// FastMode skips auxiliary model calls, trading polish for latency.
	FastMode bool
}

// New creates an orchestrator over an existing session. The session may
// already carry messages (resume); a fresh session gets the system
// prompt.
func New(llm LLM, registry *tools.Registry, store *session.Store, sess *session.Session, opts Options) *Agent {
	ui := opts.UI
	if ui == nil {
		ui = noopUI{}
	}
	maxIter := opts.MaxToolIterations
	if maxIter < 1 {
		maxIter = 20
	}

	if len(sess.Messages) == 0 {
		sess.Append(protocol.NewSystemMessage(systemPrompt))
	}

	a := &Agent{
		llm:               llm,
		registry:          registry,
		store:             store,
		sess:              sess,
		ui:                ui,
		maxToolIterations: maxIter,
		fastMode:          opts.FastMode,
	}
	a.state.Store(int32(StateIdle))
	return a
}

func (a *Agent) State() State {
	return State(a.state.Load())
}

func (a *Agent) setState(s State) {
	a.state.Store(int32(s))
}

// Session exposes the underlying session for the CLI.
func (a *Agent) Session() *session.Session {
	return a.sess
}

// GateConfirm wraps a confirmation callback so the orchestrator state
// reflects that a turn is blocked on the user.
func (a *Agent) GateConfirm(inner tools.ConfirmFunc) tools.ConfirmFunc {
	return func(ctx context.Context, path, diff string) (bool, error) {
		if stop := a.statusStop; stop != nil {
			stop()
		}
		prev := a.State()
		a.setState(StateAwaitingConfirmation)
		defer a.setState(prev)
		return inner(ctx, path, diff)
	}
}

// SwitchModel changes the active model mid-conversation. The switch is
// recorded in the transcript so the new model knows the history came
// from its predecessor.
func (a *Agent) SwitchModel(model string) {
	previous := a.llm.ModelName()
	if previous == model {
		return
	}
	a.llm.SetModel(model)
	a.sess.Append(protocol.NewSystemMessage(fmt.Sprintf(
		"Model switched from %s to %s. Earlier assistant messages in this conversation were produced by the previous model.",
		previous, model)))
	cfg := a.sess.Provider
	cfg.Model = model
	cfg.ResolvedModel = model
	a.sess.SetProvider(cfg)
	a.ui.Notify(fmt.Sprintf("Switched model to %s", model))
}

// toolDefinitions renders the registry for the provider layer.
func (a *Agent) toolDefinitions() []llms.ToolDefinition {
	infos := a.registry.List()
	defs := make([]llms.ToolDefinition, len(infos))
	for i, info := range infos {
		defs[i] = llms.ToolDefinition{
			Name:        info.Name,
			Description: info.Description,
			Parameters:  info.Schema(),
		}
	}
	return defs
}

// HandleMessage runs one user turn to completion: provider calls and
// tool dispatch alternate until the model answers in plain text or the
// iteration bound is hit, at which point a final synthesis call (or a
// deterministic summary) closes the turn.
func (a *Agent) HandleMessage(ctx context.Context, userText string) (string, error) {
	if a.sess.Summary == "" {
		a.sess.SetSummary(truncateSummary(userText))
	}
	a.sess.Append(protocol.NewUserMessage(userText))
	if err := a.store.Save(a.sess); err != nil {
		slog.Warn("failed to persist session", "error", err)
	}

	defs := a.toolDefinitions()
	var turnResults []tools.ToolResult

	for iteration := 0; iteration < a.maxToolIterations; iteration++ {
		a.setState(StateAwaitingModel)
		messages := a.sess.Messages
		if len(turnResults) > 0 {
			// Tool output was already rendered in the terminal; steer
			// the follow-up away from repeating it. The instruction is
			// per-round and never persisted.
			messages = append(append([]protocol.Message{}, a.sess.Messages...),
				protocol.NewSystemMessage(followUpInstruction))
		}
		stop := a.ui.ShowStatus("Thinking...")
		resp, err := a.llm.Generate(ctx, messages, defs)
		stop()

		if err != nil {
			if cancelled(ctx, err) {
				a.setState(StateIdle)
				return "", ErrCancelled
			}
			// Tools already ran this turn: close it with a summary
			// instead of losing their results.
			if len(turnResults) > 0 {
				return a.closeTurnWithSummary(turnResults), nil
			}
			a.setState(StateFailed)
			return "", err
		}

		if len(resp.ToolCalls) == 0 {
			a.sess.Append(protocol.NewAssistantMessage(resp.Content, nil))
			a.finishTurn()
			a.ui.ShowText(resp.Content)
			return resp.Content, nil
		}

		a.sess.Append(protocol.NewAssistantMessage(resp.Content, resp.ToolCalls))
		if resp.Content != "" {
			a.ui.ShowText(resp.Content)
		}

		a.setState(StateDispatchingTools)
		for _, call := range resp.ToolCalls {
			result := a.dispatch(ctx, call)
			turnResults = append(turnResults, result)
			a.ui.ShowToolResult(result)

			a.sess.Append(protocol.NewToolMessage(call.ID, marshalResult(result)))
			// Persist before the next provider round so an interrupt
			// never loses an applied change.
			if err := a.store.Save(a.sess); err != nil {
				slog.Warn("failed to persist session", "error", err)
			}

			if cancelled(ctx, nil) {
				a.setState(StateIdle)
				return "", ErrCancelled
			}
		}
	}

	// Iteration bound reached with the model still requesting tools.
	return a.synthesize(ctx, turnResults), nil
}

// dispatch executes one tool call, resolving unparsed arguments first.
func (a *Agent) dispatch(ctx context.Context, call protocol.ToolCall) tools.ToolResult {
	args := call.Args
	if args == nil && call.RawArgs != "" {
		return tools.ToolResult{
			Success:  false,
			Error:    fmt.Sprintf("could not parse tool arguments: %s", truncateSummary(call.RawArgs)),
			ToolName: call.Name,
		}
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	// Confirmation inside the tool may stop the status line early; the
	// CLI stop function tolerates being called twice.
	stop := a.ui.ShowStatus(fmt.Sprintf("Running %s...", call.Name))
	a.statusStop = stop
	defer func() {
		a.statusStop = nil
		stop()
	}()
	return a.registry.ExecuteTool(ctx, call.Name, args)
}

// synthesize asks the model for a closing message without offering
// tools, falling back to a deterministic summary when the call fails.
func (a *Agent) synthesize(ctx context.Context, turnResults []tools.ToolResult) string {
	if a.fastMode {
		return a.closeTurnWithSummary(turnResults)
	}

	a.setState(StateAwaitingModel)
	messages := append([]protocol.Message{}, a.sess.Messages...)
	messages = append(messages, protocol.NewSystemMessage(followUpInstruction))

	stop := a.ui.ShowStatus("Summarizing...")
	resp, err := a.llm.Generate(ctx, messages, nil)
	stop()

	if err != nil || resp.Content == "" {
		if err != nil {
			slog.Debug("synthesis call failed, using deterministic summary", "error", err)
		}
		return a.closeTurnWithSummary(turnResults)
	}

	a.sess.Append(protocol.NewAssistantMessage(resp.Content, nil))
	a.finishTurn()
	a.ui.ShowText(resp.Content)
	return resp.Content
}

// closeTurnWithSummary ends the turn with a generated summary of what
// the tools did, so the transcript never dangles.
func (a *Agent) closeTurnWithSummary(turnResults []tools.ToolResult) string {
	summary := FallbackSummary(turnResults)
	a.sess.Append(protocol.NewAssistantMessage(summary, nil))
	a.finishTurn()
	a.ui.ShowText(summary)
	return summary
}

func (a *Agent) finishTurn() {
	if err := a.store.Save(a.sess); err != nil {
		slog.Warn("failed to persist session", "error", err)
	}
	a.setState(StateTerminal)
}

// marshalResult serializes a tool result for the transcript. The model
// sees success, content, error, and metadata; Output stays in-process.
func marshalResult(result tools.ToolResult) string {
	payload := map[string]interface{}{
		"success": result.Success,
	}
	if result.Content != "" {
		payload["content"] = result.Content
	}
	if result.Error != "" {
		payload["error"] = result.Error
	}
	if len(result.Metadata) > 0 {
		payload["metadata"] = result.Metadata
	}

	data, err := json.Marshal(sanitizeJSON(payload))
	if err != nil {
		data, _ = json.Marshal(map[string]interface{}{
			"success": result.Success,
			"error":   fmt.Sprintf("result not serializable: %v", err),
		})
	}
	return string(data)
}

func cancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}

func truncateSummary(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	const limit = 80
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}

// EstimateTokens reports an approximate transcript size for the status
// line.
func (a *Agent) EstimateTokens(counter interface {
	CountMessage(role, content string) int
}) int {
	total := 0
	for _, msg := range a.sess.Messages {
		total += counter.CountMessage(msg.Role, msg.Content)
	}
	return total
}
