// Package agent implements the orchestrator: the loop that shuttles a
// conversation between the provider, the tool registry, and the session
// store, one user turn at a time.
package agent

// State tracks where the orchestrator is inside a turn. It exists for
// the status line and for tests; transitions happen only on the turn's
// goroutine.
type State int

const (
	StateIdle State = iota
	StateAwaitingModel
	StateDispatchingTools
	StateAwaitingConfirmation
	StateTerminal
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingModel:
		return "awaiting_model"
	case StateDispatchingTools:
		return "dispatching_tools"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	case StateTerminal:
		return "terminal"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
