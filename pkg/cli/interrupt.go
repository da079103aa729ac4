package cli

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ExitCodeInterrupt is the process exit code after a double interrupt,
// following the shell convention of 128+SIGINT.
const ExitCodeInterrupt = 130

// doubleTapWindow is how long after a first Ctrl-C a second one exits
// the process.
const doubleTapWindow = 2 * time.Second

// InterruptHandler turns Ctrl-C into turn cancellation: the first tap
// cancels the in-flight turn, a second tap within the window exits the
// process.
type InterruptHandler struct {
	terminal *Terminal
	signals  chan os.Signal

	mu       sync.Mutex
	cancelFn func()

	exit func(int)
}

// NewInterruptHandler installs the SIGINT handler. Call Watch with a
// turn's cancel function before each turn and Close on shutdown.
func NewInterruptHandler(terminal *Terminal) *InterruptHandler {
	h := &InterruptHandler{
		terminal: terminal,
		signals:  make(chan os.Signal, 2),
		exit:     os.Exit,
	}
	signal.Notify(h.signals, os.Interrupt, syscall.SIGINT)
	go h.loop()
	return h
}

// Watch registers the cancel function for the turn in flight. A nil
// cancel means no turn is running and the first tap already exits.
func (h *InterruptHandler) Watch(cancel context.CancelFunc) {
	h.mu.Lock()
	h.cancelFn = cancel
	h.mu.Unlock()
}

func (h *InterruptHandler) cancel() bool {
	h.mu.Lock()
	fn := h.cancelFn
	h.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}

func (h *InterruptHandler) loop() {
	var lastTap time.Time
	for range h.signals {
		now := time.Now()
		if now.Sub(lastTap) <= doubleTapWindow {
			h.exit(ExitCodeInterrupt)
			return
		}
		lastTap = now

		if h.cancel() {
			h.terminal.Notify("Interrupted. Press Ctrl-C again within 2s to exit.")
		} else {
			h.exit(ExitCodeInterrupt)
			return
		}
	}
}

// Close removes the signal handler.
func (h *InterruptHandler) Close() {
	signal.Stop(h.signals)
	close(h.signals)
}
