package cli

import (
	"fmt"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// ShowStatus starts a transient status line with a spinner and returns
// a stop function that erases it. On non-terminals the message is
// printed once with no animation.
func (t *Terminal) ShowStatus(message string) (stop func()) {
	if !t.isTTY {
		fmt.Fprintln(t.out, message)
		return func() {}
	}

	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		frame := 0
		fmt.Fprintf(t.out, "%s %s", spinnerFrames[frame], message)
		for {
			select {
			case <-done:
				// erase the status line
				fmt.Fprintf(t.out, "\r\033[K")
				return
			case <-ticker.C:
				frame = (frame + 1) % len(spinnerFrames)
				fmt.Fprintf(t.out, "\r%s %s", spinnerFrames[frame], message)
			}
		}
	}()

	var stopped bool
	return func() {
		if stopped {
			return
		}
		stopped = true
		close(done)
		<-finished
	}
}
