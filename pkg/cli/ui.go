// Package cli implements the terminal front end: rendering, the
// confirmation prompt, the status spinner, and interrupt handling.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/songbird-ai/songbird/pkg/tools"
)

// ANSI colors, suppressed on non-terminals.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
)

// Terminal renders the conversation and asks the user questions. It
// implements the orchestrator's UI surface.
type Terminal struct {
	out   io.Writer
	in    *bufio.Reader
	isTTY bool
}

// NewTerminal builds a Terminal over stdin/stdout.
func NewTerminal() *Terminal {
	return &Terminal{
		out:   os.Stdout,
		in:    bufio.NewReader(os.Stdin),
		isTTY: term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// newTerminalForTest wires arbitrary streams, always non-tty.
func newTerminalForTest(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{out: out, in: bufio.NewReader(in), isTTY: false}
}

func (t *Terminal) color(code, s string) string {
	if !t.isTTY {
		return s
	}
	return code + s + colorReset
}

// ShowText prints assistant output.
func (t *Terminal) ShowText(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	fmt.Fprintln(t.out, text)
}

// ShowToolResult prints one executed tool result.
func (t *Terminal) ShowToolResult(result tools.ToolResult) {
	marker := t.color(colorGreen, "✓")
	if !result.Success {
		marker = t.color(colorRed, "✗")
	}
	fmt.Fprintf(t.out, "%s %s", marker, result.ToolName)
	if !result.Success && result.Error != "" {
		fmt.Fprintf(t.out, ": %s", result.Error)
	}
	fmt.Fprintln(t.out)

	if result.Success && result.Content != "" {
		for _, line := range strings.Split(strings.TrimRight(result.Content, "\n"), "\n") {
			fmt.Fprintf(t.out, "  %s\n", t.color(colorDim, line))
		}
	}
}

// Notify prints an out-of-band notice.
func (t *Terminal) Notify(message string) {
	fmt.Fprintln(t.out, t.color(colorYellow, message))
}

// ShowDiff renders a unified diff with added lines green and removed
// lines red.
func (t *Terminal) ShowDiff(path, diff string) {
	fmt.Fprintln(t.out, t.color(colorCyan, "--- proposed changes: "+path))
	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			fmt.Fprintln(t.out, t.color(colorDim, line))
		case strings.HasPrefix(line, "+"):
			fmt.Fprintln(t.out, t.color(colorGreen, line))
		case strings.HasPrefix(line, "-"):
			fmt.Fprintln(t.out, t.color(colorRed, line))
		case strings.HasPrefix(line, "@@"):
			fmt.Fprintln(t.out, t.color(colorCyan, line))
		default:
			fmt.Fprintln(t.out, line)
		}
	}
}

// Ask presents a numbered menu and returns the chosen index. Without a
// terminal attached, the default is selected immediately so scripted
// runs never hang.
func (t *Terminal) Ask(prompt string, options []string, defaultIdx int) (int, error) {
	if defaultIdx < 0 || defaultIdx >= len(options) {
		defaultIdx = 0
	}
	if !t.isTTY {
		return defaultIdx, nil
	}

	fmt.Fprintln(t.out, prompt)
	for i, opt := range options {
		marker := " "
		if i == defaultIdx {
			marker = "*"
		}
		fmt.Fprintf(t.out, " %s %d) %s\n", marker, i+1, opt)
	}

	for {
		fmt.Fprintf(t.out, "> ")
		line, err := t.in.ReadString('\n')
		if err != nil {
			return defaultIdx, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return defaultIdx, nil
		}
		n, err := strconv.Atoi(line)
		if err == nil && n >= 1 && n <= len(options) {
			return n - 1, nil
		}
		fmt.Fprintf(t.out, "enter a number between 1 and %d\n", len(options))
	}
}

// Confirm is the confirmation gate for destructive tools: show the
// diff, ask, default to keeping the file untouched.
func (t *Terminal) Confirm(ctx context.Context, path, diff string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	t.ShowDiff(path, diff)
	choice, err := t.Ask("Apply these changes?", []string{"Apply", "Cancel"}, 1)
	if err != nil {
		return false, err
	}
	return choice == 0, nil
}
