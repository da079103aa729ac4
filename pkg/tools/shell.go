package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	// shellOutputCap truncates captured stdout/stderr so a runaway
	// command cannot flood the transcript.
	shellOutputCap = 4096

	defaultShellTimeout = 30 * time.Second
)

// dangerousPatterns refuses plainly destructive commands before a
// process is ever spawned. This is a tripwire, not a sandbox.
var dangerousPatterns = []string{
	"rm -rf /",
	"mkfs",
	"dd if=",
	":(){ :|:& };:",
	"sudo rm",
	"sudo dd",
	"format",
	"> /dev/",
	"chmod 777 /",
}

// ShellTool runs commands through bash in the workspace directory.
type ShellTool struct {
	workspace *Workspace
	timeout   time.Duration
}

func NewShellTool(workspace *Workspace) *ShellTool {
	return &ShellTool{workspace: workspace, timeout: defaultShellTimeout}
}

func (t *ShellTool) GetName() string { return "shell_exec" }

func (t *ShellTool) GetDescription() string {
	return "Run a shell command in the project directory and capture its output"
}

func (t *ShellTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{Name: "command", Type: "string", Description: "Command to run with bash -c", Required: true},
			{Name: "working_dir", Type: "string", Description: "Directory to run in, relative to the project root"},
			{Name: "timeout", Type: "integer", Description: "Timeout in seconds", Default: 30},
			{Name: "max_output_size", Type: "integer", Description: "Truncate captured output beyond this many bytes", Default: shellOutputCap},
		},
	}
}

// Refused reports whether a command trips the denylist.
func Refused(command string) (string, bool) {
	lowered := strings.ToLower(command)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowered, pattern) {
			return pattern, true
		}
	}
	return "", false
}

func (t *ShellTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	var params struct {
		Command       string `json:"command"`
		WorkingDir    string `json:"working_dir"`
		Timeout       int    `json:"timeout"`
		MaxOutputSize int    `json:"max_output_size"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return errorResult(t.GetName(), err.Error()), nil
	}
	if params.Command == "" {
		return errorResult(t.GetName(), "command parameter is required"), nil
	}

	if pattern, refused := Refused(params.Command); refused {
		return errorResult(t.GetName(),
			fmt.Sprintf("command refused: matches dangerous pattern %q", pattern)), nil
	}

	workingDir := t.workspace.Root()
	if params.WorkingDir != "" {
		resolved, err := t.workspace.Resolve(params.WorkingDir)
		if err != nil {
			return errorResult(t.GetName(), err.Error()), nil
		}
		workingDir = resolved
	}

	timeout := t.timeout
	if params.Timeout > 0 {
		timeout = time.Duration(params.Timeout) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/bash", "-c", params.Command)
	cmd.Dir = workingDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	executionTime := time.Since(start)

	exitCode := 0
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			exitCode = exitError.ExitCode()
		} else {
			exitCode = -1
		}
	}
	timedOut := ctx.Err() == context.DeadlineExceeded

	outputCap := shellOutputCap
	if params.MaxOutputSize > 0 {
		outputCap = params.MaxOutputSize
	}
	outStr, outTruncated := truncateOutput(stdout.String(), outputCap)
	errStr, errTruncated := truncateOutput(stderr.String(), outputCap)

	metadata := map[string]interface{}{
		"command":     params.Command,
		"working_dir": workingDir,
		"exit_code":   exitCode,
		"stdout":      outStr,
		"stderr":      errStr,
		"truncated":   outTruncated || errTruncated,
	}
	if timedOut {
		metadata["timed_out"] = true
	}

	content := outStr
	if errStr != "" {
		if content != "" {
			content += "\n"
		}
		content += errStr
	}

	result := ToolResult{
		Success:       err == nil,
		Content:       content,
		ToolName:      t.GetName(),
		ExecutionTime: executionTime,
		Metadata:      metadata,
	}
	if timedOut {
		result.Success = false
		result.Error = fmt.Sprintf("command timed out after %s", timeout)
	} else if err != nil {
		result.Error = fmt.Sprintf("exit code %d", exitCode)
	}
	return result, nil
}

func truncateOutput(s string, limit int) (string, bool) {
	if len(s) <= limit {
		return s, false
	}
	return s[:limit] + "\n... (output truncated)", true
}
