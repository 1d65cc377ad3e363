package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vtcode/pkg/engine/api"
	"vtcode/pkg/engine/pty"
)

// ShellTool is run_terminal_cmd: a one-shot command run under a PTY via the
// shared pty.Manager, so it never blocks the TurnLoop's goroutine and is
// subject to the same SIGTERM→SIGKILL escalation as PTY sessions.
type ShellTool struct {
	BaseTool
	workspaceRoot string
	mgr           *pty.Manager
	timeout       time.Duration
}

// NewShellTool creates the run_terminal_cmd tool backed by mgr.
func NewShellTool(workspaceRoot string, mgr *pty.Manager) *ShellTool {
	return &ShellTool{
		BaseTool: NewBaseTool(
			"run_terminal_cmd",
			"Execute a command under a pseudo-terminal in the workspace. Use for build commands, tests, git operations, or any CLI tool.",
			[]ParameterDef{
				{Name: "program", Type: "string", Description: "Program to execute (e.g. sh, git, go)", Required: true},
				{Name: "args", Type: "array", Description: "Arguments to pass to the program", Required: false},
				{Name: "working_dir", Type: "string", Description: "Working directory, relative to the workspace (default: workspace root)", Required: false},
				{Name: "timeout", Type: "integer", Description: "Timeout in seconds (default: 120, max: 300)", Required: false},
			},
			api.RiskHigh,
		),
		workspaceRoot: workspaceRoot,
		mgr:           mgr,
		timeout:       120 * time.Second,
	}
}

func (t *ShellTool) Execute(ctx context.Context, args api.Args) (api.ToolResult, error) {
	program := GetStringArg(args, "program", "")
	if program == "" {
		// Backward-compatible single-string form: "command" => run via sh -c.
		if cmd := GetStringArg(args, "command", ""); cmd != "" {
			return t.run(ctx, "sh", []string{"-c", cmd}, args)
		}
		return toolFailed(api.ReasonInvalidArgs, fmt.Errorf("program is required")), nil
	}

	var cmdArgs []string
	if raw, ok := args["args"]; ok {
		if list, ok := raw.([]any); ok {
			for _, v := range list {
				if s, ok := v.(string); ok {
					cmdArgs = append(cmdArgs, s)
				}
			}
		}
	}

	return t.run(ctx, program, cmdArgs, args)
}

func (t *ShellTool) run(ctx context.Context, program string, cmdArgs []string, args api.Args) (api.ToolResult, error) {
	timeoutSecs := GetIntArg(args, "timeout", 120)
	timeout := time.Duration(timeoutSecs) * time.Second
	if timeout <= 0 || timeout > 300*time.Second {
		timeout = 300 * time.Second
	}

	workingDir := GetStringArg(args, "working_dir", "")

	res, err := t.mgr.RunCommand(ctx, api.PtyCommandRequest{
		Program:    program,
		Args:       cmdArgs,
		WorkingDir: workingDir,
		Timeout:    timeout,
	})
	if err != nil {
		return toolFailed(api.ReasonIoError, err), nil
	}

	output := string(res.Stdout)
	if res.Truncated {
		output += "\n\n... (output truncated)"
	}

	if res.TimedOut {
		return api.ToolResult{
			Content:   output + fmt.Sprintf("\n\nCommand timed out after %d seconds", timeoutSecs),
			Status:    api.StatusTimedOut,
			Truncated: res.Truncated,
		}, nil
	}

	if res.ExitCode != 0 {
		detail := fmt.Sprintf("exit code %d", res.ExitCode)
		if res.Signal != "" {
			detail = fmt.Sprintf("killed by %s", res.Signal)
		}
		return api.ToolResult{
			Content:   output + fmt.Sprintf("\n\nExit code: %d", res.ExitCode),
			Status:    api.StatusFailed,
			Reason:    api.ReasonIoError,
			Error:     detail,
			Truncated: res.Truncated,
		}, nil
	}

	if strings.TrimSpace(output) == "" {
		return successResult("<command completed with no output>", nil), nil
	}
	return api.ToolResult{Content: output, Status: api.StatusCompleted, Truncated: res.Truncated}, nil
}

func (t *ShellTool) Preview(ctx context.Context, args api.Args) (*api.Preview, error) {
	program := GetStringArg(args, "program", GetStringArg(args, "command", ""))
	timeoutSecs := GetIntArg(args, "timeout", 120)

	return &api.Preview{
		Kind:     api.PreviewCommand,
		Summary:  "Run terminal command",
		Content:  program,
		Affected: []string{t.workspaceRoot},
		RiskHint: fmt.Sprintf("Timeout: %d seconds", timeoutSecs),
	}, nil
}
