package tools

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"vtcode/pkg/engine/api"
	"vtcode/pkg/engine/pty"
)

// CreatePtySessionTool starts a long-lived PTY-backed shell and hands back
// a session id for subsequent write_pty/read_pty/close_pty calls.
type CreatePtySessionTool struct {
	BaseTool
	mgr *pty.Manager
}

func NewCreatePtySessionTool(mgr *pty.Manager) *CreatePtySessionTool {
	return &CreatePtySessionTool{
		BaseTool: NewBaseTool(
			"create_pty_session",
			"Start a long-lived interactive shell session under a PTY. Returns a session_id for write_pty/read_pty/close_pty.",
			[]ParameterDef{
				{Name: "program", Type: "string", Description: "Program to run (default: sh)", Required: false},
				{Name: "working_dir", Type: "string", Description: "Working directory, relative to the workspace", Required: false},
			},
			api.RiskHigh,
		),
		mgr: mgr,
	}
}

func (t *CreatePtySessionTool) Execute(ctx context.Context, args api.Args) (api.ToolResult, error) {
	program := GetStringArg(args, "program", "sh")
	workingDir := GetStringArg(args, "working_dir", "")

	id := uuid.NewString()
	if err := t.mgr.CreateSession(ctx, api.PtyCommandRequest{Program: program, WorkingDir: workingDir}, id); err != nil {
		return toolFailed(api.ReasonIoError, err), nil
	}
	return successResult(fmt.Sprintf("✅ PTY session created: %s", id), map[string]string{"session_id": id}), nil
}

// WritePtySessionTool writes a chunk of input to a running PTY session.
type WritePtySessionTool struct {
	BaseTool
	mgr *pty.Manager
}

func NewWritePtySessionTool(mgr *pty.Manager) *WritePtySessionTool {
	return &WritePtySessionTool{
		BaseTool: NewBaseTool(
			"write_pty",
			"Write input to a running PTY session created by create_pty_session.",
			[]ParameterDef{
				{Name: "session_id", Type: "string", Description: "Session id returned by create_pty_session", Required: true},
				{Name: "data", Type: "string", Description: "Bytes to write (e.g. a command followed by \\n)", Required: true},
			},
			api.RiskHigh,
		),
		mgr: mgr,
	}
}

func (t *WritePtySessionTool) Execute(ctx context.Context, args api.Args) (api.ToolResult, error) {
	sessionID := GetStringArg(args, "session_id", "")
	if sessionID == "" {
		return toolFailed(api.ReasonInvalidArgs, fmt.Errorf("session_id is required")), nil
	}
	data := GetStringArg(args, "data", "")
	if err := t.mgr.WriteSession(sessionID, data); err != nil {
		return toolFailed(api.ReasonNotFound, err), nil
	}
	return successText("✅ Wrote to PTY session: " + sessionID), nil
}

// ReadPtySessionTool drains output accumulated by a PTY session.
type ReadPtySessionTool struct {
	BaseTool
	mgr *pty.Manager
}

func NewReadPtySessionTool(mgr *pty.Manager) *ReadPtySessionTool {
	return &ReadPtySessionTool{
		BaseTool: NewBaseTool(
			"read_pty",
			"Read (and clear) output buffered by a PTY session since the last read.",
			[]ParameterDef{
				{Name: "session_id", Type: "string", Description: "Session id returned by create_pty_session", Required: true},
			},
			api.RiskNone,
		),
		mgr: mgr,
	}
}

func (t *ReadPtySessionTool) Execute(ctx context.Context, args api.Args) (api.ToolResult, error) {
	sessionID := GetStringArg(args, "session_id", "")
	if sessionID == "" {
		return toolFailed(api.ReasonInvalidArgs, fmt.Errorf("session_id is required")), nil
	}
	out, err := t.mgr.ReadSession(sessionID)
	if err != nil {
		return toolFailed(api.ReasonNotFound, err), nil
	}
	if out == "" {
		return successText("<no output since last read>"), nil
	}
	return successText(out), nil
}

// ClosePtySessionTool terminates a PTY session's child process.
type ClosePtySessionTool struct {
	BaseTool
	mgr *pty.Manager
}

func NewClosePtySessionTool(mgr *pty.Manager) *ClosePtySessionTool {
	return &ClosePtySessionTool{
		BaseTool: NewBaseTool(
			"close_pty",
			"Terminate a PTY session started by create_pty_session.",
			[]ParameterDef{
				{Name: "session_id", Type: "string", Description: "Session id returned by create_pty_session", Required: true},
			},
			api.RiskHigh,
		),
		mgr: mgr,
	}
}

func (t *ClosePtySessionTool) Execute(ctx context.Context, args api.Args) (api.ToolResult, error) {
	sessionID := GetStringArg(args, "session_id", "")
	if sessionID == "" {
		return toolFailed(api.ReasonInvalidArgs, fmt.Errorf("session_id is required")), nil
	}
	if err := t.mgr.CloseSession(sessionID); err != nil {
		return toolFailed(api.ReasonNotFound, err), nil
	}
	return successText("✅ Closed PTY session: " + sessionID), nil
}
