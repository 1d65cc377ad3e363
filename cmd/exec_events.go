package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"vtcode/pkg/engine/api"
)

// itemTypeForTool classifies a tool call into the exec --json item_type
// vocabulary (spec.md §6.2).
func itemTypeForTool(name string) string {
	switch name {
	case "write_file", "edit_file", "apply_patch":
		return "file_change"
	case "run_terminal_cmd", "create_pty_session", "write_pty", "read_pty", "close_pty", "run_skill_script":
		return "command_execution"
	case "web_fetch":
		return "web_search"
	default:
		return "mcp_tool_call"
	}
}

// commandStatusForResult maps a ToolResult to the command_execution status
// enum (spec.md §6.2: running|completed|failed|cancelled|timed_out).
func commandStatusForResult(r api.ToolResult) string {
	switch r.Status {
	case api.StatusCompleted, api.StatusSuccess:
		return "completed"
	case api.StatusTimedOut:
		return "timed_out"
	case api.StatusCancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

// turnObserver fans a Send/Resume event stream out to up to three
// destinations: a raw JSONL mirror (--events), the spec.md §6.2 JSONL
// vocabulary (exec --json), and a human progress line on stderr (ask/exec
// without --json). jsonOut and humanOut are mutually exclusive.
type turnObserver struct {
	rawFile  io.Writer
	jsonOut  io.Writer
	humanOut io.Writer

	threadID    string
	turn        int
	agentItemID string
	agentOpen   bool
	nextItemSeq int
}

func newTurnObserver(threadID string, jsonMode bool, rawPath string) (*turnObserver, error) {
	o := &turnObserver{threadID: threadID}
	if jsonMode {
		o.jsonOut = os.Stdout
	} else {
		o.humanOut = os.Stderr
	}
	if rawPath != "" {
		f, err := os.OpenFile(rawPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open --events file: %w", err)
		}
		o.rawFile = f
	}
	return o, nil
}

func (o *turnObserver) close() {
	if f, ok := o.rawFile.(*os.File); ok && f != nil {
		_ = f.Close()
	}
}

func (o *turnObserver) emitJSON(v any) {
	if o.jsonOut == nil {
		return
	}
	line, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintln(o.jsonOut, string(line))
}

func (o *turnObserver) itemID() string {
	o.nextItemSeq++
	return fmt.Sprintf("item_%d", o.nextItemSeq)
}

func (o *turnObserver) threadStarted() {
	o.emitJSON(map[string]any{"type": "thread.started", "thread_id": o.threadID})
}

func (o *turnObserver) turnStarted() {
	o.turn++
	o.emitJSON(map[string]any{"type": "turn.started", "turn": o.turn})
}

// onEvent consumes one api.Event from the engine's stream. toolItems maps an
// in-flight tool_call_id to the item id assigned at item.started so the
// matching tool_result can close it out.
func (o *turnObserver) onEvent(e api.Event, toolItems map[string]string) {
	if o.rawFile != nil {
		if line, err := json.Marshal(e); err == nil {
			fmt.Fprintln(o.rawFile, string(line))
		}
	}

	switch e.Type {
	case api.EventThinking:
		if e.Thinking == nil || strings.TrimSpace(e.Thinking.Message) == "" {
			return
		}
		id := o.itemID()
		o.emitJSON(map[string]any{"type": "item.started", "item_type": "reasoning", "id": id})
		o.emitJSON(map[string]any{"type": "item.completed", "id": id, "payload": map[string]any{"text": e.Thinking.Message}})
		if o.humanOut != nil {
			fmt.Fprintf(o.humanOut, "[reasoning] %s\n", e.Thinking.Message)
		}

	case api.EventDelta:
		if e.Delta == nil || e.Delta.Text == "" || e.Delta.Source == api.DeltaToolArg {
			return
		}
		if !o.agentOpen {
			o.agentItemID = o.itemID()
			o.agentOpen = true
			o.emitJSON(map[string]any{"type": "item.started", "item_type": "agent_message", "id": o.agentItemID})
		}
		o.emitJSON(map[string]any{"type": "item.updated", "id": o.agentItemID, "delta": map[string]any{"text": e.Delta.Text}})
		if o.humanOut != nil {
			fmt.Fprint(o.humanOut, e.Delta.Text)
		}

	case api.EventToolCall:
		if e.ToolCall == nil {
			return
		}
		id := o.itemID()
		toolItems[e.ToolCall.ToolCallID] = id
		itemType := itemTypeForTool(e.ToolCall.ToolName)
		o.emitJSON(map[string]any{"type": "item.started", "item_type": itemType, "id": id})
		if o.humanOut != nil {
			fmt.Fprintf(o.humanOut, "\n[tool] %s\n", e.ToolCall.ToolName)
		}

	case api.EventToolResult:
		if e.ToolResult == nil {
			return
		}
		id, ok := toolItems[e.ToolResult.ToolCallID]
		if !ok {
			id = o.itemID()
		}
		delete(toolItems, e.ToolResult.ToolCallID)
		itemType := itemTypeForTool(e.ToolResult.ToolName)
		var payload map[string]any
		if itemType == "command_execution" {
			payload = map[string]any{
				"status":            commandStatusForResult(e.ToolResult.Result),
				"aggregated_output": e.ToolResult.Result.Content,
				"exit_code":         exitCodeFromToolResult(e.ToolResult.Result),
			}
		} else if itemType == "file_change" {
			payload = map[string]any{"change": fileChangeFromToolName(e.ToolResult.ToolName), "summary": e.ToolResult.Result.Content}
		} else {
			payload = map[string]any{"status": string(e.ToolResult.Result.Status), "content": e.ToolResult.Result.Content}
		}
		o.emitJSON(map[string]any{"type": "item.completed", "id": id, "payload": payload})
		if o.humanOut != nil {
			fmt.Fprintf(o.humanOut, "[tool_result] %s (%s)\n", e.ToolResult.ToolName, e.ToolResult.Result.Status)
		}

	case api.EventApproval:
		if o.humanOut != nil && e.Approval != nil {
			fmt.Fprintf(o.humanOut, "[policy] denying %s (no interactive UI)\n", e.Approval.ToolCall.ToolName)
		}

	case api.EventError:
		if o.agentOpen {
			o.emitJSON(map[string]any{"type": "item.completed", "id": o.agentItemID})
			o.agentOpen = false
		}
		reason := "unknown"
		if e.Error != nil {
			reason = e.Error.Message
		}
		o.emitJSON(map[string]any{"type": "turn.failed", "turn": o.turn, "reason": reason})
		if o.humanOut != nil {
			fmt.Fprintf(o.humanOut, "[error] %s\n", reason)
		}

	case api.EventDone:
		if o.agentOpen {
			o.emitJSON(map[string]any{"type": "item.completed", "id": o.agentItemID})
			o.agentOpen = false
		}
		reason := "completed"
		if e.Done != nil && e.Done.Reason != "" {
			reason = e.Done.Reason
		}
		if reason == "error" || reason == "canceled" {
			o.emitJSON(map[string]any{"type": "turn.failed", "turn": o.turn, "reason": reason})
		} else {
			o.emitJSON(map[string]any{"type": "turn.completed", "turn": o.turn, "tokens": map[string]any{}})
		}
	}
}

func exitCodeFromToolResult(r api.ToolResult) int {
	if r.Status == api.StatusCompleted || r.Status == api.StatusSuccess {
		return 0
	}
	return 1
}

func fileChangeFromToolName(name string) string {
	switch name {
	case "write_file":
		return "created"
	case "edit_file", "apply_patch":
		return "modified"
	default:
		return "modified"
	}
}
