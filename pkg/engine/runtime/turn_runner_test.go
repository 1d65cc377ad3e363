package runtime

import (
	"context"
	"fmt"
	"io"
	"testing"

	"vtcode/pkg/engine/api"
	"vtcode/pkg/engine/policy"
	"vtcode/pkg/engine/store"
	"vtcode/pkg/engine/tools"
)

// loopingToolCallLLM always asks for the same tool call, never finishing the
// turn on its own; used to drive agentLoop's step counter to MaxSteps.
type loopingToolCallLLM struct{ calls int }

func (l *loopingToolCallLLM) Stream(ctx context.Context, req LLMRequest) (LLMStream, error) {
	l.calls++
	return &loopingToolCallStream{id: fmt.Sprintf("call_%d", l.calls)}, nil
}

type loopingToolCallStream struct {
	id   string
	sent bool
}

func (s *loopingToolCallStream) Recv(ctx context.Context) (LLMChunk, error) {
	if s.sent {
		return LLMChunk{}, io.EOF
	}
	s.sent = true
	return LLMChunk{
		ToolCall:     &api.LLMToolCall{ID: s.id, Name: "ls", Args: `{"path":"."}`},
		FinishReason: "tool_calls",
	}, nil
}

func (s *loopingToolCallStream) Close() error { return nil }

func newTestRunner(t *testing.T, llm LLM, maxSteps int) (*TurnRunner, string) {
	t.Helper()
	ws := t.TempDir()

	reg := tools.NewRegistry()
	reg.MustRegister(tools.NewLsTool(ws))

	sessionStore, err := store.NewFileSessionStore(ws)
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	planStore, err := store.NewFilePlanStore(ws)
	if err != nil {
		t.Fatalf("plan store: %v", err)
	}

	runner := NewTurnRunner(TurnRunnerConfig{
		LLM:                llm,
		Tools:              reg,
		Policy:             policy.NewDefaultPolicy(),
		SessionStore:       sessionStore,
		PlanStore:          planStore,
		WorkspaceRoot:      ws,
		ApprovalMode:       api.ModeFullAuto,
		FilterHistoryTools: true,
		MaxSteps:           maxSteps,
	})
	return runner, ws
}

func TestTurnRunner_MaxSteps_ReportsBudgetExhausted(t *testing.T) {
	llm := &loopingToolCallLLM{}
	runner, _ := newTestRunner(t, llm, 3)

	sess := &api.Session{SessionID: "s1", Metadata: map[string]string{}}
	stream, err := runner.Run(context.Background(), sess, "loop forever")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var done *api.DonePayload
	ctx := context.Background()
	for {
		e, err := stream.Recv(ctx)
		if err != nil {
			break
		}
		if e.Type == api.EventDone {
			done = e.Done
		}
	}

	if done == nil {
		t.Fatalf("expected a done event")
	}
	if done.Reason != "budget_exhausted" {
		t.Fatalf("done.Reason = %q, want budget_exhausted", done.Reason)
	}
	if llm.calls != 3 {
		t.Fatalf("expected agentLoop to stop after MaxSteps (3) LLM calls, got %d LLM calls", llm.calls)
	}
}

func TestTurnRunner_MaxSteps_ZeroDisablesBound(t *testing.T) {
	llm := staticLLM{out: "done talking"}
	runner, _ := newTestRunner(t, llm, 0)

	sess := &api.Session{SessionID: "s1", Metadata: map[string]string{}}
	stream, err := runner.Run(context.Background(), sess, "hello")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var done *api.DonePayload
	ctx := context.Background()
	for {
		e, err := stream.Recv(ctx)
		if err != nil {
			break
		}
		if e.Type == api.EventDone {
			done = e.Done
		}
	}

	if done == nil || done.Reason != "completed" {
		t.Fatalf("done = %+v, want Reason completed", done)
	}
}

// denyingPolicy always refuses Validate with a *policy.PolicyError, exercising
// the ToolResult{Status: StatusPolicyDenied} classification path.
type denyingPolicy struct{ policy.DefaultPolicy }

func (denyingPolicy) Validate(ctx context.Context, pctx api.PolicyContext, tool policy.Tool, args api.Args) error {
	return &policy.PolicyError{Code: api.ErrPolicyDenied, Message: "denied for test"}
}

func TestTurnRunner_PolicyDenial_ReportsPolicyDeniedStatus(t *testing.T) {
	ws := t.TempDir()
	reg := tools.NewRegistry()
	reg.MustRegister(tools.NewLsTool(ws))

	sessionStore, err := store.NewFileSessionStore(ws)
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	planStore, err := store.NewFilePlanStore(ws)
	if err != nil {
		t.Fatalf("plan store: %v", err)
	}

	llm := &loopingToolCallLLM{}
	runner := NewTurnRunner(TurnRunnerConfig{
		LLM:                llm,
		Tools:              reg,
		Policy:             denyingPolicy{},
		SessionStore:       sessionStore,
		PlanStore:          planStore,
		WorkspaceRoot:      ws,
		ApprovalMode:       api.ModeFullAuto,
		FilterHistoryTools: true,
		MaxSteps:           1,
	})

	sess := &api.Session{SessionID: "s1", Metadata: map[string]string{}}
	stream, err := runner.Run(context.Background(), sess, "try a tool")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var sawPolicyDenied bool
	ctx := context.Background()
	for {
		e, err := stream.Recv(ctx)
		if err != nil {
			break
		}
		if e.Type == api.EventToolResult && e.ToolResult != nil {
			if e.ToolResult.Result.Status == api.StatusPolicyDenied {
				sawPolicyDenied = true
			}
			if e.ToolResult.Result.Reason != api.ReasonPermissionDenied {
				t.Fatalf("reason = %q, want %q", e.ToolResult.Result.Reason, api.ReasonPermissionDenied)
			}
		}
	}
	if !sawPolicyDenied {
		t.Fatalf("expected a tool_result event with Status=StatusPolicyDenied")
	}
}
