package toolpipeline

import (
	"context"
	"testing"
	"time"

	"vtcode/pkg/engine/api"
)

type fakeExecutor struct {
	delay  time.Duration
	panics bool
	result api.ToolResult
}

func (f *fakeExecutor) Execute(ctx context.Context, callID, name string, args api.Args) api.ToolResult {
	if f.panics {
		panic("boom")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return api.ToolResult{CallID: callID, Status: api.StatusCancelled}
		}
	}
	return f.result
}

func TestPipeline_ExecuteWithTimeout_ReturnsRegistryResult(t *testing.T) {
	p := New(&fakeExecutor{result: api.ToolResult{Status: api.StatusCompleted}})
	r := p.ExecuteWithTimeout(context.Background(), "c1", "ls", api.Args{})
	if r.Status != api.StatusCompleted {
		t.Fatalf("status = %v, want Ok", r.Status)
	}
	if r.CallID != "c1" {
		t.Fatalf("CallID = %q, want c1", r.CallID)
	}
}

func TestPipeline_ExecuteWithTimeout_RecoversPanicAsFailed(t *testing.T) {
	p := New(&fakeExecutor{panics: true})
	r := p.ExecuteWithTimeout(context.Background(), "c2", "boom_tool", api.Args{})
	if r.Status != api.StatusFailed {
		t.Fatalf("status = %v, want Failed", r.Status)
	}
	if r.Reason != api.ReasonPanic {
		t.Fatalf("reason = %q, want panic", r.Reason)
	}
}

func TestPipeline_ExecuteWithTimeout_PerToolTimeoutExpires(t *testing.T) {
	p := New(&fakeExecutor{delay: time.Second, result: api.ToolResult{Status: api.StatusCompleted}})
	p.SetTimeout("slow_tool", 20*time.Millisecond)

	start := time.Now()
	r := p.ExecuteWithTimeout(context.Background(), "c3", "slow_tool", api.Args{})
	elapsed := time.Since(start)

	if r.Status != api.StatusTimedOut {
		t.Fatalf("status = %v, want TimedOut", r.Status)
	}
	if elapsed > time.Second {
		t.Fatalf("ExecuteWithTimeout took %v, expected to return near the 20ms per-tool timeout", elapsed)
	}
}

func TestPipeline_ExecuteWithTimeout_DefaultTimeoutOverride(t *testing.T) {
	p := New(&fakeExecutor{delay: time.Second, result: api.ToolResult{Status: api.StatusCompleted}})
	p.SetDefaultTimeout(20 * time.Millisecond)

	r := p.ExecuteWithTimeout(context.Background(), "c4", "untuned_tool", api.Args{})
	if r.Status != api.StatusTimedOut {
		t.Fatalf("status = %v, want TimedOut", r.Status)
	}
}

func TestPipeline_ExecuteWithTimeout_OuterCancellationWinsOverSlowTool(t *testing.T) {
	p := New(&fakeExecutor{delay: time.Second, result: api.ToolResult{Status: api.StatusCompleted}})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	r := p.ExecuteWithTimeout(ctx, "c5", "slow_tool", api.Args{})
	if r.Status != api.StatusCancelled {
		t.Fatalf("status = %v, want Cancelled", r.Status)
	}
}
