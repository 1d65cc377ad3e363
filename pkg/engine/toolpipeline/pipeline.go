// Package toolpipeline wraps a single tool call with a timeout and makes it
// cancellable without blocking the TurnLoop's goroutine. Grounded on the
// teacher's turn_runner.go dispatch loop, generalized into its own stage so
// the biased cancel/timeout/completion race is explicit and testable in
// isolation.
package toolpipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"vtcode/pkg/engine/api"
)

const defaultToolTimeout = 5 * time.Minute

// Executor runs a tool body to completion and reports its normalized result.
// Implemented by the ToolRegistry.
type Executor interface {
	Execute(ctx context.Context, callID, name string, args api.Args) api.ToolResult
}

// Pipeline bounds each tool call with a timeout and races it against the
// turn's cancellation context.
type Pipeline struct {
	registry    Executor
	toolTimeout map[string]time.Duration
	defaultTO   time.Duration
}

// New creates a ToolPipeline delegating dispatch to registry.
func New(registry Executor) *Pipeline {
	return &Pipeline{registry: registry, toolTimeout: map[string]time.Duration{}, defaultTO: defaultToolTimeout}
}

// SetTimeout overrides the per-tool timeout (e.g. run_terminal_cmd gets a
// longer budget than read_file).
func (p *Pipeline) SetTimeout(tool string, d time.Duration) {
	p.toolTimeout[tool] = d
}

// SetDefaultTimeout overrides the timeout applied to tools with no
// tool-specific override, normally sourced from Config.ToolTimeout.
func (p *Pipeline) SetDefaultTimeout(d time.Duration) {
	if d > 0 {
		p.defaultTO = d
	}
}

// ExecuteWithTimeout runs one tool call, racing (1) ctx cancellation, (2)
// registry completion, and (3) timer expiry, in that priority order. The
// pipeline never panics to its caller: a panic inside the registry call is
// recovered and reported as Failed(Panic).
func (p *Pipeline) ExecuteWithTimeout(ctx context.Context, callID, name string, args api.Args) api.ToolResult {
	timeout := p.defaultTO
	if d, ok := p.toolTimeout[name]; ok {
		timeout = d
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resultCh := make(chan api.ToolResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				msg := fmt.Sprintf("%v", r)
				if len(msg) > 2000 {
					msg = msg[:2000] + "...(truncated)"
				}
				stack := string(debug.Stack())
				if len(stack) > 4000 {
					stack = stack[:4000]
				}
				resultCh <- api.ToolResult{
					CallID: callID,
					Status: api.StatusFailed,
					Reason: api.ReasonPanic,
					Error:  msg,
				}
			}
		}()
		resultCh <- p.registry.Execute(callCtx, callID, name, args)
	}()

	// Priority: (1) outer cancellation, (2) registry completion via select's
	// fairness, (3) timeout. Go's select has no built-in priority, so check
	// ctx.Done() non-blocking first to honor the cancel-first bias.
	select {
	case <-ctx.Done():
		<-callCtx.Done() // propagate cancellation into the running tool
		select {
		case r := <-resultCh:
			return r
		case <-time.After(50 * time.Millisecond):
			return api.ToolResult{CallID: callID, Status: api.StatusCancelled, DurationMs: time.Since(start).Milliseconds()}
		}
	default:
	}

	select {
	case r := <-resultCh:
		r.CallID = callID
		r.DurationMs = time.Since(start).Milliseconds()
		if r.Status == api.StatusCancelled && ctx.Err() == nil && callCtx.Err() == context.DeadlineExceeded {
			// The tool stopped because its own timer fired, not the turn's cancellation.
			r.Status = api.StatusTimedOut
		}
		return r
	case <-ctx.Done():
		select {
		case r := <-resultCh:
			r.CallID = callID
			r.DurationMs = time.Since(start).Milliseconds()
			return r
		case <-time.After(50 * time.Millisecond):
			return api.ToolResult{CallID: callID, Status: api.StatusCancelled, DurationMs: time.Since(start).Milliseconds()}
		}
	case <-callCtx.Done():
		select {
		case r := <-resultCh:
			r.CallID = callID
			r.DurationMs = time.Since(start).Milliseconds()
			if r.Status == api.StatusCancelled && ctx.Err() == nil {
				r.Status = api.StatusTimedOut
			}
			return r
		case <-time.After(50 * time.Millisecond):
			return api.ToolResult{CallID: callID, Status: api.StatusTimedOut, DurationMs: time.Since(start).Milliseconds()}
		}
	}
}
