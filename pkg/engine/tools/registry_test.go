package tools

import (
	"context"
	"testing"

	"vtcode/pkg/engine/api"
)

func TestRegistry_ExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	res := r.Execute(context.Background(), "call-1", "does_not_exist", api.Args{})
	if res.Status != api.StatusFailed || res.Reason != api.ReasonUnknownTool {
		t.Fatalf("expected unknown_tool failure, got status=%q reason=%q", res.Status, res.Reason)
	}
}

func TestRegistry_ExecuteValidatesSchema(t *testing.T) {
	root := t.TempDir()
	r := NewRegistry()
	r.MustRegister(NewReadFileTool(root))

	// read_file requires "path"; omit it to trigger schema validation failure.
	res := r.Execute(context.Background(), "call-1", "read_file", api.Args{})
	if res.Status != api.StatusFailed || res.Reason != api.ReasonInvalidArgs {
		t.Fatalf("expected invalid_args failure, got status=%q reason=%q error=%q", res.Status, res.Reason, res.Error)
	}
}

func TestRegistry_ExecuteTruncatesOversizedOutput(t *testing.T) {
	root := t.TempDir()
	r := NewRegistry()
	r.MustRegister(&fakeBigOutputTool{})

	res := r.Execute(context.Background(), "call-1", "fake_big_output", api.Args{})
	if !res.Truncated {
		t.Fatalf("expected Truncated=true for oversized output")
	}
	if len(res.Content) <= maxToolOutputBytes {
		t.Fatalf("expected content to include truncation marker beyond cap")
	}
	_ = root
}

type fakeBigOutputTool struct{ BaseTool }

func (f *fakeBigOutputTool) Name() string { return "fake_big_output" }

func (f *fakeBigOutputTool) Execute(ctx context.Context, args api.Args) (api.ToolResult, error) {
	content := make([]byte, maxToolOutputBytes+10)
	for i := range content {
		content[i] = 'x'
	}
	return successText(string(content)), nil
}
