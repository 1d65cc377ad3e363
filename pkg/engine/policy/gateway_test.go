package policy

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"vtcode/pkg/engine/api"
)

type stubTool struct{ name string }

func (s stubTool) Name() string { return s.name }

func TestGateway_SetPolicy_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	g, err := NewGateway(filepath.Join(dir, "tool_policy.json"))
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	defer g.Close()

	if got := g.Decide("run_terminal_cmd"); got != api.PolicyPrompt {
		t.Fatalf("default decision = %v, want Prompt", got)
	}

	if err := g.SetPolicy("run_terminal_cmd", api.PolicyDeny); err != nil {
		t.Fatalf("SetPolicy: %v", err)
	}
	if got := g.Decide("run_terminal_cmd"); got != api.PolicyDeny {
		t.Fatalf("decision after SetPolicy = %v, want Deny", got)
	}

	// A second Gateway reading the same path must observe the persisted decision.
	g2, err := NewGateway(filepath.Join(dir, "tool_policy.json"))
	if err != nil {
		t.Fatalf("NewGateway #2: %v", err)
	}
	defer g2.Close()
	if got := g2.Decide("run_terminal_cmd"); got != api.PolicyDeny {
		t.Fatalf("reloaded decision = %v, want Deny", got)
	}
}

func TestGateway_FullAutoMode_OnlyAllowsBuiltinAllowlist(t *testing.T) {
	dir := t.TempDir()
	g, err := NewGateway(filepath.Join(dir, "tool_policy.json"))
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	defer g.Close()

	if err := g.SetMode(api.AutomationFullAuto); err != nil {
		t.Fatalf("SetMode: %v", err)
	}

	if got := g.Decide("read_file"); got != api.PolicyAllow {
		t.Fatalf("read_file under full-auto = %v, want Allow", got)
	}
	if got := g.Decide("run_terminal_cmd"); got != api.PolicyDeny {
		t.Fatalf("run_terminal_cmd under full-auto = %v, want Deny", got)
	}
}

func TestGateway_Validate_DenyProducesPolicyError(t *testing.T) {
	dir := t.TempDir()
	g, err := NewGateway(filepath.Join(dir, "tool_policy.json"))
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	defer g.Close()

	pctx := api.PolicyContext{AllowedTools: []string{"read_file"}}
	err = g.Validate(context.Background(), pctx, stubTool{name: "write_file"}, api.Args{})
	if err == nil {
		t.Fatalf("expected Validate to reject a tool outside AllowedTools")
	}
	var perr *PolicyError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want *PolicyError", err)
	}
	if perr.Code != api.ErrPolicyDenied {
		t.Fatalf("code = %q, want %q", perr.Code, api.ErrPolicyDenied)
	}
}

func TestGateway_Validate_WorkspaceEscapeRejected(t *testing.T) {
	dir := t.TempDir()
	g, err := NewGateway(filepath.Join(dir, "tool_policy.json"))
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	defer g.Close()

	pctx := api.PolicyContext{WorkspaceRoot: filepath.Join(dir, "workspace")}
	err = g.Validate(context.Background(), pctx, stubTool{name: "read_file"}, api.Args{"path": "../../etc/passwd"})
	if err == nil {
		t.Fatalf("expected a workspace-escape error")
	}
	var perr *PolicyError
	if !errors.As(err, &perr) || perr.Code != api.ErrWorkspaceEscape {
		t.Fatalf("error = %v, want *PolicyError{Code: ErrWorkspaceEscape}", err)
	}
}
