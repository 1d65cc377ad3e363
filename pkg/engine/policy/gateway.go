package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"vtcode/pkg/engine/api"
	"vtcode/pkg/logger"
)

// builtinFullAutoAllow is the default set of tools that remain callable
// under AutomationFullAuto. Read-only and bookkeeping tools only; anything
// that mutates the filesystem or spawns a process stays gated.
var builtinFullAutoAllow = map[string]bool{
	"read_file":    true,
	"list_files":   true,
	"file_search":  true,
	"grep_file":    true,
	"update_plan":  true,
	"read_todos":   true,
	"write_todos":  true,
	"read_memory":  true,
	"list_skills":  true,
	"read_skill":   true,
}

// Gateway is the persisted per-tool ToolPolicyGateway described in the core
// design: an in-memory decision map guarded by a single mutex, mirrored
// atomically to disk, and hot-reloaded when another process edits the file.
//
// Gateway also implements the legacy Policy interface (Filter/NeedApproval/
// Validate) so it drops into runtime.EngineConfig in place of DefaultPolicy.
type Gateway struct {
	mu       sync.Mutex
	path     string
	doc      api.ToolPolicyDocument
	watcher  *fsnotify.Watcher
	onChange func(tool string, decision api.PolicyDecision)
}

// NewGateway loads (or initializes) the policy document at path and starts
// watching it for external changes.
func NewGateway(path string) (*Gateway, error) {
	g := &Gateway{
		path: path,
		doc: api.ToolPolicyDocument{
			Version: 1,
			Tools:   map[string]api.PolicyDecision{},
		},
	}
	if err := g.load(); err != nil {
		return nil, err
	}
	if err := g.persist(); err != nil {
		return nil, err
	}
	if watcher, err := fsnotify.NewWatcher(); err == nil {
		g.watcher = watcher
		if err := watcher.Add(filepath.Dir(path)); err == nil {
			go g.watchLoop()
		}
	}
	return g, nil
}

func (g *Gateway) watchLoop() {
	for {
		select {
		case ev, ok := <-g.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(g.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			g.mu.Lock()
			err := g.load()
			g.mu.Unlock()
			if err != nil {
				logger.Warn("policy", "reload failed", map[string]interface{}{"err": err.Error()})
			}
		case err, ok := <-g.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("policy", "watcher error", map[string]interface{}{"err": err.Error()})
		}
	}
}

// Close stops the file watcher. Safe to call on a nil watcher.
func (g *Gateway) Close() error {
	if g.watcher != nil {
		return g.watcher.Close()
	}
	return nil
}

func (g *Gateway) load() error {
	data, err := os.ReadFile(g.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read policy file: %w", err)
	}
	var doc api.ToolPolicyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse policy file: %w", err)
	}
	if doc.Tools == nil {
		doc.Tools = map[string]api.PolicyDecision{}
	}
	g.doc = doc
	return nil
}

// persist must be called with g.mu held.
func (g *Gateway) persist() error {
	if err := os.MkdirAll(filepath.Dir(g.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(g.doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := g.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, g.path)
}

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// ToolPolicyGateway operations
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

// Decide returns the persisted decision for a tool, applying the global
// automation mode override first.
func (g *Gateway) Decide(name string) api.PolicyDecision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decideLocked(name)
}

func (g *Gateway) decideLocked(name string) api.PolicyDecision {
	if g.doc.Mode == api.AutomationFullAuto {
		if builtinFullAutoAllow[name] {
			return api.PolicyAllow
		}
		return api.PolicyDeny
	}
	if g.doc.Mode == api.AutomationReadOnly {
		if builtinFullAutoAllow[name] {
			return api.PolicyAllow
		}
		return api.PolicyDeny
	}
	if d, ok := g.doc.Tools[name]; ok {
		return d
	}
	return api.PolicyPrompt
}

// SetPolicy persists a decision for a tool and notifies any registered
// observer (used to push a policy-change event to the UI).
func (g *Gateway) SetPolicy(name string, decision api.PolicyDecision) error {
	g.mu.Lock()
	g.doc.Tools[name] = decision
	err := g.persist()
	onChange := g.onChange
	g.mu.Unlock()
	if err == nil && onChange != nil {
		onChange(name, decision)
	}
	return err
}

// OnChange registers a callback invoked after every successful SetPolicy.
func (g *Gateway) OnChange(fn func(tool string, decision api.PolicyDecision)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onChange = fn
}

// ResetAllToPrompt clears every per-tool override back to Prompt.
func (g *Gateway) ResetAllToPrompt() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.doc.Tools = map[string]api.PolicyDecision{}
	return g.persist()
}

// AllowAll sets every currently-known tool name to Allow.
func (g *Gateway) AllowAll(names []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, n := range names {
		g.doc.Tools[n] = api.PolicyAllow
	}
	return g.persist()
}

// DenyAll sets every currently-known tool name to Deny.
func (g *Gateway) DenyAll(names []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, n := range names {
		g.doc.Tools[n] = api.PolicyDeny
	}
	return g.persist()
}

// SetMcpAllowlist replaces the MCP tool allowlist.
func (g *Gateway) SetMcpAllowlist(names []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.doc.McpAllowlist = names
	return g.persist()
}

// SetMode sets the global automation mode override.
func (g *Gateway) SetMode(mode api.AutomationMode) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.doc.Mode = mode
	return g.persist()
}

// ApplyConfig bulk-overlays a config-provided tool map; config wins over
// stored where both set a decision for the same tool.
func (g *Gateway) ApplyConfig(overlay map[string]api.PolicyDecision) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for name, decision := range overlay {
		g.doc.Tools[name] = decision
	}
	return g.persist()
}

// Snapshot returns a read-only copy of the current document.
func (g *Gateway) Snapshot() api.ToolPolicyDocument {
	g.mu.Lock()
	defer g.mu.Unlock()
	toolsCopy := make(map[string]api.PolicyDecision, len(g.doc.Tools))
	for k, v := range g.doc.Tools {
		toolsCopy[k] = v
	}
	return api.ToolPolicyDocument{
		Version:      g.doc.Version,
		Tools:        toolsCopy,
		McpAllowlist: append([]string(nil), g.doc.McpAllowlist...),
		Mode:         g.doc.Mode,
	}
}

// IsMcpAllowed reports whether an MCP-provided tool name is on the
// allowlist; unlisted MCP tools default to Prompt per the decision table.
func (g *Gateway) IsMcpAllowed(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, n := range g.doc.McpAllowlist {
		if n == name {
			return true
		}
	}
	return false
}

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// Legacy Policy interface adapter
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

// Filter returns tools visible to the LLM based on policy context, matching
// DefaultPolicy's allowlist behavior for skill-scoped tool sets.
func (g *Gateway) Filter(ctx context.Context, pctx api.PolicyContext, tools []Tool) []Tool {
	if len(pctx.AllowedTools) == 0 {
		return tools
	}
	allowedMap := make(map[string]bool, len(pctx.AllowedTools))
	for _, name := range pctx.AllowedTools {
		allowedMap[name] = true
	}
	var filtered []Tool
	for _, t := range tools {
		if allowedMap[t.Name()] || api.IsSystemTool(t.Name()) {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

// NeedApproval reports whether the decided policy for this tool is Prompt.
func (g *Gateway) NeedApproval(ctx context.Context, pctx api.PolicyContext, tool Tool, args api.Args) bool {
	return g.Decide(tool.Name()) == api.PolicyPrompt
}

// Validate enforces the skill allowed-tools constraint and workspace
// boundary, then converts a persisted Deny decision into a PolicyError.
func (g *Gateway) Validate(ctx context.Context, pctx api.PolicyContext, tool Tool, args api.Args) error {
	toolName := tool.Name()

	if len(pctx.AllowedTools) > 0 && !api.IsSystemTool(toolName) {
		allowed := false
		for _, name := range pctx.AllowedTools {
			if name == toolName {
				allowed = true
				break
			}
		}
		if !allowed {
			return &PolicyError{Code: api.ErrPolicyDenied, Message: fmt.Sprintf("tool %q not in skill allowed-tools", toolName)}
		}
	}

	if path, ok := args["path"].(string); ok && pctx.WorkspaceRoot != "" {
		if err := (&DefaultPolicy{}).validatePath(path, pctx.WorkspaceRoot); err != nil {
			return err
		}
	}

	if g.Decide(toolName) == api.PolicyDeny {
		return &PolicyError{Code: api.ErrPolicyDenied, Message: fmt.Sprintf("tool %q is denied by policy", toolName)}
	}

	return nil
}
