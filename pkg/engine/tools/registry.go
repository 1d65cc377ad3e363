package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"vtcode/pkg/engine/api"
	"vtcode/pkg/engine/pty"
)

// maxToolOutputBytes bounds a single tool's reported output before the
// registry truncates it and marks the result Truncated.
const maxToolOutputBytes = 256 * 1024

// Registry manages a collection of tools
type Registry struct {
	mu             sync.RWMutex
	tools          map[string]Tool
	schemas        map[string]*jsonschema.Schema
	maxOutputBytes int
}

// NewRegistry creates a new empty tool registry
func NewRegistry() *Registry {
	return &Registry{
		tools:          make(map[string]Tool),
		maxOutputBytes: maxToolOutputBytes,
	}
}

// SetMaxOutputBytes overrides the truncation cap applied to tool output,
// normally sourced from Config.MaxToolOutputBytes.
func (r *Registry) SetMaxOutputBytes(n int) {
	if n > 0 {
		r.maxOutputBytes = n
	}
}

// Register adds a tool to the registry
// Returns an error if a tool with the same name already exists
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool already registered: %s", name)
	}

	r.tools[name] = tool
	return nil
}

// MustRegister adds a tool to the registry, panicking on error
func (r *Registry) MustRegister(tool Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	return tool, ok
}

// All returns all registered tools
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		result = append(result, tool)
	}

	// Sort by name for consistent ordering
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})

	return result
}

// Names returns all registered tool names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// compiledSchema lazily compiles and caches a tool's JSON schema so repeated
// Execute calls don't re-parse it.
func (r *Registry) compiledSchema(tool Tool) (*jsonschema.Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.schemas == nil {
		r.schemas = map[string]*jsonschema.Schema{}
	}
	if sch, ok := r.schemas[tool.Name()]; ok {
		return sch, nil
	}

	c := jsonschema.NewCompiler()
	url := "mem://tools/" + tool.Name() + ".json"
	if err := c.AddResource(url, tool.Schema().Parameters); err != nil {
		return nil, err
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, err
	}
	r.schemas[tool.Name()] = sch
	return sch, nil
}

// Execute implements toolpipeline.Executor: look up the tool, validate its
// arguments against its declared JSON schema, dispatch, and normalize a
// truncated/oversized result. Policy decisions and approval are handled one
// layer up, in the TurnRunner, before this is ever called.
func (r *Registry) Execute(ctx context.Context, callID, name string, args api.Args) api.ToolResult {
	tool, ok := r.Get(name)
	if !ok {
		return api.ToolResult{CallID: callID, Status: api.StatusFailed, Reason: api.ReasonUnknownTool, Error: fmt.Sprintf("unknown tool: %s", name)}
	}

	if sch, err := r.compiledSchema(tool); err == nil {
		payload, marshalErr := json.Marshal(args)
		if marshalErr == nil {
			var instance any
			if err := json.Unmarshal(payload, &instance); err == nil {
				if err := sch.Validate(instance); err != nil {
					return api.ToolResult{CallID: callID, Status: api.StatusFailed, Reason: api.ReasonInvalidArgs, Error: err.Error()}
				}
			}
		}
	}

	result, err := tool.Execute(ctx, args)
	if err != nil {
		return api.ToolResult{CallID: callID, Status: api.StatusFailed, Reason: api.ReasonInternalInvariant, Error: err.Error()}
	}
	result.CallID = callID

	if len(result.Content) > r.maxOutputBytes {
		result.Content = result.Content[:r.maxOutputBytes] + "\n... (truncated)"
		result.Truncated = true
	}
	return result
}

// DefaultRegistryConfig wires the tools whose constructors need shared
// infrastructure (a PTY manager, a web_fetch allowlist) rather than just a
// workspace root.
type DefaultRegistryConfig struct {
	WorkspaceRoot string
	PtyManager    *pty.Manager
	WebFetchHosts []string
}

// DefaultRegistry creates a registry with all built-in tools.
func DefaultRegistry(cfg DefaultRegistryConfig) *Registry {
	r := NewRegistry()

	// File tools
	r.MustRegister(NewLsTool(cfg.WorkspaceRoot))
	r.MustRegister(NewReadFileTool(cfg.WorkspaceRoot))
	r.MustRegister(NewWriteFileTool(cfg.WorkspaceRoot))
	r.MustRegister(NewEditFileTool(cfg.WorkspaceRoot))
	r.MustRegister(NewApplyPatchTool(cfg.WorkspaceRoot))

	// Search tools
	r.MustRegister(NewGlobTool(cfg.WorkspaceRoot))
	r.MustRegister(NewGrepTool(cfg.WorkspaceRoot))

	// Diagnostics tools
	r.MustRegister(NewLSPDiagnosticsTool(cfg.WorkspaceRoot))

	// PTY tools
	r.MustRegister(NewShellTool(cfg.WorkspaceRoot, cfg.PtyManager))
	r.MustRegister(NewCreatePtySessionTool(cfg.PtyManager))
	r.MustRegister(NewWritePtySessionTool(cfg.PtyManager))
	r.MustRegister(NewReadPtySessionTool(cfg.PtyManager))
	r.MustRegister(NewClosePtySessionTool(cfg.PtyManager))

	// Network
	r.MustRegister(NewWebFetchTool(cfg.WebFetchHosts))

	return r
}
