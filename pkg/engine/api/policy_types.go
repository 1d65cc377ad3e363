package api

import "time"

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// Tool Policy
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

// PolicyDecision is a per-tool authorization state.
type PolicyDecision string

const (
	PolicyAllow  PolicyDecision = "allow"
	PolicyDeny   PolicyDecision = "deny"
	PolicyPrompt PolicyDecision = "prompt"
)

// AutomationMode overrides per-tool policy for non-interactive runs.
type AutomationMode string

const (
	AutomationNone         AutomationMode = ""
	AutomationReadOnly     AutomationMode = "read_only"
	AutomationWriteAllowed AutomationMode = "write_allowed"
	AutomationFullAuto     AutomationMode = "full_auto"
)

// ToolPolicyDocument is the on-disk and in-memory representation of
// persisted tool policy: a per-tool decision map plus an MCP allowlist.
type ToolPolicyDocument struct {
	Version      int                       `json:"version"`
	Tools        map[string]PolicyDecision `json:"tools"`
	McpAllowlist []string                  `json:"mcp_allowlist,omitempty"`
	Mode         AutomationMode            `json:"mode,omitempty"`
}

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// Snapshot
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

// SnapshotFile records one file's pre-mutation state within a turn.
type SnapshotFile struct {
	Path        string `json:"path"`
	Hash        string `json:"hash,omitempty"` // sha256 of original content; empty for tombstone
	WasNew      bool   `json:"was_new"`         // true => file did not exist before the turn
	SizeBytes   int64  `json:"size_bytes"`
}

// SnapshotEntry is the metadata record for one turn's captured file state.
type SnapshotEntry struct {
	TurnIndex int            `json:"turn_index"`
	Timestamp time.Time      `json:"timestamp"`
	Files     []SnapshotFile `json:"files"`
}

// SnapshotSummary is the list-view projection of a SnapshotEntry.
type SnapshotSummary struct {
	TurnIndex   int       `json:"turn_index"`
	Timestamp   time.Time `json:"timestamp"`
	FileCount   int       `json:"file_count"`
	TotalBytes  int64     `json:"total_bytes"`
}

// RestoreScope selects what a revert operation restores.
type RestoreScope string

const (
	RestoreFiles    RestoreScope = "files"
	RestoreMessages RestoreScope = "messages"
	RestoreBoth     RestoreScope = "both"
)

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// PTY
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

// PtyCommandRequest describes a one-shot or session-oriented PTY invocation.
type PtyCommandRequest struct {
	Program     string            `json:"program"`
	Args        []string          `json:"args,omitempty"`
	WorkingDir  string            `json:"working_dir,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	Rows        int               `json:"rows,omitempty"`
	Cols        int               `json:"cols,omitempty"`
	Timeout     time.Duration     `json:"timeout,omitempty"`
	StdinChunks []string          `json:"stdin_chunks,omitempty"`
}

// PtyCommandResult is the outcome of a PTY-backed command.
type PtyCommandResult struct {
	ExitCode  int    `json:"exit_code"`
	Signal    string `json:"signal,omitempty"`
	Stdout    []byte `json:"stdout"`
	TimedOut  bool   `json:"timed_out"`
	Truncated bool   `json:"truncated"`
}
