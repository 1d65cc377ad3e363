package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"vtcode/pkg/engine/api"
)

// WriteFileTool creates, overwrites, or appends to files.
type WriteFileTool struct {
	BaseTool
	workspaceRoot string
}

// NewWriteFileTool creates a new write_file tool
func NewWriteFileTool(workspaceRoot string) *WriteFileTool {
	return &WriteFileTool{
		BaseTool: NewBaseTool(
			"write_file",
			"Create a new file or write to an existing file with the specified content. Creates parent directories if needed.",
			[]ParameterDef{
				{Name: "path", Type: "string", Description: "Path to the file to write (relative to workspace)", Required: true},
				{Name: "content", Type: "string", Description: "Content to write to the file", Required: true},
				{Name: "mode", Type: "string", Description: "overwrite (default) | append | skip_if_exists", Required: false},
			},
			api.RiskHigh,
		),
		workspaceRoot: workspaceRoot,
	}
}

func (t *WriteFileTool) Execute(ctx context.Context, args api.Args) (api.ToolResult, error) {
	path := GetStringArg(args, "path", "")
	if path == "" {
		return toolFailed(api.ReasonInvalidArgs, fmt.Errorf("path is required")), nil
	}

	content := GetStringArg(args, "content", "")
	mode := GetStringArg(args, "mode", "overwrite")
	switch mode {
	case "overwrite", "append", "skip_if_exists":
	default:
		return toolFailed(api.ReasonInvalidArgs, fmt.Errorf("invalid mode: %s", mode)), nil
	}

	// Resolve path
	absPath, err := resolvePathInWorkspace(t.workspaceRoot, path)
	if err != nil {
		return toolFailed(api.ReasonPermissionDenied, err), nil
	}

	_, statErr := os.Stat(absPath)
	fileExists := statErr == nil

	if mode == "skip_if_exists" && fileExists {
		return successText("⏭️  File already exists, skipped: " + path), nil
	}

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return toolFailed(api.ReasonIoError, fmt.Errorf("failed to create directory %s: %w", dir, err)), nil
	}

	if mode == "append" {
		f, err := os.OpenFile(absPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return toolFailed(api.ReasonIoError, err), nil
		}
		defer f.Close()
		if _, err := f.WriteString(content); err != nil {
			return toolFailed(api.ReasonIoError, err), nil
		}
		return successText("✅ Appended to file: " + path), nil
	}

	if err := os.WriteFile(absPath, []byte(content), 0644); err != nil {
		return toolFailed(api.ReasonIoError, err), nil
	}

	if fileExists {
		return successText("✅ File overwritten: " + path), nil
	}
	return successText("✅ File created: " + path), nil
}

func (t *WriteFileTool) Preview(ctx context.Context, args api.Args) (*api.Preview, error) {
	path := GetStringArg(args, "path", "")
	content := GetStringArg(args, "content", "")

	absPath, err := resolvePathInWorkspace(t.workspaceRoot, path)
	if err != nil {
		absPath = "<invalid path: " + err.Error() + ">"
	}

	preview := content
	if len(preview) > 1000 {
		preview = preview[:1000] + "\n... (truncated)"
	}

	return &api.Preview{
		Kind:     api.PreviewDiff,
		Summary:  "Write file: " + path,
		Content:  preview,
		Affected: []string{absPath},
		RiskHint: "This operation modifies files on disk.",
	}, nil
}
