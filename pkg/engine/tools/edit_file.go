package tools

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"vtcode/pkg/engine/api"
)

// EditFileTool makes targeted, whitespace-tolerant edits to existing files.
type EditFileTool struct {
	BaseTool
	workspaceRoot string
}

// NewEditFileTool creates a new edit_file tool
func NewEditFileTool(workspaceRoot string) *EditFileTool {
	return &EditFileTool{
		BaseTool: NewBaseTool(
			"edit_file",
			"Make targeted edits to an existing file by replacing specific text. More precise than write_file for modifications. old_str must match exactly once.",
			[]ParameterDef{
				{Name: "path", Type: "string", Description: "Path to the file to edit (relative to workspace)", Required: true},
				{Name: "old_str", Type: "string", Description: "Exact text to find and replace (whitespace differences are tolerated)", Required: true},
				{Name: "new_str", Type: "string", Description: "Text to replace old_str with", Required: true},
			},
			api.RiskHigh,
		),
		workspaceRoot: workspaceRoot,
	}
}

func (t *EditFileTool) Execute(ctx context.Context, args api.Args) (api.ToolResult, error) {
	path := GetStringArg(args, "path", "")
	if path == "" {
		return toolFailed(api.ReasonInvalidArgs, fmt.Errorf("path is required")), nil
	}

	oldStr := GetStringArg(args, "old_str", "")
	if oldStr == "" {
		return toolFailed(api.ReasonInvalidArgs, fmt.Errorf("old_str is required")), nil
	}

	newStr := GetStringArg(args, "new_str", "")

	absPath, err := resolvePathInWorkspace(t.workspaceRoot, path)
	if err != nil {
		return toolFailed(api.ReasonPermissionDenied, err), nil
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return toolFailed(api.ReasonNotFound, fmt.Errorf("file does not exist: %s", path)), nil
		}
		return toolFailed(api.ReasonIoError, err), nil
	}
	contentStr := string(content)

	matchStart, matchLen, count := findWhitespaceTolerant(contentStr, oldStr)
	if count == 0 {
		return toolFailed(api.ReasonInvalidArgs, fmt.Errorf("old_str not found in file (even allowing for whitespace differences)")), nil
	}
	if count > 1 {
		return toolFailed(api.ReasonInvalidArgs, fmt.Errorf("old_str matches %d times in file; it must be unique, provide more context", count)), nil
	}

	newContent := contentStr[:matchStart] + newStr + contentStr[matchStart+matchLen:]

	if err := os.WriteFile(absPath, []byte(newContent), 0644); err != nil {
		return toolFailed(api.ReasonIoError, err), nil
	}

	return successText(fmt.Sprintf("✅ File edited: %s\nReplaced %d bytes with %d bytes", path, matchLen, len(newStr))), nil
}

// findWhitespaceTolerant looks for an exact substring match first; if that
// fails, it collapses runs of whitespace in both old_str and the haystack to
// a single space and retries. Returns the byte offset and length of the
// match in the ORIGINAL content, plus how many matches were found.
func findWhitespaceTolerant(content, oldStr string) (start, length, count int) {
	if idx := strings.Index(content, oldStr); idx >= 0 {
		count = strings.Count(content, oldStr)
		return idx, len(oldStr), count
	}

	pattern := regexp.QuoteMeta(oldStr)
	pattern = regexp.MustCompile(`\s+`).ReplaceAllString(pattern, `\s+`)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, 0, 0
	}
	matches := re.FindAllStringIndex(content, -1)
	if len(matches) != 1 {
		return 0, 0, len(matches)
	}
	return matches[0][0], matches[0][1] - matches[0][0], 1
}

func (t *EditFileTool) Preview(ctx context.Context, args api.Args) (*api.Preview, error) {
	path := GetStringArg(args, "path", "")
	oldStr := GetStringArg(args, "old_str", "")
	newStr := GetStringArg(args, "new_str", "")

	absPath, err := resolvePathInWorkspace(t.workspaceRoot, path)
	pathPreview := absPath
	if err != nil {
		pathPreview = "<invalid path: " + err.Error() + ">"
	}

	var diffBuilder strings.Builder
	for _, line := range strings.Split(oldStr, "\n") {
		diffBuilder.WriteString("- " + line + "\n")
	}
	for _, line := range strings.Split(newStr, "\n") {
		diffBuilder.WriteString("+ " + line + "\n")
	}

	diffText := diffBuilder.String()
	if len(diffText) > 4000 {
		diffText = diffText[:4000] + "\n... (truncated)"
	}

	return &api.Preview{
		Kind:     api.PreviewDiff,
		Summary:  "Edit file: " + path,
		Content:  diffText,
		Affected: []string{pathPreview},
		RiskHint: fmt.Sprintf("Replacing %d bytes with %d bytes", len(oldStr), len(newStr)),
	}, nil
}
