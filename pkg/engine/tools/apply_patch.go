package tools

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"vtcode/pkg/engine/api"
)

// ApplyPatchTool applies a multi-file unified diff in one shot. Each
// touched file is rewritten atomically (temp + rename) so a failure partway
// through a multi-hunk file never leaves it half-patched.
type ApplyPatchTool struct {
	BaseTool
	workspaceRoot string
}

// NewApplyPatchTool creates the apply_patch tool.
func NewApplyPatchTool(workspaceRoot string) *ApplyPatchTool {
	return &ApplyPatchTool{
		BaseTool: NewBaseTool(
			"apply_patch",
			"Apply a unified diff (as produced by `diff -u` or `git diff`) across one or more files in the workspace.",
			[]ParameterDef{
				{Name: "patch", Type: "string", Description: "Unified diff text, possibly touching multiple files", Required: true},
			},
			api.RiskHigh,
		),
		workspaceRoot: workspaceRoot,
	}
}

// PatchPaths extracts the files a patch will touch, for pre-mutation
// snapshotting by the caller (the registry's "path" convention only covers
// single-path tools; apply_patch reports its own set here).
func (t *ApplyPatchTool) PatchPaths(patchText string) []string {
	fileDiffs, err := diff.ParseMultiFileDiff([]byte(patchText))
	if err != nil {
		return nil
	}
	var paths []string
	for _, fd := range fileDiffs {
		if p := patchTargetPath(fd); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

func (t *ApplyPatchTool) Execute(ctx context.Context, args api.Args) (api.ToolResult, error) {
	patchText := GetStringArg(args, "patch", "")
	if patchText == "" {
		return toolFailed(api.ReasonInvalidArgs, fmt.Errorf("patch is required")), nil
	}

	fileDiffs, err := diff.ParseMultiFileDiff([]byte(patchText))
	if err != nil {
		return toolFailed(api.ReasonInvalidArgs, fmt.Errorf("invalid unified diff: %w", err)), nil
	}
	if len(fileDiffs) == 0 {
		return toolFailed(api.ReasonInvalidArgs, fmt.Errorf("patch contains no file diffs")), nil
	}

	var touched []string
	for _, fd := range fileDiffs {
		relPath := patchTargetPath(fd)
		if relPath == "" {
			return toolFailed(api.ReasonInvalidArgs, fmt.Errorf("could not determine target path for a hunk")), nil
		}

		absPath, err := resolvePathInWorkspace(t.workspaceRoot, relPath)
		if err != nil {
			return toolFailed(api.ReasonPermissionDenied, err), nil
		}

		isNewFile := fd.OrigName == "/dev/null"
		var original []byte
		if !isNewFile {
			original, err = os.ReadFile(absPath)
			if err != nil {
				if os.IsNotExist(err) {
					return toolFailed(api.ReasonNotFound, fmt.Errorf("file does not exist: %s", relPath)), nil
				}
				return toolFailed(api.ReasonIoError, err), nil
			}
		}

		updated, err := applyHunks(original, fd.Hunks)
		if err != nil {
			return toolFailed(api.ReasonInvalidArgs, fmt.Errorf("%s: %w", relPath, err)), nil
		}

		if fd.NewName == "/dev/null" {
			if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
				return toolFailed(api.ReasonIoError, err), nil
			}
			touched = append(touched, relPath)
			continue
		}

		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return toolFailed(api.ReasonIoError, err), nil
		}
		tmp := absPath + ".patch.tmp"
		if err := os.WriteFile(tmp, updated, 0644); err != nil {
			return toolFailed(api.ReasonIoError, err), nil
		}
		if err := os.Rename(tmp, absPath); err != nil {
			return toolFailed(api.ReasonIoError, err), nil
		}
		touched = append(touched, relPath)
	}

	return successText(fmt.Sprintf("✅ Patch applied to %d file(s): %s", len(touched), strings.Join(touched, ", "))), nil
}

// patchTargetPath picks the "b/" side of a diff unless it's a deletion, in
// which case it falls back to the "a/" side.
func patchTargetPath(fd *diff.FileDiff) string {
	name := fd.NewName
	if name == "/dev/null" {
		name = fd.OrigName
	}
	name = strings.TrimPrefix(name, "a/")
	name = strings.TrimPrefix(name, "b/")
	return name
}

// applyHunks rewrites original content by walking each hunk's body in
// order. A hunk's Body interleaves " " (context), "-" (removed), and "+"
// (added) lines; applying it means replacing the context+removed run with
// the context+added run at the hunk's recorded offset.
func applyHunks(original []byte, hunks []*diff.Hunk) ([]byte, error) {
	origLines := splitKeepNewline(original)
	var out bytes.Buffer
	cursor := 0 // index into origLines already copied to out

	for _, h := range hunks {
		start := int(h.OrigStartLine) - 1
		if h.OrigLines == 0 && h.OrigStartLine == 0 {
			start = 0
		}
		if start < cursor || start > len(origLines) {
			return nil, fmt.Errorf("hunk offset %d out of order or out of range", h.OrigStartLine)
		}
		// copy untouched lines before the hunk
		for ; cursor < start; cursor++ {
			out.WriteString(origLines[cursor])
		}

		scanner := bufio.NewScanner(bytes.NewReader(h.Body))
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			switch line[0] {
			case ' ':
				if cursor >= len(origLines) {
					return nil, fmt.Errorf("context line past end of file")
				}
				out.WriteString(origLines[cursor])
				cursor++
			case '-':
				if cursor >= len(origLines) {
					return nil, fmt.Errorf("removed line past end of file")
				}
				cursor++ // drop the original line
			case '+':
				out.WriteString(line[1:])
				out.WriteString("\n")
			case '\\':
				// "\ No newline at end of file" marker; nothing to apply.
			default:
				return nil, fmt.Errorf("unrecognized hunk line prefix %q", line[:1])
			}
		}
	}

	for ; cursor < len(origLines); cursor++ {
		out.WriteString(origLines[cursor])
	}

	return out.Bytes(), nil
}

func splitKeepNewline(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	var lines []string
	for len(data) > 0 {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			lines = append(lines, string(data))
			break
		}
		lines = append(lines, string(data[:idx+1]))
		data = data[idx+1:]
	}
	return lines
}

func (t *ApplyPatchTool) Preview(ctx context.Context, args api.Args) (*api.Preview, error) {
	patchText := GetStringArg(args, "patch", "")
	content := patchText
	if len(content) > 4000 {
		content = content[:4000] + "\n... (truncated)"
	}
	return &api.Preview{
		Kind:     api.PreviewDiff,
		Summary:  "Apply patch",
		Content:  content,
		Affected: t.PatchPaths(patchText),
		RiskHint: "This operation modifies files on disk.",
	}, nil
}
