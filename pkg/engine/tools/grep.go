package tools

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"vtcode/pkg/engine/api"
)

// GrepTool searches for text patterns in files. It prefers shelling out to
// `rg` (ripgrep) when available on PATH, and falls back to the embedded
// line-scanning engine otherwise.
type GrepTool struct {
	BaseTool
	workspaceRoot string
	maxResults    int
	maxFileSize   int64
}

// NewGrepTool creates a new grep_file tool.
func NewGrepTool(workspaceRoot string) *GrepTool {
	return &GrepTool{
		BaseTool: NewBaseTool(
			"grep_file",
			"Search for text patterns in files. Prefers ripgrep when installed; returns matching lines with file paths and line numbers.",
			[]ParameterDef{
				{Name: "pattern", Type: "string", Description: "Text or regex pattern to search for", Required: true},
				{Name: "path", Type: "string", Description: "File or directory to search in (default: workspace root)", Required: false},
				{Name: "glob", Type: "string", Description: "File glob pattern to include (e.g., *.go, *.js)", Required: false},
				{Name: "literal", Type: "boolean", Description: "Treat pattern as a literal string, not a regex", Required: false},
				{Name: "case_sensitive", Type: "boolean", Description: "Case-sensitive search (default: true)", Required: false},
				{Name: "context_lines", Type: "integer", Description: "Lines of context before/after each match", Required: false},
				{Name: "max_results", Type: "integer", Description: "Maximum number of matches to return (default: 50)", Required: false},
			},
			api.RiskNone,
		),
		workspaceRoot: workspaceRoot,
		maxResults:    50,
		maxFileSize:   1024 * 1024, // 1MB
	}
}

// GrepMatch represents a single search match
type GrepMatch struct {
	File    string
	Line    int
	Content string
}

func (t *GrepTool) Execute(ctx context.Context, args api.Args) (api.ToolResult, error) {
	pattern := GetStringArg(args, "pattern", "")
	if pattern == "" {
		return toolFailed(api.ReasonInvalidArgs, fmt.Errorf("pattern is required")), nil
	}

	searchPath := GetStringArg(args, "path", ".")
	glob := GetStringArg(args, "glob", "")
	literal := GetBoolArg(args, "literal", false)
	caseSensitive := GetBoolArg(args, "case_sensitive", true)
	contextLines := GetIntArg(args, "context_lines", 0)
	maxResults := GetIntArg(args, "max_results", t.maxResults)

	absPath, err := resolvePathInWorkspace(t.workspaceRoot, searchPath)
	if err != nil {
		return toolFailed(api.ReasonPermissionDenied, err), nil
	}

	if rgPath, err := exec.LookPath("rg"); err == nil {
		out, ok := t.runRipgrep(ctx, rgPath, pattern, absPath, glob, literal, caseSensitive, contextLines, maxResults)
		if ok {
			return out, nil
		}
		// fall through to embedded engine on any rg failure (e.g. binary-only tree)
	}

	return t.embeddedSearch(pattern, absPath, glob, literal, caseSensitive, maxResults), nil
}

func (t *GrepTool) runRipgrep(ctx context.Context, rgPath, pattern, absPath, glob string, literal, caseSensitive bool, contextLines, maxResults int) (api.ToolResult, bool) {
	rgArgs := []string{"--line-number", "--no-heading", "--color=never"}
	if literal {
		rgArgs = append(rgArgs, "--fixed-strings")
	}
	if !caseSensitive {
		rgArgs = append(rgArgs, "--ignore-case")
	}
	if contextLines > 0 {
		rgArgs = append(rgArgs, "--context", fmt.Sprintf("%d", contextLines))
	}
	if glob != "" {
		rgArgs = append(rgArgs, "--glob", glob)
	}
	rgArgs = append(rgArgs, "--max-count", fmt.Sprintf("%d", maxResults))
	rgArgs = append(rgArgs, pattern, absPath)

	cmd := exec.CommandContext(ctx, rgPath, rgArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// exit code 1 means "no matches" for rg, which is a valid empty result.
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return successText("No matches found for pattern: " + pattern), true
		}
		return api.ToolResult{}, false
	}

	rootAbs, _ := filepath.Abs(t.workspaceRoot)
	lines := strings.Split(strings.TrimRight(stdout.String(), "\n"), "\n")
	if len(lines) > maxResults {
		lines = lines[:maxResults]
	}
	rel := make([]string, 0, len(lines))
	for _, l := range lines {
		rel = append(rel, strings.TrimPrefix(l, rootAbs+string(filepath.Separator)))
	}
	if len(rel) == 0 {
		return successText("No matches found for pattern: " + pattern), true
	}
	return successText(strings.Join(rel, "\n")), true
}

func (t *GrepTool) embeddedSearch(pattern, absPath, glob string, literal, caseSensitive bool, maxResults int) api.ToolResult {
	rootAbs, _ := filepath.Abs(t.workspaceRoot)

	searchPattern := pattern
	if literal {
		searchPattern = regexp.QuoteMeta(pattern)
	}
	if !caseSensitive {
		searchPattern = "(?i)" + searchPattern
	}
	re, err := regexp.Compile(searchPattern)
	if err != nil {
		re = regexp.MustCompile(regexp.QuoteMeta(pattern))
	}

	var files []string
	info, err := os.Stat(absPath)
	if err != nil {
		return toolFailed(api.ReasonNotFound, fmt.Errorf("path not found: %s", absPath))
	}

	if info.IsDir() {
		files, err = t.collectFiles(absPath, glob)
		if err != nil {
			return toolFailed(api.ReasonIoError, err)
		}
	} else {
		files = []string{absPath}
	}

	var matches []GrepMatch
	for _, file := range files {
		if len(matches) >= maxResults {
			break
		}
		fileMatches, err := t.searchFile(file, re)
		if err != nil {
			continue
		}
		matches = append(matches, fileMatches...)
	}

	if len(matches) == 0 {
		return successText("No matches found for pattern: " + pattern)
	}

	var output strings.Builder
	for i, m := range matches {
		if i >= maxResults {
			output.WriteString(fmt.Sprintf("\n... (showing first %d matches)", maxResults))
			break
		}
		rel, _ := filepath.Rel(rootAbs, m.File)
		output.WriteString(fmt.Sprintf("%s:%d: %s\n", rel, m.Line, strings.TrimSpace(m.Content)))
	}

	return successText(output.String())
}

func (t *GrepTool) collectFiles(dir, include string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}

		if info.IsDir() {
			name := info.Name()
			if strings.HasPrefix(name, ".") && name != "." {
				return filepath.SkipDir
			}
			if name == "node_modules" || name == "vendor" || name == "__pycache__" {
				return filepath.SkipDir
			}
			return nil
		}

		if info.Size() > t.maxFileSize {
			return nil
		}

		if include != "" {
			matched, _ := filepath.Match(include, info.Name())
			if !matched {
				return nil
			}
		}

		if t.isBinaryFile(path) {
			return nil
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

func (t *GrepTool) searchFile(path string, re *regexp.Regexp) ([]GrepMatch, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var matches []GrepMatch
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if re.MatchString(line) {
			matches = append(matches, GrepMatch{
				File:    path,
				Line:    lineNum,
				Content: line,
			})

			if len(matches) >= 10 {
				break
			}
		}
	}

	return matches, scanner.Err()
}

func (t *GrepTool) isBinaryFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	binaryExts := map[string]bool{
		".exe": true, ".bin": true, ".so": true, ".dylib": true,
		".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
		".pdf": true, ".zip": true, ".tar": true, ".gz": true,
		".mp3": true, ".mp4": true, ".avi": true, ".mov": true,
		".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	}
	return binaryExts[ext]
}
