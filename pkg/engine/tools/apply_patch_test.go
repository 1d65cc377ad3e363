package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"vtcode/pkg/engine/api"
)

func TestApplyPatchTool_ModifiesExistingFile(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "greet.txt")
	if err := os.WriteFile(target, []byte("hello\nworld\n"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	patch := "--- a/greet.txt\n" +
		"+++ b/greet.txt\n" +
		"@@ -1,2 +1,2 @@\n" +
		" hello\n" +
		"-world\n" +
		"+go\n"

	tool := NewApplyPatchTool(root)
	res, err := tool.Execute(context.Background(), map[string]any{"patch": patch})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != api.StatusCompleted {
		t.Fatalf("expected completed status, got %q (%s)", res.Status, res.Error)
	}

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read patched file: %v", err)
	}
	if want := "hello\ngo\n"; string(got) != want {
		t.Fatalf("patched content mismatch: got=%q want=%q", string(got), want)
	}
}

func TestApplyPatchTool_PatchPathsCoversAllFiles(t *testing.T) {
	root := t.TempDir()
	patch := "--- a/one.txt\n" +
		"+++ b/one.txt\n" +
		"@@ -1 +1 @@\n" +
		"-a\n" +
		"+b\n" +
		"--- a/two.txt\n" +
		"+++ b/two.txt\n" +
		"@@ -1 +1 @@\n" +
		"-c\n" +
		"+d\n"

	tool := NewApplyPatchTool(root)
	paths := tool.PatchPaths(patch)
	if len(paths) != 2 || paths[0] != "one.txt" || paths[1] != "two.txt" {
		t.Fatalf("unexpected patch paths: %v", paths)
	}
}

func TestApplyPatchTool_RejectsEmptyPatch(t *testing.T) {
	tool := NewApplyPatchTool(t.TempDir())
	res, err := tool.Execute(context.Background(), map[string]any{"patch": ""})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != api.StatusFailed {
		t.Fatalf("expected failed status for empty patch, got %q", res.Status)
	}
}
