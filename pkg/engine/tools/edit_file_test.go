package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"vtcode/pkg/engine/api"
)

func TestEditFileTool_ExactMatch(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "file.go")
	if err := os.WriteFile(target, []byte("func main() {\n\tfmt.Println(\"hi\")\n}\n"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	tool := NewEditFileTool(root)
	res, err := tool.Execute(context.Background(), map[string]any{
		"path":    "file.go",
		"old_str": "fmt.Println(\"hi\")",
		"new_str": "fmt.Println(\"bye\")",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != api.StatusCompleted {
		t.Fatalf("expected completed status, got %q: %s", res.Status, res.Error)
	}

	got, _ := os.ReadFile(target)
	if want := "func main() {\n\tfmt.Println(\"bye\")\n}\n"; string(got) != want {
		t.Fatalf("content mismatch: got=%q want=%q", string(got), want)
	}
}

func TestEditFileTool_WhitespaceTolerantMatch(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "file.go")
	if err := os.WriteFile(target, []byte("if   x  ==  1 {\n\treturn\n}\n"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	tool := NewEditFileTool(root)
	res, err := tool.Execute(context.Background(), map[string]any{
		"path":    "file.go",
		"old_str": "if x == 1 {",
		"new_str": "if x == 2 {",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != api.StatusCompleted {
		t.Fatalf("expected completed status via whitespace-tolerant match, got %q: %s", res.Status, res.Error)
	}
}

func TestEditFileTool_AmbiguousMatchFails(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "file.go")
	if err := os.WriteFile(target, []byte("a\na\n"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	tool := NewEditFileTool(root)
	res, err := tool.Execute(context.Background(), map[string]any{
		"path":    "file.go",
		"old_str": "a",
		"new_str": "b",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != api.StatusFailed {
		t.Fatalf("expected failed status for ambiguous match, got %q", res.Status)
	}
}

func TestFindWhitespaceTolerant(t *testing.T) {
	content := "foo   bar\nbaz\n"
	start, length, count := findWhitespaceTolerant(content, "foo bar")
	if count != 1 {
		t.Fatalf("expected exactly one match, got %d", count)
	}
	if content[start:start+length] != "foo   bar" {
		t.Fatalf("match span mismatch: got %q", content[start:start+length])
	}
}
