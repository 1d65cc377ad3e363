package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestManager_CaptureBefore_IsIdempotentPerTurn(t *testing.T) {
	ws := t.TempDir()
	target := filepath.Join(ws, "file.txt")
	if err := os.WriteFile(target, []byte("v1"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	m, err := NewManager(filepath.Join(ws, "state"), Config{})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if err := m.CaptureBefore(1, []string{target}); err != nil {
		t.Fatalf("CaptureBefore #1: %v", err)
	}

	// Mutate the file, then capture again for the same turn: the original
	// ("v1") snapshot must survive untouched since capture_before is
	// idempotent per path within a turn.
	if err := os.WriteFile(target, []byte("v2"), 0o644); err != nil {
		t.Fatalf("mutate file: %v", err)
	}
	if err := m.CaptureBefore(1, []string{target}); err != nil {
		t.Fatalf("CaptureBefore #2: %v", err)
	}

	if err := os.WriteFile(target, []byte("v3"), 0o644); err != nil {
		t.Fatalf("mutate file again: %v", err)
	}
	if err := m.RestoreFiles(1); err != nil {
		t.Fatalf("RestoreFiles: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read restored file: %v", err)
	}
	if string(data) != "v1" {
		t.Fatalf("restored content = %q, want v1 (first capture must win)", data)
	}
}

func TestManager_RestoreFiles_RoundTripsNewAndExisting(t *testing.T) {
	ws := t.TempDir()
	existing := filepath.Join(ws, "existing.txt")
	newFile := filepath.Join(ws, "new.txt")

	if err := os.WriteFile(existing, []byte("original"), 0o644); err != nil {
		t.Fatalf("seed existing: %v", err)
	}

	m, err := NewManager(filepath.Join(ws, "state"), Config{})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if err := m.CaptureBefore(5, []string{existing, newFile}); err != nil {
		t.Fatalf("CaptureBefore: %v", err)
	}

	if err := os.WriteFile(existing, []byte("modified"), 0o644); err != nil {
		t.Fatalf("modify existing: %v", err)
	}
	if err := os.WriteFile(newFile, []byte("created by tool"), 0o644); err != nil {
		t.Fatalf("create new file: %v", err)
	}

	if err := m.RestoreFiles(5); err != nil {
		t.Fatalf("RestoreFiles: %v", err)
	}

	data, err := os.ReadFile(existing)
	if err != nil {
		t.Fatalf("read existing after restore: %v", err)
	}
	if string(data) != "original" {
		t.Fatalf("existing content = %q, want original", data)
	}

	if _, err := os.Stat(newFile); !os.IsNotExist(err) {
		t.Fatalf("expected newly-created file to be removed on restore, stat err = %v", err)
	}
}

func TestManager_Cleanup_EvictsByRetentionCountButSparesActiveTurn(t *testing.T) {
	ws := t.TempDir()
	m, err := NewManager(filepath.Join(ws, "state"), Config{RetentionCount: 2})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	for turn := 1; turn <= 4; turn++ {
		f := filepath.Join(ws, "f.txt")
		if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
			t.Fatalf("seed: %v", err)
		}
		if err := m.CaptureBefore(turn, []string{f}); err != nil {
			t.Fatalf("CaptureBefore(%d): %v", turn, err)
		}
	}

	// Turn 1 is the oldest and would normally be evicted first, but it's
	// marked as the active turn here and must survive.
	if err := m.Cleanup(1); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	remaining := map[int]bool{}
	for _, s := range m.ListSnapshots() {
		remaining[s.TurnIndex] = true
	}
	if !remaining[1] {
		t.Fatalf("active turn 1 was evicted, snapshots = %v", remaining)
	}
	if len(remaining) > 3 {
		t.Fatalf("expected retention to bound snapshot count, got %d: %v", len(remaining), remaining)
	}
}

func TestManager_Cleanup_EvictsByAge(t *testing.T) {
	ws := t.TempDir()
	m, err := NewManager(filepath.Join(ws, "state"), Config{RetentionCount: 50, RetentionAge: time.Hour})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	f := filepath.Join(ws, "f.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := m.CaptureBefore(1, []string{f}); err != nil {
		t.Fatalf("CaptureBefore: %v", err)
	}

	m.mu.Lock()
	m.entries[1].Timestamp = time.Now().Add(-2 * time.Hour)
	m.mu.Unlock()

	if err := m.Cleanup(99); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	for _, s := range m.ListSnapshots() {
		if s.TurnIndex == 1 {
			t.Fatalf("expected turn 1's snapshot to be evicted by age")
		}
	}
}
