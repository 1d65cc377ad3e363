package pty

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"vtcode/pkg/engine/api"
)

func TestManager_RunCommand_CapturesOutput(t *testing.T) {
	ws := t.TempDir()
	m := NewManager(ws, 0)

	res, err := m.RunCommand(context.Background(), api.PtyCommandRequest{
		Program: "sh",
		Args:    []string{"-c", "echo hello"},
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("RunCommand: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit code = %d, want 0", res.ExitCode)
	}
	if !strings.Contains(string(res.Stdout), "hello") {
		t.Fatalf("stdout = %q, want to contain hello", res.Stdout)
	}
}

func TestManager_RunCommand_OutputCapTruncates(t *testing.T) {
	ws := t.TempDir()
	m := NewManager(ws, 16)

	res, err := m.RunCommand(context.Background(), api.PtyCommandRequest{
		Program: "sh",
		Args:    []string{"-c", "echo 0123456789abcdefghijklmnop"},
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("RunCommand: %v", err)
	}
	if !res.Truncated {
		t.Fatalf("expected output to be truncated at the 16-byte cap")
	}
	if len(res.Stdout) > 16 {
		t.Fatalf("stdout len = %d, want <= 16", len(res.Stdout))
	}
}

// TestManager_RunCommand_KillsWholeProcessGroup verifies that a timed-out
// command's children (not just the shell itself) are reaped, exercising the
// Setpgid + syscall.Kill(-pid, ...) process-group signaling path.
func TestManager_RunCommand_KillsWholeProcessGroup(t *testing.T) {
	ws := t.TempDir()
	m := NewManager(ws, 0)

	marker := filepath.Join(ws, "child.pid")
	script := fmt.Sprintf(`sh -c 'echo $$ > %s; sleep 30' & echo $! > %s.parent; wait`, marker, marker)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err := m.RunCommand(ctx, api.PtyCommandRequest{
		Program: "sh",
		Args:    []string{"-c", script},
		Timeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("RunCommand: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	var childPID int
	for time.Now().Before(deadline) {
		data, rerr := os.ReadFile(marker)
		if rerr == nil && len(data) > 0 {
			childPID, _ = strconv.Atoi(strings.TrimSpace(string(data)))
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if childPID == 0 {
		t.Fatalf("grandchild never recorded its pid at %s", marker)
	}

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if err := syscall.Kill(childPID, 0); err != nil {
			return // process is gone, group kill worked
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("grandchild pid %d still alive after process-group kill", childPID)
}

func TestManager_Session_WriteReadClose(t *testing.T) {
	ws := t.TempDir()
	m := NewManager(ws, 0)

	if err := m.CreateSession(context.Background(), api.PtyCommandRequest{Program: "sh"}, "s1"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	defer m.CloseSession("s1")

	if err := m.WriteSession("s1", "echo marco\n"); err != nil {
		t.Fatalf("WriteSession: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	var out string
	for time.Now().Before(deadline) {
		chunk, err := m.ReadSession("s1")
		if err != nil {
			t.Fatalf("ReadSession: %v", err)
		}
		out += chunk
		if strings.Contains(out, "marco") {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if !strings.Contains(out, "marco") {
		t.Fatalf("session output = %q, want to contain marco", out)
	}

	if err := m.CloseSession("s1"); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if _, err := m.ReadSession("s1"); err == nil {
		t.Fatalf("expected ReadSession on a closed session to error")
	}
}

func TestManager_GCIdleSessions_ClosesStaleSessions(t *testing.T) {
	ws := t.TempDir()
	m := NewManager(ws, 0)

	if err := m.CreateSession(context.Background(), api.PtyCommandRequest{Program: "sh"}, "idle"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	m.mu.Lock()
	m.sessions["idle"].lastUsed = time.Now().Add(-time.Hour)
	m.mu.Unlock()

	m.GCIdleSessions(time.Minute)

	if _, err := m.ReadSession("idle"); err == nil {
		t.Fatalf("expected idle session to have been garbage collected")
	}
}
