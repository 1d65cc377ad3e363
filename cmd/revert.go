package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"vtcode/pkg/engine/api"
	"vtcode/pkg/engine/snapshot"
	"vtcode/pkg/engine/store"

	"github.com/spf13/cobra"
)

var revertScopeFlag string

var revertCmd = &cobra.Command{
	Use:   "revert <turn>",
	Short: "Revert files and/or conversation history produced by a turn",
	Args:  cobra.ExactArgs(1),
	Run:   runRevert,
}

func init() {
	revertCmd.Flags().StringVar(&revertScopeFlag, "scope", "both", "files | messages | both")
	rootCmd.AddCommand(revertCmd)
}

func runRevert(cmd *cobra.Command, args []string) {
	turn, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid turn index %q: %v\n", args[0], err)
		os.Exit(1)
	}

	scope := strings.ToLower(strings.TrimSpace(revertScopeFlag))
	if scope != "files" && scope != "messages" && scope != "both" {
		fmt.Fprintf(os.Stderr, "invalid --scope %q: must be files, messages, or both\n", revertScopeFlag)
		os.Exit(1)
	}

	workspaceRoot, err := resolveWorkspaceRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	stateDir := filepath.Join(filepath.Dir(workspaceRoot), ".sea", "state")
	snapshots, err := snapshot.NewManager(stateDir, snapshot.Config{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening snapshot store: %v\n", err)
		os.Exit(1)
	}

	if scope == "files" || scope == "both" {
		if err := snapshots.RestoreFiles(turn); err != nil {
			fmt.Fprintf(os.Stderr, "Error restoring files for turn %d: %v\n", turn, err)
			os.Exit(1)
		}
		fmt.Printf("Restored files for turn %d\n", turn)
	}

	if scope == "messages" || scope == "both" {
		n, err := revertSessionMessages(workspaceRoot, turn)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error restoring messages for turn %d: %v\n", turn, err)
			os.Exit(1)
		}
		fmt.Printf("Dropped %d message(s) from turn %d onward\n", n, turn)
	}
}

// revertSessionMessages drops every message stamped with a turn index >=
// turn across every persisted session, returning the count removed. The
// SnapshotManager only knows about files; history truncation is done here
// directly against the session store, matching spec.md's division of
// responsibility between SnapshotManager and the session archive.
func revertSessionMessages(workspaceRoot string, turn int) (int, error) {
	sessionStore, err := store.NewFileSessionStore(workspaceRoot)
	if err != nil {
		return 0, err
	}
	ctx := context.Background()
	ids, err := sessionStore.List(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range ids {
		sess, err := sessionStore.Get(ctx, id)
		if err != nil {
			continue
		}
		kept := make([]api.LLMMessage, 0, len(sess.Messages))
		for _, m := range sess.Messages {
			if m.TurnIndex >= turn {
				removed++
				continue
			}
			kept = append(kept, m)
		}
		if len(kept) == len(sess.Messages) {
			continue
		}
		sess.Messages = kept
		if err := sessionStore.Put(ctx, id, sess); err != nil {
			return removed, err
		}
	}
	return removed, nil
}
