package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"vtcode/pkg/engine/snapshot"

	"github.com/spf13/cobra"
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Inspect SnapshotManager state",
}

var snapshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded turn snapshots, newest first",
	Run:   runSnapshotsList,
}

func init() {
	snapshotsCmd.AddCommand(snapshotsListCmd)
	rootCmd.AddCommand(snapshotsCmd)
}

func runSnapshotsList(cmd *cobra.Command, args []string) {
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

	list := snapshots.ListSnapshots()
	if len(list) == 0 {
		fmt.Println("No snapshots recorded.")
		return
	}

	fmt.Printf("%-8s %-24s %-10s %s\n", "TURN", "TIMESTAMP", "FILES", "BYTES")
	for _, s := range list {
		fmt.Printf("%-8d %-24s %-10d %d\n", s.TurnIndex, s.Timestamp.Format("2006-01-02 15:04:05"), s.FileCount, s.TotalBytes)
	}
}
