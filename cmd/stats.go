package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var (
	statsFormatFlag   string
	statsDetailedFlag bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize tool calls, approvals, and errors across all sessions' event logs",
	Run:   runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsFormatFlag, "format", "text", "text | json | html")
	statsCmd.Flags().BoolVar(&statsDetailedFlag, "detailed", false, "include per-session breakdown")
	rootCmd.AddCommand(statsCmd)
}

type sessionStats struct {
	SessionID string     `json:"session_id"`
	Events    eventStats `json:"events"`
}

type aggregateStats struct {
	Sessions []sessionStats `json:"sessions"`
	Totals   eventStats     `json:"totals"`
}

func runStats(cmd *cobra.Command, args []string) {
	workspaceRoot, err := resolveWorkspaceRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	eventsDir := filepath.Join(workspaceRoot, "events")
	entries, err := os.ReadDir(eventsDir)
	if err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error reading events dir: %v\n", err)
		os.Exit(1)
	}

	var agg aggregateStats
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		sessionID := strings.TrimSuffix(e.Name(), ".jsonl")
		s := summarizeEvents(filepath.Join(eventsDir, e.Name()))
		agg.Sessions = append(agg.Sessions, sessionStats{SessionID: sessionID, Events: s})
		agg.Totals.ToolCalls += s.ToolCalls
		agg.Totals.Approvals += s.Approvals
		agg.Totals.PlanSnapshots += s.PlanSnapshots
		agg.Totals.Errors += s.Errors
		agg.Totals.Deltas += s.Deltas
		agg.Totals.Done += s.Done
	}
	sort.Slice(agg.Sessions, func(i, j int) bool { return agg.Sessions[i].SessionID < agg.Sessions[j].SessionID })

	switch strings.ToLower(statsFormatFlag) {
	case "json":
		printStatsJSON(&agg)
	case "html":
		printStatsHTML(&agg)
	default:
		printStatsText(&agg)
	}
}

func printStatsJSON(agg *aggregateStats) {
	out := agg
	if !statsDetailedFlag {
		out = &aggregateStats{Totals: agg.Totals}
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(data))
}

func printStatsText(agg *aggregateStats) {
	fmt.Println("Session stats")
	fmt.Printf("  sessions:       %d\n", len(agg.Sessions))
	fmt.Printf("  tool calls:     %d\n", agg.Totals.ToolCalls)
	fmt.Printf("  approvals:      %d\n", agg.Totals.Approvals)
	fmt.Printf("  plan snapshots: %d\n", agg.Totals.PlanSnapshots)
	fmt.Printf("  errors:         %d\n", agg.Totals.Errors)
	fmt.Printf("  streamed turns: %d\n", agg.Totals.Done)

	if !statsDetailedFlag {
		return
	}
	fmt.Println("\nPer-session:")
	for _, s := range agg.Sessions {
		fmt.Printf("  %-36s tool_calls=%-4d approvals=%-4d errors=%-4d\n",
			s.SessionID, s.Events.ToolCalls, s.Events.Approvals, s.Events.Errors)
	}
}

func printStatsHTML(agg *aggregateStats) {
	var b strings.Builder
	b.WriteString("<html><body><h1>vtcode stats</h1><table border=\"1\">")
	b.WriteString("<tr><th>sessions</th><th>tool_calls</th><th>approvals</th><th>plan_snapshots</th><th>errors</th><th>done</th></tr>")
	fmt.Fprintf(&b, "<tr><td>%d</td><td>%d</td><td>%d</td><td>%d</td><td>%d</td><td>%d</td></tr>",
		len(agg.Sessions), agg.Totals.ToolCalls, agg.Totals.Approvals, agg.Totals.PlanSnapshots, agg.Totals.Errors, agg.Totals.Done)
	b.WriteString("</table>")
	if statsDetailedFlag {
		b.WriteString("<h2>Per-session</h2><table border=\"1\"><tr><th>session</th><th>tool_calls</th><th>approvals</th><th>errors</th></tr>")
		for _, s := range agg.Sessions {
			fmt.Fprintf(&b, "<tr><td>%s</td><td>%d</td><td>%d</td><td>%d</td></tr>", s.SessionID, s.Events.ToolCalls, s.Events.Approvals, s.Events.Errors)
		}
		b.WriteString("</table>")
	}
	b.WriteString("</body></html>")
	fmt.Println(b.String())
}
