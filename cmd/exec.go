package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"vtcode/pkg/engine/api"
	"vtcode/pkg/engine/cancel"

	"github.com/spf13/cobra"
)

var (
	execJSONFlag bool
	execLastFlag bool
)

var execCmd = &cobra.Command{
	Use:   "exec <prompt>",
	Short: "Autonomous multi-turn run; stdout carries the final message (or --json events)",
	Args:  cobra.MinimumNArgs(1),
	Run:   runExec,
}

var execResumeCmd = &cobra.Command{
	Use:   "resume {<session-id> | --last} <prompt>",
	Short: "Continue an archived session",
	Args:  cobra.MinimumNArgs(1),
	Run:   runExecResume,
}

func init() {
	execCmd.Flags().BoolVar(&execJSONFlag, "json", false, "Switch stdout to the spec's JSONL event stream")
	execResumeCmd.Flags().BoolVar(&execJSONFlag, "json", false, "Switch stdout to the spec's JSONL event stream")
	execResumeCmd.Flags().BoolVar(&execLastFlag, "last", false, "Resume the most recently updated session instead of naming one")
	execCmd.AddCommand(execResumeCmd)
	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) {
	prompt := strings.Join(args, " ")

	workspaceRoot, err := resolveWorkspaceRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitOtherFailure)
	}

	eng, broker, err := newAPIEngine(workspaceRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing engine: %v\n", err)
		os.Exit(exitOtherFailure)
	}

	ctx := context.Background()
	sessionID, err := eng.StartSession(ctx, api.StartOptions{ApprovalMode: api.ModeFullAuto})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting session: %v\n", err)
		os.Exit(exitOtherFailure)
	}

	execTurn(ctx, eng, broker, sessionID, prompt)
}

func runExecResume(cmd *cobra.Command, args []string) {
	workspaceRoot, err := resolveWorkspaceRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitOtherFailure)
	}

	eng, broker, err := newAPIEngine(workspaceRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing engine: %v\n", err)
		os.Exit(exitOtherFailure)
	}

	ctx := context.Background()

	var sessionID string
	var promptArgs []string
	if execLastFlag {
		sessionID, err = resolveLastSession(ctx, eng)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitOtherFailure)
		}
		promptArgs = args
	} else {
		sessionID = args[0]
		promptArgs = args[1:]
	}

	if _, err := eng.GetSession(ctx, sessionID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: session %q not found: %v\n", sessionID, err)
		os.Exit(exitOtherFailure)
	}

	prompt := strings.Join(promptArgs, " ")
	if strings.TrimSpace(prompt) == "" {
		fmt.Fprintln(os.Stderr, "Error: exec resume requires a prompt to continue the session with")
		os.Exit(exitOtherFailure)
	}

	execTurn(ctx, eng, broker, sessionID, prompt)
}

func resolveLastSession(ctx context.Context, eng api.Engine) (string, error) {
	sessions, err := eng.ListSessions(ctx)
	if err != nil {
		return "", err
	}
	if len(sessions) == 0 {
		return "", fmt.Errorf("no archived sessions found")
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt) })
	return sessions[0].SessionID, nil
}

func execTurn(ctx context.Context, eng api.Engine, broker *cancel.Broker, sessionID, prompt string) {
	obs, err := newTurnObserver(sessionID, execJSONFlag, eventsFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitOtherFailure)
	}
	defer obs.close()

	text, code, err := runNonInteractiveTurn(ctx, eng, sessionID, prompt, broker, obs)
	if err != nil && code == exitSuccess {
		code = exitOtherFailure
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	if !execJSONFlag {
		fmt.Fprintln(os.Stdout, text)
	}

	if lastMsgFlag != "" {
		if werr := os.WriteFile(lastMsgFlag, []byte(text), 0644); werr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to write --last-message-file: %v\n", werr)
		}
	}

	os.Exit(code)
}
