package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"vtcode/pkg/engine/api"

	"github.com/spf13/cobra"
)

var askTimeoutFlag time.Duration

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Single-turn non-interactive ask; prints the assistant message to stdout",
	Args:  cobra.MinimumNArgs(1),
	Run:   runAsk,
}

func init() {
	askCmd.Flags().DurationVar(&askTimeoutFlag, "timeout", 0, "Overall deadline for the turn; 0 disables it")
	rootCmd.AddCommand(askCmd)
}

// runAsk implements spec.md §6.1's `ask`: exit 0 on success, 2 on policy
// denial, 3 on timeout, 4 on budget exhaustion, 1 on any other failure.
func runAsk(cmd *cobra.Command, args []string) {
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
	if askTimeoutFlag > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, askTimeoutFlag)
		defer cancel()
	}

	sessionID, err := eng.StartSession(ctx, api.StartOptions{ApprovalMode: api.ModeFullAuto})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting session: %v\n", err)
		os.Exit(exitOtherFailure)
	}

	obs, err := newTurnObserver(sessionID, false, eventsFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitOtherFailure)
	}
	defer obs.close()

	text, code, err := runNonInteractiveTurn(ctx, eng, sessionID, prompt, broker, obs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if code == exitSuccess {
			code = exitOtherFailure
		}
	}

	fmt.Fprintln(os.Stdout, text)

	if lastMsgFlag != "" {
		if werr := os.WriteFile(lastMsgFlag, []byte(text), 0644); werr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to write --last-message-file: %v\n", werr)
		}
	}

	os.Exit(code)
}
