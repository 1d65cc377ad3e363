package cmd

import (
	"context"
	"fmt"
	"io"

	"vtcode/pkg/engine/api"
	"vtcode/pkg/engine/cancel"
)

// Exit codes for ask/exec (spec.md §6.1).
const (
	exitSuccess         = 0
	exitOtherFailure    = 1
	exitPolicyDenied    = 2
	exitTimedOut        = 3
	exitBudgetExhausted = 4
)

// runNonInteractiveTurn drives a single Send/Resume turn to completion with
// no human in the loop: every approval request is auto-rejected, matching
// spec.md §6.4's Renderer.ask_policy contract ("if interactive UI is absent,
// default to Deny"). It returns the final assistant text and the exit code
// ask/exec should use.
func runNonInteractiveTurn(ctx context.Context, eng api.Engine, sessionID, message string, broker *cancel.Broker, obs *turnObserver) (string, int, error) {
	ctx, turnCancel := context.WithCancel(ctx)
	defer turnCancel()
	disarm := broker.Arm(turnCancel)
	defer disarm()

	if obs != nil {
		obs.threadStarted()
		obs.turnStarted()
	}

	stream, err := eng.Send(ctx, sessionID, message)
	if err != nil {
		return "", exitOtherFailure, err
	}

	lastAssistant := ""
	sawPolicyDenied := false
	toolItems := map[string]string{}

	for {
		pending, reason, recvErr := drainStream(ctx, stream, obs, toolItems, &lastAssistant, &sawPolicyDenied)
		stream.Close()

		if recvErr != nil {
			if ctx.Err() != nil {
				return lastAssistant, exitTimedOut, nil
			}
			return lastAssistant, exitOtherFailure, recvErr
		}

		if pending == nil {
			switch reason {
			case "budget_exhausted":
				return lastAssistant, exitBudgetExhausted, nil
			case "error":
				return lastAssistant, exitOtherFailure, nil
			case "canceled":
				return lastAssistant, exitTimedOut, nil
			default:
				if sawPolicyDenied {
					return lastAssistant, exitPolicyDenied, nil
				}
				return lastAssistant, exitSuccess, nil
			}
		}

		decision := api.Decision{Kind: api.DecisionReject, RequestID: pending.RequestID, ToolCallID: pending.ToolCallID}
		stream, err = eng.Resume(ctx, sessionID, decision)
		if err != nil {
			return lastAssistant, exitOtherFailure, err
		}
	}
}

// drainStream reads one stream segment (until a done/error/approval event)
// and feeds every event to obs, if set.
func drainStream(ctx context.Context, stream api.EventStream, obs *turnObserver, toolItems map[string]string, lastAssistant *string, sawPolicyDenied *bool) (*api.ApprovalPayload, string, error) {
	textBuf := ""

	for {
		e, err := stream.Recv(ctx)
		if err != nil {
			if err == io.EOF {
				return nil, "completed", nil
			}
			return nil, "", err
		}

		if obs != nil {
			obs.onEvent(e, toolItems)
		}

		switch e.Type {
		case api.EventDelta:
			if e.Delta != nil && e.Delta.Source != api.DeltaToolArg {
				textBuf += e.Delta.Text
			}

		case api.EventToolResult:
			if e.ToolResult != nil && e.ToolResult.Result.Status == api.StatusPolicyDenied {
				*sawPolicyDenied = true
			}

		case api.EventApproval:
			if e.Approval == nil {
				return nil, "", fmt.Errorf("approval event missing payload")
			}
			*sawPolicyDenied = true
			if textBuf != "" {
				*lastAssistant = textBuf
			}
			return e.Approval, "", nil

		case api.EventError:
			if textBuf != "" {
				*lastAssistant = textBuf
			}
			msg := "unknown error"
			if e.Error != nil {
				msg = fmt.Sprintf("%s: %s", e.Error.Code, e.Error.Message)
			}
			return nil, "", fmt.Errorf("%s", msg)

		case api.EventDone:
			if textBuf != "" {
				*lastAssistant = textBuf
			} else if e.Done != nil && e.Done.LastAssistantText != "" {
				*lastAssistant = e.Done.LastAssistantText
			}
			reason := "completed"
			if e.Done != nil {
				reason = e.Done.Reason
			}
			return nil, reason, nil
		}
	}
}
