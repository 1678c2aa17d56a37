package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aulagpt/aulagpt-backend/internal/clients/openai"
	apperrors "github.com/aulagpt/aulagpt-backend/internal/pkg/errors"
)

// exchangeWithAssistant posts one user turn to a thread, starts a run bound
// to the assistant, polls until the run leaves queued/in_progress, and
// returns the newest assistant-authored turn. Shared by query processing and
// the internal pipeline assistants (code analysis, mind maps).
func exchangeWithAssistant(ctx context.Context, ai openai.Client, threadID, assistantID, prompt string, interval, timeout time.Duration) (string, error) {
	if err := ai.CreateThreadMessage(ctx, threadID, openai.RoleUser, prompt); err != nil {
		return "", fmt.Errorf("post question: %w", err)
	}

	run, err := ai.CreateRun(ctx, threadID, assistantID)
	if err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for run.InProgress() {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return "", fmt.Errorf("%w after %s (run %s)", apperrors.ErrRunTimedOut, timeout, run.ID)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}

		run, err = ai.GetRun(ctx, threadID, run.ID)
		if err != nil {
			return "", fmt.Errorf("poll run: %w", err)
		}
	}

	if run.Status != openai.RunStatusCompleted {
		diag := run.LastError.String()
		if diag == "" {
			diag = run.Status
		}
		return "", fmt.Errorf("run failed: %s", diag)
	}

	messages, err := ai.ListMessages(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("list messages: %w", err)
	}
	for _, msg := range messages {
		if msg != nil && msg.Role == openai.RoleAssistant {
			if text := msg.Text(); text != "" {
				return text, nil
			}
		}
	}
	return "", apperrors.ErrNoResponse
}
