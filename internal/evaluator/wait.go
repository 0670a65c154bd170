package evaluator

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/veridian-group/compliance-cli/internal/model"
)

// ErrWaitTimeout is returned when a run does not finish within the polling
// budget. It is distinct from a pipeline ERROR, which surfaces as a regular
// error carrying the run's error message.
var ErrWaitTimeout = errors.New("evaluator: timed out waiting for run completion")

// StateReader exposes the current run state for polling.
type StateReader interface {
	State(ctx context.Context, releaseID string) (*model.RunState, error)
}

// WaitForCompletion polls the run state at a fixed interval until the run
// completes, fails, or the attempt budget runs out. No locks or connections
// are held between polls.
func WaitForCompletion(ctx context.Context, states StateReader, releaseID string, interval time.Duration, maxAttempts int) (*model.RunState, error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 60
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		state, err := states.State(ctx, releaseID)
		if err != nil {
			return nil, eris.Wrap(err, "evaluator: poll run state")
		}
		if state != nil {
			switch state.Status {
			case model.RunStatusCompleted:
				return state, nil
			case model.RunStatusError:
				return state, eris.Errorf("evaluator: run for release %s failed: %s", releaseID, state.Error)
			}
		}

		if attempt == maxAttempts-1 {
			break
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, eris.Wrap(ctx.Err(), "evaluator: wait canceled")
		case <-timer.C:
		}
	}
	return nil, ErrWaitTimeout
}
