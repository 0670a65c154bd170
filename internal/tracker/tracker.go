// Package tracker owns run-state transitions for the evaluation pipeline.
// All status writes go through one Tracker instance so concurrent stages
// cannot race each other into an invalid state.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/veridian-group/compliance-cli/internal/model"
)

// StateStore is the run-state slice of the full store interface.
type StateStore interface {
	UpsertRunState(ctx context.Context, state model.RunState) error
	GetRunState(ctx context.Context, releaseID string) (*model.RunState, error)
}

// Notifier pushes state events to listeners. Delivery is best effort.
type Notifier interface {
	Publish(ctx context.Context, event model.Event) error
}

// Tracker serializes all run-state writes for the pipeline.
type Tracker struct {
	mu       sync.Mutex
	store    StateStore
	notifier Notifier
}

// New creates a Tracker. notifier may be nil when push events are not
// configured.
func New(store StateStore, notifier Notifier) *Tracker {
	return &Tracker{store: store, notifier: notifier}
}

// transitions maps each status to the statuses it may move to.
var transitions = map[model.RunStatus][]model.RunStatus{
	"":                        {model.RunStatusPending},
	model.RunStatusPending:    {model.RunStatusProcessing},
	model.RunStatusProcessing: {model.RunStatusEvaluating, model.RunStatusError},
	model.RunStatusEvaluating: {model.RunStatusCompleted, model.RunStatusError},
}

func allowed(from, to model.RunStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves a release's run to a new status and broadcasts the full
// updated state. Invalid transitions are rejected.
func (t *Tracker) Transition(ctx context.Context, releaseID, testRunID string, to model.RunStatus, errMsg string) (*model.RunState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, err := t.store.GetRunState(ctx, releaseID)
	if err != nil {
		return nil, eris.Wrap(err, "tracker: load run state")
	}

	var from model.RunStatus
	if current != nil {
		from = current.Status
	}
	if !allowed(from, to) {
		return nil, eris.Errorf("tracker: invalid transition %q -> %q for release %s", from, to, releaseID)
	}
	if to == model.RunStatusError && errMsg == "" {
		return nil, eris.New("tracker: ERROR transition requires an error message")
	}

	state := model.RunState{
		ReleaseID: releaseID,
		TestRunID: testRunID,
		Status:    to,
		Error:     errMsg,
		UpdatedAt: time.Now().UTC(),
	}
	if current != nil && testRunID == "" {
		state.TestRunID = current.TestRunID
	}

	if err := t.store.UpsertRunState(ctx, state); err != nil {
		return nil, eris.Wrap(err, "tracker: persist run state")
	}

	zap.L().Info("run state transition",
		zap.String("release_id", releaseID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)

	t.broadcast(ctx, state)
	return &state, nil
}

// Progress updates the human-readable progress line without changing status.
// The run must already be in a non-terminal state.
func (t *Tracker) Progress(ctx context.Context, releaseID, progress string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, err := t.store.GetRunState(ctx, releaseID)
	if err != nil {
		return eris.Wrap(err, "tracker: load run state")
	}
	if current == nil {
		return eris.Errorf("tracker: no run state for release %s", releaseID)
	}
	if current.Status.Terminal() {
		return eris.Errorf("tracker: run for release %s already %s", releaseID, current.Status)
	}

	current.Progress = progress
	current.UpdatedAt = time.Now().UTC()
	if err := t.store.UpsertRunState(ctx, *current); err != nil {
		return eris.Wrap(err, "tracker: persist progress")
	}

	t.broadcast(ctx, *current)
	return nil
}

// State returns the current run state, or nil when the run has not started.
func (t *Tracker) State(ctx context.Context, releaseID string) (*model.RunState, error) {
	return t.store.GetRunState(ctx, releaseID)
}

// broadcast pushes the full state. At most once: failures are logged and
// dropped.
func (t *Tracker) broadcast(ctx context.Context, state model.RunState) {
	if t.notifier == nil {
		return
	}

	name := model.EventReleaseUpdate
	if state.TestRunID != "" {
		name = model.EventTestRunUpdate
	}
	event := model.Event{
		Event:   name,
		Message: string(state.Status),
		Payload: state,
	}
	if err := t.notifier.Publish(ctx, event); err != nil {
		zap.L().Warn("state broadcast dropped",
			zap.String("release_id", state.ReleaseID),
			zap.Error(err),
		)
	}
}
