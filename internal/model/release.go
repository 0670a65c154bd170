package model

import "time"

// RunStatus is the lifecycle state of one release's evaluation run.
type RunStatus string

const (
	RunStatusPending    RunStatus = "PENDING"
	RunStatusProcessing RunStatus = "PROCESSING"
	RunStatusEvaluating RunStatus = "EVALUATING"
	RunStatusCompleted  RunStatus = "COMPLETED"
	RunStatusError      RunStatus = "ERROR"
)

// Terminal reports whether the status is final for this run.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusError
}

// Release is one uploaded document version submitted for evaluation.
// Description stays empty until the evaluation summary is generated.
// Releases are never hard-deleted; DeletedAt marks soft deletion.
type Release struct {
	ID          string     `json:"id"`
	DocumentID  string     `json:"document_id"`
	FilePath    string     `json:"file_path"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// RunState is the tracked status/progress/error of one release's (or test
// run's) evaluation. Written only by the pipeline tracker.
type RunState struct {
	ReleaseID string    `json:"release_id"`
	TestRunID string    `json:"test_run_id,omitempty"`
	Status    RunStatus `json:"status"`
	Progress  string    `json:"progress,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
