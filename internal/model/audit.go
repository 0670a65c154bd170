package model

import "time"

// AuditEvent is one append-only record of a pipeline action, kept for
// traceability of regulatory evaluations.
type AuditEvent struct {
	ID        string         `json:"id"`
	ReleaseID string         `json:"release_id,omitempty"`
	Action    string         `json:"action"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
