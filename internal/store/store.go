// Package store persists releases, run states, the live criteria tree, and
// the per-release applied trees.
package store

import (
	"context"

	"github.com/veridian-group/compliance-cli/internal/model"
)

// ReleaseFilter specifies criteria for listing releases.
type ReleaseFilter struct {
	DocumentID     string `json:"document_id,omitempty"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
	Limit          int    `json:"limit,omitempty"`
	Offset         int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for the evaluation pipeline.
type Store interface {
	// Releases
	CreateRelease(ctx context.Context, documentID, filePath string) (*model.Release, error)
	GetRelease(ctx context.Context, id string) (*model.Release, error)
	ListReleases(ctx context.Context, filter ReleaseFilter) ([]model.Release, error)
	SetReleaseDescription(ctx context.Context, id, description string) error
	SoftDeleteRelease(ctx context.Context, id string) error

	// Run state. The tracker is the only writer.
	UpsertRunState(ctx context.Context, state model.RunState) error
	GetRunState(ctx context.Context, releaseID string) (*model.RunState, error)

	// Live criteria tree
	UpsertTypification(ctx context.Context, t model.Typification) error
	UpsertTaxonomy(ctx context.Context, t model.Taxonomy) error
	UpsertBranch(ctx context.Context, b model.Branch) error
	ListBranchContexts(ctx context.Context) ([]model.BranchContext, error)

	// Applied tree
	GetAppliedTypificationByOriginal(ctx context.Context, releaseID, originalID string) (*model.AppliedTypification, error)
	GetAppliedTaxonomyByOriginal(ctx context.Context, releaseID, originalID string) (*model.AppliedTaxonomy, error)
	GetAppliedBranchByOriginal(ctx context.Context, releaseID, originalID string) (*model.AppliedBranch, error)
	InsertAppliedTypification(ctx context.Context, at model.AppliedTypification) error
	InsertAppliedTaxonomy(ctx context.Context, at model.AppliedTaxonomy) error
	InsertAppliedBranch(ctx context.Context, ab model.AppliedBranch) error
	SetBranchEvaluation(ctx context.Context, appliedBranchID string, eval model.BranchEvaluation) error
	GetAppliedTree(ctx context.Context, releaseID string) (*model.AppliedTree, error)

	// Audit
	AppendAudit(ctx context.Context, event model.AuditEvent) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
