// Package snapshot freezes the live criteria tree into a per-release
// applied tree, so later edits to the live tree never change what a past
// release was evaluated against.
package snapshot

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/veridian-group/compliance-cli/internal/model"
)

// TreeStore is the slice of the store the builder needs.
type TreeStore interface {
	ListBranchContexts(ctx context.Context) ([]model.BranchContext, error)
	GetAppliedTypificationByOriginal(ctx context.Context, releaseID, originalID string) (*model.AppliedTypification, error)
	GetAppliedTaxonomyByOriginal(ctx context.Context, releaseID, originalID string) (*model.AppliedTaxonomy, error)
	GetAppliedBranchByOriginal(ctx context.Context, releaseID, originalID string) (*model.AppliedBranch, error)
	InsertAppliedTypification(ctx context.Context, at model.AppliedTypification) error
	InsertAppliedTaxonomy(ctx context.Context, at model.AppliedTaxonomy) error
	InsertAppliedBranch(ctx context.Context, ab model.AppliedBranch) error
	GetAppliedTree(ctx context.Context, releaseID string) (*model.AppliedTree, error)
}

// Builder materializes applied trees.
type Builder struct {
	store TreeStore
}

// New creates a Builder.
func New(store TreeStore) *Builder {
	return &Builder{store: store}
}

// Result is the applied tree plus the mapping from live branch IDs to their
// applied copies, which the evaluator uses to attach results.
type Result struct {
	Tree     *model.AppliedTree
	BranchID map[string]string // original branch ID -> applied branch ID
}

// Build copies the current live tree for one release. Each node is written
// as soon as it is copied; re-running for the same release reuses existing
// copies instead of duplicating them.
func (b *Builder) Build(ctx context.Context, releaseID string) (*Result, error) {
	contexts, err := b.store.ListBranchContexts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: list live tree")
	}
	if len(contexts) == 0 {
		return nil, eris.New("snapshot: live criteria tree is empty")
	}

	// Index what this release already has, so reruns are idempotent.
	existing, err := b.store.GetAppliedTree(ctx, releaseID)
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: load existing applied tree")
	}
	typByOrig := make(map[string]string)
	taxByOrig := make(map[string]string)
	branchByOrig := make(map[string]string)
	for _, at := range existing.Typifications {
		if at.OriginalID != nil {
			typByOrig[*at.OriginalID] = at.ID
		}
	}
	for _, at := range existing.Taxonomies {
		if at.OriginalID != nil {
			taxByOrig[*at.OriginalID] = at.ID
		}
	}
	for _, ab := range existing.Branches {
		if ab.OriginalID != nil {
			branchByOrig[*ab.OriginalID] = ab.ID
		}
	}

	now := time.Now().UTC()
	for _, bc := range contexts {
		typID, ok := typByOrig[bc.Typification.ID]
		if !ok {
			typID, err = b.ensureTypification(ctx, releaseID, bc.Typification, now)
			if err != nil {
				return nil, err
			}
			typByOrig[bc.Typification.ID] = typID
		}

		taxID, ok := taxByOrig[bc.Taxonomy.ID]
		if !ok {
			taxID, err = b.ensureTaxonomy(ctx, releaseID, typID, bc.Taxonomy, now)
			if err != nil {
				return nil, err
			}
			taxByOrig[bc.Taxonomy.ID] = taxID
		}

		if _, ok := branchByOrig[bc.Branch.ID]; !ok {
			branchID, err := b.ensureBranch(ctx, releaseID, taxID, bc.Branch, now)
			if err != nil {
				return nil, err
			}
			branchByOrig[bc.Branch.ID] = branchID
		}
	}

	tree, err := b.store.GetAppliedTree(ctx, releaseID)
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: reload applied tree")
	}

	zap.L().Info("applied tree ready",
		zap.String("release_id", releaseID),
		zap.Int("typifications", len(tree.Typifications)),
		zap.Int("taxonomies", len(tree.Taxonomies)),
		zap.Int("branches", len(tree.Branches)),
	)
	return &Result{Tree: tree, BranchID: branchByOrig}, nil
}

// ensureTypification inserts a typification copy unless another writer got
// there first, in which case the existing copy wins.
func (b *Builder) ensureTypification(ctx context.Context, releaseID string, typ model.Typification, now time.Time) (string, error) {
	if existing, err := b.store.GetAppliedTypificationByOriginal(ctx, releaseID, typ.ID); err != nil {
		return "", eris.Wrap(err, "snapshot: lookup applied typification")
	} else if existing != nil {
		return existing.ID, nil
	}

	id := uuid.New().String()
	origID := typ.ID
	if err := b.store.InsertAppliedTypification(ctx, model.AppliedTypification{
		ID:         id,
		ReleaseID:  releaseID,
		Name:       typ.Name,
		OriginalID: &origID,
		Sources:    copySources(typ.Sources),
		CreatedAt:  now,
	}); err != nil {
		return "", eris.Wrapf(err, "snapshot: copy typification %s", typ.ID)
	}
	return id, nil
}

// ensureTaxonomy mirrors ensureTypification one level down. The lookup runs
// right before the insert so a competing builder's copy is reused instead of
// duplicated.
func (b *Builder) ensureTaxonomy(ctx context.Context, releaseID, typID string, tax model.Taxonomy, now time.Time) (string, error) {
	if existing, err := b.store.GetAppliedTaxonomyByOriginal(ctx, releaseID, tax.ID); err != nil {
		return "", eris.Wrap(err, "snapshot: lookup applied taxonomy")
	} else if existing != nil {
		return existing.ID, nil
	}

	id := uuid.New().String()
	origID := tax.ID
	if err := b.store.InsertAppliedTaxonomy(ctx, model.AppliedTaxonomy{
		ID:                    id,
		AppliedTypificationID: typID,
		Title:                 tax.Title,
		Description:           tax.Description,
		OriginalID:            &origID,
		Sources:               copySources(tax.Sources),
		CreatedAt:             now,
	}); err != nil {
		return "", eris.Wrapf(err, "snapshot: copy taxonomy %s", tax.ID)
	}
	return id, nil
}

func (b *Builder) ensureBranch(ctx context.Context, releaseID, taxID string, br model.Branch, now time.Time) (string, error) {
	if existing, err := b.store.GetAppliedBranchByOriginal(ctx, releaseID, br.ID); err != nil {
		return "", eris.Wrap(err, "snapshot: lookup applied branch")
	} else if existing != nil {
		return existing.ID, nil
	}

	id := uuid.New().String()
	origID := br.ID
	if err := b.store.InsertAppliedBranch(ctx, model.AppliedBranch{
		ID:                id,
		AppliedTaxonomyID: taxID,
		Title:             br.Title,
		Description:       br.Description,
		OriginalID:        &origID,
		CreatedAt:         now,
	}); err != nil {
		return "", eris.Wrapf(err, "snapshot: copy branch %s", br.ID)
	}
	return id, nil
}

func copySources(sources []model.Source) []model.AppliedSource {
	if len(sources) == 0 {
		return nil
	}
	out := make([]model.AppliedSource, len(sources))
	for i, src := range sources {
		origID := src.ID
		out[i] = model.AppliedSource{
			ID:          uuid.New().String(),
			Name:        src.Name,
			Description: src.Description,
			OriginalID:  &origID,
		}
	}
	return out
}
