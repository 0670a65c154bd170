package snapshot

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-group/compliance-cli/internal/model"
	"github.com/veridian-group/compliance-cli/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedLiveTree(t *testing.T, s *store.SQLiteStore) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.UpsertTypification(ctx, model.Typification{
		ID:      "typ-1",
		Name:    "Disclosure obligations",
		Sources: []model.Source{{ID: "src-1", Name: "Resolution 4.966"}},
	}))
	require.NoError(t, s.UpsertTaxonomy(ctx, model.Taxonomy{
		ID:             "tax-1",
		TypificationID: "typ-1",
		Title:          "Periodic reporting",
		Description:    "Reports filed on a fixed schedule",
		Sources:        []model.Source{{ID: "src-2", Name: "Circular 3.978"}},
	}))
	require.NoError(t, s.UpsertBranch(ctx, model.Branch{
		ID:          "br-1",
		TaxonomyID:  "tax-1",
		Title:       "Quarterly capital report",
		Description: "Capital adequacy figures each quarter",
	}))
	require.NoError(t, s.UpsertBranch(ctx, model.Branch{
		ID:         "br-2",
		TaxonomyID: "tax-1",
		Title:      "Annual audit statement",
	}))
	require.NoError(t, s.UpsertTaxonomy(ctx, model.Taxonomy{
		ID:             "tax-2",
		TypificationID: "typ-1",
		Title:          "Incident reporting",
	}))
	require.NoError(t, s.UpsertBranch(ctx, model.Branch{
		ID:         "br-3",
		TaxonomyID: "tax-2",
		Title:      "Operational incident notice",
	}))
}

func TestBuildCopiesWholeTree(t *testing.T) {
	s := newTestStore(t)
	seedLiveTree(t, s)
	ctx := context.Background()

	rel, err := s.CreateRelease(ctx, "doc-1", "/files/doc-1.pdf")
	require.NoError(t, err)

	result, err := New(s).Build(ctx, rel.ID)
	require.NoError(t, err)

	assert.Len(t, result.Tree.Typifications, 1)
	assert.Len(t, result.Tree.Taxonomies, 2)
	assert.Len(t, result.Tree.Branches, 3)
	assert.Len(t, result.BranchID, 3)

	typ := result.Tree.Typifications[0]
	require.NotNil(t, typ.OriginalID)
	assert.Equal(t, "typ-1", *typ.OriginalID)
	assert.Equal(t, rel.ID, typ.ReleaseID)
	require.Len(t, typ.Sources, 1)
	assert.Equal(t, "Resolution 4.966", typ.Sources[0].Name)
	require.NotNil(t, typ.Sources[0].OriginalID)
	assert.Equal(t, "src-1", *typ.Sources[0].OriginalID)

	// Applied IDs are fresh, never the live IDs.
	for orig, applied := range result.BranchID {
		assert.NotEqual(t, orig, applied)
	}
}

func TestBuildIsIdempotentPerRelease(t *testing.T) {
	s := newTestStore(t)
	seedLiveTree(t, s)
	ctx := context.Background()

	rel, err := s.CreateRelease(ctx, "doc-1", "/files/doc-1.pdf")
	require.NoError(t, err)

	b := New(s)
	first, err := b.Build(ctx, rel.ID)
	require.NoError(t, err)
	second, err := b.Build(ctx, rel.ID)
	require.NoError(t, err)

	assert.Len(t, second.Tree.Typifications, 1)
	assert.Len(t, second.Tree.Taxonomies, 2)
	assert.Len(t, second.Tree.Branches, 3)
	assert.Equal(t, first.BranchID, second.BranchID)
}

func TestBuildSeparateReleasesGetSeparateCopies(t *testing.T) {
	s := newTestStore(t)
	seedLiveTree(t, s)
	ctx := context.Background()

	relA, err := s.CreateRelease(ctx, "doc-a", "/files/a.pdf")
	require.NoError(t, err)
	relB, err := s.CreateRelease(ctx, "doc-b", "/files/b.pdf")
	require.NoError(t, err)

	b := New(s)
	resA, err := b.Build(ctx, relA.ID)
	require.NoError(t, err)
	resB, err := b.Build(ctx, relB.ID)
	require.NoError(t, err)

	assert.NotEqual(t, resA.Tree.Typifications[0].ID, resB.Tree.Typifications[0].ID)
	for orig := range resA.BranchID {
		assert.NotEqual(t, resA.BranchID[orig], resB.BranchID[orig])
	}
}

func TestBuildPicksUpNewBranchesOnRerun(t *testing.T) {
	s := newTestStore(t)
	seedLiveTree(t, s)
	ctx := context.Background()

	rel, err := s.CreateRelease(ctx, "doc-1", "/files/doc-1.pdf")
	require.NoError(t, err)

	b := New(s)
	_, err = b.Build(ctx, rel.ID)
	require.NoError(t, err)

	require.NoError(t, s.UpsertBranch(ctx, model.Branch{
		ID:         "br-4",
		TaxonomyID: "tax-2",
		Title:      "Fraud incident notice",
	}))

	result, err := b.Build(ctx, rel.ID)
	require.NoError(t, err)
	assert.Len(t, result.Tree.Branches, 4)
	assert.Contains(t, result.BranchID, "br-4")
}

// contendedStore lets another builder finish a full copy right after the
// initial applied-tree read, so the outer Build works from a stale view.
type contendedStore struct {
	TreeStore
	inner *store.SQLiteStore
	raced bool
}

func (c *contendedStore) GetAppliedTree(ctx context.Context, releaseID string) (*model.AppliedTree, error) {
	tree, err := c.inner.GetAppliedTree(ctx, releaseID)
	if err != nil || c.raced {
		return tree, err
	}
	c.raced = true
	if _, err := New(c.inner).Build(ctx, releaseID); err != nil {
		return nil, err
	}
	return tree, nil
}

func TestBuildReusesCopiesFromCompetingBuilder(t *testing.T) {
	s := newTestStore(t)
	seedLiveTree(t, s)
	ctx := context.Background()

	rel, err := s.CreateRelease(ctx, "doc-1", "/files/doc-1.pdf")
	require.NoError(t, err)

	cs := &contendedStore{TreeStore: s, inner: s}
	result, err := New(cs).Build(ctx, rel.ID)
	require.NoError(t, err)

	tree, err := s.GetAppliedTree(ctx, rel.ID)
	require.NoError(t, err)
	assert.Len(t, tree.Typifications, 1)
	assert.Len(t, tree.Taxonomies, 2)
	assert.Len(t, tree.Branches, 3)
	assert.Len(t, result.BranchID, 3)
}

func TestBuildEmptyTreeFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rel, err := s.CreateRelease(ctx, "doc-1", "/files/doc-1.pdf")
	require.NoError(t, err)

	_, err = New(s).Build(ctx, rel.ID)
	assert.Error(t, err)
}
