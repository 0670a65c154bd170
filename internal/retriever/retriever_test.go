package retriever

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-group/compliance-cli/internal/model"
	"github.com/veridian-group/compliance-cli/internal/resilience"
	"github.com/veridian-group/compliance-cli/internal/vecindex"
)

// stubEmbedder returns canned vectors, optionally failing first.
type stubEmbedder struct {
	vec      []float32
	failures int
	calls    int
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.failures > 0 {
		s.failures--
		return nil, resilience.NewTransientError(eris.New("upstream 503"), 503)
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vec
	}
	return out, nil
}

func oneHot(dim, at int) []float32 {
	v := make([]float32, dim)
	v[at] = 1
	return v
}

// seedTenChunks indexes ten chunks whose embeddings are one-hot on their
// own ordinal, so a one-hot query hits exactly one chunk.
func seedTenChunks(t *testing.T) *vecindex.MemoryIndex {
	t.Helper()
	idx := vecindex.NewMemoryIndex()

	chunks := make([]model.Chunk, 10)
	vectors := make([][]float32, 10)
	for i := range chunks {
		chunks[i] = model.Chunk{
			ID:       model.ChunkID("rel-1", i),
			SourceID: "rel-1",
			Index:    i,
			Total:    10,
			Content:  "chunk",
		}
		vectors[i] = oneHot(10, i)
	}
	require.NoError(t, idx.AddChunks(context.Background(), chunks, vectors))
	return idx
}

func branchCtx() model.BranchContext {
	return model.BranchContext{
		Branch:   model.Branch{ID: "br-1", Title: "Capital reserves", Description: "Minimum reserve disclosure"},
		Taxonomy: model.Taxonomy{ID: "tax-1", Title: "Prudential requirements"},
	}
}

func indices(chunks []model.Chunk) []int {
	out := make([]int, len(chunks))
	for i, ch := range chunks {
		out[i] = ch.Index
	}
	return out
}

func TestRetrieveExpandsAroundHit(t *testing.T) {
	idx := seedTenChunks(t)
	emb := &stubEmbedder{vec: oneHot(10, 5)}

	r := New(emb, idx, 1, 2)
	got, err := r.Retrieve(context.Background(), "rel-1", branchCtx())
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4, 5, 6, 7}, indices(got))
}

func TestRetrieveClipsAtDocumentEdges(t *testing.T) {
	idx := seedTenChunks(t)

	r := New(&stubEmbedder{vec: oneHot(10, 0)}, idx, 1, 2)
	got, err := r.Retrieve(context.Background(), "rel-1", branchCtx())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, indices(got))

	r = New(&stubEmbedder{vec: oneHot(10, 9)}, idx, 1, 2)
	got, err = r.Retrieve(context.Background(), "rel-1", branchCtx())
	require.NoError(t, err)
	assert.Equal(t, []int{7, 8, 9}, indices(got))
}

func TestRetrieveDeduplicatesOverlappingWindows(t *testing.T) {
	idx := seedTenChunks(t)
	// Two hits whose windows overlap: 2 -> [0,4] and 4 -> [2,6].
	emb := &stubEmbedder{vec: []float32{0, 0, 1, 0, 0.9, 0, 0, 0, 0, 0}}

	r := New(emb, idx, 2, 2)
	got, err := r.Retrieve(context.Background(), "rel-1", branchCtx())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, indices(got))
}

func TestRetrieveEmptyIndex(t *testing.T) {
	idx := vecindex.NewMemoryIndex()

	r := New(&stubEmbedder{vec: oneHot(10, 0)}, idx, 3, 2)
	got, err := r.Retrieve(context.Background(), "rel-1", branchCtx())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetrieveRetriesTransientEmbedFailure(t *testing.T) {
	idx := seedTenChunks(t)
	emb := &stubEmbedder{vec: oneHot(10, 5), failures: 1}

	r := New(emb, idx, 1, 2)
	r.retry.InitialBackoff = time.Millisecond
	got, err := r.Retrieve(context.Background(), "rel-1", branchCtx())
	require.NoError(t, err)
	assert.Equal(t, 2, emb.calls)
	assert.Len(t, got, 5)
}

func TestBuildQuery(t *testing.T) {
	q := BuildQuery(branchCtx())
	assert.Equal(t, "Prudential requirements\nCapital reserves\nMinimum reserve disclosure", q)

	_, err := New(&stubEmbedder{}, vecindex.NewMemoryIndex(), 1, 1).
		Retrieve(context.Background(), "rel-1", model.BranchContext{})
	assert.Error(t, err)
}
