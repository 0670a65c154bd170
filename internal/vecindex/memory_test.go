package vecindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-group/compliance-cli/internal/model"
)

func seedIndex(t *testing.T) *MemoryIndex {
	t.Helper()
	idx := NewMemoryIndex()

	chunks := make([]model.Chunk, 5)
	vectors := make([][]float32, 5)
	for i := range chunks {
		chunks[i] = model.Chunk{
			ID:       model.ChunkID("rel-1", i),
			SourceID: "rel-1",
			Index:    i,
			Total:    5,
			Content:  "chunk",
		}
		vectors[i] = []float32{0, 0, 0}
		vectors[i][i%3] = 1
	}
	require.NoError(t, idx.AddChunks(context.Background(), chunks, vectors))
	return idx
}

func TestMemorySearchRanksBySimilarity(t *testing.T) {
	idx := seedIndex(t)

	// Query along the second axis matches chunks 1 and 4.
	got, err := idx.Search(context.Background(), "rel-1", []float32{0, 1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Index)
	assert.Equal(t, 4, got[1].Index)
}

func TestMemorySearchScopedBySource(t *testing.T) {
	idx := seedIndex(t)

	got, err := idx.Search(context.Background(), "rel-other", []float32{0, 1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemorySearchClampsK(t *testing.T) {
	idx := seedIndex(t)

	got, err := idx.Search(context.Background(), "rel-1", []float32{1, 0, 0}, 50)
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestMemoryChunksInRange(t *testing.T) {
	idx := seedIndex(t)

	got, err := idx.ChunksInRange(context.Background(), "rel-1", 1, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, ch := range got {
		assert.Equal(t, i+1, ch.Index)
	}
}

func TestMemoryCount(t *testing.T) {
	idx := seedIndex(t)

	n, err := idx.Count(context.Background(), "rel-1")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = idx.Count(context.Background(), "rel-none")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAddChunksLengthMismatch(t *testing.T) {
	idx := NewMemoryIndex()
	err := idx.AddChunks(context.Background(), make([]model.Chunk, 2), make([][]float32, 1))
	assert.Error(t, err)
}

func TestVectorBlobRoundTrip(t *testing.T) {
	in := []float32{1.5, -2.25, 0, 3.0e-4}
	out, err := decodeVector(encodeVector(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
