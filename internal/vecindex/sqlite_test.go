package vecindex

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-group/compliance-cli/internal/model"
)

func newTestSQLiteIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	idx, err := NewSQLiteIndex(filepath.Join(t.TempDir(), "vectors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestSQLiteIndexRoundTripsAnonymizationState(t *testing.T) {
	idx := newTestSQLiteIndex(t)

	chunks := []model.Chunk{
		{
			ID:         model.ChunkID("rel-1", 0),
			SourceID:   "rel-1",
			Index:      0,
			Total:      2,
			Content:    "contact <EMAIL_1> at <INSTITUTION_1>",
			Anonymized: true,
			Mapping: map[string]string{
				"jane@corp.example": "<EMAIL_1>",
				"Banco Azul":        "<INSTITUTION_1>",
			},
		},
		{
			ID:       model.ChunkID("rel-1", 1),
			SourceID: "rel-1",
			Index:    1,
			Total:    2,
			Content:  "no identifiers here",
		},
	}
	vectors := [][]float32{{1, 0, 0}, {0, 1, 0}}
	require.NoError(t, idx.AddChunks(context.Background(), chunks, vectors))

	got, err := idx.ChunksInRange(context.Background(), "rel-1", 0, 1)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.True(t, got[0].Anonymized)
	assert.Equal(t, chunks[0].Mapping, got[0].Mapping)
	assert.Equal(t, chunks[0].Content, got[0].Content)

	assert.False(t, got[1].Anonymized)
	assert.Nil(t, got[1].Mapping)
}

func TestSQLiteIndexRebuildsNeighborIDs(t *testing.T) {
	idx := newTestSQLiteIndex(t)

	chunks := make([]model.Chunk, 3)
	vectors := make([][]float32, 3)
	for i := range chunks {
		chunks[i] = model.Chunk{
			ID:       model.ChunkID("rel-1", i),
			SourceID: "rel-1",
			Index:    i,
			Total:    3,
			Content:  "chunk",
		}
		vectors[i] = []float32{1, 0, 0}
	}
	require.NoError(t, idx.AddChunks(context.Background(), chunks, vectors))

	got, err := idx.ChunksInRange(context.Background(), "rel-1", 0, 2)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Empty(t, got[0].PrevID)
	assert.Equal(t, model.ChunkID("rel-1", 1), got[0].NextID)
	assert.Equal(t, model.ChunkID("rel-1", 0), got[1].PrevID)
	assert.Equal(t, model.ChunkID("rel-1", 2), got[1].NextID)
	assert.Empty(t, got[2].NextID)
}

func TestSQLiteIndexUpsertReplacesMapping(t *testing.T) {
	idx := newTestSQLiteIndex(t)

	ch := model.Chunk{
		ID:         model.ChunkID("rel-1", 0),
		SourceID:   "rel-1",
		Index:      0,
		Total:      1,
		Content:    "v1",
		Anonymized: true,
		Mapping:    map[string]string{"Banco Azul": "<INSTITUTION_1>"},
	}
	vec := [][]float32{{1, 0, 0}}
	require.NoError(t, idx.AddChunks(context.Background(), []model.Chunk{ch}, vec))

	ch.Content = "v2"
	ch.Mapping = map[string]string{"Cooperativa Verde": "<INSTITUTION_2>"}
	require.NoError(t, idx.AddChunks(context.Background(), []model.Chunk{ch}, vec))

	got, err := idx.ChunksInRange(context.Background(), "rel-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "v2", got[0].Content)
	assert.Equal(t, map[string]string{"Cooperativa Verde": "<INSTITUTION_2>"}, got[0].Mapping)

	n, err := idx.Count(context.Background(), "rel-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
