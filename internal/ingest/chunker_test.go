package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitAssignsStableIdentifiers(t *testing.T) {
	c := NewChunker(10, 0)
	chunks := c.Split("rel-42", strings.Repeat("a", 25))

	require.Len(t, chunks, 3)
	assert.Equal(t, "rel-42:000000", chunks[0].ID)
	assert.Equal(t, "rel-42:000001", chunks[1].ID)
	assert.Equal(t, "rel-42:000002", chunks[2].ID)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		assert.Equal(t, 3, ch.Total)
	}
}

func TestSplitNeighborLinks(t *testing.T) {
	c := NewChunker(10, 0)
	chunks := c.Split("rel-1", strings.Repeat("x", 30))

	require.Len(t, chunks, 3)
	assert.Empty(t, chunks[0].PrevID)
	assert.Equal(t, chunks[0].ID, chunks[1].PrevID)
	assert.Equal(t, chunks[2].ID, chunks[1].NextID)
	assert.Empty(t, chunks[2].NextID)
}

func TestSplitOverlap(t *testing.T) {
	c := NewChunker(10, 4)
	text := "abcdefghijklmnopqrstuvwxyz"
	chunks := c.Split("rel-1", text)

	require.GreaterOrEqual(t, len(chunks), 2)
	// Each chunk after the first starts 6 runes (size-overlap) later.
	assert.Equal(t, "abcdefghij", chunks[0].Content)
	assert.Equal(t, "ghijklmnop", chunks[1].Content)
}

func TestSplitEmptyText(t *testing.T) {
	c := NewChunker(0, -1)
	assert.Nil(t, c.Split("rel-1", "   \n "))
}

func TestLocalExtractorReadsPlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "release.txt")
	require.NoError(t, os.WriteFile(path, []byte("regulatory content"), 0o644))

	e := NewLocalExtractor("")
	text, err := e.ExtractText(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "regulatory content", text)
}

func TestLocalExtractorMissingFile(t *testing.T) {
	e := NewLocalExtractor("")
	_, err := e.ExtractText(context.Background(), filepath.Join(t.TempDir(), "absent.pdf"))
	assert.Error(t, err)
}
