package ingest

import (
	"strings"

	"github.com/veridian-group/compliance-cli/internal/model"
)

const (
	// DefaultChunkSize is the target chunk length in runes.
	DefaultChunkSize = 1500
	// DefaultChunkOverlap is how many runes consecutive chunks share.
	DefaultChunkOverlap = 200
)

// Chunker splits extracted text into fixed-size overlapping chunks with
// stable positional metadata.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a Chunker. Non-positive size or overlap fall back to the
// defaults; overlap is clamped below size.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split produces the ordered chunk list for one source document. Every chunk
// carries its identifier, ordinal index, total count, and neighbor IDs.
func (c *Chunker) Split(sourceID, text string) []model.Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	step := c.size - c.overlap

	var contents []string
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		contents = append(contents, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}

	total := len(contents)
	chunks := make([]model.Chunk, total)
	for i, content := range contents {
		chunk := model.Chunk{
			ID:       model.ChunkID(sourceID, i),
			SourceID: sourceID,
			Index:    i,
			Total:    total,
			Content:  content,
		}
		if i > 0 {
			chunk.PrevID = model.ChunkID(sourceID, i-1)
		}
		if i < total-1 {
			chunk.NextID = model.ChunkID(sourceID, i+1)
		}
		chunks[i] = chunk
	}
	return chunks
}
