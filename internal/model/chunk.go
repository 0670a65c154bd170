package model

import "fmt"

// Chunk is a contiguous slice of extracted document text. Chunks are produced
// once at ingestion and never mutated afterwards; the vector index stores one
// embedding per chunk alongside this metadata.
type Chunk struct {
	ID         string            `json:"id"`
	SourceID   string            `json:"source_id"`
	Index      int               `json:"index"`
	Total      int               `json:"total"`
	PrevID     string            `json:"prev_id,omitempty"`
	NextID     string            `json:"next_id,omitempty"`
	Content    string            `json:"content"`
	Anonymized bool              `json:"anonymized"`
	Mapping    map[string]string `json:"mapping,omitempty"`
}

// ChunkID builds the stable identifier for a chunk position.
func ChunkID(sourceID string, index int) string {
	return fmt.Sprintf("%s:%06d", sourceID, index)
}
