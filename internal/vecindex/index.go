// Package vecindex stores chunk embeddings and serves similarity search
// for context retrieval.
package vecindex

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/rotisserie/eris"

	"github.com/veridian-group/compliance-cli/internal/model"
)

// Index stores anonymized chunks with their embeddings, scoped by source
// document.
type Index interface {
	// AddChunks stores chunks with their embedding vectors. Chunks and
	// embeddings are parallel slices.
	AddChunks(ctx context.Context, chunks []model.Chunk, embeddings [][]float32) error

	// Search returns the k chunks of the given source most similar to the
	// query vector, best first.
	Search(ctx context.Context, sourceID string, query []float32, k int) ([]model.Chunk, error)

	// ChunksInRange returns the chunks of a source whose ordinal index falls
	// in [lo, hi], ascending.
	ChunksInRange(ctx context.Context, sourceID string, lo, hi int) ([]model.Chunk, error)

	// Count returns how many chunks the source has.
	Count(ctx context.Context, sourceID string) (int, error)

	Close() error
}

// encodeVector serializes a float32 vector as a little-endian blob.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector deserializes a little-endian blob back into a float32 vector.
func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, eris.Errorf("vecindex: malformed vector blob of %d bytes", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
