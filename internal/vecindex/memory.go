package vecindex

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/veridian-group/compliance-cli/internal/model"
)

// MemoryIndex is an in-memory Index used by tests and single-shot CLI runs.
type MemoryIndex struct {
	mu      sync.RWMutex
	chunks  map[string][]model.Chunk // source ID -> chunks ordered by index
	vectors map[string][]float32     // chunk ID -> embedding
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		chunks:  make(map[string][]model.Chunk),
		vectors: make(map[string][]float32),
	}
}

func (m *MemoryIndex) AddChunks(_ context.Context, chunks []model.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return eris.Errorf("vecindex: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, ch := range chunks {
		m.chunks[ch.SourceID] = append(m.chunks[ch.SourceID], ch)
		m.vectors[ch.ID] = embeddings[i]
	}
	for sourceID := range m.chunks {
		sort.Slice(m.chunks[sourceID], func(a, b int) bool {
			return m.chunks[sourceID][a].Index < m.chunks[sourceID][b].Index
		})
	}
	return nil
}

func (m *MemoryIndex) Search(_ context.Context, sourceID string, query []float32, k int) ([]model.Chunk, error) {
	if k <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		chunk model.Chunk
		sim   float64
	}
	var candidates []scored
	for _, ch := range m.chunks[sourceID] {
		candidates = append(candidates, scored{
			chunk: ch,
			sim:   cosineSimilarity(m.vectors[ch.ID], query),
		})
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].sim > candidates[b].sim
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	out := make([]model.Chunk, 0, k)
	for _, c := range candidates[:k] {
		out = append(out, c.chunk)
	}
	return out, nil
}

func (m *MemoryIndex) ChunksInRange(_ context.Context, sourceID string, lo, hi int) ([]model.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Chunk
	for _, ch := range m.chunks[sourceID] {
		if ch.Index >= lo && ch.Index <= hi {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (m *MemoryIndex) Count(_ context.Context, sourceID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks[sourceID]), nil
}

func (m *MemoryIndex) Close() error {
	return nil
}
