// Package retriever selects the document context for evaluating a single
// criteria branch.
package retriever

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/veridian-group/compliance-cli/internal/model"
	"github.com/veridian-group/compliance-cli/internal/resilience"
	"github.com/veridian-group/compliance-cli/internal/vecindex"
	"github.com/veridian-group/compliance-cli/pkg/jina"
)

const (
	// DefaultTopK is how many similarity hits seed the context window.
	DefaultTopK = 3
	// DefaultMargin is how many neighbor chunks are pulled in on each side
	// of a hit.
	DefaultMargin = 2
)

// Retriever embeds a branch query and assembles the surrounding document
// context from the vector index.
type Retriever struct {
	embedder jina.Client
	index    vecindex.Index
	topK     int
	margin   int
	retry    resilience.RetryConfig
}

// New creates a Retriever. Non-positive topK or negative margin fall back
// to the defaults.
func New(embedder jina.Client, index vecindex.Index, topK, margin int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if margin < 0 {
		margin = DefaultMargin
	}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("jina", "embed_query")
	return &Retriever{
		embedder: embedder,
		index:    index,
		topK:     topK,
		margin:   margin,
		retry:    retry,
	}
}

// Retrieve returns the context chunks for one branch, deduplicated and in
// ascending document order. An empty index yields an empty slice, not an
// error.
func (r *Retriever) Retrieve(ctx context.Context, sourceID string, bc model.BranchContext) ([]model.Chunk, error) {
	query := BuildQuery(bc)
	if query == "" {
		return nil, eris.New("retriever: empty branch query")
	}

	vecs, err := resilience.DoVal(ctx, r.retry, func(ctx context.Context) ([][]float32, error) {
		return r.embedder.Embed(ctx, []string{query})
	})
	if err != nil {
		return nil, eris.Wrap(err, "retriever: embed query")
	}
	if len(vecs) != 1 {
		return nil, eris.Errorf("retriever: got %d query embeddings", len(vecs))
	}

	hits, err := r.index.Search(ctx, sourceID, vecs[0], r.topK)
	if err != nil {
		return nil, eris.Wrap(err, "retriever: similarity search")
	}
	if len(hits) == 0 {
		zap.L().Debug("no similarity hits for branch",
			zap.String("source_id", sourceID),
			zap.String("branch_id", bc.Branch.ID),
		)
		return nil, nil
	}

	seen := make(map[string]bool)
	var out []model.Chunk
	for _, hit := range hits {
		lo := hit.Index - r.margin
		if lo < 0 {
			lo = 0
		}
		hi := hit.Index + r.margin
		if max := hit.Total - 1; hi > max {
			hi = max
		}

		window, err := r.index.ChunksInRange(ctx, sourceID, lo, hi)
		if err != nil {
			return nil, eris.Wrap(err, "retriever: expand neighbors")
		}
		for _, ch := range window {
			if seen[ch.ID] {
				continue
			}
			seen[ch.ID] = true
			out = append(out, ch)
		}
	}

	sort.Slice(out, func(a, b int) bool { return out[a].Index < out[b].Index })
	return out, nil
}

// BuildQuery composes the similarity query from the branch and its parent
// taxonomy.
func BuildQuery(bc model.BranchContext) string {
	parts := []string{
		bc.Taxonomy.Title,
		bc.Branch.Title,
		bc.Branch.Description,
	}
	var nonEmpty []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n")
}
