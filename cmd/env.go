package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/veridian-group/compliance-cli/internal/broadcast"
	"github.com/veridian-group/compliance-cli/internal/broker"
	"github.com/veridian-group/compliance-cli/internal/evaluator"
	"github.com/veridian-group/compliance-cli/internal/ingest"
	"github.com/veridian-group/compliance-cli/internal/metrics"
	"github.com/veridian-group/compliance-cli/internal/retriever"
	"github.com/veridian-group/compliance-cli/internal/snapshot"
	"github.com/veridian-group/compliance-cli/internal/storage"
	"github.com/veridian-group/compliance-cli/internal/store"
	"github.com/veridian-group/compliance-cli/internal/tracker"
	"github.com/veridian-group/compliance-cli/internal/vecindex"
	"github.com/veridian-group/compliance-cli/pkg/anthropic"
	"github.com/veridian-group/compliance-cli/pkg/jina"
)

// pipelineEnv holds the initialized store, clients, and orchestrator shared
// by the serve and evaluate commands.
type pipelineEnv struct {
	Store        store.Store
	Index        vecindex.Index
	Files        storage.Backend
	Tracker      *tracker.Tracker
	Broadcaster  *broadcast.Broadcaster
	Orchestrator *evaluator.Orchestrator
	Metrics      *metrics.Metrics
	Router       *broker.Router
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Broadcaster != nil {
		_ = pe.Broadcaster.Close()
	}
	if pe.Index != nil {
		_ = pe.Index.Close()
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initIndex opens the configured vector index backend.
func initIndex() (vecindex.Index, error) {
	switch cfg.VecIndex.Driver {
	case "sqlite", "":
		return vecindex.NewSQLiteIndex(cfg.VecIndex.Path)
	case "memory":
		return vecindex.NewMemoryIndex(), nil
	default:
		return nil, eris.Errorf("unknown vecindex driver %q", cfg.VecIndex.Driver)
	}
}

// initPipeline sets up the store, index, clients, and orchestrator. The
// producer carries stage handoffs; serve passes a Kafka producer, evaluate
// passes an in-process one. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string, producer evaluator.Publisher) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	index, err := initIndex()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	files, err := storage.New(cfg.Storage)
	if err != nil {
		_ = index.Close()
		_ = st.Close()
		return nil, err
	}

	// Push events need Redis; only serve mode carries that dependency.
	var bc *broadcast.Broadcaster
	if mode == "serve" {
		bc, err = broadcast.New(ctx, cfg.Redis.URL, cfg.Redis.Channel)
		if err != nil {
			_ = index.Close()
			_ = st.Close()
			return nil, err
		}
	}
	var notifier tracker.Notifier
	if bc != nil {
		notifier = bc
	}
	trk := tracker.New(st, notifier)

	jinaClient := jina.NewClient(cfg.Jina.Key,
		jina.WithBaseURL(cfg.Jina.BaseURL),
		jina.WithModel(cfg.Jina.Model),
		jina.WithRateLimit(cfg.Jina.RPS),
	)
	llm := anthropic.NewClient(cfg.Anthropic.Key)

	extractor, err := ingest.NewExtractor(cfg.Extract)
	if err != nil {
		_ = index.Close()
		_ = st.Close()
		return nil, err
	}

	mtr := metrics.New()
	orch := evaluator.New(evaluator.Deps{
		Store:     st,
		Tracker:   trk,
		Snapshots: snapshot.New(st),
		Retriever: retriever.New(jinaClient, index, cfg.Retriever.TopK, cfg.Retriever.Margin),
		Index:     index,
		Embedder:  jinaClient,
		LLM:       llm,
		Files:     files,
		Extractor: extractor,
		Chunker:   ingest.NewChunker(cfg.Chunk.Size, cfg.Chunk.Overlap),
		Producer:  producer,
		Metrics:   mtr,
	}, cfg.Anthropic, cfg.Evaluation, cfg.Anonymizer.Institutions)

	router := broker.NewRouter(nil)
	orch.Register(router)

	return &pipelineEnv{
		Store:        st,
		Index:        index,
		Files:        files,
		Tracker:      trk,
		Broadcaster:  bc,
		Orchestrator: orch,
		Metrics:      mtr,
		Router:       router,
	}, nil
}
