// Package evaluator drives the compliance pipeline for one release: vectorize
// the document, freeze the criteria tree, score every branch with one model
// batch call, and summarize the outcome.
package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/veridian-group/compliance-cli/internal/anonymizer"
	"github.com/veridian-group/compliance-cli/internal/broker"
	"github.com/veridian-group/compliance-cli/internal/config"
	"github.com/veridian-group/compliance-cli/internal/ingest"
	"github.com/veridian-group/compliance-cli/internal/metrics"
	"github.com/veridian-group/compliance-cli/internal/model"
	"github.com/veridian-group/compliance-cli/internal/resilience"
	"github.com/veridian-group/compliance-cli/internal/snapshot"
	"github.com/veridian-group/compliance-cli/internal/storage"
	"github.com/veridian-group/compliance-cli/internal/store"
	"github.com/veridian-group/compliance-cli/internal/tracker"
	"github.com/veridian-group/compliance-cli/internal/vecindex"
	"github.com/veridian-group/compliance-cli/pkg/anthropic"
	"github.com/veridian-group/compliance-cli/pkg/jina"
)

// embedBatchSize caps how many chunk texts go into one embeddings request.
const embedBatchSize = 64

// Publisher is the producing slice of the broker.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// ContextRetriever assembles the document context for one branch.
type ContextRetriever interface {
	Retrieve(ctx context.Context, sourceID string, bc model.BranchContext) ([]model.Chunk, error)
}

// releaseMessage is the payload of every pipeline stage handoff.
type releaseMessage struct {
	ReleaseID string `json:"release_id"`
	TestRunID string `json:"test_run_id,omitempty"`
}

// Orchestrator owns the stage handlers for the evaluation pipeline.
type Orchestrator struct {
	store     store.Store
	tracker   *tracker.Tracker
	snapshots *snapshot.Builder
	retriever ContextRetriever
	index     vecindex.Index
	embedder  jina.Client
	llm       anthropic.Client
	files     storage.Backend
	extractor ingest.Extractor
	chunker   *ingest.Chunker
	producer  Publisher
	metrics   *metrics.Metrics

	institutions []string
	evalModel    string
	summaryModel string
	maxTokens    int64

	batchRetry   resilience.RetryConfig
	pollInterval time.Duration
	batchTimeout time.Duration
}

// Deps collects the orchestrator's collaborators.
type Deps struct {
	Store     store.Store
	Tracker   *tracker.Tracker
	Snapshots *snapshot.Builder
	Retriever ContextRetriever
	Index     vecindex.Index
	Embedder  jina.Client
	LLM       anthropic.Client
	Files     storage.Backend
	Extractor ingest.Extractor
	Chunker   *ingest.Chunker
	Producer  Publisher
	Metrics   *metrics.Metrics // optional
}

// New creates an Orchestrator from its dependencies and the relevant
// configuration sections.
func New(deps Deps, anthCfg config.AnthropicConfig, evalCfg config.EvaluationConfig, institutions []string) *Orchestrator {
	retry := resilience.Attempts(evalCfg.MaxRetries)

	pollInterval := time.Duration(evalCfg.BatchPollSecs) * time.Second
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	batchTimeout := time.Duration(evalCfg.BatchTimeoutMins) * time.Minute
	if batchTimeout <= 0 {
		batchTimeout = 30 * time.Minute
	}

	return &Orchestrator{
		store:        deps.Store,
		tracker:      deps.Tracker,
		snapshots:    deps.Snapshots,
		retriever:    deps.Retriever,
		index:        deps.Index,
		embedder:     deps.Embedder,
		llm:          deps.LLM,
		files:        deps.Files,
		extractor:    deps.Extractor,
		chunker:      deps.Chunker,
		producer:     deps.Producer,
		metrics:      deps.Metrics,
		institutions: institutions,
		evalModel:    anthCfg.Model,
		summaryModel: anthCfg.SummaryModel,
		maxTokens:    anthCfg.MaxTokens,
		batchRetry:   retry,
		pollInterval: pollInterval,
		batchTimeout: batchTimeout,
	}
}

// Register wires the stage handlers onto the broker router.
func (o *Orchestrator) Register(r *broker.Router) {
	r.Register(broker.TopicCreateVectors, broker.TopicHandlerFunc(o.HandleCreateVectors))
	r.Register(broker.TopicCreateCheckTree, broker.TopicHandlerFunc(o.HandleCheckTree))
}

// Start publishes the first stage message for a release. The release must
// already exist; its run starts in PENDING.
func (o *Orchestrator) Start(ctx context.Context, releaseID, testRunID string) error {
	if _, err := o.tracker.Transition(ctx, releaseID, testRunID, model.RunStatusPending, ""); err != nil {
		return err
	}
	msg := releaseMessage{ReleaseID: releaseID, TestRunID: testRunID}
	if err := o.producer.Publish(ctx, broker.TopicCreateVectors, releaseID, msg); err != nil {
		return eris.Wrap(err, "evaluator: queue release")
	}
	o.metrics.IncrementReleasesStarted()
	return nil
}

// HandleCreateVectors extracts, chunks, anonymizes, and indexes one release
// document, then hands off to the evaluation stage. Failures are fatal for
// the run; there is no automatic retry of this stage.
func (o *Orchestrator) HandleCreateVectors(ctx context.Context, msg *broker.Message) error {
	started := time.Now()
	defer func() { o.metrics.ObserveStageLatency("create_vectors", time.Since(started)) }()

	var payload releaseMessage
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return eris.Wrap(err, "evaluator: decode create_vectors payload")
	}

	if _, err := o.tracker.Transition(ctx, payload.ReleaseID, payload.TestRunID, model.RunStatusProcessing, ""); err != nil {
		return err
	}
	if err := o.tracker.Progress(ctx, payload.ReleaseID, "extracting and anonymizing document"); err != nil {
		zap.L().Warn("progress update failed", zap.Error(err))
	}

	if err := o.createVectors(ctx, payload.ReleaseID); err != nil {
		o.fail(ctx, payload.ReleaseID, err)
		return err
	}

	if err := o.producer.Publish(ctx, broker.TopicCreateCheckTree, payload.ReleaseID, payload); err != nil {
		err = eris.Wrap(err, "evaluator: queue check tree stage")
		o.fail(ctx, payload.ReleaseID, err)
		return err
	}
	return nil
}

func (o *Orchestrator) createVectors(ctx context.Context, releaseID string) error {
	release, err := o.store.GetRelease(ctx, releaseID)
	if err != nil {
		return err
	}

	localPath, cleanup, err := o.files.Fetch(ctx, release.FilePath)
	if err != nil {
		return err
	}
	defer cleanup()

	text, err := o.extractor.ExtractText(ctx, localPath)
	if err != nil {
		return err
	}

	chunks := o.chunker.Split(release.ID, text)
	if len(chunks) == 0 {
		return eris.Errorf("evaluator: no text extracted from release %s", releaseID)
	}

	// One anonymizer per run; placeholder numbering is scoped to this release.
	anon := anonymizer.New(anonymizer.DefaultDetectors(o.institutions), nil)
	chunks = anon.AnonymizeChunks(chunks)

	vectors, err := o.embedChunks(ctx, chunks)
	if err != nil {
		return err
	}

	indexRetry := resilience.Attempts(3)
	indexRetry.OnRetry = resilience.RetryLogger("vecindex", "add_chunks")
	if err := resilience.Do(ctx, indexRetry, func(ctx context.Context) error {
		return o.index.AddChunks(ctx, chunks, vectors)
	}); err != nil {
		return eris.Wrap(err, "evaluator: index chunks")
	}

	o.audit(ctx, releaseID, "vectors_created", map[string]any{"chunks": len(chunks)})
	zap.L().Info("release vectorized",
		zap.String("release_id", releaseID),
		zap.Int("chunks", len(chunks)),
	)
	return nil
}

// embedChunks embeds chunk contents in fixed-size batches, a few in flight
// at a time. Order is preserved.
func (o *Orchestrator) embedChunks(ctx context.Context, chunks []model.Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for start := 0; start < len(chunks); start += embedBatchSize {
		start := start
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, ch := range chunks[start:end] {
				texts = append(texts, ch.Content)
			}
			vecs, err := o.embedder.Embed(gctx, texts)
			if err != nil {
				return eris.Wrap(err, "evaluator: embed chunks")
			}
			if len(vecs) != end-start {
				return eris.Errorf("evaluator: got %d embeddings for %d chunks", len(vecs), end-start)
			}
			copy(vectors[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// HandleCheckTree freezes the criteria tree, evaluates every branch with one
// batch call, writes the results, and summarizes the release.
func (o *Orchestrator) HandleCheckTree(ctx context.Context, msg *broker.Message) error {
	started := time.Now()
	defer func() { o.metrics.ObserveStageLatency("check_tree", time.Since(started)) }()

	var payload releaseMessage
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return eris.Wrap(err, "evaluator: decode create_check_tree payload")
	}

	if _, err := o.tracker.Transition(ctx, payload.ReleaseID, payload.TestRunID, model.RunStatusEvaluating, ""); err != nil {
		return err
	}

	if err := o.evaluate(ctx, payload.ReleaseID); err != nil {
		o.fail(ctx, payload.ReleaseID, err)
		return err
	}

	if _, err := o.tracker.Transition(ctx, payload.ReleaseID, payload.TestRunID, model.RunStatusCompleted, ""); err != nil {
		return err
	}
	o.metrics.IncrementRunOutcome(string(model.RunStatusCompleted))

	notification := model.NotificationRequest{
		MessageText: fmt.Sprintf("Evaluation for release %s finished.", payload.ReleaseID),
	}
	if err := o.producer.Publish(ctx, broker.TopicSendNotification, payload.ReleaseID, notification); err != nil {
		zap.L().Warn("notification publish failed",
			zap.String("release_id", payload.ReleaseID),
			zap.Error(err),
		)
	}
	return nil
}

func (o *Orchestrator) evaluate(ctx context.Context, releaseID string) error {
	release, err := o.store.GetRelease(ctx, releaseID)
	if err != nil {
		return err
	}

	snap, err := o.snapshots.Build(ctx, releaseID)
	if err != nil {
		return err
	}
	views := branchViews(snap.Tree)
	if len(views) == 0 {
		return eris.Errorf("evaluator: applied tree for release %s has no branches", releaseID)
	}

	// Retrieve context and build one request per branch.
	requests := make([]anthropic.BatchRequestItem, 0, len(views))
	mappings := make(map[string]model.EntityMapping, len(views))
	for i, v := range views {
		o.progress(ctx, releaseID, fmt.Sprintf("evaluating criteria %d/%d", i+1, len(views)))

		chunks, err := o.retriever.Retrieve(ctx, release.ID, v.queryContext())
		if err != nil {
			return eris.Wrapf(err, "evaluator: retrieve context for branch %s", v.Branch.ID)
		}
		mappings[v.AppliedBranchID] = mappingFromChunks(chunks)

		requests = append(requests, anthropic.BatchRequestItem{
			CustomID: v.AppliedBranchID,
			Params: anthropic.MessageRequest{
				Model:     o.evalModel,
				MaxTokens: o.maxTokens,
				System:    evalSystemPrompt,
				Messages: []anthropic.Message{
					{Role: "user", Content: buildEvalPrompt(v, chunks)},
				},
			},
		})
	}

	results, err := o.runBatch(ctx, releaseID, requests)
	if err != nil {
		return err
	}

	// Persist every branch. Items the batch never answered get the fallback.
	scored := make([]scoredBranch, 0, len(views))
	for _, v := range views {
		eval, ok := results[v.AppliedBranchID]
		if !ok {
			eval = fallbackEvaluation()
		}
		eval.Mapping = mappings[v.AppliedBranchID]
		if err := o.store.SetBranchEvaluation(ctx, v.AppliedBranchID, eval); err != nil {
			return eris.Wrapf(err, "evaluator: store result for branch %s", v.AppliedBranchID)
		}
		scored = append(scored, scoredBranch{Title: v.Branch.Title, Eval: eval})
	}

	description, err := o.summarize(ctx, scored)
	if err != nil {
		return err
	}
	if err := o.store.SetReleaseDescription(ctx, releaseID, description); err != nil {
		return err
	}

	o.metrics.AddBranchesEvaluated(len(views))
	o.audit(ctx, releaseID, "evaluation_completed", map[string]any{"branches": len(views)})
	o.progress(ctx, releaseID, "evaluation complete")
	return nil
}

// runBatch submits one batch covering all branches, waits for it to end, and
// collects per-item results. Transport errors on submit are retried; a parse
// failure on one item falls back without touching the others.
func (o *Orchestrator) runBatch(ctx context.Context, releaseID string, requests []anthropic.BatchRequestItem) (map[string]model.BranchEvaluation, error) {
	batchStarted := time.Now()
	defer func() { o.metrics.ObserveBatchLatency(time.Since(batchStarted)) }()

	batch, err := resilience.DoVal(ctx, o.retryFor("create_batch"), func(ctx context.Context) (*anthropic.BatchResponse, error) {
		return o.llm.CreateBatch(ctx, anthropic.BatchRequest{Requests: requests})
	})
	if err != nil {
		return nil, eris.Wrap(err, "evaluator: submit evaluation batch")
	}

	zap.L().Info("evaluation batch submitted",
		zap.String("release_id", releaseID),
		zap.String("batch_id", batch.ID),
		zap.Int("items", len(requests)),
	)

	if err := o.awaitBatch(ctx, batch.ID); err != nil {
		return nil, err
	}

	resultsRetry := o.retryFor("get_batch_results")
	iter, err := resilience.DoVal(ctx, resultsRetry, func(ctx context.Context) (anthropic.BatchResultIterator, error) {
		return o.llm.GetBatchResults(ctx, batch.ID)
	})
	if err != nil {
		return nil, eris.Wrap(err, "evaluator: fetch batch results")
	}
	defer iter.Close()

	var usage anthropic.TokenUsage
	results := make(map[string]model.BranchEvaluation, len(requests))
	for iter.Next() {
		item := iter.Item()
		if item.Message != nil {
			usage.Add(item.Message.Usage)
		}
		if item.Type != "succeeded" || item.Message == nil {
			zap.L().Warn("batch item failed, using fallback",
				zap.String("custom_id", item.CustomID),
				zap.String("type", item.Type),
			)
			results[item.CustomID] = fallbackEvaluation()
			continue
		}
		eval, err := parseEvaluation(item.Message.Text)
		if err != nil {
			zap.L().Warn("batch item unparseable, using fallback",
				zap.String("custom_id", item.CustomID),
				zap.Error(err),
			)
			results[item.CustomID] = fallbackEvaluation()
			continue
		}
		results[item.CustomID] = eval
	}
	if err := iter.Err(); err != nil {
		return nil, eris.Wrap(err, "evaluator: read batch results")
	}
	o.metrics.AddTokens(usage.InputTokens, usage.OutputTokens)
	return results, nil
}

// retryFor tags the shared batch retry policy with the operation being retried.
func (o *Orchestrator) retryFor(operation string) resilience.RetryConfig {
	cfg := o.batchRetry
	cfg.OnRetry = resilience.RetryLogger("anthropic", operation)
	return cfg
}

// awaitBatch polls until the batch ends or the timeout budget runs out. Each
// poll carries its own retry budget so a transient blip mid-wait does not
// fail a run that is otherwise fine.
func (o *Orchestrator) awaitBatch(ctx context.Context, batchID string) error {
	pollRetry := o.retryFor("get_batch")
	deadline := time.Now().Add(o.batchTimeout)
	for {
		batch, err := resilience.DoVal(ctx, pollRetry, func(ctx context.Context) (*anthropic.BatchResponse, error) {
			return o.llm.GetBatch(ctx, batchID)
		})
		if err != nil {
			return eris.Wrap(err, "evaluator: poll batch")
		}
		if batch.ProcessingStatus == "ended" {
			return nil
		}
		if time.Now().After(deadline) {
			return eris.Errorf("evaluator: batch %s did not end within %s", batchID, o.batchTimeout)
		}

		timer := time.NewTimer(o.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return eris.Wrap(ctx.Err(), "evaluator: batch wait canceled")
		case <-timer.C:
		}
	}
}

// summarize asks the model for the release description from the highest and
// lowest scoring branches.
func (o *Orchestrator) summarize(ctx context.Context, scored []scoredBranch) (string, error) {
	resp, err := o.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     o.summaryModel,
		MaxTokens: o.maxTokens,
		System:    summarySystemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: buildSummaryPrompt(summaryBranches(scored))},
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "evaluator: generate summary")
	}
	o.metrics.AddTokens(resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return resp.Text, nil
}

// branchViews flattens the applied tree into one view per branch.
func branchViews(tree *model.AppliedTree) []branchView {
	taxByID := make(map[string]model.AppliedTaxonomy, len(tree.Taxonomies))
	for _, tax := range tree.Taxonomies {
		taxByID[tax.ID] = tax
	}
	typByID := make(map[string]model.AppliedTypification, len(tree.Typifications))
	for _, typ := range tree.Typifications {
		typByID[typ.ID] = typ
	}

	views := make([]branchView, 0, len(tree.Branches))
	for _, br := range tree.Branches {
		tax := taxByID[br.AppliedTaxonomyID]
		views = append(views, branchView{
			AppliedBranchID: br.ID,
			Branch:          br,
			Taxonomy:        tax,
			Typification:    typByID[tax.AppliedTypificationID],
		})
	}
	return views
}

// fail moves the run to ERROR. Transition errors here are logged only; the
// original failure is what matters.
func (o *Orchestrator) fail(ctx context.Context, releaseID string, cause error) {
	o.metrics.IncrementRunOutcome(string(model.RunStatusError))
	if _, err := o.tracker.Transition(ctx, releaseID, "", model.RunStatusError, eris.ToString(cause, false)); err != nil {
		zap.L().Error("could not record pipeline failure",
			zap.String("release_id", releaseID),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) progress(ctx context.Context, releaseID, text string) {
	if err := o.tracker.Progress(ctx, releaseID, text); err != nil {
		zap.L().Warn("progress update failed",
			zap.String("release_id", releaseID),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) audit(ctx context.Context, releaseID, action string, detail map[string]any) {
	event := model.AuditEvent{
		ID:        uuid.New().String(),
		ReleaseID: releaseID,
		Action:    action,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.store.AppendAudit(ctx, event); err != nil {
		zap.L().Warn("audit append failed",
			zap.String("release_id", releaseID),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}
