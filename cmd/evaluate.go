package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/veridian-group/compliance-cli/internal/broker"
	"github.com/veridian-group/compliance-cli/internal/evaluator"
	"github.com/veridian-group/compliance-cli/internal/model"
)

var (
	evaluateDocumentID string
	evaluateFile       string
)

// inlineBus runs stage handoffs in-process instead of through Kafka, so a
// single release can be evaluated without broker infrastructure. Publishing
// dispatches the handler synchronously; topics without a handler (the
// notification trigger) are skipped by the router.
type inlineBus struct {
	router *broker.Router
}

func (b *inlineBus) Publish(ctx context.Context, topic, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrapf(err, "marshal payload for %s", topic)
	}
	return b.router.Handle(ctx, &broker.Message{Topic: topic, Key: []byte(key), Value: value})
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate one document release end to end, without a broker",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		bus := &inlineBus{}
		env, err := initPipeline(ctx, "evaluate", bus)
		if err != nil {
			return err
		}
		defer env.Close()
		bus.router = env.Router

		f, err := os.Open(evaluateFile)
		if err != nil {
			return eris.Wrapf(err, "open %s", evaluateFile)
		}
		path, err := env.Files.Put(ctx, evaluateFile, f)
		f.Close()
		if err != nil {
			return err
		}

		release, err := env.Store.CreateRelease(ctx, evaluateDocumentID, path)
		if err != nil {
			return err
		}
		zap.L().Info("release created", zap.String("release_id", release.ID))

		if err := env.Orchestrator.Start(ctx, release.ID, ""); err != nil {
			return err
		}

		state, err := waitForRun(ctx, env, release.ID)
		if err != nil {
			return err
		}

		release, err = env.Store.GetRelease(ctx, release.ID)
		if err != nil {
			return err
		}
		zap.L().Info("evaluation finished",
			zap.String("release_id", release.ID),
			zap.String("status", string(state.Status)),
			zap.String("description", release.Description),
		)
		return nil
	},
}

// waitForRun polls the run state with the configured budget.
func waitForRun(ctx context.Context, env *pipelineEnv, releaseID string) (*model.RunState, error) {
	return evaluator.WaitForCompletion(ctx, env.Tracker, releaseID,
		time.Duration(cfg.Wait.IntervalSecs)*time.Second,
		cfg.Wait.MaxAttempts,
	)
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateDocumentID, "document", "", "document identifier the release belongs to")
	evaluateCmd.Flags().StringVar(&evaluateFile, "file", "", "path of the release document to evaluate")
	_ = evaluateCmd.MarkFlagRequired("document")
	_ = evaluateCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(evaluateCmd)
}
