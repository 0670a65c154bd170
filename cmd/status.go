package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/veridian-group/compliance-cli/internal/evaluator"
	"github.com/veridian-group/compliance-cli/internal/model"
	"github.com/veridian-group/compliance-cli/internal/tracker"
)

var (
	statusReleaseID string
	statusWait      bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the run state of a release",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("status"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		trk := tracker.New(st, nil)

		var state *model.RunState
		if statusWait {
			state, err = evaluator.WaitForCompletion(ctx, trk, statusReleaseID,
				time.Duration(cfg.Wait.IntervalSecs)*time.Second,
				cfg.Wait.MaxAttempts,
			)
			if err != nil {
				return err
			}
		} else {
			state, err = trk.State(ctx, statusReleaseID)
			if err != nil {
				return err
			}
			if state == nil {
				state = &model.RunState{ReleaseID: statusReleaseID, Status: model.RunStatusPending}
			}
		}

		zap.L().Info("run state",
			zap.String("release_id", state.ReleaseID),
			zap.String("status", string(state.Status)),
			zap.String("progress", state.Progress),
			zap.String("error", state.Error),
		)
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusReleaseID, "release", "", "release identifier")
	statusCmd.Flags().BoolVar(&statusWait, "wait", false, "poll until the run completes or errors")
	_ = statusCmd.MarkFlagRequired("release")
	rootCmd.AddCommand(statusCmd)
}
