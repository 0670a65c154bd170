package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/veridian-group/compliance-cli/internal/report"
)

var (
	reportReleaseID string
	reportOut       string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export the evaluation results of a release to a spreadsheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("report"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := report.NewExporter(st).Export(ctx, reportReleaseID, reportOut); err != nil {
			return err
		}
		zap.L().Info("report written",
			zap.String("release_id", reportReleaseID),
			zap.String("path", reportOut),
		)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportReleaseID, "release", "", "release identifier")
	reportCmd.Flags().StringVar(&reportOut, "out", "report.xlsx", "output spreadsheet path")
	_ = reportCmd.MarkFlagRequired("release")
	rootCmd.AddCommand(reportCmd)
}
