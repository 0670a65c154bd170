package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/veridian-group/compliance-cli/internal/registry"
	"github.com/veridian-group/compliance-cli/pkg/notion"
)

var criteriaFixture string

var criteriaCmd = &cobra.Command{
	Use:   "criteria",
	Short: "Sync the criteria tree from Notion into the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// A fixture file replaces the Notion import entirely, so only the
		// store needs to be configured.
		mode := "criteria"
		if criteriaFixture != "" {
			mode = "migrate"
		}
		if err := cfg.Validate(mode); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		var tree *registry.Tree
		if criteriaFixture != "" {
			tree, err = registry.LoadTreeFromFile(criteriaFixture)
			if err != nil {
				return err
			}
			if err := registry.UpsertTree(ctx, st, tree); err != nil {
				return err
			}
		} else {
			client := notion.NewClient(cfg.Notion.Token)
			tree, err = registry.NewImporter(client, cfg.Notion).Sync(ctx, st)
			if err != nil {
				return err
			}
		}

		zap.L().Info("criteria tree synced",
			zap.Int("typifications", len(tree.Typifications)),
			zap.Int("taxonomies", len(tree.Taxonomies)),
			zap.Int("branches", len(tree.Branches)),
		)
		return nil
	},
}

func init() {
	criteriaCmd.Flags().StringVar(&criteriaFixture, "fixture", "", "load the tree from a JSON file instead of Notion")
	rootCmd.AddCommand(criteriaCmd)
}
