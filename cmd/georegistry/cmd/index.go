package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	indexCatalog string
	indexLayerID int64
	clearCatalog string
)

// indexCmd publishes layers to the search engine
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the layers of one or every catalog into the search engine",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		runner := application.Runner()

		if indexLayerID > 0 {
			ok, reason := runner.IndexLayer(ctx, indexLayerID)
			if !ok {
				return fmt.Errorf("layer %d not indexed: %s", indexLayerID, reason)
			}
			fmt.Printf("Layer %d indexed\n", indexLayerID)
			return nil
		}

		if indexCatalog != "" {
			rep, err := runner.IndexCatalog(ctx, indexCatalog)
			if err != nil {
				return fmt.Errorf("index failed: %w", err)
			}
			printReport(rep)
			return nil
		}

		reports, err := runner.IndexAll(ctx)
		for _, rep := range reports {
			printReport(rep)
		}
		if err != nil {
			return fmt.Errorf("index failed: %w", err)
		}
		return nil
	},
}

// clearIndexCmd empties the index of a catalog
var clearIndexCmd = &cobra.Command{
	Use:   "clear-index",
	Short: "Delete every indexed document of a catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if clearCatalog == "" {
			return errors.New("--catalog is required")
		}
		if err := application.Runner().ClearIndex(cmd.Context(), clearCatalog); err != nil {
			return fmt.Errorf("clear failed: %w", err)
		}
		fmt.Printf("Index of catalog %s cleared\n", clearCatalog)
		return nil
	},
}

func init() {
	indexCmd.Flags().StringVar(&indexCatalog, "catalog", "", "index only this catalog slug")
	indexCmd.Flags().Int64Var(&indexLayerID, "layer", 0, "index only this layer id")
	indexCmd.MarkFlagsMutuallyExclusive("catalog", "layer")
	clearIndexCmd.Flags().StringVar(&clearCatalog, "catalog", "", "catalog slug whose documents are deleted")
	rootCmd.AddCommand(indexCmd, clearIndexCmd)
}
