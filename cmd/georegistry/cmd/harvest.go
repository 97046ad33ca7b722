package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var harvestServiceID int64

// harvestCmd refreshes the layers of remote services
var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Harvest the layers of one or every active service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		runner := application.Runner()

		if harvestServiceID > 0 {
			res, err := runner.HarvestService(ctx, harvestServiceID)
			if err != nil {
				return fmt.Errorf("harvest failed: %w", err)
			}
			fmt.Printf("Service %d: %d layers (%d new, %d skipped, %d failed)\n",
				harvestServiceID, res.Layers, res.Created, res.Skipped, res.Failed)
			for _, s := range res.Spawned {
				fmt.Printf("  spawned service %d (%s) %s\n", s.ID, s.Type, s.URL)
			}
			for _, w := range res.Warnings {
				fmt.Printf("  warning: %s\n", w)
			}
			return nil
		}

		rep, err := runner.HarvestAll(ctx)
		if err != nil {
			return fmt.Errorf("harvest failed: %w", err)
		}
		printReport(rep)
		return nil
	},
}

func init() {
	harvestCmd.Flags().Int64Var(&harvestServiceID, "service", 0, "harvest only this service id")
	rootCmd.AddCommand(harvestCmd)
}
