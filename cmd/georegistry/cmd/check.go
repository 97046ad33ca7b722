package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	checkServiceID int64
	checkLayerID   int64
	checkLayers    bool
)

// checkCmd records uptime checks
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check services (and optionally layers) and record the results",
	Long: `Check runs a timed harvest of each active service and records a check.
With --layers every active layer is checked as well (a GetMap, export or
tile request) and a successful image becomes the layer thumbnail.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		runner := application.Runner()

		switch {
		case checkServiceID > 0:
			printOutcome(runner.CheckService(ctx, checkServiceID))
			return nil
		case checkLayerID > 0:
			printOutcome(runner.CheckLayer(ctx, checkLayerID))
			return nil
		}

		reports, err := runner.CheckAll(ctx, checkLayers)
		for _, rep := range reports {
			printReport(rep)
		}
		if err != nil {
			return fmt.Errorf("check failed: %w", err)
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().Int64Var(&checkServiceID, "service", 0, "check only this service id")
	checkCmd.Flags().Int64Var(&checkLayerID, "layer", 0, "check only this layer id")
	checkCmd.Flags().BoolVar(&checkLayers, "layers", false, "also check every layer")
	checkCmd.MarkFlagsMutuallyExclusive("service", "layer")
	rootCmd.AddCommand(checkCmd)
}
