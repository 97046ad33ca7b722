package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
)

var (
	registerType    string
	registerCatalog string
	registerHarvest bool
)

// registerCmd adds a remote service to the catalog
var registerCmd = &cobra.Command{
	Use:   "register URL",
	Short: "Register a remote service, detecting its type when --type is omitted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		runner := application.Runner()

		var typ domain.ServiceType
		if registerType != "" {
			t, err := domain.ParseServiceType(registerType)
			if err != nil {
				return err
			}
			typ = t
		}

		svc, created, err := runner.RegisterService(ctx, args[0], typ, registerCatalog)
		if err != nil {
			return fmt.Errorf("register failed: %w", err)
		}
		state := "already registered"
		if created {
			state = "registered"
		}
		fmt.Printf("Service %d %s: %s %s (catalog %s)\n", svc.ID, state, svc.Type, svc.URL, svc.Catalog)

		if !registerHarvest {
			return nil
		}
		res, err := runner.HarvestService(ctx, svc.ID)
		if err != nil {
			return fmt.Errorf("harvest failed: %w", err)
		}
		fmt.Printf("Harvested %d layers (%d new)\n", res.Layers, res.Created)
		return nil
	},
}

// seedCmd registers the services of the seed file
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Register the catalogs and services declared in the seed file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return application.SyncSeed(cmd.Context())
	},
}

func init() {
	registerCmd.Flags().StringVar(&registerType, "type", "", "service type, e.g. OGC:WMS or ESRI:ArcGIS:MapServer")
	registerCmd.Flags().StringVar(&registerCatalog, "catalog", "", "catalog slug (default catalog when empty)")
	registerCmd.Flags().BoolVar(&registerHarvest, "harvest", false, "harvest the service right away")
	rootCmd.AddCommand(registerCmd, seedCmd)
}
