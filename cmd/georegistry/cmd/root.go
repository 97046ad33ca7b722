// Package cmd holds the georegistry command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/georegistry/internal/app"
	"github.com/MrSnakeDoc/georegistry/internal/config"
)

var (
	// envFile is loaded into the environment before the configuration
	envFile string

	// application is built once per command run
	application *app.App
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "georegistry",
	Short: "Registry and search index of remote map services",
	Long: `georegistry harvests remote map services (OGC WMS/WMTS/TMS/CSW, ArcGIS
MapServer/ImageServer, WorldMap, Mapwarper), keeps a catalog of their layers
with uptime checks, and publishes the layers to Solr or Elasticsearch.

Configuration is read from GEOREG_* environment variables, optionally
loaded from an env file first.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd == versionCmd || (cmd.HasParent() && cmd.Parent().Name() == "completion") {
			return nil
		}
		if err := loadEnv(envFile, cmd.Flags().Changed("env-file")); err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		application, err = app.New(cmd.Context(), cfg)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if application != nil {
			application.Close()
		}
	},
}

// Execute runs the command line with ctx cancelled on shutdown signals.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "env file loaded before reading GEOREG_* variables")
}

// loadEnv loads path into the environment. A missing default file is fine;
// a missing file the user asked for is not. Variables already set win.
func loadEnv(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil || (!explicit && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("failed to load env file %s: %w", path, err)
}

// loadConfig turns config.Load panics into an error for the CLI.
func loadConfig() (cfg *config.Config, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid configuration: %v", r)
		}
	}()
	return config.Load(), nil
}
