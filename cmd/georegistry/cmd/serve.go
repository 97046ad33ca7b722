package cmd

import (
	"github.com/spf13/cobra"
)

// serveCmd runs the API and the schedulers
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the search API and the harvest scheduler",
	Long: `Run the HTTP API (search, catalog views, health and metrics) together with
the periodic harvest scheduler. Services declared in the seed file are
registered first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return application.Serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
