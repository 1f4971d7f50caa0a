package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/printforge/genmeter/bootstrap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the metering API server",
	Long: `Start the genmeter HTTP server.

The server will:
  - Load configuration from genmeter.yaml (or --config)
  - Or load configuration from GENMETER_* environment variables
  - Open the usage store (sqlite or memory)
  - Serve quota checks, usage recording, stats, and sweep endpoints

Environment variables (for Docker deployments):
  GENMETER_DATABASE_DSN     - Database path (default: genmeter.db)
  GENMETER_SERVER_PORT      - Server port (default: 8080)
  GENMETER_HOURLY_LIMIT     - Generations per hour (default: 3)
  GENMETER_DAILY_LIMIT      - Generations per day (default: 10)
  GENMETER_LOG_LEVEL        - Log level: debug, info, warn, error

Examples:
  genmeter serve
  genmeter serve --config /etc/genmeter/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := bootstrap.New(cfgFile)
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
