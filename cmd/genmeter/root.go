package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "genmeter",
	Short: "Usage metering and quota enforcement for AI design generation",
	Long: `Genmeter meters AI design generations per user and enforces
hourly and daily quotas.

Quick start:
  genmeter serve     # Start the metering API server

Management:
  genmeter stats     # Show usage statistics for a user
  genmeter sweep     # Prune expired usage buckets
  genmeter validate  # Validate configuration`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	// Optional .env for local development; ignore if absent.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "genmeter.yaml", "config file path")
}
