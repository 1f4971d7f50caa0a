package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/printforge/genmeter/bootstrap"
	"github.com/printforge/genmeter/config"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Prune expired usage buckets",
	Long: `Run the retention sweep across all stored usage records.

Bucket entries older than the retention window are removed. Lifetime
totals are never reduced. With --user only that user is swept.

Examples:
  genmeter sweep
  genmeter sweep --user=user_123`,
	RunE: runSweep,
}

var sweepUserID string

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().StringVar(&sweepUserID, "user", "", "sweep a single user instead of all")
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	app, err := bootstrap.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}
	defer app.Close()

	ctx := context.Background()

	if sweepUserID != "" {
		result, err := app.Meter.SweepIfStale(ctx, sweepUserID)
		if err != nil {
			return err
		}
		if !result.Ran {
			fmt.Println("Sweep skipped (ran recently or nothing stored).")
			return nil
		}
		fmt.Printf("Sweep complete: removed %d daily and %d hourly entries.\n",
			result.RemovedDaily, result.RemovedHourly)
		return nil
	}

	result, err := app.Meter.SweepAll(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Swept %d of %d users: removed %d daily and %d hourly entries, %d events.\n",
		result.Swept, result.Users, result.RemovedDaily, result.RemovedHourly, result.EventsRemoved)
	return nil
}
