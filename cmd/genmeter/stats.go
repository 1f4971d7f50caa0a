package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/printforge/genmeter/bootstrap"
	"github.com/printforge/genmeter/config"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage statistics for a user",
	Long: `Show current-hour, current-day, and lifetime usage for a user.

Examples:
  genmeter stats --user=user_123
  genmeter stats --user=user_123 --events=10`,
	RunE: runStats,
}

var (
	statsUserID string
	statsEvents int
)

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().StringVar(&statsUserID, "user", "", "user ID (required)")
	statsCmd.Flags().IntVar(&statsEvents, "events", 0, "also show the N most recent generation events")
	statsCmd.MarkFlagRequired("user")
}

func runStats(cmd *cobra.Command, args []string) error {
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
	stats, err := app.Meter.GetStats(ctx, statsUserID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "WINDOW\tUSED\tLIMIT\tREMAINING\n")
	fmt.Fprintf(w, "hourly\t%d\t%s\t%d\n", stats.Hourly.Used, limitString(stats.Hourly.Limit), stats.Hourly.Remaining)
	fmt.Fprintf(w, "daily\t%d\t%s\t%d\n", stats.Daily.Used, limitString(stats.Daily.Limit), stats.Daily.Remaining)
	w.Flush()

	fmt.Printf("\nTotal generations: %d\n", stats.Total)

	if statsEvents > 0 {
		events, err := app.Meter.RecentEvents(ctx, statsUserID, statsEvents)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("\nNo recorded events.")
			return nil
		}

		fmt.Println()
		ew := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(ew, "TIME\tSOURCE\tID\n")
		for _, e := range events {
			fmt.Fprintf(ew, "%s\t%s\t%s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Source, e.ID)
		}
		ew.Flush()
	}

	return nil
}

func limitString(limit int64) string {
	if limit <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d", limit)
}
