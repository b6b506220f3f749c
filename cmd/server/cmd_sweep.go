package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var sweepAt string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one appointment reminder sweep and exit",
	Long: `Send reminders for every appointment starting within the reminder window.

Meant to be run by cron every five minutes. Overlapping runs are safe: each
appointment records its reminder at most once.

Examples:
  # Sweep against the current wall clock
  server sweep

  # Re-run a sweep for a past instant (wall-clock, no zone)
  server sweep --at 2024-03-05T13:45
`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().StringVar(&sweepAt, "at", "", "Wall-clock instant to sweep at (YYYY-MM-DDTHH:MM), default now")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	now := time.Now()
	if sweepAt != "" {
		parsed, err := time.Parse("2006-01-02T15:04", sweepAt)
		if err != nil {
			return fmt.Errorf("--at %q must be YYYY-MM-DDTHH:MM: %w", sweepAt, err)
		}
		now = parsed
	}

	a, err := buildApp(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.Close()

	result, err := a.reminders.RunReminderSweep(cmd.Context(), now)
	if err != nil {
		return fmt.Errorf("reminder sweep: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
