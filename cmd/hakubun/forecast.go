package main

import (
	"fmt"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"hakubun/internal/app"
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Print the review forecast for the next seven days",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		store, err := app.OpenStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		now := time.Now()
		days, err := store.ForecastCounts(cmd.Context(), now)
		if err != nil {
			return fmt.Errorf("forecast: %w", err)
		}
		available, err := store.CountAvailable(cmd.Context(), now)
		if err != nil {
			return fmt.Errorf("count available: %w", err)
		}

		peak := 1
		for _, d := range days {
			peak = max(peak, d.Count)
		}
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			Headers("Day", "Reviews", "", "Total")
		for i, d := range days {
			name := d.Weekday.String()
			if i == 0 {
				name = "Today"
			}
			t.Row(name, "+"+humanize.Comma(int64(d.Count)), strings.Repeat("█", d.Count*20/peak), humanize.Comma(int64(d.RunningTotal)))
		}
		lipgloss.Fprintf(cmd.OutOrStdout(), "%s available now\n", humanize.Comma(int64(available)))
		lipgloss.Fprintln(cmd.OutOrStdout(), t.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(forecastCmd)
}
