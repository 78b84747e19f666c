package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"hakubun/internal/app"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print review totals and the last session",
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

		ctx := cmd.Context()
		summary, err := store.GetSummary(ctx)
		if err != nil {
			return fmt.Errorf("summary: %w", err)
		}
		last, err := store.GetLastSession(ctx)
		if err != nil {
			return fmt.Errorf("last session: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Sessions   %s\n", humanize.Comma(int64(summary.Sessions)))
		fmt.Fprintf(out, "Answers    %s (%d%% correct)\n", humanize.Comma(int64(summary.Answers)), summary.Accuracy())
		fmt.Fprintf(out, "Correct    %s\n", humanize.Comma(int64(summary.Correct)))
		fmt.Fprintf(out, "Incorrect  %s\n", humanize.Comma(int64(summary.Incorrect)))
		fmt.Fprintf(out, "Burned     %s\n", humanize.Comma(int64(summary.Burned)))
		switch {
		case last == nil:
			fmt.Fprintln(out, "No sessions yet.")
		case !last.Finished():
			fmt.Fprintf(out, "Last session started %s and did not finish.\n", humanize.Time(last.StartTS))
		default:
			fmt.Fprintf(out, "Last session %s: %d reviewed, %d correct, %d incorrect.\n",
				humanize.Time(last.FinishTS), last.Reviewed, last.Correct, last.Incorrect)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
