package main

import (
	"github.com/spf13/cobra"

	"hakubun/internal/app"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Start the review screen",
	RunE:  runReview,
}

func init() {
	addReviewFlags(reviewCmd.Flags())
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Dev = devMode || demoScenario != ""
	cfg.DemoScenario = demoScenario
	cfg.DebugLayout = debugLayout
	if devHTTP != "" {
		cfg.DevHTTP = devHTTP
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Run(cmd.Context())
}
