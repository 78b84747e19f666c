package main

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"hakubun/internal/app"
)

var (
	configPath string

	devMode      bool
	devHTTP      string
	demoScenario string
	debugLayout  bool
)

// flagSettings maps flags to the settings keys they override.
var flagSettings = map[string]string{
	"data-dir":     "data_dir",
	"deck-dir":     "deck_dir",
	"log":          "log",
	"hint-variant": "review.hint_variant",
	"validation":   "review.validation",
	"order":        "review.order",
	"batch-size":   "review.batch_size",
	"focus-delay":  "card.focus_delay",
	"style":        "ui.style_variant",
	"motion":       "ui.motion_level",
	"mouse":        "ui.mouse_scope",
	"ascii":        "ui.ascii",
}

var rootCmd = &cobra.Command{
	Use:           "hakubun",
	Short:         "Review kanji and vocabulary in the terminal",
	Long:          "hakubun runs spaced repetition reviews of kanji, radicals and vocabulary from local decks.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runReview,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default ~/.config/hakubun/config.yaml)")
	pf.String("data-dir", "", "directory holding the review database")
	pf.String("deck-dir", "", "directory of user decks, one folder per deck")
	pf.String("log", "", "append JSON review events to this file")

	addReviewFlags(rootCmd.Flags())
}

func addReviewFlags(fs *pflag.FlagSet) {
	fs.String("hint-variant", "", "hint presentation: popup or modal")
	fs.String("validation", "", "answer validation: strict or lenient")
	fs.String("order", "", "review order: shuffled, level or type")
	fs.Int("batch-size", 0, "subjects per session, 0 for all due")
	fs.Duration("focus-delay", 100*time.Millisecond, "delay before the answer field takes focus")
	fs.String("style", "", "style variant: modern_arcade, cozy_clean, retro_terminal or catppuccin")
	fs.String("motion", "", "motion level: off, reduced or full")
	fs.String("mouse", "", "mouse scope: off, scoped or full")
	fs.Bool("ascii", false, "draw with ASCII only")

	fs.BoolVar(&devMode, "dev", false, "serve the dev HTTP endpoints")
	fs.StringVar(&devHTTP, "dev-http", "", "dev HTTP listen address")
	fs.StringVar(&demoScenario, "demo", "", "open a named demo scenario (implies --dev)")
	fs.BoolVar(&debugLayout, "debug-layout", false, "log UI debug output")
}

// overrides collects the flags set on the command line in the settings key
// space.
func overrides(cmd *cobra.Command) map[string]string {
	out := map[string]string{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if key, ok := flagSettings[f.Name]; ok {
			out[key] = f.Value.String()
		}
	})
	return out
}

func resolveConfig(cmd *cobra.Command) (app.Config, error) {
	return app.ResolveConfig(configPath, overrides(cmd))
}
