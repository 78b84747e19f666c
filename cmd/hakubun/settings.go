package main

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"hakubun/internal/app"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Edit stored settings in a form",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}

		hint := cfg.Review.HintVariant
		validation := cfg.Review.Validation
		style := cfg.UI.StyleVariant
		motion := cfg.UI.MotionLevel
		focus := cfg.Card.FocusDelay.String()

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Hints").
					Description("Popup shows while F1 is held. Modal stays open until Esc.").
					Options(huh.NewOptions("popup", "modal")...).
					Value(&hint),
				huh.NewSelect[string]().
					Title("Answer validation").
					Options(
						huh.NewOption("Strict: only known answers", "strict"),
						huh.NewOption("Lenient: any answer in the right script", "lenient"),
					).
					Value(&validation),
			),
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Style").
					Options(huh.NewOptions("modern_arcade", "cozy_clean", "retro_terminal", "catppuccin")...).
					Value(&style),
				huh.NewSelect[string]().
					Title("Motion").
					Options(huh.NewOptions("full", "reduced", "off")...).
					Value(&motion),
				huh.NewInput().
					Title("Focus delay").
					Description("How long the answer field waits before taking focus.").
					Value(&focus).
					Validate(func(s string) error {
						d, err := time.ParseDuration(s)
						if err != nil {
							return err
						}
						if d < 0 {
							return errors.New("must not be negative")
						}
						return nil
					}),
			),
		).WithTheme(huh.ThemeCatppuccin())

		if err := form.RunWithContext(cmd.Context()); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return err
		}
		return saveSettings(cmd, cfg, map[string]string{
			"review.hint_variant": hint,
			"review.validation":   validation,
			"ui.style_variant":    style,
			"ui.motion_level":     motion,
			"card.focus_delay":    focus,
		})
	},
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every setting with its current value",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		values := cfg.Settings()
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", k, values[k])
		}
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store one setting",
	Args:  cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return app.SettingKeys(), cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		return saveSettings(cmd, cfg, map[string]string{args[0]: args[1]})
	},
}

func init() {
	settingsCmd.AddCommand(settingsListCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

// saveSettings checks values against cfg before writing them.
func saveSettings(cmd *cobra.Command, cfg app.Config, values map[string]string) error {
	check := cfg
	if err := check.ApplySettings(values); err != nil {
		return err
	}
	if err := check.Validate(); err != nil {
		return err
	}
	store, err := app.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.SaveSettings(cmd.Context(), values); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	noun := "settings"
	if len(values) == 1 {
		noun = "setting"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %d %s.\n", len(values), noun)
	return nil
}
