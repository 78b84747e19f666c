package main

import (
	"fmt"

	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"
)

var manCmd = &cobra.Command{
	Use:    "man",
	Short:  "Generate the man page",
	Args:   cobra.NoArgs,
	Hidden: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		page, err := manPage()
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), page)
		return err
	},
}

func init() {
	rootCmd.AddCommand(manCmd)
}

func manPage() (string, error) {
	page, err := mcobra.NewManPage(1, rootCmd)
	if err != nil {
		return "", err
	}
	page = page.WithSection("Files", "~/.config/hakubun/config.yaml\n"+
		"~/.local/share/hakubun/state.db\n"+
		"~/.local/share/hakubun/decks/<deck>/deck.yaml")
	page = page.WithSection("Environment", "HAKUBUN_DATA_DIR, HAKUBUN_DECK_DIR, HAKUBUN_LOG, HAKUBUN_HINT_VARIANT, "+
		"HAKUBUN_VALIDATION, HAKUBUN_FOCUS_DELAY, HAKUBUN_STYLE, HAKUBUN_MOTION, HAKUBUN_AUDIO_PLAYER, HAKUBUN_BATCH_SIZE")
	return page.Build(roff.NewDocument()), nil
}
