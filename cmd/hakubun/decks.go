package main

import (
	"fmt"
	"strconv"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/spf13/cobra"

	"hakubun/internal/decks"
)

var decksCmd = &cobra.Command{
	Use:   "decks",
	Short: "List and validate the loaded decks",
	Long:  "decks loads the builtin deck and every deck under the deck directory. A deck that fails validation stops the listing with its error.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		loaded, err := decks.NewLoader().LoadDecks(cmd.Context(), cfg.DeckDir)
		if err != nil {
			return err
		}

		t := table.New().
			Border(lipgloss.RoundedBorder()).
			Headers("Deck", "Name", "Version", "Subjects", "Source")
		for _, d := range loaded {
			source := d.Dir
			if d.Builtin {
				source = "builtin"
			}
			t.Row(d.DeckID, d.Name, d.Version, strconv.Itoa(len(d.Subjects)), source)
		}
		lipgloss.Fprintln(cmd.OutOrStdout(), t.String())
		fmt.Fprintf(cmd.OutOrStdout(), "%d decks, %d subjects, deck dir %s\n", len(loaded), len(decks.Subjects(loaded)), cfg.DeckDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(decksCmd)
}
