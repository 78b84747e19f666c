package decks

import "context"

type Loader interface {
	LoadDecks(ctx context.Context, root string) ([]Deck, error)
	FindDeck(decks []Deck, deckID string) (Deck, error)
}
