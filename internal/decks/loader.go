package decks

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

const deckFile = "deck.yaml"

//go:embed builtin/deck.yaml
var builtinFS embed.FS

type FSLoader struct {
	// SkipBuiltin leaves the embedded deck out of LoadDecks.
	SkipBuiltin bool
}

func NewLoader() *FSLoader { return &FSLoader{} }

// LoadDecks returns the builtin deck plus every subdirectory of root holding
// a deck.yaml, sorted by deck id. A missing root is not an error.
func (l *FSLoader) LoadDecks(ctx context.Context, root string) ([]Deck, error) {
	decks := make([]Deck, 0)
	if !l.SkipBuiltin {
		builtin, err := readDeck(builtinFS, path.Join("builtin", deckFile))
		if err != nil {
			return nil, fmt.Errorf("load builtin deck: %w", err)
		}
		builtin.Builtin = true
		applyDeckDefaults(&builtin)
		decks = append(decks, builtin)
	}
	if root == "" {
		return decks, nil
	}
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return decks, nil
	}
	user, err := l.loadDir(ctx, os.DirFS(root))
	if err != nil {
		return nil, err
	}
	for i := range user {
		user[i].Dir = filepath.Join(root, filepath.FromSlash(user[i].Dir))
		applyDeckDefaults(&user[i])
	}
	decks = append(decks, user...)

	seen := map[string]string{}
	for _, d := range decks {
		where := d.Dir
		if d.Builtin {
			where = "builtin"
		}
		if prev, ok := seen[d.DeckID]; ok {
			return nil, fmt.Errorf("duplicate deck_id %q in %s and %s", d.DeckID, prev, where)
		}
		seen[d.DeckID] = where
	}
	sort.Slice(decks, func(i, j int) bool { return decks[i].DeckID < decks[j].DeckID })
	return decks, nil
}

// loadDir parses the deck.yaml of each top-level directory of fsys in
// parallel. Dir is set relative to fsys.
func (l *FSLoader) loadDir(ctx context.Context, fsys fs.FS) ([]Deck, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	dirs := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := fs.Stat(fsys, path.Join(e.Name(), deckFile)); err != nil {
			continue
		}
		dirs = append(dirs, e.Name())
	}

	out := make([]Deck, len(dirs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, dir := range dirs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			deck, err := readDeck(fsys, path.Join(dir, deckFile))
			if err != nil {
				return fmt.Errorf("load deck %s: %w", dir, err)
			}
			deck.Dir = dir
			out[i] = deck
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func readDeck(fsys fs.FS, name string) (Deck, error) {
	var deck Deck
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return deck, err
	}
	if err := yaml.Unmarshal(b, &deck); err != nil {
		return deck, fmt.Errorf("parse %s: %w", name, err)
	}
	if err := deck.Validate(); err != nil {
		return deck, fmt.Errorf("validate %s: %w", name, err)
	}
	return deck, nil
}

// applyDeckDefaults stamps the deck id on subjects and resolves audio paths
// against the deck directory.
func applyDeckDefaults(deck *Deck) {
	for i := range deck.Subjects {
		s := &deck.Subjects[i]
		s.DeckID = deck.DeckID
		for j := range s.Audio {
			a := &s.Audio[j]
			if a.ContentType == "" {
				a.ContentType = contentTypeFor(a.Path)
			}
			if deck.Dir != "" && !filepath.IsAbs(a.Path) {
				a.Path = filepath.Join(deck.Dir, filepath.FromSlash(a.Path))
			}
		}
	}
}

func contentTypeFor(p string) string {
	switch filepath.Ext(p) {
	case ".mp3":
		return "audio/mpeg"
	case ".ogg":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	}
	return ""
}

func (l *FSLoader) FindDeck(decks []Deck, deckID string) (Deck, error) {
	for _, d := range decks {
		if d.DeckID == deckID {
			return d, nil
		}
	}
	return Deck{}, fmt.Errorf("deck not found: %s", deckID)
}

// Subjects flattens decks into one list in deck order.
func Subjects(decks []Deck) []Subject {
	out := make([]Subject, 0)
	for _, d := range decks {
		out = append(out, d.Subjects...)
	}
	return out
}
