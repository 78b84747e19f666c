// Package audio loads and plays the pronunciation clips attached to review
// items. Everything here is best effort: callers log failures and move on.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"hakubun/internal/review"
)

var ErrNoPlayer = errors.New("no audio player configured")

// stdinArg in a player command is replaced by the cached clip on stdin.
const stdinArg = "-"

type Library struct {
	mu     sync.Mutex
	cache  map[string][]byte
	player []string
	read   func(string) ([]byte, error)
}

// NewLibrary returns a library that plays clips with the given command, for
// example {"mpv", "--no-video"}. The clip path is appended unless the command
// reads from stdin.
func NewLibrary(player []string) *Library {
	return &Library{
		cache:  map[string][]byte{},
		player: append([]string(nil), player...),
		read:   os.ReadFile,
	}
}

// Load reads asset into the cache. Loading a cached path does nothing.
func (l *Library) Load(ctx context.Context, asset review.Audio) error {
	if asset.Path == "" {
		return fmt.Errorf("audio asset has no path")
	}
	l.mu.Lock()
	_, ok := l.cache[asset.Path]
	l.mu.Unlock()
	if ok {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := l.read(asset.Path)
	if err != nil {
		return fmt.Errorf("load audio %s: %w", asset.Path, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	l.cache[asset.Path] = b
	l.mu.Unlock()
	return nil
}

func (l *Library) Unload(asset review.Audio) {
	l.mu.Lock()
	delete(l.cache, asset.Path)
	l.mu.Unlock()
}

// Preload loads every voice of an item concurrently.
func (l *Library) Preload(ctx context.Context, assets []review.Audio) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, a := range assets {
		g.Go(func() error { return l.Load(ctx, a) })
	}
	return g.Wait()
}

func (l *Library) Release(assets []review.Audio) {
	for _, a := range assets {
		l.Unload(a)
	}
}

func (l *Library) Loaded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.cache))
	for p := range l.cache {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Play runs the player on asset and waits for it to exit.
func (l *Library) Play(ctx context.Context, asset review.Audio) error {
	if len(l.player) == 0 {
		return ErrNoPlayer
	}
	if err := l.Load(ctx, asset); err != nil {
		return err
	}
	l.mu.Lock()
	clip := l.cache[asset.Path]
	l.mu.Unlock()

	args := append([]string(nil), l.player[1:]...)
	stdin := false
	for _, a := range args {
		if a == stdinArg {
			stdin = true
		}
	}
	if !stdin {
		args = append(args, asset.Path)
	}
	cmd := exec.CommandContext(ctx, l.player[0], args...)
	if stdin {
		cmd.Stdin = bytes.NewReader(clip)
	}
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("play %s: %w: %s", asset.Path, err, bytes.TrimSpace(out))
	}
	return nil
}

// Pick returns the clip to play for an item, preferring voice when set.
func Pick(assets []review.Audio, voice string) (review.Audio, bool) {
	if len(assets) == 0 {
		return review.Audio{}, false
	}
	for _, a := range assets {
		if voice != "" && a.Voice == voice {
			return a, true
		}
	}
	return assets[0], true
}
