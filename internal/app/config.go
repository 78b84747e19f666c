package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"hakubun/internal/card"
	"hakubun/internal/queue"
	"hakubun/internal/review"
)

const appName = "hakubun"

// Config controls runtime behavior for the review client.
type Config struct {
	Dev          bool   `yaml:"-"`
	DevHTTP      string `yaml:"dev_http"`
	LogPath      string `yaml:"log" env:"LOG"`
	DebugLayout  bool   `yaml:"-"`
	DemoScenario string `yaml:"-"`
	ASCIIOnly    bool   `yaml:"ascii"`
	DataDir      string `yaml:"data_dir" env:"DATA_DIR"`
	DeckDir      string `yaml:"deck_dir" env:"DECK_DIR"`

	Review ReviewConfig `yaml:"review"`
	Card   CardConfig   `yaml:"card"`
	UI     UIConfig     `yaml:"ui"`
	Audio  AudioConfig  `yaml:"audio"`

	// Overrides holds flag values in the settings key space. They are
	// applied last, after stored settings.
	Overrides map[string]string `yaml:"-"`
}

type ReviewConfig struct {
	HintVariant string `yaml:"hint_variant" env:"HINT_VARIANT"`
	Validation  string `yaml:"validation" env:"VALIDATION"`
	BatchSize   int    `yaml:"batch_size" env:"BATCH_SIZE"`
	Order       string `yaml:"order"`
}

type CardConfig struct {
	FocusDelay       time.Duration `yaml:"focus_delay" env:"FOCUS_DELAY"`
	EntryDelay       time.Duration `yaml:"entry_delay"`
	ExitDelay        time.Duration `yaml:"exit_delay"`
	AudioUnloadDelay time.Duration `yaml:"audio_unload_delay"`
	ToastTimeout     time.Duration `yaml:"toast_timeout"`
	Speed            float64       `yaml:"speed"`
	MinDuration      time.Duration `yaml:"min_duration"`
	MaxDuration      time.Duration `yaml:"max_duration"`
	EntryEdge        string        `yaml:"entry_edge"`
}

type UIConfig struct {
	StyleVariant string `yaml:"style_variant" env:"STYLE"`
	MotionLevel  string `yaml:"motion_level" env:"MOTION"`
	MouseScope   string `yaml:"mouse_scope"`
	UnitsPerCell int    `yaml:"units_per_cell"`
}

type AudioConfig struct {
	// Player is the command line audio files are handed to, for example
	// "mpv --no-video". A "-" argument reads the audio from stdin.
	Player string `yaml:"player" env:"AUDIO_PLAYER"`
	Voice  string `yaml:"voice"`
}

func DefaultConfig() Config {
	t := card.DefaultTiming()
	return Config{
		DevHTTP: "127.0.0.1:17321",
		Review: ReviewConfig{
			HintVariant: string(review.HintPopup),
			Validation:  review.ModeStrict,
			Order:       string(queue.OrderShuffled),
		},
		Card: CardConfig{
			FocusDelay:       t.FocusDelay,
			EntryDelay:       t.EntryDelay,
			ExitDelay:        t.ExitDelay,
			AudioUnloadDelay: t.AudioUnloadDelay,
			ToastTimeout:     t.ToastTimeout,
			Speed:            t.Speed,
			MinDuration:      t.MinDuration,
			MaxDuration:      t.MaxDuration,
			EntryEdge:        t.EntryEdge.String(),
		},
		UI: UIConfig{
			StyleVariant: "modern_arcade",
			MotionLevel:  "full",
			MouseScope:   "scoped",
			UnitsPerCell: 8,
		},
	}
}

// DefaultConfigPath is ~/.config/hakubun/config.yaml.
func DefaultConfigPath() string {
	home, err := homedir.Dir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName, "config.yaml")
}

// LoadConfig layers the config file and HAKUBUN_ environment variables over
// the defaults. A missing file is not an error. Stored settings and flag
// overrides are applied later with ApplySettings.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultConfigPath()
	}
	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return cfg, fmt.Errorf("config path: %w", err)
		}
		b, err := os.ReadFile(expanded)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", expanded, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return cfg, err
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "HAKUBUN_"}); err != nil {
		return cfg, fmt.Errorf("environment: %w", err)
	}
	return cfg, nil
}

// ResolveConfig applies every layer in order: defaults, the config file,
// the environment, settings stored in the data dir, then overrides.
func ResolveConfig(path string, overrides map[string]string) (Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return cfg, err
	}
	// The store lives in the data dir, so a data_dir override has to be
	// known before stored settings can be read.
	probe := cfg
	if err := probe.ApplySettings(overrides); err != nil {
		return cfg, err
	}
	if err := probe.Validate(); err != nil {
		return cfg, err
	}
	stored, err := storedSettings(probe)
	if err != nil {
		return cfg, err
	}
	delete(stored, "data_dir")
	if err := cfg.ApplySettings(stored); err != nil {
		return cfg, fmt.Errorf("stored settings: %w", err)
	}
	if err := cfg.ApplySettings(overrides); err != nil {
		return cfg, err
	}
	cfg.Overrides = overrides
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func storedSettings(cfg Config) (map[string]string, error) {
	if _, err := os.Stat(filepath.Join(cfg.DataDir, "state.db")); errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	store, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.LoadSettings(context.Background())
}

type setting struct {
	get func(*Config) string
	set func(*Config, string) error
}

var settings = map[string]setting{
	"data_dir": {
		get: func(c *Config) string { return c.DataDir },
		set: func(c *Config, v string) error { c.DataDir = v; return nil },
	},
	"deck_dir": {
		get: func(c *Config) string { return c.DeckDir },
		set: func(c *Config, v string) error { c.DeckDir = v; return nil },
	},
	"log": {
		get: func(c *Config) string { return c.LogPath },
		set: func(c *Config, v string) error { c.LogPath = v; return nil },
	},
	"review.hint_variant": {
		get: func(c *Config) string { return c.Review.HintVariant },
		set: func(c *Config, v string) error { c.Review.HintVariant = v; return nil },
	},
	"review.validation": {
		get: func(c *Config) string { return c.Review.Validation },
		set: func(c *Config, v string) error { c.Review.Validation = v; return nil },
	},
	"review.batch_size": {
		get: func(c *Config) string { return strconv.Itoa(c.Review.BatchSize) },
		set: func(c *Config, v string) error { return setInt(&c.Review.BatchSize, v) },
	},
	"review.order": {
		get: func(c *Config) string { return c.Review.Order },
		set: func(c *Config, v string) error { c.Review.Order = v; return nil },
	},
	"card.focus_delay": {
		get: func(c *Config) string { return c.Card.FocusDelay.String() },
		set: func(c *Config, v string) error { return setDuration(&c.Card.FocusDelay, v) },
	},
	"card.entry_delay": {
		get: func(c *Config) string { return c.Card.EntryDelay.String() },
		set: func(c *Config, v string) error { return setDuration(&c.Card.EntryDelay, v) },
	},
	"card.exit_delay": {
		get: func(c *Config) string { return c.Card.ExitDelay.String() },
		set: func(c *Config, v string) error { return setDuration(&c.Card.ExitDelay, v) },
	},
	"card.audio_unload_delay": {
		get: func(c *Config) string { return c.Card.AudioUnloadDelay.String() },
		set: func(c *Config, v string) error { return setDuration(&c.Card.AudioUnloadDelay, v) },
	},
	"card.toast_timeout": {
		get: func(c *Config) string { return c.Card.ToastTimeout.String() },
		set: func(c *Config, v string) error { return setDuration(&c.Card.ToastTimeout, v) },
	},
	"card.speed": {
		get: func(c *Config) string { return strconv.FormatFloat(c.Card.Speed, 'f', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return err
			}
			c.Card.Speed = f
			return nil
		},
	},
	"card.min_duration": {
		get: func(c *Config) string { return c.Card.MinDuration.String() },
		set: func(c *Config, v string) error { return setDuration(&c.Card.MinDuration, v) },
	},
	"card.max_duration": {
		get: func(c *Config) string { return c.Card.MaxDuration.String() },
		set: func(c *Config, v string) error { return setDuration(&c.Card.MaxDuration, v) },
	},
	"card.entry_edge": {
		get: func(c *Config) string { return c.Card.EntryEdge },
		set: func(c *Config, v string) error { c.Card.EntryEdge = v; return nil },
	},
	"ui.style_variant": {
		get: func(c *Config) string { return c.UI.StyleVariant },
		set: func(c *Config, v string) error { c.UI.StyleVariant = v; return nil },
	},
	"ui.motion_level": {
		get: func(c *Config) string { return c.UI.MotionLevel },
		set: func(c *Config, v string) error { c.UI.MotionLevel = v; return nil },
	},
	"ui.mouse_scope": {
		get: func(c *Config) string { return c.UI.MouseScope },
		set: func(c *Config, v string) error { c.UI.MouseScope = v; return nil },
	},
	"ui.units_per_cell": {
		get: func(c *Config) string { return strconv.Itoa(c.UI.UnitsPerCell) },
		set: func(c *Config, v string) error { return setInt(&c.UI.UnitsPerCell, v) },
	},
	"ui.ascii": {
		get: func(c *Config) string { return strconv.FormatBool(c.ASCIIOnly) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return err
			}
			c.ASCIIOnly = b
			return nil
		},
	},
	"audio.player": {
		get: func(c *Config) string { return c.Audio.Player },
		set: func(c *Config, v string) error { c.Audio.Player = v; return nil },
	},
	"audio.voice": {
		get: func(c *Config) string { return c.Audio.Voice },
		set: func(c *Config, v string) error { c.Audio.Voice = v; return nil },
	},
}

// SettingKeys lists every key ApplySettings understands, sorted.
func SettingKeys() []string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ApplySettings sets values by settings key. Unknown keys are errors so a
// typo in a stored setting or flag does not go unnoticed.
func (c *Config) ApplySettings(values map[string]string) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s, ok := settings[k]
		if !ok {
			return fmt.Errorf("unknown setting %q", k)
		}
		if err := s.set(c, values[k]); err != nil {
			return fmt.Errorf("setting %s: %w", k, err)
		}
	}
	return nil
}

// Settings returns the current value of every settings key.
func (c *Config) Settings() map[string]string {
	out := make(map[string]string, len(settings))
	for k, s := range settings {
		out[k] = s.get(c)
	}
	return out
}

func (c *Config) Validate() error {
	if _, err := review.ParseHintVariant(c.Review.HintVariant); err != nil {
		return err
	}
	if c.Review.HintVariant == "" {
		c.Review.HintVariant = string(review.HintPopup)
	}
	switch c.Review.Validation {
	case "", review.ModeStrict, review.ModeLenient:
	default:
		return fmt.Errorf("invalid validation mode %q", c.Review.Validation)
	}
	if c.Review.Validation == "" {
		c.Review.Validation = review.ModeStrict
	}
	order, err := queue.ParseOrder(c.Review.Order)
	if err != nil {
		return err
	}
	c.Review.Order = string(order)
	if c.Review.BatchSize < 0 {
		return fmt.Errorf("invalid batch size %d", c.Review.BatchSize)
	}

	edge, err := card.ParseEdge(c.Card.EntryEdge)
	if err != nil {
		return err
	}
	c.Card.EntryEdge = edge.String()
	if c.Card.FocusDelay < 0 || c.Card.EntryDelay < 0 || c.Card.ExitDelay < 0 || c.Card.AudioUnloadDelay < 0 {
		return errors.New("card delays must not be negative")
	}
	if c.Card.Speed <= 0 {
		c.Card.Speed = card.DefaultTiming().Speed
	}
	if c.Card.MaxDuration < c.Card.MinDuration {
		return fmt.Errorf("card max duration %s is below min duration %s", c.Card.MaxDuration, c.Card.MinDuration)
	}

	switch c.UI.StyleVariant {
	case "", "modern_arcade", "cozy_clean", "retro_terminal", "catppuccin":
	default:
		return fmt.Errorf("invalid ui style variant %q", c.UI.StyleVariant)
	}
	if c.UI.StyleVariant == "" {
		c.UI.StyleVariant = "modern_arcade"
	}
	switch c.UI.MotionLevel {
	case "", "off", "reduced", "full":
	default:
		return fmt.Errorf("invalid ui motion level %q", c.UI.MotionLevel)
	}
	if c.UI.MotionLevel == "" {
		c.UI.MotionLevel = "full"
	}
	switch c.UI.MouseScope {
	case "", "off", "scoped", "full":
	default:
		return fmt.Errorf("invalid ui mouse scope %q", c.UI.MouseScope)
	}
	if c.UI.MouseScope == "" {
		c.UI.MouseScope = "scoped"
	}
	if c.UI.UnitsPerCell <= 0 {
		c.UI.UnitsPerCell = 8
	}

	if c.DataDir == "" {
		home, err := homedir.Dir()
		if err != nil {
			return errors.New("cannot resolve user home directory")
		}
		c.DataDir = filepath.Join(home, ".local", "share", appName)
	}
	for _, p := range []*string{&c.DataDir, &c.DeckDir, &c.LogPath} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	if c.DeckDir == "" {
		c.DeckDir = filepath.Join(c.DataDir, "decks")
	}
	return nil
}

// Timing converts the card keys into the card package's timing, snapping
// every tween when motion is off.
func (c Config) Timing() card.Timing {
	t := card.DefaultTiming()
	t.FocusDelay = c.Card.FocusDelay
	t.EntryDelay = c.Card.EntryDelay
	t.ExitDelay = c.Card.ExitDelay
	t.AudioUnloadDelay = c.Card.AudioUnloadDelay
	t.ToastTimeout = c.Card.ToastTimeout
	t.Speed = c.Card.Speed
	t.MinDuration = c.Card.MinDuration
	t.MaxDuration = c.Card.MaxDuration
	if edge, err := card.ParseEdge(c.Card.EntryEdge); err == nil {
		t.EntryEdge = edge
	}
	if c.UI.MotionLevel == "off" {
		t = t.Instant()
	}
	return t
}

// PlayerCommand splits the audio player setting into argv.
func (c Config) PlayerCommand() []string {
	return strings.Fields(c.Audio.Player)
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, v string) error {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
