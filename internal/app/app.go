package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/google/uuid"

	"hakubun/internal/audio"
	"hakubun/internal/decks"
	"hakubun/internal/devtools"
	"hakubun/internal/notify"
	"hakubun/internal/queue"
	"hakubun/internal/review"
	"hakubun/internal/srs"
	"hakubun/internal/state"
	"hakubun/internal/telemetry"
	"hakubun/internal/ui"
)

type App struct {
	cfg Config

	logger    *telemetry.JSONLogger
	store     *state.SQLiteStore
	loader    *decks.FSLoader
	validator *review.AnswerValidator
	audio     *audio.Library
	toasts    *notify.Center
	demo      *devtools.Manager

	view ui.View
	now  func() time.Time
	// copyText writes to the system clipboard.
	copyText func(string) error
	// cacheDir is where the dev state file goes. Empty means ~/.cache/hakubun.
	cacheDir string

	sessionID string

	mu       sync.Mutex
	decks    []decks.Deck
	subjects []decks.Subject
	starting bool

	devMu     sync.Mutex
	devServer *http.Server
	demoMu    sync.Mutex
	devState  struct {
		State     string
		Demo      string
		RenderSeq int
		Rendered  bool
		Pending   bool
		Error     string
	}
}

// New opens the store and decks under cfg and builds the terminal view.
// cfg must already be validated.
func New(cfg Config) (*App, error) {
	toasts := notify.NewCenter()
	a, err := open(cfg, toasts)
	if err != nil {
		return nil, err
	}
	hintVariant, _ := review.ParseHintVariant(cfg.Review.HintVariant)
	view := ui.New(ui.Options{
		ASCIIOnly:    cfg.ASCIIOnly,
		Debug:        cfg.DebugLayout,
		StyleVariant: cfg.UI.StyleVariant,
		MotionLevel:  cfg.UI.MotionLevel,
		MouseScope:   cfg.UI.MouseScope,
		UnitsPerCell: cfg.UI.UnitsPerCell,
		HintVariant:  hintVariant,
		Validator:    a.validator,
		Audio:        a.audio,
		Logger:       a.logger,
		Timing:       cfg.Timing(),
		Toasts:       toasts,
	})
	a.attach(view)
	return a, nil
}

// open sets up everything but the view.
func open(cfg Config, toasts *notify.Center) (*App, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}

	logger, err := telemetry.NewJSONLogger(cfg.LogPath)
	if err != nil {
		return nil, err
	}

	store, err := OpenStore(cfg)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	loader := decks.NewLoader()
	loaded, err := loader.LoadDecks(context.Background(), cfg.DeckDir)
	if err != nil {
		_ = store.Close()
		_ = logger.Close()
		return nil, err
	}
	if len(loaded) == 0 {
		_ = store.Close()
		_ = logger.Close()
		return nil, fmt.Errorf("no decks available under %s", cfg.DeckDir)
	}

	validator, err := review.NewValidator(cfg.Review.Validation)
	if err != nil {
		_ = store.Close()
		_ = logger.Close()
		return nil, err
	}

	sessionID := uuid.NewString()
	return &App{
		cfg:       cfg,
		logger:    logger.With(map[string]any{"app_session": sessionID}),
		store:     store,
		loader:    loader,
		validator: validator,
		audio:     audio.NewLibrary(cfg.PlayerCommand()),
		toasts:    toasts,
		demo:      devtools.NewManager(),
		now:       time.Now,
		copyText:  clipboard.WriteAll,
		sessionID: sessionID,
		decks:     loaded,
		subjects:  decks.Subjects(loaded),
	}, nil
}

func (a *App) attach(view ui.View) {
	a.view = view
	view.SetController(a)
}

// OpenStore opens the SQLite store in cfg.DataDir and ensures its schema.
func OpenStore(cfg Config) (*state.SQLiteStore, error) {
	store, err := state.NewSQLite(filepath.Join(cfg.DataDir, "state.db"))
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(context.Background()); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("app.start", map[string]any{
		"decks":      len(a.decks),
		"subjects":   len(a.subjects),
		"validation": a.validator.Mode(),
		"hints":      a.cfg.Review.HintVariant,
	})

	a.refreshDashboard(ctx)
	a.view.SetScreen(ui.ScreenHome)

	if a.cfg.Dev {
		if err := a.startDevHTTP(); err != nil {
			return err
		}
		if a.cfg.DemoScenario != "" {
			if _, err := a.runDemoScenario(ctx, a.cfg.DemoScenario); err != nil {
				a.logger.Error("dev.demo.initial_failed", map[string]any{"demo": a.cfg.DemoScenario, "error": err.Error()})
			}
		} else {
			a.setDevState("home", "")
			_ = a.demo.SetState(ctx, a.cacheDir, "home", true)
		}
	}

	err := a.view.Run()
	a.view.Shutdown()
	return err
}

func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.devMu.Lock()
	srv := a.devServer
	a.devMu.Unlock()
	if srv != nil {
		_ = srv.Shutdown(ctx)
	}
	_ = a.store.Close()
	_ = a.logger.Close()
}

func (a *App) OnStartReview() {
	a.mu.Lock()
	if a.starting {
		a.mu.Unlock()
		return
	}
	a.starting = true
	subjects := a.subjects
	deckIDs := make([]string, 0, len(a.decks))
	for _, d := range a.decks {
		deckIDs = append(deckIDs, d.DeckID)
	}
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.starting = false
		a.mu.Unlock()
	}()

	ctx := context.Background()
	assignments, err := a.store.GetAssignments(ctx)
	if err != nil {
		a.logger.Error("queue.assignments_failed", map[string]any{"error": err.Error()})
		a.view.SetLoading(false)
		a.view.Toast(string(notify.KindError), "Could not start reviews", err.Error())
		return
	}
	order, _ := queue.ParseOrder(a.cfg.Review.Order)
	items := queue.Build(subjects, assignments, a.now(), queue.BuildOptions{
		Order:     order,
		BatchSize: a.cfg.Review.BatchSize,
	})
	if len(items) == 0 {
		a.view.SetLoading(false)
		a.view.FlashStatus("No reviews available right now.")
		return
	}

	session := queue.NewSession(items, queue.Config{
		Store:   a.store,
		Logger:  a.logger,
		Now:     a.now,
		DeckIDs: deckIDs,
		Order:   order,
	})
	if err := session.Start(ctx); err != nil {
		a.logger.Error("session.start_failed", map[string]any{"error": err.Error()})
		a.view.SetLoading(false)
		a.view.Toast(string(notify.KindError), "Could not start reviews", err.Error())
		return
	}
	a.logger.Info("queue.built", map[string]any{"session_id": session.ID(), "items": len(items), "order": string(order)})
	a.view.StartReview(session)
}

func (a *App) OnHome() {
	a.refreshDashboard(context.Background())
}

func (a *App) OnQuit() {
	a.view.Stop()
}

func (a *App) OnResize(cols, rows int) {
	a.logger.Info("ui.resize", map[string]any{"cols": cols, "rows": rows})
}

func (a *App) OnSessionFinished(stats queue.Stats) {
	a.logger.Info("session.summary", map[string]any{
		"answered":  stats.Answered,
		"correct":   stats.Correct,
		"incorrect": stats.Incorrect,
		"completed": stats.Completed,
		"remaining": stats.Remaining,
		"accuracy":  stats.Accuracy(),
	})
	a.refreshDashboard(context.Background())
}

func (a *App) OnPlayAudio(item review.Item) {
	asset, ok := audio.Pick(item.Audios, a.cfg.Audio.Voice)
	if !ok {
		a.view.FlashStatus("No audio for this item.")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.audio.Play(ctx, asset); err != nil {
		a.logger.Error("audio.play_failed", map[string]any{"item": item.ID, "path": asset.Path, "error": err.Error()})
		if errors.Is(err, audio.ErrNoPlayer) {
			a.view.FlashStatus("Set audio.player to play audio.")
		}
	}
}

func (a *App) OnCopy(item review.Item) {
	if err := a.copyText(item.Characters); err != nil {
		a.logger.Error("clipboard.write_failed", map[string]any{"item": item.ID, "error": err.Error()})
		a.view.Toast(string(notify.KindWarning), "Copy failed", err.Error())
		return
	}
	a.view.Toast(string(notify.KindSuccess), "Copied", item.Characters)
}

func (a *App) OnDetails(item review.Item) {
	subject, _ := a.subjectFor(item.SubjectID)
	a.view.SetDetails(detailsTitle(item), buildDetailsMarkdown(item, subject), true)
}

func (a *App) subjectFor(key string) (decks.Subject, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range a.subjects {
		if s.Key() == key {
			return s, true
		}
	}
	return decks.Subject{}, false
}

func (a *App) refreshDashboard(ctx context.Context) {
	d, err := a.dashboard(ctx)
	if err != nil {
		a.logger.Error("dashboard.load_failed", map[string]any{"error": err.Error()})
		d.Notice = "Could not read review progress."
	}
	a.view.SetDashboard(d)
}

func (a *App) dashboard(ctx context.Context) (ui.Dashboard, error) {
	a.mu.Lock()
	subjects := a.subjects
	deckCount := len(a.decks)
	a.mu.Unlock()

	assignments, err := a.store.GetAssignments(ctx)
	if err != nil {
		return ui.Dashboard{Decks: deckCount, Subjects: len(subjects)}, err
	}
	last, err := a.store.GetLastSession(ctx)
	if err != nil {
		return ui.Dashboard{Decks: deckCount, Subjects: len(subjects)}, err
	}
	return buildDashboard(subjects, deckCount, assignments, last, a.now()), nil
}

// buildDashboard derives the home screen from the loaded subjects and their
// assignments. Subjects that were never reviewed count as available now.
func buildDashboard(subjects []decks.Subject, deckCount int, assignments map[string]state.Assignment, last *state.LastSession, now time.Time) ui.Dashboard {
	due := queue.Due(subjects, assignments, now)

	var (
		upcoming []time.Time
		stages   []srs.Stage
	)
	for _, s := range subjects {
		a, ok := assignments[s.Key()]
		if !ok {
			continue
		}
		stages = append(stages, a.Stage)
		if !a.AvailableAt.IsZero() && a.AvailableAt.After(now) && a.Stage < srs.Burned {
			upcoming = append(upcoming, a.AvailableAt.In(now.Location()))
		}
	}

	d := ui.Dashboard{
		Available: len(due),
		Forecast:  srs.Forecast(now, len(due), upcoming),
		Level:     currentLevel(subjects, assignments),
		Groups:    srs.GroupCounts(stages),
		Decks:     deckCount,
		Subjects:  len(subjects),
	}
	if last != nil && last.Finished() {
		d.LastSession = &ui.SessionInfo{
			FinishedAt: last.FinishTS,
			Reviewed:   last.Reviewed,
			Correct:    last.Correct,
			Incorrect:  last.Incorrect,
		}
	}
	return d
}

// currentLevel is the lowest level that still has an unpassed kanji, or the
// highest kanji level once every kanji has passed.
func currentLevel(subjects []decks.Subject, assignments map[string]state.Assignment) srs.LevelProgress {
	byLevel := map[int][]srs.KanjiProgress{}
	for _, s := range subjects {
		if s.Type != review.SubjectKanji {
			continue
		}
		a := assignments[s.Key()]
		byLevel[s.Level] = append(byLevel[s.Level], srs.KanjiProgress{
			Stage:  a.Stage,
			Passed: a.Stage.Passed() || !a.PassedAt.IsZero(),
		})
	}
	if len(byLevel) == 0 {
		return srs.LevelProgress{Level: 1}
	}
	level, top := 0, 0
	for l, kanji := range byLevel {
		top = max(top, l)
		for _, k := range kanji {
			if !k.Passed && (level == 0 || l < level) {
				level = l
			}
		}
	}
	if level == 0 {
		level = top
	}
	return srs.ComputeLevelProgress(level, byLevel[level])
}
