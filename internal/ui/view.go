package ui

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/progress"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/harmonica"
	clog "github.com/charmbracelet/log"

	"hakubun/internal/card"
	"hakubun/internal/notify"
	"hakubun/internal/queue"
	"hakubun/internal/review"
	"hakubun/internal/timers"
)

type applyMsg struct {
	fn func(*Root)
}

type drawMsg struct{}
type clockMsg time.Time
type animateMsg time.Time

type reviewKeyMap struct {
	Submit  key.Binding
	Advance key.Binding
	Retry   key.Binding
	Hints   key.Binding
	Audio   key.Binding
	Copy    key.Binding
	Details key.Binding
	Home    key.Binding
	Quit    key.Binding
}

func (k reviewKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Retry, k.Hints, k.Audio, k.Copy, k.Details, k.Home}
}

func (k reviewKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Submit, k.Advance, k.Retry, k.Hints}, {k.Audio, k.Copy, k.Details, k.Home, k.Quit}}
}

type homeKeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Select   key.Binding
	Start    key.Binding
	Forecast key.Binding
	Quit     key.Binding
}

func (k homeKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Select, k.Start, k.Forecast, k.Quit}
}

func (k homeKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down, k.Select}, {k.Start, k.Forecast, k.Quit}}
}

type Options struct {
	ASCIIOnly    bool
	Debug        bool
	StyleVariant string
	MotionLevel  string
	MouseScope   string
	// UnitsPerCell converts card offsets to terminal columns.
	UnitsPerCell int
	HintVariant  review.HintVariant

	Validator review.Validator
	Audio     card.AudioLoader
	Logger    card.Logger
	Timing    card.Timing
	// Scheduler drives card timers. Nil uses the runtime timer and runs
	// every callback on the UI goroutine.
	Scheduler timers.Scheduler
	Toasts    *notify.Center
	Now       func() time.Time
}

type Root struct {
	theme        Theme
	ascii        bool
	debug        bool
	ctrl         Controller
	styleVariant string
	motionLevel  string
	mouseScope   string
	unitsPerCell int
	hintVariant  review.HintVariant

	validator review.Validator
	audio     card.AudioLoader
	events    card.Logger
	timing    card.Timing
	sched     timers.Scheduler
	toasts    *notify.Center
	now       func() time.Time

	mu      sync.Mutex
	program *tea.Program
	running bool
	// inline serializes apply calls made while no program is running.
	inline sync.Mutex

	screen Screen
	layout LayoutMode
	cols   int
	rows   int

	dashboard    Dashboard
	loading      bool
	homeIndex    int
	forecastOpen bool

	session     *queue.Session
	card        *card.Card
	hints       *review.HintSurface
	input       textinput.Model
	reviewTotal int
	summary     queue.Stats

	detailsOpen  bool
	detailsTitle string
	detailsText  string

	// hintKeyHeld is set while F1 holds a popup open. releaseEvents reports
	// whether the terminal sends key release events.
	hintKeyHeld    bool
	hintButtonHeld bool
	releaseEvents  bool

	drag dragState

	shakeSeen  int
	shakeStart time.Time
	shaking    bool

	hintPos   float64
	hintVel   float64
	spring    harmonica.Spring
	animating bool

	help        help.Model
	reviewKeys  reviewKeyMap
	homeKeys    homeKeyMap
	levelBar    progress.Model
	sessionBar  progress.Model
	spin        spinner.Model
	markdown    *glamour.TermRenderer
	logger      *clog.Logger
	statusFlash string

	cardBox    rect
	hintButton rect
	homeHits   []rect

	drawPending atomic.Bool

	lastInputEvent string
}

func New(opts Options) *Root {
	logger := clog.NewWithOptions(os.Stderr, clog.Options{Prefix: "hakubun-ui", Level: clog.WarnLevel})
	if opts.Debug {
		logger.SetLevel(clog.DebugLevel)
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(72),
	)
	if err != nil {
		renderer = nil
	}

	h := help.New()
	h.Styles = help.DefaultDarkStyles()
	motionLevel := normalizeMotionLevel(opts.MotionLevel)
	mouseScope := normalizeMouseScope(opts.MouseScope)
	styleVariant := normalizeStyleVariant(opts.StyleVariant)
	theme := ThemeForVariant(styleVariant)
	spring := harmonica.NewSpring(harmonica.FPS(60), 10.0, 0.8)
	switch motionLevel {
	case "reduced":
		spring = harmonica.NewSpring(harmonica.FPS(30), 9.0, 0.92)
	case "off":
		spring = harmonica.NewSpring(harmonica.FPS(60), 1000.0, 1.0)
	}
	levelBar := progress.New(
		progress.WithWidth(24),
		progress.WithColors(theme.ProgressFrom, theme.ProgressTo),
		progress.WithScaled(true),
	)
	sessionBar := progress.New(
		progress.WithWidth(40),
		progress.WithColors(theme.ProgressFrom, theme.ProgressTo),
		progress.WithoutPercentage(),
	)
	if motionLevel == "off" {
		levelBar.SetSpringOptions(1000.0, 1.0)
		sessionBar.SetSpringOptions(1000.0, 1.0)
	}
	spin := spinner.New(
		spinner.WithSpinner(spinner.MiniDot),
		spinner.WithStyle(theme.Accent),
	)

	timing := opts.Timing
	if timing == (card.Timing{}) {
		timing = card.DefaultTiming()
	}
	if motionLevel == "off" {
		timing = timing.Instant()
	}
	units := opts.UnitsPerCell
	if units <= 0 {
		units = 8
	}
	toasts := opts.Toasts
	if toasts == nil {
		toasts = notify.NewCenter()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	validator := opts.Validator
	if validator == nil {
		v, _ := review.NewValidator(review.ModeStrict)
		validator = v
	}

	r := &Root{
		theme:        theme,
		ascii:        opts.ASCIIOnly,
		debug:        opts.Debug,
		styleVariant: styleVariant,
		motionLevel:  motionLevel,
		mouseScope:   mouseScope,
		unitsPerCell: units,
		hintVariant:  opts.HintVariant,
		validator:    validator,
		audio:        opts.Audio,
		events:       opts.Logger,
		timing:       timing,
		toasts:       toasts,
		now:          now,
		screen:       ScreenHome,
		layout:       LayoutWide,
		cols:         120,
		rows:         32,
		hints:        review.NewHintSurface(opts.HintVariant),
		input:        newAnswerInput(theme),
		help:         h,
		levelBar:     levelBar,
		sessionBar:   sessionBar,
		spin:         spin,
		markdown:     renderer,
		logger:       logger,
		spring:       spring,
	}
	r.sched = opts.Scheduler
	if r.sched == nil {
		r.sched = r.uiScheduler()
	}
	r.reviewKeys = reviewKeyMap{
		Submit:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("Enter", "Submit")),
		Advance: key.NewBinding(key.WithKeys("ctrl+right"), key.WithHelp("Ctrl+→", "Swipe next")),
		Retry:   key.NewBinding(key.WithKeys("ctrl+left"), key.WithHelp("Ctrl+←", "Retry")),
		Hints:   key.NewBinding(key.WithKeys("f1"), key.WithHelp("F1", "Hints")),
		Audio:   key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("Ctrl+P", "Audio")),
		Copy:    key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("Ctrl+Y", "Copy")),
		Details: key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("Ctrl+D", "Details")),
		Home:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("Esc", "Home")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+q"), key.WithHelp("Ctrl+Q", "Quit")),
	}
	r.homeKeys = homeKeyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "Up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "Down")),
		Select:   key.NewBinding(key.WithKeys("enter", "space"), key.WithHelp("Enter", "Select")),
		Start:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "Review")),
		Forecast: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "Forecast")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+q"), key.WithHelp("q", "Quit")),
	}
	return r
}

// uiScheduler fires card timers through apply so card state is only touched
// on the UI goroutine.
func (r *Root) uiScheduler() timers.Scheduler {
	return timers.SchedulerFunc(func(d time.Duration, fn func()) timers.Timer {
		return time.AfterFunc(d, func() {
			r.apply(func(*Root) { fn() })
		})
	})
}

func (r *Root) Init() tea.Cmd {
	return tea.Batch(clockTickCmd(), spinnerTickCmd(r.spin))
}

func (r *Root) Update(msg tea.Msg) (model tea.Model, cmd tea.Cmd) {
	defer func() {
		if rec := recover(); rec != nil {
			r.onModelPanic("update", rec, msg)
			model = r
			cmd = nil
		}
	}()

	cmd = r.update(msg)
	r.syncEffects()
	return r, tea.Batch(cmd, r.animateIfNeeded())
}

func (r *Root) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		r.cols = msg.Width
		r.rows = msg.Height
		r.layout = DetermineLayoutMode(r.cols, r.rows)
		if r.card != nil {
			r.card.SetViewportWidth(float64(max(1, r.cols) * r.unitsPerCell))
		}
		r.dispatchController(func(c Controller) { c.OnResize(msg.Width, msg.Height) })
		return nil
	case applyMsg:
		if msg.fn != nil {
			msg.fn(r)
		}
		return nil
	case drawMsg:
		r.drawPending.Store(false)
		return nil
	case clockMsg:
		return clockTickCmd()
	case animateMsg:
		r.animating = false
		r.stepAnimation()
		return nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		r.spin, cmd = r.spin.Update(msg)
		return cmd
	case tea.KeyboardEnhancementsMsg:
		r.releaseEvents = msg.SupportsEventTypes()
		return nil
	case tea.PasteMsg:
		r.recordInputEvent(fmt.Sprintf("paste:%d", len(msg.Content)))
		if r.screen == ScreenReview && !r.detailsOpen {
			return r.updateInput(msg)
		}
		return nil
	case tea.ClipboardMsg:
		if r.screen == ScreenReview && !r.detailsOpen {
			return r.updateInput(tea.PasteMsg{Content: msg.Content})
		}
		return nil
	case tea.MouseClickMsg:
		return r.handleMouseClick(msg)
	case tea.MouseMotionMsg:
		return r.handleMouseMotion(msg)
	case tea.MouseReleaseMsg:
		return r.handleMouseRelease(msg)
	case tea.KeyReleaseMsg:
		return r.handleKeyRelease(msg)
	case tea.KeyPressMsg:
		return r.handleKey(msg)
	}
	return nil
}

func (r *Root) View() (view tea.View) {
	defer func() {
		if rec := recover(); rec != nil {
			r.onModelPanic("view", rec, nil)
			width := max(1, r.cols)
			msg := "UI recovered from a rendering panic. Check logs."
			view = tea.NewView(r.theme.Fail.Width(width).Render(trimForWidth(msg, max(1, width-1))))
		}
	}()

	if r.cols < 1 {
		r.cols = 120
	}
	if r.rows < 1 {
		r.rows = 32
	}

	var base string
	switch r.screen {
	case ScreenReview:
		base = r.renderReview()
	case ScreenSummary:
		base = r.renderSummary()
	default:
		base = r.renderHome()
	}
	base = r.composeToasts(base)
	if overlay := r.renderOverlay(); overlay != "" {
		base = composeOverlay(base, overlay, r.cols, r.rows)
	}

	v := tea.NewView(base)
	v.AltScreen = true
	v.MouseMode = r.currentMouseMode()
	v.KeyboardEnhancements.ReportEventTypes = true
	v.WindowTitle = "hakubun"
	return v
}

func (r *Root) Run() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	p := tea.NewProgram(r)
	r.program = p
	r.running = true
	r.mu.Unlock()

	_, err := p.Run()

	r.mu.Lock()
	r.program = nil
	r.running = false
	r.mu.Unlock()
	return err
}

func (r *Root) Stop() {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Quit()
	}
}

// Shutdown finishes an active review and cancels card timers. Call it after
// Run returns.
func (r *Root) Shutdown() {
	r.apply(func(m *Root) {
		if m.session != nil && m.screen == ScreenReview {
			_ = m.session.Finish()
		}
		if m.card != nil {
			m.card.Shutdown()
		}
	})
}

func (r *Root) SetController(c Controller) {
	r.ctrl = c
}

func (r *Root) SetScreen(screen Screen) {
	r.apply(func(m *Root) {
		if screen != ScreenReview && m.screen == ScreenReview {
			m.endReview(false)
		}
		m.screen = screen
	})
}

func (r *Root) SetDashboard(d Dashboard) {
	r.apply(func(m *Root) {
		m.dashboard = d
	})
}

func (r *Root) SetLoading(loading bool) {
	r.apply(func(m *Root) {
		m.loading = loading
	})
}

// StartReview hands session to the review screen. From here on the session
// is only used on the UI goroutine.
func (r *Root) StartReview(session *queue.Session) {
	r.apply(func(m *Root) {
		m.startReview(session)
	})
}

// ShowSummary opens the summary screen for stats without a live session.
func (r *Root) ShowSummary(stats queue.Stats) {
	r.apply(func(m *Root) {
		if m.card != nil {
			m.card.Close()
		}
		m.summary = stats
		m.screen = ScreenSummary
	})
}

func (r *Root) SetDetails(title, markdown string, open bool) {
	r.apply(func(m *Root) {
		m.detailsTitle = title
		m.detailsText = m.renderMarkdown(markdown)
		m.detailsOpen = open
	})
}

func (r *Root) Toast(kind, title, message string) {
	r.toasts.Show(notify.Toast{
		Kind:    notify.Kind(kind),
		Title:   title,
		Message: message,
		Timeout: r.timing.ToastTimeout,
	})
	r.RequestDraw()
}

func (r *Root) FlashStatus(msg string) {
	r.apply(func(m *Root) {
		m.statusFlash = msg
	})
}

// ApplyDemo puts the current card into the state a demo scenario names.
func (r *Root) ApplyDemo(d DemoState) {
	r.apply(func(m *Root) {
		m.applyDemo(d)
	})
}

func (r *Root) RequestDraw() {
	r.mu.Lock()
	p := r.program
	running := r.running
	r.mu.Unlock()
	if !running || p == nil {
		return
	}
	if !r.drawPending.CompareAndSwap(false, true) {
		return
	}
	time.AfterFunc(16*time.Millisecond, func() {
		r.mu.Lock()
		p := r.program
		running := r.running
		r.mu.Unlock()
		if !running || p == nil {
			r.drawPending.Store(false)
			return
		}
		p.Send(drawMsg{})
	})
}

func (r *Root) apply(fn func(*Root)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	p := r.program
	running := r.running
	r.mu.Unlock()
	if !running || p == nil {
		r.inline.Lock()
		defer r.inline.Unlock()
		fn(r)
		return
	}
	p.Send(applyMsg{fn: fn})
}

func (r *Root) dispatchController(fn func(Controller)) {
	if fn == nil || r.ctrl == nil {
		return
	}
	ctrl := r.ctrl
	go fn(ctrl)
}

func (r *Root) handleKey(msg tea.KeyPressMsg) tea.Cmd {
	r.recordInputEvent(fmt.Sprintf("key:%v mod:%v text:%q", msg.Code, msg.Mod, msg.Text))

	if key.Matches(msg, r.reviewKeys.Quit) {
		r.dispatchController(func(c Controller) { c.OnQuit() })
		return nil
	}

	if r.detailsOpen {
		switch {
		case key.Matches(msg, r.reviewKeys.Home), key.Matches(msg, r.reviewKeys.Details),
			msg.Code == 'q', msg.Code == tea.KeyEnter:
			r.detailsOpen = false
		}
		return nil
	}

	switch r.screen {
	case ScreenReview:
		return r.handleReviewKey(msg)
	case ScreenSummary:
		return r.handleSummaryKey(msg)
	default:
		return r.handleHomeKey(msg)
	}
}

func (r *Root) handleKeyRelease(msg tea.KeyReleaseMsg) tea.Cmd {
	if msg.Code == tea.KeyF1 && r.hintKeyHeld {
		r.hintKeyHeld = false
		r.hints.Release()
	}
	return nil
}

func (r *Root) handleHomeKey(msg tea.KeyPressMsg) tea.Cmd {
	items := r.homeItems()
	switch {
	case key.Matches(msg, r.homeKeys.Up):
		r.homeIndex = wrapIndex(r.homeIndex-1, len(items))
	case key.Matches(msg, r.homeKeys.Down):
		r.homeIndex = wrapIndex(r.homeIndex+1, len(items))
	case key.Matches(msg, r.homeKeys.Select):
		r.activateHomeItem(items[wrapIndex(r.homeIndex, len(items))])
	case key.Matches(msg, r.homeKeys.Start):
		r.activateHomeItem(homeStart)
	case key.Matches(msg, r.homeKeys.Forecast):
		r.activateHomeItem(homeForecast)
	case key.Matches(msg, r.homeKeys.Quit):
		r.activateHomeItem(homeQuit)
	}
	return nil
}

func (r *Root) handleSummaryKey(msg tea.KeyPressMsg) tea.Cmd {
	switch {
	case msg.Code == tea.KeyEnter, key.Matches(msg, r.reviewKeys.Home):
		r.screen = ScreenHome
		r.dispatchController(func(c Controller) { c.OnHome() })
	case msg.Code == 'r':
		r.activateHomeItem(homeStart)
	case msg.Code == 'q':
		r.dispatchController(func(c Controller) { c.OnQuit() })
	}
	return nil
}

type homeItem string

const (
	homeStart    homeItem = "start"
	homeForecast homeItem = "forecast"
	homeQuit     homeItem = "quit"
)

func (r *Root) homeItems() []homeItem {
	return []homeItem{homeStart, homeForecast, homeQuit}
}

func (r *Root) activateHomeItem(item homeItem) {
	switch item {
	case homeStart:
		if r.loading {
			return
		}
		if r.dashboard.Available == 0 {
			r.statusFlash = "No reviews available right now."
			return
		}
		r.loading = true
		r.statusFlash = ""
		r.dispatchController(func(c Controller) { c.OnStartReview() })
	case homeForecast:
		r.forecastOpen = !r.forecastOpen
	case homeQuit:
		r.dispatchController(func(c Controller) { c.OnQuit() })
	}
}

// stepAnimation advances the hint reveal spring and the shake by one frame.
func (r *Root) stepAnimation() {
	target := r.hintTarget()
	r.hintPos, r.hintVel = r.spring.Update(r.hintPos, r.hintVel, target)
	if !r.springMoving(target) {
		r.hintPos = target
		r.hintVel = 0
	}
	if r.shaking && r.now().Sub(r.shakeStart) >= shakeDuration {
		r.shaking = false
	}
}

func (r *Root) hintTarget() float64 {
	if r.screen == ScreenReview && r.hints.Visible() {
		return 1
	}
	return 0
}

func (r *Root) springMoving(target float64) bool {
	if r.motionLevel == "off" {
		return false
	}
	if target > 0 {
		return r.hintPos < 0.999 || abs(r.hintVel) > 0.001
	}
	return r.hintPos > 0.001 || abs(r.hintVel) > 0.001
}

// syncEffects starts UI-only effects that follow card state: the input
// shake after a rejected answer, and an instant hint snap without motion.
// The popup only springs open; it vanishes on the frame it is released.
func (r *Root) syncEffects() {
	if r.card != nil && r.card.ShakeCount() != r.shakeSeen {
		r.shakeSeen = r.card.ShakeCount()
		if r.motionLevel != "off" {
			r.shaking = true
			r.shakeStart = r.now()
		}
	}
	target := r.hintTarget()
	if r.motionLevel == "off" || (target == 0 && r.hints.Variant() == review.HintPopup) {
		r.hintPos = target
		r.hintVel = 0
	}
}

func (r *Root) animateIfNeeded() tea.Cmd {
	if r.animating {
		return nil
	}
	if !r.springMoving(r.hintTarget()) && !r.shaking {
		return nil
	}
	r.animating = true
	return animateTickCmd()
}

func clockTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return clockMsg(t) })
}

func animateTickCmd() tea.Cmd {
	return tea.Tick(time.Second/60, func(t time.Time) tea.Msg { return animateMsg(t) })
}

func spinnerTickCmd(model spinner.Model) tea.Cmd {
	return func() tea.Msg {
		return model.Tick()
	}
}

func (r *Root) currentMouseMode() tea.MouseMode {
	switch r.mouseScope {
	case "off":
		return tea.MouseModeNone
	case "full":
		return tea.MouseModeAllMotion
	default:
		return tea.MouseModeCellMotion
	}
}

func normalizeStyleVariant(v string) string {
	switch strings.TrimSpace(v) {
	case "cozy_clean", "retro_terminal", "modern_arcade", "catppuccin":
		return strings.TrimSpace(v)
	default:
		return "modern_arcade"
	}
}

func normalizeMotionLevel(v string) string {
	switch strings.TrimSpace(v) {
	case "off", "reduced", "full":
		return strings.TrimSpace(v)
	default:
		return "full"
	}
}

func normalizeMouseScope(v string) string {
	switch strings.TrimSpace(v) {
	case "off", "scoped", "full":
		return strings.TrimSpace(v)
	default:
		return "scoped"
	}
}

func (r *Root) recordInputEvent(event string) {
	r.lastInputEvent = trimForWidth(strings.TrimSpace(event), 160)
}

func (r *Root) onModelPanic(where string, recovered any, msg tea.Msg) {
	if r.statusFlash == "" {
		r.statusFlash = "Recovered UI panic"
	}
	msgType := ""
	if msg != nil {
		msgType = fmt.Sprintf("%T", msg)
	}
	r.logger.Error("ui.panic_recovered",
		"where", where,
		"panic", fmt.Sprintf("%v", recovered),
		"message_type", msgType,
		"screen", r.screen.String(),
		"cols", r.cols,
		"rows", r.rows,
		"last_input", r.lastInputEvent,
		"stack", string(debug.Stack()),
	)
}

var _ tea.Model = (*Root)(nil)
var _ View = (*Root)(nil)
