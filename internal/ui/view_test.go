package ui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/x/ansi"

	"hakubun/internal/card"
	"hakubun/internal/queue"
	"hakubun/internal/review"
	"hakubun/internal/timers"
)

var fixedNow = time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC)

type mockController struct {
	mu       sync.Mutex
	starts   int
	homes    int
	quits    int
	finished []queue.Stats
	played   []string
	copied   []string
	details  []string
}

func (m *mockController) OnStartReview() { m.mu.Lock(); m.starts++; m.mu.Unlock() }
func (m *mockController) OnHome()        { m.mu.Lock(); m.homes++; m.mu.Unlock() }
func (m *mockController) OnQuit()        { m.mu.Lock(); m.quits++; m.mu.Unlock() }
func (m *mockController) OnResize(int, int) {}
func (m *mockController) OnSessionFinished(stats queue.Stats) {
	m.mu.Lock()
	m.finished = append(m.finished, stats)
	m.mu.Unlock()
}
func (m *mockController) OnPlayAudio(item review.Item) {
	m.mu.Lock()
	m.played = append(m.played, item.ID)
	m.mu.Unlock()
}
func (m *mockController) OnCopy(item review.Item) {
	m.mu.Lock()
	m.copied = append(m.copied, item.ID)
	m.mu.Unlock()
}
func (m *mockController) OnDetails(item review.Item) {
	m.mu.Lock()
	m.details = append(m.details, item.ID)
	m.mu.Unlock()
}

// waitFor polls cond until it holds or the deadline passes. Controller
// calls run on their own goroutine.
func (m *mockController) waitFor(cond func(*mockController) bool) bool {
	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		ok := cond(m)
		m.mu.Unlock()
		if ok {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func press(v *Root, code rune, mod tea.KeyMod, text string) {
	_, _ = v.Update(tea.KeyPressMsg{Code: code, Mod: mod, Text: text})
}

func typeText(v *Root, s string) {
	for _, r := range s {
		press(v, r, 0, string(r))
	}
}

func bigItem(rt review.ReviewType) review.Item {
	return review.Item{
		ID:          review.ItemID("kanji/1", rt),
		SubjectID:   "kanji/1",
		SubjectType: review.SubjectKanji,
		ReviewType:  rt,
		Characters:  "大",
		Level:       1,
		Meanings: []review.Meaning{
			{Meaning: "Big", Primary: true, Accepted: true},
			{Meaning: "Large", Accepted: true},
			{Meaning: "Huge", Accepted: false},
		},
		Readings: []review.Reading{
			{Reading: "おお", Type: "kunyomi", Primary: true, Accepted: true},
			{Reading: "たい", Type: "onyomi", Accepted: true},
		},
	}
}

func newReviewRoot(t *testing.T, opts Options, items ...review.Item) (*Root, *timers.Manual, *mockController) {
	t.Helper()
	clock := timers.NewManual()
	opts.Scheduler = clock
	opts.Now = func() time.Time { return fixedNow }
	if opts.MotionLevel == "" {
		opts.MotionLevel = "off"
	}
	v := New(opts)
	ctrl := &mockController{}
	v.SetController(ctrl)
	_, _ = v.Update(tea.WindowSizeMsg{Width: 120, Height: 32})

	s := queue.NewSession(items, queue.Config{Now: func() time.Time { return fixedNow }})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start session: %v", err)
	}
	v.StartReview(s)
	clock.Advance(150 * time.Millisecond)
	return v, clock, ctrl
}

func currentItem(t *testing.T, v *Root) review.Item {
	t.Helper()
	item, ok := v.card.Item()
	if !ok {
		t.Fatalf("expected a presented item")
	}
	return item
}

func TestViewImplementsInterfaceCompileTime(t *testing.T) {
	var _ View = New(Options{})
}

func TestCtrlQQuitsFromAnyScreen(t *testing.T) {
	for _, screen := range []Screen{ScreenHome, ScreenReview, ScreenSummary} {
		v := New(Options{})
		ctrl := &mockController{}
		v.SetController(ctrl)
		v.SetScreen(screen)

		press(v, 'q', tea.ModCtrl, "")

		if !ctrl.waitFor(func(m *mockController) bool { return m.quits == 1 }) {
			t.Fatalf("expected Ctrl+Q to quit from %s", screen)
		}
	}
}

func TestHomeEnterStartsReview(t *testing.T) {
	v := New(Options{})
	ctrl := &mockController{}
	v.SetController(ctrl)
	v.SetDashboard(Dashboard{Available: 3})

	press(v, tea.KeyEnter, 0, "")

	if !ctrl.waitFor(func(m *mockController) bool { return m.starts == 1 }) {
		t.Fatalf("expected a start review call")
	}
	if !v.loading {
		t.Fatalf("expected loading state while the queue builds")
	}
	press(v, 'r', 0, "r")
	time.Sleep(30 * time.Millisecond)
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if ctrl.starts != 1 {
		t.Fatalf("expected no second start while loading, got %d", ctrl.starts)
	}
}

func TestHomeStartWithoutReviewsFlashes(t *testing.T) {
	v := New(Options{})
	ctrl := &mockController{}
	v.SetController(ctrl)

	press(v, 'r', 0, "r")

	if v.statusFlash == "" {
		t.Fatalf("expected a status message when nothing is due")
	}
	if ctrl.waitFor(func(m *mockController) bool { return m.starts > 0 }) {
		t.Fatalf("expected no start call")
	}
}

func TestHomeForecastToggle(t *testing.T) {
	v := New(Options{Now: func() time.Time { return fixedNow }})
	press(v, 'f', 0, "f")
	if !v.forecastOpen {
		t.Fatalf("expected forecast to expand")
	}
	press(v, tea.KeyDown, 0, "")
	press(v, tea.KeyEnter, 0, "")
	if v.forecastOpen {
		t.Fatalf("expected the forecast menu item to collapse it again")
	}
}

func TestCorrectAnswerGradesThenAdvancesToSummary(t *testing.T) {
	v, clock, ctrl := newReviewRoot(t, Options{}, bigItem(review.ReviewMeaning))

	typeText(v, "big")
	if got := v.card.Draft(); got != "big" {
		t.Fatalf("expected draft to follow typing, got %q", got)
	}
	press(v, tea.KeyEnter, 0, "")
	clock.Advance(250 * time.Millisecond)

	item := currentItem(t, v)
	if !item.Submitted || !item.Correct {
		t.Fatalf("expected a graded correct item, got %+v", item)
	}
	if v.input.Value() != "big" {
		t.Fatalf("expected the saved answer to stay in the input, got %q", v.input.Value())
	}
	if v.card.Editable() {
		t.Fatalf("expected a submitted card to reject edits")
	}

	clock.Advance(150 * time.Millisecond)
	press(v, tea.KeyEnter, 0, "")
	clock.Advance(250 * time.Millisecond)

	if v.screen != ScreenSummary {
		t.Fatalf("expected summary screen, got %s", v.screen)
	}
	if v.summary.Correct != 1 || v.summary.Completed != 1 {
		t.Fatalf("unexpected summary %+v", v.summary)
	}
	if !ctrl.waitFor(func(m *mockController) bool { return len(m.finished) == 1 }) {
		t.Fatalf("expected session finished callback")
	}
}

func TestReadingInputTransliterates(t *testing.T) {
	v, _, _ := newReviewRoot(t, Options{}, bigItem(review.ReviewReading))

	typeText(v, "ooki")

	if got := v.input.Value(); got != "おおき" {
		t.Fatalf("expected kana in the input, got %q", got)
	}
	if v.input.Placeholder != "答え" {
		t.Fatalf("expected reading placeholder, got %q", v.input.Placeholder)
	}
}

func TestWrongAnswerCanBeRetried(t *testing.T) {
	v, clock, _ := newReviewRoot(t, Options{}, bigItem(review.ReviewMeaning))

	typeText(v, "huge")
	press(v, tea.KeyEnter, 0, "")
	clock.Advance(250 * time.Millisecond)
	if item := currentItem(t, v); !item.Submitted || item.Correct {
		t.Fatalf("expected a graded wrong item, got %+v", item)
	}

	clock.Advance(150 * time.Millisecond)
	press(v, tea.KeyLeft, tea.ModCtrl, "")
	clock.Advance(250 * time.Millisecond)

	item := currentItem(t, v)
	if item.Submitted {
		t.Fatalf("expected the retry to clear the grade")
	}
	if v.input.Value() != "" || v.card.Draft() != "" {
		t.Fatalf("expected an empty answer after retry, got %q", v.input.Value())
	}
	if stats := v.session.Stats(); stats.Answered != 0 || stats.Incorrect != 0 {
		t.Fatalf("expected the wrong answer to be undone, got %+v", stats)
	}
}

func TestRetryBeforeSubmitShowsToast(t *testing.T) {
	v, _, _ := newReviewRoot(t, Options{}, bigItem(review.ReviewMeaning))

	press(v, tea.KeyLeft, tea.ModCtrl, "")

	toast, ok := v.toasts.Latest()
	if !ok || toast.Title != card.TitleCantRetry || toast.Message != card.MessageRetryEmpty {
		t.Fatalf("unexpected toast %+v", toast)
	}
}

func TestInvalidAnswerShowsToastAndShakes(t *testing.T) {
	v, _, _ := newReviewRoot(t, Options{MotionLevel: "full"}, bigItem(review.ReviewMeaning))

	typeText(v, "xyz")
	press(v, tea.KeyEnter, 0, "")

	toast, ok := v.toasts.Latest()
	if !ok || toast.Title != card.TitleInvalidAnswer {
		t.Fatalf("expected invalid answer toast, got %+v", toast)
	}
	if !v.shaking {
		t.Fatalf("expected the input to shake")
	}
	if c := v.shakeColumns(); c < -2 || c > 2 {
		t.Fatalf("shake out of range: %d", c)
	}
	if v.card.Phase() != card.Idle {
		t.Fatalf("expected the card to stay idle, got %s", v.card.Phase())
	}
}

func TestPopupHintsHideOnNextKeyWithoutReleaseEvents(t *testing.T) {
	v, _, _ := newReviewRoot(t, Options{}, bigItem(review.ReviewMeaning))

	press(v, tea.KeyF1, 0, "")
	if !v.hints.Visible() {
		t.Fatalf("expected F1 to reveal hints")
	}
	press(v, 'a', 0, "a")
	if v.hints.Visible() {
		t.Fatalf("expected the next key to hide the popup")
	}
	if v.input.Value() != "a" {
		t.Fatalf("expected the key to still reach the input, got %q", v.input.Value())
	}
}

func TestPopupHintsFollowKeyRelease(t *testing.T) {
	v, _, _ := newReviewRoot(t, Options{}, bigItem(review.ReviewMeaning))
	_, _ = v.Update(tea.KeyboardEnhancementsMsg{Flags: ansi.KittyReportEventTypes})

	press(v, tea.KeyF1, 0, "")
	press(v, 'a', 0, "a")
	if !v.hints.Visible() {
		t.Fatalf("expected hints to stay while F1 is held")
	}
	_, _ = v.Update(tea.KeyReleaseMsg{Code: tea.KeyF1})
	if v.hints.Visible() {
		t.Fatalf("expected release to hide hints")
	}
}

func TestModalHintsToggleAndEscDismisses(t *testing.T) {
	v, _, _ := newReviewRoot(t, Options{HintVariant: review.HintModal}, bigItem(review.ReviewMeaning))

	press(v, tea.KeyF1, 0, "")
	press(v, 'a', 0, "a")
	if !v.hints.Visible() {
		t.Fatalf("expected modal hints to stay open")
	}
	if out := ansi.Strip(v.renderOverlay()); !strings.Contains(out, "Big (primary)") {
		t.Fatalf("expected hint entries in the modal, got %q", out)
	}
	press(v, tea.KeyEsc, 0, "")
	if v.hints.Visible() {
		t.Fatalf("expected Esc to dismiss the modal")
	}
	if v.screen != ScreenReview {
		t.Fatalf("expected Esc on the modal to keep the review open")
	}
}

func TestDragPastThresholdSubmits(t *testing.T) {
	v, clock, _ := newReviewRoot(t, Options{}, bigItem(review.ReviewMeaning))
	typeText(v, "large")
	_ = v.View()

	x, y := v.cardBox.x+v.cardBox.w/2, v.cardBox.y+2
	_, _ = v.Update(tea.MouseClickMsg{X: x, Y: y, Button: tea.MouseLeft})
	_, _ = v.Update(tea.MouseMotionMsg{X: x + 10, Y: y, Button: tea.MouseLeft})
	if got := v.card.Offset(); got != 80 {
		t.Fatalf("expected drag offset 80, got %v", got)
	}
	_, _ = v.Update(tea.MouseReleaseMsg{X: x + 20, Y: y, Button: tea.MouseLeft})
	clock.Advance(250 * time.Millisecond)

	if item := currentItem(t, v); !item.Submitted || !item.Correct {
		t.Fatalf("expected the swipe to submit, got %+v", item)
	}
}

func TestShortDragSnapsBack(t *testing.T) {
	v, clock, _ := newReviewRoot(t, Options{}, bigItem(review.ReviewMeaning))
	_ = v.View()

	x, y := v.cardBox.x+2, v.cardBox.y+2
	_, _ = v.Update(tea.MouseClickMsg{X: x, Y: y, Button: tea.MouseLeft})
	_, _ = v.Update(tea.MouseReleaseMsg{X: x - 5, Y: y, Button: tea.MouseLeft})
	clock.Advance(50 * time.Millisecond)

	if v.card.Offset() != 0 {
		t.Fatalf("expected the card to return to rest, got %v", v.card.Offset())
	}
	if _, ok := v.toasts.Latest(); ok {
		t.Fatalf("expected no toast for a short drag")
	}
}

func TestHintButtonHoldRevealsPopup(t *testing.T) {
	v, _, _ := newReviewRoot(t, Options{}, bigItem(review.ReviewMeaning))
	_ = v.View()

	b := v.hintButton
	_, _ = v.Update(tea.MouseClickMsg{X: b.x + 1, Y: b.y, Button: tea.MouseLeft})
	if !v.hints.Visible() {
		t.Fatalf("expected press on the hint button to reveal hints")
	}
	_, _ = v.Update(tea.MouseMotionMsg{X: b.x + 10, Y: b.y + 4, Button: tea.MouseLeft})
	if v.hints.Visible() {
		t.Fatalf("expected leaving the button to cancel the popup")
	}
}

func TestPopupHintsVanishOnReleaseWithMotion(t *testing.T) {
	v, _, _ := newReviewRoot(t, Options{MotionLevel: "full"}, bigItem(review.ReviewMeaning))
	_, _ = v.Update(tea.KeyboardEnhancementsMsg{Flags: ansi.KittyReportEventTypes})

	press(v, tea.KeyF1, 0, "")
	for i := 0; i < 120; i++ {
		_, _ = v.Update(animateMsg(fixedNow))
	}
	if out := ansi.Strip(v.renderReview()); !strings.Contains(out, "Accepted answers") {
		t.Fatalf("expected the popup after the reveal settles")
	}

	_, _ = v.Update(tea.KeyReleaseMsg{Code: tea.KeyF1})
	if out := ansi.Strip(v.renderReview()); strings.Contains(out, "Accepted answers") {
		t.Fatalf("expected the popup to vanish on release")
	}
	if v.hintPos != 0 || v.hintVel != 0 {
		t.Fatalf("expected the reveal to reset, got pos=%v vel=%v", v.hintPos, v.hintVel)
	}
}

func TestHintsDisabledWhileSubmitted(t *testing.T) {
	v, clock, _ := newReviewRoot(t, Options{}, bigItem(review.ReviewMeaning))
	typeText(v, "large")
	press(v, tea.KeyEnter, 0, "")
	clock.Advance(400 * time.Millisecond)
	if !v.session.IsSubmitting() {
		t.Fatalf("expected a submitted answer")
	}

	press(v, tea.KeyF1, 0, "")
	if v.hints.Visible() {
		t.Fatalf("expected F1 to be ignored while submitted")
	}

	_ = v.View()
	b := v.hintButton
	_, _ = v.Update(tea.MouseClickMsg{X: b.x + 1, Y: b.y, Button: tea.MouseLeft})
	if v.hints.Visible() {
		t.Fatalf("expected the hint button to be disabled while submitted")
	}
}

func TestShakeKeyframesEndAtRest(t *testing.T) {
	if len(shakeKeyframes) != 13 {
		t.Fatalf("expected 13 keyframes, got %d", len(shakeKeyframes))
	}
	if shakeKeyframes[len(shakeKeyframes)-1] != 0 {
		t.Fatalf("expected the shake to end at rest")
	}
}

func TestDragVelocityUsesRecentSamples(t *testing.T) {
	var d dragState
	d.sample(fixedNow, 0)
	d.sample(fixedNow.Add(200*time.Millisecond), 10)
	d.sample(fixedNow.Add(262500*time.Microsecond), 60)
	if got := d.velocity(fixedNow.Add(262500 * time.Microsecond)); got != 800 {
		t.Fatalf("expected 800 units/s, got %v", got)
	}
}

func TestEscLeavesReviewAndReportsSession(t *testing.T) {
	v, _, ctrl := newReviewRoot(t, Options{}, bigItem(review.ReviewMeaning))

	press(v, tea.KeyEsc, 0, "")

	if v.screen != ScreenHome || v.session != nil {
		t.Fatalf("expected home screen without a session")
	}
	if !ctrl.waitFor(func(m *mockController) bool { return len(m.finished) == 1 }) {
		t.Fatalf("expected session finished callback")
	}
}

func TestItemActionsDispatchToController(t *testing.T) {
	v, _, ctrl := newReviewRoot(t, Options{}, bigItem(review.ReviewMeaning))

	press(v, 'p', tea.ModCtrl, "")
	press(v, 'y', tea.ModCtrl, "")
	press(v, 'd', tea.ModCtrl, "")

	id := bigItem(review.ReviewMeaning).ID
	ok := ctrl.waitFor(func(m *mockController) bool {
		return len(m.played) == 1 && len(m.copied) == 1 && len(m.details) == 1
	})
	if !ok || ctrl.played[0] != id {
		t.Fatalf("expected audio, copy and details calls for %s", id)
	}
}

func TestDetailsOverlayClosesOnEsc(t *testing.T) {
	v, _, _ := newReviewRoot(t, Options{}, bigItem(review.ReviewMeaning))
	v.SetDetails("大 · Big", "**Big** is a size.", true)

	if out := ansi.Strip(v.renderOverlay()); !strings.Contains(out, "Big") {
		t.Fatalf("expected details text in overlay, got %q", out)
	}
	press(v, tea.KeyEsc, 0, "")
	if v.detailsOpen {
		t.Fatalf("expected Esc to close details")
	}
	if v.screen != ScreenReview {
		t.Fatalf("expected to stay in review")
	}
}

func TestApplyDemoGradesCurrentItem(t *testing.T) {
	v, _, _ := newReviewRoot(t, Options{}, bigItem(review.ReviewMeaning))

	v.ApplyDemo(DemoState{Draft: "big", Action: "grade", HintOpen: true})

	item := currentItem(t, v)
	if !item.Submitted || !item.Correct {
		t.Fatalf("expected demo grade, got %+v", item)
	}
	if !v.hints.Visible() {
		t.Fatalf("expected demo to open hints")
	}
}

func TestRenderReviewShowsCard(t *testing.T) {
	v, _, _ := newReviewRoot(t, Options{}, bigItem(review.ReviewReading))

	out := ansi.Strip(v.renderReview())
	for _, want := range []string{"大", "Kanji Reading", "[?]", "Kanji · Lv 1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in review screen:\n%s", want, out)
		}
	}
	if lines := strings.Split(out, "\n"); len(lines) != 32 {
		t.Fatalf("expected 32 rows, got %d", len(lines))
	}
}

func TestTooSmallTerminalShowsNotice(t *testing.T) {
	v := New(Options{})
	_, _ = v.Update(tea.WindowSizeMsg{Width: 40, Height: 12})
	if out := ansi.Strip(v.renderHome()); !strings.Contains(out, "Terminal too small") {
		t.Fatalf("expected too-small notice, got %q", out)
	}
}

func TestOverlayLineKeepsBaseAroundOverlay(t *testing.T) {
	got := overlayLine("abcdef", "XY", 2, 6)
	if ansi.Strip(got) != "abXYef" {
		t.Fatalf("unexpected overlay %q", ansi.Strip(got))
	}
	if w := ansi.StringWidth(padCells("大x", 5)); w != 5 {
		t.Fatalf("expected padded width 5, got %d", w)
	}
	if got := ansi.Strip(placeLine("abcd", -2, 4)); got != "cd  " {
		t.Fatalf("unexpected clipped line %q", got)
	}
}
