package card

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"hakubun/internal/notify"
	"hakubun/internal/review"
	"hakubun/internal/timers"
)

type transition struct {
	itemID string
	answer string
}

type fakeSubmission struct {
	submitting bool
	saved      string
}

func (s *fakeSubmission) IsSubmitting() bool      { return s.submitting }
func (s *fakeSubmission) SavedAnswer() string     { return s.saved }
func (s *fakeSubmission) SetSavedAnswer(a string) { s.saved = a }

type fakeAudio struct {
	mu       sync.Mutex
	preloads []string
	releases []string
}

func (a *fakeAudio) Preload(_ context.Context, assets []review.Audio) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, asset := range assets {
		a.preloads = append(a.preloads, asset.Path)
	}
	return nil
}

func (a *fakeAudio) Release(assets []review.Audio) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, asset := range assets {
		a.releases = append(a.releases, asset.Path)
	}
}

func (a *fakeAudio) snapshot() ([]string, []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.preloads...), append([]string(nil), a.releases...)
}

type harness struct {
	clock    *timers.Manual
	card     *Card
	toasts   *notify.Center
	sub      *fakeSubmission
	audio    *fakeAudio
	advanced []transition
	retried  []transition
	focused  []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:  timers.NewManual(),
		toasts: notify.NewCenter(),
		sub:    &fakeSubmission{},
		audio:  &fakeAudio{},
	}
	v, err := review.NewValidator(review.ModeStrict)
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	h.card = New(Options{
		Scheduler:  h.clock,
		Validator:  v,
		Notifier:   h.toasts,
		Submission: h.sub,
		Audio:      h.audio,
		OnAdvance: func(item review.Item, answer string, _ func(string)) {
			h.advanced = append(h.advanced, transition{itemID: item.ID, answer: answer})
		},
		OnRetry: func(item review.Item, answer string, _ func(string)) {
			h.retried = append(h.retried, transition{itemID: item.ID, answer: answer})
		},
		OnFocus: func(item review.Item) { h.focused = append(h.focused, item.ID) },
	})
	return h
}

func (h *harness) latestToast(t *testing.T) notify.Toast {
	t.Helper()
	toast, ok := h.toasts.Latest()
	if !ok {
		t.Fatalf("expected a toast")
	}
	return toast
}

func inuItem(rt review.ReviewType) review.Item {
	return review.Item{
		ID:          review.ItemID("inu", rt),
		SubjectID:   "inu",
		SubjectType: review.SubjectVocabulary,
		ReviewType:  rt,
		Characters:  "犬",
		Meanings:    []review.Meaning{{Meaning: "Dog", Primary: true, Accepted: true}},
		Readings:    []review.Reading{{Reading: "いぬ", Type: "kunyomi", Primary: true, Accepted: true}},
		Audios:      []review.Audio{{Path: "inu.mp3"}},
	}
}

func nekoItem() review.Item {
	return review.Item{
		ID:         "neko-meaning",
		SubjectID:  "neko",
		ReviewType: review.ReviewMeaning,
		Characters: "猫",
		Meanings:   []review.Meaning{{Meaning: "Cat", Primary: true, Accepted: true}},
		Audios:     []review.Audio{{Path: "neko.mp3"}},
	}
}

func TestPresentEntersFromLeftAndSettles(t *testing.T) {
	h := newHarness(t)
	h.card.Present(inuItem(review.ReviewMeaning))
	if h.card.Phase() != Entering {
		t.Fatalf("expected entering, got %s", h.card.Phase())
	}
	if got := h.card.Offset(); got != -1100 {
		t.Fatalf("expected offscreen left offset -1100, got %v", got)
	}
	h.clock.Advance(40 * time.Millisecond)
	if h.card.Offset() != -1100 {
		t.Fatalf("card moved before the entry delay")
	}
	h.clock.Advance(time.Second)
	if h.card.Offset() != 0 || h.card.Phase() != Idle {
		t.Fatalf("expected settled idle card, got offset=%v phase=%s", h.card.Offset(), h.card.Phase())
	}
	if !reflect.DeepEqual(h.focused, []string{"inu-meaning"}) {
		t.Fatalf("expected one focus, got %v", h.focused)
	}
}

func TestFocusWaitsForDelay(t *testing.T) {
	h := newHarness(t)
	h.card.Present(inuItem(review.ReviewMeaning))
	h.clock.Advance(99 * time.Millisecond)
	if len(h.focused) != 0 {
		t.Fatalf("focused too early")
	}
	h.clock.Advance(time.Millisecond)
	if len(h.focused) != 1 {
		t.Fatalf("expected focus at the delay, got %v", h.focused)
	}
}

func TestDragPastTriggerAdvancesWithNormalizedAnswer(t *testing.T) {
	h := newHarness(t)
	h.card.Present(inuItem(review.ReviewReading))
	h.clock.Advance(time.Second)

	h.card.SetDraft(" inu ")
	h.card.DragTo(90)
	h.card.Release(140, 0)
	if h.card.Phase() != Advancing {
		t.Fatalf("expected advancing, got %s", h.card.Phase())
	}
	h.clock.Advance(199 * time.Millisecond)
	if len(h.advanced) != 0 {
		t.Fatalf("advance fired before the exit delay")
	}
	h.clock.Advance(time.Millisecond)
	want := []transition{{itemID: "inu-reading", answer: "いぬ"}}
	if !reflect.DeepEqual(h.advanced, want) {
		t.Fatalf("expected %v, got %v", want, h.advanced)
	}
	if h.sub.saved != "いぬ" {
		t.Fatalf("expected saved answer いぬ, got %q", h.sub.saved)
	}
	h.clock.Advance(time.Second)
	if len(h.advanced) != 1 {
		t.Fatalf("advance fired more than once: %v", h.advanced)
	}
}

func TestDuplicateSubmitIsSuppressed(t *testing.T) {
	h := newHarness(t)
	h.card.Present(inuItem(review.ReviewMeaning))
	h.clock.Advance(time.Second)
	h.card.SetDraft("dog")
	h.card.Submit()
	h.card.Submit()
	h.card.Release(500, 1000)
	h.clock.Advance(time.Second)
	if len(h.advanced) != 1 {
		t.Fatalf("expected a single advance, got %v", h.advanced)
	}
}

func TestInvalidAnswerShakesAndWarns(t *testing.T) {
	h := newHarness(t)
	h.card.Present(inuItem(review.ReviewMeaning))
	h.clock.Advance(time.Second)

	h.card.DragTo(150)
	h.card.Release(150, 0)
	if h.card.ShakeCount() != 1 {
		t.Fatalf("expected shake count 1, got %d", h.card.ShakeCount())
	}
	toast := h.latestToast(t)
	if toast.Title != TitleInvalidAnswer || toast.Message != review.MessageEmpty || toast.Kind != notify.KindWarning {
		t.Fatalf("unexpected toast %#v", toast)
	}
	if toast.Timeout != 10*time.Second {
		t.Fatalf("unexpected toast timeout %v", toast.Timeout)
	}
	h.clock.Advance(time.Second)
	if h.card.Offset() != 0 || h.card.Phase() != Idle {
		t.Fatalf("expected card back at center, got offset=%v phase=%s", h.card.Offset(), h.card.Phase())
	}
	h.card.SetDraft("cat")
	h.card.Submit()
	if h.card.ShakeCount() != 2 {
		t.Fatalf("expected shake count 2, got %d", h.card.ShakeCount())
	}
	if h.card.Draft() != "cat" {
		t.Fatalf("draft should survive an invalid submit, got %q", h.card.Draft())
	}
	if len(h.advanced) != 0 {
		t.Fatalf("invalid answers must not advance")
	}
}

func TestSubmitClearsPreviousToasts(t *testing.T) {
	h := newHarness(t)
	h.card.Present(inuItem(review.ReviewMeaning))
	h.clock.Advance(time.Second)
	h.card.Submit()
	h.card.SetDraft("dog")
	h.card.Submit()
	if _, ok := h.toasts.Latest(); ok {
		t.Fatalf("expected toasts dismissed on submit")
	}
}

func TestRetryWithoutSubmissionIsRejected(t *testing.T) {
	cases := []struct {
		name  string
		draft string
		want  string
	}{
		{name: "empty", draft: "", want: MessageRetryEmpty},
		{name: "unsubmitted", draft: "dog", want: MessageRetryUnsubmitted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.card.Present(inuItem(review.ReviewMeaning))
			h.clock.Advance(time.Second)
			h.card.SetDraft(tc.draft)
			h.card.DragTo(-150)
			h.card.Release(-150, 0)
			toast := h.latestToast(t)
			if toast.Title != TitleCantRetry || toast.Message != tc.want {
				t.Fatalf("unexpected toast %#v", toast)
			}
			h.clock.Advance(time.Second)
			if h.card.Offset() != 0 {
				t.Fatalf("expected card centered, got %v", h.card.Offset())
			}
			if len(h.retried) != 0 {
				t.Fatalf("retry callback must not run")
			}
		})
	}
}

func TestRetryWhileSubmittingCallsBackAfterExitDelay(t *testing.T) {
	h := newHarness(t)
	h.sub.submitting = true
	h.sub.saved = "dog"
	h.card.Present(inuItem(review.ReviewMeaning))
	if h.card.Draft() != "dog" {
		t.Fatalf("expected saved answer as initial draft, got %q", h.card.Draft())
	}
	h.clock.Advance(time.Second)

	h.card.Release(-110, -400)
	if h.card.Phase() != Retrying {
		t.Fatalf("expected retrying, got %s", h.card.Phase())
	}
	h.clock.Advance(150 * time.Millisecond)
	if len(h.retried) != 0 {
		t.Fatalf("retry fired early")
	}
	h.clock.Advance(50 * time.Millisecond)
	want := []transition{{itemID: "inu-meaning", answer: "dog"}}
	if !reflect.DeepEqual(h.retried, want) {
		t.Fatalf("expected %v, got %v", want, h.retried)
	}
	h.clock.Advance(time.Second)
	if h.card.Offset() != 0 || h.card.Phase() != Idle {
		t.Fatalf("expected card back at center, got offset=%v phase=%s", h.card.Offset(), h.card.Phase())
	}
}

func TestSlowSmallDragSnapsBack(t *testing.T) {
	h := newHarness(t)
	h.card.Present(inuItem(review.ReviewMeaning))
	h.clock.Advance(time.Second)
	h.card.SetDraft("dog")
	h.card.Release(110, 100)
	h.clock.Advance(time.Second)
	if len(h.advanced) != 0 || h.card.Offset() != 0 {
		t.Fatalf("expected snap back, got advanced=%v offset=%v", h.advanced, h.card.Offset())
	}
	h.card.Release(110, 400)
	h.clock.Advance(time.Second)
	if len(h.advanced) != 1 {
		t.Fatalf("expected velocity swipe to advance, got %v", h.advanced)
	}
}

func TestSwitchingItemsCancelsPendingTimers(t *testing.T) {
	h := newHarness(t)
	h.card.Present(inuItem(review.ReviewMeaning))
	h.clock.Advance(10 * time.Millisecond)
	h.card.Present(nekoItem())
	h.clock.Advance(time.Second)

	if !reflect.DeepEqual(h.focused, []string{"neko-meaning"}) {
		t.Fatalf("stale focus fired: %v", h.focused)
	}
	preloads, _ := waitAudio(t, h.audio, 2)
	sort.Strings(preloads)
	if !reflect.DeepEqual(preloads, []string{"inu.mp3", "neko.mp3"}) {
		t.Fatalf("unexpected preloads %v", preloads)
	}
}

func TestSwitchBeforePreloadSkipsIt(t *testing.T) {
	h := newHarness(t)
	h.card.Present(inuItem(review.ReviewMeaning))
	h.card.Present(nekoItem())
	h.clock.Advance(time.Second)
	preloads, _ := waitAudio(t, h.audio, 1)
	if !reflect.DeepEqual(preloads, []string{"neko.mp3"}) {
		t.Fatalf("expected only the current item preloaded, got %v", preloads)
	}
}

func TestAudioReleaseWaitsForGraceDelay(t *testing.T) {
	h := newHarness(t)
	h.card.Present(inuItem(review.ReviewMeaning))
	h.card.Present(nekoItem())
	if got := h.card.PendingReleases(); !reflect.DeepEqual(got, []string{"release:inu-meaning"}) {
		t.Fatalf("unexpected pending releases %v", got)
	}
	h.clock.Advance(4999 * time.Millisecond)
	if _, releases := h.audio.snapshot(); len(releases) != 0 {
		t.Fatalf("released too early: %v", releases)
	}
	h.clock.Advance(time.Millisecond)
	if _, releases := h.audio.snapshot(); !reflect.DeepEqual(releases, []string{"inu.mp3"}) {
		t.Fatalf("unexpected releases %v", releases)
	}
}

func TestReenteringItemCancelsItsRelease(t *testing.T) {
	h := newHarness(t)
	h.card.Present(inuItem(review.ReviewMeaning))
	h.card.Present(nekoItem())
	h.card.Present(inuItem(review.ReviewMeaning))
	if got := h.card.PendingReleases(); !reflect.DeepEqual(got, []string{"release:neko-meaning"}) {
		t.Fatalf("unexpected pending releases %v", got)
	}
	h.clock.Advance(10 * time.Second)
	if _, releases := h.audio.snapshot(); !reflect.DeepEqual(releases, []string{"neko.mp3"}) {
		t.Fatalf("unexpected releases %v", releases)
	}
}

func TestSharedClipSurvivesSiblingRelease(t *testing.T) {
	h := newHarness(t)
	h.card.Present(inuItem(review.ReviewMeaning))
	h.clock.Advance(time.Second)
	h.card.Present(inuItem(review.ReviewReading))
	if got := h.card.PendingReleases(); len(got) != 0 {
		t.Fatalf("expected no release of a clip still in use, got %v", got)
	}
	h.clock.Advance(10 * time.Second)
	if _, releases := h.audio.snapshot(); len(releases) != 0 {
		t.Fatalf("expected the shared clip to stay loaded, got releases %v", releases)
	}

	h.card.Present(nekoItem())
	h.clock.Advance(5 * time.Second)
	if _, releases := h.audio.snapshot(); !reflect.DeepEqual(releases, []string{"inu.mp3"}) {
		t.Fatalf("expected inu.mp3 released once the subject is done, got %v", releases)
	}
}

func TestSiblingReleaseKeepsOnlyUnsharedClips(t *testing.T) {
	h := newHarness(t)
	meaning := inuItem(review.ReviewMeaning)
	meaning.Audios = append(meaning.Audios, review.Audio{Path: "inu-female.mp3"})
	h.card.Present(meaning)
	h.card.Present(inuItem(review.ReviewReading))
	h.clock.Advance(5 * time.Second)
	if _, releases := h.audio.snapshot(); !reflect.DeepEqual(releases, []string{"inu-female.mp3"}) {
		t.Fatalf("expected only the unshared clip released, got %v", releases)
	}
}

func TestSetDraftTransliteratesReadings(t *testing.T) {
	h := newHarness(t)
	h.card.Present(inuItem(review.ReviewReading))
	if got := h.card.SetDraft("kan"); got != "かn" {
		t.Fatalf("expected live IME conversion, got %q", got)
	}
	h.card.Present(inuItem(review.ReviewMeaning))
	if got := h.card.SetDraft("kan"); got != "kan" {
		t.Fatalf("meaning drafts stay as typed, got %q", got)
	}
}

func TestDraftLockedWhileSubmitting(t *testing.T) {
	h := newHarness(t)
	h.sub.submitting = true
	h.sub.saved = "dog"
	h.card.Present(inuItem(review.ReviewMeaning))
	if got := h.card.SetDraft("cat"); got != "dog" {
		t.Fatalf("expected locked draft, got %q", got)
	}
	h.card.Submit()
	h.clock.Advance(time.Second)
	if len(h.advanced) != 1 || h.advanced[0].answer != "dog" {
		t.Fatalf("expected submit to advance the saved answer, got %v", h.advanced)
	}
}

func TestSetAnswerCallbackUpdatesDraft(t *testing.T) {
	h := newHarness(t)
	var next func(string)
	h.card.onAdvance = func(_ review.Item, _ string, setAnswer func(string)) { next = setAnswer }
	h.card.Present(inuItem(review.ReviewMeaning))
	h.card.SetDraft("dog")
	h.card.Submit()
	h.clock.Advance(time.Second)
	if next == nil {
		t.Fatalf("expected advance callback")
	}
	next("")
	if h.card.Draft() != "" {
		t.Fatalf("expected draft cleared, got %q", h.card.Draft())
	}
}

func TestRotationAndOverlay(t *testing.T) {
	h := newHarness(t)
	h.card.Present(inuItem(review.ReviewMeaning))
	h.clock.Advance(time.Second)

	h.card.DragTo(125)
	if got := h.card.Rotation(); got != 10 {
		t.Fatalf("expected rotation 10, got %v", got)
	}
	retry, advance := h.card.Overlay()
	if retry != 0 || advance != 1 {
		t.Fatalf("unexpected overlay retry=%v advance=%v", retry, advance)
	}
	h.card.DragTo(-500)
	if got := h.card.Rotation(); got != -20 {
		t.Fatalf("expected clamped rotation -20, got %v", got)
	}
	retry, advance = h.card.Overlay()
	if retry != 1 || advance != 0 {
		t.Fatalf("unexpected overlay retry=%v advance=%v", retry, advance)
	}
	h.card.DragTo(50)
	if _, advance = h.card.Overlay(); advance != 0.5 {
		t.Fatalf("expected half advance overlay, got %v", advance)
	}
}

func TestInstantTimingSnaps(t *testing.T) {
	clock := timers.NewManual()
	var advanced int
	c := New(Options{
		Scheduler: clock,
		Timing:    DefaultTiming().Instant(),
		OnAdvance: func(review.Item, string, func(string)) { advanced++ },
	})
	c.Present(inuItem(review.ReviewMeaning))
	clock.Advance(50 * time.Millisecond)
	if c.Offset() != 0 || c.Phase() != Idle {
		t.Fatalf("expected instant entry, got offset=%v phase=%s", c.Offset(), c.Phase())
	}
	c.SetDraft("dog")
	c.Submit()
	if c.Offset() != 1100 {
		t.Fatalf("expected instant exit offset, got %v", c.Offset())
	}
	clock.Advance(200 * time.Millisecond)
	if advanced != 1 {
		t.Fatalf("expected advance after exit delay, got %d", advanced)
	}
}

func waitAudio(t *testing.T, a *fakeAudio, preloads int) ([]string, []string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p, r := a.snapshot()
		if len(p) >= preloads {
			return p, r
		}
		time.Sleep(5 * time.Millisecond)
	}
	p, r := a.snapshot()
	t.Fatalf("timed out waiting for %d preloads, have %v", preloads, p)
	return p, r
}
