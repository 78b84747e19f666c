// Package card drives one review item on screen: entry and exit animation,
// drag gestures, answer validation and the advance/retry handoff to the queue.
//
// A Card is not safe for concurrent use. Drive it, and the scheduler it is
// given, from a single goroutine.
package card

import (
	"context"
	"strings"
	"time"

	"github.com/samber/lo"

	"hakubun/internal/kana"
	"hakubun/internal/notify"
	"hakubun/internal/review"
	"hakubun/internal/timers"
)

type Phase int

const (
	Entering Phase = iota
	Idle
	Validating
	Advancing
	Retrying
	Exiting
)

func (p Phase) String() string {
	switch p {
	case Entering:
		return "entering"
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case Advancing:
		return "advancing"
	case Retrying:
		return "retrying"
	case Exiting:
		return "exiting"
	}
	return "unknown"
}

const (
	TitleInvalidAnswer = "Invalid Answer"
	TitleCantRetry     = "Can't Retry!"

	MessageRetryEmpty       = "Input is empty, you can't retry this item!"
	MessageRetryUnsubmitted = "You haven't submitted your answer, you can't retry this item!"
)

const (
	timerEnter   = "enter"
	timerFocus   = "focus"
	timerPreload = "preload"
	timerExit    = "exit"
	timerFrame   = "frame"
)

const defaultViewportWidth = 1000

type Options struct {
	Scheduler  timers.Scheduler
	Validator  review.Validator
	Notifier   Notifier
	Submission Submission
	Audio      AudioLoader
	Logger     Logger
	Timing     Timing
	Thresholds Thresholds

	OnAdvance TransitionFunc
	OnRetry   TransitionFunc
	// OnFocus runs once per presented item after the focus delay.
	OnFocus func(item review.Item)
	// OnChange runs after any change to what the card would render.
	OnChange func()
}

type Card struct {
	validator  review.Validator
	notifier   Notifier
	submission Submission
	audio      AudioLoader
	logger     Logger
	thresholds Thresholds
	timing     Timing

	onAdvance TransitionFunc
	onRetry   TransitionFunc
	onFocus   func(review.Item)
	onChange  func()

	// lifecycle holds the entry, focus, preload, exit and frame timers of the
	// current item. audioTimers holds delayed unloads keyed by item id and
	// outlives item changes; releases holds the clips each unload will drop.
	lifecycle   *timers.Set
	audioTimers *timers.Set
	releases    map[string][]review.Audio

	item      review.Item
	hasItem   bool
	gen       int
	phase     Phase
	draft     string
	offset    float64
	shake     int
	width     float64
	tween     *Tween
	elapsed   time.Duration
	onSettled func()

	cancelPreload context.CancelFunc
}

func New(opts Options) *Card {
	if opts.Scheduler == nil {
		opts.Scheduler = timers.Real()
	}
	if opts.Validator == nil {
		v, _ := review.NewValidator(review.ModeStrict)
		opts.Validator = v
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Submission == nil {
		opts.Submission = &localSubmission{}
	}
	if opts.Audio == nil {
		opts.Audio = nopAudio{}
	}
	if opts.Timing == (Timing{}) {
		opts.Timing = DefaultTiming()
	}
	if opts.Timing.OffscreenFactor <= 0 {
		opts.Timing.OffscreenFactor = 1.1
	}
	if opts.Thresholds == (Thresholds{}) {
		opts.Thresholds = DefaultThresholds()
	}
	return &Card{
		validator:   opts.Validator,
		notifier:    opts.Notifier,
		submission:  opts.Submission,
		audio:       opts.Audio,
		logger:      opts.Logger,
		thresholds:  opts.Thresholds,
		timing:      opts.Timing,
		onAdvance:   opts.OnAdvance,
		onRetry:     opts.OnRetry,
		onFocus:     opts.OnFocus,
		onChange:    opts.OnChange,
		lifecycle:   timers.NewSet(opts.Scheduler),
		audioTimers: timers.NewSet(opts.Scheduler),
		releases:    map[string][]review.Audio{},
		width:       defaultViewportWidth,
		phase:       Exiting,
	}
}

// Present makes item the current item and starts its entry. Timers left over
// from the previous item are canceled first, and the previous item's audio is
// released after the unload grace delay.
func (c *Card) Present(item review.Item) {
	c.lifecycle.CancelAll()
	c.stopPreload()
	if c.hasItem && c.item.ID != item.ID {
		c.scheduleRelease(c.item)
	}
	c.keepAudio(item.Audios)

	c.gen++
	c.item = item
	c.hasItem = true
	c.phase = Entering
	c.draft = ""
	if c.submission.IsSubmitting() && c.submission.SavedAnswer() != "" {
		c.draft = c.submission.SavedAnswer()
	}
	c.tween = nil
	c.onSettled = nil
	c.offset = c.offscreen(c.timing.EntryEdge)

	gen := c.gen
	c.lifecycle.Schedule(timerPreload, c.timing.PreloadDelay, func() { c.preload(item) })
	c.lifecycle.Schedule(timerEnter, c.timing.EntryDelay, func() {
		c.animateTo(0, func() {
			if c.gen == gen && c.phase == Entering {
				c.phase = Idle
				c.changed()
			}
		})
	})
	c.lifecycle.Schedule(timerFocus, c.timing.FocusDelay, func() {
		if c.onFocus != nil {
			c.onFocus(item)
		}
	})
	c.log("review.card.present", map[string]any{
		"item_id":     item.ID,
		"review_type": string(item.ReviewType),
		"submitting":  c.submission.IsSubmitting(),
	})
	c.changed()
}

// Close ends the card's lifecycle: pending timers are canceled and the
// current item's audio is released after the grace delay.
func (c *Card) Close() {
	c.lifecycle.CancelAll()
	c.stopPreload()
	if c.hasItem {
		c.scheduleRelease(c.item)
	}
	c.hasItem = false
	c.phase = Exiting
	c.tween = nil
	c.changed()
}

// Shutdown cancels everything, pending audio releases included.
func (c *Card) Shutdown() {
	c.lifecycle.CancelAll()
	c.audioTimers.CancelAll()
	clear(c.releases)
	c.stopPreload()
}

// SetViewportWidth sets the width, in offset units, that offscreen positions
// are derived from.
func (c *Card) SetViewportWidth(w float64) {
	if w > 0 {
		c.width = w
	}
}

// SetDraft replaces the draft answer. Reading items are transliterated as
// typed. Edits are ignored while an answer is submitted or the card is
// leaving.
func (c *Card) SetDraft(raw string) string {
	if !c.Editable() {
		return c.draft
	}
	if c.item.ReviewType == review.ReviewReading {
		raw = kana.Normalize(raw, true)
	}
	if raw != c.draft {
		c.draft = raw
		c.changed()
	}
	return c.draft
}

func (c *Card) setAnswer(s string) {
	c.draft = s
	c.changed()
}

// Editable reports whether the draft accepts edits.
func (c *Card) Editable() bool {
	return c.hasItem && c.acceptsGesture() && !c.submission.IsSubmitting()
}

func (c *Card) acceptsGesture() bool {
	return c.phase == Entering || c.phase == Idle
}

// Submit validates the draft and, when it is acceptable, sends the card off
// toward the advance edge.
func (c *Card) Submit() {
	c.attemptAdvance()
}

// Retry asks to put the current item back. It is only honored while an
// answer is submitted.
func (c *Card) Retry() {
	c.attemptRetry()
}

// DragTo moves the card while a drag is in progress.
func (c *Card) DragTo(offset float64) {
	if !c.hasItem || !c.acceptsGesture() {
		return
	}
	c.takeOver()
	c.offset = offset
	c.changed()
}

// Release ends a drag at offset with the given velocity in units per second.
func (c *Card) Release(offset, velocity float64) {
	if !c.hasItem || !c.acceptsGesture() {
		return
	}
	c.takeOver()
	c.offset = offset
	switch c.thresholds.Classify(offset, velocity) {
	case SwipeAdvance:
		c.attemptAdvance()
	case SwipeRetry:
		c.attemptRetry()
	default:
		c.animateTo(0, nil)
	}
}

func (c *Card) attemptAdvance() {
	if !c.hasItem || !c.acceptsGesture() {
		return
	}
	c.takeOver()
	c.notifier.DismissAll()
	answer := strings.TrimSpace(c.draft)
	if c.item.ReviewType == review.ReviewReading {
		answer = kana.ToHiragana(answer, kana.Options{})
		c.draft = answer
	}

	c.phase = Validating
	verdict := c.validator.Validate(c.item, answer)
	if !verdict.Valid {
		c.notifier.Show(notify.Toast{
			Kind:    notify.KindWarning,
			Title:   TitleInvalidAnswer,
			Message: verdict.Message,
			Timeout: c.timing.ToastTimeout,
		})
		c.shake++
		c.phase = Idle
		c.animateTo(0, nil)
		c.log("review.validate.invalid", map[string]any{
			"item_id": c.item.ID,
			"message": verdict.Message,
			"close":   verdict.Close,
		})
		return
	}

	c.submission.SetSavedAnswer(answer)
	c.phase = Advancing
	item := c.item
	c.animateTo(c.offscreen(EdgeRight), nil)
	c.lifecycle.Schedule(timerExit, c.timing.ExitDelay, func() {
		c.phase = Exiting
		c.log("review.card.advance", map[string]any{"item_id": item.ID})
		c.changed()
		if c.onAdvance != nil {
			c.onAdvance(item, answer, c.setAnswer)
		}
	})
}

func (c *Card) attemptRetry() {
	if !c.hasItem || !c.acceptsGesture() {
		return
	}
	c.takeOver()
	answer := strings.TrimSpace(c.draft)
	if !c.submission.IsSubmitting() {
		msg := MessageRetryUnsubmitted
		if answer == "" {
			msg = MessageRetryEmpty
		}
		c.notifier.Show(notify.Toast{
			Kind:    notify.KindWarning,
			Title:   TitleCantRetry,
			Message: msg,
			Timeout: c.timing.ToastTimeout,
		})
		c.animateTo(0, nil)
		c.log("review.retry.rejected", map[string]any{"item_id": c.item.ID, "empty": answer == ""})
		return
	}

	c.phase = Retrying
	item := c.item
	gen := c.gen
	c.animateTo(c.offscreen(EdgeLeft), nil)
	c.lifecycle.Schedule(timerExit, c.timing.ExitDelay, func() {
		c.phase = Exiting
		c.log("review.card.retry", map[string]any{"item_id": item.ID})
		c.changed()
		if c.onRetry != nil {
			c.onRetry(item, answer, c.setAnswer)
		}
		// Bring the card back unless the callback already presented an item.
		if c.gen == gen && c.hasItem {
			c.phase = Idle
			c.animateTo(0, nil)
		}
	})
}

func (c *Card) animateTo(target float64, done func()) {
	c.stopTween()
	d := DurationFor(target-c.offset, c.timing.Speed, c.timing.MinDuration, c.timing.MaxDuration)
	if d <= 0 || c.timing.FrameInterval <= 0 {
		c.offset = target
		c.changed()
		if done != nil {
			done()
		}
		return
	}
	c.tween = &Tween{From: c.offset, To: target, Duration: d, Ease: EaseOut}
	c.elapsed = 0
	c.onSettled = done
	c.lifecycle.Schedule(timerFrame, c.timing.FrameInterval, c.frame)
}

func (c *Card) frame() {
	if c.tween == nil {
		return
	}
	c.elapsed += c.timing.FrameInterval
	c.offset = c.tween.At(c.elapsed)
	if c.elapsed >= c.tween.Duration {
		done := c.onSettled
		c.tween = nil
		c.onSettled = nil
		c.changed()
		if done != nil {
			done()
		}
		return
	}
	c.changed()
	c.lifecycle.Schedule(timerFrame, c.timing.FrameInterval, c.frame)
}

// takeOver hands the offset to the user's gesture, ending any entry that is
// still in progress.
func (c *Card) takeOver() {
	c.stopTween()
	if c.phase == Entering {
		c.lifecycle.Cancel(timerEnter)
		c.phase = Idle
	}
}

// stopTween freezes the offset where it is. A pending completion is dropped.
func (c *Card) stopTween() {
	c.lifecycle.Cancel(timerFrame)
	c.tween = nil
	c.onSettled = nil
}

func (c *Card) offscreen(edge Edge) float64 {
	return float64(edge) * c.width * c.timing.OffscreenFactor
}

func (c *Card) preload(item review.Item) {
	if len(item.Audios) == 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelPreload = cancel
	assets := append([]review.Audio(nil), item.Audios...)
	loader := c.audio
	logger := c.logger
	go func() {
		defer cancel()
		if err := loader.Preload(ctx, assets); err != nil && ctx.Err() == nil && logger != nil {
			logger.Error("audio.load_failed", map[string]any{"item_id": item.ID, "error": err.Error()})
		}
	}()
}

func (c *Card) stopPreload() {
	if c.cancelPreload != nil {
		c.cancelPreload()
		c.cancelPreload = nil
	}
}

func (c *Card) scheduleRelease(item review.Item) {
	if len(item.Audios) == 0 {
		return
	}
	id := item.ID
	c.releases[id] = append([]review.Audio(nil), item.Audios...)
	c.audioTimers.Schedule(releaseTimerName(id), c.timing.AudioUnloadDelay, func() {
		assets := c.releases[id]
		delete(c.releases, id)
		if len(assets) > 0 {
			c.audio.Release(assets)
		}
	})
}

// keepAudio takes the clips of the entering item out of every pending
// release. Meaning and reading items of one subject share clips, so the
// release of one must not drop what the other just preloaded.
func (c *Card) keepAudio(assets []review.Audio) {
	inUse := lo.SliceToMap(assets, func(a review.Audio) (string, struct{}) { return a.Path, struct{}{} })
	for id, pending := range c.releases {
		kept := lo.Filter(pending, func(a review.Audio, _ int) bool {
			_, used := inUse[a.Path]
			return !used
		})
		if len(kept) > 0 {
			c.releases[id] = kept
			continue
		}
		c.audioTimers.Cancel(releaseTimerName(id))
		delete(c.releases, id)
	}
}

func releaseTimerName(itemID string) string { return "release:" + itemID }

func (c *Card) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}

func (c *Card) log(msg string, fields map[string]any) {
	if c.logger != nil {
		c.logger.Info(msg, fields)
	}
}

func (c *Card) Item() (review.Item, bool) { return c.item, c.hasItem }
func (c *Card) Phase() Phase              { return c.phase }
func (c *Card) Draft() string             { return c.draft }
func (c *Card) Offset() float64           { return c.offset }
func (c *Card) ShakeCount() int           { return c.shake }
func (c *Card) Animating() bool           { return c.tween != nil }
func (c *Card) ViewportWidth() float64    { return c.width }

// PendingTimers lists the lifecycle timers still waiting to fire.
func (c *Card) PendingTimers() []string { return c.lifecycle.Pending() }

// PendingReleases lists delayed audio releases.
func (c *Card) PendingReleases() []string { return c.audioTimers.Pending() }

// Rotation is the tilt in degrees derived from the offset.
func (c *Card) Rotation() float64 {
	return Interpolate(c.offset, []float64{-250, 0, 250}, []float64{-20, 0, 20})
}

// Overlay returns the retry and advance overlay opacities for the offset.
func (c *Card) Overlay() (retry, advance float64) {
	retry = Interpolate(c.offset, []float64{-100, 1}, []float64{1, 0})
	advance = Interpolate(c.offset, []float64{0, 100}, []float64{0, 1})
	return retry, advance
}
