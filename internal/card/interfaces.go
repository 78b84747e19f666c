package card

import (
	"context"

	"hakubun/internal/notify"
	"hakubun/internal/review"
)

type Notifier interface {
	Show(t notify.Toast) int
	DismissAll()
}

// Submission is the shared flag-and-value pair owned by the queue: whether
// the current item's answer has been submitted, and the answer that was.
type Submission interface {
	IsSubmitting() bool
	SavedAnswer() string
	SetSavedAnswer(answer string)
}

type AudioLoader interface {
	Preload(ctx context.Context, assets []review.Audio) error
	Release(assets []review.Audio)
}

type Logger interface {
	Info(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

// TransitionFunc receives the item being left, the trimmed answer, and a
// setter for the card's draft.
type TransitionFunc func(item review.Item, answer string, setAnswer func(string))

type nopNotifier struct{}

func (nopNotifier) Show(notify.Toast) int { return 0 }
func (nopNotifier) DismissAll()           {}

type nopAudio struct{}

func (nopAudio) Preload(context.Context, []review.Audio) error { return nil }
func (nopAudio) Release([]review.Audio)                        {}

// localSubmission backs a card used without a queue.
type localSubmission struct {
	submitting bool
	saved      string
}

func (s *localSubmission) IsSubmitting() bool      { return s.submitting }
func (s *localSubmission) SavedAnswer() string     { return s.saved }
func (s *localSubmission) SetSavedAnswer(a string) { s.saved = a }
