// Package queue runs a review session: it owns the item queue, the
// submitting flag shared with the card, grading, and SRS updates.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"hakubun/internal/review"
	"hakubun/internal/srs"
	"hakubun/internal/state"
)

var (
	ErrEmpty      = errors.New("review queue is empty")
	ErrNotCurrent = errors.New("item is not the current submission")
)

// defaultRequeueGap is how many items a wrong answer waits behind before it
// comes back.
const defaultRequeueGap = 3

// Recorder is the part of the store a session writes to.
type Recorder interface {
	StartSession(ctx context.Context, session state.Session) error
	FinishSession(ctx context.Context, result state.SessionResult) error
	RecordAnswer(ctx context.Context, answer state.Answer) (int64, error)
	DeleteAnswer(ctx context.Context, id int64) error
	UpsertAssignment(ctx context.Context, a state.Assignment) error
}

type Logger interface {
	Info(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

type Config struct {
	Store   Recorder
	Logger  Logger
	Params  srs.Params
	Now     func() time.Time
	DeckIDs []string
	Order   Order
	// RequeueGap overrides how far back a wrong item is reinserted.
	RequeueGap int
}

// Transition tells the caller what to present after a Handle call.
type Transition struct {
	Item review.Item
	// Done is set when the queue emptied. Item is zero then.
	Done bool
	// Graded is set when the call graded an answer instead of moving on.
	Graded  bool
	Correct bool
}

type Stats struct {
	Answered  int
	Correct   int
	Incorrect int
	// Completed counts subjects whose every review type was answered right.
	Completed int
	Remaining int
	StartTS   time.Time
	FinishTS  time.Time
	// Missed lists one item per subject that got a wrong answer.
	Missed []review.Item
}

func (s Stats) Accuracy() int {
	if s.Answered == 0 {
		return 0
	}
	return s.Correct * 100 / s.Answered
}

type subjectProgress struct {
	stage     srs.Stage
	remaining int
	incorrect int
}

type graded struct {
	answerID int64
	correct  bool
}

type Session struct {
	id     string
	ctx    context.Context
	store  Recorder
	logger Logger
	params srs.Params
	now    func() time.Time
	decks  []string
	order  Order
	gap    int

	items      []review.Item
	submitting bool
	saved      string
	last       graded

	progress map[string]*subjectProgress
	missed   map[string]review.Item
	stats    Stats
	started  bool
	finished bool
}

func NewSession(items []review.Item, cfg Config) *Session {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Params.Intervals == nil {
		cfg.Params = srs.DefaultParams()
	}
	if cfg.RequeueGap <= 0 {
		cfg.RequeueGap = defaultRequeueGap
	}
	s := &Session{
		id:       uuid.NewString(),
		ctx:      context.Background(),
		store:    cfg.Store,
		logger:   cfg.Logger,
		params:   cfg.Params,
		now:      cfg.Now,
		decks:    append([]string(nil), cfg.DeckIDs...),
		order:    cfg.Order,
		gap:      cfg.RequeueGap,
		items:    append([]review.Item(nil), items...),
		progress: map[string]*subjectProgress{},
		missed:   map[string]review.Item{},
	}
	for _, it := range s.items {
		p, ok := s.progress[it.SubjectID]
		if !ok {
			p = &subjectProgress{stage: srs.Stage(it.SRSStage)}
			s.progress[it.SubjectID] = p
		}
		p.remaining++
	}
	return s
}

func (s *Session) ID() string { return s.id }

// Start records the session. ctx is kept for the store writes made while
// handling answers.
func (s *Session) Start(ctx context.Context) error {
	if s.started {
		return nil
	}
	s.ctx = ctx
	s.started = true
	s.stats.StartTS = s.now()
	s.log("session.start", map[string]any{"session_id": s.id, "items": len(s.items)})
	if s.store == nil {
		return nil
	}
	return s.store.StartSession(ctx, state.Session{ID: s.id, DeckIDs: s.decks, Order: string(s.order), StartTS: s.stats.StartTS})
}

func (s *Session) Current() (review.Item, bool) {
	if len(s.items) == 0 {
		return review.Item{}, false
	}
	return s.items[0], true
}

func (s *Session) IsSubmitting() bool      { return s.submitting }
func (s *Session) SavedAnswer() string     { return s.saved }
func (s *Session) SetSavedAnswer(a string) { s.saved = a }
func (s *Session) Done() bool              { return len(s.items) == 0 }

func (s *Session) Stats() Stats {
	out := s.stats
	out.Remaining = len(s.items)
	out.Missed = lo.Values(s.missed)
	sortItems(out.Missed)
	return out
}

// HandleNext is the two-step submit. The first call grades answer and keeps
// the item current with its result; the second moves past it.
func (s *Session) HandleNext(item review.Item, answer string, setAnswer func(string)) (Transition, error) {
	head, err := s.current(item)
	if err != nil {
		return Transition{}, err
	}
	if !s.submitting {
		return s.grade(head, answer), nil
	}
	return s.advance(head, setAnswer), nil
}

// HandleRetry undoes a graded answer so the item can be answered again. It is
// only valid while the current item is submitted.
func (s *Session) HandleRetry(item review.Item, _ string, setAnswer func(string)) (Transition, error) {
	head, err := s.current(item)
	if err != nil {
		return Transition{}, err
	}
	if !s.submitting {
		return Transition{}, ErrNotCurrent
	}
	if s.store != nil && s.last.answerID != 0 {
		if err := s.store.DeleteAnswer(s.ctx, s.last.answerID); err != nil {
			s.logError("store.delete_answer_failed", err, map[string]any{"item_id": head.ID})
		}
	}
	s.stats.Answered--
	if s.last.correct {
		s.stats.Correct--
	} else {
		s.stats.Incorrect--
		s.progress[head.SubjectID].incorrect--
		s.forgetMiss(head.SubjectID)
	}
	s.last = graded{}
	s.submitting = false
	s.saved = ""
	head.Submitted, head.Correct = false, false
	s.items[0] = head
	if setAnswer != nil {
		setAnswer("")
	}
	s.log("session.retry", map[string]any{"item_id": head.ID})
	return Transition{Item: head}, nil
}

func (s *Session) current(item review.Item) (review.Item, error) {
	head, ok := s.Current()
	if !ok {
		return review.Item{}, ErrEmpty
	}
	if head.ID != item.ID {
		return review.Item{}, ErrNotCurrent
	}
	return head, nil
}

func (s *Session) grade(head review.Item, answer string) Transition {
	correct := review.IsCorrect(head, answer)
	head.Submitted, head.Correct = true, correct
	s.items[0] = head
	s.submitting = true
	s.saved = answer
	s.last = graded{correct: correct}

	s.stats.Answered++
	if correct {
		s.stats.Correct++
	} else {
		s.stats.Incorrect++
		s.progress[head.SubjectID].incorrect++
		s.missed[head.SubjectID] = head
	}
	if s.store != nil {
		id, err := s.store.RecordAnswer(s.ctx, state.Answer{
			SessionID:  s.id,
			SubjectID:  head.SubjectID,
			ReviewType: string(head.ReviewType),
			Text:       answer,
			Correct:    correct,
			AnsweredTS: s.now(),
		})
		if err != nil {
			s.logError("store.record_answer_failed", err, map[string]any{"item_id": head.ID})
		}
		s.last.answerID = id
	}
	s.log("session.answer", map[string]any{"item_id": head.ID, "correct": correct})
	return Transition{Item: head, Graded: true, Correct: correct}
}

func (s *Session) advance(head review.Item, setAnswer func(string)) Transition {
	s.submitting = false
	s.saved = ""
	s.last = graded{}
	rest := s.items[1:]
	if head.Correct {
		s.items = rest
		s.completeHalf(head)
	} else {
		head.Submitted, head.Correct = false, false
		at := min(s.gap, len(rest))
		s.items = append(append(append(make([]review.Item, 0, len(rest)+1), rest[:at]...), head), rest[at:]...)
	}
	if setAnswer != nil {
		setAnswer("")
	}
	next, ok := s.Current()
	if !ok {
		s.finish()
		return Transition{Done: true}
	}
	return Transition{Item: next}
}

func (s *Session) completeHalf(item review.Item) {
	p := s.progress[item.SubjectID]
	p.remaining--
	if p.remaining > 0 {
		return
	}
	s.stats.Completed++
	now := s.now()
	next := s.params.NextStage(p.stage, p.incorrect)
	a := state.Assignment{
		SubjectID:   item.SubjectID,
		Stage:       next,
		AvailableAt: s.params.NextReview(next, now),
		UpdatedTS:   now,
	}
	if next.Passed() {
		a.PassedAt = now
	}
	s.log("srs.update", map[string]any{
		"subject_id": item.SubjectID,
		"from":       p.stage.String(),
		"to":         next.String(),
		"incorrect":  p.incorrect,
	})
	if s.store == nil {
		return
	}
	if err := s.store.UpsertAssignment(s.ctx, a); err != nil {
		s.logError("store.upsert_assignment_failed", err, map[string]any{"subject_id": item.SubjectID})
	}
}

// Finish ends the session early or after the last item. Later calls do
// nothing.
func (s *Session) Finish() error {
	return s.finish()
}

func (s *Session) finish() error {
	if s.finished {
		return nil
	}
	s.finished = true
	s.stats.FinishTS = s.now()
	s.log("session.finish", map[string]any{
		"session_id": s.id,
		"answered":   s.stats.Answered,
		"correct":    s.stats.Correct,
		"completed":  s.stats.Completed,
		"remaining":  len(s.items),
	})
	if s.store == nil || !s.started {
		return nil
	}
	err := s.store.FinishSession(s.ctx, state.SessionResult{
		ID:        s.id,
		FinishTS:  s.stats.FinishTS,
		Reviewed:  s.stats.Completed,
		Correct:   s.stats.Correct,
		Incorrect: s.stats.Incorrect,
	})
	if err != nil {
		s.logError("store.finish_session_failed", err, map[string]any{"session_id": s.id})
	}
	return err
}

func (s *Session) forgetMiss(subjectID string) {
	if s.progress[subjectID].incorrect <= 0 {
		delete(s.missed, subjectID)
	}
}

func (s *Session) log(msg string, fields map[string]any) {
	if s.logger != nil {
		s.logger.Info(msg, fields)
	}
}

func (s *Session) logError(msg string, err error, fields map[string]any) {
	if s.logger == nil {
		return
	}
	fields["error"] = err.Error()
	s.logger.Error(msg, fields)
}
