package state

import (
	"context"
	"time"

	"hakubun/internal/srs"
)

type Store interface {
	EnsureSchema(ctx context.Context) error
	StartSession(ctx context.Context, session Session) error
	FinishSession(ctx context.Context, result SessionResult) error
	RecordAnswer(ctx context.Context, answer Answer) (int64, error)
	DeleteAnswer(ctx context.Context, id int64) error
	UpsertAssignment(ctx context.Context, a Assignment) error
	GetAssignments(ctx context.Context) (map[string]Assignment, error)
	CountAvailable(ctx context.Context, at time.Time) (int, error)
	ForecastCounts(ctx context.Context, now time.Time) ([]srs.ForecastDay, error)
	SaveSettings(ctx context.Context, values map[string]string) error
	LoadSettings(ctx context.Context) (map[string]string, error)
	GetSummary(ctx context.Context) (Summary, error)
	GetLastSession(ctx context.Context) (*LastSession, error)
	Close() error
}

type Session struct {
	ID      string
	DeckIDs []string
	Order   string
	StartTS time.Time
}

type SessionResult struct {
	ID        string
	FinishTS  time.Time
	Reviewed  int
	Correct   int
	Incorrect int
}

// Answer is one graded submission. Retried answers are deleted by ID.
type Answer struct {
	SessionID  string
	SubjectID  string
	ReviewType string
	Text       string
	Correct    bool
	AnsweredTS time.Time
}

// Assignment is the SRS progress of one subject. A zero AvailableAt means the
// subject is never due again.
type Assignment struct {
	SubjectID   string
	Stage       srs.Stage
	AvailableAt time.Time
	PassedAt    time.Time
	UpdatedTS   time.Time
}

type Summary struct {
	Sessions  int
	Answers   int
	Correct   int
	Incorrect int
	Burned    int
}

func (s Summary) Accuracy() int {
	if s.Answers == 0 {
		return 0
	}
	return s.Correct * 100 / s.Answers
}

type LastSession struct {
	ID        string
	StartTS   time.Time
	FinishTS  time.Time
	Reviewed  int
	Correct   int
	Incorrect int
}

func (l LastSession) Finished() bool { return !l.FinishTS.IsZero() }
