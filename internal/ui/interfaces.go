package ui

import (
	"time"

	"hakubun/internal/queue"
	"hakubun/internal/review"
	"hakubun/internal/srs"
)

// Controller receives user intents. Calls run on their own goroutine and
// must reach back into the view through its setters.
type Controller interface {
	OnStartReview()
	OnHome()
	OnQuit()
	OnResize(cols, rows int)
	OnSessionFinished(stats queue.Stats)
	OnPlayAudio(item review.Item)
	OnCopy(item review.Item)
	OnDetails(item review.Item)
}

type View interface {
	Run() error
	Stop()
	Shutdown()
	SetController(Controller)
	SetScreen(screen Screen)
	SetDashboard(d Dashboard)
	SetLoading(loading bool)
	StartReview(session *queue.Session)
	ShowSummary(stats queue.Stats)
	ApplyDemo(d DemoState)
	SetDetails(title, markdown string, open bool)
	Toast(kind, title, message string)
	FlashStatus(msg string)
	RequestDraw()
}

type Screen int

const (
	ScreenHome Screen = iota
	ScreenReview
	ScreenSummary
)

func (s Screen) String() string {
	switch s {
	case ScreenReview:
		return "review"
	case ScreenSummary:
		return "summary"
	}
	return "home"
}

type LayoutMode int

const (
	LayoutWide LayoutMode = iota
	LayoutCompact
	LayoutTooSmall
)

// Dashboard is what the home screen shows.
type Dashboard struct {
	Available   int
	Forecast    []srs.ForecastDay
	Level       srs.LevelProgress
	Groups      map[srs.Group]int
	LastSession *SessionInfo
	Decks       int
	Subjects    int
	Notice      string
}

type SessionInfo struct {
	FinishedAt time.Time
	Reviewed   int
	Correct    int
	Incorrect  int
}

// DemoState drives the review screen into a fixed state for dev tooling.
type DemoState struct {
	HintOpen bool
	Draft    string
	// Action is one of "", "submit", "retry" or "grade".
	Action string
}
