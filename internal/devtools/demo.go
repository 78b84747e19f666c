// Package devtools holds the named demo states used for screenshots and
// scripted checks of the review screen.
package devtools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"

	"hakubun/internal/review"
)

type Screen string

const (
	ScreenHome    Screen = "home"
	ScreenReview  Screen = "review"
	ScreenSummary Screen = "summary"
)

// Action is what the scenario does to the first card once it is shown.
type Action string

const (
	ActionNone Action = ""
	// ActionSubmit runs the card's own submit, validation included.
	ActionSubmit Action = "submit"
	// ActionRetry asks the card to retry.
	ActionRetry Action = "retry"
	// ActionGrade grades the draft directly, skipping validation and the
	// exit animation, so the card shows its graded state.
	ActionGrade Action = "grade"
)

// Answer picks the draft typed into the card.
type Answer string

const (
	AnswerNone    Answer = ""
	AnswerCorrect Answer = "correct"
	AnswerWrong   Answer = "wrong"
	// AnswerGarbled is close to a real meaning but not accepted.
	AnswerGarbled Answer = "garbled"
)

type Scenario struct {
	Name     string
	Screen   Screen
	HintOpen bool
	Answer   Answer
	Action   Action
	// ReviewType selects which half of the first subject is shown.
	ReviewType review.ReviewType
}

type Manager struct {
	now func() time.Time
}

func NewManager() *Manager { return &Manager{now: time.Now} }

var scenarios = []Scenario{
	{Name: "home", Screen: ScreenHome},
	{Name: "review", Screen: ScreenReview, ReviewType: review.ReviewMeaning},
	{Name: "hint_open", Screen: ScreenReview, ReviewType: review.ReviewReading, HintOpen: true},
	{Name: "invalid_answer", Screen: ScreenReview, ReviewType: review.ReviewMeaning, Answer: AnswerGarbled, Action: ActionSubmit},
	{Name: "retry_blocked", Screen: ScreenReview, ReviewType: review.ReviewMeaning, Answer: AnswerCorrect, Action: ActionRetry},
	{Name: "submitted_correct", Screen: ScreenReview, ReviewType: review.ReviewReading, Answer: AnswerCorrect, Action: ActionGrade},
	{Name: "submitted_incorrect", Screen: ScreenReview, ReviewType: review.ReviewMeaning, Answer: AnswerWrong, Action: ActionGrade},
	{Name: "summary", Screen: ScreenSummary},
}

// Resolve maps a requested name to a scenario. Unknown names fall back to
// the plain review screen.
func (m *Manager) Resolve(name string) Scenario {
	name = strings.TrimSpace(strings.ToLower(name))
	switch name {
	case "main_menu", "dashboard":
		name = "home"
	case "hints_open":
		name = "hint_open"
	}
	for _, s := range scenarios {
		if s.Name == name {
			return s
		}
	}
	return scenarios[1]
}

func (m *Manager) Names() []string {
	out := make([]string, len(scenarios))
	for i, s := range scenarios {
		out[i] = s.Name
	}
	return out
}

// DraftFor returns the text the scenario types into item's card.
func (s Scenario) DraftFor(item review.Item) string {
	switch s.Answer {
	case AnswerCorrect:
		if entries := review.Hints(item); len(entries) > 0 {
			return entries[0].Text
		}
	case AnswerWrong:
		if item.ReviewType == review.ReviewReading {
			return "ぬ"
		}
		return "banana"
	case AnswerGarbled:
		if entries := review.Hints(item); len(entries) > 0 && item.ReviewType == review.ReviewMeaning {
			text := entries[0].Text
			return text + text[len(text)-1:]
		}
		return "zzz"
	}
	return ""
}

// SetState writes the dev state file that scripted checks poll. An empty
// cacheDir means ~/.cache/hakubun.
func (m *Manager) SetState(ctx context.Context, cacheDir string, state string, rendered bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cacheDir == "" {
		home, err := homedir.Dir()
		if err != nil {
			return err
		}
		cacheDir = filepath.Join(home, ".cache", "hakubun")
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return err
	}
	payload := map[string]any{
		"state":      strings.TrimSpace(state),
		"rendered":   rendered,
		"updated_at": m.now().UTC().Format(time.RFC3339),
	}
	b, _ := json.Marshal(payload)
	return os.WriteFile(filepath.Join(cacheDir, "dev_state.json"), b, 0o644)
}
