package devtools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hakubun/internal/review"
)

func TestResolveKnownAndAliasNames(t *testing.T) {
	m := NewManager()
	for _, name := range m.Names() {
		if got := m.Resolve(name).Name; got != name {
			t.Fatalf("resolve %q: got %q", name, got)
		}
	}
	if got := m.Resolve("main_menu"); got.Screen != ScreenHome {
		t.Fatalf("expected main_menu alias to resolve home, got %+v", got)
	}
	if got := m.Resolve("nope"); got.Name != "review" {
		t.Fatalf("expected unknown demo to fall back to review, got %q", got.Name)
	}
}

func TestDraftForAnswers(t *testing.T) {
	reading := review.Item{
		ID:          "k-one-reading",
		ReviewType:  review.ReviewReading,
		SubjectType: review.SubjectKanji,
		Readings:    []review.Reading{{Reading: "いち", Type: "onyomi", Primary: true, Accepted: true}},
	}
	meaning := review.Item{
		ID:         "k-one-meaning",
		ReviewType: review.ReviewMeaning,
		Meanings:   []review.Meaning{{Meaning: "One", Primary: true, Accepted: true}},
	}
	tests := []struct {
		name string
		s    Scenario
		item review.Item
		want string
	}{
		{"correct reading", Scenario{Answer: AnswerCorrect}, reading, "いち"},
		{"wrong reading", Scenario{Answer: AnswerWrong}, reading, "ぬ"},
		{"wrong meaning", Scenario{Answer: AnswerWrong}, meaning, "banana"},
		{"garbled meaning", Scenario{Answer: AnswerGarbled}, meaning, "Onee"},
		{"none", Scenario{}, meaning, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.DraftFor(tt.item); got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
	v, _ := review.NewValidator(review.ModeStrict)
	verdict := v.Validate(meaning, Scenario{Answer: AnswerGarbled}.DraftFor(meaning))
	if verdict.Valid || !verdict.Close {
		t.Fatalf("expected garbled answer to be a rejected near miss, got %+v", verdict)
	}
}

func TestSetStateWritesFile(t *testing.T) {
	dir := t.TempDir()
	m := NewManager()
	m.now = func() time.Time { return time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC) }
	if err := m.SetState(context.Background(), dir, " summary ", true); err != nil {
		t.Fatalf("set state: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "dev_state.json"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["state"] != "summary" || got["rendered"] != true || got["updated_at"] != "2026-05-01T09:00:00Z" {
		t.Fatalf("unexpected state %#v", got)
	}
}
