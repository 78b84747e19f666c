package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"hakubun/internal/decks"
	"hakubun/internal/review"
	"hakubun/internal/srs"
	"hakubun/internal/state"
)

type fakeRecorder struct {
	started     []state.Session
	finished    []state.SessionResult
	answers     map[int64]state.Answer
	nextID      int64
	assignments map[string]state.Assignment
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{answers: map[int64]state.Answer{}, assignments: map[string]state.Assignment{}}
}

func (f *fakeRecorder) StartSession(_ context.Context, s state.Session) error {
	f.started = append(f.started, s)
	return nil
}

func (f *fakeRecorder) FinishSession(_ context.Context, r state.SessionResult) error {
	f.finished = append(f.finished, r)
	return nil
}

func (f *fakeRecorder) RecordAnswer(_ context.Context, a state.Answer) (int64, error) {
	f.nextID++
	f.answers[f.nextID] = a
	return f.nextID, nil
}

func (f *fakeRecorder) DeleteAnswer(_ context.Context, id int64) error {
	delete(f.answers, id)
	return nil
}

func (f *fakeRecorder) UpsertAssignment(_ context.Context, a state.Assignment) error {
	f.assignments[a.SubjectID] = a
	return nil
}

var testNow = time.Date(2026, time.April, 1, 9, 15, 0, 0, time.UTC)

func subject(id string, typ review.SubjectType, level int, meaning, reading string) decks.Subject {
	s := decks.Subject{
		ID:         id,
		DeckID:     "test-deck",
		Type:       typ,
		Characters: id,
		Level:      level,
		Meanings:   []decks.MeaningSpec{{Meaning: meaning, Primary: true}},
	}
	if reading != "" {
		s.Readings = []decks.ReadingSpec{{Reading: reading, Primary: true}}
	}
	return s
}

func dogItems() []review.Item {
	dog := subject("dog", review.SubjectVocabulary, 2, "Dog", "いぬ")
	return []review.Item{dog.Item(review.ReviewMeaning, int(srs.Apprentice2)), dog.Item(review.ReviewReading, int(srs.Apprentice2))}
}

func newSession(items []review.Item, rec *fakeRecorder) *Session {
	s := NewSession(items, Config{Store: rec, Now: func() time.Time { return testNow }})
	if err := s.Start(context.Background()); err != nil {
		panic(err)
	}
	return s
}

func TestBuildSelectsDueSubjects(t *testing.T) {
	subjects := []decks.Subject{
		subject("new", review.SubjectKanji, 1, "New", "しん"),
		subject("due", review.SubjectRadical, 1, "Ground", ""),
		subject("later", review.SubjectKanji, 1, "Later", "ご"),
		subject("burned", review.SubjectKanji, 1, "Burned", "やけ"),
	}
	assignments := map[string]state.Assignment{
		"test-deck/due":    {SubjectID: "test-deck/due", Stage: srs.Guru1, AvailableAt: testNow.Add(-time.Minute)},
		"test-deck/later":  {SubjectID: "test-deck/later", Stage: srs.Apprentice1, AvailableAt: testNow.Add(time.Hour)},
		"test-deck/burned": {SubjectID: "test-deck/burned", Stage: srs.Burned},
	}
	items := Build(subjects, assignments, testNow, BuildOptions{Order: OrderLevel})
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].ID != "test-deck/due-meaning" || items[0].SRSStage != int(srs.Guru1) {
		t.Fatalf("unexpected first item %#v", items[0])
	}
	if items[1].ID != "test-deck/new-meaning" || items[2].ID != "test-deck/new-reading" {
		t.Fatalf("unexpected order %q %q", items[1].ID, items[2].ID)
	}
}

func TestBuildOrdersAndBatches(t *testing.T) {
	subjects := []decks.Subject{
		subject("b", review.SubjectKanji, 2, "B", "び"),
		subject("a", review.SubjectKanji, 1, "A", "え"),
		subject("c", review.SubjectKanji, 3, "C", "し"),
	}
	items := Build(subjects, nil, testNow, BuildOptions{Order: OrderType, BatchSize: 2})
	want := []string{"test-deck/a-meaning", "test-deck/b-meaning", "test-deck/a-reading", "test-deck/b-reading"}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i := range want {
		if items[i].ID != want[i] {
			t.Fatalf("item %d: got %q want %q", i, items[i].ID, want[i])
		}
	}

	calls := 0
	reverse := func(in []review.Item) []review.Item {
		calls++
		out := make([]review.Item, len(in))
		for i := range in {
			out[len(in)-1-i] = in[i]
		}
		return out
	}
	items = Build(subjects[:1], nil, testNow, BuildOptions{Shuffle: reverse})
	if calls != 1 || items[0].ReviewType != review.ReviewReading {
		t.Fatalf("expected the shuffle hook to run, got %#v", items)
	}
}

func TestParseOrder(t *testing.T) {
	if o, err := ParseOrder(""); err != nil || o != OrderShuffled {
		t.Fatalf("expected shuffled default")
	}
	if o, err := ParseOrder("Level"); err != nil || o != OrderLevel {
		t.Fatalf("expected level")
	}
	if _, err := ParseOrder("random"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestHandleNextGradesThenAdvances(t *testing.T) {
	rec := newFakeRecorder()
	s := newSession(dogItems(), rec)
	if len(rec.started) != 1 || rec.started[0].ID != s.ID() {
		t.Fatalf("expected session start to be recorded")
	}

	meaning, _ := s.Current()
	tr, err := s.HandleNext(meaning, "dog", nil)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if !tr.Graded || !tr.Correct || !tr.Item.Submitted || !tr.Item.Correct || tr.Item.ID != meaning.ID {
		t.Fatalf("unexpected grade transition %#v", tr)
	}
	if !s.IsSubmitting() || s.SavedAnswer() != "dog" {
		t.Fatalf("expected submitting with saved answer")
	}

	var set []string
	setAnswer := func(a string) { set = append(set, a) }
	tr, err = s.HandleNext(tr.Item, "dog", setAnswer)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if tr.Done || tr.Item.ReviewType != review.ReviewReading || s.IsSubmitting() || s.SavedAnswer() != "" {
		t.Fatalf("unexpected advance transition %#v", tr)
	}
	if len(set) != 1 || set[0] != "" {
		t.Fatalf("expected the draft to be cleared, got %v", set)
	}

	if _, err := s.HandleNext(tr.Item, "いぬ", nil); err != nil {
		t.Fatalf("grade reading: %v", err)
	}
	tr, err = s.HandleNext(tr.Item, "いぬ", nil)
	if err != nil {
		t.Fatalf("advance reading: %v", err)
	}
	if !tr.Done || !s.Done() {
		t.Fatalf("expected queue to be done")
	}

	a, ok := rec.assignments["test-deck/dog"]
	if !ok || a.Stage != srs.Apprentice3 {
		t.Fatalf("expected stage Apprentice III, got %#v", a)
	}
	if !a.AvailableAt.Equal(time.Date(2026, time.April, 2, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected next review %s", a.AvailableAt)
	}
	if len(rec.finished) != 1 || rec.finished[0].Reviewed != 1 || rec.finished[0].Correct != 2 {
		t.Fatalf("unexpected finish %#v", rec.finished)
	}
	if st := s.Stats(); st.Accuracy() != 100 || st.Completed != 1 || st.Remaining != 0 {
		t.Fatalf("unexpected stats %#v", st)
	}
	if err := s.Finish(); err != nil || len(rec.finished) != 1 {
		t.Fatalf("finish should be idempotent")
	}
}

func TestIncorrectItemIsRequeued(t *testing.T) {
	rec := newFakeRecorder()
	items := dogItems()
	extra := subject("cat", review.SubjectRadical, 1, "Cat", "")
	items = append(items, extra.Item(review.ReviewMeaning, int(srs.Apprentice1)))
	s := newSession(items, rec)

	head, _ := s.Current()
	tr, _ := s.HandleNext(head, "wolf", nil)
	if tr.Correct || tr.Item.Correct {
		t.Fatalf("expected wrong answer")
	}
	tr, err := s.HandleNext(tr.Item, "wolf", nil)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if tr.Item.ID != items[1].ID {
		t.Fatalf("expected the next item, got %q", tr.Item.ID)
	}
	order := make([]string, 0, len(s.items))
	for _, it := range s.items {
		order = append(order, it.ID)
		if it.Submitted {
			t.Fatalf("requeued item should be clean")
		}
	}
	if len(order) != 3 || order[2] != items[0].ID {
		t.Fatalf("expected wrong item at the end, got %v", order)
	}
	st := s.Stats()
	if st.Incorrect != 1 || len(st.Missed) != 1 || st.Missed[0].SubjectID != "test-deck/dog" {
		t.Fatalf("unexpected stats %#v", st)
	}

	// Answer the rest correctly; the dog drops a stage for the miss.
	for !s.Done() {
		cur, _ := s.Current()
		answer := "いぬ"
		switch {
		case cur.SubjectID == "test-deck/cat":
			answer = "cat"
		case cur.ReviewType == review.ReviewMeaning:
			answer = "dog"
		}
		tr, err := s.HandleNext(cur, answer, nil)
		if err != nil || !tr.Correct {
			t.Fatalf("grade %s: %#v %v", cur.ID, tr, err)
		}
		if _, err := s.HandleNext(tr.Item, answer, nil); err != nil {
			t.Fatalf("advance %s: %v", cur.ID, err)
		}
	}
	if got := rec.assignments["test-deck/dog"].Stage; got != srs.Apprentice1 {
		t.Fatalf("expected Apprentice I after a miss, got %s", got)
	}
	if got := rec.assignments["test-deck/cat"].Stage; got != srs.Apprentice2 {
		t.Fatalf("expected Apprentice II, got %s", got)
	}
}

func TestHandleRetryUndoesGrade(t *testing.T) {
	rec := newFakeRecorder()
	s := newSession(dogItems(), rec)
	head, _ := s.Current()

	if _, err := s.HandleRetry(head, "", nil); !errors.Is(err, ErrNotCurrent) {
		t.Fatalf("expected ErrNotCurrent before submitting, got %v", err)
	}

	tr, _ := s.HandleNext(head, "wolf", nil)
	if len(rec.answers) != 1 {
		t.Fatalf("expected a recorded answer")
	}
	var cleared bool
	tr, err := s.HandleRetry(tr.Item, "wolf", func(a string) { cleared = a == "" })
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if tr.Item.ID != head.ID || tr.Item.Submitted || !cleared {
		t.Fatalf("unexpected retry transition %#v cleared=%v", tr, cleared)
	}
	if s.IsSubmitting() || s.SavedAnswer() != "" || len(rec.answers) != 0 {
		t.Fatalf("retry should undo the submission")
	}
	if st := s.Stats(); st.Answered != 0 || st.Incorrect != 0 || len(st.Missed) != 0 {
		t.Fatalf("unexpected stats after retry %#v", st)
	}
	if s.progress["test-deck/dog"].incorrect != 0 {
		t.Fatalf("retry should forget the miss")
	}
}

func TestHandleRejectsStaleItems(t *testing.T) {
	s := newSession(dogItems(), newFakeRecorder())
	if _, err := s.HandleNext(review.Item{ID: "other"}, "dog", nil); !errors.Is(err, ErrNotCurrent) {
		t.Fatalf("expected ErrNotCurrent, got %v", err)
	}
	empty := NewSession(nil, Config{})
	if _, err := empty.HandleNext(review.Item{ID: "x"}, "dog", nil); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}
