package telemetry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestJSONLoggerWritesOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf)
	l.now = func() time.Time { return time.Date(2026, time.May, 1, 12, 0, 0, 0, time.UTC) }

	l.Info("review.card.present", map[string]any{"item_id": "k-1-meaning"})
	l.With(map[string]any{"session_id": "s-1"}).Error("audio.load_failed", map[string]any{"error": "missing"})

	sc := bufio.NewScanner(&buf)
	var entries []map[string]any
	for sc.Scan() {
		var e map[string]any
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("decode line %q: %v", sc.Text(), err)
		}
		entries = append(entries, e)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0]["msg"] != "review.card.present" || entries[0]["level"] != "info" || entries[0]["ts"] != "2026-05-01T12:00:00Z" {
		t.Fatalf("unexpected first entry %#v", entries[0])
	}
	if entries[1]["session_id"] != "s-1" || entries[1]["level"] != "error" || entries[1]["error"] != "missing" {
		t.Fatalf("unexpected second entry %#v", entries[1])
	}
}

func TestNewJSONLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "events.jsonl")
	for i := 0; i < 2; i++ {
		l, err := NewJSONLogger(path)
		if err != nil {
			t.Fatalf("open logger: %v", err)
		}
		l.Info("session.start", nil)
		if err := l.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if n := bytes.Count(b, []byte("\n")); n != 2 {
		t.Fatalf("expected 2 lines, got %d", n)
	}
}

func TestNilAndDiscardLoggers(t *testing.T) {
	var l *JSONLogger
	l.Info("ignored", nil)
	if err := l.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
	d, err := NewJSONLogger("")
	if err != nil {
		t.Fatalf("discard logger: %v", err)
	}
	d.Info("ignored", map[string]any{"x": 1})
}
