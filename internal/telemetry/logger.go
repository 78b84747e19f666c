// Package telemetry writes the review event log: one JSON object per line
// with a dotted event name such as review.card.advance.
package telemetry

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type JSONLogger struct {
	// mu is shared with loggers made by With.
	mu   *sync.Mutex
	w    io.WriteCloser
	base map[string]any
	now  func() time.Time
}

// NewJSONLogger appends to the file at path. An empty path discards events.
func NewJSONLogger(path string) (*JSONLogger, error) {
	if path == "" {
		return NewWriterLogger(io.Discard), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONLogger{mu: &sync.Mutex{}, w: f, now: time.Now}, nil
}

func NewWriterLogger(w io.Writer) *JSONLogger {
	return &JSONLogger{mu: &sync.Mutex{}, w: nopCloser{Writer: w}, now: time.Now}
}

// With returns a logger sharing l's output that adds fields to every event.
func (l *JSONLogger) With(fields map[string]any) *JSONLogger {
	base := make(map[string]any, len(l.base)+len(fields))
	for k, v := range l.base {
		base[k] = v
	}
	for k, v := range fields {
		base[k] = v
	}
	return &JSONLogger{mu: l.mu, w: l.w, base: base, now: l.now}
}

func (l *JSONLogger) Info(msg string, fields map[string]any) {
	l.log("info", msg, fields)
}

func (l *JSONLogger) Error(msg string, fields map[string]any) {
	l.log("error", msg, fields)
}

func (l *JSONLogger) log(level, msg string, fields map[string]any) {
	if l == nil || l.w == nil {
		return
	}
	entry := map[string]any{
		"ts":    l.now().UTC().Format(time.RFC3339Nano),
		"level": level,
		"msg":   msg,
	}
	for k, v := range l.base {
		entry[k] = v
	}
	for k, v := range fields {
		entry[k] = v
	}
	b, _ := json.Marshal(entry)
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.w.Write(append(b, '\n'))
}

func (l *JSONLogger) Close() error {
	if l == nil || l.w == nil {
		return nil
	}
	return l.w.Close()
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
