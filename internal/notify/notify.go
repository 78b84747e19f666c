// Package notify keeps the transient toast notifications shown over the UI.
package notify

import (
	"sync"
	"time"
)

type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

type Toast struct {
	ID        int
	Kind      Kind
	Title     string
	Message   string
	Timeout   time.Duration
	CreatedAt time.Time
}

func (t Toast) ExpiresAt() time.Time {
	if t.Timeout <= 0 {
		return time.Time{}
	}
	return t.CreatedAt.Add(t.Timeout)
}

func (t Toast) Expired(now time.Time) bool {
	exp := t.ExpiresAt()
	return !exp.IsZero() && !now.Before(exp)
}

// Center is safe for concurrent use.
type Center struct {
	mu     sync.Mutex
	now    func() time.Time
	seq    int
	limit  int
	toasts []Toast
}

type Option func(*Center)

func WithClock(now func() time.Time) Option {
	return func(c *Center) { c.now = now }
}

// WithLimit caps how many toasts are kept; the oldest are dropped first.
func WithLimit(n int) Option {
	return func(c *Center) { c.limit = n }
}

func NewCenter(opts ...Option) *Center {
	c := &Center{now: time.Now, limit: 4}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Center) Show(t Toast) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t.ID = c.seq
	if t.Kind == "" {
		t.Kind = KindInfo
	}
	t.CreatedAt = c.now()
	c.toasts = append(c.toasts, t)
	if c.limit > 0 && len(c.toasts) > c.limit {
		c.toasts = append([]Toast(nil), c.toasts[len(c.toasts)-c.limit:]...)
	}
	return t.ID
}

func (c *Center) Dismiss(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, t := range c.toasts {
		if t.ID == id {
			c.toasts = append(c.toasts[:i], c.toasts[i+1:]...)
			return
		}
	}
}

func (c *Center) DismissAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toasts = nil
}

// Visible prunes expired toasts and returns the rest, oldest first.
func (c *Center) Visible() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	kept := c.toasts[:0]
	for _, t := range c.toasts {
		if !t.Expired(now) {
			kept = append(kept, t)
		}
	}
	c.toasts = kept
	return append([]Toast(nil), kept...)
}

// Latest returns the newest live toast.
func (c *Center) Latest() (Toast, bool) {
	visible := c.Visible()
	if len(visible) == 0 {
		return Toast{}, false
	}
	return visible[len(visible)-1], true
}
