// Package timers provides named, cancellable one-shot timers.
package timers

import (
	"sort"
	"sync"
	"time"
)

type Timer interface {
	Stop() bool
}

type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type realScheduler struct{}

// Real schedules on the runtime timer. Callbacks run on their own goroutine.
func Real() Scheduler { return realScheduler{} }

func (realScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(d time.Duration, fn func()) Timer

func (f SchedulerFunc) AfterFunc(d time.Duration, fn func()) Timer { return f(d, fn) }

type entry struct {
	id    uint64
	timer Timer
}

// Set tracks pending timers by name. Scheduling a name that is already
// pending replaces it, and a callback whose entry was canceled or replaced
// never runs, even if the underlying timer already fired.
type Set struct {
	sched Scheduler

	mu      sync.Mutex
	seq     uint64
	entries map[string]entry
}

func NewSet(sched Scheduler) *Set {
	if sched == nil {
		sched = Real()
	}
	return &Set{sched: sched, entries: map[string]entry{}}
}

func (s *Set) Schedule(name string, d time.Duration, fn func()) {
	s.mu.Lock()
	if prev, ok := s.entries[name]; ok && prev.timer != nil {
		prev.timer.Stop()
	}
	s.seq++
	id := s.seq
	// Register before handing off so a zero-delay timer that fires
	// immediately still finds its entry.
	s.entries[name] = entry{id: id}
	s.mu.Unlock()

	t := s.sched.AfterFunc(d, func() {
		s.mu.Lock()
		cur, ok := s.entries[name]
		if !ok || cur.id != id {
			s.mu.Unlock()
			return
		}
		delete(s.entries, name)
		s.mu.Unlock()
		fn()
	})

	s.mu.Lock()
	if cur, ok := s.entries[name]; ok && cur.id == id {
		cur.timer = t
		s.entries[name] = cur
	}
	s.mu.Unlock()
}

// Cancel stops the named timer and reports whether it was pending.
func (s *Set) Cancel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return false
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(s.entries, name)
	return true
}

func (s *Set) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, e := range s.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(s.entries, name)
	}
}

func (s *Set) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[name]
	return ok
}

// Pending lists pending timer names in sorted order.
func (s *Set) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for name := range s.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
