package card

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/harmonica"
)

type Edge int

const (
	EdgeLeft  Edge = -1
	EdgeRight Edge = 1
)

func (e Edge) String() string {
	if e == EdgeRight {
		return "right"
	}
	return "left"
}

func ParseEdge(s string) (Edge, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "", "left":
		return EdgeLeft, nil
	case "right":
		return EdgeRight, nil
	}
	return EdgeLeft, fmt.Errorf("invalid entry edge %q", s)
}

// Timing holds the delays and animation limits of the card lifecycle.
type Timing struct {
	EntryDelay       time.Duration
	FocusDelay       time.Duration
	PreloadDelay     time.Duration
	ExitDelay        time.Duration
	AudioUnloadDelay time.Duration
	ToastTimeout     time.Duration

	// Speed is the target offset speed in units per second.
	Speed       float64
	MinDuration time.Duration
	MaxDuration time.Duration
	// FrameInterval is the tween step. Zero snaps every transition.
	FrameInterval time.Duration

	EntryEdge Edge
	// OffscreenFactor scales the viewport width to get the offscreen offset.
	OffscreenFactor float64
}

func DefaultTiming() Timing {
	return Timing{
		EntryDelay:       50 * time.Millisecond,
		FocusDelay:       100 * time.Millisecond,
		PreloadDelay:     0,
		ExitDelay:        200 * time.Millisecond,
		AudioUnloadDelay: 5 * time.Second,
		ToastTimeout:     10 * time.Second,
		Speed:            2500,
		MinDuration:      160 * time.Millisecond,
		MaxDuration:      300 * time.Millisecond,
		FrameInterval:    time.Duration(harmonica.FPS(60) * float64(time.Second)),
		EntryEdge:        EdgeLeft,
		OffscreenFactor:  1.1,
	}
}

// Instant is Timing with animations disabled. Delays are kept because the
// exit delay orders callbacks and the focus delay avoids an input glitch.
func (t Timing) Instant() Timing {
	t.MinDuration = 0
	t.MaxDuration = 0
	t.FrameInterval = 0
	return t
}

// Thresholds decide when a drag release counts as a swipe. A release past
// Trigger swipes, and so does one past MinOffset moving faster than
// MinVelocity in the same direction.
type Thresholds struct {
	Trigger     float64
	MinOffset   float64
	MinVelocity float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Trigger: 135, MinOffset: 100, MinVelocity: 350}
}

type Swipe int

const (
	SwipeNone Swipe = iota
	SwipeAdvance
	SwipeRetry
)

func (t Thresholds) Classify(offset, velocity float64) Swipe {
	switch {
	case offset > t.Trigger || (offset > t.MinOffset && velocity > t.MinVelocity):
		return SwipeAdvance
	case offset < -t.Trigger || (offset < -t.MinOffset && velocity < -t.MinVelocity):
		return SwipeRetry
	}
	return SwipeNone
}
