// Package srs implements stage-based spaced repetition scheduling.
package srs

import (
	"math"
	"strings"
	"time"
)

type Stage int

const (
	Lesson Stage = iota
	Apprentice1
	Apprentice2
	Apprentice3
	Apprentice4
	Guru1
	Guru2
	Master
	Enlightened
	Burned
)

const (
	MinStage = Lesson
	MaxStage = Burned
)

// Group is the coarse name shown for a range of stages.
type Group string

const (
	GroupLesson      Group = "lesson"
	GroupApprentice  Group = "apprentice"
	GroupGuru        Group = "guru"
	GroupMaster      Group = "master"
	GroupEnlightened Group = "enlightened"
	GroupBurned      Group = "burned"
)

// Groups lists the review groups in display order.
var Groups = []Group{GroupApprentice, GroupGuru, GroupMaster, GroupEnlightened, GroupBurned}

func (s Stage) Group() Group {
	switch {
	case s <= Lesson:
		return GroupLesson
	case s <= Apprentice4:
		return GroupApprentice
	case s <= Guru2:
		return GroupGuru
	case s == Master:
		return GroupMaster
	case s == Enlightened:
		return GroupEnlightened
	}
	return GroupBurned
}

func (s Stage) String() string {
	switch s {
	case Lesson:
		return "Lesson"
	case Apprentice1:
		return "Apprentice I"
	case Apprentice2:
		return "Apprentice II"
	case Apprentice3:
		return "Apprentice III"
	case Apprentice4:
		return "Apprentice IV"
	case Guru1:
		return "Guru I"
	case Guru2:
		return "Guru II"
	case Master:
		return "Master"
	case Enlightened:
		return "Enlightened"
	case Burned:
		return "Burned"
	}
	return "Unknown"
}

func (g Group) Title() string {
	if g == "" {
		return ""
	}
	return strings.ToUpper(string(g[:1])) + string(g[1:])
}

// Passed reports whether a subject at this stage counts as learned for level
// progress.
func (s Stage) Passed() bool { return s >= Guru1 }

// Params holds the scheduling tables.
type Params struct {
	// Intervals is how long a subject waits at a stage before its next review.
	Intervals map[Stage]time.Duration
	// PenaltyFactor multiplies the drop for wrong answers at or above
	// PenaltyFrom.
	PenaltyFactor int
	PenaltyFrom   Stage
}

func DefaultParams() Params {
	return Params{
		Intervals: map[Stage]time.Duration{
			Apprentice1: 4 * time.Hour,
			Apprentice2: 8 * time.Hour,
			Apprentice3: 23 * time.Hour,
			Apprentice4: 47 * time.Hour,
			Guru1:       167 * time.Hour,
			Guru2:       335 * time.Hour,
			Master:      719 * time.Hour,
			Enlightened: 2879 * time.Hour,
		},
		PenaltyFactor: 2,
		PenaltyFrom:   Guru1,
	}
}

// NextStage applies one completed review. incorrect counts the wrong answers
// given for the subject across both review types in the session.
func (p Params) NextStage(current Stage, incorrect int) Stage {
	if current <= Lesson {
		return Apprentice1
	}
	if incorrect <= 0 {
		return min(current+1, MaxStage)
	}
	factor := 1
	if current >= p.PenaltyFrom {
		factor = max(1, p.PenaltyFactor)
	}
	drop := int(math.Ceil(float64(incorrect)/2)) * factor
	return max(Apprentice1, current-Stage(drop))
}

// NextReview returns when a subject at stage becomes available again. Burned
// subjects are never reviewed again, reported as the zero time.
func (p Params) NextReview(stage Stage, now time.Time) time.Time {
	if stage >= Burned {
		return time.Time{}
	}
	d, ok := p.Intervals[stage]
	if !ok {
		return now
	}
	// Round down to the hour so reviews arrive in batches.
	return now.Add(d).Truncate(time.Hour)
}
