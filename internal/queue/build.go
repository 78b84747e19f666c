package queue

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"hakubun/internal/decks"
	"hakubun/internal/review"
	"hakubun/internal/srs"
	"hakubun/internal/state"
)

type Order string

const (
	OrderShuffled Order = "shuffled"
	OrderLevel    Order = "level"
	OrderType     Order = "type"
)

func ParseOrder(s string) (Order, error) {
	switch Order(strings.ToLower(strings.TrimSpace(s))) {
	case "", OrderShuffled:
		return OrderShuffled, nil
	case OrderLevel:
		return OrderLevel, nil
	case OrderType:
		return OrderType, nil
	}
	return "", fmt.Errorf("invalid review order %q", s)
}

type BuildOptions struct {
	Order Order
	// BatchSize limits how many subjects enter the session. Zero means all
	// due subjects.
	BatchSize int
	// Shuffle reorders items for OrderShuffled. Defaults to lo.Shuffle.
	Shuffle func([]review.Item) []review.Item
}

// Due returns the subjects available for review at now. Subjects without an
// assignment have never been reviewed and are due immediately. Burned
// subjects are never due.
func Due(subjects []decks.Subject, assignments map[string]state.Assignment, now time.Time) []decks.Subject {
	return lo.Filter(subjects, func(s decks.Subject, _ int) bool {
		a, ok := assignments[s.Key()]
		if !ok {
			return true
		}
		if a.Stage >= srs.Burned || a.AvailableAt.IsZero() {
			return false
		}
		return !a.AvailableAt.After(now)
	})
}

// Build expands the due subjects into review items in session order.
func Build(subjects []decks.Subject, assignments map[string]state.Assignment, now time.Time, opts BuildOptions) []review.Item {
	due := Due(subjects, assignments, now)
	if opts.Order == OrderLevel || opts.Order == OrderType {
		sort.SliceStable(due, func(i, j int) bool {
			if due[i].Level != due[j].Level {
				return due[i].Level < due[j].Level
			}
			return due[i].Key() < due[j].Key()
		})
	}
	if opts.BatchSize > 0 && len(due) > opts.BatchSize {
		due = due[:opts.BatchSize]
	}

	items := make([]review.Item, 0, len(due)*2)
	for _, s := range due {
		stage := int(assignments[s.Key()].Stage)
		for _, rt := range s.ReviewTypes() {
			items = append(items, s.Item(rt, stage))
		}
	}

	switch opts.Order {
	case OrderType:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].ReviewType == review.ReviewMeaning && items[j].ReviewType != review.ReviewMeaning
		})
	case OrderLevel:
	default:
		shuffle := opts.Shuffle
		if shuffle == nil {
			shuffle = lo.Shuffle[review.Item]
		}
		items = shuffle(items)
	}
	return items
}

func sortItems(items []review.Item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Level != items[j].Level {
			return items[i].Level < items[j].Level
		}
		return items[i].SubjectID < items[j].SubjectID
	})
}
