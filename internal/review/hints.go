package review

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

const EmptyHintText = "No accepted answers found for this item."

// Hints derives the deduplicated accepted answers shown in the hint surface.
// Readings collapse only on matching text and type. Meanings collapse on
// case-insensitive text regardless of the primary flag.
func Hints(item Item) []Entry {
	if item.ReviewType == ReviewReading {
		readings := lo.UniqBy(AnswersForReading(item, true), func(r Reading) string {
			return fmt.Sprintf("%s-%s", r.Reading, r.Type)
		})
		return lo.Map(readings, func(r Reading, _ int) Entry {
			return Entry{Text: r.Reading, Category: r.Type}
		})
	}
	meanings := lo.UniqBy(AnswersForMeaning(item, true), func(m Meaning) string {
		return strings.ToLower(m.Meaning)
	})
	return lo.Map(meanings, func(m Meaning, _ int) Entry {
		return Entry{Text: m.Meaning, Category: lo.Ternary(m.Primary, "primary", "")}
	})
}

type HintVariant string

const (
	HintPopup HintVariant = "popup"
	HintModal HintVariant = "modal"
)

func ParseHintVariant(s string) (HintVariant, error) {
	switch HintVariant(strings.TrimSpace(strings.ToLower(s))) {
	case "", HintPopup:
		return HintPopup, nil
	case HintModal:
		return HintModal, nil
	}
	return "", fmt.Errorf("invalid hint variant %q", s)
}

// HintSurface holds the reveal state for one item's hints. The popup variant
// shows only while the revealing gesture is held. The modal variant stays
// until dismissed.
type HintSurface struct {
	variant HintVariant
	key     string
	entries []Entry
	visible bool
}

func NewHintSurface(variant HintVariant) *HintSurface {
	if variant == "" {
		variant = HintPopup
	}
	return &HintSurface{variant: variant}
}

func (h *HintSurface) Variant() HintVariant { return h.variant }

// Sync recomputes the entries when the item identity changes and hides the
// surface. It reports whether a recompute happened.
func (h *HintSurface) Sync(item Item) bool {
	key := item.ID + "/" + string(item.ReviewType)
	if key == h.key && h.entries != nil {
		return false
	}
	h.key = key
	h.entries = Hints(item)
	h.visible = false
	return true
}

// Press starts the revealing gesture. For the modal variant it opens the
// modal.
func (h *HintSurface) Press() {
	if h.entries == nil {
		return
	}
	h.visible = true
}

// Release ends the gesture. Popups hide immediately and modals stay open.
func (h *HintSurface) Release() {
	if h.variant == HintPopup {
		h.visible = false
	}
}

// Cancel aborts the gesture, for example when the pointer leaves the button.
func (h *HintSurface) Cancel() {
	if h.variant == HintPopup {
		h.visible = false
	}
}

// Dismiss closes either variant.
func (h *HintSurface) Dismiss() {
	h.visible = false
}

func (h *HintSurface) Visible() bool { return h.visible }

func (h *HintSurface) Entries() []Entry {
	return append([]Entry(nil), h.entries...)
}

// Lines renders the entries as plain text lines, or the empty-state text.
func (h *HintSurface) Lines() []string {
	if len(h.entries) == 0 {
		return []string{EmptyHintText}
	}
	return lo.Map(h.entries, func(e Entry, _ int) string {
		if e.Category == "" {
			return e.Text
		}
		return fmt.Sprintf("%s (%s)", e.Text, e.Category)
	})
}
