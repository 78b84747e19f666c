package app

import (
	"fmt"
	"strings"

	"hakubun/internal/decks"
	"hakubun/internal/review"
	"hakubun/internal/srs"
)

func detailsTitle(item review.Item) string {
	return fmt.Sprintf("%s · %s", item.Characters, subjectTypeLabel(item.SubjectType))
}

// buildDetailsMarkdown describes item for the details overlay. subject may
// be zero when the item's deck is no longer loaded.
func buildDetailsMarkdown(item review.Item, subject decks.Subject) string {
	if strings.TrimSpace(item.Characters) == "" {
		return "Nothing to show for this item."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", item.Characters)
	fmt.Fprintf(&b, "%s, level %d, %s.\n", subjectTypeLabel(item.SubjectType), item.Level, srs.Stage(item.SRSStage))
	if desc := describeSubjectType(item.SubjectType); desc != "" {
		b.WriteString("\n" + desc + "\n")
	}

	b.WriteString("\n## Meanings\n\n")
	for _, m := range item.Meanings {
		b.WriteString("- " + m.Meaning + meaningTags(m) + "\n")
	}

	if len(item.Readings) > 0 {
		b.WriteString("\n## Readings\n\n")
		for _, r := range item.Readings {
			b.WriteString("- " + r.Reading + readingTags(r) + "\n")
		}
		if notes := readingNotes(item.Readings); len(notes) > 0 {
			b.WriteString("\n")
			for _, n := range notes {
				b.WriteString("> " + n + "\n")
			}
		}
	}

	mnemonic := strings.TrimSpace(item.MnemonicMD)
	if mnemonic == "" {
		mnemonic = strings.TrimSpace(subject.MnemonicMD)
	}
	if mnemonic != "" {
		b.WriteString("\n## Mnemonic\n\n")
		b.WriteString(mnemonic + "\n")
	}

	if coach := answerCoaching(item); len(coach) > 0 {
		b.WriteString("\n## This answer\n\n")
		for _, line := range coach {
			b.WriteString("- " + line + "\n")
		}
	}

	if subject.DeckID != "" {
		fmt.Fprintf(&b, "\n*Deck `%s`, subject `%s`.*\n", subject.DeckID, subject.ID)
	}
	return strings.TrimSpace(b.String())
}

func subjectTypeLabel(t review.SubjectType) string {
	switch t {
	case review.SubjectRadical:
		return "Radical"
	case review.SubjectKanji:
		return "Kanji"
	case review.SubjectVocabulary:
		return "Vocabulary"
	case review.SubjectKanaVocabulary:
		return "Kana vocabulary"
	default:
		return "Subject"
	}
}

func describeSubjectType(t review.SubjectType) string {
	switch t {
	case review.SubjectRadical:
		return "Radicals are reviewed for their meaning only."
	case review.SubjectKanji:
		return "Kanji are reviewed for meaning and for their primary reading."
	case review.SubjectVocabulary:
		return "Vocabulary is reviewed for meaning and for how the word is read."
	case review.SubjectKanaVocabulary:
		return "Kana vocabulary is written in kana already, so only the meaning is asked."
	default:
		return ""
	}
}

func meaningTags(m review.Meaning) string {
	var tags []string
	if m.Primary {
		tags = append(tags, "primary")
	}
	if !m.Accepted {
		tags = append(tags, "not accepted")
	}
	if len(tags) == 0 {
		return ""
	}
	return " *(" + strings.Join(tags, ", ") + ")*"
}

func readingTags(r review.Reading) string {
	var tags []string
	if r.Type != "" {
		tags = append(tags, r.Type)
	}
	if r.Primary {
		tags = append(tags, "primary")
	}
	if !r.Accepted {
		tags = append(tags, "not accepted")
	}
	if len(tags) == 0 {
		return ""
	}
	return " *(" + strings.Join(tags, ", ") + ")*"
}

// readingNotes explains readings that are recognized but graded wrong.
func readingNotes(readings []review.Reading) []string {
	var accepted, other []string
	for _, r := range readings {
		if r.Accepted {
			accepted = appendUnique(accepted, r.Type)
		} else {
			other = appendUnique(other, r.Type)
		}
	}
	if len(other) == 0 || len(accepted) == 0 {
		return nil
	}
	return []string{fmt.Sprintf("Answer with the %s reading. A %s reading is recognized but marked wrong.",
		orNames(accepted), orNames(other))}
}

func answerCoaching(item review.Item) []string {
	if !item.Submitted {
		return nil
	}
	if item.Correct {
		return []string{"Graded correct. Press Enter or swipe right to move on."}
	}
	out := []string{"Graded incorrect. The item comes back later in this session."}
	if item.ReviewType == review.ReviewReading {
		out = append(out, "Readings are checked in hiragana. Romaji is converted when you submit.")
	} else {
		out = append(out, "Swipe left to retry if you mistyped a meaning you know.")
	}
	return out
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

func orNames(names []string) string {
	return strings.Join(names, " or ")
}
