package review

import (
	"strings"

	"github.com/samber/lo"
	"golang.org/x/text/cases"

	"hakubun/internal/kana"
)

var folder = cases.Fold()

// AnswersForReading lists the readings a reading review compares against.
// With acceptedOnly set only the exact-match tier is returned.
func AnswersForReading(item Item, acceptedOnly bool) []Reading {
	return lo.Filter(item.Readings, func(r Reading, _ int) bool {
		return strings.TrimSpace(r.Reading) != "" && (!acceptedOnly || r.Accepted)
	})
}

// AnswersForMeaning lists the meanings a meaning review compares against.
func AnswersForMeaning(item Item, acceptedOnly bool) []Meaning {
	return lo.Filter(item.Meanings, func(m Meaning, _ int) bool {
		return strings.TrimSpace(m.Meaning) != "" && (!acceptedOnly || m.Accepted)
	})
}

// answerTexts returns the comparison keys for every answer of the item's
// review type.
func answerTexts(item Item, acceptedOnly bool) []string {
	if item.ReviewType == ReviewReading {
		return lo.Map(AnswersForReading(item, acceptedOnly), func(r Reading, _ int) string {
			return readingKey(r.Reading)
		})
	}
	return lo.Map(AnswersForMeaning(item, acceptedOnly), func(m Meaning, _ int) string {
		return meaningKey(m.Meaning)
	})
}

func answerKey(item Item, answer string) string {
	if item.ReviewType == ReviewReading {
		return readingKey(answer)
	}
	return meaningKey(answer)
}

func readingKey(s string) string {
	return kana.ToHiragana(strings.Join(strings.Fields(s), ""), kana.Options{})
}

func meaningKey(s string) string {
	return folder.String(strings.Join(strings.Fields(s), " "))
}

// IsCorrect reports whether answer matches the exact-match tier. Answers from
// the alternate tier are recognized by validation but graded wrong.
func IsCorrect(item Item, answer string) bool {
	key := answerKey(item, answer)
	if key == "" {
		return false
	}
	return lo.Contains(answerTexts(item, true), key)
}
