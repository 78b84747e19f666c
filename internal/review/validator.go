package review

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/samber/lo"

	"hakubun/internal/kana"
)

const (
	ModeStrict  = "strict"
	ModeLenient = "lenient"
)

const (
	MessageEmpty          = "You didn't type an answer yet!"
	MessageNotKana        = "That doesn't look like a reading. Try typing it in kana."
	MessageKanaForMeaning = "That looks like a reading. This item wants the meaning."
	MessageClose          = "Close, but that isn't one of the answers for this item. Check your spelling!"
	MessageUnrecognized   = "That answer isn't recognized for this item."
)

type evaluatorFunc func(Item, string) Verdict

// AnswerValidator checks whether an answer is acceptable input for an item.
// It has no side effects.
type AnswerValidator struct {
	mode     string
	registry map[string]evaluatorFunc
}

func NewValidator(mode string) (*AnswerValidator, error) {
	mode = strings.TrimSpace(strings.ToLower(mode))
	if mode == "" {
		mode = ModeStrict
	}
	v := &AnswerValidator{mode: mode, registry: map[string]evaluatorFunc{}}
	v.registry[registryKey(ModeStrict, ReviewMeaning)] = v.evalStrictMeaning
	v.registry[registryKey(ModeStrict, ReviewReading)] = v.evalStrictReading
	v.registry[registryKey(ModeLenient, ReviewMeaning)] = v.evalLenientMeaning
	v.registry[registryKey(ModeLenient, ReviewReading)] = v.evalLenientReading
	if _, ok := v.registry[registryKey(mode, ReviewMeaning)]; !ok {
		return nil, fmt.Errorf("invalid validation mode %q", mode)
	}
	return v, nil
}

func (v *AnswerValidator) Mode() string { return v.mode }

func (v *AnswerValidator) Validate(item Item, answer string) Verdict {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return Verdict{Valid: false, Message: MessageEmpty}
	}
	eval, ok := v.registry[registryKey(v.mode, item.ReviewType)]
	if !ok {
		return Verdict{Valid: false, Message: "Unknown review type: " + string(item.ReviewType)}
	}
	return eval(item, answer)
}

func registryKey(mode string, rt ReviewType) string {
	return mode + "/" + string(rt)
}

func (v *AnswerValidator) evalStrictMeaning(item Item, answer string) Verdict {
	key := meaningKey(answer)
	known := answerTexts(item, false)
	if lo.Contains(known, key) {
		return Verdict{Valid: true}
	}
	if kana.HasKana(answer) {
		return Verdict{Valid: false, Message: MessageKanaForMeaning}
	}
	if isNearMiss(key, known) {
		return Verdict{Valid: false, Message: MessageClose, Close: true}
	}
	return Verdict{Valid: false, Message: MessageUnrecognized}
}

func (v *AnswerValidator) evalStrictReading(item Item, answer string) Verdict {
	key := readingKey(answer)
	if lo.Contains(answerTexts(item, false), key) {
		return Verdict{Valid: true}
	}
	if kana.HasLatin(key) {
		return Verdict{Valid: false, Message: MessageNotKana}
	}
	return Verdict{Valid: false, Message: MessageUnrecognized}
}

func (v *AnswerValidator) evalLenientMeaning(_ Item, answer string) Verdict {
	if kana.HasKana(answer) {
		return Verdict{Valid: false, Message: MessageKanaForMeaning}
	}
	return Verdict{Valid: true}
}

func (v *AnswerValidator) evalLenientReading(_ Item, answer string) Verdict {
	if !kana.IsKana(strings.Join(strings.Fields(answer), "")) {
		return Verdict{Valid: false, Message: MessageNotKana}
	}
	return Verdict{Valid: true}
}

func isNearMiss(key string, known []string) bool {
	for _, k := range known {
		limit := max(1, utf8.RuneCountInString(k)/4)
		if levenshtein.ComputeDistance(key, k) <= limit {
			return true
		}
	}
	return false
}
