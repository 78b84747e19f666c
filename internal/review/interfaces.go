package review

type Validator interface {
	Validate(item Item, answer string) Verdict
}

var _ Validator = (*AnswerValidator)(nil)
