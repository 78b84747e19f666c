package decks

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"hakubun/internal/kana"
	"hakubun/internal/review"
)

const (
	DeckKind               = "deck"
	SupportedSchemaVersion = 1
)

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{2,63}$`)

type Deck struct {
	Kind          string    `yaml:"kind" validate:"required"`
	SchemaVersion int       `yaml:"schema_version" validate:"required"`
	DeckID        string    `yaml:"deck_id" validate:"required,deckid"`
	Name          string    `yaml:"name" validate:"required"`
	Version       string    `yaml:"version" validate:"required"`
	DescriptionMD string    `yaml:"description_md"`
	Subjects      []Subject `yaml:"subjects" validate:"required,min=1,unique=ID,dive"`

	// Dir is the deck directory, empty for the builtin deck.
	Dir     string `yaml:"-"`
	Builtin bool   `yaml:"-"`
}

type Subject struct {
	ID         string             `yaml:"id" validate:"required"`
	Type       review.SubjectType `yaml:"type" validate:"required,oneof=radical kanji vocabulary kana_vocabulary"`
	Characters string             `yaml:"characters" validate:"required"`
	Level      int                `yaml:"level" validate:"gte=1,lte=60"`
	Meanings   []MeaningSpec      `yaml:"meanings" validate:"required,min=1,dive"`
	Readings   []ReadingSpec      `yaml:"readings" validate:"dive"`
	Audio      []AudioSpec        `yaml:"audio" validate:"dive"`
	MnemonicMD string             `yaml:"mnemonic_md"`

	DeckID string `yaml:"-"`
}

type MeaningSpec struct {
	Meaning string `yaml:"meaning" validate:"required"`
	Primary bool   `yaml:"primary"`
	// Accepted defaults to true. False marks an alternate that is recognized
	// but graded wrong.
	Accepted *bool `yaml:"accepted"`
}

type ReadingSpec struct {
	Reading  string `yaml:"reading" validate:"required,kana"`
	Type     string `yaml:"type" validate:"omitempty,oneof=onyomi kunyomi nanori"`
	Primary  bool   `yaml:"primary"`
	Accepted *bool  `yaml:"accepted"`
}

type AudioSpec struct {
	Path        string `yaml:"path" validate:"required"`
	ContentType string `yaml:"content_type"`
	Voice       string `yaml:"voice"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("deckid", func(fl validator.FieldLevel) bool {
		return idPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("kana", func(fl validator.FieldLevel) bool {
		return kana.IsKana(fl.Field().String())
	})
	v.RegisterStructValidation(validateSubject, Subject{})
	return v
}

func validateSubject(sl validator.StructLevel) {
	s := sl.Current().Interface().(Subject)
	if len(s.Meanings) > 0 && !lo.ContainsBy(s.Meanings, func(m MeaningSpec) bool { return m.accepted() }) {
		sl.ReportError(s.Meanings, "meanings", "Meanings", "accepted_meaning", "")
	}
	if s.Type.HasReadings() && !lo.ContainsBy(s.Readings, func(r ReadingSpec) bool { return r.accepted() }) {
		sl.ReportError(s.Readings, "readings", "Readings", "accepted_reading", "")
	}
}

func (d Deck) Validate() error {
	if d.Kind != DeckKind {
		return fmt.Errorf("kind must be %q", DeckKind)
	}
	if d.SchemaVersion > SupportedSchemaVersion {
		return fmt.Errorf("unsupported deck schema_version %d (max supported %d)", d.SchemaVersion, SupportedSchemaVersion)
	}
	if err := validate.Struct(d); err != nil {
		return describe(err)
	}
	return nil
}

func describe(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err
	}
	msgs := lo.Map(errs, func(fe validator.FieldError, _ int) string {
		field := strings.TrimPrefix(fe.Namespace(), "Deck.")
		switch fe.Tag() {
		case "required":
			return field + " is required"
		case "deckid":
			return fmt.Sprintf("invalid deck_id %q", fe.Value())
		case "kana":
			return fmt.Sprintf("%s must be kana, got %q", field, fe.Value())
		case "unique":
			return field + " has duplicate ids"
		case "accepted_meaning":
			return field + " needs at least one accepted meaning"
		case "accepted_reading":
			return field + " needs at least one accepted reading"
		case "oneof":
			return fmt.Sprintf("invalid %s %q", field, fe.Value())
		}
		if fe.Param() != "" {
			return fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	})
	return errors.New(strings.Join(msgs, "; "))
}

func (m MeaningSpec) accepted() bool { return m.Accepted == nil || *m.Accepted }
func (r ReadingSpec) accepted() bool { return r.Accepted == nil || *r.Accepted }

// Key identifies a subject across decks.
func (s Subject) Key() string { return s.DeckID + "/" + s.ID }

// ReviewTypes lists what the subject is reviewed for, meaning first.
func (s Subject) ReviewTypes() []review.ReviewType {
	if s.Type.HasReadings() {
		return []review.ReviewType{review.ReviewMeaning, review.ReviewReading}
	}
	return []review.ReviewType{review.ReviewMeaning}
}

// Item builds the review item asking for s under review type rt.
func (s Subject) Item(rt review.ReviewType, stage int) review.Item {
	key := s.Key()
	return review.Item{
		ID:          review.ItemID(key, rt),
		SubjectID:   key,
		SubjectType: s.Type,
		ReviewType:  rt,
		Characters:  s.Characters,
		Level:       s.Level,
		SRSStage:    stage,
		Meanings: lo.Map(s.Meanings, func(m MeaningSpec, _ int) review.Meaning {
			return review.Meaning{Meaning: m.Meaning, Primary: m.Primary, Accepted: m.accepted()}
		}),
		Readings: lo.Map(s.Readings, func(r ReadingSpec, _ int) review.Reading {
			return review.Reading{Reading: r.Reading, Type: r.Type, Primary: r.Primary, Accepted: r.accepted()}
		}),
		Audios: lo.Map(s.Audio, func(a AudioSpec, _ int) review.Audio {
			return review.Audio{Path: a.Path, ContentType: a.ContentType, Voice: a.Voice}
		}),
		MnemonicMD: s.MnemonicMD,
	}
}
