package review

type ReviewType string

const (
	ReviewMeaning ReviewType = "meaning"
	ReviewReading ReviewType = "reading"
)

type SubjectType string

const (
	SubjectRadical        SubjectType = "radical"
	SubjectKanji          SubjectType = "kanji"
	SubjectVocabulary     SubjectType = "vocabulary"
	SubjectKanaVocabulary SubjectType = "kana_vocabulary"
)

// HasReadings reports whether subjects of this type are reviewed for their
// reading as well as their meaning.
func (t SubjectType) HasReadings() bool {
	return t == SubjectKanji || t == SubjectVocabulary
}

type Meaning struct {
	Meaning  string `json:"meaning"`
	Primary  bool   `json:"primary,omitempty"`
	Accepted bool   `json:"accepted"`
}

type Reading struct {
	Reading  string `json:"reading"`
	Type     string `json:"type,omitempty"`
	Primary  bool   `json:"primary,omitempty"`
	Accepted bool   `json:"accepted"`
}

type Audio struct {
	Path        string `json:"path"`
	ContentType string `json:"content_type,omitempty"`
	Voice       string `json:"voice,omitempty"`
}

// Item is one question in a review session: a subject asked for either its
// meaning or its reading.
type Item struct {
	ID          string      `json:"id"`
	SubjectID   string      `json:"subject_id"`
	SubjectType SubjectType `json:"subject_type"`
	ReviewType  ReviewType  `json:"review_type"`
	Characters  string      `json:"characters"`
	Level       int         `json:"level"`
	SRSStage    int         `json:"srs_stage"`
	Meanings    []Meaning   `json:"meanings"`
	Readings    []Reading   `json:"readings,omitempty"`
	Audios      []Audio     `json:"audios,omitempty"`
	MnemonicMD  string      `json:"mnemonic_md,omitempty"`

	// Submitted and Correct annotate an item whose answer has been graded
	// but not yet moved past. They only drive feedback colors.
	Submitted bool `json:"submitted,omitempty"`
	Correct   bool `json:"correct,omitempty"`
}

// ItemID names the review of one subject for one review type.
func ItemID(subjectID string, rt ReviewType) string {
	return subjectID + "-" + string(rt)
}

// Entry is a display-ready accepted answer with an optional label such as a
// reading type or "primary".
type Entry struct {
	Text     string `json:"text"`
	Category string `json:"category,omitempty"`
}

type Verdict struct {
	Valid   bool
	Message string
	// Close is set when a rejected meaning is a near miss of a known one.
	Close bool
}
