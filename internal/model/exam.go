package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"
)

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionTypeMCQ   QuestionType = "mcq"
	QuestionTypeShort QuestionType = "short"
)

// DefaultPoints is applied to questions published without a points value.
const DefaultPoints = 1.0

// FieldKeyPrefix prefixes every form field name.
const FieldKeyPrefix = "q_"

// QuestionID is a question identifier. Definitions may carry it as a JSON
// string or number; both decode to the same canonical string.
type QuestionID string

// UnmarshalJSON accepts `"a1"` as well as `7`.
func (id *QuestionID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = QuestionID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("question id must be a string or number: %w", err)
	}
	*id = QuestionID(n.String())
	return nil
}

// MarshalJSON writes integer-looking ids back as numbers so exported
// definitions keep their original shape.
func (id QuestionID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// ExamMeta describes a published exam.
type ExamMeta struct {
	ExamID      string `json:"examId" binding:"required,max=128"`
	Title       string `json:"title" binding:"max=255"`
	DurationSec int    `json:"durationSec" binding:"required,gt=0"`
	Shuffle     bool   `json:"shuffle"`
}

// Question is a single exam item. Options and Answer only apply to mcq.
type Question struct {
	ID      QuestionID   `json:"id" binding:"required"`
	Type    QuestionType `json:"type" binding:"required,oneof=mcq short"`
	Text    string       `json:"text"`
	Points  float64      `json:"points,omitempty" binding:"gte=0"`
	Options []string     `json:"options,omitempty"`
	Answer  *int         `json:"answer,omitempty"`
}

// FieldKey returns the form field name of the question.
func (q Question) FieldKey() string {
	return FieldKeyPrefix + string(q.ID)
}

// PointsValue returns the question's points with the default applied.
func (q Question) PointsValue() float64 {
	if q.Points <= 0 {
		return DefaultPoints
	}
	return q.Points
}

// CorrectIndex returns the authoritative option index for mcq questions.
func (q Question) CorrectIndex() (int, bool) {
	if q.Type != QuestionTypeMCQ || q.Answer == nil {
		return 0, false
	}
	return *q.Answer, true
}

// ExamDefinition is the unit published by an admin.
type ExamDefinition struct {
	Meta      ExamMeta   `json:"meta"`
	Questions []Question `json:"questions" binding:"required,min=1,dive"`
}

// TotalPoints sums the points of every question.
func (d *ExamDefinition) TotalPoints() float64 {
	var total float64
	for _, q := range d.Questions {
		total += q.PointsValue()
	}
	return total
}

// Exam is the in-memory exam of one session: the canonical question set used
// for collection and grading, plus the display order used for rendering.
type Exam struct {
	def     *ExamDefinition
	display []Question
}

// NewExam builds the session exam. When meta.shuffle is set the display
// order is a uniform permutation of a copy of the questions; the definition
// itself is never reordered.
func NewExam(def *ExamDefinition, rng *rand.Rand) *Exam {
	display := make([]Question, len(def.Questions))
	copy(display, def.Questions)
	if def.Meta.Shuffle {
		shuffleQuestions(display, rng)
	}
	return &Exam{def: def, display: display}
}

// Fisher-Yates.
func shuffleQuestions(qs []Question, rng *rand.Rand) {
	for i := len(qs) - 1; i > 0; i-- {
		var j int
		if rng != nil {
			j = rng.IntN(i + 1)
		} else {
			j = rand.IntN(i + 1)
		}
		qs[i], qs[j] = qs[j], qs[i]
	}
}

// Definition returns the definition the exam was built from.
func (e *Exam) Definition() *ExamDefinition { return e.def }

// Meta returns the exam metadata.
func (e *Exam) Meta() ExamMeta { return e.def.Meta }

// Questions returns the canonical question list.
func (e *Exam) Questions() []Question { return e.def.Questions }

// DisplayQuestions returns the questions in rendering order.
func (e *Exam) DisplayQuestions() []Question { return e.display }
