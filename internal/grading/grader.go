// Package grading collects answers from the exam form, scores them against
// the definition and restores saved drafts.
package grading

import (
	"strings"

	"github.com/stemsi/exstem-kiosk/internal/model"
)

// FormReader reads current control state by field name.
type FormReader interface {
	Selected(name string) (int, bool)
	Text(name string) (string, bool)
}

// FormWriter applies values to controls by field name.
type FormWriter interface {
	Select(name string, idx int) bool
	SetText(name, value string) bool
}

// CollectAnswers reads the form for every question of the canonical set.
// Unselected choice groups yield null; text areas yield trimmed text.
func CollectAnswers(def *model.ExamDefinition, form FormReader) model.Answers {
	answers := make(model.Answers, len(def.Questions))
	for _, q := range def.Questions {
		name := q.FieldKey()
		switch q.Type {
		case model.QuestionTypeMCQ:
			if idx, ok := form.Selected(name); ok {
				answers[name] = model.ChoiceAnswer(idx)
			} else {
				answers[name] = model.NoAnswer()
			}
		case model.QuestionTypeShort:
			text, _ := form.Text(name)
			answers[name] = model.TextAnswer(strings.TrimSpace(text))
		}
	}
	return answers
}

// Grade scores answers against the definition. It has no side effects.
// Short answers are never auto-scored and are flagged for manual grading.
func Grade(def *model.ExamDefinition, answers model.Answers) model.Grade {
	g := model.Grade{Details: make([]model.GradeDetail, 0, len(def.Questions))}

	for _, q := range def.Questions {
		pts := q.PointsValue()
		g.Total += pts
		value := answers[q.FieldKey()]

		detail := model.GradeDetail{QuestionID: q.ID, Type: q.Type, Points: pts}
		switch q.Type {
		case model.QuestionTypeMCQ:
			correct, hasKey := q.CorrectIndex()
			chosen, answered := value.Index()
			ok := hasKey && answered && chosen == correct
			if ok {
				g.Got += pts
			}
			if hasKey {
				detail.CorrectIndex = &correct
			}
			if answered {
				detail.ChosenIndex = &chosen
			}
			detail.IsCorrect = &ok
		default:
			v := value
			detail.Manual = true
			detail.Value = &v
		}
		g.Details = append(g.Details, detail)
	}

	return g
}

// RestoreDraft overlays saved answers onto the form. Keys that do not belong
// to the current question set, null values, values of the wrong type and
// option indexes that do not exist are skipped. It returns how many fields
// were applied.
func RestoreDraft(def *model.ExamDefinition, draft *model.Draft, form FormWriter) int {
	if draft == nil || len(draft.Answers) == 0 {
		return 0
	}

	applied := 0
	for _, q := range def.Questions {
		name := q.FieldKey()
		v, ok := draft.Answers[name]
		if !ok || v.IsNull() {
			continue
		}
		switch q.Type {
		case model.QuestionTypeMCQ:
			if idx, ok := v.Index(); ok && form.Select(name, idx) {
				applied++
			}
		case model.QuestionTypeShort:
			if text, ok := v.Text(); ok && form.SetText(name, text) {
				applied++
			}
		}
	}
	return applied
}
