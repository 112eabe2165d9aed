// Package form is the server-side mirror of the rendered exam form. It holds
// one control per question, keyed by field name, and is the only view of the
// student's current input that the session core reads from or writes to.
package form

import (
	"fmt"

	"github.com/stemsi/exstem-kiosk/internal/model"
)

// Kind is the control type of a field.
type Kind string

const (
	KindChoice Kind = "choice" // single-select group
	KindText   Kind = "text"   // free-text area
)

// Control is the render view of one question. It never carries the answer key.
type Control struct {
	Number  int              `json:"number"`
	Name    string           `json:"name"`
	Kind    Kind             `json:"kind"`
	Text    string           `json:"text"`
	Points  float64          `json:"points"`
	Options []string         `json:"options,omitempty"`
	ID      model.QuestionID `json:"question_id"`
}

type field struct {
	kind     Kind
	options  int
	selected int // -1 when nothing is checked
	text     string
}

// Form holds the current state of every control.
type Form struct {
	controls []Control
	fields   map[string]*field
}

// New renders the given questions, in the given order, into empty controls.
func New(questions []model.Question) *Form {
	f := &Form{
		controls: make([]Control, 0, len(questions)),
		fields:   make(map[string]*field, len(questions)),
	}
	for i, q := range questions {
		name := q.FieldKey()
		ctl := Control{
			Number: i + 1,
			Name:   name,
			Text:   q.Text,
			Points: q.PointsValue(),
			ID:     q.ID,
		}
		switch q.Type {
		case model.QuestionTypeMCQ:
			ctl.Kind = KindChoice
			ctl.Options = append([]string(nil), q.Options...)
			f.fields[name] = &field{kind: KindChoice, options: len(q.Options), selected: -1}
		default:
			ctl.Kind = KindText
			f.fields[name] = &field{kind: KindText}
		}
		f.controls = append(f.controls, ctl)
	}
	return f
}

// Controls returns the rendered controls in display order.
func (f *Form) Controls() []Control {
	out := make([]Control, len(f.controls))
	copy(out, f.controls)
	return out
}

// Has reports whether a control with the given name exists.
func (f *Form) Has(name string) bool {
	_, ok := f.fields[name]
	return ok
}

// KindOf returns the control type of a field.
func (f *Form) KindOf(name string) (Kind, bool) {
	fd, ok := f.fields[name]
	if !ok {
		return "", false
	}
	return fd.kind, true
}

// Selected returns the checked option index of a choice group.
func (f *Form) Selected(name string) (int, bool) {
	fd, ok := f.fields[name]
	if !ok || fd.kind != KindChoice || fd.selected < 0 {
		return 0, false
	}
	return fd.selected, true
}

// Text returns the raw value of a text area.
func (f *Form) Text(name string) (string, bool) {
	fd, ok := f.fields[name]
	if !ok || fd.kind != KindText {
		return "", false
	}
	return fd.text, true
}

// Select checks option idx of a choice group. It reports false when the group
// or the option does not exist.
func (f *Form) Select(name string, idx int) bool {
	fd, ok := f.fields[name]
	if !ok || fd.kind != KindChoice || idx < 0 || idx >= fd.options {
		return false
	}
	fd.selected = idx
	return true
}

// SetText sets the value of a text area.
func (f *Form) SetText(name, value string) bool {
	fd, ok := f.fields[name]
	if !ok || fd.kind != KindText {
		return false
	}
	fd.text = value
	return true
}

// Clear resets a field to its empty state.
func (f *Form) Clear(name string) bool {
	fd, ok := f.fields[name]
	if !ok {
		return false
	}
	fd.selected = -1
	fd.text = ""
	return true
}

// Apply writes an answer value into the named field, the way a client edit
// would. Null clears the field.
func (f *Form) Apply(name string, v model.AnswerValue) error {
	kind, ok := f.KindOf(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	if v.IsNull() {
		f.Clear(name)
		return nil
	}
	switch kind {
	case KindChoice:
		idx, ok := v.Index()
		if !ok || !f.Select(name, idx) {
			return fmt.Errorf("%w: %s expects an option index", ErrInvalidValue, name)
		}
	case KindText:
		s, ok := v.Text()
		if !ok {
			return fmt.Errorf("%w: %s expects text", ErrInvalidValue, name)
		}
		f.SetText(name, s)
	}
	return nil
}
