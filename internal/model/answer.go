package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// AnswerValue is the value of one form field: nothing, a chosen option index
// (mcq) or free text (short). Its JSON form is null, a number or a string, and
// the distinction is kept so grading stays type-strict.
type AnswerValue struct {
	index *int
	text  *string
}

// NoAnswer is an unanswered field.
func NoAnswer() AnswerValue { return AnswerValue{} }

// ChoiceAnswer is a selected option index.
func ChoiceAnswer(i int) AnswerValue { return AnswerValue{index: &i} }

// TextAnswer is a free-text value.
func TextAnswer(s string) AnswerValue { return AnswerValue{text: &s} }

// Index returns the chosen option index, if the value is a number.
func (v AnswerValue) Index() (int, bool) {
	if v.index == nil {
		return 0, false
	}
	return *v.index, true
}

// Text returns the text, if the value is a string.
func (v AnswerValue) Text() (string, bool) {
	if v.text == nil {
		return "", false
	}
	return *v.text, true
}

// IsNull reports whether the field holds no value.
func (v AnswerValue) IsNull() bool { return v.index == nil && v.text == nil }

// Equal compares two values including their JSON type.
func (v AnswerValue) Equal(o AnswerValue) bool {
	switch {
	case v.IsNull() || o.IsNull():
		return v.IsNull() && o.IsNull()
	case v.index != nil && o.index != nil:
		return *v.index == *o.index
	case v.text != nil && o.text != nil:
		return *v.text == *o.text
	}
	return false
}

func (v AnswerValue) String() string {
	switch {
	case v.index != nil:
		return fmt.Sprintf("%d", *v.index)
	case v.text != nil:
		return fmt.Sprintf("%q", *v.text)
	}
	return "null"
}

func (v AnswerValue) MarshalJSON() ([]byte, error) {
	switch {
	case v.index != nil:
		return json.Marshal(*v.index)
	case v.text != nil:
		return json.Marshal(*v.text)
	}
	return []byte("null"), nil
}

func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*v = AnswerValue{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v.text = &s
		return nil
	case '{', '[', 't', 'f':
		return errors.New("answer must be null, a number or a string")
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	if f != math.Trunc(f) {
		return fmt.Errorf("option index must be an integer, got %v", f)
	}
	i := int(f)
	v.index = &i
	return nil
}

// Answers maps form field keys to their values.
type Answers map[string]AnswerValue

// Equal reports whether both mappings hold the same keys and values.
func (a Answers) Equal(b Answers) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		w, ok := b[k]
		if !ok || !v.Equal(w) {
			return false
		}
	}
	return true
}
