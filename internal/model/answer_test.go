package model

import (
	"encoding/json"
	"testing"
)

func TestAnswerValue_JSON(t *testing.T) {
	tests := []struct {
		in      string
		want    AnswerValue
		wantErr bool
	}{
		{`null`, NoAnswer(), false},
		{`2`, ChoiceAnswer(2), false},
		{`2.0`, ChoiceAnswer(2), false},
		{`"2"`, TextAnswer("2"), false},
		{`""`, TextAnswer(""), false},
		{`2.5`, AnswerValue{}, true},
		{`true`, AnswerValue{}, true},
		{`[1]`, AnswerValue{}, true},
		{`{"a":1}`, AnswerValue{}, true},
	}
	for _, tt := range tests {
		var v AnswerValue
		err := json.Unmarshal([]byte(tt.in), &v)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Unmarshal(%s) accepted", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("Unmarshal(%s): %v", tt.in, err)
			continue
		}
		if !v.Equal(tt.want) {
			t.Errorf("Unmarshal(%s) = %v, want %v", tt.in, v, tt.want)
		}
	}
}

func TestAnswerValue_TypeStrictEquality(t *testing.T) {
	if ChoiceAnswer(1).Equal(TextAnswer("1")) {
		t.Fatal("index 1 equals text \"1\"")
	}
	if NoAnswer().Equal(ChoiceAnswer(0)) {
		t.Fatal("null equals index 0")
	}
	if !NoAnswer().Equal(AnswerValue{}) {
		t.Fatal("null values differ")
	}
}

func TestAnswers_MarshalShape(t *testing.T) {
	out, err := json.Marshal(Answers{"q_1": ChoiceAnswer(1), "q_2": TextAnswer("hi"), "q_3": NoAnswer()})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"q_1":1,"q_2":"hi","q_3":null}`
	if string(out) != want {
		t.Fatalf("Marshal = %s, want %s", out, want)
	}
}

func TestDraft_SkipsUndecodableAnswers(t *testing.T) {
	var d Draft
	in := `{"answers":{"q_1":1,"q_2":"kept","q_old":true,"q_half":1.5},"savedAt":"2025-05-12T08:00:05Z"}`
	if err := json.Unmarshal([]byte(in), &d); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	want := Answers{"q_1": ChoiceAnswer(1), "q_2": TextAnswer("kept")}
	if !d.Answers.Equal(want) {
		t.Fatalf("answers = %v, want %v", d.Answers, want)
	}
	if d.SavedAt.IsZero() {
		t.Fatal("savedAt lost")
	}
}
