package model

import (
	"encoding/json"
	"time"
)

// SessionUser is the self-reported identity supplied at login.
type SessionUser struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// StudentLoginRequest is the payload for starting an exam session.
type StudentLoginRequest struct {
	Name       string `json:"name" binding:"required,max=100"`
	ID         string `json:"id" binding:"required,max=64"`
	AccessCode string `json:"access_code" binding:"required,max=64"`
}

// Draft is the last saved snapshot of in-progress answers.
type Draft struct {
	Answers Answers   `json:"answers"`
	SavedAt time.Time `json:"savedAt"`
}

// UnmarshalJSON keeps every answer that decodes. An entry of the wrong type,
// e.g. left over from an older definition, is dropped on its own.
func (d *Draft) UnmarshalJSON(data []byte) error {
	var raw struct {
		Answers map[string]json.RawMessage `json:"answers"`
		SavedAt time.Time                  `json:"savedAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	d.SavedAt = raw.SavedAt
	d.Answers = make(Answers, len(raw.Answers))
	for key, msg := range raw.Answers {
		var v AnswerValue
		if err := json.Unmarshal(msg, &v); err != nil {
			continue
		}
		d.Answers[key] = v
	}
	return nil
}

// LogKind classifies integrity log entries.
type LogKind string

const (
	LogKindInfo      LogKind = "info"
	LogKindBlocked   LogKind = "blocked"
	LogKindViolation LogKind = "violation"
)

// IntegrityLogEntry is one line of the session's integrity log.
type IntegrityLogEntry struct {
	Timestamp string  `json:"timestamp"`
	Message   string  `json:"message"`
	Kind      LogKind `json:"kind,omitempty"`
}

// GradeDetail is the per-question grading outcome.
type GradeDetail struct {
	QuestionID   QuestionID   `json:"questionId"`
	Type         QuestionType `json:"type"`
	Points       float64      `json:"points"`
	CorrectIndex *int         `json:"correctIndex,omitempty"`
	ChosenIndex  *int         `json:"chosenIndex,omitempty"`
	IsCorrect    *bool        `json:"isCorrect,omitempty"`
	Manual       bool         `json:"manual,omitempty"`
	Value        *AnswerValue `json:"value,omitempty"`
}

// Grade is the automatic score of a submission.
type Grade struct {
	Total   float64       `json:"total"`
	Got     float64       `json:"got"`
	Details []GradeDetail `json:"details"`
}

// Submission is the immutable record of a finished session.
type Submission struct {
	ExamID       string              `json:"examId"`
	Title        string              `json:"title"`
	User         SessionUser         `json:"user"`
	SubmittedAt  time.Time           `json:"submittedAt"`
	Auto         bool                `json:"auto"`
	Violations   int                 `json:"violations"`
	IntegrityLog []IntegrityLogEntry `json:"integrityLog"`
	Answers      Answers             `json:"answers"`
	Grade        Grade               `json:"grade"`
}
