package model

// AdminLoginRequest is the payload for the admin console login.
type AdminLoginRequest struct {
	Password string `json:"password" binding:"required,max=128"`
}

// AnswerRequest writes one form field over HTTP. A null value clears it.
type AnswerRequest struct {
	Value AnswerValue `json:"value"`
}

// IntegrityEventRequest reports a browser integrity event over HTTP.
type IntegrityEventRequest struct {
	Kind string `json:"kind" binding:"required,max=32"`
}
