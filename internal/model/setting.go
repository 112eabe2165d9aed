package model

// Publish defaults used when an admin leaves the fields blank.
const (
	DefaultAccessCode    = "MID2025"
	DefaultMaxViolations = 3
)

// PublishSettings gates access to the published exam.
type PublishSettings struct {
	AccessCode    string `json:"accessCode"`
	MaxViolations int    `json:"maxViolations"`
	VoiceHint     string `json:"voiceHint,omitempty"`
}

// PublishRequest is the admin payload for publishing an exam. ExamJSON holds
// the definition text exactly as authored.
type PublishRequest struct {
	ExamJSON      string `json:"exam_json" binding:"required"`
	AccessCode    string `json:"access_code" binding:"omitempty,max=64"`
	MaxViolations *int   `json:"max_violations" binding:"omitempty,min=0,max=1000"`
	VoiceHint     string `json:"voice_hint" binding:"omitempty,max=500"`
}

// ExportedConfig is the downloadable configuration artifact.
type ExportedConfig struct {
	Settings *PublishSettings `json:"settings"`
	Exam     *ExamDefinition  `json:"exam"`
}
