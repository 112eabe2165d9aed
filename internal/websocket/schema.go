package websocket

import (
	"encoding/json"

	"github.com/stemsi/exstem-kiosk/internal/model"
	"github.com/stemsi/exstem-kiosk/internal/session"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer Action = "answer"
	ActionSave   Action = "save"
	ActionSubmit Action = "submit"
	ActionEvent  Action = "event"
	ActionPing   Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest writes one form field. A null value clears it.
type AnswerRequest struct {
	Action Action            `json:"action"`
	Field  string            `json:"field"`
	Value  model.AnswerValue `json:"value"`
}

// EventRequest reports a browser integrity event.
type EventRequest struct {
	Action Action `json:"action"`
	Kind   string `json:"kind"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError      Event = "error"
	EventSaved      Event = "saved"
	EventReaction   Event = "reaction"
	EventTick       Event = "tick"
	EventLog        Event = "log"
	EventSpeak      Event = "speak"
	EventFullscreen Event = "fullscreen"
	EventFinished   Event = "finished"
	EventPong       Event = "pong"
)

type SavedResponse struct {
	Event Event  `json:"event"`
	Field string `json:"field,omitempty"`
}

type ReactionResponse struct {
	Event    Event            `json:"event"`
	Reaction session.Reaction `json:"reaction"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

// PushResponse carries a controller event to the client.
type PushResponse struct {
	Event Event         `json:"event"`
	Data  session.Event `json:"data"`
}

// FromSessionEvent maps a controller event onto the wire. Event types share
// their names with the wire events.
func FromSessionEvent(e session.Event) PushResponse {
	return PushResponse{Event: Event(e.Type), Data: e}
}

// DecodeAction reads the action of a raw client message.
func DecodeAction(raw []byte) (Action, error) {
	var env RequestEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", err
	}
	return env.Action, nil
}
