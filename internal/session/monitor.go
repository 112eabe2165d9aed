package session

import (
	"fmt"
	"time"

	"github.com/stemsi/exstem-kiosk/internal/model"
)

// EventKind is an integrity-relevant client event.
type EventKind string

const (
	EventContextMenu      EventKind = "contextmenu"
	EventCopy             EventKind = "copy"
	EventCut              EventKind = "cut"
	EventPaste            EventKind = "paste"
	EventDragStart        EventKind = "dragstart"
	EventDrop             EventKind = "drop"
	EventVisibilityHidden EventKind = "visibility_hidden"
	EventBlur             EventKind = "blur"
	EventBeforeUnload     EventKind = "beforeunload"
	EventFullscreen       EventKind = "fullscreen"
)

var knownEvents = map[EventKind]struct{}{
	EventContextMenu: {}, EventCopy: {}, EventCut: {}, EventPaste: {}, EventDragStart: {},
	EventDrop: {}, EventVisibilityHidden: {}, EventBlur: {}, EventBeforeUnload: {}, EventFullscreen: {},
}

// ParseEventKind validates a client-supplied event name.
func ParseEventKind(s string) (EventKind, error) {
	k := EventKind(s)
	if _, ok := knownEvents[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEvent, s)
	}
	return k, nil
}

// TabWarning is spoken when the student leaves the exam tab.
const TabWarning = "Leaving the exam tab is not allowed. Repeated attempts will submit your exam automatically."

// Reaction tells the client how to respond to an event it reported.
type Reaction struct {
	Prevent      bool  `json:"prevent"`
	PromptUnload bool  `json:"prompt_unload"`
	Fullscreen   *bool `json:"fullscreen,omitempty"`
	Violation    bool  `json:"violation"`
	AutoSubmit   bool  `json:"auto_submit"`
	Ignored      bool  `json:"ignored"`
	Violations   int   `json:"violations"`
}

// Monitor counts integrity violations and keeps the session's append-only
// log. It only reacts while armed; the controller arms it on login and
// disarms it when the session finishes.
type Monitor struct {
	clock      Clock
	armed      bool
	max        int
	violations int
	tripped    bool
	fullscreen bool
	log        []model.IntegrityLogEntry

	onLog   func(model.IntegrityLogEntry)
	onSpeak func(string)
}

// NewMonitor creates a disarmed monitor.
func NewMonitor(clock Clock) *Monitor {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Monitor{clock: clock}
}

// Arm resets the count and log and starts reacting to events.
func (m *Monitor) Arm(maxViolations int) {
	m.max = maxViolations
	m.violations = 0
	m.tripped = false
	m.fullscreen = false
	m.log = nil
	m.armed = true
}

// Disarm stops all reactions. Events reported afterwards are ignored.
func (m *Monitor) Disarm() { m.armed = false }

func (m *Monitor) Armed() bool { return m.armed }

func (m *Monitor) Violations() int { return m.violations }

func (m *Monitor) MaxViolations() int { return m.max }

// Log returns a copy of the log.
func (m *Monitor) Log() []model.IntegrityLogEntry {
	out := make([]model.IntegrityLogEntry, len(m.log))
	copy(out, m.log)
	return out
}

// Append adds an entry to the log.
func (m *Monitor) Append(kind model.LogKind, msg string) model.IntegrityLogEntry {
	entry := model.IntegrityLogEntry{
		Timestamp: m.clock.Now().Format(time.RFC3339),
		Message:   msg,
		Kind:      kind,
	}
	m.log = append(m.log, entry)
	if m.onLog != nil {
		m.onLog(entry)
	}
	return entry
}

// Handle applies the effect of one event.
func (m *Monitor) Handle(kind EventKind) Reaction {
	if !m.armed {
		return Reaction{Ignored: true, Violations: m.violations}
	}

	var r Reaction
	switch kind {
	case EventContextMenu, EventCopy, EventCut, EventPaste, EventDragStart, EventDrop:
		r.Prevent = true
		m.Append(model.LogKindBlocked, "blocked: "+string(kind))

	case EventVisibilityHidden:
		m.violations++
		r.Violation = true
		m.Append(model.LogKindViolation, fmt.Sprintf("tab hidden (%d/%d)", m.violations, m.max))
		if m.onSpeak != nil {
			m.onSpeak(TabWarning)
		}
		r.AutoSubmit = m.checkThreshold()

	case EventBlur:
		m.violations++
		r.Violation = true
		m.Append(model.LogKindViolation, fmt.Sprintf("window lost focus (%d/%d)", m.violations, m.max))
		r.AutoSubmit = m.checkThreshold()

	case EventBeforeUnload:
		r.PromptUnload = true

	case EventFullscreen:
		m.fullscreen = !m.fullscreen
		state := m.fullscreen
		r.Fullscreen = &state
		if state {
			m.Append(model.LogKindInfo, "fullscreen entered")
		} else {
			m.Append(model.LogKindInfo, "fullscreen exited")
		}

	default:
		r.Ignored = true
	}

	r.Violations = m.violations
	return r
}

// checkThreshold reports the auto-submit trigger at most once per arming.
func (m *Monitor) checkThreshold() bool {
	if m.tripped || m.violations < m.max {
		return false
	}
	m.tripped = true
	m.Append(model.LogKindInfo, "violation threshold exceeded - auto-submitted")
	return true
}
