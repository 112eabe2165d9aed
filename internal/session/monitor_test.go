package session

import (
	"errors"
	"testing"

	"github.com/stemsi/exstem-kiosk/internal/model"
)

func countViolationEntries(log []model.IntegrityLogEntry) int {
	n := 0
	for _, e := range log {
		if e.Kind == model.LogKindViolation {
			n++
		}
	}
	return n
}

func TestParseEventKind(t *testing.T) {
	if k, err := ParseEventKind("blur"); err != nil || k != EventBlur {
		t.Fatalf("ParseEventKind(blur) = (%q, %v)", k, err)
	}
	if _, err := ParseEventKind("keydown"); !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("ParseEventKind(keydown) err = %v, want ErrUnknownEvent", err)
	}
}

func TestMonitor_DisarmedIgnoresEverything(t *testing.T) {
	m := NewMonitor(newFakeClock())
	r := m.Handle(EventBlur)
	if !r.Ignored || m.Violations() != 0 || len(m.Log()) != 0 {
		t.Fatalf("disarmed monitor reacted: %+v, violations=%d", r, m.Violations())
	}

	m.Arm(3)
	m.Handle(EventBlur)
	m.Disarm()
	m.Handle(EventVisibilityHidden)
	if m.Violations() != 1 {
		t.Fatalf("violations = %d after disarm, want 1", m.Violations())
	}
}

func TestMonitor_BlockedEventsDoNotCount(t *testing.T) {
	m := NewMonitor(newFakeClock())
	m.Arm(1)

	for _, k := range []EventKind{EventContextMenu, EventCopy, EventCut, EventPaste, EventDragStart, EventDrop} {
		r := m.Handle(k)
		if !r.Prevent || r.Violation || r.AutoSubmit {
			t.Errorf("%s: reaction %+v", k, r)
		}
	}
	if r := m.Handle(EventBeforeUnload); !r.PromptUnload || r.Violation {
		t.Errorf("beforeunload: reaction %+v", r)
	}
	if m.Violations() != 0 {
		t.Fatalf("violations = %d, want 0", m.Violations())
	}
	log := m.Log()
	if len(log) != 6 || log[1].Message != "blocked: copy" || log[1].Kind != model.LogKindBlocked {
		t.Fatalf("unexpected log: %+v", log)
	}
}

func TestMonitor_ThresholdFiresOnce(t *testing.T) {
	var spoken []string
	m := NewMonitor(newFakeClock())
	m.onSpeak = func(s string) { spoken = append(spoken, s) }
	m.Arm(2)

	if r := m.Handle(EventBlur); r.AutoSubmit || r.Violations != 1 {
		t.Fatalf("first blur: %+v", r)
	}
	r := m.Handle(EventVisibilityHidden)
	if !r.AutoSubmit || r.Violations != 2 {
		t.Fatalf("second violation: %+v", r)
	}
	if r := m.Handle(EventBlur); r.AutoSubmit {
		t.Fatal("threshold fired twice")
	}
	if len(spoken) != 1 || spoken[0] != TabWarning {
		t.Fatalf("spoken = %v", spoken)
	}

	log := m.Log()
	if got := countViolationEntries(log); got != m.Violations() {
		t.Fatalf("violation entries = %d, violations = %d", got, m.Violations())
	}
	if log[0].Message != "window lost focus (1/2)" || log[1].Message != "tab hidden (2/2)" {
		t.Fatalf("unexpected messages: %+v", log)
	}
	if log[2].Message != "violation threshold exceeded - auto-submitted" {
		t.Fatalf("threshold entry = %q", log[2].Message)
	}
}

func TestMonitor_FullscreenToggles(t *testing.T) {
	m := NewMonitor(newFakeClock())
	m.Arm(3)

	r1 := m.Handle(EventFullscreen)
	r2 := m.Handle(EventFullscreen)
	if r1.Fullscreen == nil || !*r1.Fullscreen || r2.Fullscreen == nil || *r2.Fullscreen {
		t.Fatalf("toggle states: %v, %v", r1.Fullscreen, r2.Fullscreen)
	}
	log := m.Log()
	if log[0].Message != "fullscreen entered" || log[1].Message != "fullscreen exited" {
		t.Fatalf("unexpected log: %+v", log)
	}
	if m.Violations() != 0 {
		t.Fatal("fullscreen counted as a violation")
	}
}

func TestMonitor_ArmResets(t *testing.T) {
	m := NewMonitor(newFakeClock())
	m.Arm(1)
	m.Handle(EventBlur)

	m.Arm(1)
	if m.Violations() != 0 || len(m.Log()) != 0 {
		t.Fatal("arm did not reset state")
	}
	if r := m.Handle(EventBlur); !r.AutoSubmit {
		t.Fatal("threshold did not fire after re-arming")
	}
}
