package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNew_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := Session(Component(New(&buf, "debug", "json"), "session"), "sid", "MID-1", "s-01")
	log.Info().Msg("Session started")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	for k, want := range map[string]string{
		"component":  "session",
		"session_id": "sid",
		"exam_id":    "MID-1",
		"user_id":    "s-01",
		"message":    "Session started",
		"level":      "info",
	} {
		if line[k] != want {
			t.Errorf("%s = %v, want %q", k, line[k], want)
		}
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", "json")
	log.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info written at warn level: %q", buf.String())
	}
	log.Warn().Msg("shown")
	if buf.Len() == 0 {
		t.Fatal("warn not written")
	}
}
