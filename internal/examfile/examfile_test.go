package examfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stemsi/exstem-kiosk/internal/service"
	"github.com/stemsi/exstem-kiosk/internal/validator"
)

const sampleYAML = `
meta:
  examId: MID-1
  title: Midterm
  durationSec: 600
questions:
  - id: 1
    type: mcq
    text: Pick B
    points: 2
    options: [A, B]
    answer: 1
  - id: q2
    type: short
    text: Explain
`

func TestFromYAML_ParsesAsDefinition(t *testing.T) {
	validator.Setup()

	raw, err := FromYAML(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	def, err := service.ParseDefinition(raw)
	if err != nil {
		t.Fatalf("ParseDefinition(%s): %v", raw, err)
	}
	if def.Meta.ExamID != "MID-1" || len(def.Questions) != 2 {
		t.Fatalf("def = %+v", def)
	}
	if def.Questions[0].ID != "1" || def.Questions[1].ID != "q2" {
		t.Fatalf("ids = %q, %q", def.Questions[0].ID, def.Questions[1].ID)
	}
}

func TestFromYAML_Empty(t *testing.T) {
	if _, err := FromYAML(strings.NewReader("")); err == nil {
		t.Fatal("empty document accepted")
	}
}

func TestLoad_ByExtension(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "exam.json")
	if err := os.WriteFile(jsonPath, []byte(`{"meta":{}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	raw, err := Load(jsonPath)
	if err != nil || string(raw) != `{"meta":{}}` {
		t.Fatalf("json = %s, %v", raw, err)
	}

	yamlPath := filepath.Join(dir, "exam.yml")
	if err := os.WriteFile(yamlPath, []byte("meta:\n  examId: X\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	raw, err = Load(yamlPath)
	if err != nil || string(raw) != `{"meta":{"examId":"X"}}` {
		t.Fatalf("yaml = %s, %v", raw, err)
	}

	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("missing file accepted")
	}
}
