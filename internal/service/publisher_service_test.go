package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-kiosk/internal/config"
	"github.com/stemsi/exstem-kiosk/internal/model"
	"github.com/stemsi/exstem-kiosk/internal/repository"
	"github.com/stemsi/exstem-kiosk/internal/store"
	"github.com/stemsi/exstem-kiosk/internal/validator"
)

const sampleExamJSON = `{
  "meta": {"examId": "MID-1", "title": "Midterm", "durationSec": 600, "shuffle": true},
  "questions": [
    {"id": 1, "type": "mcq", "text": "Pick B", "points": 2, "options": ["A", "B"], "answer": 1},
    {"id": 2, "type": "short", "text": "Explain", "points": 3}
  ]
}`

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:            "test-secret",
		JWTExpiry:            time.Hour,
		BcryptCost:           4,
		DefaultAccessCode:    "MID2025",
		DefaultMaxViolations: 3,
	}
}

func newTestPublisher() (*PublisherService, *repository.ExamRepository, *store.Memory) {
	validator.Setup()
	s := store.NewMemory()
	repo := repository.NewExamRepository(s, zerolog.Nop())
	return NewPublisherService(repo, testConfig(), zerolog.Nop()), repo, s
}

func TestPublish_AppliesDefaults(t *testing.T) {
	ctx := context.Background()
	pub, repo, _ := newTestPublisher()

	out, err := pub.Publish(ctx, sampleExamJSON, "   ", nil, "")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if out.Settings.AccessCode != "MID2025" || out.Settings.MaxViolations != 3 {
		t.Fatalf("settings = %+v", out.Settings)
	}

	zero := 0
	if _, err := pub.Publish(ctx, sampleExamJSON, " CODE ", &zero, "hint"); err != nil {
		t.Fatal(err)
	}
	settings, _ := repo.GetSettings(ctx)
	if settings.AccessCode != "CODE" || settings.MaxViolations != 0 || settings.VoiceHint != "hint" {
		t.Fatalf("stored settings = %+v", settings)
	}
}

func TestPublish_RejectsWithoutWriting(t *testing.T) {
	neg := -1
	tests := []struct {
		name  string
		json  string
		max   *int
		field string
	}{
		{"empty", "  ", nil, "exam_json"},
		{"malformed", `{"meta":`, nil, "exam_json"},
		{"no questions", `{"meta":{"examId":"E","durationSec":60},"questions":[]}`, nil, "questions"},
		{"zero duration", `{"meta":{"examId":"E","durationSec":0},"questions":[{"id":1,"type":"short"}]}`, nil, "meta.durationSec"},
		{"unknown type", `{"meta":{"examId":"E","durationSec":60},"questions":[{"id":1,"type":"essay"}]}`, nil, "questions[0].type"},
		{"duplicate id", `{"meta":{"examId":"E","durationSec":60},"questions":[{"id":1,"type":"short"},{"id":"1","type":"short"}]}`, nil, "questions[1].id"},
		{"answer out of range", `{"meta":{"examId":"E","durationSec":60},"questions":[{"id":1,"type":"mcq","options":["a"],"answer":1}]}`, nil, "questions[0].answer"},
		{"negative max", sampleExamJSON, &neg, "max_violations"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			pub, _, s := newTestPublisher()

			_, err := pub.Publish(ctx, tt.json, "", tt.max, "")
			if !errors.Is(err, ErrInvalidDefinition) {
				t.Fatalf("err = %v, want ErrInvalidDefinition", err)
			}
			var de *DefinitionError
			if !errors.As(err, &de) {
				t.Fatalf("err is not a DefinitionError: %T", err)
			}
			if _, ok := de.Fields[tt.field]; !ok {
				t.Fatalf("fields = %v, want key %q", de.Fields, tt.field)
			}
			for _, k := range []string{"published", "settings"} {
				if _, err := s.Get(ctx, k); !errors.Is(err, store.ErrNotFound) {
					t.Fatalf("%s written by rejected publish", k)
				}
			}
		})
	}
}

func TestClearPublished_KeepsSubmissions(t *testing.T) {
	ctx := context.Background()
	pub, repo, _ := newTestPublisher()
	if _, err := pub.Publish(ctx, sampleExamJSON, "", nil, ""); err != nil {
		t.Fatal(err)
	}
	_ = repo.AppendSubmission(ctx, &model.Submission{ExamID: "MID-1"})

	if err := pub.ClearPublished(ctx); err != nil {
		t.Fatal(err)
	}
	if def, _ := repo.GetPublished(ctx); def != nil {
		t.Fatal("exam still published")
	}
	subs, _ := pub.ListSubmissions(ctx)
	if len(subs) != 1 {
		t.Fatalf("submissions = %d, want 1", len(subs))
	}
}

func TestExportConfig(t *testing.T) {
	ctx := context.Background()
	pub, _, _ := newTestPublisher()

	empty, err := pub.ExportConfig(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(empty), `"settings": null`) {
		t.Fatalf("empty export = %s", empty)
	}

	if _, err := pub.Publish(ctx, sampleExamJSON, "ABC", nil, ""); err != nil {
		t.Fatal(err)
	}
	raw, err := pub.ExportConfig(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var cfg model.ExportedConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Settings.AccessCode != "ABC" || cfg.Exam.Meta.ExamID != "MID-1" || len(cfg.Exam.Questions) != 2 {
		t.Fatalf("export = %+v", cfg)
	}
	if !strings.Contains(string(raw), `"id": 1`) {
		t.Fatalf("numeric ids not preserved: %s", raw)
	}
}

func TestExportSubmissionsCSV(t *testing.T) {
	ctx := context.Background()
	pub, repo, _ := newTestPublisher()

	if _, err := pub.ExportSubmissionsCSV(ctx); !errors.Is(err, ErrNoSubmissions) {
		t.Fatalf("err = %v, want ErrNoSubmissions", err)
	}

	_ = repo.AppendSubmission(ctx, &model.Submission{
		ExamID:      "MID-1",
		Title:       `The "Big" Test`,
		User:        model.SessionUser{Name: "Ana, B", ID: "s-01"},
		SubmittedAt: time.Date(2025, 5, 12, 8, 30, 0, 0, time.UTC),
		Auto:        true,
		Violations:  2,
		Grade:       model.Grade{Got: 2, Total: 5.5},
	})

	raw, err := pub.ExportSubmissionsCSV(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := `"examId","title","name","id","submittedAt","auto","violations","score","total"` + "\n" +
		`"MID-1","The ""Big"" Test","Ana, B","s-01","2025-05-12T08:30:00.000Z","true","2","2","5.5"`
	if string(raw) != want {
		t.Fatalf("csv =\n%s\nwant\n%s", raw, want)
	}
}

func TestListSubmissionsPage_NewestFirst(t *testing.T) {
	ctx := context.Background()
	pub, repo, _ := newTestPublisher()
	for _, id := range []string{"a", "b", "c"} {
		_ = repo.AppendSubmission(ctx, &model.Submission{ExamID: "MID-1", User: model.SessionUser{ID: id}})
	}

	page, pg, err := pub.ListSubmissionsPage(ctx, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].User.ID != "c" || page[1].User.ID != "b" {
		t.Fatalf("page 1 = %+v", page)
	}
	if pg.TotalItems != 3 || pg.TotalPages != 2 {
		t.Fatalf("pagination = %+v", pg)
	}

	page, _, _ = pub.ListSubmissionsPage(ctx, 2, 2)
	if len(page) != 1 || page[0].User.ID != "a" {
		t.Fatalf("page 2 = %+v", page)
	}
	page, _, _ = pub.ListSubmissionsPage(ctx, 3, 2)
	if len(page) != 0 {
		t.Fatalf("page 3 = %+v", page)
	}
}
