package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-kiosk/internal/config"
	"github.com/stemsi/exstem-kiosk/internal/model"
	"github.com/stemsi/exstem-kiosk/internal/repository"
	"github.com/stemsi/exstem-kiosk/internal/response"
	"github.com/stemsi/exstem-kiosk/internal/validator"
)

// Publisher errors.
var (
	ErrInvalidDefinition = errors.New("invalid exam definition")
	ErrNoSubmissions     = errors.New("no submissions recorded")
)

// DefinitionError carries per-field problems of a rejected publish. It
// matches ErrInvalidDefinition with errors.Is.
type DefinitionError struct {
	Fields map[string]string
}

func (e *DefinitionError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for k, v := range e.Fields {
		parts = append(parts, k+": "+v)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidDefinition, strings.Join(parts, "; "))
}

func (e *DefinitionError) Is(target error) bool { return target == ErrInvalidDefinition }

// CSVHeader is the first row of the submissions export.
var CSVHeader = []string{"examId", "title", "name", "id", "submittedAt", "auto", "violations", "score", "total"}

// PublisherService publishes exams and exports recorded data.
type PublisherService struct {
	repo *repository.ExamRepository
	cfg  *config.Config
	log  zerolog.Logger
}

// NewPublisherService creates a new PublisherService.
func NewPublisherService(repo *repository.ExamRepository, cfg *config.Config, log zerolog.Logger) *PublisherService {
	return &PublisherService{
		repo: repo,
		cfg:  cfg,
		log:  log.With().Str("component", "publisher_service").Logger(),
	}
}

// Publish parses examJSON, applies setting defaults and writes the exam and
// its settings together. Nothing is written when any check fails.
func (s *PublisherService) Publish(ctx context.Context, examJSON, accessCode string, maxViolations *int, voiceHint string) (*model.ExportedConfig, error) {
	def, err := ParseDefinition([]byte(examJSON))
	if err != nil {
		return nil, err
	}

	settings := &model.PublishSettings{
		AccessCode:    strings.TrimSpace(accessCode),
		MaxViolations: s.cfg.DefaultMaxViolations,
		VoiceHint:     strings.TrimSpace(voiceHint),
	}
	if settings.AccessCode == "" {
		settings.AccessCode = s.cfg.DefaultAccessCode
	}
	if maxViolations != nil {
		if *maxViolations < 0 {
			return nil, &DefinitionError{Fields: map[string]string{"max_violations": "must be zero or greater"}}
		}
		settings.MaxViolations = *maxViolations
	}

	if err := s.repo.Publish(ctx, def, settings); err != nil {
		return nil, fmt.Errorf("publish exam: %w", err)
	}

	s.log.Info().
		Str("exam_id", def.Meta.ExamID).
		Int("questions", len(def.Questions)).
		Int("max_violations", settings.MaxViolations).
		Msg("Exam published")
	return &model.ExportedConfig{Settings: settings, Exam: def}, nil
}

// ParseDefinition decodes and validates an exam definition.
func ParseDefinition(raw []byte) (*model.ExamDefinition, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &DefinitionError{Fields: map[string]string{"exam_json": "is empty"}}
	}
	var def model.ExamDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, &DefinitionError{Fields: map[string]string{"exam_json": err.Error()}}
	}
	if fields := validator.Struct(&def); fields != nil {
		return nil, &DefinitionError{Fields: fields}
	}
	if fields := checkQuestions(def.Questions); len(fields) > 0 {
		return nil, &DefinitionError{Fields: fields}
	}
	return &def, nil
}

// checkQuestions covers the rules struct tags cannot express.
func checkQuestions(qs []model.Question) map[string]string {
	fields := make(map[string]string)
	seen := make(map[model.QuestionID]int, len(qs))
	for i, q := range qs {
		path := fmt.Sprintf("questions[%d]", i)
		if first, dup := seen[q.ID]; dup {
			fields[path+".id"] = fmt.Sprintf("duplicates questions[%d].id", first)
		}
		seen[q.ID] = i

		if q.Type != model.QuestionTypeMCQ {
			continue
		}
		if len(q.Options) == 0 {
			fields[path+".options"] = "mcq questions need at least one option"
		}
		if q.Answer == nil {
			fields[path+".answer"] = "mcq questions need an answer index"
		} else if *q.Answer < 0 || *q.Answer >= len(q.Options) {
			fields[path+".answer"] = fmt.Sprintf("must be between 0 and %d", len(q.Options)-1)
		}
	}
	return fields
}

// ClearPublished unpublishes the exam. Submissions are kept.
func (s *PublisherService) ClearPublished(ctx context.Context) error {
	if err := s.repo.ClearPublished(ctx); err != nil {
		return fmt.Errorf("clear published: %w", err)
	}
	s.log.Info().Msg("Published exam cleared")
	return nil
}

// Current returns the published exam and its settings. Missing parts are nil.
func (s *PublisherService) Current(ctx context.Context) (*model.ExportedConfig, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	def, err := s.repo.GetPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("load exam: %w", err)
	}
	return &model.ExportedConfig{Settings: settings, Exam: def}, nil
}

// ExportConfig returns {settings, exam} as indented JSON. Missing parts are null.
func (s *PublisherService) ExportConfig(ctx context.Context) ([]byte, error) {
	cfg, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(cfg, "", "  ")
}

// ListSubmissions returns every recorded submission.
func (s *PublisherService) ListSubmissions(ctx context.Context) ([]model.Submission, error) {
	subs, err := s.repo.ListSubmissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return subs, nil
}

// ListSubmissionsPage returns one page of submissions, newest first.
func (s *PublisherService) ListSubmissionsPage(ctx context.Context, page, perPage int) ([]model.Submission, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	subs, err := s.ListSubmissions(ctx)
	if err != nil {
		return nil, nil, err
	}

	pagination := response.NewPagination(page, perPage, len(subs))
	out := make([]model.Submission, 0, perPage)
	for i := len(subs) - 1 - pagination.Offset(); i >= 0 && len(out) < perPage; i-- {
		out = append(out, subs[i])
	}
	return out, pagination, nil
}

// ExportSubmissionsCSV flattens one row per submission. Every cell is quoted
// and embedded quotes are doubled.
func (s *PublisherService) ExportSubmissionsCSV(ctx context.Context) ([]byte, error) {
	subs, err := s.ListSubmissions(ctx)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, ErrNoSubmissions
	}

	var buf bytes.Buffer
	writeCSVRow(&buf, CSVHeader)
	for _, sub := range subs {
		buf.WriteByte('\n')
		writeCSVRow(&buf, []string{
			sub.ExamID,
			sub.Title,
			sub.User.Name,
			sub.User.ID,
			sub.SubmittedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			strconv.FormatBool(sub.Auto),
			strconv.Itoa(sub.Violations),
			formatNumber(sub.Grade.Got),
			formatNumber(sub.Grade.Total),
		})
	}
	return buf.Bytes(), nil
}

func writeCSVRow(buf *bytes.Buffer, cells []string) {
	for i, cell := range cells {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(cell, `"`, `""`))
		buf.WriteByte('"')
	}
}

// formatNumber prints 2 rather than 2.000000.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
