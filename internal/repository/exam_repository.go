package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-kiosk/internal/config"
	"github.com/stemsi/exstem-kiosk/internal/model"
	"github.com/stemsi/exstem-kiosk/internal/store"
)

// ErrCorruptSubmissions is returned when the stored submissions collection
// cannot be decoded. Appending is refused so history is never overwritten.
var ErrCorruptSubmissions = errors.New("stored submissions are unreadable")

// ExamRepository reads and writes the published exam, its settings, drafts
// and the submissions collection.
type ExamRepository struct {
	store store.Store
	log   zerolog.Logger
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(s store.Store, log zerolog.Logger) *ExamRepository {
	return &ExamRepository{
		store: s,
		log:   log.With().Str("component", "exam_repository").Logger(),
	}
}

// getJSON decodes the value at key into dst. It reports false when the key is
// absent or holds a value that does not decode.
func (r *ExamRepository) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := r.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("Ignoring undecodable stored value")
		return false, nil
	}
	return true, nil
}

// GetPublished returns the published definition, or nil when none exists.
func (r *ExamRepository) GetPublished(ctx context.Context) (*model.ExamDefinition, error) {
	var def model.ExamDefinition
	ok, err := r.getJSON(ctx, config.CacheKey.PublishedKey(), &def)
	if err != nil || !ok {
		return nil, err
	}
	return &def, nil
}

// GetSettings returns the publish settings, or nil when none exist.
func (r *ExamRepository) GetSettings(ctx context.Context) (*model.PublishSettings, error) {
	var s model.PublishSettings
	ok, err := r.getJSON(ctx, config.CacheKey.SettingsKey(), &s)
	if err != nil || !ok {
		return nil, err
	}
	return &s, nil
}

// Publish writes the definition and settings in one atomic step.
func (r *ExamRepository) Publish(ctx context.Context, def *model.ExamDefinition, settings *model.PublishSettings) error {
	defJSON, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encode definition: %w", err)
	}
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return r.store.SetMany(ctx, map[string][]byte{
		config.CacheKey.PublishedKey(): defJSON,
		config.CacheKey.SettingsKey():  settingsJSON,
	})
}

// ClearPublished removes the definition and settings. Submissions stay.
func (r *ExamRepository) ClearPublished(ctx context.Context) error {
	return r.store.Delete(ctx, config.CacheKey.PublishedKey(), config.CacheKey.SettingsKey())
}

// ListSubmissions returns every recorded submission, oldest first.
func (r *ExamRepository) ListSubmissions(ctx context.Context) ([]model.Submission, error) {
	raw, err := r.store.Get(ctx, config.CacheKey.SubmitsKey())
	if errors.Is(err, store.ErrNotFound) {
		return []model.Submission{}, nil
	}
	if err != nil {
		return nil, err
	}
	subs, err := decodeSubmissions(raw)
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// AppendSubmission adds one submission to the collection.
func (r *ExamRepository) AppendSubmission(ctx context.Context, sub *model.Submission) error {
	return r.store.Update(ctx, config.CacheKey.SubmitsKey(), func(cur []byte) ([]byte, error) {
		subs, err := decodeSubmissions(cur)
		if err != nil {
			return nil, err
		}
		return json.Marshal(append(subs, *sub))
	})
}

func decodeSubmissions(raw []byte) ([]model.Submission, error) {
	subs := []model.Submission{}
	if len(raw) == 0 || string(raw) == "null" {
		return subs, nil
	}
	if err := json.Unmarshal(raw, &subs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSubmissions, err)
	}
	return subs, nil
}

// GetDraft returns the draft for (examID, userID), or nil when none exists.
func (r *ExamRepository) GetDraft(ctx context.Context, examID, userID string) (*model.Draft, error) {
	var d model.Draft
	ok, err := r.getJSON(ctx, config.CacheKey.DraftKey(examID, userID), &d)
	if err != nil || !ok {
		return nil, err
	}
	return &d, nil
}

// SaveDraft overwrites the draft for (examID, userID).
func (r *ExamRepository) SaveDraft(ctx context.Context, examID, userID string, d *model.Draft) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	return r.store.Set(ctx, config.CacheKey.DraftKey(examID, userID), raw)
}
