package session

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-kiosk/internal/form"
	"github.com/stemsi/exstem-kiosk/internal/grading"
	"github.com/stemsi/exstem-kiosk/internal/model"
)

// Status is the controller state.
type Status string

const (
	StatusNotLoggedIn Status = "not_logged_in"
	StatusInSession   Status = "in_session"
	StatusFinished    Status = "finished"
)

// StartAnnouncement is spoken when a session starts and a voice hint is configured.
const StartAnnouncement = "The exam is starting. Integrity violations will submit your exam automatically."

// Repository is the persistence the controller needs. Getters return nil
// without an error when the key is absent.
type Repository interface {
	GetSettings(ctx context.Context) (*model.PublishSettings, error)
	GetPublished(ctx context.Context) (*model.ExamDefinition, error)
	GetDraft(ctx context.Context, examID, userID string) (*model.Draft, error)
	SaveDraft(ctx context.Context, examID, userID string, draft *model.Draft) error
	AppendSubmission(ctx context.Context, sub *model.Submission) error
}

// Speaker is the voice-hint collaborator. Calls are best-effort.
type Speaker interface {
	Speak(text string)
}

// EventType names an observer notification.
type EventType string

const (
	EventTypeTick       EventType = "tick"
	EventTypeLog        EventType = "log"
	EventTypeSpeak      EventType = "speak"
	EventTypeFullscreen EventType = "fullscreen"
	EventTypeFinished   EventType = "finished"
)

// Event is pushed to observers as the session progresses.
type Event struct {
	Type       EventType                `json:"type"`
	Remaining  int64                    `json:"remaining_sec,omitempty"`
	Clock      string                   `json:"clock,omitempty"`
	Log        *model.IntegrityLogEntry `json:"log,omitempty"`
	Violations int                      `json:"violations,omitempty"`
	Text       string                   `json:"text,omitempty"`
	Fullscreen *bool                    `json:"fullscreen,omitempty"`
	Submission *model.Submission        `json:"submission,omitempty"`
	Pending    bool                     `json:"persist_pending,omitempty"`
}

// Observer receives session events. Notify is called while the controller
// holds its lock and must not block or call back into the controller.
type Observer interface {
	Notify(Event)
}

// Options configures a Controller. Zero values fall back to the system
// clock, a random source seeded by the runtime, no voice and a no-op logger.
type Options struct {
	Clock   Clock
	Rand    *rand.Rand
	Speaker Speaker
	Logger  *zerolog.Logger
}

// Snapshot is a read-only view of the session.
type Snapshot struct {
	Status         Status                    `json:"status"`
	User           *model.SessionUser        `json:"user,omitempty"`
	Meta           *model.ExamMeta           `json:"meta,omitempty"`
	Remaining      int64                     `json:"remaining_sec"`
	Clock          string                    `json:"clock"`
	Violations     int                       `json:"violations"`
	MaxViolations  int                       `json:"max_violations"`
	IntegrityLog   []model.IntegrityLogEntry `json:"integrity_log"`
	Submission     *model.Submission         `json:"submission,omitempty"`
	PersistPending bool                      `json:"persist_pending"`
}

// Paper is what the student sees: exam meta, controls in display order and
// the answers currently held by the form.
type Paper struct {
	Meta     model.ExamMeta `json:"meta"`
	Controls []form.Control `json:"controls"`
	Answers  model.Answers  `json:"answers"`
}

// Controller is the session state machine. Every operation takes the same
// mutex, so ticks, autosaves, integrity events and client actions never
// interleave inside an operation.
type Controller struct {
	mu sync.Mutex

	repo      Repository
	clock     Clock
	rng       *rand.Rand
	speaker   Speaker
	observers []Observer
	log       zerolog.Logger

	status     Status
	user       model.SessionUser
	settings   model.PublishSettings
	exam       *model.Exam
	form       *form.Form
	timer      Timer
	monitor    *Monitor
	submission *model.Submission
	pending    bool

	done     chan struct{}
	doneOnce sync.Once
}

// NewController creates a controller in the NotLoggedIn state.
func NewController(repo Repository, opts Options, observers ...Observer) *Controller {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	c := &Controller{
		repo:      repo,
		clock:     clock,
		rng:       opts.Rand,
		speaker:   opts.Speaker,
		observers: observers,
		log:       logger,
		status:    StatusNotLoggedIn,
		monitor:   NewMonitor(clock),
		done:      make(chan struct{}),
	}
	c.monitor.onLog = func(e model.IntegrityLogEntry) {
		c.notify(Event{Type: EventTypeLog, Log: &e, Violations: c.monitor.Violations()})
	}
	c.monitor.onSpeak = c.speak
	return c
}

// Done is closed when the session reaches Finished.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Status returns the current state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Login validates the access code against the published settings and starts
// the session. A failed login leaves the controller untouched.
func (c *Controller) Login(ctx context.Context, accessCode string, user model.SessionUser) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusNotLoggedIn {
		return nil, ErrAlreadyStarted
	}
	// Drafts are keyed by user ID, so a blank one would be shared.
	user = model.SessionUser{Name: strings.TrimSpace(user.Name), ID: strings.TrimSpace(user.ID)}
	if user.Name == "" || user.ID == "" {
		return nil, ErrInvalidUser
	}

	settings, err := c.repo.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load settings: %w", ErrStorageUnavailable, err)
	}
	if settings == nil || settings.AccessCode != strings.TrimSpace(accessCode) {
		return nil, ErrInvalidAccessCode
	}
	def, err := c.repo.GetPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load exam: %w", ErrStorageUnavailable, err)
	}
	if def == nil {
		return nil, ErrInvalidAccessCode
	}

	now := c.clock.Now()
	c.user = user
	c.settings = *settings
	c.exam = model.NewExam(def, c.rng)
	c.form = form.New(c.exam.DisplayQuestions())
	c.status = StatusInSession
	c.log = c.log.With().
		Str("exam_id", def.Meta.ExamID).
		Str("user_id", c.user.ID).
		Logger()

	c.monitor.Arm(settings.MaxViolations)
	c.speak(StartAnnouncement)
	c.timer.Start(now, def.Meta.DurationSec)
	remaining := c.timer.Remaining(now)
	c.notify(Event{Type: EventTypeTick, Remaining: remaining, Clock: FormatHMS(remaining)})

	draft, err := c.repo.GetDraft(ctx, def.Meta.ExamID, c.user.ID)
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to load draft, starting empty")
	} else if draft != nil {
		n := grading.RestoreDraft(def, draft, c.form)
		c.monitor.Append(model.LogKindInfo, "draft restored")
		c.log.Debug().Int("fields", n).Msg("Draft restored")
	}

	c.log.Info().Str("title", def.Meta.Title).Int("duration_sec", def.Meta.DurationSec).Msg("Session started")
	return c.snapshotLocked(), nil
}

// Autosave writes a draft while the session is in progress and does nothing
// otherwise.
func (c *Controller) Autosave(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusInSession {
		return nil
	}
	return c.saveDraftLocked(ctx)
}

// ManualSave writes a draft on demand.
func (c *Controller) ManualSave(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusInSession {
		return ErrNotInSession
	}
	return c.saveDraftLocked(ctx)
}

func (c *Controller) saveDraftLocked(ctx context.Context) error {
	def := c.exam.Definition()
	draft := &model.Draft{
		Answers: grading.CollectAnswers(def, c.form),
		SavedAt: c.clock.Now(),
	}
	if err := c.repo.SaveDraft(ctx, def.Meta.ExamID, c.user.ID, draft); err != nil {
		return fmt.Errorf("%w: save draft: %w", ErrStorageUnavailable, err)
	}
	c.monitor.Append(model.LogKindInfo, "draft saved")
	return nil
}

// SetAnswer writes one value into the form. Null clears the field.
func (c *Controller) SetAnswer(field string, value model.AnswerValue) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusInSession {
		return ErrNotInSession
	}
	return c.form.Apply(field, value)
}

// HandleEvent routes a client integrity event into the monitor and submits
// when the violation threshold is reached. Outside InSession every event is
// ignored.
func (c *Controller) HandleEvent(ctx context.Context, kind EventKind) (Reaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusInSession {
		return Reaction{Ignored: true, Violations: c.monitor.Violations()}, nil
	}

	r := c.monitor.Handle(kind)
	if r.Fullscreen != nil {
		c.notify(Event{Type: EventTypeFullscreen, Fullscreen: r.Fullscreen})
	}
	if r.Violation {
		c.log.Warn().Str("event", string(kind)).Int("violations", r.Violations).
			Int("max", c.monitor.MaxViolations()).Msg("Integrity violation")
	}
	if r.AutoSubmit {
		_, err := c.submitLocked(ctx, true)
		return r, err
	}
	return r, nil
}

// Tick recomputes the remaining time from the deadline and submits once it
// reaches zero.
func (c *Controller) Tick(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusInSession {
		return 0, nil
	}

	remaining, expired := c.timer.Tick(c.clock.Now())
	c.notify(Event{Type: EventTypeTick, Remaining: remaining, Clock: FormatHMS(remaining)})
	if expired {
		c.monitor.Append(model.LogKindInfo, "time expired - auto-submitted")
		_, err := c.submitLocked(ctx, true)
		return 0, err
	}
	return remaining, nil
}

// Submit finishes the session and records the submission. Calling it again
// after the session finished returns the existing submission without
// writing anything.
func (c *Controller) Submit(ctx context.Context, auto bool) (*model.Submission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitLocked(ctx, auto)
}

func (c *Controller) submitLocked(ctx context.Context, auto bool) (*model.Submission, error) {
	switch c.status {
	case StatusNotLoggedIn:
		return nil, ErrNotInSession
	case StatusFinished:
		if c.pending {
			return c.submission, fmt.Errorf("%w: submission not yet persisted", ErrStorageUnavailable)
		}
		return c.submission, nil
	}

	def := c.exam.Definition()
	answers := grading.CollectAnswers(def, c.form)
	sub := &model.Submission{
		ExamID:       def.Meta.ExamID,
		Title:        def.Meta.Title,
		User:         c.user,
		SubmittedAt:  c.clock.Now(),
		Auto:         auto,
		Violations:   c.monitor.Violations(),
		IntegrityLog: c.monitor.Log(),
		Answers:      answers,
		Grade:        grading.Grade(def, answers),
	}

	c.status = StatusFinished
	c.timer.Stop()
	c.monitor.Disarm()
	c.submission = sub
	c.doneOnce.Do(func() { close(c.done) })

	var persistErr error
	if err := c.repo.AppendSubmission(ctx, sub); err != nil {
		c.pending = true
		persistErr = fmt.Errorf("%w: append submission: %w", ErrStorageUnavailable, err)
		c.log.Error().Err(err).Msg("Failed to persist submission")
	}

	c.log.Info().
		Bool("auto", auto).
		Int("violations", sub.Violations).
		Float64("score", sub.Grade.Got).
		Float64("total", sub.Grade.Total).
		Msg("Session submitted")
	c.notify(Event{Type: EventTypeFinished, Submission: sub, Pending: c.pending})
	return sub, persistErr
}

// RetryPersist appends a submission whose first write failed. It succeeds
// without writing when nothing is pending.
func (c *Controller) RetryPersist(ctx context.Context) (*model.Submission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusFinished {
		return nil, ErrNotInSession
	}
	if !c.pending {
		return c.submission, nil
	}
	if err := c.repo.AppendSubmission(ctx, c.submission); err != nil {
		return c.submission, fmt.Errorf("%w: append submission: %w", ErrStorageUnavailable, err)
	}
	c.pending = false
	c.log.Info().Msg("Pending submission persisted")
	c.notify(Event{Type: EventTypeFinished, Submission: c.submission})
	return c.submission, nil
}

// Paper returns the rendered exam and current answers.
func (c *Controller) Paper() (*Paper, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.exam == nil {
		return nil, ErrNotInSession
	}
	return &Paper{
		Meta:     c.exam.Meta(),
		Controls: c.form.Controls(),
		Answers:  grading.CollectAnswers(c.exam.Definition(), c.form),
	}, nil
}

// Result returns the submission once the session has finished.
func (c *Controller) Result() (*model.Submission, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submission, c.submission != nil
}

// Snapshot returns the current session view.
func (c *Controller) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() *Snapshot {
	s := &Snapshot{
		Status:         c.status,
		Violations:     c.monitor.Violations(),
		MaxViolations:  c.monitor.MaxViolations(),
		IntegrityLog:   c.monitor.Log(),
		Submission:     c.submission,
		PersistPending: c.pending,
	}
	if c.status != StatusNotLoggedIn {
		user := c.user
		meta := c.exam.Meta()
		s.User = &user
		s.Meta = &meta
	}
	if c.status == StatusInSession {
		s.Remaining = c.timer.Remaining(c.clock.Now())
	}
	s.Clock = FormatHMS(s.Remaining)
	return s
}

// FinishedAt returns when the session finished, or the zero time.
func (c *Controller) FinishedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submission == nil {
		return time.Time{}
	}
	return c.submission.SubmittedAt
}

func (c *Controller) notify(e Event) {
	for _, o := range c.observers {
		o.Notify(e)
	}
}

// speak forwards to the speaker only when the published settings carry a
// voice hint. Speaker panics are swallowed.
func (c *Controller) speak(text string) {
	if c.speaker == nil || c.settings.VoiceHint == "" {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.Debug().Interface("panic", r).Msg("Speaker failed")
		}
	}()
	c.speaker.Speak(text)
}
