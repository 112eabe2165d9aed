package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-kiosk/internal/model"
	"github.com/stemsi/exstem-kiosk/internal/session"
)

// ErrSessionNotFound is returned for unknown or reaped session IDs.
var ErrSessionNotFound = errors.New("exam session not found")

const subscriberBuffer = 32

// ActiveSession is one hosted exam session.
type ActiveSession struct {
	ID         string
	ExamID     string
	User       model.SessionUser
	StartedAt  time.Time
	Controller *session.Controller

	hub *sessionHub
}

// Subscribe streams controller events until the returned cancel func is
// called. Slow readers miss events instead of stalling the session.
func (a *ActiveSession) Subscribe() (<-chan session.Event, func()) {
	return a.hub.subscribe()
}

// SessionSummary is the admin view of a hosted session.
type SessionSummary struct {
	SessionID     string            `json:"session_id"`
	ExamID        string            `json:"exam_id"`
	User          model.SessionUser `json:"user"`
	Status        session.Status    `json:"status"`
	Violations    int               `json:"violations"`
	MaxViolations int               `json:"max_violations"`
	Remaining     int64             `json:"remaining_sec"`
	StartedAt     time.Time         `json:"started_at"`
}

// ExamSessionService hosts exam sessions side by side, one controller each.
type ExamSessionService struct {
	repo    session.Repository
	monitor *MonitorService
	clock   session.Clock
	log     zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*ActiveSession
	driver   func(*ActiveSession)
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(repo session.Repository, monitor *MonitorService, clock session.Clock, log zerolog.Logger) *ExamSessionService {
	if clock == nil {
		clock = session.SystemClock{}
	}
	return &ExamSessionService{
		repo:     repo,
		monitor:  monitor,
		clock:    clock,
		log:      log.With().Str("component", "exam_session_service").Logger(),
		sessions: make(map[string]*ActiveSession),
	}
}

// SetDriver registers the function that runs a started session's tick and
// autosave loop.
func (s *ExamSessionService) SetDriver(fn func(*ActiveSession)) {
	s.mu.Lock()
	s.driver = fn
	s.mu.Unlock()
}

// Start logs a student into the published exam and hosts the new session.
func (s *ExamSessionService) Start(ctx context.Context, req *model.StudentLoginRequest) (*ActiveSession, *session.Snapshot, error) {
	id := uuid.New().String()
	hub := newSessionHub(id, s.monitor, s.clock)
	ctrlLog := s.log.With().Str("session_id", id).Logger()
	ctrl := session.NewController(s.repo, session.Options{
		Clock:   s.clock,
		Speaker: hub,
		Logger:  &ctrlLog,
	}, hub)

	snap, err := ctrl.Login(ctx, req.AccessCode, model.SessionUser{Name: req.Name, ID: req.ID})
	if err != nil {
		return nil, nil, err
	}

	a := &ActiveSession{
		ID:         id,
		ExamID:     snap.Meta.ExamID,
		User:       *snap.User,
		StartedAt:  s.clock.Now(),
		Controller: ctrl,
		hub:        hub,
	}
	hub.bind(a.ExamID, a.User)

	s.mu.Lock()
	s.sessions[id] = a
	driver := s.driver
	s.mu.Unlock()

	if s.monitor != nil {
		s.monitor.Enqueue(MonitorEvent{
			Type:      MonitorEventJoined,
			SessionID: id,
			ExamID:    a.ExamID,
			User:      a.User,
			At:        a.StartedAt,
		})
	}
	if driver != nil {
		driver(a)
	}
	return a, snap, nil
}

// Get returns a hosted session by ID.
func (s *ExamSessionService) Get(id string) (*ActiveSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return a, nil
}

// List summarizes every hosted session, oldest first. An empty examID
// matches all exams.
func (s *ExamSessionService) List(examID string) []SessionSummary {
	s.mu.RLock()
	all := make([]*ActiveSession, 0, len(s.sessions))
	for _, a := range s.sessions {
		if examID == "" || a.ExamID == examID {
			all = append(all, a)
		}
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].StartedAt.Before(all[j].StartedAt) })
	out := make([]SessionSummary, 0, len(all))
	for _, a := range all {
		snap := a.Controller.Snapshot()
		out = append(out, SessionSummary{
			SessionID:     a.ID,
			ExamID:        a.ExamID,
			User:          a.User,
			Status:        snap.Status,
			Violations:    snap.Violations,
			MaxViolations: snap.MaxViolations,
			Remaining:     snap.Remaining,
			StartedAt:     a.StartedAt,
		})
	}
	return out
}

// Reap forgets finished sessions older than retention. Sessions whose
// submission is still waiting to be persisted are kept.
func (s *ExamSessionService) Reap(now time.Time, retention time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, a := range s.sessions {
		finishedAt := a.Controller.FinishedAt()
		if finishedAt.IsZero() || now.Sub(finishedAt) < retention {
			continue
		}
		if a.Controller.Snapshot().PersistPending {
			continue
		}
		a.hub.closeAll()
		delete(s.sessions, id)
		removed++
	}
	return removed
}

// RetryPending retries every submission whose first write failed and
// returns how many were persisted.
func (s *ExamSessionService) RetryPending(ctx context.Context) int {
	s.mu.RLock()
	pending := make([]*ActiveSession, 0)
	for _, a := range s.sessions {
		if a.Controller.Snapshot().PersistPending {
			pending = append(pending, a)
		}
	}
	s.mu.RUnlock()

	persisted := 0
	for _, a := range pending {
		if _, err := a.Controller.RetryPersist(ctx); err != nil {
			s.log.Warn().Err(err).Str("session_id", a.ID).Msg("Submission still pending")
			continue
		}
		persisted++
	}
	return persisted
}

// sessionHub is the observer and speaker of one controller. It fans events
// out to subscribers and forwards integrity events to the monitor relay.
type sessionHub struct {
	sessionID string
	monitor   *MonitorService
	clock     session.Clock

	mu     sync.Mutex
	examID string
	user   model.SessionUser
	subs   map[int]chan session.Event
	nextID int
}

func newSessionHub(sessionID string, monitor *MonitorService, clock session.Clock) *sessionHub {
	return &sessionHub{
		sessionID: sessionID,
		monitor:   monitor,
		clock:     clock,
		subs:      make(map[int]chan session.Event),
	}
}

func (h *sessionHub) bind(examID string, user model.SessionUser) {
	h.mu.Lock()
	h.examID = examID
	h.user = user
	h.mu.Unlock()
}

// Notify implements session.Observer.
func (h *sessionHub) Notify(e session.Event) {
	h.mu.Lock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
	examID, user := h.examID, h.user
	h.mu.Unlock()

	if h.monitor == nil || examID == "" {
		return
	}
	switch e.Type {
	case session.EventTypeLog:
		h.monitor.Enqueue(MonitorEvent{
			Type: MonitorEventLog, SessionID: h.sessionID, ExamID: examID, User: user,
			Log: e.Log, Violations: e.Violations, At: h.clock.Now(),
		})
	case session.EventTypeFinished:
		if e.Submission == nil {
			return
		}
		got, total := e.Submission.Grade.Got, e.Submission.Grade.Total
		h.monitor.Enqueue(MonitorEvent{
			Type: MonitorEventFinished, SessionID: h.sessionID, ExamID: examID, User: user,
			Violations: e.Submission.Violations, Auto: e.Submission.Auto, Score: &got, Total: &total,
			At: e.Submission.SubmittedAt,
		})
	}
}

// Speak implements session.Speaker by pushing the text to the client, which
// owns the audio device.
func (h *sessionHub) Speak(text string) {
	h.Notify(session.Event{Type: session.EventTypeSpeak, Text: text})
}

func (h *sessionHub) subscribe() (<-chan session.Event, func()) {
	ch := make(chan session.Event, subscriberBuffer)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(ch)
			}
			h.mu.Unlock()
		})
	}
}

func (h *sessionHub) closeAll() {
	h.mu.Lock()
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
	h.mu.Unlock()
}
