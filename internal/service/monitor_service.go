package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-kiosk/internal/broadcast"
	"github.com/stemsi/exstem-kiosk/internal/config"
	"github.com/stemsi/exstem-kiosk/internal/model"
)

// Monitor event types sent to the admin live feed.
const (
	MonitorEventJoined   = "joined"
	MonitorEventLog      = "log"
	MonitorEventFinished = "finished"
)

const monitorQueueSize = 1024

// MonitorEvent is one line of the admin live integrity feed.
type MonitorEvent struct {
	Type       string                   `json:"type"`
	SessionID  string                   `json:"session_id"`
	ExamID     string                   `json:"exam_id"`
	User       model.SessionUser        `json:"user"`
	Log        *model.IntegrityLogEntry `json:"log,omitempty"`
	Violations int                      `json:"violations"`
	Auto       bool                     `json:"auto,omitempty"`
	Score      *float64                 `json:"score,omitempty"`
	Total      *float64                 `json:"total,omitempty"`
	At         time.Time                `json:"at"`
}

// MonitorService relays session events to the broadcaster. Enqueue never
// blocks, so it is safe to call while a session controller holds its lock.
type MonitorService struct {
	bc    broadcast.Broadcaster
	queue chan MonitorEvent
	log   zerolog.Logger
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(bc broadcast.Broadcaster, log zerolog.Logger) *MonitorService {
	return &MonitorService{
		bc:    bc,
		queue: make(chan MonitorEvent, monitorQueueSize),
		log:   log.With().Str("component", "monitor_service").Logger(),
	}
}

// Enqueue schedules an event for publishing. Events are dropped when the
// queue is full.
func (s *MonitorService) Enqueue(e MonitorEvent) {
	select {
	case s.queue <- e:
	default:
		s.log.Warn().Str("type", e.Type).Str("session_id", e.SessionID).Msg("Monitor queue full, event dropped")
	}
}

// Pending reports how many events wait to be published.
func (s *MonitorService) Pending() int { return len(s.queue) }

// Run publishes queued events until ctx is cancelled, then drains the queue.
func (s *MonitorService) Run(ctx context.Context) {
	s.log.Info().Msg("Monitor relay started")
	for {
		select {
		case <-ctx.Done():
			s.drain()
			s.log.Info().Msg("Monitor relay stopped")
			return
		case e := <-s.queue:
			s.publish(ctx, e)
		}
	}
}

func (s *MonitorService) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case e := <-s.queue:
			s.publish(ctx, e)
		default:
			return
		}
	}
}

func (s *MonitorService) publish(ctx context.Context, e MonitorEvent) {
	payload, err := json.Marshal(e)
	if err != nil {
		s.log.Error().Err(err).Msg("Marshal monitor event")
		return
	}
	if err := s.bc.Publish(ctx, config.CacheKey.ExamMonitorChannel(e.ExamID), payload); err != nil {
		s.log.Warn().Err(err).Str("exam_id", e.ExamID).Msg("Publish monitor event")
	}
}

// Subscribe attaches to the live feed of one exam.
func (s *MonitorService) Subscribe(ctx context.Context, examID string) (broadcast.Subscription, error) {
	return s.bc.Subscribe(ctx, config.CacheKey.ExamMonitorChannel(examID))
}
