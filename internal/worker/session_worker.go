package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-kiosk/internal/logger"
	"github.com/stemsi/exstem-kiosk/internal/service"
)

const (
	launchQueueSize  = 256
	finalSaveTimeout = 5 * time.Second
)

// Driver is the part of a session controller the worker runs.
type Driver interface {
	Tick(ctx context.Context) (int64, error)
	Autosave(ctx context.Context) error
	Done() <-chan struct{}
}

// SessionWorker runs the countdown and periodic autosave of every hosted
// session until it finishes.
type SessionWorker struct {
	tickEvery time.Duration
	saveEvery time.Duration
	launches  chan *service.ActiveSession
	stopped   chan struct{}
	wg        sync.WaitGroup
	log       zerolog.Logger
}

// NewSessionWorker creates a new SessionWorker.
func NewSessionWorker(tickEvery, saveEvery time.Duration, log zerolog.Logger) *SessionWorker {
	return &SessionWorker{
		tickEvery: tickEvery,
		saveEvery: saveEvery,
		launches:  make(chan *service.ActiveSession, launchQueueSize),
		stopped:   make(chan struct{}),
		log:       log.With().Str("component", "session_worker").Logger(),
	}
}

// Launch hands a started session to the worker.
func (w *SessionWorker) Launch(a *service.ActiveSession) {
	select {
	case w.launches <- a:
	case <-w.stopped:
		w.log.Warn().Str("session_id", a.ID).Msg("Worker stopped, session not driven")
	}
}

// Start begins the worker loop. Call in a goroutine. On shutdown every
// running session gets a final autosave before Start returns.
func (w *SessionWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			close(w.stopped)
			w.log.Info().Msg("Worker stopping...")
			w.wg.Wait()
			w.log.Info().Msg("Worker stopped")
			return
		case a := <-w.launches:
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				w.Drive(ctx, a.Controller, logger.Session(w.log, a.ID, a.ExamID, a.User.ID))
			}()
		}
	}
}

// Drive ticks and autosaves d until it finishes or ctx is cancelled.
func (w *SessionWorker) Drive(ctx context.Context, d Driver, log zerolog.Logger) {
	tick := time.NewTicker(w.tickEvery)
	defer tick.Stop()
	save := time.NewTicker(w.saveEvery)
	defer save.Stop()

	for {
		select {
		case <-d.Done():
			return
		case <-ctx.Done():
			saveCtx, cancel := context.WithTimeout(context.Background(), finalSaveTimeout)
			if err := d.Autosave(saveCtx); err != nil {
				log.Error().Err(err).Msg("Final autosave failed")
			}
			cancel()
			return
		case <-tick.C:
			if _, err := d.Tick(ctx); err != nil {
				log.Error().Err(err).Msg("Tick failed")
			}
		case <-save.C:
			if err := d.Autosave(ctx); err != nil {
				log.Warn().Err(err).Msg("Autosave failed")
			}
		}
	}
}
