package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Reaper is the session registry housekeeping the ReaperWorker runs.
type Reaper interface {
	Reap(now time.Time, retention time.Duration) int
	RetryPending(ctx context.Context) int
}

// ReaperWorker retries pending submissions and forgets finished sessions
// once their retention has passed.
type ReaperWorker struct {
	reaper    Reaper
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewReaperWorker creates a new ReaperWorker.
func NewReaperWorker(reaper Reaper, interval, retention time.Duration, log zerolog.Logger) *ReaperWorker {
	return &ReaperWorker{
		reaper:    reaper,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		log:       log.With().Str("component", "reaper_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *ReaperWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Dur("retention", w.retention).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *ReaperWorker) runOnce(ctx context.Context) {
	if n := w.reaper.RetryPending(ctx); n > 0 {
		w.log.Info().Int("count", n).Msg("Pending submissions persisted")
	}
	if n := w.reaper.Reap(w.now(), w.retention); n > 0 {
		w.log.Info().Int("count", n).Msg("Finished sessions reaped")
	}
}
