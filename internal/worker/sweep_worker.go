package worker

import (
	"context"
	"time"

	"github.com/quizpoint/quizpoint-backend/internal/service"
	"github.com/rs/zerolog"
)

// SweepWorker runs the session auto-submission sweep on a fixed interval.
// It is explicitly owned by the server process: started once at boot on a
// cancellable context and stopped during shutdown, so timers never leak
// across test runs or process instances.
type SweepWorker struct {
	sessions *service.SessionService
	interval time.Duration
	log      zerolog.Logger
}

// NewSweepWorker creates a new SweepWorker.
func NewSweepWorker(sessions *service.SessionService, interval time.Duration, log zerolog.Logger) *SweepWorker {
	return &SweepWorker{
		sessions: sessions,
		interval: interval,
		log:      log.With().Str("component", "sweep_worker").Logger(),
	}
}

// Start begins the sweep loop. Call in a goroutine.
func (w *SweepWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("SweepWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("SweepWorker stopped")
			return
		case <-ticker.C:
			finalized, err := w.sessions.SweepOnce(ctx)
			if err != nil {
				// Listing failed; individual session errors are already
				// handled inside the pass. Retry on the next tick.
				if ctx.Err() == nil {
					w.log.Error().Err(err).Msg("Sweep pass failed")
				}
				continue
			}
			if finalized > 0 {
				w.log.Info().Int("finalized", finalized).Msg("Sweep auto-submitted sessions")
			}
		}
	}
}
