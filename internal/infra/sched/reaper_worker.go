package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"subscription-discount-engine/internal/infra/metrics"
	"subscription-discount-engine/internal/usecase"
)

// ReaperWorker periodically releases lapsed reservation slots via the use
// case. It is a convenience trigger; an external scheduler can drive the same
// sweep through the API without coordination, since sweeping is safe to run
// concurrently with itself.
type ReaperWorker struct {
	interval time.Duration
	reaper   usecase.ReaperUseCase
	log      *zerolog.Logger
}

func NewReaperWorker(interval time.Duration, reaper usecase.ReaperUseCase, logger *zerolog.Logger) *ReaperWorker {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	l := logger.With().Str("component", "ReaperWorker").Logger()
	return &ReaperWorker{interval: interval, reaper: reaper, log: &l}
}

func (w *ReaperWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting reaper worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping reaper worker")
			return ctx.Err()
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			released, err := w.reaper.Sweep(sweepCtx, time.Now())
			cancel()
			if err != nil {
				w.log.Error().Err(err).Msg("sweep failed")
			}
			if released > 0 {
				metrics.AddReservationsReaped(released)
				w.log.Info().Int("released", released).Msg("reservation slots released")
			}
		}
	}
}
