package sched

import (
	"context"
	"time"

	"telegram-commerce-bot/internal/config"
	"telegram-commerce-bot/internal/usecase"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SweeperWorker fires the expiry sweep once a day at the configured local
// time.
type SweeperWorker struct {
	job usecase.SweeperUseCase
	cfg config.JobConfig
	loc *time.Location
	log *zerolog.Logger
}

func NewSweeperWorker(job usecase.SweeperUseCase, cfg config.JobConfig, loc *time.Location, logger *zerolog.Logger) *SweeperWorker {
	l := logger.With().Str("component", "SweeperWorker").Logger()
	return &SweeperWorker{job: job, cfg: cfg, loc: loc, log: &l}
}

func (w *SweeperWorker) Run(ctx context.Context) error {
	w.log.Info().Int("hour", w.cfg.Hour).Int("minute", w.cfg.Minute).Msg("Starting sweeper worker")
	for {
		next := nextRun(time.Now(), w.cfg.Hour, w.cfg.Minute, w.loc)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			w.log.Info().Msg("Stopping sweeper worker")
			return ctx.Err()
		case <-timer.C:
			runID := uuid.NewString()
			processed, total, err := w.job.SweepExpired(ctx)
			if err != nil {
				w.log.Error().Err(err).Str("run_id", runID).Msg("expiry sweep failed")
				continue
			}
			if total > 0 {
				w.log.Info().Str("run_id", runID).Int("processed", processed).Int("total", total).Msg("expiry sweep done")
			}
		}
	}
}
