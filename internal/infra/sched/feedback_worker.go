package sched

import (
	"context"
	"time"

	"telegram-commerce-bot/internal/config"
	"telegram-commerce-bot/internal/usecase"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// FeedbackWorker sends the pre-expiry survey invitations once a day.
type FeedbackWorker struct {
	job usecase.FeedbackUseCase
	cfg config.JobConfig
	loc *time.Location
	log *zerolog.Logger
}

func NewFeedbackWorker(job usecase.FeedbackUseCase, cfg config.JobConfig, loc *time.Location, logger *zerolog.Logger) *FeedbackWorker {
	l := logger.With().Str("component", "FeedbackWorker").Logger()
	return &FeedbackWorker{job: job, cfg: cfg, loc: loc, log: &l}
}

func (w *FeedbackWorker) Run(ctx context.Context) error {
	w.log.Info().Int("hour", w.cfg.Hour).Int("minute", w.cfg.Minute).Msg("Starting feedback worker")
	for {
		next := nextRun(time.Now(), w.cfg.Hour, w.cfg.Minute, w.loc)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			w.log.Info().Msg("Stopping feedback worker")
			return ctx.Err()
		case <-timer.C:
			runID := uuid.NewString()
			sent, total, err := w.job.SendDueSurveys(ctx)
			if err != nil {
				w.log.Error().Err(err).Str("run_id", runID).Msg("survey round failed")
				continue
			}
			if total > 0 {
				w.log.Info().Str("run_id", runID).Int("sent", sent).Int("total", total).Msg("survey round done")
			}
		}
	}
}
