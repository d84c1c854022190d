package usecase

import (
	"context"
	"fmt"
	"time"

	"telegram-commerce-bot/internal/config"
	"telegram-commerce-bot/internal/domain/model"
	"telegram-commerce-bot/internal/domain/ports/adapter"
	"telegram-commerce-bot/internal/domain/ports/repository"
	"telegram-commerce-bot/internal/infra/logging"
	"telegram-commerce-bot/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ SweeperUseCase = (*sweeperUC)(nil)

// SweeperUseCase closes out lapsed subscriptions: remove from the channel,
// mark expired, tell the user how to come back.
type SweeperUseCase interface {
	// SweepExpired processes every due subscription independently and
	// returns (processed, total). One bad row never stops the sweep.
	SweepExpired(ctx context.Context) (int, int, error)
}

type sweeperUC struct {
	subs      repository.SubscriptionRepository
	users     repository.UserRepository
	accessLog repository.ChannelAccessLogRepository
	tg        adapter.Transport
	cfg       *config.Config
	now       func() time.Time
	log       *zerolog.Logger
}

func NewSweeperUseCase(
	subs repository.SubscriptionRepository,
	users repository.UserRepository,
	accessLog repository.ChannelAccessLogRepository,
	tg adapter.Transport,
	cfg *config.Config,
	logger *zerolog.Logger,
) *sweeperUC {
	l := logger.With().Str("component", "SweeperUC").Logger()
	return &sweeperUC{
		subs: subs, users: users, accessLog: accessLog,
		tg: tg, cfg: cfg, now: time.Now, log: &l,
	}
}

func (u *sweeperUC) SweepExpired(ctx context.Context) (int, int, error) {
	defer logging.TraceDuration(u.log, "SweeperUC.SweepExpired")()
	due, err := u.subs.ListDue(ctx, repository.NoTX, u.now())
	if err != nil {
		return 0, 0, err
	}
	processed := 0
	for _, sub := range due {
		if err := u.sweepOne(ctx, sub); err != nil {
			u.log.Error().Err(err).Int64("subscription_id", sub.ID).Msg("sweep failed for subscription")
			metrics.IncJob("sweeper", "failed")
			continue
		}
		processed++
		metrics.IncJob("sweeper", "completed")
	}
	u.log.Info().Int("processed", processed).Int("total", len(due)).Msg("expiry sweep finished")
	return processed, len(due), nil
}

func (u *sweeperUC) sweepOne(ctx context.Context, sub *model.Subscription) error {
	user, err := u.users.FindByID(ctx, repository.NoTX, sub.UserID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", sub.UserID, err)
	}

	// Channel removal first: if Telegram refuses, the row stays active and
	// the next sweep retries the whole item.
	if sub.ChannelID != 0 {
		if err := u.tg.RevokeMembership(ctx, sub.ChannelID, user.TgUserID); err != nil {
			return fmt.Errorf("revoke channel membership: %w", err)
		}
		if err := u.accessLog.Revoke(ctx, repository.NoTX, user.ID, string(sub.Product)); err != nil {
			return fmt.Errorf("close access log entry: %w", err)
		}
	}
	if u.cfg.Channels.YogaPersonal != 0 {
		if err := u.tg.RevokeMembership(ctx, u.cfg.Channels.YogaPersonal, user.TgUserID); err != nil {
			return fmt.Errorf("revoke personal channel membership: %w", err)
		}
		if err := u.accessLog.Revoke(ctx, repository.NoTX, user.ID, model.ChannelKeyYogaPersonal); err != nil {
			return fmt.Errorf("close personal access log entry: %w", err)
		}
	}
	if err := u.subs.MarkExpired(ctx, repository.NoTX, sub.ID); err != nil {
		return fmt.Errorf("mark expired: %w", err)
	}

	text := fmt.Sprintf("Your %s subscription has ended and channel access was closed.\n"+
		"Renew any time from the menu: /menu", sub.Product.Title())
	if u.cfg.Bot.SupportHandle != "" {
		text += fmt.Sprintf("\nQuestions? Reach us at %s.", u.cfg.Bot.SupportHandle)
	}
	if err := u.tg.SendMessage(ctx, user.TgUserID, text); err != nil {
		// Already expired in storage; the notice is best-effort.
		u.log.Warn().Err(err).Int64("tg_id", user.TgUserID).Msg("failed to send expiry notice")
	}
	return nil
}
