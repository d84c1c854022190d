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

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ ProvisionUseCase = (*provisionUC)(nil)

type ProvisionResult struct {
	Sub        *model.Subscription
	InviteLink string
	FirstJoin  bool // brand-new member, intro collection starts
	Extended   bool // same plan while active: expiry pushed out
	PlanSwitch bool // different plan while active: channel migration
}

// ProvisionUseCase turns an approved yoga payment into channel access.
// One logical subscription row per user; the branch taken depends on what
// that row says at approval time.
type ProvisionUseCase interface {
	ProvisionOrRenew(ctx context.Context, user *model.User, plan model.Product, paymentID int64) (*ProvisionResult, error)
}

type provisionUC struct {
	tm        repository.TransactionManager
	subs      repository.SubscriptionRepository
	accessLog repository.ChannelAccessLogRepository
	states    repository.StateRepository
	tg        adapter.Transport
	cfg       *config.Config
	now       func() time.Time
	log       *zerolog.Logger
}

func NewProvisionUseCase(
	tm repository.TransactionManager,
	subs repository.SubscriptionRepository,
	accessLog repository.ChannelAccessLogRepository,
	states repository.StateRepository,
	tg adapter.Transport,
	cfg *config.Config,
	logger *zerolog.Logger,
) *provisionUC {
	l := logger.With().Str("component", "ProvisionUC").Logger()
	return &provisionUC{
		tm: tm, subs: subs, accessLog: accessLog, states: states,
		tg: tg, cfg: cfg, now: time.Now, log: &l,
	}
}

func (u *provisionUC) period() time.Duration {
	return time.Duration(u.cfg.Subscription.PeriodDays) * 24 * time.Hour
}

func (u *provisionUC) ProvisionOrRenew(ctx context.Context, user *model.User, plan model.Product, paymentID int64) (*ProvisionResult, error) {
	defer logging.TraceDuration(u.log, "ProvisionUC.ProvisionOrRenew")()
	now := u.now()
	current, err := u.subs.FindCurrentByUser(ctx, repository.NoTX, user.ID)
	if err != nil && !isNotFound(err) {
		return nil, err
	}

	switch {
	case current.IsActive(now) && current.Product == plan:
		return u.extend(ctx, user, current, paymentID)
	case current.IsActive(now):
		return u.switchPlan(ctx, user, current, plan, paymentID, now)
	default:
		return u.freshJoin(ctx, user, current, plan, paymentID, now)
	}
}

// extend pushes an active same-plan subscription's expiry out by one full
// period from its current expiry, never from today. Unlimited stays
// unlimited. No channel churn: the member is already inside.
func (u *provisionUC) extend(ctx context.Context, user *model.User, sub *model.Subscription, paymentID int64) (*ProvisionResult, error) {
	if sub.ExpiresAt != nil {
		next := sub.ExpiresAt.Add(u.period())
		sub.ExpiresAt = &next
	}
	sub.LastPaymentID = &paymentID
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		return u.subs.Save(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}
	metrics.IncSubscription("extended")
	u.log.Info().Int64("user_id", user.ID).Str("plan", string(sub.Product)).Msg("subscription extended")

	text := fmt.Sprintf("🧘 Your %s subscription is extended", sub.Product.Title())
	if sub.ExpiresAt != nil {
		text += fmt.Sprintf(" until %s", sub.ExpiresAt.Format("02.01.2006"))
	}
	text += "."
	u.send(ctx, user.TgUserID, text)
	u.notifyAdmins(ctx, fmt.Sprintf("🔄 %s renewed %s (payment #%d)",
		user.DisplayLine(), sub.Product.Title(), paymentID))
	return &ProvisionResult{Sub: sub, Extended: true}, nil
}

// switchPlan moves an active member between plan channels: revoke the old
// membership, issue an invite to the new channel, restart the window. The
// member is new to the target channel, so intro collection opens again.
func (u *provisionUC) switchPlan(ctx context.Context, user *model.User, sub *model.Subscription, plan model.Product, paymentID int64, now time.Time) (*ProvisionResult, error) {
	if sub.ChannelID != 0 {
		if err := u.tg.RevokeMembership(ctx, sub.ChannelID, user.TgUserID); err != nil {
			u.log.Error().Err(err).Int64("channel_id", sub.ChannelID).Int64("tg_id", user.TgUserID).
				Msg("failed to remove member from previous plan channel")
		}
	}
	oldProduct := sub.Product
	link, channelID, err := u.inviteForPlan(ctx, user, plan)
	if err != nil {
		return nil, err
	}

	expires := now.Add(u.period())
	sub.Product = plan
	sub.Status = model.SubscriptionStatusActive
	sub.StartsAt = now
	sub.ExpiresAt = &expires
	sub.LastPaymentID = &paymentID
	sub.ChannelID = channelID
	sub.JoinedAt = &now
	sub.FeedbackSentAt = nil

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.subs.Save(ctx, tx, sub); err != nil {
			return err
		}
		if err := u.accessLog.Revoke(ctx, tx, user.ID, string(oldProduct)); err != nil {
			return err
		}
		if link != "" {
			return u.accessLog.Append(ctx, tx, user.ID, string(plan), &link)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncSubscription("plan_switched")
	u.log.Info().Int64("user_id", user.ID).Str("from", string(oldProduct)).Str("to", string(plan)).
		Msg("subscription plan switched")

	text := fmt.Sprintf("🧘 Your plan is now %s, active until %s.",
		plan.Title(), expires.Format("02.01.2006"))
	if link != "" {
		text += "\nYour new channel invite (single use, expires in 48h):\n" + link
	}
	u.send(ctx, user.TgUserID, text)
	u.askIntro(ctx, user)
	u.notifyAdmins(ctx, fmt.Sprintf("🔁 %s switched plan: %s → %s (payment #%d)",
		user.DisplayLine(), oldProduct.Title(), plan.Title(), paymentID))
	return &ProvisionResult{Sub: sub, InviteLink: link, PlanSwitch: true}, nil
}

// freshJoin covers both a first-ever member (insert) and a lapsed member
// returning after expiry (row updated with a fresh window). Either way the
// window starts today and a new invite is issued.
func (u *provisionUC) freshJoin(ctx context.Context, user *model.User, current *model.Subscription, plan model.Product, paymentID int64, now time.Time) (*ProvisionResult, error) {
	link, channelID, err := u.inviteForPlan(ctx, user, plan)
	if err != nil {
		return nil, err
	}
	expires := now.Add(u.period())

	firstEver := current == nil
	sub := current
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if firstEver {
			s, err := model.NewSubscription(user.ID, plan, &expires, paymentID, channelID)
			if err != nil {
				return err
			}
			s.StartsAt = now
			s.JoinedAt = &now
			id, err := u.subs.Create(ctx, tx, s)
			if err != nil {
				return err
			}
			s.ID = id
			sub = s
		} else {
			sub.Product = plan
			sub.Status = model.SubscriptionStatusActive
			sub.StartsAt = now
			sub.ExpiresAt = &expires
			sub.LastPaymentID = &paymentID
			sub.ChannelID = channelID
			sub.JoinedAt = &now
			sub.FeedbackSentAt = nil
			if err := u.subs.Save(ctx, tx, sub); err != nil {
				return err
			}
		}
		if link != "" {
			return u.accessLog.Append(ctx, tx, user.ID, string(plan), &link)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncSubscription("provisioned")
	u.log.Info().Int64("user_id", user.ID).Str("plan", string(plan)).Bool("first_ever", firstEver).
		Msg("subscription provisioned")

	text := fmt.Sprintf("🧘 Welcome! Your %s subscription is active until %s.",
		plan.Title(), expires.Format("02.01.2006"))
	if link != "" {
		text += "\nJoin the practice channel (single-use invite):\n" + link
	}
	u.send(ctx, user.TgUserID, text)

	if firstEver {
		u.grantYogaPersonal(ctx, user)
		u.askIntro(ctx, user)
	}
	u.notifyAdmins(ctx, fmt.Sprintf("✅ %s joined %s (payment #%d)",
		user.DisplayLine(), plan.Title(), paymentID))
	return &ProvisionResult{Sub: sub, InviteLink: link, FirstJoin: firstEver}, nil
}

// inviteForPlan issues a single-use invite for the plan's group channel.
// The individual plan has no group channel: no invite, channel id 0.
func (u *provisionUC) inviteForPlan(ctx context.Context, user *model.User, plan model.Product) (string, int64, error) {
	channelID := u.cfg.YogaChannel(string(plan))
	if channelID == 0 {
		return "", 0, nil
	}
	link, err := u.tg.CreateSingleUseInvite(ctx, channelID, user.DisplayLine(), u.cfg.Subscription.InviteLinkExpiry)
	if err != nil {
		return "", 0, fmt.Errorf("create invite for %s: %w", plan, err)
	}
	return link, channelID, nil
}

// grantYogaPersonal invites first-time members into the instructor's
// personal channel. Best-effort, independent of the subscription row.
func (u *provisionUC) grantYogaPersonal(ctx context.Context, user *model.User) {
	channelID := u.cfg.Channels.YogaPersonal
	if channelID == 0 {
		return
	}
	link, err := u.tg.CreateSingleUseInvite(ctx, channelID, user.DisplayLine(), u.cfg.Subscription.InviteLinkExpiry)
	if err != nil {
		u.log.Error().Err(err).Int64("user_id", user.ID).Msg("failed to create yoga personal invite")
		return
	}
	if err := u.accessLog.Append(ctx, repository.NoTX, user.ID, model.ChannelKeyYogaPersonal, &link); err != nil {
		u.log.Error().Err(err).Int64("user_id", user.ID).Msg("failed to record yoga personal grant")
	}
	u.send(ctx, user.TgUserID, "🌿 The instructor's personal channel:\n"+link)
}

// askIntro opens the onboarding dialog step: new members tell the
// instructor about their experience and goals in free text.
func (u *provisionUC) askIntro(ctx context.Context, user *model.User) {
	state := &repository.ConversationState{Step: "yoga:intro", Data: map[string]string{}}
	if err := u.states.SetState(ctx, user.TgUserID, state); err != nil {
		u.log.Error().Err(err).Int64("tg_id", user.TgUserID).Msg("failed to open intro step")
		return
	}
	u.send(ctx, user.TgUserID,
		"Before your first practice, tell us a little about yourself: "+
			"your experience with yoga, any injuries or limitations, and what you want from the practices.")
}

func (u *provisionUC) send(ctx context.Context, tgID int64, text string) {
	if err := u.tg.SendMessage(ctx, tgID, text); err != nil {
		u.log.Error().Err(err).Int64("tg_id", tgID).Msg("failed to deliver message")
	}
}

func (u *provisionUC) notifyAdmins(ctx context.Context, text string) {
	for _, adminID := range u.cfg.Bot.AdminIDs {
		if err := u.tg.SendMessage(ctx, adminID, text); err != nil {
			u.log.Error().Err(err).Int64("admin_id", adminID).Msg("failed to notify admin")
		}
	}
}
