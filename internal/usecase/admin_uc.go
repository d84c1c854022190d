package usecase

import (
	"context"
	"fmt"

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
var _ AdminUseCase = (*adminUC)(nil)

// Outcome tells the bot layer how to answer the admin's button press.
type Outcome string

const (
	OutcomeApplied        Outcome = "applied"
	OutcomeAlreadyHandled Outcome = "already_handled"
)

type DecisionResult struct {
	Outcome Outcome
	Payment *model.Payment
	Order   *model.Order
	User    *model.User
}

// AdminUseCase records admin approve/reject decisions. The first decision
// wins: both operations re-read the payment inside the transaction, so a
// second admin racing on the same card gets OutcomeAlreadyHandled instead
// of a double transition.
type AdminUseCase interface {
	Approve(ctx context.Context, adminID, paymentID int64) (*DecisionResult, error)
	Reject(ctx context.Context, adminID, paymentID int64) (*DecisionResult, error)
}

type adminUC struct {
	tm        repository.TransactionManager
	payments  repository.PaymentRepository
	orders    repository.OrderRepository
	users     repository.UserRepository
	accessLog repository.ChannelAccessLogRepository
	provision ProvisionUseCase
	tg        adapter.Transport
	cfg       *config.Config
	log       *zerolog.Logger
}

func NewAdminUseCase(
	tm repository.TransactionManager,
	payments repository.PaymentRepository,
	orders repository.OrderRepository,
	users repository.UserRepository,
	accessLog repository.ChannelAccessLogRepository,
	provision ProvisionUseCase,
	tg adapter.Transport,
	cfg *config.Config,
	logger *zerolog.Logger,
) *adminUC {
	l := logger.With().Str("component", "AdminUC").Logger()
	return &adminUC{
		tm: tm, payments: payments, orders: orders, users: users,
		accessLog: accessLog, provision: provision, tg: tg, cfg: cfg, log: &l,
	}
}

// decide runs the shared transactional part of Approve/Reject: re-read the
// payment, bail out when a decision is already recorded, apply `apply`.
func (u *adminUC) decide(ctx context.Context, paymentID int64, apply func(ctx context.Context, tx repository.Tx, p *model.Payment) error) (*DecisionResult, error) {
	res := &DecisionResult{}
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.payments.FindByID(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if !p.Status.Open() {
			res.Outcome = OutcomeAlreadyHandled
			res.Payment = p
			return nil
		}
		if err := apply(ctx, tx, p); err != nil {
			return err
		}
		res.Outcome = OutcomeApplied
		res.Payment = p
		if res.Order, err = u.orders.FindByID(ctx, tx, p.OrderID); err != nil {
			return err
		}
		res.User, err = u.users.FindByID(ctx, tx, p.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (u *adminUC) Approve(ctx context.Context, adminID, paymentID int64) (*DecisionResult, error) {
	defer logging.TraceDuration(u.log, "AdminUC.Approve")()
	res, err := u.decide(ctx, paymentID, func(ctx context.Context, tx repository.Tx, p *model.Payment) error {
		if err := u.payments.Approve(ctx, tx, p.ID, adminID); err != nil {
			return err
		}
		p.Status = model.PaymentStatusPaid
		p.ApprovedByAdmin = &adminID
		return u.orders.SetStatus(ctx, tx, p.OrderID, model.OrderStatusPaid)
	})
	if err != nil {
		return nil, err
	}
	if res.Outcome != OutcomeApplied {
		return res, nil
	}
	res.Order.Status = model.OrderStatusPaid
	metrics.IncPayment("approved")
	metrics.AddPaymentRevenue(res.Payment.Currency, res.Payment.Amount)
	u.log.Info().Int64("payment_id", paymentID).Int64("admin_id", adminID).Msg("payment approved")

	// Post-commit side effects are best-effort: the approval is recorded
	// regardless of chat delivery.
	u.notifyApproved(ctx, res)
	u.grantPersonal(ctx, res.User)
	if res.Order.Product.IsYogaPlan() {
		if _, err := u.provision.ProvisionOrRenew(ctx, res.User, res.Order.Product, res.Payment.ID); err != nil {
			u.log.Error().Err(err).Int64("payment_id", paymentID).Msg("provisioning failed after approval")
		}
	}
	return res, nil
}

func (u *adminUC) Reject(ctx context.Context, adminID, paymentID int64) (*DecisionResult, error) {
	defer logging.TraceDuration(u.log, "AdminUC.Reject")()
	res, err := u.decide(ctx, paymentID, func(ctx context.Context, tx repository.Tx, p *model.Payment) error {
		if err := u.payments.Reject(ctx, tx, p.ID, adminID); err != nil {
			return err
		}
		p.Status = model.PaymentStatusRejected
		p.ApprovedByAdmin = &adminID
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.Outcome != OutcomeApplied {
		return res, nil
	}
	metrics.IncPayment("rejected")
	u.log.Info().Int64("payment_id", paymentID).Int64("admin_id", adminID).Msg("payment rejected")

	text := "❌ Your payment was not confirmed.\n\n" +
		"You can retry with a different payment method or cancel the order."
	if u.cfg.Bot.SupportHandle != "" {
		text += fmt.Sprintf("\nQuestions? Reach us at %s.", u.cfg.Bot.SupportHandle)
	}
	rows := [][]adapter.InlineButton{
		{{Text: "Change payment method", Data: fmt.Sprintf("pay_change:%d", res.Order.ID)}},
		{{Text: "Cancel order", Data: fmt.Sprintf("order_cancel:%d", res.Order.ID)}},
	}
	if err := u.tg.SendButtons(ctx, res.User.TgUserID, text, rows); err != nil {
		u.log.Error().Err(err).Int64("tg_id", res.User.TgUserID).Msg("failed to notify user about rejection")
	}
	return res, nil
}

func (u *adminUC) notifyApproved(ctx context.Context, res *DecisionResult) {
	text := fmt.Sprintf("✅ Payment confirmed!\nService: %s — %s\n",
		res.Order.Direction.Title(), res.Order.Product.Title())
	if !res.Order.Product.IsYogaPlan() {
		text += "We will contact you shortly to schedule."
	}
	if err := u.tg.SendMessage(ctx, res.User.TgUserID, text); err != nil {
		u.log.Error().Err(err).Int64("tg_id", res.User.TgUserID).Msg("failed to send approval notice")
	}
}

// grantPersonal invites the user into the shared announcements channel.
// Every approved payment earns this; the audit trail records the link.
func (u *adminUC) grantPersonal(ctx context.Context, user *model.User) {
	channelID := u.cfg.Channels.Personal
	if channelID == 0 {
		return
	}
	link, err := u.tg.CreateSingleUseInvite(ctx, channelID, user.DisplayLine(), u.cfg.Subscription.InviteLinkExpiry)
	if err != nil {
		u.log.Error().Err(err).Int64("user_id", user.ID).Msg("failed to create personal channel invite")
		return
	}
	if err := u.accessLog.Append(ctx, repository.NoTX, user.ID, model.ChannelKeyPersonal, &link); err != nil {
		u.log.Error().Err(err).Int64("user_id", user.ID).Msg("failed to record personal channel grant")
	}
	text := "📣 Join our announcements channel:\n" + link
	if err := u.tg.SendMessage(ctx, user.TgUserID, text); err != nil {
		u.log.Error().Err(err).Int64("tg_id", user.TgUserID).Msg("failed to send personal channel invite")
	}
}
