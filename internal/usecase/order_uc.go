package usecase

import (
	"context"
	"fmt"
	"strings"

	"telegram-commerce-bot/internal/config"
	"telegram-commerce-bot/internal/domain"
	"telegram-commerce-bot/internal/domain/model"
	"telegram-commerce-bot/internal/domain/ports/adapter"
	"telegram-commerce-bot/internal/domain/ports/repository"
	"telegram-commerce-bot/internal/infra/logging"
	"telegram-commerce-bot/internal/infra/metrics"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ OrderUseCase = (*orderUC)(nil)

// OrderUseCase drives the order/payment workflow up to the moment an
// admin decides. All writes are transactional; chat notifications happen
// only after the transaction commits.
type OrderUseCase interface {
	// CreateOrderAndPayment creates the order together with its first
	// payment attempt. Returns domain.ErrConflict when the user already
	// has an open payment (Telegram "double-click" included: the partial
	// unique index is authoritative even if the pre-check passes twice).
	CreateOrderAndPayment(ctx context.Context, user *model.User, product model.Product, sel model.Selection, method model.PaymentMethod) (*model.Order, *model.Payment, error)
	// SubmitProof attaches the proof image to the user's payment and
	// fans the order card out to every admin.
	SubmitProof(ctx context.Context, user *model.User, paymentID int64, proofFileID string) (*model.Payment, error)
	// ChangeMethod cancels the order's open payment and opens a new one
	// with the requested method. The order itself survives.
	ChangeMethod(ctx context.Context, user *model.User, orderID int64, method model.PaymentMethod) (*model.Order, *model.Payment, error)
	// CancelOrder closes the order and its open payments.
	CancelOrder(ctx context.Context, user *model.User, orderID int64) error
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	GetPayment(ctx context.Context, id int64) (*model.Payment, error)
}

type orderUC struct {
	tm       repository.TransactionManager
	orders   repository.OrderRepository
	payments repository.PaymentRepository
	tg       adapter.Transport
	cfg      *config.Config
	log      *zerolog.Logger
}

func NewOrderUseCase(
	tm repository.TransactionManager,
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	tg adapter.Transport,
	cfg *config.Config,
	logger *zerolog.Logger,
) *orderUC {
	l := logger.With().Str("component", "OrderUC").Logger()
	return &orderUC{tm: tm, orders: orders, payments: payments, tg: tg, cfg: cfg, log: &l}
}

func (u *orderUC) CreateOrderAndPayment(ctx context.Context, user *model.User, product model.Product, sel model.Selection, method model.PaymentMethod) (*model.Order, *model.Payment, error) {
	defer logging.TraceDuration(u.log, "OrderUC.CreateOrderAndPayment")()
	if user.IsZero() {
		return nil, nil, domain.ErrInvalidArgument
	}
	amount := u.cfg.Price(string(product))
	if amount <= 0 {
		return nil, nil, fmt.Errorf("%w: product %q has no price", domain.ErrValidation, product)
	}

	order, err := model.NewOrder(user.ID, product, sel)
	if err != nil {
		return nil, nil, err
	}
	var payment *model.Payment
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// Friendly pre-check; the partial unique index on payments is the
		// real gate and turns the race into ErrConflict on Create.
		open, err := u.payments.OpenPaymentExists(ctx, tx, user.ID)
		if err != nil {
			return err
		}
		if open {
			return domain.ErrConflict
		}
		orderID, err := u.orders.Create(ctx, tx, order)
		if err != nil {
			return err
		}
		order.ID = orderID
		p, err := model.NewPayment(orderID, user.ID, method, amount)
		if err != nil {
			return err
		}
		paymentID, err := u.payments.Create(ctx, tx, p)
		if err != nil {
			return err
		}
		p.ID = paymentID
		payment = p
		order.Status = model.OrderStatusAwaitingPayment
		return u.orders.SetStatus(ctx, tx, orderID, model.OrderStatusAwaitingPayment)
	})
	if err != nil {
		return nil, nil, err
	}
	metrics.IncOrder(string(order.Direction))
	metrics.IncPayment("initiated")
	u.log.Info().Int64("order_id", order.ID).Int64("payment_id", payment.ID).
		Str("product", string(product)).Str("method", string(method)).Msg("order created")
	return order, payment, nil
}

func (u *orderUC) SubmitProof(ctx context.Context, user *model.User, paymentID int64, proofFileID string) (*model.Payment, error) {
	defer logging.TraceDuration(u.log, "OrderUC.SubmitProof")()
	var (
		payment *model.Payment
		order   *model.Order
	)
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.payments.FindByID(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if p.UserID != user.ID {
			return domain.ErrNotOwner
		}
		if !p.Status.Open() {
			return domain.ErrOrderClosed
		}
		if err := u.payments.UpdateProof(ctx, tx, paymentID, proofFileID); err != nil {
			return err
		}
		p.Status = model.PaymentStatusProofSubmitted
		p.ProofFileID = &proofFileID
		payment = p
		order, err = u.orders.FindByID(ctx, tx, p.OrderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.IncPayment("proof_submitted")

	// Fan-out after commit. A failed admin delivery never rolls back the
	// submission; remaining admins still get the card.
	caption := renderOrderCard(user, order, payment)
	rows := [][]adapter.InlineButton{{
		{Text: "Approve ✅", Data: fmt.Sprintf("adm_ok:%d", payment.ID)},
		{Text: "Reject ❌", Data: fmt.Sprintf("adm_no:%d", payment.ID)},
	}}
	for _, adminID := range u.cfg.Bot.AdminIDs {
		if err := u.tg.SendPhotoWithButtons(ctx, adminID, proofFileID, caption, rows); err != nil {
			u.log.Error().Err(err).Int64("admin_id", adminID).Int64("payment_id", payment.ID).
				Msg("failed to deliver order card")
		}
	}
	return payment, nil
}

func (u *orderUC) ChangeMethod(ctx context.Context, user *model.User, orderID int64, method model.PaymentMethod) (*model.Order, *model.Payment, error) {
	defer logging.TraceDuration(u.log, "OrderUC.ChangeMethod")()
	amount := int64(0)
	var (
		order   *model.Order
		payment *model.Payment
	)
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		o, err := u.orders.FindByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if o.UserID != user.ID {
			return domain.ErrNotOwner
		}
		if o.Status.Closed() {
			return domain.ErrOrderClosed
		}
		amount = u.cfg.Price(string(o.Product))
		if amount <= 0 {
			return fmt.Errorf("%w: product %q has no price", domain.ErrValidation, o.Product)
		}
		if err := u.payments.CancelOpenForOrder(ctx, tx, orderID); err != nil {
			return err
		}
		p, err := model.NewPayment(orderID, user.ID, method, amount)
		if err != nil {
			return err
		}
		paymentID, err := u.payments.Create(ctx, tx, p)
		if err != nil {
			return err
		}
		p.ID = paymentID
		order, payment = o, p
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	metrics.IncPayment("method_changed")
	return order, payment, nil
}

func (u *orderUC) CancelOrder(ctx context.Context, user *model.User, orderID int64) error {
	defer logging.TraceDuration(u.log, "OrderUC.CancelOrder")()
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		o, err := u.orders.FindByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if o.UserID != user.ID {
			return domain.ErrNotOwner
		}
		if o.Status.Closed() {
			return domain.ErrOrderClosed
		}
		if err := u.payments.CancelOpenForOrder(ctx, tx, orderID); err != nil {
			return err
		}
		return u.orders.SetStatus(ctx, tx, orderID, model.OrderStatusCancelled)
	})
	if err != nil {
		return err
	}
	metrics.IncPayment("cancelled")
	u.log.Info().Int64("order_id", orderID).Msg("order cancelled")
	return nil
}

func (u *orderUC) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	return u.orders.FindByID(ctx, repository.NoTX, id)
}

func (u *orderUC) GetPayment(ctx context.Context, id int64) (*model.Payment, error) {
	return u.payments.FindByID(ctx, repository.NoTX, id)
}

// renderOrderCard builds the admin-facing summary attached to the proof
// photo. Everything an admin needs to decide is on the card.
func renderOrderCard(user *model.User, order *model.Order, payment *model.Payment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🧾 Payment #%d\n", payment.ID)
	fmt.Fprintf(&b, "From: %s | id: %d\n", user.DisplayLine(), user.TgUserID)
	fmt.Fprintf(&b, "Service: %s — %s\n", order.Direction.Title(), order.Product.Title())
	for _, f := range order.Selection.Facts() {
		fmt.Fprintf(&b, "%s: %s\n", f.Label, f.Value)
	}
	fmt.Fprintf(&b, "Amount: %d %s (%s)", payment.Amount, payment.Currency, payment.Method.Title())
	return b.String()
}
