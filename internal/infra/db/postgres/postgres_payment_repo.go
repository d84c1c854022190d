package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-commerce-bot/internal/domain"
	"telegram-commerce-bot/internal/domain/model"
	"telegram-commerce-bot/internal/domain/ports/repository"
)

// Ensure paymentRepo implements repository.PaymentRepository
var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, order_id, user_id, method, currency, amount, status, proof_file_id, approved_by_admin, created_at, updated_at`

func (r *paymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.Payment) (int64, error) {
	const q = `
INSERT INTO payments (order_id, user_id, method, currency, amount, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id;`
	row, err := pickRow(ctx, r.pool, tx, q, p.OrderID, p.UserID, p.Method, p.Currency, p.Amount, p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := row.Scan(&id); err != nil {
		// 23505 here is the admission gate firing: one open payment per user.
		return 0, mapWriteErr(err)
	}
	return id, nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) UpdateProof(ctx context.Context, tx repository.Tx, id int64, proofFileID string) error {
	const q = `UPDATE payments SET proof_file_id=$2, status='proof_submitted', updated_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, proofFileID)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *paymentRepo) Approve(ctx context.Context, tx repository.Tx, id int64, adminID int64) error {
	return r.close(ctx, tx, id, adminID, model.PaymentStatusPaid)
}

func (r *paymentRepo) Reject(ctx context.Context, tx repository.Tx, id int64, adminID int64) error {
	return r.close(ctx, tx, id, adminID, model.PaymentStatusRejected)
}

// close applies a decision only while the payment is still open, keeping
// the transition single-shot at the storage level as well.
func (r *paymentRepo) close(ctx context.Context, tx repository.Tx, id, adminID int64, status model.PaymentStatus) error {
	const q = `
UPDATE payments SET status=$2, approved_by_admin=$3, updated_at=NOW()
 WHERE id=$1 AND status IN ('pending', 'proof_submitted');`
	tag, err := execSQL(ctx, r.pool, tx, q, id, status, adminID)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyHandled
	}
	return nil
}

func (r *paymentRepo) CancelOpenForOrder(ctx context.Context, tx repository.Tx, orderID int64) error {
	const q = `
UPDATE payments SET status='cancelled', updated_at=NOW()
 WHERE order_id=$1 AND status IN ('pending', 'proof_submitted');`
	if _, err := execSQL(ctx, r.pool, tx, q, orderID); err != nil {
		return mapWriteErr(err)
	}
	return nil
}

func (r *paymentRepo) OpenPaymentExists(ctx context.Context, tx repository.Tx, userID int64) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM payments WHERE user_id=$1 AND status IN ('pending', 'proof_submitted'));`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	if err := row.Scan(&p.ID, &p.OrderID, &p.UserID, &p.Method, &p.Currency, &p.Amount,
		&p.Status, &p.ProofFileID, &p.ApprovedByAdmin, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}
