package repository

import (
	"context"

	"telegram-commerce-bot/internal/domain/model"
)

type PaymentRepository interface {
	// Create inserts the payment and returns its id. Returns
	// domain.ErrConflict when the user already has an open payment
	// (enforced by a partial unique index).
	Create(ctx context.Context, tx Tx, p *model.Payment) (int64, error)
	FindByID(ctx context.Context, tx Tx, id int64) (*model.Payment, error)
	// UpdateProof stores the proof image reference and moves the payment
	// to proof_submitted. Re-submission overwrites.
	UpdateProof(ctx context.Context, tx Tx, id int64, proofFileID string) error
	Approve(ctx context.Context, tx Tx, id int64, adminID int64) error
	Reject(ctx context.Context, tx Tx, id int64, adminID int64) error
	// CancelOpenForOrder cancels every pending/proof_submitted payment of
	// the order. Used by cancel-and-replace and order cancellation.
	CancelOpenForOrder(ctx context.Context, tx Tx, orderID int64) error
	// OpenPaymentExists is the friendly admission-gate pre-check; the
	// partial unique index remains authoritative.
	OpenPaymentExists(ctx context.Context, tx Tx, userID int64) (bool, error)
}
