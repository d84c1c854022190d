package model

import (
	"time"

	"telegram-commerce-bot/internal/domain"
)

type PaymentMethod string

const (
	MethodCard    PaymentMethod = "card"    // manual card transfer, RUB
	MethodInstant PaymentMethod = "instant" // instant transfer (Pix), BRL
	MethodCrypto  PaymentMethod = "crypto"  // on-chain transfer, USDT
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodInstant, MethodCrypto:
		return true
	}
	return false
}

func (m PaymentMethod) Title() string {
	switch m {
	case MethodCard:
		return "Card transfer (RUB)"
	case MethodInstant:
		return "Instant transfer (Pix)"
	case MethodCrypto:
		return "Crypto"
	}
	return string(m)
}

// Currency returns the fixed settlement currency for a method. One
// currency per method, no negotiation.
func (m PaymentMethod) Currency() string {
	switch m {
	case MethodCard:
		return "RUB"
	case MethodInstant:
		return "BRL"
	case MethodCrypto:
		return "USDT"
	}
	return ""
}

type PaymentStatus string

const (
	PaymentStatusPending        PaymentStatus = "pending"
	PaymentStatusProofSubmitted PaymentStatus = "proof_submitted"
	PaymentStatusPaid           PaymentStatus = "paid"
	PaymentStatusRejected       PaymentStatus = "rejected"
	PaymentStatusCancelled      PaymentStatus = "cancelled"
)

// Open reports whether the payment still blocks new payment attempts by
// the same user (the admission-control gate).
func (s PaymentStatus) Open() bool {
	return s == PaymentStatusPending || s == PaymentStatusProofSubmitted
}

// Payment records one manual funding attempt tied to exactly one order.
// UserID is denormalized from the order so the single-open-payment
// constraint can live on this table. Amount is whole currency units.
type Payment struct {
	ID              int64
	OrderID         int64
	UserID          int64
	Method          PaymentMethod
	Currency        string
	Amount          int64
	Status          PaymentStatus
	ProofFileID     *string
	ApprovedByAdmin *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func NewPayment(orderID, userID int64, method PaymentMethod, amount int64) (*Payment, error) {
	if orderID <= 0 || userID <= 0 || !method.Valid() || amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Payment{
		OrderID:   orderID,
		UserID:    userID,
		Method:    method,
		Currency:  method.Currency(),
		Amount:    amount,
		Status:    PaymentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
