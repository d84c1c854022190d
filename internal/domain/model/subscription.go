package model

import (
	"time"

	"telegram-commerce-bot/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive  SubscriptionStatus = "active"
	SubscriptionStatusExpired SubscriptionStatus = "expired"
)

// Subscription is a user's time-limited access to a plan's channel. One
// logical current subscription per user: renewals and plan changes update
// the row in place, only the first join inserts.
type Subscription struct {
	ID             int64
	UserID         int64
	Product        Product
	Status         SubscriptionStatus
	StartsAt       time.Time
	ExpiresAt      *time.Time // nil = unlimited
	LastPaymentID  *int64
	ChannelID      int64 // 0 when the plan has no group channel
	JoinedAt       *time.Time
	FeedbackSentAt *time.Time
}

func NewSubscription(userID int64, product Product, expiresAt *time.Time, paymentID int64, channelID int64) (*Subscription, error) {
	if userID <= 0 || !product.IsYogaPlan() {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Subscription{
		UserID:        userID,
		Product:       product,
		Status:        SubscriptionStatusActive,
		StartsAt:      now,
		ExpiresAt:     expiresAt,
		LastPaymentID: &paymentID,
		ChannelID:     channelID,
		JoinedAt:      &now,
	}, nil
}

// IsActive is the single definition of liveness: status active and not past
// expiry. A nil ExpiresAt never expires.
func (s *Subscription) IsActive(now time.Time) bool {
	if s == nil || s.Status != SubscriptionStatusActive {
		return false
	}
	return s.ExpiresAt == nil || s.ExpiresAt.After(now)
}
