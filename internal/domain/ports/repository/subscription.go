package repository

import (
	"context"
	"time"

	"telegram-commerce-bot/internal/domain/model"
)

type SubscriptionRepository interface {
	// Create inserts the user's first subscription row and returns its id.
	Create(ctx context.Context, tx Tx, s *model.Subscription) (int64, error)
	// FindCurrentByUser returns the user's single logical subscription row
	// regardless of status, domain.ErrNotFound when none exists.
	FindCurrentByUser(ctx context.Context, tx Tx, userID int64) (*model.Subscription, error)
	// Save updates the row in place (renewals and plan changes).
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	MarkExpired(ctx context.Context, tx Tx, id int64) error
	// ListDue returns active subscriptions whose expiry has passed.
	ListDue(ctx context.Context, tx Tx, now time.Time) ([]*model.Subscription, error)
	// ListExpiringOn returns active subscriptions expiring on the given
	// calendar day whose survey has not been sent yet.
	ListExpiringOn(ctx context.Context, tx Tx, day time.Time) ([]*model.Subscription, error)
	// MarkFeedbackSent sets feedback_sent_at; called only after delivery.
	MarkFeedbackSent(ctx context.Context, tx Tx, id int64) error
}
