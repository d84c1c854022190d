package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-commerce-bot/internal/domain"
	"telegram-commerce-bot/internal/domain/model"
	"telegram-commerce-bot/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subColumns = `id, user_id, product, status, starts_at, expires_at, last_payment_id, channel_id, joined_at, feedback_sent_at`

func (r *subscriptionRepo) Create(ctx context.Context, tx repository.Tx, s *model.Subscription) (int64, error) {
	const q = `
INSERT INTO subscriptions (user_id, product, status, starts_at, expires_at, last_payment_id, channel_id, joined_at, feedback_sent_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id;`
	row, err := pickRow(ctx, r.pool, tx, q, s.UserID, s.Product, s.Status, s.StartsAt, s.ExpiresAt,
		s.LastPaymentID, s.ChannelID, s.JoinedAt, s.FeedbackSentAt)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, mapWriteErr(err)
	}
	return id, nil
}

func (r *subscriptionRepo) FindCurrentByUser(ctx context.Context, tx repository.Tx, userID int64) (*model.Subscription, error) {
	q := `SELECT ` + subColumns + ` FROM subscriptions WHERE user_id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
UPDATE subscriptions
   SET product=$2, status=$3, starts_at=$4, expires_at=$5, last_payment_id=$6,
       channel_id=$7, joined_at=$8, feedback_sent_at=$9
 WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, s.ID, s.Product, s.Status, s.StartsAt, s.ExpiresAt,
		s.LastPaymentID, s.ChannelID, s.JoinedAt, s.FeedbackSentAt)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *subscriptionRepo) MarkExpired(ctx context.Context, tx repository.Tx, id int64) error {
	const q = `UPDATE subscriptions SET status='expired' WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *subscriptionRepo) ListDue(ctx context.Context, tx repository.Tx, now time.Time) ([]*model.Subscription, error) {
	const q = `
SELECT ` + subColumns + `
  FROM subscriptions
 WHERE status='active' AND expires_at IS NOT NULL AND expires_at <= $1
 ORDER BY expires_at ASC;`
	return r.list(ctx, tx, q, now)
}

func (r *subscriptionRepo) ListExpiringOn(ctx context.Context, tx repository.Tx, day time.Time) ([]*model.Subscription, error) {
	const q = `
SELECT ` + subColumns + `
  FROM subscriptions
 WHERE status='active'
   AND feedback_sent_at IS NULL
   AND expires_at >= $1 AND expires_at < $2
 ORDER BY expires_at ASC;`
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return r.list(ctx, tx, q, start, start.AddDate(0, 0, 1))
}

func (r *subscriptionRepo) MarkFeedbackSent(ctx context.Context, tx repository.Tx, id int64) error {
	const q = `UPDATE subscriptions SET feedback_sent_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *subscriptionRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Subscription, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s := &model.Subscription{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.Product, &s.Status, &s.StartsAt, &s.ExpiresAt,
			&s.LastPaymentID, &s.ChannelID, &s.JoinedAt, &s.FeedbackSentAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, s)
	}
	return out, nil
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	s := &model.Subscription{}
	if err := row.Scan(&s.ID, &s.UserID, &s.Product, &s.Status, &s.StartsAt, &s.ExpiresAt,
		&s.LastPaymentID, &s.ChannelID, &s.JoinedAt, &s.FeedbackSentAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}
