package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-commerce-bot/internal/domain"
	"telegram-commerce-bot/internal/domain/model"
	"telegram-commerce-bot/internal/domain/ports/repository"
)

// Ensure feedbackRepo implements repository.FeedbackRepository
var _ repository.FeedbackRepository = (*feedbackRepo)(nil)

type feedbackRepo struct{ pool *pgxpool.Pool }

func NewFeedbackRepo(pool *pgxpool.Pool) *feedbackRepo {
	return &feedbackRepo{pool: pool}
}

func (r *feedbackRepo) UpsertBlank(ctx context.Context, tx repository.Tx, userID, subscriptionID int64) error {
	const q = `
INSERT INTO yoga_feedback (user_id, subscription_id)
VALUES ($1, $2)
ON CONFLICT (user_id, subscription_id) DO NOTHING;`
	if _, err := execSQL(ctx, r.pool, tx, q, userID, subscriptionID); err != nil {
		return mapWriteErr(err)
	}
	return nil
}

func (r *feedbackRepo) SetAnswer(ctx context.Context, tx repository.Tx, userID, subscriptionID int64, field model.FeedbackField, value any) error {
	// Column names come only from the FeedbackField whitelist, never from
	// user input.
	if !field.Valid() {
		return domain.ErrInvalidArgument
	}
	var arg interface{}
	switch v := value.(type) {
	case string:
		arg = v
	case []string:
		b, err := json.Marshal(v)
		if err != nil {
			return domain.ErrValidation
		}
		arg = b
	default:
		return domain.ErrInvalidArgument
	}
	q := fmt.Sprintf(`
UPDATE yoga_feedback SET %s=$3, updated_at=NOW()
 WHERE user_id=$1 AND subscription_id=$2;`, field)
	tag, err := execSQL(ctx, r.pool, tx, q, userID, subscriptionID, arg)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *feedbackRepo) Get(ctx context.Context, tx repository.Tx, userID, subscriptionID int64) (*model.YogaFeedback, error) {
	const q = `
SELECT user_id, subscription_id, q1_difficulty, q2_pace, q3_state, q4_format, q5_frequency, q6_preferences, updated_at
  FROM yoga_feedback
 WHERE user_id=$1 AND subscription_id=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, subscriptionID)
	if err != nil {
		return nil, err
	}
	fb := &model.YogaFeedback{}
	var prefs []byte
	if err := row.Scan(&fb.UserID, &fb.SubscriptionID, &fb.Q1Difficulty, &fb.Q2Pace, &fb.Q3State,
		&fb.Q4Format, &fb.Q5Frequency, &prefs, &fb.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &fb.Q6Preferences); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return fb, nil
}
