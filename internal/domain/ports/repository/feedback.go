package repository

import (
	"context"

	"telegram-commerce-bot/internal/domain/model"
)

type FeedbackRepository interface {
	// UpsertBlank creates the answer row if absent; re-starting the survey
	// is a no-op on existing answers.
	UpsertBlank(ctx context.Context, tx Tx, userID, subscriptionID int64) error
	// SetAnswer stores one answer. value is a string for single-choice
	// fields and []string for the multi-select field.
	SetAnswer(ctx context.Context, tx Tx, userID, subscriptionID int64, field model.FeedbackField, value any) error
	Get(ctx context.Context, tx Tx, userID, subscriptionID int64) (*model.YogaFeedback, error)
}
