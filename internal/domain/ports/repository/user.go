package repository

import (
	"context"

	"telegram-commerce-bot/internal/domain/model"
)

// UserRepository persists Telegram identities. Upsert is idempotent and
// refreshes the profile fields on every contact.
type UserRepository interface {
	Upsert(ctx context.Context, tx Tx, tgUserID int64, username, firstName string) (*model.User, error)
	FindByTgID(ctx context.Context, tx Tx, tgUserID int64) (*model.User, error)
	FindByID(ctx context.Context, tx Tx, id int64) (*model.User, error)
}
