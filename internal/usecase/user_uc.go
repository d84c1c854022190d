package usecase

import (
	"context"

	"telegram-commerce-bot/internal/domain/model"
	"telegram-commerce-bot/internal/domain/ports/repository"
	"telegram-commerce-bot/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

// UserUseCase exposes user identity operations used by every inbound flow.
type UserUseCase interface {
	// RegisterOrFetch upserts the Telegram identity. Safe to call on every
	// inbound event; profile changes are absorbed in place.
	RegisterOrFetch(ctx context.Context, tgID int64, username, firstName string) (*model.User, error)
	GetByTgID(ctx context.Context, tgID int64) (*model.User, error)
}

type userUC struct {
	users repository.UserRepository
	log   *zerolog.Logger
}

func NewUserUseCase(users repository.UserRepository, logger *zerolog.Logger) *userUC {
	l := logger.With().Str("component", "UserUC").Logger()
	return &userUC{users: users, log: &l}
}

func (u *userUC) RegisterOrFetch(ctx context.Context, tgID int64, username, firstName string) (*model.User, error) {
	defer logging.TraceDuration(u.log, "UserUC.RegisterOrFetch")()
	return u.users.Upsert(ctx, repository.NoTX, tgID, username, firstName)
}

func (u *userUC) GetByTgID(ctx context.Context, tgID int64) (*model.User, error) {
	defer logging.TraceDuration(u.log, "UserUC.GetByTgID")()
	return u.users.FindByTgID(ctx, repository.NoTX, tgID)
}
