package usecase

import (
	"errors"

	"telegram-commerce-bot/internal/domain"
)

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
