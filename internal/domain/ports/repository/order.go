package repository

import (
	"context"

	"telegram-commerce-bot/internal/domain/model"
)

type OrderRepository interface {
	// Create inserts the order and returns its id.
	Create(ctx context.Context, tx Tx, o *model.Order) (int64, error)
	FindByID(ctx context.Context, tx Tx, id int64) (*model.Order, error)
	SetStatus(ctx context.Context, tx Tx, id int64, status model.OrderStatus) error
}
