package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-commerce-bot/internal/domain"
	"telegram-commerce-bot/internal/domain/model"
	"telegram-commerce-bot/internal/domain/ports/repository"
)

// Ensure orderRepo implements repository.OrderRepository
var _ repository.OrderRepository = (*orderRepo)(nil)

type orderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

func (r *orderRepo) Create(ctx context.Context, tx repository.Tx, o *model.Order) (int64, error) {
	payload, err := o.Selection.MarshalPayload()
	if err != nil {
		return 0, domain.ErrValidation
	}
	const q = `
INSERT INTO orders (user_id, direction, product, selection, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id;`
	row, err := pickRow(ctx, r.pool, tx, q, o.UserID, o.Direction, o.Product, payload, o.Status, o.CreatedAt)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, mapWriteErr(err)
	}
	return id, nil
}

func (r *orderRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Order, error) {
	const q = `SELECT id, user_id, direction, product, selection, status, created_at FROM orders WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	o := &model.Order{}
	var payload []byte
	if err := row.Scan(&o.ID, &o.UserID, &o.Direction, &o.Product, &payload, &o.Status, &o.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if o.Selection, err = model.UnmarshalPayload(payload); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return o, nil
}

func (r *orderRepo) SetStatus(ctx context.Context, tx repository.Tx, id int64, status model.OrderStatus) error {
	const q = `UPDATE orders SET status=$2 WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, status)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
