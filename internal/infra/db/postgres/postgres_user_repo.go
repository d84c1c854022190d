package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-commerce-bot/internal/domain"
	"telegram-commerce-bot/internal/domain/model"
	"telegram-commerce-bot/internal/domain/ports/repository"
	"telegram-commerce-bot/internal/infra/metrics"
)

// Ensure userRepo implements repository.UserRepository
var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

func (r *userRepo) Upsert(ctx context.Context, tx repository.Tx, tgUserID int64, username, firstName string) (*model.User, error) {
	// xmax = 0 distinguishes a fresh insert from an update of an existing
	// row, which feeds the registration counter.
	const q = `
INSERT INTO users (tg_user_id, username, first_name)
VALUES ($1, $2, $3)
ON CONFLICT (tg_user_id) DO UPDATE SET username=$2, first_name=$3
RETURNING id, tg_user_id, username, first_name, created_at, (xmax = 0);`
	row, err := pickRow(ctx, r.pool, tx, q, tgUserID, username, firstName)
	if err != nil {
		return nil, err
	}
	u := &model.User{}
	var inserted bool
	if err := row.Scan(&u.ID, &u.TgUserID, &u.Username, &u.FirstName, &u.CreatedAt, &inserted); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if inserted {
		metrics.IncUsersRegistered()
	}
	return u, nil
}

func (r *userRepo) FindByTgID(ctx context.Context, tx repository.Tx, tgUserID int64) (*model.User, error) {
	const q = `SELECT id, tg_user_id, username, first_name, created_at FROM users WHERE tg_user_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, tgUserID)
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.User, error) {
	const q = `SELECT id, tg_user_id, username, first_name, created_at FROM users WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.TgUserID, &u.Username, &u.FirstName, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return u, nil
}
