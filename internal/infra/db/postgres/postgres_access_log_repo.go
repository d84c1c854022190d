package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-commerce-bot/internal/domain/ports/repository"
)

// Ensure accessLogRepo implements repository.ChannelAccessLogRepository
var _ repository.ChannelAccessLogRepository = (*accessLogRepo)(nil)

type accessLogRepo struct{ pool *pgxpool.Pool }

func NewAccessLogRepo(pool *pgxpool.Pool) *accessLogRepo {
	return &accessLogRepo{pool: pool}
}

func (r *accessLogRepo) Append(ctx context.Context, tx repository.Tx, userID int64, channelKey string, inviteLink *string) error {
	const q = `INSERT INTO channel_access_log (user_id, channel_key, invite_link) VALUES ($1, $2, $3);`
	if _, err := execSQL(ctx, r.pool, tx, q, userID, channelKey, inviteLink); err != nil {
		return mapWriteErr(err)
	}
	return nil
}

func (r *accessLogRepo) Revoke(ctx context.Context, tx repository.Tx, userID int64, channelKey string) error {
	const q = `
UPDATE channel_access_log SET revoked_at=NOW()
 WHERE user_id=$1 AND channel_key=$2 AND revoked_at IS NULL;`
	if _, err := execSQL(ctx, r.pool, tx, q, userID, channelKey); err != nil {
		return mapWriteErr(err)
	}
	return nil
}
