package postgres

import (
	"context"
	"time"

	"telegram-commerce-bot/internal/config"
	"telegram-commerce-bot/internal/infra/metrics"

	"github.com/jackc/pgx/v4/pgxpool"
)

// Connect opens the pool and ensures the schema is in place.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.Connect(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// StartPoolStats exports connection-pool gauges until ctx is done.
func StartPoolStats(ctx context.Context, pool *pgxpool.Pool) {
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st := pool.Stat()
				metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
			}
		}
	}()
}

// The partial unique index on payments is the admission gate: at most one
// open payment per user, enforced where it cannot be raced.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id          BIGSERIAL PRIMARY KEY,
    tg_user_id  BIGINT NOT NULL UNIQUE,
    username    TEXT NOT NULL DEFAULT '',
    first_name  TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS orders (
    id          BIGSERIAL PRIMARY KEY,
    user_id     BIGINT NOT NULL REFERENCES users(id),
    direction   TEXT NOT NULL,
    product     TEXT NOT NULL,
    selection   JSONB NOT NULL DEFAULT '{}',
    status      TEXT NOT NULL DEFAULT 'draft',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS payments (
    id                BIGSERIAL PRIMARY KEY,
    order_id          BIGINT NOT NULL REFERENCES orders(id),
    user_id           BIGINT NOT NULL REFERENCES users(id),
    method            TEXT NOT NULL,
    currency          TEXT NOT NULL,
    amount            BIGINT NOT NULL,
    status            TEXT NOT NULL DEFAULT 'pending',
    proof_file_id     TEXT,
    approved_by_admin BIGINT,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_payments_one_open_per_user
    ON payments (user_id)
    WHERE status IN ('pending', 'proof_submitted');

CREATE TABLE IF NOT EXISTS subscriptions (
    id               BIGSERIAL PRIMARY KEY,
    user_id          BIGINT NOT NULL UNIQUE REFERENCES users(id),
    product          TEXT NOT NULL,
    status           TEXT NOT NULL DEFAULT 'active',
    starts_at        TIMESTAMPTZ NOT NULL,
    expires_at       TIMESTAMPTZ,
    last_payment_id  BIGINT REFERENCES payments(id),
    channel_id       BIGINT NOT NULL DEFAULT 0,
    joined_at        TIMESTAMPTZ,
    feedback_sent_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS channel_access_log (
    id          BIGSERIAL PRIMARY KEY,
    user_id     BIGINT NOT NULL REFERENCES users(id),
    channel_key TEXT NOT NULL,
    invite_link TEXT,
    granted_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    revoked_at  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS yoga_feedback (
    id              BIGSERIAL PRIMARY KEY,
    user_id         BIGINT NOT NULL REFERENCES users(id),
    subscription_id BIGINT NOT NULL REFERENCES subscriptions(id),
    q1_difficulty   TEXT,
    q2_pace         TEXT,
    q3_state        TEXT,
    q4_format       TEXT,
    q5_frequency    TEXT,
    q6_preferences  JSONB NOT NULL DEFAULT '[]',
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (user_id, subscription_id)
);
`

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
