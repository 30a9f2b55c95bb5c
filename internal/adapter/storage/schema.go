package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// InitSchema creates the tables on startup if they are missing. Balances and
// amounts are BIGINT minor units; the CHECK constraints are a last line of
// defence behind the coordinator's own validation.
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			account_number VARCHAR(12) PRIMARY KEY,
			owner_name     VARCHAR(255) NOT NULL,
			email          VARCHAR(255) UNIQUE NOT NULL,
			password_hash  VARCHAR(255) NOT NULL,
			pin_hash       VARCHAR(255) NOT NULL,
			balance        BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id           BIGSERIAL PRIMARY KEY,
			from_account VARCHAR(12),
			to_account   VARCHAR(12) NOT NULL,
			amount       BIGINT NOT NULL CHECK (amount > 0),
			kind         VARCHAR(20) NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_from ON transactions (from_account, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_to ON transactions (to_account, id DESC)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token_hash     VARCHAR(64) PRIMARY KEY,
			account_number VARCHAR(12) NOT NULL REFERENCES accounts (account_number),
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at     TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS idempotency_keys (
			key_id          UUID PRIMARY KEY,
			response_status INT NOT NULL,
			response_body   BYTEA NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS webhook_jobs (
			id          UUID PRIMARY KEY,
			url         TEXT NOT NULL,
			payload     JSONB NOT NULL,
			status      VARCHAR(20) NOT NULL DEFAULT 'PENDING',
			attempts    INT NOT NULL DEFAULT 0,
			next_run_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_webhook_jobs_pending ON webhook_jobs (status, next_run_at)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
