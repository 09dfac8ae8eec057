package postgres

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		email         TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL,
		avatar        TEXT NOT NULL DEFAULT '',
		phone         TEXT NOT NULL DEFAULT '',
		vehicle_type  TEXT NOT NULL DEFAULT '',
		plate_number  TEXT NOT NULL DEFAULT '',
		is_available  BOOLEAN NOT NULL DEFAULT FALSE,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_idx ON users (LOWER(email))`,
	`CREATE TABLE IF NOT EXISTS deliveries (
		id              TEXT PRIMARY KEY,
		sender_id       TEXT NOT NULL,
		customer_name   TEXT NOT NULL DEFAULT '',
		pickup_address  TEXT NOT NULL,
		dropoff_address TEXT NOT NULL,
		items           JSONB NOT NULL DEFAULT '[]',
		status          TEXT NOT NULL,
		priority        TEXT NOT NULL,
		distance_km     DOUBLE PRECISION NOT NULL DEFAULT 0,
		duration_min    DOUBLE PRECISION NOT NULL DEFAULT 0,
		price           BIGINT NOT NULL CHECK (price >= 0),
		fare_breakdown  JSONB,
		rider           JSONB,
		progress        INTEGER NOT NULL,
		history         JSONB NOT NULL,
		cancel_reason   TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS deliveries_sender_idx ON deliveries (sender_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS wallets (
		account_id TEXT PRIMARY KEY,
		balance    BIGINT NOT NULL CHECK (balance >= 0),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS wallet_transactions (
		seq         BIGSERIAL,
		account_id  TEXT NOT NULL REFERENCES wallets (account_id),
		id          TEXT NOT NULL,
		kind        TEXT NOT NULL,
		amount      BIGINT NOT NULL CHECK (amount > 0),
		description TEXT NOT NULL,
		reference   TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (account_id, id)
	)`,
}

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, pool Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
