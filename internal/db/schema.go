package db

import (
	"context"
	"fmt"
)

// schemaStatements are applied in order on startup. Idempotent by design so
// the api can be restarted without a separate migration step.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS discord_accounts (
		id            BIGSERIAL PRIMARY KEY,
		user_id       TEXT NOT NULL UNIQUE,
		discord_id    TEXT NOT NULL,
		username      TEXT NOT NULL DEFAULT '',
		discriminator TEXT NOT NULL DEFAULT '0',
		avatar        TEXT,
		access_token  TEXT NOT NULL,
		expires_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_discord_accounts_discord_id ON discord_accounts (discord_id)`,
	`CREATE TABLE IF NOT EXISTS events (
		id          BIGSERIAL PRIMARY KEY,
		title       TEXT NOT NULL,
		description TEXT NOT NULL,
		location    TEXT NOT NULL DEFAULT '',
		starts_at   TIMESTAMPTZ NOT NULL,
		ends_at     TIMESTAMPTZ NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_starts_at ON events (starts_at DESC)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id         BIGSERIAL PRIMARY KEY,
		title      TEXT NOT NULL,
		content    TEXT NOT NULL,
		is_team    BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts (created_at DESC)`,
}

// EnsureSchema creates the tables the service needs if they don't exist yet.
func (d *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := d.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema bootstrap failed: %w", err)
		}
	}
	return nil
}
