// Package migrations applies the database schema. Statements are
// idempotent so Apply can run at every startup.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS channels (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		theme       TEXT NOT NULL DEFAULT '',
		language    TEXT NOT NULL DEFAULT '',
		max_posts   INTEGER NOT NULL DEFAULT 100,
		token       TEXT NOT NULL UNIQUE,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id               TEXT PRIMARY KEY,
		channel_id       TEXT NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
		title            TEXT NOT NULL,
		link             TEXT NOT NULL,
		content          TEXT NOT NULL,
		content_markdown TEXT NOT NULL DEFAULT '',
		summary          TEXT NOT NULL DEFAULT '',
		author           TEXT NOT NULL DEFAULT '',
		idempotency_key  TEXT,
		pub_date         TIMESTAMPTZ NOT NULL,
		seq              BIGSERIAL
	)`,
	`CREATE TABLE IF NOT EXISTS post_tags (
		post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		tag     TEXT NOT NULL,
		PRIMARY KEY (post_id, tag)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_posts_channel_idempotency
		ON posts (channel_id, idempotency_key)
		WHERE idempotency_key IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_posts_channel_pub_date
		ON posts (channel_id, pub_date DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_post_tags_tag ON post_tags (tag)`,
}

// Apply executes every schema statement in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
