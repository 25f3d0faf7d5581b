package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type migration struct {
	version int
	sql     string
}

// Migrate applies all pending schema migrations in order. Each migration
// runs in its own transaction together with the version bookkeeping row.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migration (
			version    INT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var current int
	if err := pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migration`).Scan(&current); err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := runMigration(ctx, pool, m); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
		log.Info().Int("version", m.version).Msg("applied schema migration")
	}
	return nil
}

func runMigration(ctx context.Context, pool *pgxpool.Pool, m migration) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, m.sql); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO schema_migration (version) VALUES ($1)`, m.version); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

var migrations = []migration{
	{version: 1, sql: migration001SocialGraph},
}

const migration001SocialGraph = `
CREATE TABLE IF NOT EXISTS user_friend_request (
    id            BIGINT PRIMARY KEY,
    requester_id  BIGINT NOT NULL,
    recipient_id  BIGINT NOT NULL,
    content       TEXT NOT NULL DEFAULT '',
    -- EXPIRED is normally a read-time projection; only admin flows may
    -- store it explicitly
    status        TEXT NOT NULL CHECK (status IN
                      ('PENDING', 'ACCEPTED', 'DECLINED', 'IGNORED', 'CANCELED', 'EXPIRED')),
    reason        TEXT,
    creation_date TIMESTAMPTZ NOT NULL,
    response_date TIMESTAMPTZ,
    CHECK (requester_id <> recipient_id)
);

CREATE INDEX IF NOT EXISTS idx_friend_request_recipient
    ON user_friend_request (recipient_id);
CREATE INDEX IF NOT EXISTS idx_friend_request_requester
    ON user_friend_request (requester_id);

CREATE TABLE IF NOT EXISTS user_relationship (
    owner_id           BIGINT NOT NULL,
    related_user_id    BIGINT NOT NULL,
    blocked            BOOLEAN NOT NULL DEFAULT false,
    establishment_date TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (owner_id, related_user_id)
);

CREATE TABLE IF NOT EXISTS user_relationship_group (
    owner_id      BIGINT NOT NULL,
    group_index   INT NOT NULL CHECK (group_index >= 0),
    name          TEXT NOT NULL,
    creation_date TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (owner_id, group_index)
);

CREATE TABLE IF NOT EXISTS user_relationship_group_member (
    owner_id        BIGINT NOT NULL,
    group_index     INT NOT NULL,
    related_user_id BIGINT NOT NULL,
    join_date       TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (owner_id, group_index, related_user_id)
);

CREATE INDEX IF NOT EXISTS idx_group_member_related
    ON user_relationship_group_member (owner_id, related_user_id);

CREATE TABLE IF NOT EXISTS user_version (
    user_id             BIGINT PRIMARY KEY,
    sent_requests       TIMESTAMPTZ,
    received_requests   TIMESTAMPTZ,
    relationship_groups TIMESTAMPTZ,
    group_members       TIMESTAMPTZ
);
`
