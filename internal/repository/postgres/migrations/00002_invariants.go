package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upInvariants, downInvariants)
}

var invariantsUp = []string{
	// at most one running timer per session
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_session_timers_running
		ON session_timers (session_id) WHERE end_time IS NULL`,
	// at most one active session per unordered pair
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_sessions_active_pair
		ON sessions (LEAST(user1_id, user2_id), GREATEST(user1_id, user2_id)) WHERE is_active`,
	`ALTER TABLE sessions ADD CONSTRAINT chk_sessions_distinct_users CHECK (user1_id <> user2_id)`,
	`ALTER TABLE users ADD CONSTRAINT chk_users_credits_non_negative CHECK (credits >= 0)`,
	`ALTER TABLE bank ADD CONSTRAINT chk_bank_non_negative CHECK (total_credits >= 0)`,
	`CREATE INDEX IF NOT EXISTS idx_session_events_cursor ON session_events (session_id, id)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_messages_cursor ON chat_messages (session_id, id)`,
	`INSERT INTO bank (id, total_credits, updated_at) VALUES (1, 0, now()) ON CONFLICT (id) DO NOTHING`,
}

var invariantsDown = []string{
	`DELETE FROM bank WHERE id = 1`,
	`DROP INDEX IF EXISTS idx_chat_messages_cursor`,
	`DROP INDEX IF EXISTS idx_session_events_cursor`,
	`ALTER TABLE bank DROP CONSTRAINT IF EXISTS chk_bank_non_negative`,
	`ALTER TABLE users DROP CONSTRAINT IF EXISTS chk_users_credits_non_negative`,
	`ALTER TABLE sessions DROP CONSTRAINT IF EXISTS chk_sessions_distinct_users`,
	`DROP INDEX IF EXISTS uniq_sessions_active_pair`,
	`DROP INDEX IF EXISTS uniq_session_timers_running`,
}

func upInvariants(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx, invariantsUp)
}

func downInvariants(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx, invariantsDown)
}

func execAll(ctx context.Context, tx *sql.Tx, statements []string) error {
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
