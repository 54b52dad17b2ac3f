package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// InitPgSchema crea las tablas si no existen. Se ejecuta una vez en el
// arranque; los despliegues con migraciones externas pueden omitirlo.
func InitPgSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		owner_user_id TEXT NOT NULL,
		title TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		deleted_at TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_owner ON conversations(owner_user_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		image BYTEA,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);

	CREATE TABLE IF NOT EXISTS session_states (
		user_id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		active_conversation_id TEXT,
		pending_image BYTEA,
		updated_at TIMESTAMPTZ NOT NULL
	);
	`
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}
