package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/samuelgsrmgc/geminibot/internal/domain"
)

// PgSnapshotRepository implementa SnapshotRepository usando pgxpool.
// El upsert por clave primaria hace la escritura atómica por usuario.
type PgSnapshotRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPgSnapshotRepository(pool *pgxpool.Pool, logger *zap.Logger) *PgSnapshotRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PgSnapshotRepository{pool: pool, logger: logger}
}

func (r *PgSnapshotRepository) Save(ctx context.Context, state domain.SessionState) error {
	const query = `
		INSERT INTO session_states (user_id, state, active_conversation_id, pending_image, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			state = excluded.state,
			active_conversation_id = excluded.active_conversation_id,
			pending_image = excluded.pending_image,
			updated_at = excluded.updated_at
	`
	var activeID interface{}
	if state.ActiveConversationID != "" {
		activeID = state.ActiveConversationID
	}
	_, err := r.pool.Exec(ctx, query,
		state.UserID, string(state.State), activeID,
		nullableBytes(state.PendingImage), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	return nil
}

func (r *PgSnapshotRepository) Load(ctx context.Context, userID string) (domain.SessionState, error) {
	const query = `
		SELECT state, active_conversation_id, pending_image, updated_at
		FROM session_states
		WHERE user_id = $1
	`
	var (
		state    string
		activeID *string
		pending  []byte
		updated  time.Time
	)
	err := r.pool.QueryRow(ctx, query, userID).Scan(&state, &activeID, &pending, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DefaultSessionState(userID), nil
	}
	if err != nil {
		return domain.SessionState{}, fmt.Errorf("load session state: %w", err)
	}

	st := domain.SessionState{
		UserID:       userID,
		State:        domain.State(state),
		PendingImage: pending,
		UpdatedAt:    updated,
	}
	if activeID != nil {
		st.ActiveConversationID = *activeID
	}
	if !st.State.Valid() {
		// Snapshot corrupto: se retoma desde el estado inicial en vez
		// de fallar la siguiente interacción del usuario.
		r.logger.Warn("corrupt session snapshot, resetting",
			zap.String("user_id", userID),
			zap.String("state", state),
		)
		return domain.DefaultSessionState(userID), nil
	}
	return st, nil
}

func (r *PgSnapshotRepository) Clear(ctx context.Context, userID string) error {
	const query = `DELETE FROM session_states WHERE user_id = $1`
	if _, err := r.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("clear session state: %w", err)
	}
	return nil
}
