package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samuelgsrmgc/geminibot/internal/domain"
)

// PgConversationRepository implementa ConversationRepository usando pgxpool.
type PgConversationRepository struct {
	pool *pgxpool.Pool
}

func NewPgConversationRepository(pool *pgxpool.Pool) *PgConversationRepository {
	return &PgConversationRepository{pool: pool}
}

func (r *PgConversationRepository) Create(ctx context.Context, ownerUserID string, initial *domain.Message) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin create conversation: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertConv = `
		INSERT INTO conversations (id, owner_user_id, title, created_at)
		VALUES ($1, $2, NULL, $3)
	`
	if _, err := tx.Exec(ctx, insertConv, id, ownerUserID, now); err != nil {
		return "", fmt.Errorf("insert conversation: %w", err)
	}

	if initial != nil {
		msg := *initial
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = now
		}
		if _, err := tx.Exec(ctx, insertMessageSQL, msg.ID, id, string(msg.Role), msg.Content, nullableBytes(msg.Image), msg.CreatedAt); err != nil {
			return "", fmt.Errorf("insert initial message: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit create conversation: %w", err)
	}
	return id, nil
}

const insertMessageSQL = `
	INSERT INTO messages (id, conversation_id, role, content, image, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
`

func (r *PgConversationRepository) Append(ctx context.Context, ownerUserID, conversationID string, msg domain.Message) error {
	if err := r.owned(ctx, ownerUserID, conversationID); err != nil {
		return err
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, insertMessageSQL,
		msg.ID, conversationID, string(msg.Role), msg.Content,
		nullableBytes(msg.Image), msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *PgConversationRepository) SetTitle(ctx context.Context, ownerUserID, conversationID, title string) error {
	const query = `
		UPDATE conversations SET title = $1
		WHERE id = $2 AND owner_user_id = $3 AND deleted_at IS NULL AND title IS NULL
	`
	if _, err := r.pool.Exec(ctx, query, title, conversationID, ownerUserID); err != nil {
		return fmt.Errorf("set title: %w", err)
	}
	return nil
}

func (r *PgConversationRepository) List(ctx context.Context, ownerUserID string, page, pageSize int) ([]domain.ConversationSummary, error) {
	if page < 0 || pageSize <= 0 {
		return []domain.ConversationSummary{}, nil
	}

	const query = `
		SELECT id, COALESCE(title, ''), created_at
		FROM conversations
		WHERE owner_user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, ownerUserID, pageSize, page*pageSize)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	summaries := []domain.ConversationSummary{}
	for rows.Next() {
		var s domain.ConversationSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return summaries, nil
}

func (r *PgConversationRepository) Get(ctx context.Context, ownerUserID, conversationID string) (domain.Conversation, error) {
	const convQuery = `
		SELECT id, owner_user_id, COALESCE(title, ''), created_at
		FROM conversations
		WHERE id = $1 AND owner_user_id = $2 AND deleted_at IS NULL
	`
	var conv domain.Conversation
	err := r.pool.QueryRow(ctx, convQuery, conversationID, ownerUserID).Scan(
		&conv.ID, &conv.OwnerUserID, &conv.Title, &conv.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Conversation{}, ErrNotFound
	}
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("get conversation: %w", err)
	}

	const msgQuery = `
		SELECT id, conversation_id, role, content, image, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, msgQuery, conversationID)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			msg   domain.Message
			role  string
			image []byte
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &image, &msg.CreatedAt); err != nil {
			return domain.Conversation{}, fmt.Errorf("scan message row: %w", err)
		}
		msg.Role = domain.Role(role)
		msg.Image = image
		conv.History = append(conv.History, msg)
	}
	if err := rows.Err(); err != nil {
		return domain.Conversation{}, fmt.Errorf("iterate messages: %w", err)
	}
	return conv, nil
}

func (r *PgConversationRepository) Delete(ctx context.Context, ownerUserID, conversationID string) error {
	const query = `
		UPDATE conversations SET deleted_at = $1
		WHERE id = $2 AND owner_user_id = $3 AND deleted_at IS NULL
	`
	tag, err := r.pool.Exec(ctx, query, time.Now().UTC(), conversationID, ownerUserID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Sin filas afectadas: o ya estaba borrada (no-op exitoso, los
	// reintentos de UI deben ser seguros) o nunca existió para el dueño.
	const existsQuery = `SELECT 1 FROM conversations WHERE id = $1 AND owner_user_id = $2`
	var one int
	err = r.pool.QueryRow(ctx, existsQuery, conversationID, ownerUserID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check deleted conversation: %w", err)
	}
	return nil
}

func (r *PgConversationRepository) owned(ctx context.Context, ownerUserID, conversationID string) error {
	const query = `SELECT 1 FROM conversations WHERE id = $1 AND owner_user_id = $2 AND deleted_at IS NULL`
	var one int
	err := r.pool.QueryRow(ctx, query, conversationID, ownerUserID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check conversation owner: %w", err)
	}
	return nil
}

func nullableBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}
