package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/samuelgsrmgc/geminibot/internal/domain"
)

// SQLiteStore implementa ConversationRepository y SnapshotRepository
// sobre un archivo SQLite, para despliegues de binario único sin
// Postgres disponible.
type SQLiteStore struct {
	db      *sql.DB
	logger  *zap.Logger
	writeMu sync.Mutex // serializes writes to avoid SQLITE_BUSY
}

// NewSQLiteStore abre (o crea) la base en dbPath e inicializa el esquema.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, logger: logger}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	const query = `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		owner_user_id TEXT NOT NULL,
		title TEXT,
		created_at INTEGER NOT NULL,
		deleted_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_owner ON conversations(owner_user_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		image BLOB,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);

	CREATE TABLE IF NOT EXISTS session_states (
		user_id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		active_conversation_id TEXT,
		pending_image BLOB,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifica conectividad con la base.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close cierra la conexión.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Create(ctx context.Context, ownerUserID string, initial *domain.Message) (string, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	id := uuid.NewString()
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin create conversation: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO conversations (id, owner_user_id, title, created_at) VALUES (?, ?, NULL, ?)`,
		id, ownerUserID, now.UnixNano(),
	)
	if err != nil {
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
		_, err = tx.ExecContext(ctx,
			`INSERT INTO messages (id, conversation_id, role, content, image, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			msg.ID, id, string(msg.Role), msg.Content, nullableBytes(msg.Image), msg.CreatedAt.UnixNano(),
		)
		if err != nil {
			return "", fmt.Errorf("insert initial message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit create conversation: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) Append(ctx context.Context, ownerUserID, conversationID string, msg domain.Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.owned(ctx, ownerUserID, conversationID); err != nil {
		return err
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, image, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, conversationID, string(msg.Role), msg.Content, nullableBytes(msg.Image), msg.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SetTitle(ctx context.Context, ownerUserID, conversationID, title string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET title = ? WHERE id = ? AND owner_user_id = ? AND deleted_at IS NULL AND title IS NULL`,
		title, conversationID, ownerUserID,
	)
	if err != nil {
		return fmt.Errorf("set title: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, ownerUserID string, page, pageSize int) ([]domain.ConversationSummary, error) {
	if page < 0 || pageSize <= 0 {
		return []domain.ConversationSummary{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, COALESCE(title, ''), created_at
		 FROM conversations
		 WHERE owner_user_id = ? AND deleted_at IS NULL
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		ownerUserID, pageSize, page*pageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	summaries := []domain.ConversationSummary{}
	for rows.Next() {
		var (
			summary   domain.ConversationSummary
			createdAt int64
		)
		if err := rows.Scan(&summary.ID, &summary.Title, &createdAt); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		summary.CreatedAt = time.Unix(0, createdAt).UTC()
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return summaries, nil
}

func (s *SQLiteStore) Get(ctx context.Context, ownerUserID, conversationID string) (domain.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_user_id, COALESCE(title, ''), created_at
		 FROM conversations
		 WHERE id = ? AND owner_user_id = ? AND deleted_at IS NULL`,
		conversationID, ownerUserID,
	)

	var (
		conv      domain.Conversation
		createdAt int64
	)
	err := row.Scan(&conv.ID, &conv.OwnerUserID, &conv.Title, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Conversation{}, ErrNotFound
	}
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	conv.CreatedAt = time.Unix(0, createdAt).UTC()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, image, created_at
		 FROM messages
		 WHERE conversation_id = ?
		 ORDER BY created_at ASC, id ASC`,
		conversationID,
	)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			msg       domain.Message
			role      string
			image     []byte
			createdAt int64
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &image, &createdAt); err != nil {
			return domain.Conversation{}, fmt.Errorf("scan message row: %w", err)
		}
		msg.Role = domain.Role(role)
		msg.Image = image
		msg.CreatedAt = time.Unix(0, createdAt).UTC()
		conv.History = append(conv.History, msg)
	}
	if err := rows.Err(); err != nil {
		return domain.Conversation{}, fmt.Errorf("iterate messages: %w", err)
	}
	return conv, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, ownerUserID, conversationID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	result, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET deleted_at = ? WHERE id = ? AND owner_user_id = ? AND deleted_at IS NULL`,
		time.Now().UTC().UnixNano(), conversationID, ownerUserID,
	)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	// Sin filas afectadas: o ya estaba borrada (no-op exitoso) o nunca
	// existió para el dueño.
	var one int
	err = s.db.QueryRowContext(ctx,
		`SELECT 1 FROM conversations WHERE id = ? AND owner_user_id = ?`,
		conversationID, ownerUserID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check deleted conversation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) owned(ctx context.Context, ownerUserID, conversationID string) error {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM conversations WHERE id = ? AND owner_user_id = ? AND deleted_at IS NULL`,
		conversationID, ownerUserID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check conversation owner: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, state domain.SessionState) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var activeID interface{}
	if state.ActiveConversationID != "" {
		activeID = state.ActiveConversationID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_states (user_id, state, active_conversation_id, pending_image, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			state = excluded.state,
			active_conversation_id = excluded.active_conversation_id,
			pending_image = excluded.pending_image,
			updated_at = excluded.updated_at`,
		state.UserID, string(state.State), activeID,
		nullableBytes(state.PendingImage), time.Now().UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, userID string) (domain.SessionState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT state, active_conversation_id, pending_image, updated_at
		 FROM session_states
		 WHERE user_id = ?`,
		userID,
	)

	var (
		state    string
		activeID sql.NullString
		pending  []byte
		updated  int64
	)
	err := row.Scan(&state, &activeID, &pending, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultSessionState(userID), nil
	}
	if err != nil {
		return domain.SessionState{}, fmt.Errorf("load session state: %w", err)
	}

	st := domain.SessionState{
		UserID:               userID,
		State:                domain.State(state),
		ActiveConversationID: activeID.String,
		PendingImage:         pending,
		UpdatedAt:            time.Unix(0, updated).UTC(),
	}
	if !st.State.Valid() {
		s.logger.Warn("corrupt session snapshot, resetting",
			zap.String("user_id", userID),
			zap.String("state", state),
		)
		return domain.DefaultSessionState(userID), nil
	}
	return st, nil
}

func (s *SQLiteStore) Clear(ctx context.Context, userID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_states WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear session state: %w", err)
	}
	return nil
}
