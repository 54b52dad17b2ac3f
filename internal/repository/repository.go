package repository

import (
	"context"
	"errors"

	"github.com/samuelgsrmgc/geminibot/internal/domain"
)

// ErrNotFound señala un id inexistente o que no pertenece al usuario.
var ErrNotFound = errors.New("not found")

// ConversationRepository define el contrato de persistencia para
// conversaciones. Todas las operaciones están acotadas al dueño: un
// usuario nunca puede leer ni modificar filas de otro.
type ConversationRepository interface {
	// Create registra una conversación nueva, opcionalmente con un
	// primer mensaje, y devuelve su id.
	Create(ctx context.Context, ownerUserID string, initial *domain.Message) (string, error)
	// Append agrega un turno al historial. ErrNotFound si el id no
	// existe o no pertenece al dueño.
	Append(ctx context.Context, ownerUserID, conversationID string, msg domain.Message) error
	// SetTitle fija el título una vez derivado del primer intercambio.
	SetTitle(ctx context.Context, ownerUserID, conversationID, title string) error
	// List devuelve una página de resúmenes, más recientes primero,
	// con empate por id descendente para paginación determinista.
	// Páginas pasadas del final devuelven lista vacía, no error.
	List(ctx context.Context, ownerUserID string, page, pageSize int) ([]domain.ConversationSummary, error)
	// Get carga la conversación con su historial completo en orden.
	Get(ctx context.Context, ownerUserID, conversationID string) (domain.Conversation, error)
	// Delete borra la conversación. Idempotente: el segundo borrado de
	// un id que existió es no-op exitoso; ErrNotFound solo si el id
	// nunca existió para ese dueño.
	Delete(ctx context.Context, ownerUserID, conversationID string) error
}

// SnapshotRepository persiste el SessionState de cada usuario para que
// un reinicio del proceso retome a los usuarios donde quedaron.
type SnapshotRepository interface {
	// Save sobrescribe el snapshot del usuario de forma atómica.
	Save(ctx context.Context, state domain.SessionState) error
	// Load devuelve el último snapshot; ante ausencia o corrupción
	// devuelve el estado inicial por defecto, nunca un error de datos.
	Load(ctx context.Context, userID string) (domain.SessionState, error)
	// Clear elimina el snapshot; idempotente.
	Clear(ctx context.Context, userID string) error
}
