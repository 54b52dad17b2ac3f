package domain

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message es un turno inmutable dentro de una conversación.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Image          []byte    `json:"image,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Conversation agrupa los turnos de un usuario con el asistente.
type Conversation struct {
	ID          string    `json:"id"`
	OwnerUserID string    `json:"owner_user_id"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"created_at"`
	History     []Message `json:"history"`
}

// ConversationSummary es la fila que ve el usuario al paginar su historial.
type ConversationSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// HasImage indica si algún turno almacenado lleva imagen adjunta. Una
// conversación se reabre en modo visión exactamente cuando esto es true.
func (c Conversation) HasImage() bool {
	for _, m := range c.History {
		if len(m.Image) > 0 {
			return true
		}
	}
	return false
}

// FirstImage devuelve la primera imagen adjunta del historial, o nil.
func (c Conversation) FirstImage() []byte {
	for _, m := range c.History {
		if len(m.Image) > 0 {
			return m.Image
		}
	}
	return nil
}
