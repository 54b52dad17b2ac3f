package domain

import "time"

// State enumera los estados del controlador de conversación por usuario.
type State string

const (
	StateChoosing            State = "choosing"
	StateImageChoice         State = "image_choice"
	StateConversation        State = "conversation"
	StateConversationHistory State = "conversation_history"
	StateImageConversation   State = "image_conversation"
)

func (s State) Valid() bool {
	switch s {
	case StateChoosing, StateImageChoice, StateConversation,
		StateConversationHistory, StateImageConversation:
		return true
	}
	return false
}

// SessionState es el snapshot durable del controlador para un usuario.
// Se sobrescribe en cada transición; nunca se serializa la sesión viva
// con el modelo, solo lo necesario para reconstruirla.
type SessionState struct {
	UserID               string    `json:"user_id"`
	State                State     `json:"state"`
	ActiveConversationID string    `json:"active_conversation_id,omitempty"`
	PendingImage         []byte    `json:"pending_image,omitempty"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// DefaultSessionState es el estado inicial y el fallback ante snapshots
// ausentes o corruptos.
func DefaultSessionState(userID string) SessionState {
	return SessionState{
		UserID: userID,
		State:  StateChoosing,
	}
}
