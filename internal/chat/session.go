package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/samuelgsrmgc/geminibot/internal/domain"
	"github.com/samuelgsrmgc/geminibot/internal/llm"
)

var (
	// ErrModelUnavailable indica un error de configuración al resolver
	// el modelo. Fatal para la sesión; no se reintenta.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrModelCall indica la falla de una llamada individual. Se
	// recupera localmente: el controlador responde el fallback y el
	// estado no cambia.
	ErrModelCall = errors.New("model call failed")
)

const titlePrompt = "Write a one-line short title up to 10 words for this conversation in plain text."

// Session es el handle vivo de un intercambio con el modelo. Solo
// existe en memoria; al retomar una conversación se reconstruye desde
// el historial persistido.
type Session struct {
	ID     string
	Vision bool
	model  string

	transcript []llm.ChatMessage
	turns      int
	hadHistory bool
}

// Turns devuelve la cantidad de intercambios completados en esta sesión.
func (s *Session) Turns() int { return s.turns }

// Fresh indica si la sesión empezó sin historial previo.
func (s *Session) Fresh() bool { return !s.hadHistory }

// Adapter envuelve las llamadas al modelo generativo con la política de
// recuperación local: timeout acotado por llamada y errores convertidos
// en sentinelas que el controlador traduce a respuestas de fallback.
type Adapter struct {
	client      llm.Client
	model       string
	visionModel string
	timeout     time.Duration
	language    string
	logger      *zap.Logger
}

func NewAdapter(client llm.Client, model, visionModel string, timeout time.Duration, language string, logger *zap.Logger) *Adapter {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if language == "" {
		language = "en"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		client:      client,
		model:       model,
		visionModel: visionModel,
		timeout:     timeout,
		language:    language,
		logger:      logger,
	}
}

// Open inicia una sesión, opcionalmente reponiendo turnos previos para
// que el modelo tenga contexto. Con seedImage la sesión abre en modo
// visión. La instrucción de sistema solo se inyecta en sesiones de
// texto nuevas; una conversación de visión retomada conserva el
// registro que ya fija su transcript.
func (a *Adapter) Open(history []domain.Message, seedImage []byte) (*Session, error) {
	vision := len(seedImage) > 0
	for _, m := range history {
		if len(m.Image) > 0 {
			vision = true
			break
		}
	}

	model := a.model
	if vision {
		model = a.visionModel
	}
	if a.client == nil || model == "" {
		return nil, ErrModelUnavailable
	}

	s := &Session{
		ID:         uuid.NewString(),
		Vision:     vision,
		model:      model,
		hadHistory: len(history) > 0,
	}

	if !vision {
		s.transcript = append(s.transcript, llm.ChatMessage{
			Role: llm.RoleSystem,
			Text: a.systemInstruction(),
		})
	} else if len(seedImage) > 0 {
		s.transcript = append(s.transcript, llm.ChatMessage{
			Role:  llm.RoleUser,
			Image: seedImage,
		})
	}

	for _, m := range history {
		role := llm.RoleUser
		if m.Role == domain.RoleAssistant {
			role = llm.RoleAssistant
		}
		s.transcript = append(s.transcript, llm.ChatMessage{
			Role:  role,
			Text:  m.Content,
			Image: m.Image,
		})
	}

	a.logger.Info("chat session opened",
		zap.String("session_id", s.ID),
		zap.String("model", model),
		zap.Bool("vision", vision),
		zap.Int("history_len", len(history)),
	)
	return s, nil
}

// Send envía un turno de usuario y devuelve la respuesta del modelo.
// Ante cualquier falla el transcript queda como estaba, para que un
// turno perdido no corrompa la sesión ni el historial persistido.
func (a *Adapter) Send(ctx context.Context, s *Session, text string, image []byte) (string, error) {
	if s == nil {
		return "", ErrModelUnavailable
	}

	msgs := append(s.transcript, llm.ChatMessage{
		Role:  llm.RoleUser,
		Text:  text,
		Image: image,
	})

	reply, err := a.complete(ctx, s.model, msgs)
	if err != nil {
		return "", err
	}

	s.transcript = append(msgs, llm.ChatMessage{
		Role: llm.RoleAssistant,
		Text: reply,
	})
	s.turns++
	return reply, nil
}

// DescribeImage hace una petición de visión suelta, fuera de cualquier
// sesión abierta.
func (a *Adapter) DescribeImage(ctx context.Context, image []byte, prompt string) (string, error) {
	if a.client == nil || a.visionModel == "" {
		return "", ErrModelUnavailable
	}
	if prompt == "" {
		prompt = "Describe this image."
	}
	return a.complete(ctx, a.visionModel, []llm.ChatMessage{
		{Role: llm.RoleUser, Text: prompt, Image: image},
	})
}

// Title pide al modelo un resumen de hasta 10 palabras de la sesión.
// La petición no entra al transcript ni al historial almacenado.
func (a *Adapter) Title(ctx context.Context, s *Session) (string, error) {
	if s == nil {
		return "", ErrModelUnavailable
	}
	msgs := append(append([]llm.ChatMessage{}, s.transcript...), llm.ChatMessage{
		Role: llm.RoleUser,
		Text: titlePrompt,
	})
	title, err := a.complete(ctx, s.model, msgs)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(title), `"`)), nil
}

// Close libera la sesión; idempotente.
func (a *Adapter) Close(s *Session) {
	if s == nil {
		return
	}
	s.transcript = nil
	a.logger.Info("chat session closed", zap.String("session_id", s.ID))
}

func (a *Adapter) complete(ctx context.Context, model string, msgs []llm.ChatMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	reply, err := a.client.Complete(ctx, model, msgs)
	if err != nil {
		a.logger.Warn("model call failed", zap.String("model", model), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrModelCall, err)
	}
	return strings.TrimSpace(reply), nil
}

func (a *Adapter) systemInstruction() string {
	return fmt.Sprintf(
		"You are a helpful assistant with a female persona. Please respond in %s language. "+
			"Please use Telegram-compatible markdown. For example, use *bold* for bold text, "+
			"_italic_ for italic, and `code` for code blocks. Do not use markdown features "+
			"that are not supported by Telegram, such as headers or horizontal rules.",
		a.language,
	)
}
