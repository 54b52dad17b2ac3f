package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client define la interfaz para generar respuestas con un LLM.
type Client interface {
	Complete(ctx context.Context, model string, messages []ChatMessage) (string, error)
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage es un turno del transcript enviado al proveedor. Un turno
// puede llevar texto y opcionalmente una imagen adjunta.
type ChatMessage struct {
	Role  string
	Text  string
	Image []byte
}

// ErrEmptyResponse señala una respuesta sin contenido del proveedor.
var ErrEmptyResponse = errors.New("llm empty response")

// HTTPClient implementa Client usando una API OpenAI-compatible.
type HTTPClient struct {
	baseURL string
	apiKey  string
	safety  json.RawMessage
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient construye un cliente HTTP apuntando a la API de chat
// completions del proveedor. safety es el documento de moderación,
// opaco, reenviado tal cual en cada request.
func NewHTTPClient(baseURL, apiKey string, safety json.RawMessage, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		safety:  safety,
		client:  &http.Client{Timeout: 120 * time.Second},
		logger:  logger,
	}
}

func (c *HTTPClient) Complete(ctx context.Context, model string, messages []ChatMessage) (string, error) {
	reqBody := chatRequest{
		Model:          model,
		Messages:       make([]wireMessage, 0, len(messages)),
		SafetySettings: c.safety,
	}
	for _, m := range messages {
		reqBody.Messages = append(reqBody.Messages, toWireMessage(m))
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		c.logger.Warn("llm error response",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody),
		)
		return "", fmt.Errorf("llm http error: status=%d", resp.StatusCode)
	}

	var cr chatResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	if cr.Error != nil {
		return "", fmt.Errorf("llm api error: %s", cr.Error.Message)
	}

	if len(cr.Choices) == 0 || cr.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}

	return cr.Choices[0].Message.Content, nil
}

func toWireMessage(m ChatMessage) wireMessage {
	if len(m.Image) == 0 {
		return wireMessage{Role: m.Role, Content: m.Text}
	}

	parts := []wirePart{}
	if m.Text != "" {
		parts = append(parts, wirePart{Type: "text", Text: m.Text})
	}
	parts = append(parts, wirePart{
		Type: "image_url",
		ImageURL: &wireImageURL{
			URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(m.Image),
		},
	})
	return wireMessage{Role: m.Role, Content: parts}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []wireMessage   `json:"messages"`
	SafetySettings json.RawMessage `json:"safety_settings,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type wirePart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *wireImageURL `json:"image_url,omitempty"`
}

type wireImageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}
