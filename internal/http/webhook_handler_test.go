package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/samuelgsrmgc/geminibot/internal/domain"
)

// mockActionHandler registra la última acción recibida y devuelve una
// respuesta prefijada.
type mockActionHandler struct {
	reply      domain.Reply
	err        error
	lastUserID string
	lastAction domain.Action
	calls      int
}

func (m *mockActionHandler) Handle(_ context.Context, userID string, action domain.Action) (domain.Reply, error) {
	m.calls++
	m.lastUserID = userID
	m.lastAction = action
	return m.reply, m.err
}

func newWebhookTestRouter(handler *mockActionHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhook", NewWebhookHandler(zap.NewNop(), handler).HandleUpdate)
	return r
}

func postWebhook(t *testing.T, r *gin.Engine, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookTextUpdate(t *testing.T) {
	handler := &mockActionHandler{reply: domain.Reply{Text: "hi back"}}
	r := newWebhookTestRouter(handler)

	w := postWebhook(t, r, map[string]string{"user_id": "u1", "text": "hello"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var reply domain.Reply
	if err := json.Unmarshal(w.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.Text != "hi back" {
		t.Fatalf("unexpected reply text %q", reply.Text)
	}
	if handler.lastUserID != "u1" {
		t.Fatalf("unexpected user id %q", handler.lastUserID)
	}
	if handler.lastAction.Kind != domain.ActionText || handler.lastAction.Text != "hello" {
		t.Fatalf("unexpected action %+v", handler.lastAction)
	}
}

func TestWebhookCommandStripsSlash(t *testing.T) {
	handler := &mockActionHandler{}
	r := newWebhookTestRouter(handler)

	w := postWebhook(t, r, map[string]string{"user_id": "u1", "command": "/start"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if handler.lastAction.Kind != domain.ActionCommand || handler.lastAction.Name != "start" {
		t.Fatalf("unexpected action %+v", handler.lastAction)
	}
}

func TestWebhookPhotoUpdate(t *testing.T) {
	handler := &mockActionHandler{}
	r := newWebhookTestRouter(handler)
	blob := []byte{0xFF, 0xD8, 0xFF}

	w := postWebhook(t, r, map[string]string{
		"user_id":   "u1",
		"photo_b64": base64.StdEncoding.EncodeToString(blob),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if handler.lastAction.Kind != domain.ActionPhoto || !bytes.Equal(handler.lastAction.Photo, blob) {
		t.Fatalf("unexpected action %+v", handler.lastAction)
	}
}

func TestWebhookBlankFieldDoesNotShadowAction(t *testing.T) {
	handler := &mockActionHandler{}
	r := newWebhookTestRouter(handler)

	w := postWebhook(t, r, map[string]string{"user_id": "u1", "command": "   ", "text": "hi"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if handler.lastAction.Kind != domain.ActionText || handler.lastAction.Text != "hi" {
		t.Fatalf("blank command must not shadow the text action, got %+v", handler.lastAction)
	}
}

func TestWebhookRejectsMissingUserID(t *testing.T) {
	handler := &mockActionHandler{}
	r := newWebhookTestRouter(handler)

	w := postWebhook(t, r, map[string]string{"text": "hello"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if handler.calls != 0 {
		t.Fatalf("controller must not be reached")
	}
}

func TestWebhookRejectsAmbiguousAction(t *testing.T) {
	handler := &mockActionHandler{}
	r := newWebhookTestRouter(handler)

	for name, body := range map[string]map[string]string{
		"two fields set": {"user_id": "u1", "text": "hi", "button": "end"},
		"no field set":   {"user_id": "u1"},
		"corrupt photo":  {"user_id": "u1", "photo_b64": "not-base64!!"},
	} {
		w := postWebhook(t, r, body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, w.Code)
		}
	}
	if handler.calls != 0 {
		t.Fatalf("controller must not be reached")
	}
}

func TestWebhookControllerError(t *testing.T) {
	handler := &mockActionHandler{err: errors.New("boom")}
	r := newWebhookTestRouter(handler)

	w := postWebhook(t, r, map[string]string{"user_id": "u1", "text": "hello"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}
