package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/samuelgsrmgc/geminibot/internal/domain"
	"github.com/samuelgsrmgc/geminibot/internal/repository"
	"github.com/samuelgsrmgc/geminibot/internal/service"
)

// mockConversationRepo cubre solo lo que usan los endpoints de
// operación.
type mockConversationRepo struct {
	listItems []domain.ConversationSummary
	listErr   error
	deleteErr error
}

func (m *mockConversationRepo) Create(context.Context, string, *domain.Message) (string, error) {
	return "", errors.New("not implemented")
}

func (m *mockConversationRepo) Append(context.Context, string, string, domain.Message) error {
	return errors.New("not implemented")
}

func (m *mockConversationRepo) SetTitle(context.Context, string, string, string) error {
	return errors.New("not implemented")
}

func (m *mockConversationRepo) List(context.Context, string, int, int) ([]domain.ConversationSummary, error) {
	return m.listItems, m.listErr
}

func (m *mockConversationRepo) Get(context.Context, string, string) (domain.Conversation, error) {
	return domain.Conversation{}, repository.ErrNotFound
}

func (m *mockConversationRepo) Delete(context.Context, string, string) error {
	return m.deleteErr
}

type mockPinger struct{ err error }

func (m mockPinger) Ping(context.Context) error { return m.err }

func newOpsTestRouter(repo *mockConversationRepo, pinger Pinger, jwtSvc *service.JWTService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	webhookH := NewWebhookHandler(logger, &mockActionHandler{})
	opsH := NewOpsHandler(logger, repo, pinger, 10)
	return NewRouter(logger, webhookH, opsH, jwtSvc)
}

func TestHealthOK(t *testing.T) {
	r := newOpsTestRouter(&mockConversationRepo{}, mockPinger{}, service.NewJWTService("s", time.Hour))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestHealthDegradedOnPingFailure(t *testing.T) {
	r := newOpsTestRouter(&mockConversationRepo{}, mockPinger{err: errors.New("down")}, service.NewJWTService("s", time.Hour))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestOpsRequiresToken(t *testing.T) {
	r := newOpsTestRouter(&mockConversationRepo{}, mockPinger{}, service.NewJWTService("s", time.Hour))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ops/users/u1/conversations", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/ops/users/u1/conversations", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage token, got %d", w.Code)
	}
}

func TestOpsListConversations(t *testing.T) {
	jwtSvc := service.NewJWTService("s", time.Hour)
	repo := &mockConversationRepo{listItems: []domain.ConversationSummary{
		{ID: "c1", Title: "First", CreatedAt: time.Now().UTC()},
	}}
	r := newOpsTestRouter(repo, mockPinger{}, jwtSvc)

	token, err := jwtSvc.Issue("ops-cli")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/ops/users/u1/conversations?page=0", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "First") {
		t.Fatalf("expected listed conversation in body: %s", w.Body.String())
	}
}

func TestOpsListRejectsInvalidPage(t *testing.T) {
	jwtSvc := service.NewJWTService("s", time.Hour)
	r := newOpsTestRouter(&mockConversationRepo{}, mockPinger{}, jwtSvc)

	token, _ := jwtSvc.Issue("ops-cli")
	req := httptest.NewRequest(http.MethodGet, "/ops/users/u1/conversations?page=nope", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestOpsDeleteConversation(t *testing.T) {
	jwtSvc := service.NewJWTService("s", time.Hour)
	token, _ := jwtSvc.Issue("ops-cli")

	r := newOpsTestRouter(&mockConversationRepo{}, mockPinger{}, jwtSvc)
	req := httptest.NewRequest(http.MethodDelete, "/ops/users/u1/conversations/c1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	r = newOpsTestRouter(&mockConversationRepo{deleteErr: repository.ErrNotFound}, mockPinger{}, jwtSvc)
	req = httptest.NewRequest(http.MethodDelete, "/ops/users/u1/conversations/missing", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown conversation, got %d", w.Code)
	}
}
