package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/samuelgsrmgc/geminibot/internal/chat"
	"github.com/samuelgsrmgc/geminibot/internal/domain"
	"github.com/samuelgsrmgc/geminibot/internal/i18n"
	"github.com/samuelgsrmgc/geminibot/internal/repository"
)

// ChatAdapter abstrae las operaciones contra el modelo generativo para
// poder testear el controlador sin red.
type ChatAdapter interface {
	Open(history []domain.Message, seedImage []byte) (*chat.Session, error)
	Send(ctx context.Context, s *chat.Session, text string, image []byte) (string, error)
	DescribeImage(ctx context.Context, image []byte, prompt string) (string, error)
	Title(ctx context.Context, s *chat.Session) (string, error)
	Close(s *chat.Session)
}

// ModelRateLimiter limita llamadas al modelo por usuario. Nil o
// fail-open: un limiter ausente nunca bloquea.
type ModelRateLimiter interface {
	Allow(key string) bool
}

var ErrInvalidUser = errors.New("invalid user id")

// Tags de botones y comandos que entiende el controlador. El transporte
// los pasa tal cual desde la plataforma.
const (
	cmdStart = "start"

	tagNewConversation  = "new_conversation"
	tagImageDescription = "image_description"
	tagEnd              = "end"
	tagStartAgain       = "start_again"
	tagPagePrefix       = "page#"
	tagOpenPrefix       = "open#"
	tagDeletePrefix     = "delete#"
)

// Controller es el orquestador por usuario: valida qué acción es legal
// en el estado actual, conduce el ChatAdapter y escribe el resultado en
// los repositorios antes de responder. Las acciones de un mismo usuario
// se procesan de a una; usuarios distintos no se bloquean entre sí.
type Controller struct {
	logger        *zap.Logger
	conversations repository.ConversationRepository
	snapshots     repository.SnapshotRepository
	chats         ChatAdapter
	limiter       ModelRateLimiter
	language      string
	pageSize      int

	mu    sync.Mutex
	users map[string]*userSlot
}

// userSlot serializa las acciones de un usuario y guarda su sesión viva
// con el modelo. La sesión nunca se persiste; tras un reinicio se
// reconstruye desde el historial almacenado.
type userSlot struct {
	mu      sync.Mutex
	session *chat.Session
}

func NewController(
	logger *zap.Logger,
	conversations repository.ConversationRepository,
	snapshots repository.SnapshotRepository,
	chats ChatAdapter,
	limiter ModelRateLimiter,
	language string,
	pageSize int,
) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if language == "" {
		language = "en"
	}
	if pageSize <= 0 {
		pageSize = 5
	}
	return &Controller{
		logger:        logger,
		conversations: conversations,
		snapshots:     snapshots,
		chats:         chats,
		limiter:       limiter,
		language:      language,
		pageSize:      pageSize,
		users:         map[string]*userSlot{},
	}
}

// Handle procesa una acción entrante y devuelve el payload de respuesta
// para que el transporte lo entregue. Toda transición se persiste antes
// de responder.
func (c *Controller) Handle(ctx context.Context, userID string, action domain.Action) (domain.Reply, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Reply{}, ErrInvalidUser
	}

	slot := c.slot(userID)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	st, err := c.snapshots.Load(ctx, userID)
	if err != nil {
		c.logger.Error("load snapshot failed", zap.String("user_id", userID), zap.Error(err))
		st = domain.DefaultSessionState(userID)
	}

	// Acciones globales, válidas en cualquier estado.
	switch {
	case action.Kind == domain.ActionCommand && action.Name == cmdStart:
		return c.reset(ctx, slot, st, c.t(i18n.KeyMenu))
	case action.Kind == domain.ActionButton && action.Tag == tagStartAgain:
		return c.reset(ctx, slot, st, c.t(i18n.KeyMenu))
	case action.Kind == domain.ActionButton && action.Tag == tagEnd:
		return c.reset(ctx, slot, st, c.t(i18n.KeyDone))
	}

	switch st.State {
	case domain.StateChoosing:
		return c.handleChoosing(ctx, slot, st, action)
	case domain.StateImageChoice:
		return c.handleImageChoice(ctx, st, action)
	case domain.StateConversation, domain.StateImageConversation:
		return c.handleConversation(ctx, slot, st, action)
	case domain.StateConversationHistory:
		return c.handleConversationHistory(ctx, slot, st, action)
	default:
		// Unreachable while Load resets corrupt states.
		return c.menuReply(c.t(i18n.KeyMenu)), nil
	}
}

func (c *Controller) handleChoosing(ctx context.Context, slot *userSlot, st domain.SessionState, action domain.Action) (domain.Reply, error) {
	if action.Kind == domain.ActionButton {
		switch {
		case action.Tag == tagNewConversation:
			return c.startTextConversation(ctx, slot, st)
		case action.Tag == tagImageDescription:
			st.State = domain.StateImageChoice
			st.ActiveConversationID = ""
			st.PendingImage = nil
			if err := c.snapshots.Save(ctx, st); err != nil {
				return domain.Reply{}, err
			}
			return domain.Reply{Text: c.t(i18n.KeySendPhoto)}, nil
		case strings.HasPrefix(action.Tag, tagPagePrefix):
			if page, ok := parsePageTag(action.Tag); ok {
				return c.showHistory(ctx, st, page, "")
			}
		}
	}
	// Acción ilegal para el estado: se vuelve a mostrar el menú sin
	// avanzar la máquina de estados.
	return c.menuReply(c.t(i18n.KeyMenu)), nil
}

func (c *Controller) startTextConversation(ctx context.Context, slot *userSlot, st domain.SessionState) (domain.Reply, error) {
	sess, err := c.chats.Open(nil, nil)
	if err != nil {
		c.logger.Error("open chat session failed", zap.String("user_id", st.UserID), zap.Error(err))
		return domain.Reply{Text: c.t(i18n.KeyModelUnavailable)}, nil
	}

	convID, err := c.conversations.Create(ctx, st.UserID, nil)
	if err != nil {
		c.chats.Close(sess)
		return domain.Reply{}, fmt.Errorf("create conversation: %w", err)
	}

	if slot.session != nil {
		c.chats.Close(slot.session)
	}
	slot.session = sess

	st.State = domain.StateConversation
	st.ActiveConversationID = convID
	st.PendingImage = nil
	if err := c.snapshots.Save(ctx, st); err != nil {
		return domain.Reply{}, err
	}

	return domain.Reply{
		Text:    c.t(i18n.KeyStartTyping),
		Buttons: []domain.Button{{Label: c.t(i18n.KeyMenuEnd), Tag: tagEnd}},
	}, nil
}

func (c *Controller) handleImageChoice(ctx context.Context, st domain.SessionState, action domain.Action) (domain.Reply, error) {
	if action.Kind != domain.ActionPhoto || len(action.Photo) == 0 {
		return domain.Reply{Text: c.t(i18n.KeySendPhoto)}, nil
	}

	if c.limiter != nil && !c.limiter.Allow(st.UserID) {
		return domain.Reply{Text: c.t(i18n.KeySlowDown)}, nil
	}

	text, err := c.chats.DescribeImage(ctx, action.Photo, c.t(i18n.KeyDescribePrompt))
	if errors.Is(err, chat.ErrModelUnavailable) {
		c.logger.Error("describe image failed", zap.String("user_id", st.UserID), zap.Error(err))
		return domain.Reply{Text: c.t(i18n.KeyModelUnavailable)}, nil
	}
	if err != nil {
		c.logger.Warn("describe image failed", zap.String("user_id", st.UserID), zap.Error(err))
		text = c.t(i18n.KeyFallback)
	}

	// Interacción de una sola vez: no queda registro de conversación.
	st.State = domain.StateChoosing
	st.ActiveConversationID = ""
	st.PendingImage = nil
	if err := c.snapshots.Save(ctx, st); err != nil {
		return domain.Reply{}, err
	}

	return c.menuReply(text), nil
}

func (c *Controller) handleConversation(ctx context.Context, slot *userSlot, st domain.SessionState, action domain.Action) (domain.Reply, error) {
	if action.Kind != domain.ActionText || strings.TrimSpace(action.Text) == "" {
		return domain.Reply{Text: c.t(i18n.KeyStartTyping)}, nil
	}

	// Tras un reinicio la sesión viva no existe: se reconstruye desde
	// el historial persistido de la conversación activa.
	if slot.session == nil {
		conv, err := c.conversations.Get(ctx, st.UserID, st.ActiveConversationID)
		if errors.Is(err, repository.ErrNotFound) || st.ActiveConversationID == "" {
			return c.reset(ctx, slot, st, c.t(i18n.KeyNotFound))
		}
		if err != nil {
			return domain.Reply{}, err
		}
		sess, err := c.chats.Open(conv.History, nil)
		if err != nil {
			c.logger.Error("reopen chat session failed", zap.String("user_id", st.UserID), zap.Error(err))
			return domain.Reply{Text: c.t(i18n.KeyModelUnavailable)}, nil
		}
		slot.session = sess
	}

	if c.limiter != nil && !c.limiter.Allow(st.UserID) {
		return domain.Reply{Text: c.t(i18n.KeySlowDown)}, nil
	}

	replyText, err := c.chats.Send(ctx, slot.session, action.Text, nil)
	if err != nil {
		// Falla transitoria del proveedor: se responde el fallback y
		// ni el estado ni el historial cambian.
		c.logger.Warn("send failed", zap.String("user_id", st.UserID), zap.Error(err))
		return domain.Reply{Text: c.t(i18n.KeyFallback)}, nil
	}

	// La conversación activa pudo haber sido borrada por fuera (API de
	// operación) mientras la sesión seguía viva: se vuelve al menú en
	// vez de dejar la interacción sin respuesta.
	if err := c.conversations.Append(ctx, st.UserID, st.ActiveConversationID, domain.Message{
		Role:    domain.RoleUser,
		Content: action.Text,
	}); errors.Is(err, repository.ErrNotFound) {
		return c.reset(ctx, slot, st, c.t(i18n.KeyNotFound))
	} else if err != nil {
		return domain.Reply{}, fmt.Errorf("append user turn: %w", err)
	}
	if err := c.conversations.Append(ctx, st.UserID, st.ActiveConversationID, domain.Message{
		Role:    domain.RoleAssistant,
		Content: replyText,
	}); errors.Is(err, repository.ErrNotFound) {
		return c.reset(ctx, slot, st, c.t(i18n.KeyNotFound))
	} else if err != nil {
		return domain.Reply{}, fmt.Errorf("append assistant turn: %w", err)
	}

	// El título se deriva una sola vez, tras el primer intercambio
	// completo de una conversación de texto nueva.
	if !slot.session.Vision && slot.session.Fresh() && slot.session.Turns() == 1 {
		if title, err := c.chats.Title(ctx, slot.session); err != nil {
			c.logger.Warn("title generation failed", zap.String("user_id", st.UserID), zap.Error(err))
		} else if err := c.conversations.SetTitle(ctx, st.UserID, st.ActiveConversationID, title); err != nil {
			c.logger.Warn("set title failed", zap.String("user_id", st.UserID), zap.Error(err))
		}
	}

	if err := c.snapshots.Save(ctx, st); err != nil {
		return domain.Reply{}, err
	}

	return domain.Reply{
		Text:    replyText,
		Buttons: []domain.Button{{Label: c.t(i18n.KeyMenuEnd), Tag: tagEnd}},
	}, nil
}

func (c *Controller) handleConversationHistory(ctx context.Context, slot *userSlot, st domain.SessionState, action domain.Action) (domain.Reply, error) {
	if action.Kind == domain.ActionButton {
		switch {
		case strings.HasPrefix(action.Tag, tagPagePrefix):
			if page, ok := parsePageTag(action.Tag); ok {
				return c.showHistory(ctx, st, page, "")
			}
		case strings.HasPrefix(action.Tag, tagOpenPrefix):
			return c.openConversation(ctx, slot, st, strings.TrimPrefix(action.Tag, tagOpenPrefix))
		case strings.HasPrefix(action.Tag, tagDeletePrefix):
			return c.deleteConversation(ctx, st, strings.TrimPrefix(action.Tag, tagDeletePrefix))
		}
	}
	return c.showHistory(ctx, st, 0, "")
}

func (c *Controller) showHistory(ctx context.Context, st domain.SessionState, page int, notice string) (domain.Reply, error) {
	if page < 0 {
		page = 0
	}
	items, err := c.conversations.List(ctx, st.UserID, page, c.pageSize)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("list conversations: %w", err)
	}

	st.State = domain.StateConversationHistory
	st.ActiveConversationID = ""
	st.PendingImage = nil
	if err := c.snapshots.Save(ctx, st); err != nil {
		return domain.Reply{}, err
	}

	return c.renderHistory(page, items, notice), nil
}

func (c *Controller) renderHistory(page int, items []domain.ConversationSummary, notice string) domain.Reply {
	var b strings.Builder
	if notice != "" {
		b.WriteString(notice)
		b.WriteString("\n\n")
	}

	var buttons []domain.Button
	if len(items) == 0 {
		b.WriteString(c.t(i18n.KeyHistoryEmpty))
	} else {
		fmt.Fprintf(&b, c.t(i18n.KeyHistoryHeader), page+1)
		for i, item := range items {
			title := item.Title
			if title == "" {
				title = c.t(i18n.KeyUntitled)
			}
			fmt.Fprintf(&b, "\n%d. %s — %s", i+1, title, item.CreatedAt.Format("2006-01-02"))
			buttons = append(buttons,
				domain.Button{Label: fmt.Sprintf("%s %d", c.t(i18n.KeyOpen), i+1), Tag: tagOpenPrefix + item.ID},
				domain.Button{Label: fmt.Sprintf("%s %d", c.t(i18n.KeyDelete), i+1), Tag: tagDeletePrefix + item.ID},
			)
		}
	}

	if page > 0 {
		buttons = append(buttons, domain.Button{Label: c.t(i18n.KeyPrevPage), Tag: fmt.Sprintf("%s%d", tagPagePrefix, page-1)})
	}
	if len(items) == c.pageSize {
		buttons = append(buttons, domain.Button{Label: c.t(i18n.KeyNextPage), Tag: fmt.Sprintf("%s%d", tagPagePrefix, page+1)})
	}
	buttons = append(buttons, domain.Button{Label: c.t(i18n.KeyStartAgain), Tag: tagStartAgain})

	return domain.Reply{Text: b.String(), Buttons: buttons}
}

func (c *Controller) openConversation(ctx context.Context, slot *userSlot, st domain.SessionState, conversationID string) (domain.Reply, error) {
	conv, err := c.conversations.Get(ctx, st.UserID, conversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return c.showHistory(ctx, st, 0, c.t(i18n.KeyNotFound))
	}
	if err != nil {
		return domain.Reply{}, fmt.Errorf("get conversation: %w", err)
	}

	sess, err := c.chats.Open(conv.History, nil)
	if err != nil {
		c.logger.Error("reopen chat session failed", zap.String("user_id", st.UserID), zap.Error(err))
		return domain.Reply{Text: c.t(i18n.KeyModelUnavailable)}, nil
	}

	if slot.session != nil {
		c.chats.Close(slot.session)
	}
	slot.session = sess

	st.ActiveConversationID = conv.ID
	if sess.Vision {
		st.State = domain.StateImageConversation
		st.PendingImage = conv.FirstImage()
	} else {
		st.State = domain.StateConversation
		st.PendingImage = nil
	}
	if err := c.snapshots.Save(ctx, st); err != nil {
		return domain.Reply{}, err
	}

	title := conv.Title
	if title == "" {
		title = c.t(i18n.KeyUntitled)
	}
	return domain.Reply{
		Text:    fmt.Sprintf(c.t(i18n.KeyResumed), title),
		Buttons: []domain.Button{{Label: c.t(i18n.KeyMenuEnd), Tag: tagEnd}},
	}, nil
}

func (c *Controller) deleteConversation(ctx context.Context, st domain.SessionState, conversationID string) (domain.Reply, error) {
	notice := c.t(i18n.KeyDeleted)
	err := c.conversations.Delete(ctx, st.UserID, conversationID)
	if errors.Is(err, repository.ErrNotFound) {
		notice = c.t(i18n.KeyNotFound)
	} else if err != nil {
		return domain.Reply{}, fmt.Errorf("delete conversation: %w", err)
	}
	return c.showHistory(ctx, st, 0, notice)
}

// reset libera la sesión viva y limpia el snapshot; siempre vuelve a
// CHOOSING.
func (c *Controller) reset(ctx context.Context, slot *userSlot, st domain.SessionState, text string) (domain.Reply, error) {
	if slot.session != nil {
		c.chats.Close(slot.session)
		slot.session = nil
	}
	if err := c.snapshots.Clear(ctx, st.UserID); err != nil {
		return domain.Reply{}, err
	}
	return c.menuReply(text), nil
}

func (c *Controller) menuReply(text string) domain.Reply {
	return domain.Reply{
		Text: text,
		Buttons: []domain.Button{
			{Label: c.t(i18n.KeyMenuNew), Tag: tagNewConversation},
			{Label: c.t(i18n.KeyMenuImage), Tag: tagImageDescription},
			{Label: c.t(i18n.KeyMenuHistory), Tag: tagPagePrefix + "0"},
			{Label: c.t(i18n.KeyMenuEnd), Tag: tagEnd},
		},
	}
}

func (c *Controller) slot(userID string) *userSlot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.users[userID]
	if !ok {
		s = &userSlot{}
		c.users[userID] = s
	}
	return s
}

func (c *Controller) t(key string) string {
	return i18n.T(c.language, key)
}

func parsePageTag(tag string) (int, bool) {
	raw := strings.TrimPrefix(tag, tagPagePrefix)
	page, err := strconv.Atoi(raw)
	if err != nil || page < 0 {
		return 0, false
	}
	return page, true
}
