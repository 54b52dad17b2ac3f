package i18n

// Tablas de strings visibles al usuario, seleccionadas por LANGUAGE.
// Reemplazan los catálogos gettext del bot original; la superficie es
// pequeña y fija, así que viven en código.

const (
	KeyMenu             = "menu"
	KeyMenuNew          = "menu_new"
	KeyMenuImage        = "menu_image"
	KeyMenuHistory      = "menu_history"
	KeyMenuEnd          = "menu_end"
	KeyStartTyping      = "start_typing"
	KeySendPhoto        = "send_photo"
	KeyDescribePrompt   = "describe_prompt"
	KeyFallback         = "fallback"
	KeyModelUnavailable = "model_unavailable"
	KeyHistoryHeader    = "history_header"
	KeyHistoryEmpty     = "history_empty"
	KeyOpen             = "open"
	KeyDelete           = "delete"
	KeyPrevPage         = "prev_page"
	KeyNextPage         = "next_page"
	KeyResumed          = "resumed"
	KeyDeleted          = "deleted"
	KeyNotFound         = "not_found"
	KeySlowDown         = "slow_down"
	KeyDone             = "done"
	KeyStartAgain       = "start_again"
	KeyUntitled         = "untitled"
)

var tables = map[string]map[string]string{
	"en": {
		KeyMenu:             "What would you like to do?",
		KeyMenuNew:          "New conversation",
		KeyMenuImage:        "Describe an image",
		KeyMenuHistory:      "Conversation history",
		KeyMenuEnd:          "End",
		KeyStartTyping:      "New conversation started. Start typing...",
		KeySendPhoto:        "Send me a photo and I will describe it.",
		KeyDescribePrompt:   "Describe this image.",
		KeyFallback:         "Couldn't reach out to Google Gemini. Try Again...",
		KeyModelUnavailable: "The assistant is misconfigured and unavailable right now.",
		KeyHistoryHeader:    "Your conversations (page %d):",
		KeyHistoryEmpty:     "You have no saved conversations yet.",
		KeyOpen:             "Open",
		KeyDelete:           "Delete",
		KeyPrevPage:         "« Prev",
		KeyNextPage:         "Next »",
		KeyResumed:          "Resumed conversation: %s",
		KeyDeleted:          "Conversation deleted.",
		KeyNotFound:         "That conversation no longer exists.",
		KeySlowDown:         "You are sending messages too fast. Please slow down.",
		KeyDone:             "Done. Talk to you later!",
		KeyStartAgain:       "Start again",
		KeyUntitled:         "(untitled)",
	},
	"ru": {
		KeyMenu:             "Что вы хотите сделать?",
		KeyMenuNew:          "Новый разговор",
		KeyMenuImage:        "Описать изображение",
		KeyMenuHistory:      "История разговоров",
		KeyMenuEnd:          "Завершить",
		KeyStartTyping:      "Новый разговор начат. Начните печатать...",
		KeySendPhoto:        "Отправьте мне фото, и я его опишу.",
		KeyDescribePrompt:   "Опишите это изображение.",
		KeyFallback:         "Не удалось связаться с Google Gemini. Попробуйте снова...",
		KeyModelUnavailable: "Ассистент неправильно настроен и сейчас недоступен.",
		KeyHistoryHeader:    "Ваши разговоры (страница %d):",
		KeyHistoryEmpty:     "У вас пока нет сохранённых разговоров.",
		KeyOpen:             "Открыть",
		KeyDelete:           "Удалить",
		KeyPrevPage:         "« Назад",
		KeyNextPage:         "Вперёд »",
		KeyResumed:          "Разговор продолжен: %s",
		KeyDeleted:          "Разговор удалён.",
		KeyNotFound:         "Этот разговор больше не существует.",
		KeySlowDown:         "Вы отправляете сообщения слишком быстро. Помедленнее.",
		KeyDone:             "Готово. До связи!",
		KeyStartAgain:       "Начать заново",
		KeyUntitled:         "(без названия)",
	},
}

// T devuelve el string key en el idioma lang, con fallback a inglés.
func T(lang, key string) string {
	if table, ok := tables[lang]; ok {
		if s, ok := table[key]; ok {
			return s
		}
	}
	return tables["en"][key]
}
