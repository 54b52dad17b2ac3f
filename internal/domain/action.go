package domain

// ActionKind distingue los tipos de entrada que llegan desde la
// plataforma de mensajería.
type ActionKind string

const (
	ActionCommand ActionKind = "command"
	ActionButton  ActionKind = "button"
	ActionText    ActionKind = "text"
	ActionPhoto   ActionKind = "photo"
)

// Action es una entrada de usuario ya normalizada por el transporte.
type Action struct {
	Kind  ActionKind
	Name  string // comando, sin "/"
	Tag   string // payload del botón
	Text  string
	Photo []byte
}

func CommandAction(name string) Action { return Action{Kind: ActionCommand, Name: name} }
func ButtonAction(tag string) Action   { return Action{Kind: ActionButton, Tag: tag} }
func TextAction(text string) Action    { return Action{Kind: ActionText, Text: text} }
func PhotoAction(blob []byte) Action   { return Action{Kind: ActionPhoto, Photo: blob} }

// Button es una affordance de UI que el transporte traduce a teclado inline.
type Button struct {
	Label string `json:"label"`
	Tag   string `json:"tag"`
}

// Reply es el payload que el controlador devuelve al transporte.
type Reply struct {
	Text    string   `json:"text"`
	Buttons []Button `json:"buttons,omitempty"`
}
