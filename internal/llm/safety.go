package llm

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadSafetySettings lee el documento de moderación desde path. El
// contenido es opaco: solo se valida que sea JSON y se reenvía tal cual
// al proveedor. Un archivo ausente no es error; el servicio arranca sin
// ajustes de seguridad explícitos.
func LoadSafetySettings(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read safety settings: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("safety settings %s: invalid JSON", path)
	}
	return json.RawMessage(data), nil
}
