package llm

import "context"

// MockClient permite tests sin llamar a un LLM real.
type MockClient struct {
	Response  string
	Err       error
	LastModel string
	Calls     [][]ChatMessage
}

func (m *MockClient) Complete(_ context.Context, model string, messages []ChatMessage) (string, error) {
	m.LastModel = model
	copied := make([]ChatMessage, len(messages))
	copy(copied, messages)
	m.Calls = append(m.Calls, copied)
	return m.Response, m.Err
}
