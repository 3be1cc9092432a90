package llm

import "context"

// MockClient returns a canned reply without calling any model. Used in
// local mode and tests.
type MockClient struct {
	Reply string
	Err   error
}

func NewMockClient() *MockClient {
	return &MockClient{
		Reply: "Según el Artículo 131 del Código Nacional de Tránsito, la infracción consultada tiene una multa asociada. (respuesta de prueba)",
	}
}

func (m *MockClient) Generate(_ context.Context, _ string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.Reply, nil
}
