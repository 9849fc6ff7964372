package llm

import (
	"context"
	"sync"

	"github.com/mmuhlariholdings/hlavi-agent/errors"
)

// MockResponse is one scripted reply. Err, when set, is returned instead of Text.
type MockResponse struct {
	Text string
	Err  error
}

// MockProvider replays scripted responses in order. It backs --dry-run and
// tests. Once the script is exhausted the last entry repeats; with no script
// and no Handler it echoes the final user message.
type MockProvider struct {
	// Handler, if set, answers every request and the script is ignored.
	Handler func(ctx context.Context, req Request) (*Response, error)

	mu        sync.Mutex
	responses []MockResponse
	requests  []Request
}

// NewMockProvider returns a provider that replays responses.
func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{responses: responses}
}

// Generate implements Provider.
func (m *MockProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	n := len(m.requests)
	m.requests = append(m.requests, req)
	handler := m.Handler
	var next *MockResponse
	if len(m.responses) > 0 {
		i := min(n, len(m.responses)-1)
		next = &m.responses[i]
	}
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, wrapProviderError(err, "mock")
	}
	if handler != nil {
		return handler(ctx, req)
	}
	if next == nil {
		_, rest := req.splitSystem()
		if len(rest) == 0 {
			return &Response{Model: "mock"}, nil
		}
		return &Response{Text: rest[len(rest)-1].Content, Model: "mock"}, nil
	}
	if next.Err != nil {
		return nil, next.Err
	}
	return &Response{Text: next.Text, Model: "mock"}, nil
}

// Calls returns how many times Generate has been invoked.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of every request received.
func (m *MockProvider) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// TransientError returns a retryable model API failure for scripting.
func TransientError(msg string) error {
	return errors.ModelAPI(nil, "%s", msg)
}
