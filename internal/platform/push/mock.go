package push

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// MockProvider is a test double for Provider.
type MockProvider struct {
	mu    sync.Mutex
	calls []Message

	// Errors maps a token to the error its send returns.
	Errors map[string]error
	// ShouldFail makes every send fail with FailError.
	ShouldFail bool
	FailError  string
	// Delay blocks each send until it elapses or the context ends.
	Delay time.Duration
}

// Send records the call and optionally returns an error.
func (m *MockProvider) Send(ctx context.Context, msg Message) (string, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, msg)
	if err, ok := m.Errors[msg.Token]; ok {
		return "", err
	}
	if m.ShouldFail {
		return "", errors.New(m.FailError)
	}
	return fmt.Sprintf("mock-%d", len(m.calls)), nil
}

// Calls returns a copy of recorded messages.
func (m *MockProvider) Calls() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.calls))
	copy(out, m.calls)
	return out
}

// Tokens returns the tokens of recorded messages in call order.
func (m *MockProvider) Tokens() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	for i, c := range m.calls {
		out[i] = c.Token
	}
	return out
}
