package mailer

import (
	"context"
	"sync"
)

// MockMailer records sent emails for tests.
type MockMailer struct {
	mu   sync.Mutex
	Sent []Email
	Err  error
}

func (m *MockMailer) Send(_ context.Context, email Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, email)
	return nil
}
