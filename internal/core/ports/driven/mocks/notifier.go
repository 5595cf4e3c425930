package mocks

import (
	"context"
	"sync"

	"github.com/designpm/designpm-core/internal/core/domain"
)

// MockNotifier records every notification it receives.
type MockNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

// NewMockNotifier creates an empty recorder.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Notify(ctx context.Context, n domain.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
}

// All returns a copy of the recorded notifications.
func (m *MockNotifier) All() []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Notification(nil), m.sent...)
}

// OfKind returns recorded error notifications classified as kind.
func (m *MockNotifier) OfKind(kind domain.ErrorKind) []domain.Notification {
	var out []domain.Notification
	for _, n := range m.All() {
		if n.ErrorKind == kind {
			out = append(out, n)
		}
	}
	return out
}

// Reset clears the recording.
func (m *MockNotifier) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}
