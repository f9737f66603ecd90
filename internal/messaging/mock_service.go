package messaging

import (
	"context"
	"fmt"
	"sync"
)

// SentMessage records one outbound message captured by the mock service.
type SentMessage struct {
	To          string
	Body        string
	Suggestions []string
}

// MockService is a Service implementation for tests that records every
// outbound message instead of delivering it.
type MockService struct {
	mu           sync.Mutex
	SentMessages []SentMessage
	// FailSend makes every send return an error when set.
	FailSend bool
}

// NewMockService creates an empty mock messaging service.
func NewMockService() *MockService {
	return &MockService{SentMessages: []SentMessage{}}
}

func (m *MockService) SendMessage(ctx context.Context, to string, body string) error {
	return m.SendMessageWithReplies(ctx, to, body, nil)
}

func (m *MockService) SendMessageWithReplies(ctx context.Context, to string, body string, replies []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSend {
		return fmt.Errorf("mock send failure")
	}
	m.SentMessages = append(m.SentMessages, SentMessage{To: to, Body: body, Suggestions: replies})
	return nil
}

func (m *MockService) Start(ctx context.Context) error { return nil }

func (m *MockService) Stop() error { return nil }

// Sent returns a copy of the recorded messages.
func (m *MockService) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.SentMessages))
	copy(out, m.SentMessages)
	return out
}
