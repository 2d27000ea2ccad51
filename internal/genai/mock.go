package genai

import (
	"context"
	"sync"

	"github.com/recruitpipe/recruitpipe/internal/models"
)

// MockClient is a scripted generator for tests.
type MockClient struct {
	mu sync.Mutex

	// Reply is returned by GenerateReply when ReplyErr is nil.
	Reply *models.GeneratedReply
	// ReplyErr forces GenerateReply to fail.
	ReplyErr error

	// Text is returned by GenerateText when TextErr is nil.
	Text string
	// TextErr forces GenerateText to fail.
	TextErr error

	// Recorded calls.
	ReplyRequests []GenerateRequest
	TextPrompts   []string
}

// NewMockClient creates a mock generator with empty defaults.
func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) GenerateReply(ctx context.Context, req GenerateRequest) (*models.GeneratedReply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReplyRequests = append(m.ReplyRequests, req)
	if m.ReplyErr != nil {
		return nil, m.ReplyErr
	}
	if m.Reply != nil {
		copied := *m.Reply
		return &copied, nil
	}
	return &models.GeneratedReply{Response: "Thanks, I will get back to you shortly."}, nil
}

func (m *MockClient) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TextPrompts = append(m.TextPrompts, userPrompt)
	if m.TextErr != nil {
		return "", m.TextErr
	}
	if m.Text != "" {
		return m.Text, nil
	}
	return "mock generated text", nil
}
