package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/recruitpipe/recruitpipe/internal/models"
)

// ProcessedLabel is the label applied to handled emails so they are skipped
// on subsequent polls.
const ProcessedLabel = "RecruitPipe/Processed"

// Email is one inbound email as fetched from the provider.
type Email struct {
	ID       string
	ThreadID string
	From     string
	FromName string
	Subject  string
	Body     string
	// Labels set by previous processing runs.
	Labels []string
}

// HasLabel reports whether the email carries the given label.
func (e *Email) HasLabel(label string) bool {
	for _, l := range e.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// EmailClient defines the provider operations the email processor needs.
type EmailClient interface {
	// FetchUnread returns up to max unread emails, oldest first.
	FetchUnread(ctx context.Context, max int) ([]Email, error)
	// SendReply sends a reply on the given thread.
	SendReply(ctx context.Context, threadID, to, subject, body string) error
	// AddLabel labels an email; labeling an already-labeled email is a no-op.
	AddLabel(ctx context.Context, emailID, label string) error
	// MarkRead marks an email read.
	MarkRead(ctx context.Context, emailID string) error
}

// EmailProcessor polls the email source and feeds messages into the engine.
type EmailProcessor struct {
	client    EmailClient
	engine    Engine
	batchSize int
}

// NewEmailProcessor creates an email processor. batchSize <= 0 selects
// DefaultBatchSize.
func NewEmailProcessor(client EmailClient, engine Engine, batchSize int) *EmailProcessor {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &EmailProcessor{client: client, engine: engine, batchSize: batchSize}
}

func (p *EmailProcessor) Name() string { return "email" }

// Poll handles one batch of unread recruiter emails. Failures are isolated
// per email: the failing item stays unlabeled and is retried next cycle.
func (p *EmailProcessor) Poll(ctx context.Context) (int, error) {
	emails, err := p.client.FetchUnread(ctx, p.batchSize)
	if err != nil {
		slog.Error("EmailProcessor.Poll: fetch failed", "error", err)
		return 0, fmt.Errorf("failed to fetch unread emails: %w", err)
	}
	slog.Debug("EmailProcessor.Poll: fetched batch", "count", len(emails))

	processed := 0
	for _, email := range emails {
		if email.HasLabel(ProcessedLabel) {
			continue
		}
		if err := p.processOne(ctx, email); err != nil {
			slog.Error("EmailProcessor.Poll: email failed, will retry next cycle",
				"emailID", email.ID, "threadID", email.ThreadID, "error", err)
			continue
		}
		processed++
	}
	return processed, nil
}

func (p *EmailProcessor) processOne(ctx context.Context, email Email) error {
	slog.Info("EmailProcessor: processing email",
		"from", email.FromName, "subject", email.Subject, "threadID", email.ThreadID)

	outcome, err := p.engine.HandleInbound(ctx, Inbound{
		ThreadID: email.ThreadID,
		Channel:  models.ChannelEmail,
		Content:  email.Body,
		Metadata: map[string]string{
			"source_id": email.ID,
			"from":      email.From,
			"from_name": email.FromName,
			"subject":   email.Subject,
		},
		Context: map[string]string{
			"sender":  email.From,
			"subject": email.Subject,
		},
	})
	if err != nil {
		return err
	}

	if outcome.SendReply {
		if err := p.client.SendReply(ctx, email.ThreadID, email.From, email.Subject, outcome.Response); err != nil {
			slog.Error("EmailProcessor: reply send failed", "threadID", email.ThreadID, "error", err)
			return fmt.Errorf("failed to send reply: %w", err)
		}
		if err := p.engine.RecordOutbound(email.ThreadID, models.ChannelEmail, outcome.Response); err != nil {
			slog.Error("EmailProcessor: failed to record outbound reply",
				"threadID", email.ThreadID, "error", err)
		}
		slog.Info("EmailProcessor: reply sent", "to", email.From, "threadID", email.ThreadID)
	}

	// Label only after successful handling so a failed email is retried.
	if err := p.client.MarkRead(ctx, email.ID); err != nil {
		return fmt.Errorf("failed to mark email read: %w", err)
	}
	if err := p.client.AddLabel(ctx, email.ID, ProcessedLabel); err != nil {
		return fmt.Errorf("failed to label email: %w", err)
	}
	return nil
}

// SentEmail records an outbound reply captured by the mock.
type SentEmail struct {
	ThreadID string
	To       string
	Subject  string
	Body     string
}

// MockEmailClient is an in-memory EmailClient for tests.
type MockEmailClient struct {
	mu sync.Mutex

	Unread  []Email
	Sent    []SentEmail
	Read    []string
	Labeled map[string][]string

	FetchErr error
	SendErr  error
}

// NewMockEmailClient creates a mock with no unread emails.
func NewMockEmailClient() *MockEmailClient {
	return &MockEmailClient{Labeled: make(map[string][]string)}
}

func (m *MockEmailClient) FetchUnread(ctx context.Context, max int) ([]Email, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	batch := m.Unread
	if max > 0 && len(batch) > max {
		batch = batch[:max]
	}
	out := make([]Email, len(batch))
	copy(out, batch)
	for i := range out {
		out[i].Labels = append([]string(nil), out[i].Labels...)
		out[i].Labels = append(out[i].Labels, m.Labeled[out[i].ID]...)
	}
	return out, nil
}

func (m *MockEmailClient) SendReply(ctx context.Context, threadID, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Sent = append(m.Sent, SentEmail{ThreadID: threadID, To: to, Subject: subject, Body: body})
	return nil
}

func (m *MockEmailClient) AddLabel(ctx context.Context, emailID, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.Labeled[emailID] {
		if l == label {
			return nil
		}
	}
	m.Labeled[emailID] = append(m.Labeled[emailID], label)
	return nil
}

func (m *MockEmailClient) MarkRead(ctx context.Context, emailID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Read = append(m.Read, emailID)
	return nil
}
