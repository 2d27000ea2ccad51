// Package twiliosms wraps the Twilio API for SMS integration in RecruitPipe.
package twiliosms

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// InboundMessage is one SMS received on the agent's number.
type InboundMessage struct {
	SID    string
	From   string
	To     string
	Body   string
	SentAt time.Time
}

// SMSClient defines the SMS operations used by the channel processors.
type SMSClient interface {
	// SendMessage sends an SMS to the given number.
	SendMessage(ctx context.Context, to string, body string) error
	// ListInbound returns recent messages sent to the agent's number,
	// newest first, up to limit.
	ListInbound(ctx context.Context, limit int) ([]InboundMessage, error)
}

// Opts holds configuration options for the Twilio SMS client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Option defines a configuration option for the Twilio SMS client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the agent's SMS number in E.164 format.
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.FromNumber = from }
}

// Client wraps the Twilio REST API for SMS.
type Client struct {
	client     *twilio.RestClient
	fromNumber string // E.164 format, e.g. "+15551234567"
}

// NewClient creates a Twilio SMS client, falling back to TWILIO_ACCOUNT_SID,
// TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER when options are not provided.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio SMS client config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromNumber_set", cfg.FromNumber != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(
		twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		},
	)

	return &Client{
		client:     client,
		fromNumber: cfg.FromNumber,
	}, nil
}

// SendMessage sends an SMS using the Twilio API.
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(c.fromNumber)
	params.SetBody(body)

	_, err := c.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio SendMessage failed", "to", to, "error", err)
		return fmt.Errorf("failed to send SMS to %s: %w", to, err)
	}

	slog.Debug("Twilio SMS sent", "to", to)
	return nil
}

// ListInbound fetches recent messages addressed to the agent's number.
func (c *Client) ListInbound(ctx context.Context, limit int) ([]InboundMessage, error) {
	params := &twilioApi.ListMessageParams{}
	params.SetTo(c.fromNumber)
	params.SetLimit(limit)

	records, err := c.client.Api.ListMessage(params)
	if err != nil {
		slog.Error("Twilio ListMessage failed", "error", err)
		return nil, fmt.Errorf("failed to list inbound SMS: %w", err)
	}

	messages := make([]InboundMessage, 0, len(records))
	for _, rec := range records {
		msg := InboundMessage{}
		if rec.Sid != nil {
			msg.SID = *rec.Sid
		}
		if rec.From != nil {
			msg.From = *rec.From
		}
		if rec.To != nil {
			msg.To = *rec.To
		}
		if rec.Body != nil {
			msg.Body = *rec.Body
		}
		if rec.DateSent != nil {
			if ts, err := time.Parse(time.RFC1123Z, *rec.DateSent); err == nil {
				msg.SentAt = ts
			}
		}
		messages = append(messages, msg)
	}
	slog.Debug("Twilio inbound SMS listed", "count", len(messages))
	return messages, nil
}

// SentMessage records an outbound SMS captured by the mock.
type SentMessage struct {
	To   string
	Body string
}

// MockClient is an in-memory SMSClient for tests.
type MockClient struct {
	SentMessages []SentMessage
	Inbound      []InboundMessage
	SendErr      error
	ListErr      error
}

// NewMockClient creates a mock SMS client with no scripted inbound messages.
func NewMockClient() *MockClient {
	return &MockClient{
		SentMessages: []SentMessage{},
		Inbound:      []InboundMessage{},
	}
}

func (m *MockClient) SendMessage(ctx context.Context, to string, body string) error {
	if m.SendErr != nil {
		return m.SendErr
	}
	m.SentMessages = append(m.SentMessages, SentMessage{To: to, Body: body})
	return nil
}

func (m *MockClient) ListInbound(ctx context.Context, limit int) ([]InboundMessage, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	if limit > 0 && len(m.Inbound) > limit {
		return m.Inbound[:limit], nil
	}
	return m.Inbound, nil
}
