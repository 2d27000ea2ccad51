package channels

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/recruitpipe/recruitpipe/internal/models"
	"github.com/recruitpipe/recruitpipe/internal/twiliosms"
)

// smsThreadPrefix keys SMS threads by phone number.
const smsThreadPrefix = "sms_"

// stopKeywords are the carrier-mandated opt-out directives. A message whose
// trimmed body equals one of these (case-insensitive) short-circuits normal
// processing and declines the thread.
var stopKeywords = []string{"stop", "stopall", "unsubscribe", "cancel", "end", "quit"}

// SMSThreadID returns the thread key for a phone number.
func SMSThreadID(phone string) string {
	return smsThreadPrefix + phone
}

// IsStopKeyword reports whether the message body is an opt-out directive.
func IsStopKeyword(body string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(body))
	for _, kw := range stopKeywords {
		if trimmed == kw {
			return true
		}
	}
	return false
}

// SMSProcessor polls the SMS source and feeds messages into the engine.
//
// The SMS provider cannot label messages as processed, so idempotency comes
// from the engine: a message whose source id is already recorded on the
// thread is skipped.
type SMSProcessor struct {
	client    twiliosms.SMSClient
	engine    Engine
	batchSize int
}

// NewSMSProcessor creates an SMS processor. batchSize <= 0 selects
// DefaultBatchSize.
func NewSMSProcessor(client twiliosms.SMSClient, engine Engine, batchSize int) *SMSProcessor {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &SMSProcessor{client: client, engine: engine, batchSize: batchSize}
}

func (p *SMSProcessor) Name() string { return "sms" }

// Poll handles one batch of inbound SMS. Failures are isolated per message.
func (p *SMSProcessor) Poll(ctx context.Context) (int, error) {
	messages, err := p.client.ListInbound(ctx, p.batchSize)
	if err != nil {
		slog.Error("SMSProcessor.Poll: list failed", "error", err)
		return 0, fmt.Errorf("failed to list inbound SMS: %w", err)
	}
	slog.Debug("SMSProcessor.Poll: fetched batch", "count", len(messages))

	processed := 0
	for _, msg := range messages {
		threadID := SMSThreadID(msg.From)
		if msg.SID != "" && p.engine.SeenMessage(threadID, msg.SID) {
			continue
		}
		if err := p.processOne(ctx, threadID, msg); err != nil {
			slog.Error("SMSProcessor.Poll: message failed, will retry next cycle",
				"sid", msg.SID, "threadID", threadID, "error", err)
			continue
		}
		processed++
	}
	return processed, nil
}

func (p *SMSProcessor) processOne(ctx context.Context, threadID string, msg twiliosms.InboundMessage) error {
	slog.Info("SMSProcessor: processing SMS", "from", msg.From, "threadID", threadID)

	in := Inbound{
		ThreadID: threadID,
		Channel:  models.ChannelSMS,
		Content:  msg.Body,
		Metadata: map[string]string{
			"source_id": msg.SID,
			"phone":     msg.From,
		},
		Context: map[string]string{
			"phone": msg.From,
		},
	}

	if IsStopKeyword(msg.Body) {
		slog.Info("SMSProcessor: stop keyword detected, declining thread", "threadID", threadID)
		return p.engine.HandleOptOut(ctx, in)
	}

	outcome, err := p.engine.HandleInbound(ctx, in)
	if err != nil {
		return err
	}

	if outcome.SendReply {
		if err := p.client.SendMessage(ctx, msg.From, outcome.Response); err != nil {
			slog.Error("SMSProcessor: reply send failed", "threadID", threadID, "error", err)
			return fmt.Errorf("failed to send SMS reply: %w", err)
		}
		if err := p.engine.RecordOutbound(threadID, models.ChannelSMS, outcome.Response); err != nil {
			slog.Error("SMSProcessor: failed to record outbound reply",
				"threadID", threadID, "error", err)
		}
		slog.Info("SMSProcessor: reply sent", "to", msg.From, "threadID", threadID)
	}
	return nil
}
