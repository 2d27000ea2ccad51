// Package channels implements the pollers that feed inbound recruiter
// messages from their sources (email, SMS) into the conversation engine.
//
// Each processor polls a bounded batch, resolves the thread key for every
// item, delegates to the engine, and marks the item processed only after
// successful handling so a failed item is retried on the next cycle.
package channels

import (
	"context"

	"github.com/recruitpipe/recruitpipe/internal/models"
)

// DefaultBatchSize bounds how many source items one poll cycle will handle.
const DefaultBatchSize = 10

// Inbound is one normalized message handed to the engine.
type Inbound struct {
	ThreadID string
	Channel  models.Channel
	Content  string
	// Metadata is stored with the message record (sender, subject, source id).
	Metadata map[string]string
	// Context is auxiliary generator context, not persisted.
	Context map[string]string
}

// Outcome reports what the engine decided for one inbound message.
type Outcome struct {
	// Response is the generated reply text, empty when none was produced.
	Response string
	// SendReply tells the processor to deliver Response on its channel.
	SendReply bool
	// Escalated means the thread was marked for human intervention.
	Escalated bool
	// InterviewStarted means an interview URL was detected and handed off.
	InterviewStarted bool
	// QueuedForApproval means the reply was written to the approval log
	// instead of being sent.
	QueuedForApproval bool
}

// Engine is the conversation state machine the processors delegate to.
type Engine interface {
	// HandleInbound runs one message through the state machine.
	HandleInbound(ctx context.Context, in Inbound) (*Outcome, error)

	// RecordOutbound appends a sent reply to the thread's history.
	RecordOutbound(threadID string, channel models.Channel, content string) error

	// HandleOptOut records the stop directive on the thread and marks it
	// declined. Recording the message keeps SeenMessage-based dedupe
	// working for sources that relist handled items.
	HandleOptOut(ctx context.Context, in Inbound) error

	// SeenMessage reports whether a source message id was already recorded
	// for the thread. Used by sources that cannot label items as processed.
	SeenMessage(threadID, sourceID string) bool
}

// Poller is one channel processor as seen by the poll loop.
type Poller interface {
	// Name identifies the processor in logs.
	Name() string
	// Poll handles one batch and returns how many items were processed.
	Poll(ctx context.Context) (int, error)
}
