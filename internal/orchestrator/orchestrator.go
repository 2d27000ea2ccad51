// Package orchestrator implements the conversation state machine that sits
// between the channel processors and the response generator.
//
// One inbound message flows through a fixed sequence: resolve or create the
// thread, generate a structured reply, merge extracted fields, check for an
// interview URL (which hands off to the interview controller and
// short-circuits the remaining steps), evaluate escalation, then decide
// whether to send, queue for approval, or stay silent.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/recruitpipe/recruitpipe/internal/approval"
	"github.com/recruitpipe/recruitpipe/internal/channels"
	"github.com/recruitpipe/recruitpipe/internal/genai"
	"github.com/recruitpipe/recruitpipe/internal/interview"
	"github.com/recruitpipe/recruitpipe/internal/models"
	"github.com/recruitpipe/recruitpipe/internal/store"
)

// fallbackReply masks generator failures so threads never stall silently.
const fallbackReply = "Thank you for reaching out. I'm reviewing the details and will get back to you shortly."

// InterviewStarter is the interview-controller surface the engine uses on an
// URL handoff.
type InterviewStarter interface {
	Start(ctx context.Context, url, company, position string) interview.StartResult
}

// Notifier delivers escalation alerts to an operator channel.
type Notifier interface {
	NotifyEscalation(ctx context.Context, summary models.EscalationSummary) error
}

// LogNotifier writes escalation alerts to the process log. It is the default
// when no operator channel is configured.
type LogNotifier struct{}

func (LogNotifier) NotifyEscalation(ctx context.Context, summary models.EscalationSummary) error {
	slog.Warn("ESCALATION REQUIRED",
		"threadID", summary.ThreadID,
		"company", summary.Company,
		"position", summary.Position,
		"reason", summary.Reason)
	return nil
}

// Config is the externally supplied behavior surface of the engine.
type Config struct {
	// AutoReply enables sending generated replies at all.
	AutoReply bool
	// RequireApproval diverts replies to the approval log instead of
	// sending them.
	RequireApproval bool
}

// Engine is the conversation state machine. It implements channels.Engine.
type Engine struct {
	st        store.Store
	gen       genai.ClientInterface
	interview InterviewStarter
	notifier  Notifier
	approvals *approval.Log
	cfg       Config
}

// NewEngine creates the conversation engine. interview and approvals may be
// nil; the corresponding steps then degrade to logging. A nil notifier
// selects LogNotifier.
func NewEngine(st store.Store, gen genai.ClientInterface, iv InterviewStarter, notifier Notifier, approvals *approval.Log, cfg Config) *Engine {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Engine{
		st:        st,
		gen:       gen,
		interview: iv,
		notifier:  notifier,
		approvals: approvals,
		cfg:       cfg,
	}
}

// HandleInbound runs one message through the state machine.
func (e *Engine) HandleInbound(ctx context.Context, in channels.Inbound) (*channels.Outcome, error) {
	state, err := e.resolveThread(in)
	if err != nil {
		return nil, err
	}

	reply := e.generate(ctx, in, state)

	if err := e.mergeReply(in.ThreadID, state, reply); err != nil {
		return nil, err
	}

	// URL handoff short-circuits escalation and replying for this message,
	// even when the escalation flag was also set.
	if url, ok := ExtractInterviewURL(in.Content); ok {
		e.handleInterviewLink(ctx, in.ThreadID, url, reply.ExtractedInfo)
		return &channels.Outcome{InterviewStarted: true}, nil
	}

	if reply.RequiresEscalation {
		if err := e.markEscalation(ctx, in.ThreadID, state, reply); err != nil {
			return nil, err
		}
		return &channels.Outcome{Escalated: true}, nil
	}

	return e.decideReply(in, reply), nil
}

// resolveThread loads the conversation or creates it seeded with the inbound
// message, and appends the message for existing threads.
func (e *Engine) resolveThread(in channels.Inbound) (*models.ConversationState, error) {
	msg := models.Message{
		Timestamp: time.Now(),
		Channel:   in.Channel,
		Direction: models.DirectionIncoming,
		Content:   in.Content,
		Metadata:  in.Metadata,
	}

	state, err := e.st.GetConversation(in.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve thread %s: %w", in.ThreadID, err)
	}
	if state == nil {
		created, _, err := e.st.CreateConversation(in.ThreadID, in.Channel, msg)
		if err != nil {
			return nil, fmt.Errorf("failed to create thread %s: %w", in.ThreadID, err)
		}
		slog.Info("Engine: new conversation", "threadID", in.ThreadID, "channel", in.Channel)
		return created, nil
	}
	if err := e.st.AppendMessage(in.ThreadID, msg); err != nil {
		return nil, fmt.Errorf("failed to append inbound message for %s: %w", in.ThreadID, err)
	}
	return state, nil
}

// generate invokes the response generator, masking failures behind a canned
// reply so the flow never stalls.
func (e *Engine) generate(ctx context.Context, in channels.Inbound, state *models.ConversationState) *models.GeneratedReply {
	reply, err := e.gen.GenerateReply(ctx, genai.GenerateRequest{
		Message: in.Content,
		Channel: in.Channel,
		State:   state,
		Context: in.Context,
	})
	if err != nil || reply == nil {
		slog.Error("Engine: generation failed, using fallback reply", "threadID", in.ThreadID, "error", err)
		return &models.GeneratedReply{Response: fallbackReply}
	}
	return reply
}

// mergeReply folds the generator output into the thread: the candidate stage
// when valid, and each extracted field only when non-empty.
func (e *Engine) mergeReply(threadID string, state *models.ConversationState, reply *models.GeneratedReply) error {
	update := models.ConversationUpdate{}
	changed := false

	if reply.NextStage != "" && models.IsValidStage(reply.NextStage) && reply.NextStage != state.Stage {
		stage := reply.NextStage
		update.Stage = &stage
		changed = true
	}
	if v := reply.ExtractedInfo.Company; v != "" {
		update.Company = &v
		changed = true
	}
	if v := reply.ExtractedInfo.Position; v != "" {
		update.Position = &v
		changed = true
	}
	if v := reply.ExtractedInfo.RecruiterName; v != "" {
		update.RecruiterName = &v
		changed = true
	}
	if v := reply.ExtractedInfo.SalaryRange; v != "" {
		update.SalaryRange = &v
		changed = true
	}
	if v := reply.ExtractedInfo.WorkArrangement; v != "" {
		update.WorkArrangement = &v
		changed = true
	}
	if !changed {
		return nil
	}
	if _, err := e.st.UpdateConversation(threadID, update); err != nil {
		return fmt.Errorf("failed to merge extracted fields for %s: %w", threadID, err)
	}
	return nil
}

// handleInterviewLink hands an interview URL to the interview controller and
// records the handoff on the thread. Controller failures are logged, not
// propagated; the handoff itself is best effort.
func (e *Engine) handleInterviewLink(ctx context.Context, threadID, url string, info models.ExtractedInfo) {
	slog.Info("Engine: interview link detected", "threadID", threadID, "url", url)

	if e.interview != nil {
		result := e.interview.Start(ctx, url, info.Company, info.Position)
		if !result.Success {
			slog.Error("Engine: interview start failed", "threadID", threadID, "url", url, "error", result.Error)
		}
	}

	stage := models.StageScheduling
	update := models.ConversationUpdate{
		Stage: &stage,
		Metadata: map[string]string{
			"interview_started": "true",
			"interview_url":     url,
		},
	}
	if _, err := e.st.UpdateConversation(threadID, update); err != nil {
		slog.Error("Engine: failed to record interview handoff", "threadID", threadID, "error", err)
	}
}

// markEscalation flags the thread for human intervention and alerts the
// operator channel. Re-marking an escalated thread keeps the flag and stores
// the latest reason.
func (e *Engine) markEscalation(ctx context.Context, threadID string, state *models.ConversationState, reply *models.GeneratedReply) error {
	reason := reply.EscalationReason
	if reason == "" {
		reason = "Unknown reason"
	}
	escalated := true
	update := models.ConversationUpdate{
		RequiresEscalation: &escalated,
		EscalationReason:   &reason,
	}
	if _, err := e.st.UpdateConversation(threadID, update); err != nil {
		return fmt.Errorf("failed to mark escalation for %s: %w", threadID, err)
	}

	summary := models.EscalationSummary{
		ThreadID: threadID,
		Company:  state.Company,
		Position: state.Position,
		Reason:   reason,
	}
	if info := reply.ExtractedInfo; info.Company != "" {
		summary.Company = info.Company
	}
	if err := e.notifier.NotifyEscalation(ctx, summary); err != nil {
		slog.Error("Engine: escalation notification failed", "threadID", threadID, "error", err)
	}
	return nil
}

// decideReply applies the auto-reply/approval configuration to a generated
// response.
func (e *Engine) decideReply(in channels.Inbound, reply *models.GeneratedReply) *channels.Outcome {
	if !e.cfg.AutoReply {
		slog.Debug("Engine: auto-reply disabled, staying silent", "threadID", in.ThreadID)
		return &channels.Outcome{Response: reply.Response}
	}
	if e.cfg.RequireApproval {
		if e.approvals != nil {
			err := e.approvals.Append(approval.Entry{
				ThreadID: in.ThreadID,
				Sender:   in.Metadata["from"],
				Subject:  in.Metadata["subject"],
				Response: reply.Response,
			})
			if err != nil {
				slog.Error("Engine: failed to queue reply for approval", "threadID", in.ThreadID, "error", err)
			}
		}
		return &channels.Outcome{Response: reply.Response, QueuedForApproval: true}
	}
	return &channels.Outcome{Response: reply.Response, SendReply: true}
}

// RecordOutbound appends a sent reply to the thread's history.
func (e *Engine) RecordOutbound(threadID string, channel models.Channel, content string) error {
	return e.st.AppendMessage(threadID, models.Message{
		Timestamp: time.Now(),
		Channel:   channel,
		Direction: models.DirectionOutgoing,
		Content:   content,
	})
}

// HandleOptOut declines a thread in response to a stop directive. The
// directive is recorded on the thread's history first (creating the thread
// when the sender was never seen before) so SeenMessage dedupes it when the
// source relists handled items.
func (e *Engine) HandleOptOut(ctx context.Context, in channels.Inbound) error {
	if _, err := e.resolveThread(in); err != nil {
		return fmt.Errorf("failed to record opt-out message for %s: %w", in.ThreadID, err)
	}
	stage := models.StageDeclined
	if _, err := e.st.UpdateConversation(in.ThreadID, models.ConversationUpdate{Stage: &stage}); err != nil {
		return fmt.Errorf("failed to decline thread %s: %w", in.ThreadID, err)
	}
	slog.Info("Engine: thread declined by opt-out", "threadID", in.ThreadID)
	return nil
}

// SeenMessage reports whether a source message id was already recorded on
// the thread's history.
func (e *Engine) SeenMessage(threadID, sourceID string) bool {
	state, err := e.st.GetConversation(threadID)
	if err != nil || state == nil {
		return false
	}
	for _, msg := range state.ConversationHistory {
		if msg.Metadata["source_id"] == sourceID {
			return true
		}
	}
	return false
}
