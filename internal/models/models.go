// Package models defines the core data structures for RecruitPipe.
//
// It includes conversation threads, message records, interview sessions, and
// the generated-reply contract shared across modules.
package models

import (
	"errors"
	"time"
)

// Channel identifies the communication channel a thread lives on.
type Channel string

const (
	// ChannelEmail is recruiter email.
	ChannelEmail Channel = "email"
	// ChannelSMS is text messaging (thread key = phone number).
	ChannelSMS Channel = "sms"
	// ChannelVoice is reserved for voice transcripts.
	ChannelVoice Channel = "voice"
)

// IsValidChannel checks if the given channel is supported.
func IsValidChannel(c Channel) bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelVoice:
		return true
	default:
		return false
	}
}

// Stage is the coarse negotiation phase tag attached to a thread.
//
// Stages form a loosely-ordered tag set, not a strict pipeline: the response
// generator may move a thread to any non-terminal stage. StageDeclined is
// terminal and reachable from anywhere.
type Stage string

const (
	StageInitialContact       Stage = "initial_contact"
	StageInformationGathering Stage = "information_gathering"
	StageScreening            Stage = "screening"
	StageNegotiation          Stage = "negotiation"
	StageScheduling           Stage = "scheduling"
	// StageDeclined is the terminal soft-delete marker. Threads are never
	// hard-deleted.
	StageDeclined Stage = "declined"
)

// IsValidStage checks if the given stage is one of the known tags.
func IsValidStage(s Stage) bool {
	switch s {
	case StageInitialContact, StageInformationGathering, StageScreening,
		StageNegotiation, StageScheduling, StageDeclined:
		return true
	default:
		return false
	}
}

// Direction records whether a message was received or sent.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Validation errors shared across modules.
var (
	ErrEmptyThreadID        = errors.New("thread_id cannot be empty")
	ErrInvalidChannel       = errors.New("invalid channel")
	ErrInvalidStage         = errors.New("invalid stage")
	ErrEmptyContent         = errors.New("message content cannot be empty")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrSessionNotFound      = errors.New("interview session not found")
)

// Message is one inbound or outbound event, owned by its thread. Messages are
// immutable once written.
type Message struct {
	Timestamp time.Time         `json:"timestamp"`
	Channel   Channel           `json:"channel"`
	Direction Direction         `json:"direction"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Validate checks the minimum requirements for a message record.
func (m *Message) Validate() error {
	if !IsValidChannel(m.Channel) {
		return ErrInvalidChannel
	}
	if m.Content == "" {
		return ErrEmptyContent
	}
	return nil
}

// ConversationState is the durable state of one negotiation thread.
//
// Invariants: ThreadID is globally unique and stable for the life of the
// negotiation; ConversationHistory is append-only and never truncated;
// UpdatedAt >= CreatedAt after every mutation.
type ConversationState struct {
	ThreadID            string            `json:"thread_id"`
	Stage               Stage             `json:"stage"`
	Channel             Channel           `json:"channel"`
	Company             string            `json:"company,omitempty"`
	RecruiterName       string            `json:"recruiter_name,omitempty"`
	Position            string            `json:"position,omitempty"`
	TechStack           []string          `json:"tech_stack,omitempty"`
	SalaryRange         string            `json:"salary_range,omitempty"`
	WorkArrangement     string            `json:"work_arrangement,omitempty"` // remote, hybrid, onsite
	Location            string            `json:"location,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
	ConversationHistory []Message         `json:"conversation_history"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	RequiresEscalation  bool              `json:"requires_escalation"`
	EscalationReason    string            `json:"escalation_reason,omitempty"`
}

// ConversationUpdate is a partial update applied to a ConversationState.
// Nil pointer fields are left untouched; this keeps the merge explicit and
// prevents a missing key from erasing an existing value.
type ConversationUpdate struct {
	Stage              *Stage    `json:"stage,omitempty"`
	Company            *string   `json:"company,omitempty"`
	RecruiterName      *string   `json:"recruiter_name,omitempty"`
	Position           *string   `json:"position,omitempty"`
	TechStack          *[]string `json:"tech_stack,omitempty"`
	SalaryRange        *string   `json:"salary_range,omitempty"`
	WorkArrangement    *string   `json:"work_arrangement,omitempty"`
	Location           *string   `json:"location,omitempty"`
	RequiresEscalation *bool     `json:"requires_escalation,omitempty"`
	EscalationReason   *string   `json:"escalation_reason,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"` // merged key-wise
}

// ExtractedInfo carries the fields the response generator pulled out of an
// inbound message. Empty strings mean "not extracted" and must never
// overwrite an existing value.
type ExtractedInfo struct {
	Company         string `json:"company,omitempty"`
	Position        string `json:"position,omitempty"`
	RecruiterName   string `json:"recruiter_name,omitempty"`
	SalaryRange     string `json:"salary_range,omitempty"`
	WorkArrangement string `json:"work_arrangement,omitempty"`
}

// GeneratedReply is the structured output of the response generator.
type GeneratedReply struct {
	Response           string        `json:"response"`
	NextStage          Stage         `json:"next_stage,omitempty"`
	ExtractedInfo      ExtractedInfo `json:"extracted_info"`
	RequiresEscalation bool          `json:"requires_escalation"`
	EscalationReason   string        `json:"escalation_reason,omitempty"`
}

// SessionStatus marks whether an interview session is still being driven.
type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusClosed SessionStatus = "closed"
)

// InterviewSession is the durable record of one interview-portal interaction,
// keyed by URL. State is the controller's working state serialized as JSON.
type InterviewSession struct {
	URL       string        `json:"url"`
	Company   string        `json:"company,omitempty"`
	Position  string        `json:"position,omitempty"`
	State     string        `json:"state"` // opaque JSON blob owned by the interview controller
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// StatusReport aggregates active conversations for the operator surface.
type StatusReport struct {
	TotalConversations  int                 `json:"total_conversations"`
	ByStage             map[Stage]int       `json:"by_stage"`
	ByChannel           map[Channel]int     `json:"by_channel"`
	RequiringEscalation []EscalationSummary `json:"requiring_escalation,omitempty"`
}

// EscalationSummary is one escalated thread in a status report.
type EscalationSummary struct {
	ThreadID string `json:"thread_id"`
	Company  string `json:"company,omitempty"`
	Position string `json:"position,omitempty"`
	Reason   string `json:"reason,omitempty"`
}
