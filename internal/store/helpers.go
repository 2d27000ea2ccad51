package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/recruitpipe/recruitpipe/internal/models"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// marshalJSONField serializes v to a JSON string, or "" for empty values.
func marshalJSONField(v interface{}) (string, error) {
	switch t := v.(type) {
	case []string:
		if len(t) == 0 {
			return "", nil
		}
	case map[string]string:
		if len(t) == 0 {
			return "", nil
		}
	case []models.Message:
		if len(t) == 0 {
			return "", nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal JSON field: %w", err)
	}
	return string(data), nil
}

// conversationColumns is the select list shared by both SQL backends. Order
// must match scanConversation.
const conversationColumns = `thread_id, stage, channel, company, recruiter_name, position,
	tech_stack, salary_range, work_arrangement, location,
	created_at, updated_at, conversation_history, metadata,
	requires_escalation, escalation_reason`

// scanConversation scans one conversations row into a ConversationState.
func scanConversation(row rowScanner) (*models.ConversationState, error) {
	var state models.ConversationState
	var company, recruiterName, position, techStackJSON sql.NullString
	var salaryRange, workArrangement, location sql.NullString
	var historyJSON, metadataJSON, escalationReason sql.NullString
	var createdAt, updatedAt sql.NullTime

	err := row.Scan(
		&state.ThreadID, &state.Stage, &state.Channel, &company, &recruiterName, &position,
		&techStackJSON, &salaryRange, &workArrangement, &location,
		&createdAt, &updatedAt, &historyJSON, &metadataJSON,
		&state.RequiresEscalation, &escalationReason,
	)
	if err != nil {
		return nil, err
	}

	state.Company = company.String
	state.RecruiterName = recruiterName.String
	state.Position = position.String
	state.SalaryRange = salaryRange.String
	state.WorkArrangement = workArrangement.String
	state.Location = location.String
	state.EscalationReason = escalationReason.String
	if createdAt.Valid {
		state.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		state.UpdatedAt = updatedAt.Time
	}

	state.TechStack = []string{}
	if techStackJSON.String != "" {
		if err := json.Unmarshal([]byte(techStackJSON.String), &state.TechStack); err != nil {
			slog.Error("store scanConversation tech_stack unmarshal failed", "error", err, "threadID", state.ThreadID)
			state.TechStack = []string{}
		}
	}
	if historyJSON.String != "" {
		if err := json.Unmarshal([]byte(historyJSON.String), &state.ConversationHistory); err != nil {
			slog.Error("store scanConversation history unmarshal failed", "error", err, "threadID", state.ThreadID)
			state.ConversationHistory = nil
		}
	}
	state.Metadata = map[string]string{}
	if metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &state.Metadata); err != nil {
			slog.Error("store scanConversation metadata unmarshal failed", "error", err, "threadID", state.ThreadID)
			state.Metadata = map[string]string{}
		}
	}
	return &state, nil
}

// scanInterviewSession scans one interview_sessions row.
func scanInterviewSession(row rowScanner) (*models.InterviewSession, error) {
	var session models.InterviewSession
	var company, position, stateJSON sql.NullString
	var createdAt, updatedAt sql.NullTime
	err := row.Scan(&session.URL, &company, &position, &stateJSON, &session.Status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	session.Company = company.String
	session.Position = position.String
	session.State = stateJSON.String
	if createdAt.Valid {
		session.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		session.UpdatedAt = updatedAt.Time
	}
	return &session, nil
}

// conversationWriteArgs builds the ordered argument list for writing a full
// conversation row. Shared by both backends.
func conversationWriteArgs(state *models.ConversationState) ([]interface{}, error) {
	techStackJSON, err := marshalJSONField(state.TechStack)
	if err != nil {
		return nil, err
	}
	historyJSON, err := marshalJSONField(state.ConversationHistory)
	if err != nil {
		return nil, err
	}
	metadataJSON, err := marshalJSONField(state.Metadata)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		state.ThreadID, string(state.Stage), string(state.Channel),
		nilIfEmpty(state.Company), nilIfEmpty(state.RecruiterName), nilIfEmpty(state.Position),
		nilIfEmpty(techStackJSON), nilIfEmpty(state.SalaryRange), nilIfEmpty(state.WorkArrangement),
		nilIfEmpty(state.Location), state.CreatedAt, state.UpdatedAt,
		nilIfEmpty(historyJSON), nilIfEmpty(metadataJSON),
		state.RequiresEscalation, nilIfEmpty(state.EscalationReason),
	}, nil
}

// messageWriteArgs builds the ordered argument list for inserting a message row.
func messageWriteArgs(threadID string, msg models.Message) ([]interface{}, error) {
	metadataJSON, err := marshalJSONField(msg.Metadata)
	if err != nil {
		return nil, err
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return []interface{}{
		threadID, ts, string(msg.Channel), string(msg.Direction),
		msg.Content, nilIfEmpty(metadataJSON),
	}, nil
}
