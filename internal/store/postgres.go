// Package store provides storage backends for RecruitPipe.
//
// This file implements the PostgreSQL-backed conversation store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"
	"github.com/recruitpipe/recruitpipe/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) CreateConversation(threadID string, channel models.Channel, initial models.Message) (*models.ConversationState, bool, error) {
	if threadID == "" {
		return nil, false, models.ErrEmptyThreadID
	}
	if !models.IsValidChannel(channel) {
		return nil, false, models.ErrInvalidChannel
	}

	existing, err := s.GetConversation(threadID)
	if err != nil {
		return nil, false, err
	}
	created := existing == nil
	if !created {
		slog.Warn("PostgresStore CreateConversation replacing existing thread", "threadID", threadID)
	}

	now := time.Now()
	state := &models.ConversationState{
		ThreadID:            threadID,
		Stage:               models.StageInitialContact,
		Channel:             channel,
		TechStack:           []string{},
		CreatedAt:           now,
		UpdatedAt:           now,
		ConversationHistory: []models.Message{initial},
		Metadata:            map[string]string{},
	}
	if err := s.writeConversation(state); err != nil {
		return nil, false, err
	}
	if err := s.insertMessage(threadID, initial); err != nil {
		return nil, false, err
	}
	slog.Debug("PostgresStore CreateConversation succeeded", "threadID", threadID, "created", created)
	return state, created, nil
}

func (s *PostgresStore) GetConversation(threadID string) (*models.ConversationState, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE thread_id = $1`
	state, err := scanConversation(s.db.QueryRow(query, threadID))
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetConversation not found", "threadID", threadID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConversation failed", "error", err, "threadID", threadID)
		return nil, fmt.Errorf("failed to get conversation %s: %w", threadID, err)
	}
	return state, nil
}

func (s *PostgresStore) UpdateConversation(threadID string, update models.ConversationUpdate) (*models.ConversationState, error) {
	state, err := s.GetConversation(threadID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, models.ErrConversationNotFound
	}
	applyUpdate(state, update)
	if err := s.writeConversation(state); err != nil {
		return nil, err
	}
	slog.Debug("PostgresStore UpdateConversation succeeded", "threadID", threadID, "stage", state.Stage)
	return state, nil
}

func (s *PostgresStore) AppendMessage(threadID string, msg models.Message) error {
	state, err := s.GetConversation(threadID)
	if err != nil {
		return err
	}
	if state == nil {
		return models.ErrConversationNotFound
	}
	state.ConversationHistory = append(state.ConversationHistory, msg)
	state.UpdatedAt = time.Now()
	if err := s.writeConversation(state); err != nil {
		return err
	}
	if err := s.insertMessage(threadID, msg); err != nil {
		return err
	}
	slog.Debug("PostgresStore AppendMessage succeeded", "threadID", threadID, "direction", msg.Direction)
	return nil
}

func (s *PostgresStore) ListActiveConversations() ([]models.ConversationState, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations
		WHERE stage != $1 ORDER BY updated_at DESC`
	rows, err := s.db.Query(query, string(models.StageDeclined))
	if err != nil {
		slog.Error("PostgresStore ListActiveConversations query failed", "error", err)
		return nil, fmt.Errorf("failed to query active conversations: %w", err)
	}
	defer rows.Close()

	var active []models.ConversationState
	for rows.Next() {
		state, err := scanConversation(rows)
		if err != nil {
			slog.Error("PostgresStore ListActiveConversations scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		active = append(active, *state)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListActiveConversations rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate conversation rows: %w", err)
	}
	slog.Debug("PostgresStore ListActiveConversations succeeded", "count", len(active))
	return active, nil
}

func (s *PostgresStore) SaveInterviewSession(session models.InterviewSession) error {
	if session.Status == "" {
		session.Status = models.SessionStatusActive
	}
	query := `
		INSERT INTO interview_sessions (url, company, position, state, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (url) DO UPDATE SET
			company = EXCLUDED.company,
			position = EXCLUDED.position,
			state = EXCLUDED.state,
			status = EXCLUDED.status,
			updated_at = NOW()`
	_, err := s.db.Exec(query, session.URL, nilIfEmpty(session.Company), nilIfEmpty(session.Position),
		nilIfEmpty(session.State), string(session.Status))
	if err != nil {
		slog.Error("PostgresStore SaveInterviewSession failed", "error", err, "url", session.URL)
		return fmt.Errorf("failed to save interview session for %s: %w", session.URL, err)
	}
	slog.Debug("PostgresStore SaveInterviewSession succeeded", "url", session.URL, "status", session.Status)
	return nil
}

func (s *PostgresStore) GetInterviewSession(url string) (*models.InterviewSession, error) {
	query := `SELECT url, company, position, state, status, created_at, updated_at
		FROM interview_sessions WHERE url = $1`
	session, err := scanInterviewSession(s.db.QueryRow(query, url))
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetInterviewSession not found", "url", url)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetInterviewSession failed", "error", err, "url", url)
		return nil, fmt.Errorf("failed to get interview session for %s: %w", url, err)
	}
	return session, nil
}

func (s *PostgresStore) UpdateInterviewSession(url string, stateJSON string, status models.SessionStatus) error {
	session, err := s.GetInterviewSession(url)
	if err != nil {
		return err
	}
	if session == nil {
		return models.ErrSessionNotFound
	}
	if stateJSON != "" {
		session.State = stateJSON
	}
	if status != "" {
		session.Status = status
	}
	return s.SaveInterviewSession(*session)
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}

func (s *PostgresStore) writeConversation(state *models.ConversationState) error {
	args, err := conversationWriteArgs(state)
	if err != nil {
		slog.Error("PostgresStore writeConversation marshal failed", "error", err, "threadID", state.ThreadID)
		return err
	}
	query := `
		INSERT INTO conversations (` + conversationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (thread_id) DO UPDATE SET
			stage = EXCLUDED.stage, channel = EXCLUDED.channel,
			company = EXCLUDED.company, recruiter_name = EXCLUDED.recruiter_name,
			position = EXCLUDED.position, tech_stack = EXCLUDED.tech_stack,
			salary_range = EXCLUDED.salary_range, work_arrangement = EXCLUDED.work_arrangement,
			location = EXCLUDED.location, created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at, conversation_history = EXCLUDED.conversation_history,
			metadata = EXCLUDED.metadata, requires_escalation = EXCLUDED.requires_escalation,
			escalation_reason = EXCLUDED.escalation_reason`
	if _, err := s.db.Exec(query, args...); err != nil {
		slog.Error("PostgresStore writeConversation failed", "error", err, "threadID", state.ThreadID)
		return fmt.Errorf("failed to write conversation %s: %w", state.ThreadID, err)
	}
	return nil
}

func (s *PostgresStore) insertMessage(threadID string, msg models.Message) error {
	args, err := messageWriteArgs(threadID, msg)
	if err != nil {
		slog.Error("PostgresStore insertMessage marshal failed", "error", err, "threadID", threadID)
		return err
	}
	query := `INSERT INTO messages (thread_id, timestamp, channel, direction, content, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.db.Exec(query, args...); err != nil {
		slog.Error("PostgresStore insertMessage failed", "error", err, "threadID", threadID)
		return fmt.Errorf("failed to insert message for %s: %w", threadID, err)
	}
	return nil
}
