// Package store provides storage backends for RecruitPipe.
//
// This file implements the SQLite-backed conversation store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"
	"github.com/recruitpipe/recruitpipe/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateConversation(threadID string, channel models.Channel, initial models.Message) (*models.ConversationState, bool, error) {
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
		slog.Warn("SQLiteStore CreateConversation replacing existing thread", "threadID", threadID)
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
	slog.Debug("SQLiteStore CreateConversation succeeded", "threadID", threadID, "created", created)
	return state, created, nil
}

func (s *SQLiteStore) GetConversation(threadID string) (*models.ConversationState, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE thread_id = ?`
	state, err := scanConversation(s.db.QueryRow(query, threadID))
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetConversation not found", "threadID", threadID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversation failed", "error", err, "threadID", threadID)
		return nil, fmt.Errorf("failed to get conversation %s: %w", threadID, err)
	}
	return state, nil
}

func (s *SQLiteStore) UpdateConversation(threadID string, update models.ConversationUpdate) (*models.ConversationState, error) {
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
	slog.Debug("SQLiteStore UpdateConversation succeeded", "threadID", threadID, "stage", state.Stage)
	return state, nil
}

func (s *SQLiteStore) AppendMessage(threadID string, msg models.Message) error {
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
	// The message log insert is a separate commit; callers tolerate the two
	// writes being momentarily out of sync after a crash.
	if err := s.insertMessage(threadID, msg); err != nil {
		return err
	}
	slog.Debug("SQLiteStore AppendMessage succeeded", "threadID", threadID, "direction", msg.Direction, "historyLen", len(state.ConversationHistory))
	return nil
}

func (s *SQLiteStore) ListActiveConversations() ([]models.ConversationState, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations
		WHERE stage != ? ORDER BY updated_at DESC`
	rows, err := s.db.Query(query, string(models.StageDeclined))
	if err != nil {
		slog.Error("SQLiteStore ListActiveConversations query failed", "error", err)
		return nil, fmt.Errorf("failed to query active conversations: %w", err)
	}
	defer rows.Close()

	var active []models.ConversationState
	for rows.Next() {
		state, err := scanConversation(rows)
		if err != nil {
			slog.Error("SQLiteStore ListActiveConversations scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		active = append(active, *state)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListActiveConversations rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate conversation rows: %w", err)
	}
	slog.Debug("SQLiteStore ListActiveConversations succeeded", "count", len(active))
	return active, nil
}

func (s *SQLiteStore) SaveInterviewSession(session models.InterviewSession) error {
	if session.Status == "" {
		session.Status = models.SessionStatusActive
	}
	query := `
		INSERT INTO interview_sessions (url, company, position, state, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(url) DO UPDATE SET
			company = excluded.company,
			position = excluded.position,
			state = excluded.state,
			status = excluded.status,
			updated_at = CURRENT_TIMESTAMP`
	_, err := s.db.Exec(query, session.URL, nilIfEmpty(session.Company), nilIfEmpty(session.Position),
		nilIfEmpty(session.State), string(session.Status))
	if err != nil {
		slog.Error("SQLiteStore SaveInterviewSession failed", "error", err, "url", session.URL)
		return fmt.Errorf("failed to save interview session for %s: %w", session.URL, err)
	}
	slog.Debug("SQLiteStore SaveInterviewSession succeeded", "url", session.URL, "status", session.Status)
	return nil
}

func (s *SQLiteStore) GetInterviewSession(url string) (*models.InterviewSession, error) {
	query := `SELECT url, company, position, state, status, created_at, updated_at
		FROM interview_sessions WHERE url = ?`
	session, err := scanInterviewSession(s.db.QueryRow(query, url))
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetInterviewSession not found", "url", url)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetInterviewSession failed", "error", err, "url", url)
		return nil, fmt.Errorf("failed to get interview session for %s: %w", url, err)
	}
	return session, nil
}

func (s *SQLiteStore) UpdateInterviewSession(url string, stateJSON string, status models.SessionStatus) error {
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

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}

func (s *SQLiteStore) writeConversation(state *models.ConversationState) error {
	args, err := conversationWriteArgs(state)
	if err != nil {
		slog.Error("SQLiteStore writeConversation marshal failed", "error", err, "threadID", state.ThreadID)
		return err
	}
	query := `
		INSERT OR REPLACE INTO conversations (` + conversationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.Exec(query, args...); err != nil {
		slog.Error("SQLiteStore writeConversation failed", "error", err, "threadID", state.ThreadID)
		return fmt.Errorf("failed to write conversation %s: %w", state.ThreadID, err)
	}
	return nil
}

func (s *SQLiteStore) insertMessage(threadID string, msg models.Message) error {
	args, err := messageWriteArgs(threadID, msg)
	if err != nil {
		slog.Error("SQLiteStore insertMessage marshal failed", "error", err, "threadID", threadID)
		return err
	}
	query := `INSERT INTO messages (thread_id, timestamp, channel, direction, content, metadata)
		VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.Exec(query, args...); err != nil {
		slog.Error("SQLiteStore insertMessage failed", "error", err, "threadID", threadID)
		return fmt.Errorf("failed to insert message for %s: %w", threadID, err)
	}
	return nil
}
