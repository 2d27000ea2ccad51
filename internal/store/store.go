// Package store provides storage backends for RecruitPipe.
//
// It persists conversation threads, their append-only message logs, and
// interview sessions. SQLite and PostgreSQL backends share the same contract;
// an in-memory store backs tests.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/recruitpipe/recruitpipe/internal/models"
)

// Store is the durable conversation store contract.
//
// Every write is fully committed before the call returns. Get variants return
// (nil, nil) when the record is absent; Update variants return
// models.ErrConversationNotFound / models.ErrSessionNotFound instead.
type Store interface {
	// CreateConversation creates (or, if the thread already exists, replaces)
	// the conversation state for threadID, seeding its history with the
	// initial message. The returned bool is true when a new thread was
	// created and false when an existing one was replaced.
	CreateConversation(threadID string, channel models.Channel, initial models.Message) (*models.ConversationState, bool, error)

	// GetConversation retrieves conversation state by thread ID.
	GetConversation(threadID string) (*models.ConversationState, error)

	// UpdateConversation applies a partial update and returns the new state.
	UpdateConversation(threadID string, update models.ConversationUpdate) (*models.ConversationState, error)

	// AppendMessage appends a message to the thread's history and message log.
	AppendMessage(threadID string, msg models.Message) error

	// ListActiveConversations returns all conversations whose stage is not
	// declined, most recently updated first.
	ListActiveConversations() ([]models.ConversationState, error)

	// SaveInterviewSession inserts or replaces an interview session keyed by URL.
	SaveInterviewSession(session models.InterviewSession) error

	// GetInterviewSession retrieves an interview session by URL.
	GetInterviewSession(url string) (*models.InterviewSession, error)

	// UpdateInterviewSession applies a read-merge-write update (last writer
	// wins at field granularity) to the session's opaque state blob.
	UpdateInterviewSession(url string, stateJSON string, status models.SessionStatus) error

	// Close releases the underlying database resources.
	Close() error
}

// InMemoryStore is a map-backed Store used by tests and as a fallback when no
// database DSN is configured.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*models.ConversationState
	sessions      map[string]*models.InterviewSession
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string]*models.ConversationState),
		sessions:      make(map[string]*models.InterviewSession),
	}
}

func (s *InMemoryStore) CreateConversation(threadID string, channel models.Channel, initial models.Message) (*models.ConversationState, bool, error) {
	if threadID == "" {
		return nil, false, models.ErrEmptyThreadID
	}
	if !models.IsValidChannel(channel) {
		return nil, false, models.ErrInvalidChannel
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.conversations[threadID]
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
	s.conversations[threadID] = state
	copied := *state
	return &copied, !exists, nil
}

func (s *InMemoryStore) GetConversation(threadID string) (*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.conversations[threadID]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (s *InMemoryStore) UpdateConversation(threadID string, update models.ConversationUpdate) (*models.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.conversations[threadID]
	if !ok {
		return nil, models.ErrConversationNotFound
	}
	applyUpdate(state, update)
	copied := *state
	return &copied, nil
}

func (s *InMemoryStore) AppendMessage(threadID string, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.conversations[threadID]
	if !ok {
		return models.ErrConversationNotFound
	}
	state.ConversationHistory = append(state.ConversationHistory, msg)
	state.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryStore) ListActiveConversations() ([]models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var active []models.ConversationState
	for _, state := range s.conversations {
		if state.Stage != models.StageDeclined {
			active = append(active, *state)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].UpdatedAt.After(active[j].UpdatedAt)
	})
	return active, nil
}

func (s *InMemoryStore) SaveInterviewSession(session models.InterviewSession) error {
	if session.Status == "" {
		session.Status = models.SessionStatusActive
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if existing, ok := s.sessions[session.URL]; ok {
		session.CreatedAt = existing.CreatedAt
	} else if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	copied := session
	s.sessions[session.URL] = &copied
	return nil
}

func (s *InMemoryStore) GetInterviewSession(url string) (*models.InterviewSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[url]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (s *InMemoryStore) UpdateInterviewSession(url string, stateJSON string, status models.SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[url]
	if !ok {
		return models.ErrSessionNotFound
	}
	if stateJSON != "" {
		session.State = stateJSON
	}
	if status != "" {
		session.Status = status
	}
	session.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryStore) Close() error { return nil }

// applyUpdate merges a partial update into the state and bumps UpdatedAt.
func applyUpdate(state *models.ConversationState, update models.ConversationUpdate) {
	if update.Stage != nil {
		state.Stage = *update.Stage
	}
	if update.Company != nil {
		state.Company = *update.Company
	}
	if update.RecruiterName != nil {
		state.RecruiterName = *update.RecruiterName
	}
	if update.Position != nil {
		state.Position = *update.Position
	}
	if update.TechStack != nil {
		state.TechStack = *update.TechStack
	}
	if update.SalaryRange != nil {
		state.SalaryRange = *update.SalaryRange
	}
	if update.WorkArrangement != nil {
		state.WorkArrangement = *update.WorkArrangement
	}
	if update.Location != nil {
		state.Location = *update.Location
	}
	if update.RequiresEscalation != nil {
		state.RequiresEscalation = *update.RequiresEscalation
	}
	if update.EscalationReason != nil {
		state.EscalationReason = *update.EscalationReason
	}
	if len(update.Metadata) > 0 {
		if state.Metadata == nil {
			state.Metadata = make(map[string]string, len(update.Metadata))
		}
		for k, v := range update.Metadata {
			state.Metadata[k] = v
		}
	}
	state.UpdatedAt = time.Now()
}
