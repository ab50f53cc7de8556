package storage

import (
	"fmt"
	"sort"
	"sync"

	"engagement-engine/internal/model"
)

type MemoryStorage struct {
	sessions map[string]*model.Session
	mu       sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		sessions: make(map[string]*model.Session),
	}
}

func (m *MemoryStorage) Init() error {
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

// Backup is a no-op: memory storage has nothing durable to copy.
func (m *MemoryStorage) Backup() error {
	return nil
}

func (m *MemoryStorage) SaveSession(session *model.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("%w: session without id", ErrInvalidData)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.ID] = session.Clone()
	return nil
}

func (m *MemoryStorage) GetSession(sessionID string) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}

	return session.Clone(), nil
}

func (m *MemoryStorage) DeleteSession(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[sessionID]; !exists {
		return ErrSessionNotFound
	}

	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryStorage) ListSessions() ([]*SessionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*SessionSummary, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, summarize(session))
	}
	sortByRecent(sessions)

	return sessions, nil
}

func (m *MemoryStorage) GetMessages(sessionID string) ([]model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}

	return model.CloneMessages(session.Messages), nil
}

func sortByRecent(sessions []*SessionSummary) {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].UpdatedAt.Equal(sessions[j].UpdatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
}
