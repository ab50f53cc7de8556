package storage

import (
	"time"

	"engagement-engine/internal/model"
)

// SessionSummary is the listing form of a session, without its messages.
type SessionSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func summarize(s *model.Session) *SessionSummary {
	return &SessionSummary{
		ID:           s.ID,
		Title:        s.Title,
		MessageCount: len(s.Messages),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// Storage persists session snapshots. Implementations copy on the way in and
// out, so callers may keep mutating what they passed.
type Storage interface {
	SaveSession(session *model.Session) error
	GetSession(sessionID string) (*model.Session, error)
	DeleteSession(sessionID string) error
	ListSessions() ([]*SessionSummary, error)

	GetMessages(sessionID string) ([]model.Message, error)

	Init() error
	Close() error
	Backup() error
}
