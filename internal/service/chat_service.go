package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"engagement-engine/internal/config"
	"engagement-engine/internal/conversation"
	"engagement-engine/internal/metrics"
	"engagement-engine/internal/model"
	"engagement-engine/internal/storage"
	"engagement-engine/pkg/logger"

	"github.com/oklog/ulid/v2"
)

// DefaultTitlePrefix marks titles the service generated itself. Such titles
// are replaced by the first user message.
const DefaultTitlePrefix = "New chat"

const titleMaxRunes = 30

var ErrSessionNotFound = errors.New("session not found")

// ChatService owns the live sessions and keeps them in sync with storage.
type ChatService struct {
	storage  storage.Storage
	engine   *conversation.Engine
	config   *config.SessionConfig
	now      func() time.Time
	mu       sync.RWMutex
	sessions map[string]*conversation.Session
}

type Option func(*ChatService)

func WithClock(now func() time.Time) Option {
	return func(s *ChatService) { s.now = now }
}

// NewChatService expects store to be initialized already.
func NewChatService(store storage.Storage, engine *conversation.Engine, cfg *config.SessionConfig, opts ...Option) *ChatService {
	if cfg == nil {
		cfg = &config.SessionConfig{}
	}
	s := &ChatService{
		storage:  store,
		engine:   engine,
		config:   cfg,
		now:      time.Now,
		sessions: make(map[string]*conversation.Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSessionID returns a lexically time-ordered id.
func NewSessionID() string {
	return ulid.Make().String()
}

func (s *ChatService) Storage() storage.Storage { return s.storage }

func (s *ChatService) Engine() *conversation.Engine { return s.engine }

// CreateSession creates, seeds and stores a session. An empty title gets a
// dated default.
func (s *ChatService) CreateSession(title string) (*conversation.Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitlePrefix + " " + s.now().Format("2006-01-02 15:04")
	}

	sess := conversation.New(NewSessionID(), s.engine)
	sess.SetTitle(title)
	sess.Seed()
	if err := s.storage.SaveSession(sess.Snapshot()); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	sess.SetPersister(s.storage)

	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.RecordSessionEvent("created")
	metrics.SetActiveSessions(n)
	logger.WithFields(logger.Fields{"session_id": sess.ID()}).Info("session created")
	return sess, nil
}

// GetSession returns the live session, restoring it from storage if needed.
func (s *ChatService) GetSession(sessionID string) (*conversation.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return sess, nil
	}

	snap, err := s.storage.GetSession(sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	s.mu.Lock()
	if live, ok := s.sessions[sessionID]; ok {
		s.mu.Unlock()
		return live, nil
	}
	sess = conversation.Restore(snap, s.engine)
	sess.SetPersister(s.storage)
	sess.Seed()
	s.sessions[sessionID] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.RecordSessionEvent("restored")
	metrics.SetActiveSessions(n)
	return sess, nil
}

func (s *ChatService) GetSessionMessages(sessionID string) ([]model.Message, error) {
	sess, err := s.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Messages(), nil
}

// SendMessage runs one turn. The first user message of a session with a
// default title becomes its title.
func (s *ChatService) SendMessage(ctx context.Context, sessionID, content string) (conversation.Response, error) {
	sess, err := s.GetSession(sessionID)
	if err != nil {
		return conversation.Response{}, err
	}

	text := strings.TrimSpace(content)
	if text != "" && strings.HasPrefix(sess.Title(), DefaultTitlePrefix) && !hasUserMessage(sess.Messages()) {
		sess.SetTitle(truncateString(text, titleMaxRunes))
	}

	return sess.SendMessage(ctx, content)
}

func hasUserMessage(msgs []model.Message) bool {
	for _, m := range msgs {
		if m.Role == model.RoleUser {
			return true
		}
	}
	return false
}

// ResetSession replaces the log with a fresh greeting.
func (s *ChatService) ResetSession(sessionID string) (*conversation.Session, error) {
	sess, err := s.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	sess.ClearMessages()
	metrics.RecordSessionEvent("cleared")
	return sess, nil
}

func (s *ChatService) UpdateSessionTitle(sessionID, title string) error {
	sess, err := s.GetSession(sessionID)
	if err != nil {
		return err
	}
	sess.SetTitle(strings.TrimSpace(title))
	return nil
}

func (s *ChatService) ListSessions() ([]*storage.SessionSummary, error) {
	sessions, err := s.storage.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (s *ChatService) DeleteSession(sessionID string) error {
	s.mu.Lock()
	sess, live := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	n := len(s.sessions)
	s.mu.Unlock()
	if live {
		detach(sess)
	}

	err := s.storage.DeleteSession(sessionID)
	switch {
	case errors.Is(err, storage.ErrSessionNotFound) && !live:
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	case err != nil && !errors.Is(err, storage.ErrSessionNotFound):
		return fmt.Errorf("failed to delete session: %w", err)
	}

	metrics.RecordSessionEvent("deleted")
	metrics.SetActiveSessions(n)
	return nil
}

// detach stops a session that is leaving the service from writing itself
// back to storage when a reply still in flight lands.
func detach(sess *conversation.Session) {
	sess.SetPersister(nil)
}

func (s *ChatService) ClearAllSessions() error {
	sessions, err := s.storage.ListSessions()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	s.mu.Lock()
	live := s.sessions
	s.sessions = make(map[string]*conversation.Session)
	s.mu.Unlock()
	for _, sess := range live {
		detach(sess)
	}

	for _, session := range sessions {
		if err := s.storage.DeleteSession(session.ID); err != nil && !errors.Is(err, storage.ErrSessionNotFound) {
			logger.Errorf("Failed to delete session %s: %v", session.ID, err)
		}
	}
	metrics.SetActiveSessions(0)
	return nil
}

// CleanupExpired deletes sessions idle for longer than the configured TTL.
// Sessions with a reply in flight are kept. It returns how many were removed.
func (s *ChatService) CleanupExpired(now time.Time) int {
	if s.config.TTL <= 0 {
		return 0
	}
	cutoff := now.Add(-s.config.TTL)

	sessions, err := s.storage.ListSessions()
	if err != nil {
		logger.Errorf("Failed to list sessions for cleanup: %v", err)
		return 0
	}

	removed := 0
	for _, summary := range sessions {
		if !summary.UpdatedAt.Before(cutoff) {
			continue
		}
		s.mu.Lock()
		if live, ok := s.sessions[summary.ID]; ok {
			if live.IsTyping() || !live.UpdatedAt().Before(cutoff) {
				s.mu.Unlock()
				continue
			}
			delete(s.sessions, summary.ID)
			detach(live)
		}
		s.mu.Unlock()

		if err := s.storage.DeleteSession(summary.ID); err != nil && !errors.Is(err, storage.ErrSessionNotFound) {
			logger.Errorf("Failed to delete expired session %s: %v", summary.ID, err)
			continue
		}
		removed++
		metrics.RecordSessionEvent("expired")
		logger.Infof("Cleaned up expired session: %s", summary.ID)
	}

	s.mu.RLock()
	metrics.SetActiveSessions(len(s.sessions))
	s.mu.RUnlock()
	return removed
}

// StartCleanup runs CleanupExpired every CleanupInterval until ctx ends.
func (s *ChatService) StartCleanup(ctx context.Context) {
	if s.config.CleanupInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(s.config.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.CleanupExpired(s.now())
			case <-ctx.Done():
				return
			}
		}
	}()
}

// StartBackup asks storage for a backup every interval until ctx ends.
func (s *ChatService) StartBackup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.storage.Backup(); err != nil {
					logger.Errorf("Backup failed: %v", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *ChatService) Greeting() model.Message {
	return s.engine.Greeting()
}

// Suggestions returns the whole suggested-question corpus.
func (s *ChatService) Suggestions() []string {
	return s.engine.SuggestedQuestions()
}

func (s *ChatService) Close() error {
	return s.storage.Close()
}

func truncateString(str string, maxLen int) string {
	runes := []rune(str)
	if len(runes) <= maxLen {
		return str
	}
	return string(runes[:maxLen]) + "..."
}
