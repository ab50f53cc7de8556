package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"engagement-engine/internal/model"
	"engagement-engine/pkg/logger"
)

// Persister stores session snapshots. Implementations must not call back
// into the session.
type Persister interface {
	SaveSession(snapshot *model.Session) error
}

// Response is the outcome of one SendMessage call. Message is nil when the
// input was blank or the log was cleared before the reply landed.
type Response struct {
	Message            *model.Message
	SuggestedQuestions []string
}

// Session is one conversation. Its message log and suggestion set belong to
// it alone; all methods are safe for concurrent use, but concurrent
// SendMessage calls append in completion order.
type Session struct {
	mu sync.Mutex

	id        string
	title     string
	engine    *Engine
	persister Persister

	messages    []model.Message
	suggestions []string
	pending     int
	gen         uint64
	open        bool
	initialized bool
	createdAt   time.Time
	updatedAt   time.Time
}

// New creates an uninitialized session. Call Seed or Open to greet.
func New(id string, e *Engine) *Session {
	now := e.now()
	return &Session{
		id:          id,
		engine:      e,
		messages:    []model.Message{},
		suggestions: []string{},
		createdAt:   now,
		updatedAt:   now,
	}
}

// Restore rebuilds a session from a persisted snapshot.
func Restore(snap *model.Session, e *Engine) *Session {
	s := New(snap.ID, e)
	s.title = snap.Title
	s.messages = model.CloneMessages(snap.Messages)
	if s.messages == nil {
		s.messages = []model.Message{}
	}
	s.initialized = snap.Initialized
	if !snap.CreatedAt.IsZero() {
		s.createdAt = snap.CreatedAt
	}
	if !snap.UpdatedAt.IsZero() {
		s.updatedAt = snap.UpdatedAt
	}
	return s
}

func (s *Session) SetPersister(p Persister) {
	s.mu.Lock()
	s.persister = p
	s.mu.Unlock()
}

// Seed greets an empty session. A session that already has messages is only
// marked initialized. Calling Seed again is a no-op.
func (s *Session) Seed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seedLocked()
}

func (s *Session) seedLocked() {
	if len(s.messages) == 0 {
		s.messages = []model.Message{s.engine.Greeting()}
		s.suggestions = s.engine.Suggestions()
		s.initialized = true
		s.touchLocked()
		return
	}
	if len(s.suggestions) == 0 && s.pending == 0 {
		s.suggestions = s.engine.Suggestions()
	}
	if !s.initialized {
		s.initialized = true
		s.touchLocked()
	}
}

// Open shows the chat, seeding it on first use.
func (s *Session) Open() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		s.seedLocked()
	}
	s.open = true
}

func (s *Session) Close() {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
}

// Toggle flips the open flag and reports the new value.
func (s *Session) Toggle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open && !s.initialized {
		s.seedLocked()
	}
	s.open = !s.open
	return s.open
}

// SendMessage appends a user turn, composes a reply, waits out the typing
// delay and appends the reply. Blank input is ignored.
//
// A composer failure is answered with ApologyMessage and no error. If ctx
// ends during the delay, the reply is dropped and ctx.Err() returned. A reply
// that finishes after ClearMessages is discarded.
func (s *Session) SendMessage(ctx context.Context, text string) (Response, error) {
	content := strings.TrimSpace(text)
	if content == "" {
		return Response{SuggestedQuestions: s.Suggestions()}, nil
	}

	s.mu.Lock()
	s.messages = append(s.messages, s.engine.CreateUserMessage(content))
	s.suggestions = []string{}
	s.pending++
	gen := s.gen
	s.touchLocked()
	s.mu.Unlock()

	var msg model.Message
	reply, err := s.engine.compose(content)
	if err != nil {
		msg = s.engine.apology(err)
	} else {
		if err := s.engine.sleeper.Sleep(ctx, reply.Delay); err != nil {
			s.mu.Lock()
			if s.settleLocked(gen) && s.pending == 0 {
				s.suggestions = s.engine.Suggestions()
			}
			s.mu.Unlock()
			logger.WithFields(logger.Fields{"session_id": s.id}).Debug("reply dropped: " + err.Error())
			return Response{}, err
		}
		msg = s.engine.assistantMessage(reply)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.settleLocked(gen) {
		logger.WithFields(logger.Fields{"session_id": s.id}).Debug("reply dropped: session cleared")
		return Response{SuggestedQuestions: append([]string{}, s.suggestions...)}, nil
	}
	s.messages = append(s.messages, msg)
	s.suggestions = s.engine.Suggestions()
	s.touchLocked()

	out := msg.Clone()
	return Response{
		Message:            &out,
		SuggestedQuestions: append([]string(nil), s.suggestions...),
	}, nil
}

// ClearMessages resets the log to a single fresh greeting.
func (s *Session) ClearMessages() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = []model.Message{s.engine.Greeting()}
	s.suggestions = s.engine.Suggestions()
	s.pending = 0
	s.gen++
	s.initialized = true
	s.touchLocked()
}

// settleLocked retires one pending reply started in generation gen and
// reports whether that generation is still current. Caller holds mu.
func (s *Session) settleLocked(gen uint64) bool {
	if gen != s.gen {
		return false
	}
	if s.pending > 0 {
		s.pending--
	}
	return true
}

// touchLocked bumps updatedAt and persists. Caller holds mu.
func (s *Session) touchLocked() {
	s.updatedAt = s.engine.now()
	if s.persister == nil {
		return
	}
	if err := s.persister.SaveSession(s.snapshotLocked()); err != nil {
		logger.WithFields(logger.Fields{
			"session_id": s.id,
			"error":      err,
		}).Error("failed to persist session")
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

func (s *Session) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = title
	s.touchLocked()
}

// Messages returns a copy of the log.
func (s *Session) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CloneMessages(s.messages)
}

func (s *Session) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *Session) Suggestions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.suggestions...)
}

// IsTyping reports whether a reply is being composed.
func (s *Session) IsTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending > 0
}

func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *Session) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Snapshot returns the persistable part of the session.
func (s *Session) Snapshot() *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() *model.Session {
	return &model.Session{
		ID:          s.id,
		Title:       s.title,
		Messages:    model.CloneMessages(s.messages),
		Initialized: s.initialized,
		CreatedAt:   s.createdAt,
		UpdatedAt:   s.updatedAt,
	}
}
