package model

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Metadata is only attached to assistant messages.
type Metadata struct {
	Topics     []string   `json:"topics"`
	Confidence Confidence `json:"confidence"`
	IsFallback bool       `json:"is_fallback"`
	Sources    []string   `json:"sources,omitempty"`
}

type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"` // lightweight markdown
	Timestamp time.Time `json:"timestamp"`
	Metadata  *Metadata `json:"metadata,omitempty"`
}

// Session is the persisted form of a conversation. Typing state, suggestions
// and the open flag are transient and never stored.
type Session struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Messages    []Message `json:"messages"`
	Initialized bool      `json:"initialized"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers can't alias storage internals.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = CloneMessages(s.Messages)
	return &out
}

func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

func (m Message) Clone() Message {
	if m.Metadata != nil {
		md := *m.Metadata
		md.Topics = append([]string(nil), m.Metadata.Topics...)
		md.Sources = append([]string(nil), m.Metadata.Sources...)
		m.Metadata = &md
	}
	return m
}
