package model

import "time"

// ChatResponse is what a single turn returns. Message is nil when the input
// was blank and nothing was appended.
type ChatResponse struct {
	SessionID          string   `json:"session_id,omitempty"`
	Message            *Message `json:"message"`
	SuggestedQuestions []string `json:"suggested_questions"`
}

type SessionResponse struct {
	SessionID          string    `json:"session_id"`
	Title              string    `json:"title"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	MessageCount       int       `json:"message_count"`
	IsTyping           bool      `json:"is_typing"`
	SuggestedQuestions []string  `json:"suggested_questions"`
}
