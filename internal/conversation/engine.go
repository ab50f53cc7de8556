// Package conversation runs chat sessions on top of the composer: it seeds
// greetings, appends turns, waits out typing delays and recovers from
// composer failures.
package conversation

import (
	"errors"
	"fmt"
	"time"

	"engagement-engine/internal/composer"
	"engagement-engine/internal/knowledge"
	"engagement-engine/internal/metrics"
	"engagement-engine/internal/model"
	"engagement-engine/pkg/logger"

	"github.com/google/uuid"
)

// DefaultSuggestionCount is how many follow-up questions a session shows.
const DefaultSuggestionCount = 3

// ApologyMessage replaces a reply the composer failed to produce.
const ApologyMessage = "I'm sorry, I encountered an error processing your request. Please try again."

var ErrComposeFailed = errors.New("compose failed")

var greetingTopics = []string{"greeting", "welcome"}

// Responder produces replies. *composer.Composer is the production one.
type Responder interface {
	Compose(input string) (composer.Reply, error)
}

// Engine is shared by every session. It holds no per-conversation state.
type Engine struct {
	kb              *knowledge.Base
	responder       Responder
	rng             composer.Rand
	delay           composer.DelayPolicy
	sleeper         Sleeper
	now             func() time.Time
	newID           func() string
	suggestionCount int
}

type Option func(*Engine)

func WithSleeper(s Sleeper) Option {
	return func(e *Engine) { e.sleeper = s }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// WithResponder replaces the composer used for replies. Greeting and
// suggestions still come from the knowledge base.
func WithResponder(r Responder) Option {
	return func(e *Engine) { e.responder = r }
}

func WithSuggestionCount(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.suggestionCount = n
		}
	}
}

func NewEngine(c *composer.Composer, opts ...Option) *Engine {
	e := &Engine{
		kb:              c.Knowledge(),
		responder:       c,
		rng:             c.Rand(),
		delay:           c.DelayPolicy(),
		sleeper:         TimerSleeper{},
		now:             time.Now,
		newID:           NewMessageID,
		suggestionCount: DefaultSuggestionCount,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func NewMessageID() string {
	return uuid.NewString()
}

// Greeting returns a fresh greeting message.
func (e *Engine) Greeting() model.Message {
	return model.Message{
		ID:        e.newID(),
		Role:      model.RoleAssistant,
		Content:   e.kb.Greeting,
		Timestamp: e.now(),
		Metadata: &model.Metadata{
			Topics:     append([]string(nil), greetingTopics...),
			Confidence: model.ConfidenceHigh,
		},
	}
}

func (e *Engine) CreateUserMessage(content string) model.Message {
	return model.Message{
		ID:        e.newID(),
		Role:      model.RoleUser,
		Content:   content,
		Timestamp: e.now(),
	}
}

// SuggestedQuestions returns the whole suggestion corpus.
func (e *Engine) SuggestedQuestions() []string {
	return append([]string(nil), e.kb.Suggestions...)
}

// Suggestions draws a fresh, randomized set of follow-up questions.
func (e *Engine) Suggestions() []string {
	return composer.Sample(e.rng, e.kb.Suggestions, e.suggestionCount)
}

func (e *Engine) TypingDelay(length int) time.Duration {
	return e.delay.Delay(length)
}

func (e *Engine) Knowledge() *knowledge.Base { return e.kb }

// compose runs the responder, turning a panic into ErrComposeFailed.
func (e *Engine) compose(input string) (reply composer.Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrComposeFailed, r)
		}
	}()
	reply, err = e.responder.Compose(input)
	if err != nil {
		return composer.Reply{}, fmt.Errorf("%w: %w", ErrComposeFailed, err)
	}
	if reply.Content == "" {
		return composer.Reply{}, fmt.Errorf("%w: empty reply", ErrComposeFailed)
	}
	return reply, nil
}

func (e *Engine) assistantMessage(r composer.Reply) model.Message {
	return model.Message{
		ID:        e.newID(),
		Role:      model.RoleAssistant,
		Content:   r.Content,
		Timestamp: e.now(),
		Metadata:  r.Metadata(),
	}
}

func (e *Engine) apology(cause error) model.Message {
	logger.Errorf("failed to compose reply: %v", cause)
	metrics.RecordReplyError()
	return model.Message{
		ID:        e.newID(),
		Role:      model.RoleAssistant,
		Content:   ApologyMessage,
		Timestamp: e.now(),
		Metadata: &model.Metadata{
			Topics:     []string{},
			Confidence: model.ConfidenceLow,
			IsFallback: true,
		},
	}
}
