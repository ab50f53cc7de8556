// Package composer turns user input into a reply: it selects an intent,
// picks a response variant and estimates how long a human would take to
// type it.
package composer

import (
	"errors"
	"fmt"
	"time"

	"engagement-engine/internal/knowledge"
	"engagement-engine/internal/matcher"
	"engagement-engine/internal/metrics"
	"engagement-engine/internal/model"
	"engagement-engine/pkg/logger"
)

// ConfidentScore is the adjusted score a selection must exceed before its
// intent answers instead of a fallback.
const ConfidentScore = 40.0

var ErrNoResponses = errors.New("no responses available")

// Reply is one composed answer.
type Reply struct {
	Content    string
	Topics     []string
	Confidence model.Confidence
	IsFallback bool
	Delay      time.Duration

	IntentID string
	Score    float64
}

// Metadata converts the reply into message metadata.
func (r Reply) Metadata() *model.Metadata {
	topics := r.Topics
	if topics == nil {
		topics = []string{}
	}
	return &model.Metadata{
		Topics:     append([]string(nil), topics...),
		Confidence: r.Confidence,
		IsFallback: r.IsFallback,
	}
}

type Composer struct {
	kb    *knowledge.Base
	rng   Rand
	delay DelayPolicy
}

type Option func(*Composer)

func WithRand(r Rand) Option {
	return func(c *Composer) { c.rng = r }
}

func WithDelayPolicy(p DelayPolicy) Option {
	return func(c *Composer) { c.delay = p }
}

func New(kb *knowledge.Base, opts ...Option) *Composer {
	c := &Composer{kb: kb, delay: DefaultDelayPolicy()}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = NewRand(0)
	}
	return c
}

func (c *Composer) Knowledge() *knowledge.Base { return c.kb }

func (c *Composer) Rand() Rand { return c.rng }

func (c *Composer) DelayPolicy() DelayPolicy { return c.delay }

// Compose answers input from the knowledge base, falling back to a generic
// reply when no intent matches confidently. Content is never empty on success.
func (c *Composer) Compose(input string) (Reply, error) {
	sel := matcher.Select(input, c.kb.Intents)

	var reply Reply
	if sel.Matched() && sel.Score > ConfidentScore {
		if len(sel.Intent.Responses) == 0 {
			return Reply{}, fmt.Errorf("%w: intent %s", ErrNoResponses, sel.Intent.ID)
		}
		reply = Reply{
			Content:    Pick(c.rng, sel.Intent.Responses),
			Topics:     append([]string{}, sel.Intent.Topics...),
			Confidence: Band(sel.Score),
			IntentID:   sel.Intent.ID,
			Score:      sel.Score,
		}
	} else {
		if len(c.kb.Fallbacks) == 0 {
			return Reply{}, fmt.Errorf("%w: fallback corpus is empty", ErrNoResponses)
		}
		reply = Reply{
			Content:    Pick(c.rng, c.kb.Fallbacks),
			Topics:     []string{},
			Confidence: model.ConfidenceLow,
			IsFallback: true,
			Score:      sel.Score,
		}
	}
	reply.Delay = c.delay.For(reply.Content)

	logger.WithFields(logger.Fields{
		"intent":     reply.IntentID,
		"pattern":    sel.Pattern,
		"raw_score":  sel.RawScore,
		"score":      sel.Score,
		"confidence": reply.Confidence,
		"fallback":   reply.IsFallback,
	}).Debug("composed reply")
	metrics.RecordReply(reply.IntentID, string(reply.Confidence), reply.IsFallback, reply.Score, reply.Delay.Seconds())

	return reply, nil
}

// TypingDelay is the simulated typing time for a reply of length characters.
func (c *Composer) TypingDelay(length int) time.Duration {
	return c.delay.Delay(length)
}

// Suggest draws n distinct questions from the suggestion corpus.
func (c *Composer) Suggest(n int) []string {
	return Sample(c.rng, c.kb.Suggestions, n)
}

// Band maps an adjusted score to a confidence level.
func Band(score float64) model.Confidence {
	switch {
	case score > 70:
		return model.ConfidenceHigh
	case score > 50:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}
