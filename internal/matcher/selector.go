package matcher

import "engagement-engine/internal/model"

const (
	// MinRawScore is the raw score a pattern must exceed before its intent
	// is a candidate at all.
	MinRawScore = 30.0

	// PriorityWeight multiplies an intent's priority into its bonus.
	PriorityWeight = 2.0
)

// Selection is the outcome of Select. Intent is nil when nothing cleared the
// threshold, in which case Score is 0.
type Selection struct {
	Intent   *model.Intent
	Score    float64 // raw + priority bonus
	RawScore float64
	Pattern  string
}

func (s Selection) Matched() bool { return s.Intent != nil }

// Select scans every pattern of every intent and keeps the highest adjusted
// score among patterns whose raw score exceeds MinRawScore. Ties go to the
// earlier intent.
func Select(input string, intents []model.Intent) Selection {
	in := Normalize(input)

	var best Selection
	for i := range intents {
		intent := &intents[i]
		bonus := float64(intent.EffectivePriority()) * PriorityWeight
		for _, p := range intent.Patterns {
			raw := scoreNormalized(in, Normalize(p))
			adjusted := raw + bonus
			if raw > MinRawScore && adjusted > best.Score {
				best = Selection{
					Intent:   intent,
					Score:    adjusted,
					RawScore: raw,
					Pattern:  p,
				}
			}
		}
	}
	if best.Intent == nil {
		return Selection{}
	}
	return best
}

// Candidate is the best pattern of a single intent, used for diagnostics.
type Candidate struct {
	IntentID string  `json:"intent_id"`
	Pattern  string  `json:"pattern"`
	RawScore float64 `json:"raw_score"`
	Score    float64 `json:"score"`
	Eligible bool    `json:"eligible"`
}

// Explain returns one Candidate per intent, in knowledge-base order.
func Explain(input string, intents []model.Intent) []Candidate {
	in := Normalize(input)
	out := make([]Candidate, 0, len(intents))
	for i := range intents {
		intent := &intents[i]
		bonus := float64(intent.EffectivePriority()) * PriorityWeight
		c := Candidate{IntentID: intent.ID}
		for _, p := range intent.Patterns {
			raw := scoreNormalized(in, Normalize(p))
			if c.Pattern == "" || raw > c.RawScore {
				c.Pattern = p
				c.RawScore = raw
			}
		}
		c.Score = c.RawScore + bonus
		c.Eligible = c.RawScore > MinRawScore
		out = append(out, c)
	}
	return out
}
