package composer

import (
	"time"
	"unicode/utf8"
)

const (
	DefaultPerChar  = 15 * time.Millisecond
	DefaultMinDelay = 500 * time.Millisecond
	DefaultMaxDelay = 2500 * time.Millisecond
)

// DelayPolicy turns a reply length into a simulated typing time.
type DelayPolicy struct {
	PerChar time.Duration
	Min     time.Duration
	Max     time.Duration
}

func DefaultDelayPolicy() DelayPolicy {
	return DelayPolicy{PerChar: DefaultPerChar, Min: DefaultMinDelay, Max: DefaultMaxDelay}
}

// Delay returns clamp(length*PerChar, Min, Max).
func (p DelayPolicy) Delay(length int) time.Duration {
	d := time.Duration(max(length, 0)) * p.PerChar
	if d < p.Min {
		return p.Min
	}
	if d > p.Max {
		return p.Max
	}
	return d
}

// For measures content in characters, not bytes.
func (p DelayPolicy) For(content string) time.Duration {
	return p.Delay(utf8.RuneCountInString(content))
}
