package composer

import (
	"strings"
	"testing"
	"time"

	"engagement-engine/internal/knowledge"
	"engagement-engine/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedRand always returns the same index, clamped to n.
type fixedRand int

func (f fixedRand) IntN(n int) int { return min(int(f), n-1) }

func defaultKB(t *testing.T) *knowledge.Base {
	t.Helper()
	kb, err := knowledge.Default()
	require.NoError(t, err)
	return kb
}

func TestCompose_ExactMatch(t *testing.T) {
	kb := defaultKB(t)
	c := New(kb, WithRand(fixedRand(0)))

	reply, err := c.Compose("what is invnt")
	require.NoError(t, err)

	intent, _ := kb.Intent("what-is-invnt")
	assert.Equal(t, intent.Responses[0], reply.Content)
	assert.Equal(t, model.ConfidenceHigh, reply.Confidence)
	assert.False(t, reply.IsFallback)
	assert.Equal(t, []string{"company", "overview", "about"}, reply.Topics)
	assert.Equal(t, "what-is-invnt", reply.IntentID)
	assert.Equal(t, 120.0, reply.Score)
	assert.Equal(t, DefaultMaxDelay, reply.Delay)
}

func TestCompose_DubaiScenario(t *testing.T) {
	c := New(defaultKB(t), WithRand(fixedRand(0)))

	reply, err := c.Compose("tell me about your dubai office please")
	require.NoError(t, err)
	assert.Equal(t, "dubai-uae", reply.IntentID)
	assert.False(t, reply.IsFallback)
	assert.Equal(t, model.ConfidenceHigh, reply.Confidence)
}

func TestCompose_FallbackForNonsense(t *testing.T) {
	kb := defaultKB(t)
	for i := 0; i < len(kb.Fallbacks); i++ {
		c := New(kb, WithRand(fixedRand(i)))
		reply, err := c.Compose("asdkjfh2398")
		require.NoError(t, err)
		assert.NotEmpty(t, reply.Content)
		assert.Equal(t, kb.Fallbacks[i], reply.Content)
		assert.True(t, reply.IsFallback)
		assert.Equal(t, model.ConfidenceLow, reply.Confidence)
		assert.Empty(t, reply.Topics)
		assert.NotNil(t, reply.Topics)
		assert.Empty(t, reply.IntentID)
	}
}

func TestCompose_EmptyInputFallsBack(t *testing.T) {
	c := New(defaultKB(t), WithRand(fixedRand(0)))
	reply, err := c.Compose("   ?! ")
	require.NoError(t, err)
	assert.True(t, reply.IsFallback)
	assert.NotEmpty(t, reply.Content)
}

func overlapKB(priority int) *knowledge.Base {
	return &knowledge.Base{
		Intents: []model.Intent{{
			ID:        "dubai",
			Patterns:  []string{"dubai office"},
			Responses: []string{"one", "two"},
			Topics:    []string{"dubai"},
			Priority:  priority,
		}},
		Fallbacks:   []string{"fallback"},
		Suggestions: []string{"a", "b", "c"},
		Greeting:    "hi",
	}
}

func TestCompose_ConfidenceBands(t *testing.T) {
	// "offices in dubai" vs "dubai office" scores 40 raw.
	tests := []struct {
		priority int
		want     model.Confidence
		fallback bool
	}{
		{priority: 15, want: model.ConfidenceMedium}, // 70 is not above 70
		{priority: 16, want: model.ConfidenceHigh},   // 72
		{priority: 6, want: model.ConfidenceMedium},  // 52
		{priority: 5, want: model.ConfidenceLow},     // 50
		{priority: 0, want: model.ConfidenceLow},     // default priority, 50
		{priority: -1, want: model.ConfidenceLow, fallback: true},
	}
	for _, tt := range tests {
		c := New(overlapKB(tt.priority), WithRand(fixedRand(1)))
		reply, err := c.Compose("offices in dubai")
		require.NoError(t, err)
		assert.Equal(t, tt.want, reply.Confidence, "priority %d", tt.priority)
		assert.Equal(t, tt.fallback, reply.IsFallback, "priority %d", tt.priority)
		if !tt.fallback {
			assert.Equal(t, "two", reply.Content)
		} else {
			assert.Equal(t, "fallback", reply.Content)
			assert.InDelta(t, 38.0, reply.Score, 1e-9)
		}
	}
}

func TestCompose_NoFallbacks(t *testing.T) {
	kb := overlapKB(5)
	kb.Fallbacks = nil
	c := New(kb)
	_, err := c.Compose("nothing to see")
	assert.ErrorIs(t, err, ErrNoResponses)
}

func TestCompose_SeededIsDeterministic(t *testing.T) {
	kb := &knowledge.Base{
		Intents: []model.Intent{{
			ID: "many", Patterns: []string{"hello"},
			Responses: []string{"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7"},
		}},
		Fallbacks:   []string{"f"},
		Suggestions: []string{"a", "b", "c"},
		Greeting:    "hi",
	}
	a := New(kb, WithRand(NewRand(42)))
	b := New(kb, WithRand(NewRand(42)))
	for i := 0; i < 20; i++ {
		ra, err := a.Compose("hello")
		require.NoError(t, err)
		rb, err := b.Compose("hello")
		require.NoError(t, err)
		assert.Equal(t, ra.Content, rb.Content)
	}
}

func TestBand(t *testing.T) {
	assert.Equal(t, model.ConfidenceHigh, Band(120))
	assert.Equal(t, model.ConfidenceHigh, Band(70.1))
	assert.Equal(t, model.ConfidenceMedium, Band(70))
	assert.Equal(t, model.ConfidenceMedium, Band(50.5))
	assert.Equal(t, model.ConfidenceLow, Band(50))
	assert.Equal(t, model.ConfidenceLow, Band(0))
}

func TestDelayPolicy(t *testing.T) {
	p := DefaultDelayPolicy()

	assert.Equal(t, 500*time.Millisecond, p.Delay(0))
	assert.Equal(t, 500*time.Millisecond, p.Delay(33))
	assert.Equal(t, 510*time.Millisecond, p.Delay(34))
	assert.Equal(t, 1500*time.Millisecond, p.Delay(100))
	assert.Equal(t, 2500*time.Millisecond, p.Delay(167))
	assert.Equal(t, 2500*time.Millisecond, p.Delay(10000))
	assert.Equal(t, 500*time.Millisecond, p.Delay(-5))

	prev := time.Duration(0)
	for n := 0; n <= 400; n++ {
		d := p.Delay(n)
		assert.GreaterOrEqual(t, d, DefaultMinDelay)
		assert.LessOrEqual(t, d, DefaultMaxDelay)
		assert.GreaterOrEqual(t, d, prev, "length %d", n)
		prev = d
	}
}

func TestDelayPolicy_CountsCharacters(t *testing.T) {
	p := DelayPolicy{PerChar: 10 * time.Millisecond, Min: 0, Max: time.Second}
	assert.Equal(t, 50*time.Millisecond, p.For("héllo"))
	assert.Equal(t, 10*time.Millisecond, p.For("👋"))
	assert.Equal(t, time.Second, p.For(strings.Repeat("x", 500)))
}

func TestComposer_TypingDelay(t *testing.T) {
	c := New(defaultKB(t), WithDelayPolicy(DelayPolicy{PerChar: time.Millisecond, Min: 0, Max: time.Minute}))
	assert.Equal(t, 42*time.Millisecond, c.TypingDelay(42))
}

func TestSample(t *testing.T) {
	corpus := []string{"a", "b", "c", "d", "e", "f"}
	orig := append([]string(nil), corpus...)
	r := NewRand(7)

	for i := 0; i < 50; i++ {
		got := Sample(r, corpus, 3)
		require.Len(t, got, 3)
		seen := map[string]bool{}
		for _, s := range got {
			assert.False(t, seen[s], "duplicate %q", s)
			seen[s] = true
			assert.Contains(t, corpus, s)
		}
	}
	assert.Equal(t, orig, corpus)

	assert.Len(t, Sample(r, corpus, 10), len(corpus))
	assert.Empty(t, Sample(r, corpus, 0))
	assert.Empty(t, Sample(r, nil, 3))
}

func TestSample_Fixed(t *testing.T) {
	// index 0 each draw keeps the original order.
	assert.Equal(t, []string{"a", "b", "c"}, Sample(fixedRand(0), []string{"a", "b", "c", "d"}, 3))
}

func TestSuggest(t *testing.T) {
	kb := defaultKB(t)
	c := New(kb, WithRand(NewRand(1)))
	got := c.Suggest(3)
	require.Len(t, got, 3)
	for _, s := range got {
		assert.Contains(t, kb.Suggestions, s)
	}
}

func TestReplyMetadata(t *testing.T) {
	r := Reply{Confidence: model.ConfidenceLow, IsFallback: true}
	md := r.Metadata()
	assert.NotNil(t, md.Topics)
	assert.Empty(t, md.Topics)
	assert.True(t, md.IsFallback)
}
