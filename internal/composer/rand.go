package composer

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Rand is the randomness the composer and sessions draw from.
type Rand interface {
	// IntN returns a uniform int in [0, n). n must be > 0.
	IntN(n int) int
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// NewRand returns a goroutine-safe PCG source. Seed 0 seeds from the clock.
func NewRand(seed uint64) Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Sample draws n distinct entries from corpus, in draw order. n is capped at
// len(corpus). corpus is not modified.
func Sample(r Rand, corpus []string, n int) []string {
	n = min(n, len(corpus))
	if n <= 0 {
		return []string{}
	}
	pool := append([]string(nil), corpus...)
	for i := 0; i < n; i++ {
		j := i + r.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n:n]
}

// Pick returns one uniformly chosen entry. items must not be empty.
func Pick(r Rand, items []string) string {
	return items[r.IntN(len(items))]
}
