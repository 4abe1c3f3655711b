package battle

import (
	"math/rand"
	"sync"
)

// LockedRand wraps a seeded *rand.Rand behind a mutex so the per-round
// parallel draws can share one injected source. math/rand sources are not
// safe for concurrent use on their own.
type LockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func NewLockedRand(seed int64) *LockedRand {
	return &LockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *LockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}
