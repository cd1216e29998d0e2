package generate

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Source supplies the random draws a walk consumes. *rand.Rand from
// math/rand/v2 satisfies it; tests inject fixed sequences.
type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// IntN returns a value in [0, n). n is always positive.
	IntN(n int) int
}

// NewSource returns a PCG-backed source. Seed 0 seeds from the clock.
func NewSource(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// SeedPool hands out independent seeds from one root generator. It is safe
// for concurrent use, so request handlers can each build their own Source.
type SeedPool struct {
	mu   sync.Mutex
	root *rand.Rand
}

// NewSeedPool returns a pool rooted at seed (0 seeds from the clock).
func NewSeedPool(seed uint64) *SeedPool {
	return &SeedPool{root: NewSource(seed)}
}

// Next returns a fresh non-zero seed.
func (p *SeedPool) Next() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if s := p.root.Uint64(); s != 0 {
			return s
		}
	}
}
