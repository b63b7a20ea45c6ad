package services

import (
	"math/rand/v2"
	"sync"
)

// Sampler is the source of uniform draws used by outcome strategies
type Sampler interface {
	// Float64 returns a uniform value in [0, 1)
	Float64() float64
	// IntN returns a uniform value in [0, n)
	IntN(n int) int
}

type globalSampler struct{}

func (globalSampler) Float64() float64 { return rand.Float64() }
func (globalSampler) IntN(n int) int   { return rand.IntN(n) }

// NewSampler returns a goroutine-safe sampler backed by the runtime's random source
func NewSampler() Sampler {
	return globalSampler{}
}

type seededSampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeededSampler returns a reproducible goroutine-safe sampler
func NewSeededSampler(seed uint64) Sampler {
	return &seededSampler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *seededSampler) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *seededSampler) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}
