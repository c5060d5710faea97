// Package ga implements a generic population-based stochastic search over
// fixed-length chromosomes. Randomness is always drawn from an explicitly
// threaded *rand.Rand, so runs are reproducible under a fixed seed.
package ga

import (
	"fmt"
	"math/rand"
)

// Generator produces and mutates gene values for one chromosome position.
// Seed is invoked with no prior value when an individual is constructed
// without a starting chromosome; Mutate receives the gene's current value.
type Generator[G any] interface {
	Seed(rng *rand.Rand) G
	Mutate(rng *rand.Rand, current G) G
}

// Engine fixes the per-position generators of a chromosome. The choice
// between one shared generator and an ordered per-position sequence is
// resolved once, at construction.
type Engine[G any] struct {
	generators []Generator[G]
}

// NewSharedEngine builds an engine of the given length where every position
// uses the same generator.
func NewSharedEngine[G any](gen Generator[G], length int) (*Engine[G], error) {
	if gen == nil {
		return nil, fmt.Errorf("ga: generator is required")
	}
	if length <= 0 {
		return nil, fmt.Errorf("ga: chromosome length must be > 0, got %d", length)
	}
	generators := make([]Generator[G], length)
	for i := range generators {
		generators[i] = gen
	}
	return &Engine[G]{generators: generators}, nil
}

// NewPerGeneEngine builds an engine whose length is the number of supplied
// generators, one per chromosome position.
func NewPerGeneEngine[G any](gens ...Generator[G]) (*Engine[G], error) {
	if len(gens) == 0 {
		return nil, fmt.Errorf("ga: at least one generator is required")
	}
	generators := make([]Generator[G], len(gens))
	for i, gen := range gens {
		if gen == nil {
			return nil, fmt.Errorf("ga: generator at position %d is nil", i)
		}
		generators[i] = gen
	}
	return &Engine[G]{generators: generators}, nil
}

// Length returns the chromosome length the engine produces.
func (e *Engine[G]) Length() int {
	return len(e.generators)
}

func (e *Engine[G]) at(i int) Generator[G] {
	return e.generators[i]
}
