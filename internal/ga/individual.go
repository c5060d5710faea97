package ga

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
)

// Individual is a chromosome plus the mutation rate and engine used to
// produce or mutate its genes. The engine is fixed at construction and
// shared across mating and mutation; individuals are immutable once built.
type Individual[G comparable] struct {
	chromosome   []G
	mutationRate float64
	engine       *Engine[G]
}

// NewIndividual seeds a fresh chromosome by invoking each position's
// generator with no prior value.
func NewIndividual[G comparable](rng *rand.Rand, mutationRate float64, engine *Engine[G]) (*Individual[G], error) {
	if err := validateIndividual(rng, mutationRate, engine); err != nil {
		return nil, err
	}
	chromosome := make([]G, engine.Length())
	for i := range chromosome {
		chromosome[i] = engine.at(i).Seed(rng)
	}
	return &Individual[G]{
		chromosome:   chromosome,
		mutationRate: mutationRate,
		engine:       engine,
	}, nil
}

// NewIndividualFrom builds an individual around an explicit starting
// chromosome, which must match the engine's length.
func NewIndividualFrom[G comparable](mutationRate float64, engine *Engine[G], chromosome []G) (*Individual[G], error) {
	if err := validateRate(mutationRate); err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, fmt.Errorf("ga: engine is required")
	}
	if len(chromosome) != engine.Length() {
		return nil, fmt.Errorf("ga: chromosome length %d does not match engine length %d",
			len(chromosome), engine.Length())
	}
	return &Individual[G]{
		chromosome:   slices.Clone(chromosome),
		mutationRate: mutationRate,
		engine:       engine,
	}, nil
}

func validateIndividual[G comparable](rng *rand.Rand, mutationRate float64, engine *Engine[G]) error {
	if rng == nil {
		return fmt.Errorf("ga: random source is required")
	}
	if err := validateRate(mutationRate); err != nil {
		return err
	}
	if engine == nil {
		return fmt.Errorf("ga: engine is required")
	}
	return nil
}

func validateRate(rate float64) error {
	if math.IsNaN(rate) || rate < 0 || rate > 1 {
		return fmt.Errorf("ga: mutation rate must be in [0, 1], got %v", rate)
	}
	return nil
}

// Chromosome returns a copy of the gene sequence.
func (ind *Individual[G]) Chromosome() []G {
	return slices.Clone(ind.chromosome)
}

// MutationRate returns the per-gene mutation probability.
func (ind *Individual[G]) MutationRate() float64 {
	return ind.mutationRate
}

// Engine returns the generator engine shared across mating and mutation.
func (ind *Individual[G]) Engine() *Engine[G] {
	return ind.engine
}

// Len returns the chromosome length.
func (ind *Individual[G]) Len() int {
	return len(ind.chromosome)
}

// Equal reports chromosome value equality; two individuals constructed
// separately compare equal iff their gene sequences are equal.
func (ind *Individual[G]) Equal(other *Individual[G]) bool {
	if other == nil {
		return false
	}
	return slices.Equal(ind.chromosome, other.chromosome)
}

// Replicate produces a mutated chromosome copy: each gene independently
// mutates with probability equal to the mutation rate, drawing its new
// value from its generator.
func (ind *Individual[G]) Replicate(rng *rand.Rand) []G {
	mutated := slices.Clone(ind.chromosome)
	for i := range mutated {
		if rng.Float64() < ind.mutationRate {
			mutated[i] = ind.engine.at(i).Mutate(rng, mutated[i])
		}
	}
	return mutated
}

// Mate replicates both parents and builds the offspring chromosome by an
// independent fair coin flip per position between the two replicas.
// Mismatched chromosome lengths cannot mate.
func (ind *Individual[G]) Mate(rng *rand.Rand, other *Individual[G]) (*Individual[G], error) {
	if other == nil {
		return nil, fmt.Errorf("ga: mate requires a partner")
	}
	if ind.Len() != other.Len() {
		return nil, fmt.Errorf("ga: incompatible chromosome lengths %d and %d cannot mate",
			ind.Len(), other.Len())
	}
	a := ind.Replicate(rng)
	b := other.Replicate(rng)
	child := make([]G, len(a))
	for i := range child {
		if rng.Float64() < 0.5 {
			child[i] = a[i]
		} else {
			child[i] = b[i]
		}
	}
	return &Individual[G]{
		chromosome:   child,
		mutationRate: ind.mutationRate,
		engine:       ind.engine,
	}, nil
}
