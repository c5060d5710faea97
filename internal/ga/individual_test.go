package ga

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// constGene always produces the same value; handy for pinning outcomes.
type constGene struct{ v int }

func (g constGene) Seed(*rand.Rand) int        { return g.v }
func (g constGene) Mutate(*rand.Rand, int) int { return g.v }

// rangeGene draws uniformly from [0, n).
type rangeGene struct{ n int }

func (g rangeGene) Seed(rng *rand.Rand) int          { return rng.Intn(g.n) }
func (g rangeGene) Mutate(rng *rand.Rand, _ int) int { return rng.Intn(g.n) }

func mustEngine(t *testing.T, length int) *Engine[int] {
	t.Helper()
	engine, err := NewSharedEngine[int](rangeGene{n: 100}, length)
	require.NoError(t, err)
	return engine
}

func TestEngineValidation(t *testing.T) {
	_, err := NewSharedEngine[int](nil, 3)
	require.Error(t, err)

	_, err = NewSharedEngine[int](rangeGene{n: 10}, 0)
	require.Error(t, err)

	_, err = NewPerGeneEngine[int]()
	require.Error(t, err)

	_, err = NewPerGeneEngine[int](rangeGene{n: 10}, nil)
	require.Error(t, err)

	engine, err := NewPerGeneEngine[int](constGene{v: 1}, constGene{v: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, engine.Length())
}

func TestNewIndividualSeedsFromEngine(t *testing.T) {
	engine, err := NewPerGeneEngine[int](constGene{v: 7}, constGene{v: 8})
	require.NoError(t, err)

	ind, err := NewIndividual(rand.New(rand.NewSource(1)), 0.5, engine)
	require.NoError(t, err)
	assert.Equal(t, []int{7, 8}, ind.Chromosome())
	assert.Equal(t, 0.5, ind.MutationRate())
	assert.Equal(t, 2, ind.Len())
}

func TestIndividualValidation(t *testing.T) {
	engine := mustEngine(t, 3)
	rng := rand.New(rand.NewSource(1))

	_, err := NewIndividual(nil, 0.1, engine)
	require.Error(t, err)

	_, err = NewIndividual(rng, math.NaN(), engine)
	require.Error(t, err)

	_, err = NewIndividual(rng, 1.5, engine)
	require.Error(t, err)

	_, err = NewIndividual(rng, -0.1, engine)
	require.Error(t, err)

	_, err = NewIndividual[int](rng, 0.1, nil)
	require.Error(t, err)

	_, err = NewIndividualFrom(0.1, engine, []int{1, 2})
	require.ErrorContains(t, err, "does not match engine length")
}

func TestChromosomeIsACopy(t *testing.T) {
	engine := mustEngine(t, 2)
	ind, err := NewIndividualFrom(0, engine, []int{1, 2})
	require.NoError(t, err)

	c := ind.Chromosome()
	c[0] = 99
	assert.Equal(t, []int{1, 2}, ind.Chromosome())
}

func TestEqualComparesByValue(t *testing.T) {
	engine := mustEngine(t, 2)
	a, err := NewIndividualFrom(0.1, engine, []int{3, 4})
	require.NoError(t, err)
	b, err := NewIndividualFrom(0.9, engine, []int{3, 4})
	require.NoError(t, err)
	c, err := NewIndividualFrom(0.1, engine, []int{3, 5})
	require.NoError(t, err)

	assert.True(t, a.Equal(b), "separately constructed, same genes")
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}

func TestReplicateRates(t *testing.T) {
	rng := rand.New(rand.NewSource(5))

	frozen, err := NewIndividualFrom(0, mustEngine(t, 8), []int{0, 1, 2, 3, 4, 5, 6, 7})
	require.NoError(t, err)
	assert.Equal(t, frozen.Chromosome(), frozen.Replicate(rng), "rate 0 never mutates")

	engine, err := NewSharedEngine[int](constGene{v: 42}, 8)
	require.NoError(t, err)
	molten, err := NewIndividualFrom(1, engine, []int{0, 1, 2, 3, 4, 5, 6, 7})
	require.NoError(t, err)
	assert.Equal(t, []int{42, 42, 42, 42, 42, 42, 42, 42}, molten.Replicate(rng), "rate 1 mutates every gene")
}

func TestMateMixesParentGenes(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	engine := mustEngine(t, 6)

	a, err := NewIndividualFrom(0, engine, []int{1, 1, 1, 1, 1, 1})
	require.NoError(t, err)
	b, err := NewIndividualFrom(0, engine, []int{2, 2, 2, 2, 2, 2})
	require.NoError(t, err)

	child, err := a.Mate(rng, b)
	require.NoError(t, err)
	for i, gene := range child.Chromosome() {
		assert.Contains(t, []int{1, 2}, gene, "position %d must come from a parent", i)
	}
	assert.Equal(t, a.MutationRate(), child.MutationRate())
}

func TestMateLengthMismatch(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a, err := NewIndividualFrom(0, mustEngine(t, 2), []int{1, 2})
	require.NoError(t, err)
	b, err := NewIndividualFrom(0, mustEngine(t, 3), []int{1, 2, 3})
	require.NoError(t, err)

	_, err = a.Mate(rng, b)
	require.ErrorContains(t, err, "incompatible chromosome lengths 2 and 3")

	_, err = a.Mate(rng, nil)
	require.Error(t, err)
}
