package coordsys

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mgsearch/internal/pwmatrix"
	"mgsearch/internal/sample"
	"mgsearch/internal/storage"
)

func testParams() Params {
	return Params{
		CoordSystemSize:  3,
		Generations:      30,
		MutationRate:     0.2,
		PopulationSize:   12,
		SelectRate:       0.5,
		RandomSelectRate: 0.1,
		LegendSize:       5,
		IdleThreshold:    5,
		Seed:             7,
		KmerSize:         3,
	}
}

func fixtureSamples(t *testing.T, n int) []*sample.Sample {
	t.Helper()
	rng := rand.New(rand.NewSource(101))
	samples := make([]*sample.Sample, n)
	for i := range samples {
		kmers := map[string]int{}
		for j := 0; j < 12; j++ {
			kmers[fmt.Sprintf("kmer%02d", rng.Intn(30))] = rng.Intn(40) + 1
		}
		samples[i] = sample.New(fmt.Sprintf("s%d", i), kmers)
	}
	return samples
}

func fixtureMatrix(t *testing.T, samples []*sample.Sample) *pwmatrix.Matrix {
	t.Helper()
	m, err := pwmatrix.Create(context.Background(), samples, "jsd", 2)
	require.NoError(t, err)
	return m
}

func newFixtureStorage(t *testing.T, params Params) (*Storage, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Init(context.Background()))
	s, err := NewStorage("idx", store, params, nil)
	require.NoError(t, err)
	return s, store
}

func TestNewStorageValidation(t *testing.T) {
	store := storage.NewMemoryStore()
	_, err := NewStorage("", store, testParams(), nil)
	require.Error(t, err)
	_, err = NewStorage("idx", nil, testParams(), nil)
	require.Error(t, err)
}

func TestBuildSelectsLandmarksAndPersists(t *testing.T) {
	ctx := context.Background()
	samples := fixtureSamples(t, 8)
	dist := fixtureMatrix(t, samples)
	s, store := newFixtureStorage(t, testParams())

	record, err := s.Build(ctx, dist, samples)
	require.NoError(t, err)

	cs := s.CoordSystem()
	require.NotNil(t, cs)
	assert.Equal(t, record.RunID, cs.RunID)
	assert.Equal(t, "jsd", cs.Metric)
	require.Len(t, cs.Landmarks, 3)

	seen := map[string]struct{}{}
	for _, name := range cs.Landmarks {
		_, ok := dist.Sample(name)
		assert.True(t, ok, "landmark %q must be an indexed sample", name)
		_, dup := seen[name]
		assert.False(t, dup, "landmarks are distinct")
		seen[name] = struct{}{}
	}

	assert.Equal(t, 8, record.SampleCount)
	assert.Equal(t, 6, record.NFittest, "select_rate 0.5 of population 12")
	assert.Equal(t, 1, record.NRandomUnfit)
	assert.GreaterOrEqual(t, record.GenerationsRun, 1)
	assert.LessOrEqual(t, record.GenerationsRun, record.Generations)
	assert.Equal(t, cs.BestFitness, record.BestFitness)

	stored, ok, err := store.GetCoordSystem(ctx, "idx")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, cs.Landmarks, stored.Landmarks)

	records, err := store.ListBuildRecords(ctx, "idx")
	require.NoError(t, err)
	require.Len(t, records, 1)

	history, ok, err := store.GetFitnessHistory(ctx, record.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, history, record.GenerationsRun)
	assert.Equal(t, record.BestFitness, minOf(history))
}

func minOf(xs []float64) float64 {
	best := xs[0]
	for _, x := range xs[1:] {
		if x < best {
			best = x
		}
	}
	return best
}

func TestBuildDeterministicUnderSeed(t *testing.T) {
	ctx := context.Background()

	build := func() []string {
		samples := fixtureSamples(t, 8)
		dist := fixtureMatrix(t, samples)
		s, _ := newFixtureStorage(t, testParams())
		_, err := s.Build(ctx, dist, samples)
		require.NoError(t, err)
		return s.CoordSystem().Landmarks
	}
	assert.Equal(t, build(), build())
}

func TestBuildSizeValidation(t *testing.T) {
	ctx := context.Background()
	samples := fixtureSamples(t, 4)
	dist := fixtureMatrix(t, samples)

	small := testParams()
	small.CoordSystemSize = 1
	s, _ := newFixtureStorage(t, small)
	_, err := s.Build(ctx, dist, samples)
	require.ErrorContains(t, err, "must be >= 2")

	big := testParams()
	big.CoordSystemSize = 5
	s, _ = newFixtureStorage(t, big)
	_, err = s.Build(ctx, dist, samples)
	require.ErrorContains(t, err, "exceeds collection size")
}

func TestLoadRestoresCoordSystem(t *testing.T) {
	ctx := context.Background()
	samples := fixtureSamples(t, 8)
	dist := fixtureMatrix(t, samples)
	s, store := newFixtureStorage(t, testParams())

	_, err := s.Build(ctx, dist, samples)
	require.NoError(t, err)
	built := s.CoordSystem()

	fresh, err := NewStorage("idx", store, testParams(), nil)
	require.NoError(t, err)
	assert.Nil(t, fresh.CoordSystem())

	require.NoError(t, fresh.Load(ctx))
	require.NotNil(t, fresh.CoordSystem())
	assert.Equal(t, built.Landmarks, fresh.CoordSystem().Landmarks)
}

func TestLoadWithoutRecordIsNotAnError(t *testing.T) {
	s, _ := newFixtureStorage(t, testParams())
	require.NoError(t, s.Load(context.Background()))
	assert.Nil(t, s.CoordSystem())
}

func TestFindRanksIdenticalSampleFirst(t *testing.T) {
	ctx := context.Background()
	samples := fixtureSamples(t, 8)

	// twin shares s0's fingerprint exactly, so its landmark profile is
	// identical and it must rank first for a query on s0.
	twinKmers := map[string]int{}
	for k, v := range samples[0].Kmers {
		twinKmers[k] = v
	}
	samples = append(samples, sample.New("twin", twinKmers))

	dist := fixtureMatrix(t, samples)
	s, _ := newFixtureStorage(t, testParams())
	_, err := s.Build(ctx, dist, samples)
	require.NoError(t, err)

	scores, names, err := s.Find(ctx, dist, samples[0], 3)
	require.NoError(t, err)
	require.Len(t, names, 3)
	assert.NotContains(t, names, "s0", "the query is never a candidate")
	assert.Equal(t, "twin", names[0])
	assert.InDelta(t, 0.0, scores[0], 1e-9)
	for i := 1; i < len(scores); i++ {
		assert.GreaterOrEqual(t, scores[i], scores[i-1], "best first")
	}
}

func TestFindCapsKAtCandidateCount(t *testing.T) {
	ctx := context.Background()
	samples := fixtureSamples(t, 6)
	dist := fixtureMatrix(t, samples)
	s, _ := newFixtureStorage(t, testParams())
	_, err := s.Build(ctx, dist, samples)
	require.NoError(t, err)

	_, names, err := s.Find(ctx, dist, samples[0], 50)
	require.NoError(t, err)
	assert.Len(t, names, 5, "everything but the query")

	_, _, err = s.Find(ctx, dist, samples[0], 0)
	require.Error(t, err)
}

func TestFindBeforeBuild(t *testing.T) {
	samples := fixtureSamples(t, 4)
	dist := fixtureMatrix(t, samples)
	s, _ := newFixtureStorage(t, testParams())

	_, _, err := s.Find(context.Background(), dist, samples[0], 2)
	require.ErrorIs(t, err, ErrNoCoordSystem)
}

func TestAddSamplesFillsLandmarkProfiles(t *testing.T) {
	ctx := context.Background()
	samples := fixtureSamples(t, 8)
	dist := fixtureMatrix(t, samples)
	s, _ := newFixtureStorage(t, testParams())
	_, err := s.Build(ctx, dist, samples)
	require.NoError(t, err)

	late := sample.New("late", map[string]int{"kmer00": 3, "kmer05": 1})
	dist.AddSample(late)
	require.NoError(t, s.AddSamples(ctx, []*sample.Sample{late}, dist))

	for _, lm := range s.CoordSystem().Landmarks {
		assert.True(t, dist.Known("late", lm), "profile cell against %q filled eagerly", lm)
	}
}

func TestAddSamplesBeforeBuild(t *testing.T) {
	samples := fixtureSamples(t, 4)
	dist := fixtureMatrix(t, samples)
	s, _ := newFixtureStorage(t, testParams())

	err := s.AddSamples(context.Background(), samples, dist)
	require.ErrorIs(t, err, ErrNoCoordSystem)
}
