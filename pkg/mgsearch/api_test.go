package mgsearch

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mgsearch/internal/config"
)

func writeFasta(t *testing.T, dir, file string, labels []string, seed int64) string {
	t.Helper()
	const bases = "ACGT"
	rng := rand.New(rand.NewSource(seed))
	var b strings.Builder
	for _, label := range labels {
		for r := 1; r <= 3; r++ {
			fmt.Fprintf(&b, ">%s_%d\n", label, r)
			for i := 0; i < 40; i++ {
				b.WriteByte(bases[rng.Intn(4)])
			}
			b.WriteByte('\n')
		}
	}
	path := filepath.Join(dir, file)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func initWorkdir(t *testing.T) string {
	t.Helper()
	workdir := filepath.Join(t.TempDir(), "idx")
	err := Init(Options{Workdir: workdir}, InitRequest{
		Name:     "idx",
		Metric:   "jsd",
		KmerSize: 4,
		Store:    "memory",
	})
	require.NoError(t, err)
	return workdir
}

func buildRequest(inputs ...string) BuildRequest {
	return BuildRequest{
		Inputs:           inputs,
		CoordSystemSize:  3,
		Generations:      20,
		PopulationSize:   10,
		SelectRate:       0.5,
		RandomSelectRate: 0.1,
		LegendSize:       5,
		IdleThreshold:    5,
		Seed:             7,
		Workers:          2,
	}
}

func TestInit(t *testing.T) {
	workdir := initWorkdir(t)
	assert.FileExists(t, filepath.Join(workdir, "config.yaml"))

	err := Init(Options{Workdir: workdir}, InitRequest{Name: "idx"})
	require.ErrorContains(t, err, "already exists")

	err = Init(Options{Workdir: filepath.Join(t.TempDir(), "x")}, InitRequest{})
	require.ErrorContains(t, err, "index name is required")

	err = Init(Options{}, InitRequest{Name: "idx"})
	require.ErrorContains(t, err, "workdir is required")

	err = Init(Options{Workdir: filepath.Join(t.TempDir(), "y")}, InitRequest{Name: "idx", Metric: "cosine"})
	require.Error(t, err)
}

func TestNewRequiresInitializedWorkdir(t *testing.T) {
	_, err := New(context.Background(), Options{Workdir: t.TempDir()})
	require.ErrorContains(t, err, "no initialized index")
}

func TestClientLifecycle(t *testing.T) {
	ctx := context.Background()
	workdir := initWorkdir(t)
	input := writeFasta(t, workdir, "input.fasta", []string{"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7"}, 47)

	client, err := New(ctx, Options{Workdir: workdir})
	require.NoError(t, err)
	defer client.Close()

	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Ready)
	assert.False(t, status.Built)
	assert.Equal(t, 0, status.Samples)

	summary, err := client.Build(ctx, buildRequest(input))
	require.NoError(t, err)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 8, summary.SampleCount)
	require.Len(t, summary.Landmarks, 3)
	assert.GreaterOrEqual(t, summary.GenerationsRun, 1)

	status, err = client.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Built)
	assert.Equal(t, 8, status.Samples)
	assert.Equal(t, summary.RunID, status.RunID)
	assert.Equal(t, summary.Landmarks, status.Landmarks)

	// Hyperparameter overrides are persisted back to the config file.
	cfg, err := config.Load(filepath.Join(workdir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Genetic.CoordSystemSize)
	assert.Equal(t, 20, cfg.Genetic.Generations)
	assert.Equal(t, int64(7), cfg.Seed)

	result, err := client.Search(ctx, SearchRequest{Query: "s0", K: 3})
	require.NoError(t, err)
	require.Len(t, result.Hits, 3)
	for _, hit := range result.Hits {
		assert.NotEqual(t, "s0", hit.Name)
	}
	for i := 1; i < len(result.Hits); i++ {
		assert.GreaterOrEqual(t, result.Hits[i].Score, result.Hits[i-1].Score)
	}

	extra := writeFasta(t, workdir, "extra.fasta", []string{"s8", "s9"}, 53)
	addSummary, err := client.Add(ctx, AddRequest{Inputs: []string{extra}})
	require.NoError(t, err)
	assert.Equal(t, 2, addSummary.Added)
	assert.Equal(t, 10, addSummary.Total)

	query := writeFasta(t, workdir, "query.fasta", []string{"probe"}, 59)
	result, err = client.Search(ctx, SearchRequest{Query: query, K: 5})
	require.NoError(t, err)
	assert.Len(t, result.Hits, 5)

	runs, err := client.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.RunID, runs[0].RunID)

	history, ok, err := client.FitnessHistory(ctx, summary.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, history, summary.GenerationsRun)

	_, ok, err = client.FitnessHistory(ctx, "run-404")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRunsLimit(t *testing.T) {
	ctx := context.Background()
	workdir := initWorkdir(t)
	input := writeFasta(t, workdir, "input.fasta", []string{"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7"}, 61)

	client, err := New(ctx, Options{Workdir: workdir})
	require.NoError(t, err)
	defer client.Close()

	for i := 0; i < 3; i++ {
		_, err := client.Build(ctx, buildRequest(input))
		require.NoError(t, err)
	}

	runs, err := client.Runs(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
