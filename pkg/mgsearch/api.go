// Package mgsearch is the public entry point: a Client that owns one index
// working directory and exposes init, build, add, search, and run-history
// operations to the CLI and to embedding programs.
package mgsearch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"mgsearch/internal/config"
	"mgsearch/internal/index"
	"mgsearch/internal/model"
	"mgsearch/internal/storage"
)

const configFile = "config.yaml"

type Options struct {
	// Workdir is the index working directory holding config.yaml, the
	// persisted distance matrix, and the sqlite database.
	Workdir string
	Logger  *slog.Logger
}

type InitRequest struct {
	Name     string
	Metric   string
	KmerSize int
	Store    string
	DBPath   string
}

// Init creates a new index working directory with its configuration file.
// It fails if the directory already holds a configuration.
func Init(opts Options, req InitRequest) error {
	if opts.Workdir == "" {
		return fmt.Errorf("mgsearch: workdir is required")
	}
	if req.Name == "" {
		return fmt.Errorf("mgsearch: index name is required")
	}
	path := filepath.Join(opts.Workdir, configFile)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("mgsearch: %s already exists", path)
	}

	cfg := config.Default(req.Name)
	if req.Metric != "" {
		cfg.Metric = req.Metric
	}
	if req.KmerSize > 0 {
		cfg.KmerSize = req.KmerSize
	}
	if req.Store != "" {
		cfg.Store = req.Store
	}
	if req.DBPath != "" {
		cfg.DBPath = req.DBPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(opts.Workdir, 0o755); err != nil {
		return err
	}
	return cfg.Save(path)
}

// Client operates one initialized index working directory.
type Client struct {
	workdir string
	cfg     config.Config
	store   storage.Store
	idx     *index.Index
	log     *slog.Logger
}

// New opens the index in opts.Workdir, loading persisted state when
// present. The index is ready afterwards; whether it is built depends on
// what was loaded.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.Workdir == "" {
		return nil, fmt.Errorf("mgsearch: workdir is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	cfg, err := config.Load(filepath.Join(opts.Workdir, configFile))
	if err != nil {
		return nil, fmt.Errorf("mgsearch: no initialized index in %s: %w", opts.Workdir, err)
	}

	store, err := storage.NewStore(cfg.Store, filepath.Join(opts.Workdir, cfg.DBPath))
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}

	var idx *index.Index
	if _, statErr := os.Stat(filepath.Join(opts.Workdir, "pwmatrix.tsv")); statErr == nil {
		idx, err = index.Load(ctx, cfg, opts.Workdir, store, log)
	} else {
		idx, err = index.Create(cfg, opts.Workdir, store, log)
	}
	if err != nil {
		_ = storage.CloseIfSupported(store)
		return nil, err
	}

	return &Client{workdir: opts.Workdir, cfg: cfg, store: store, idx: idx, log: log}, nil
}

// Close releases the persistence backend.
func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

type BuildRequest struct {
	Inputs []string
	// Nonzero fields override the configured genetic hyperparameters and
	// are persisted back to the configuration file.
	CoordSystemSize  int
	Generations      int
	MutationRate     float64
	PopulationSize   int
	SelectRate       float64
	RandomSelectRate float64
	LegendSize       int
	IdleThreshold    int
	Seed             int64
	Workers          int
}

type BuildSummary struct {
	RunID          string
	SampleCount    int
	Landmarks      []string
	GenerationsRun int
	Converged      bool
	BestFitness    float64
}

// Build constructs the index from raw input files and persists every
// artifact: configuration overrides, the distance matrix, and the learned
// coordinate system.
func (c *Client) Build(ctx context.Context, req BuildRequest) (BuildSummary, error) {
	if err := c.applyOverrides(req); err != nil {
		return BuildSummary{}, err
	}

	idx, err := index.Create(c.cfg, c.workdir, c.store, c.log)
	if err != nil {
		return BuildSummary{}, err
	}
	record, err := idx.Build(ctx, req.Inputs)
	if err != nil {
		return BuildSummary{}, err
	}
	if err := idx.Save(ctx); err != nil {
		return BuildSummary{}, err
	}
	c.idx = idx

	return BuildSummary{
		RunID:          record.RunID,
		SampleCount:    record.SampleCount,
		Landmarks:      idx.CoordSystem().Landmarks,
		GenerationsRun: record.GenerationsRun,
		Converged:      record.Converged,
		BestFitness:    record.BestFitness,
	}, nil
}

func (c *Client) applyOverrides(req BuildRequest) error {
	g := &c.cfg.Genetic
	if req.CoordSystemSize > 0 {
		g.CoordSystemSize = req.CoordSystemSize
	}
	if req.Generations > 0 {
		g.Generations = req.Generations
	}
	if req.MutationRate > 0 {
		g.MutationRate = req.MutationRate
	}
	if req.PopulationSize > 0 {
		g.PopulationSize = req.PopulationSize
	}
	if req.SelectRate > 0 {
		g.SelectRate = req.SelectRate
	}
	if req.RandomSelectRate > 0 {
		g.RandomSelectRate = req.RandomSelectRate
	}
	if req.LegendSize > 0 {
		g.LegendSize = req.LegendSize
	}
	if req.IdleThreshold > 0 {
		g.IdleThreshold = req.IdleThreshold
	}
	if req.Seed != 0 {
		c.cfg.Seed = req.Seed
	}
	if req.Workers > 0 {
		c.cfg.Workers = req.Workers
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	return c.cfg.Save(filepath.Join(c.workdir, configFile))
}

type AddRequest struct {
	Inputs []string
}

type AddSummary struct {
	Added int
	Total int
}

// Add extends a built index with new samples and persists the grown matrix.
func (c *Client) Add(ctx context.Context, req AddRequest) (AddSummary, error) {
	added, err := c.idx.Add(ctx, req.Inputs)
	if err != nil {
		return AddSummary{}, err
	}
	if err := c.idx.Save(ctx); err != nil {
		return AddSummary{}, err
	}
	return AddSummary{Added: added, Total: c.idx.Len()}, nil
}

type SearchRequest struct {
	// Query is an indexed sample name or a path to a FASTA file.
	Query string
	K     int
}

type Hit struct {
	Name  string
	Score float64
}

type SearchResult struct {
	Hits []Hit
}

// Search returns the k nearest indexed samples, best first. Embedding a
// file query may lazily grow the matrix, so the matrix is re-persisted
// afterwards.
func (c *Client) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	scores, names, err := c.idx.Search(ctx, req.Query, req.K)
	if err != nil {
		return SearchResult{}, err
	}
	if err := c.idx.Save(ctx); err != nil {
		return SearchResult{}, err
	}
	hits := make([]Hit, len(names))
	for i := range names {
		hits[i] = Hit{Name: names[i], Score: scores[i]}
	}
	return SearchResult{Hits: hits}, nil
}

type Status struct {
	Name      string
	Metric    string
	KmerSize  int
	Samples   int
	Ready     bool
	Built     bool
	Landmarks []string
	RunID     string
}

// Status reports the index lifecycle state and its coordinate system.
func (c *Client) Status(_ context.Context) (Status, error) {
	st := Status{
		Name:     c.cfg.Name,
		Metric:   c.cfg.Metric,
		KmerSize: c.cfg.KmerSize,
		Samples:  c.idx.Len(),
		Ready:    c.idx.IsReady(),
		Built:    c.idx.IsBuilt(),
	}
	if cs := c.idx.CoordSystem(); cs != nil {
		st.Landmarks = cs.Landmarks
		st.RunID = cs.RunID
	}
	return st, nil
}

// Runs lists this index's build records, newest first.
func (c *Client) Runs(ctx context.Context, limit int) ([]model.BuildRecord, error) {
	records, err := c.store.ListBuildRecords(ctx, c.cfg.Name)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// FitnessHistory returns the per-generation best fitness trace of one
// build run.
func (c *Client) FitnessHistory(ctx context.Context, runID string) ([]float64, bool, error) {
	return c.store.GetFitnessHistory(ctx, runID)
}
