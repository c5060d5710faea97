// Package index composes the distance cache, the coordinate system storage,
// and FASTA preprocessing into the index lifecycle: ready after Create or
// Load, built after Build, with Add and Search keeping it built.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"mgsearch/internal/config"
	"mgsearch/internal/coordsys"
	"mgsearch/internal/model"
	"mgsearch/internal/pwmatrix"
	"mgsearch/internal/sample"
	"mgsearch/internal/storage"
)

// ErrNotBuilt is returned when Add or Search runs before Build.
var ErrNotBuilt = errors.New("index: not built")

type Index struct {
	cfg  config.Config
	dir  string
	log  *slog.Logger
	dist *pwmatrix.Matrix
	cs   *coordsys.Storage
}

func params(cfg config.Config) coordsys.Params {
	return coordsys.Params{
		CoordSystemSize:  cfg.Genetic.CoordSystemSize,
		Generations:      cfg.Genetic.Generations,
		MutationRate:     cfg.Genetic.MutationRate,
		PopulationSize:   cfg.Genetic.PopulationSize,
		SelectRate:       cfg.Genetic.SelectRate,
		RandomSelectRate: cfg.Genetic.RandomSelectRate,
		LegendSize:       cfg.Genetic.LegendSize,
		IdleThreshold:    cfg.Genetic.IdleThreshold,
		Seed:             cfg.Seed,
		KmerSize:         cfg.KmerSize,
	}
}

// Create wires a fresh, empty index in dir. The result is ready but not
// built.
func Create(cfg config.Config, dir string, store storage.Store, log *slog.Logger) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	dist, err := pwmatrix.New(cfg.Metric)
	if err != nil {
		return nil, err
	}
	cs, err := coordsys.NewStorage(cfg.Name, store, params(cfg), log)
	if err != nil {
		return nil, err
	}
	return &Index{cfg: cfg, dir: dir, log: log, dist: dist, cs: cs}, nil
}

// Load restores a persisted index from dir: the distance matrix with its
// sample associations, and the coordinate system from the store. The two
// must be mutually consistent; a landmark absent from the matrix is a
// corruption error.
func Load(ctx context.Context, cfg config.Config, dir string, store storage.Store, log *slog.Logger) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	dist, err := pwmatrix.Load(dir)
	if err != nil {
		return nil, err
	}
	if dist.MetricName() != cfg.Metric {
		return nil, fmt.Errorf("index: matrix was built with metric %q, config says %q",
			dist.MetricName(), cfg.Metric)
	}
	cs, err := coordsys.NewStorage(cfg.Name, store, params(cfg), log)
	if err != nil {
		return nil, err
	}
	if err := cs.Load(ctx); err != nil {
		return nil, err
	}
	if built := cs.CoordSystem(); built != nil {
		for _, name := range built.Landmarks {
			if _, ok := dist.Sample(name); !ok {
				return nil, fmt.Errorf("index: loaded coordinate system references landmark %q missing from the distance matrix", name)
			}
		}
	}
	return &Index{cfg: cfg, dir: dir, log: log, dist: dist, cs: cs}, nil
}

// IsReady reports whether the index's collaborators are wired; it is true
// for every successfully created or loaded index.
func (ix *Index) IsReady() bool {
	return ix.dist != nil && ix.cs != nil
}

// IsBuilt reports whether a coordinate system exists, i.e. Build has
// completed at least once on this index or a previous life of it.
func (ix *Index) IsBuilt() bool {
	return ix.cs.CoordSystem() != nil
}

// Len returns the number of indexed samples.
func (ix *Index) Len() int {
	return ix.dist.Len()
}

// Config returns the configuration the index was opened with.
func (ix *Index) Config() config.Config {
	return ix.cfg
}

// CoordSystem exposes the current coordinate system for status reporting.
func (ix *Index) CoordSystem() *model.CoordSystem {
	return ix.cs.CoordSystem()
}

// Build splits the raw inputs into per-sample units, eagerly computes the
// full pairwise distance matrix over a bounded worker pool, and delegates
// landmark selection to the coordinate system storage.
func (ix *Index) Build(ctx context.Context, inputs []string) (model.BuildRecord, error) {
	samples, err := ix.preprocess(inputs)
	if err != nil {
		return model.BuildRecord{}, err
	}
	ix.log.Info("building distance matrix", "samples", len(samples), "metric", ix.cfg.Metric, "workers", ix.cfg.Workers)
	dist, err := pwmatrix.Create(ctx, samples, ix.cfg.Metric, ix.cfg.Workers)
	if err != nil {
		return model.BuildRecord{}, err
	}
	record, err := ix.cs.Build(ctx, dist, samples)
	if err != nil {
		return model.BuildRecord{}, err
	}
	ix.dist = dist
	return record, nil
}

// Add extends a built index with new samples: the matrix grows by one
// unknown row and column per sample, and the coordinate system storage
// fills their landmark profiles without re-running the evolutionary search.
func (ix *Index) Add(ctx context.Context, inputs []string) (int, error) {
	if !ix.IsBuilt() {
		return 0, ErrNotBuilt
	}
	samples, err := ix.preprocess(inputs)
	if err != nil {
		return 0, err
	}
	added := 0
	fresh := make([]*sample.Sample, 0, len(samples))
	for _, s := range samples {
		if _, exists := ix.dist.Sample(s.Name); exists {
			continue
		}
		ix.dist.AddSample(s)
		fresh = append(fresh, s)
		added++
	}
	if err := ix.cs.AddSamples(ctx, fresh, ix.dist); err != nil {
		return 0, err
	}
	ix.log.Info("samples added", "added", added, "total", ix.dist.Len())
	return added, nil
}

// Search ranks the k nearest indexed samples for the query. A query naming
// an indexed sample reuses its fingerprint directly; anything else is
// treated as a FASTA file whose first sample becomes the query.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]float64, []string, error) {
	if !ix.IsBuilt() {
		return nil, nil, ErrNotBuilt
	}
	q, ok := ix.dist.Sample(query)
	if !ok {
		samples, err := sample.ReadFasta(query, ix.cfg.KmerSize)
		if err != nil {
			return nil, nil, fmt.Errorf("index: query %q is neither an indexed sample nor a readable FASTA file: %w", query, err)
		}
		q = samples[0]
	}
	return ix.cs.Find(ctx, ix.dist, q, k)
}

// Save persists the distance matrix and sample associations to the index
// directory. Coordinate system state is persisted by its store as it
// changes, so a save keeps both artifacts consistent.
func (ix *Index) Save(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(ix.dir, 0o755); err != nil {
		return err
	}
	return ix.dist.Save(ix.dir)
}

// MatrixPath returns the location of the persisted distance matrix table.
func (ix *Index) MatrixPath() string {
	return filepath.Join(ix.dir, "pwmatrix.tsv")
}

func (ix *Index) preprocess(inputs []string) ([]*sample.Sample, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("index: at least one input file is required")
	}
	var (
		all  []*sample.Sample
		seen = map[string]struct{}{}
	)
	for _, path := range inputs {
		samples, err := sample.ReadFasta(path, ix.cfg.KmerSize)
		if err != nil {
			return nil, err
		}
		for _, s := range samples {
			if _, dup := seen[s.Name]; dup {
				return nil, fmt.Errorf("index: sample %q appears in more than one input", s.Name)
			}
			seen[s.Name] = struct{}{}
			all = append(all, s)
		}
	}
	return all, nil
}
