// Package coordsys owns the landmark coordinate system: it runs the
// evolutionary search that picks the landmarks, embeds samples as landmark
// distance profiles, and ranks nearest neighbors in that embedding.
package coordsys

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"mgsearch/internal/ga"
	"mgsearch/internal/model"
	"mgsearch/internal/objective"
	"mgsearch/internal/pwmatrix"
	"mgsearch/internal/sample"
	"mgsearch/internal/storage"
)

// ErrNoCoordSystem is returned when a query arrives before a coordinate
// system has been built or loaded.
var ErrNoCoordSystem = errors.New("coordsys: no coordinate system built")

// Params are the evolutionary search hyperparameters, resolved from
// configuration.
type Params struct {
	CoordSystemSize  int
	Generations      int
	MutationRate     float64
	PopulationSize   int
	SelectRate       float64
	RandomSelectRate float64
	LegendSize       int
	// IdleThreshold stops the search after this many consecutive
	// generations without improvement; 0 disables early stopping.
	IdleThreshold int
	Seed          int64
	KmerSize      int
}

// Storage composes the genetic engine and the objective function into the
// index's embedding collaborator, persisting its results through a Store.
type Storage struct {
	name   string
	store  storage.Store
	params Params
	log    *slog.Logger

	cs *model.CoordSystem
}

func NewStorage(name string, store storage.Store, params Params, log *slog.Logger) (*Storage, error) {
	if name == "" {
		return nil, fmt.Errorf("coordsys: index name is required")
	}
	if store == nil {
		return nil, fmt.Errorf("coordsys: store is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Storage{name: name, store: store, params: params, log: log}, nil
}

// CoordSystem returns the current coordinate system, or nil before Build or
// Load.
func (s *Storage) CoordSystem() *model.CoordSystem {
	return s.cs
}

// Load restores the coordinate system persisted under this index's name.
// A missing record is not an error; the index simply is not built yet.
func (s *Storage) Load(ctx context.Context) error {
	cs, ok, err := s.store.GetCoordSystem(ctx, s.name)
	if err != nil {
		return err
	}
	if ok {
		s.cs = &cs
	}
	return nil
}

// indexGene draws landmark candidates uniformly from the sample collection.
type indexGene struct {
	n int
}

func (g indexGene) Seed(rng *rand.Rand) int {
	return rng.Intn(g.n)
}

func (g indexGene) Mutate(rng *rand.Rand, _ int) int {
	return rng.Intn(g.n)
}

// Build evolves a landmark subset over the full distance matrix and
// persists the winning coordinate system together with its build record and
// per-generation fitness trace. The total partial correlation among
// landmark profiles is minimized: a low sum means the chosen landmarks are
// mutually non-redundant.
func (s *Storage) Build(ctx context.Context, dist *pwmatrix.Matrix, samples []*sample.Sample) (model.BuildRecord, error) {
	n := dist.Len()
	k := s.params.CoordSystemSize
	if k < 2 {
		return model.BuildRecord{}, fmt.Errorf("coordsys: coord system size must be >= 2, got %d", k)
	}
	if k > n {
		return model.BuildRecord{}, fmt.Errorf("coordsys: coord system size %d exceeds collection size %d", k, n)
	}

	dense, labels, err := dist.Dense(ctx)
	if err != nil {
		return model.BuildRecord{}, err
	}

	popSize := s.params.PopulationSize
	nFittest := int(s.params.SelectRate * float64(popSize))
	if nFittest < 1 {
		nFittest = 1
	}
	nRandomUnfit := int(s.params.RandomSelectRate * float64(popSize))
	if nFittest+nRandomUnfit > popSize {
		nRandomUnfit = popSize - nFittest
	}

	rng := rand.New(rand.NewSource(s.params.Seed))
	engine, err := ga.NewSharedEngine[int](indexGene{n: n}, k)
	if err != nil {
		return model.BuildRecord{}, err
	}

	ancestors := make([]*ga.Individual[int], 0, popSize)
	for i := 0; i < popSize; i++ {
		chromosome := rng.Perm(n)[:k]
		ind, err := ga.NewIndividualFrom(s.params.MutationRate, engine, chromosome)
		if err != nil {
			return model.BuildRecord{}, err
		}
		ancestors = append(ancestors, ind)
	}

	fitness := func(ind *ga.Individual[int]) (float64, error) {
		v, err := objective.Score(dense, ind.Chromosome())
		if errors.Is(err, objective.ErrDegenerate) {
			// a chromosome that mutated onto duplicate landmarks
			// scores worst and is weeded out by selection
			return math.Inf(1), nil
		}
		if err != nil {
			return 0, err
		}
		return v, nil
	}

	pop, err := ga.NewPopulation(ga.ModeMinimize, popSize, ancestors, fitness, s.params.LegendSize, rng)
	if err != nil {
		return model.BuildRecord{}, err
	}
	evolution, err := pop.Evolve(s.params.Generations, nFittest, nRandomUnfit)
	if err != nil {
		return model.BuildRecord{}, err
	}

	var (
		best     = math.Inf(1)
		bestInd  *ga.Individual[int]
		idle     int
		gensRun  int
		history  = make([]float64, 0, s.params.Generations)
		converge bool
	)
	for {
		if err := ctx.Err(); err != nil {
			return model.BuildRecord{}, err
		}
		legends, ok, err := evolution.Next()
		if err != nil {
			return model.BuildRecord{}, err
		}
		if !ok {
			break
		}
		gensRun++
		top := legends[0]
		history = append(history, top.Fitness)
		if top.Fitness < best {
			best = top.Fitness
			bestInd = top.Individual
			idle = 0
		} else {
			idle++
		}
		if s.params.IdleThreshold > 0 && idle >= s.params.IdleThreshold {
			converge = true
			break
		}
	}
	if bestInd == nil || math.IsInf(best, 1) {
		return model.BuildRecord{}, fmt.Errorf("coordsys: evolution found no viable landmark set")
	}

	landmarks := make([]string, 0, k)
	for _, idx := range bestInd.Chromosome() {
		landmarks = append(landmarks, labels[idx])
	}

	runID := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339)
	cs := model.CoordSystem{
		VersionedRecord: storage.CurrentVersions(),
		Name:            s.name,
		Landmarks:       landmarks,
		Metric:          dist.MetricName(),
		KmerSize:        s.params.KmerSize,
		BestFitness:     best,
		RunID:           runID,
		CreatedAtUTC:    now,
	}
	record := model.BuildRecord{
		VersionedRecord: storage.CurrentVersions(),
		RunID:           runID,
		Name:            s.name,
		CreatedAtUTC:    now,
		Metric:          dist.MetricName(),
		SampleCount:     n,
		CoordSystemSize: k,
		Generations:     s.params.Generations,
		GenerationsRun:  gensRun,
		PopulationSize:  popSize,
		MutationRate:    s.params.MutationRate,
		NFittest:        nFittest,
		NRandomUnfit:    nRandomUnfit,
		LegendSize:      s.params.LegendSize,
		IdleThreshold:   s.params.IdleThreshold,
		Seed:            s.params.Seed,
		Converged:       converge,
		BestFitness:     best,
	}

	if err := s.store.SaveCoordSystem(ctx, cs); err != nil {
		return model.BuildRecord{}, err
	}
	if err := s.store.SaveBuildRecord(ctx, record); err != nil {
		return model.BuildRecord{}, err
	}
	if err := s.store.SaveFitnessHistory(ctx, runID, history); err != nil {
		return model.BuildRecord{}, err
	}

	s.cs = &cs
	s.log.Info("coordinate system built",
		"run_id", runID, "landmarks", len(landmarks),
		"generations_run", gensRun, "converged", converge,
		"best_fitness", best)
	return record, nil
}

// AddSamples eagerly fills each new sample's landmark profile so later
// queries rank it without lazy computation. The evolutionary search is not
// re-run.
func (s *Storage) AddSamples(ctx context.Context, samples []*sample.Sample, dist *pwmatrix.Matrix) error {
	if s.cs == nil {
		return ErrNoCoordSystem
	}
	landmarks, err := s.landmarkSamples(dist)
	if err != nil {
		return err
	}
	for _, smp := range samples {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, lm := range landmarks {
			dist.Get(smp, lm)
		}
	}
	return nil
}

// Find embeds the query and every indexed sample as landmark distance
// profiles and returns the k candidates whose profiles lie closest to the
// query's, best first. The query itself is never a candidate.
func (s *Storage) Find(ctx context.Context, dist *pwmatrix.Matrix, query *sample.Sample, k int) ([]float64, []string, error) {
	if s.cs == nil {
		return nil, nil, ErrNoCoordSystem
	}
	if k <= 0 {
		return nil, nil, fmt.Errorf("coordsys: k must be > 0, got %d", k)
	}
	landmarks, err := s.landmarkSamples(dist)
	if err != nil {
		return nil, nil, err
	}

	// Capture candidates before embedding the query: Get registers the
	// query as a matrix member.
	candidates := make([]string, 0, dist.Len())
	for _, name := range dist.Labels() {
		if name != query.Name {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		return nil, nil, fmt.Errorf("coordsys: no candidates to search")
	}

	queryProfile := make([]float64, len(landmarks))
	for i, lm := range landmarks {
		queryProfile[i] = dist.Get(query, lm)
	}

	type hit struct {
		name  string
		score float64
	}
	hits := make([]hit, 0, len(candidates))
	for _, name := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		smp, ok := dist.Sample(name)
		if !ok {
			return nil, nil, fmt.Errorf("coordsys: candidate %q has no sample association", name)
		}
		score := 0.0
		for i, lm := range landmarks {
			d := dist.Get(smp, lm) - queryProfile[i]
			score += d * d
		}
		hits = append(hits, hit{name: name, score: math.Sqrt(score)})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score < hits[j].score
		}
		return hits[i].name < hits[j].name
	})
	if k > len(hits) {
		k = len(hits)
	}

	scores := make([]float64, k)
	names := make([]string, k)
	for i := 0; i < k; i++ {
		scores[i] = hits[i].score
		names[i] = hits[i].name
	}
	return scores, names, nil
}

func (s *Storage) landmarkSamples(dist *pwmatrix.Matrix) ([]*sample.Sample, error) {
	landmarks := make([]*sample.Sample, 0, len(s.cs.Landmarks))
	for _, name := range s.cs.Landmarks {
		smp, ok := dist.Sample(name)
		if !ok {
			return nil, fmt.Errorf("coordsys: landmark %q is missing from the distance matrix", name)
		}
		landmarks = append(landmarks, smp)
	}
	return landmarks, nil
}
