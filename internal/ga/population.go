package ga

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Mode selects the optimization direction of a population.
type Mode string

const (
	ModeMaximize Mode = "maximize"
	ModeMinimize Mode = "minimize"
)

// ParseMode validates a mode string from configuration.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeMaximize, ModeMinimize:
		return Mode(s), nil
	default:
		return "", fmt.Errorf(`ga: mode must be "maximize" or "minimize", got %q`, s)
	}
}

// Fitness evaluates one individual. It must be deterministic; an error or a
// NaN value aborts the evolution.
type Fitness[G comparable] func(*Individual[G]) (float64, error)

// Scored pairs an individual with its evaluated fitness.
type Scored[G comparable] struct {
	Fitness    float64
	Individual *Individual[G]
}

// Population is a mutable evolving set of scored individuals of fixed
// target size, plus a bounded legend list of the best individuals observed
// so far. Legends are deduplicated by chromosome value, not object
// identity, so a surviving individual re-entering the selection does not
// occupy two legend slots.
type Population[G comparable] struct {
	mode      Mode
	size      int
	legendCap int
	fitness   Fitness[G]
	rng       *rand.Rand

	current []Scored[G]
	legends []Scored[G]
}

// NewPopulation validates every argument eagerly, probes the fitness
// function against the first ancestor, and evaluates all ancestors. Any
// contract violation fails here rather than deep inside the evolution loop.
func NewPopulation[G comparable](mode Mode, size int, ancestors []*Individual[G], fitness Fitness[G], legendCap int, rng *rand.Rand) (*Population[G], error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, fmt.Errorf("ga: population size must be > 0, got %d", size)
	}
	if len(ancestors) == 0 {
		return nil, fmt.Errorf("ga: at least one ancestor is required")
	}
	if len(ancestors) < size {
		return nil, fmt.Errorf("ga: %d ancestors cannot start a population of size %d",
			len(ancestors), size)
	}
	for i, ind := range ancestors {
		if ind == nil {
			return nil, fmt.Errorf("ga: ancestor %d is nil", i)
		}
	}
	if legendCap <= 0 {
		return nil, fmt.Errorf("ga: legend capacity must be > 0, got %d", legendCap)
	}
	if fitness == nil {
		return nil, fmt.Errorf("ga: fitness function is required")
	}
	if rng == nil {
		return nil, fmt.Errorf("ga: random source is required")
	}

	if _, err := evaluate(fitness, ancestors[0]); err != nil {
		return nil, fmt.Errorf("ga: fitness function rejected the first ancestor: %w", err)
	}

	p := &Population[G]{
		mode:      mode,
		size:      size,
		legendCap: legendCap,
		fitness:   fitness,
		rng:       rng,
	}
	p.current = make([]Scored[G], 0, len(ancestors))
	for _, ind := range ancestors {
		fit, err := evaluate(fitness, ind)
		if err != nil {
			return nil, fmt.Errorf("ga: evaluating ancestor: %w", err)
		}
		p.current = append(p.current, Scored[G]{Fitness: fit, Individual: ind})
	}
	return p, nil
}

func evaluate[G comparable](fitness Fitness[G], ind *Individual[G]) (float64, error) {
	v, err := fitness(ind)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) {
		return 0, fmt.Errorf("ga: fitness is NaN")
	}
	return v, nil
}

// Legends returns a copy of the current legend list, best first.
func (p *Population[G]) Legends() []Scored[G] {
	out := make([]Scored[G], len(p.legends))
	copy(out, p.legends)
	return out
}

// Evolve validates the selection parameters and returns a lazy, finite
// cursor over legend snapshots, one per completed generation. The cursor is
// not restartable; a population is discarded after its caller stops pulling
// generations.
func (p *Population[G]) Evolve(nGenerations, nFittest, nRandomUnfit int) (*Evolution[G], error) {
	if nGenerations <= 0 {
		return nil, fmt.Errorf("ga: generation count must be > 0, got %d", nGenerations)
	}
	if nFittest < 0 || nRandomUnfit < 0 {
		return nil, fmt.Errorf("ga: selection counts must be >= 0")
	}
	survivors := nFittest + nRandomUnfit
	if survivors < 1 {
		return nil, fmt.Errorf("ga: at least one survivor per generation is required")
	}
	if survivors > p.size {
		return nil, fmt.Errorf("ga: population size %d is too small for %d fittest + %d random unfit",
			p.size, nFittest, nRandomUnfit)
	}
	if need := p.size - survivors; need > 0 {
		if survivors < 2 {
			return nil, fmt.Errorf("ga: %d survivors cannot repopulate to size %d", survivors, p.size)
		}
		if maxPairs := survivors * (survivors - 1) / 2; need > maxPairs {
			return nil, fmt.Errorf("ga: %d survivors supply at most %d distinct mating pairs, need %d",
				survivors, maxPairs, need)
		}
	}
	return &Evolution[G]{
		pop:          p,
		remaining:    nGenerations,
		nFittest:     nFittest,
		nRandomUnfit: nRandomUnfit,
	}, nil
}

// Evolution is the lazy generation cursor produced by Evolve.
type Evolution[G comparable] struct {
	pop          *Population[G]
	remaining    int
	nFittest     int
	nRandomUnfit int
	failed       bool
}

// Next runs one generation and yields a snapshot of the legend list. It
// returns ok=false once the configured number of generations is exhausted
// or after an error has been returned.
func (e *Evolution[G]) Next() (legends []Scored[G], ok bool, err error) {
	if e.failed || e.remaining == 0 {
		return nil, false, nil
	}
	if err := e.pop.runGeneration(e.nFittest, e.nRandomUnfit); err != nil {
		e.failed = true
		return nil, false, err
	}
	e.remaining--
	return e.pop.Legends(), true, nil
}

func (p *Population[G]) runGeneration(nFittest, nRandomUnfit int) error {
	repopulated, err := p.repopulate(p.current)
	if err != nil {
		return err
	}
	selected, err := p.selectSurvivors(repopulated, nFittest, nRandomUnfit)
	if err != nil {
		return err
	}
	contenders := selected
	if len(contenders) > p.legendCap {
		contenders = contenders[:p.legendCap]
	}
	p.updateLegends(contenders)
	p.current = selected
	return nil
}

// repopulate mates enough distinct, unordered, non-self pairs of survivors
// to restore the target population size, evaluating each offspring.
func (p *Population[G]) repopulate(survivors []Scored[G]) ([]Scored[G], error) {
	need := p.size - len(survivors)
	if need <= 0 {
		return survivors, nil
	}
	pairs, err := randomPairs(p.rng, len(survivors), need)
	if err != nil {
		return nil, err
	}
	merged := make([]Scored[G], 0, p.size)
	for _, pair := range pairs {
		child, err := survivors[pair[0]].Individual.Mate(p.rng, survivors[pair[1]].Individual)
		if err != nil {
			return nil, err
		}
		fit, err := evaluate(p.fitness, child)
		if err != nil {
			return nil, fmt.Errorf("ga: evaluating offspring: %w", err)
		}
		merged = append(merged, Scored[G]{Fitness: fit, Individual: child})
	}
	return append(merged, survivors...), nil
}

// selectSurvivors ranks the evaluated population by fitness, keeps the top
// nFittest, and independently draws nRandomUnfit uniformly without
// replacement from the remainder.
func (p *Population[G]) selectSurvivors(evaluated []Scored[G], nFittest, nRandomUnfit int) ([]Scored[G], error) {
	if nFittest+nRandomUnfit > len(evaluated) {
		return nil, fmt.Errorf("ga: cannot select %d survivors from %d individuals",
			nFittest+nRandomUnfit, len(evaluated))
	}
	ranked := make([]Scored[G], len(evaluated))
	copy(ranked, evaluated)
	p.rank(ranked)

	selected := make([]Scored[G], 0, nFittest+nRandomUnfit)
	selected = append(selected, ranked[:nFittest]...)

	rest := ranked[nFittest:]
	perm := p.rng.Perm(len(rest))
	for _, idx := range perm[:nRandomUnfit] {
		selected = append(selected, rest[idx])
	}
	return selected, nil
}

// rank sorts best first: descending fitness when maximizing, ascending when
// minimizing. The sort is stable so ties keep their arrival order and runs
// stay reproducible under a fixed seed.
func (p *Population[G]) rank(scored []Scored[G]) {
	maximize := p.mode == ModeMaximize
	sort.SliceStable(scored, func(i, j int) bool {
		if maximize {
			return scored[i].Fitness > scored[j].Fitness
		}
		return scored[i].Fitness < scored[j].Fitness
	})
}

// updateLegends merges the generation's contenders into the running legend
// list, deduplicating by chromosome value, then re-ranks and truncates to
// capacity.
func (p *Population[G]) updateLegends(contenders []Scored[G]) {
	merged := p.legends
	for _, c := range contenders {
		duplicate := false
		for _, l := range merged {
			if c.Individual.Equal(l.Individual) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			merged = append(merged, c)
		}
	}
	p.rank(merged)
	if len(merged) > p.legendCap {
		merged = merged[:p.legendCap]
	}
	p.legends = merged
}

// randomPairs draws count distinct unordered non-self index pairs from
// [0, n). No pair repeats; order within a pair is irrelevant.
func randomPairs(rng *rand.Rand, n, count int) ([][2]int, error) {
	if count <= 0 {
		return nil, nil
	}
	if n < 2 {
		return nil, fmt.Errorf("ga: need at least 2 individuals to form mating pairs")
	}
	if maxPairs := n * (n - 1) / 2; count > maxPairs {
		return nil, fmt.Errorf("ga: %d individuals supply at most %d distinct pairs, need %d",
			n, maxPairs, count)
	}
	seen := make(map[[2]int]struct{}, count)
	pairs := make([][2]int, 0, count)
	for len(pairs) < count {
		i, j := rng.Intn(n), rng.Intn(n)
		if i == j {
			continue
		}
		if i > j {
			i, j = j, i
		}
		pair := [2]int{i, j}
		if _, dup := seen[pair]; dup {
			continue
		}
		seen[pair] = struct{}{}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}
