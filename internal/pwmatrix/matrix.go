// Package pwmatrix maintains the symmetric, lazily filled pairwise distance
// matrix over sample labels. Cells are keyed by the canonical unordered
// label pair, so symmetry is structural rather than a maintained convention.
package pwmatrix

import (
	"context"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"

	"mgsearch/internal/metric"
	"mgsearch/internal/sample"
)

// cellKey orders its labels lexicographically; use pairKey to build one.
type cellKey struct {
	a, b string
}

func pairKey(x, y string) cellKey {
	if x < y {
		return cellKey{a: x, b: y}
	}
	return cellKey{a: y, b: x}
}

// Matrix is a symmetric distance matrix over sample labels. Known cells are
// immutable; missing cells are computed on demand from the samples' k-mer
// fingerprints. Concurrent lazy fills of the same cell may both evaluate
// the metric; the metric is deterministic, so the duplicate work is wasted
// but never observable.
type Matrix struct {
	metricName string
	metric     metric.Func

	mu      sync.RWMutex
	labels  []string
	samples map[string]*sample.Sample
	cells   map[cellKey]float64
}

// New returns an empty matrix using the named metric.
func New(metricName string) (*Matrix, error) {
	fn, err := metric.ByName(metricName)
	if err != nil {
		return nil, err
	}
	return &Matrix{
		metricName: metricName,
		metric:     fn,
		samples:    map[string]*sample.Sample{},
		cells:      map[cellKey]float64{},
	}, nil
}

// Create builds a matrix over the given samples and eagerly computes every
// pairwise distance across a bounded worker pool owned by this call. Each
// pair is a pure function of two immutable fingerprints, so the workers
// share no mutable state.
func Create(ctx context.Context, samples []*sample.Sample, metricName string, workers int) (*Matrix, error) {
	m, err := New(metricName)
	if err != nil {
		return nil, err
	}
	for _, s := range samples {
		if _, dup := m.samples[s.Name]; dup {
			return nil, fmt.Errorf("pwmatrix: duplicate sample label %q", s.Name)
		}
		m.addLocked(s)
	}

	type job struct {
		i, j int
	}
	type result struct {
		key   cellKey
		value float64
		err   error
	}

	n := len(samples)
	pairCount := n * (n - 1) / 2
	if pairCount == 0 {
		return m, nil
	}

	if workers <= 0 {
		workers = 1
	}
	if workers > pairCount {
		workers = pairCount
	}

	jobs := make(chan job)
	results := make(chan result, pairCount)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for jb := range jobs {
				if err := ctx.Err(); err != nil {
					results <- result{err: err}
					continue
				}
				a, b := samples[jb.i], samples[jb.j]
				results <- result{
					key:   pairKey(a.Name, b.Name),
					value: m.metric(a.Kmers, b.Kmers),
				}
			}
		}()
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			jobs <- job{i: i, j: j}
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	for res := range results {
		if res.err != nil {
			return nil, res.err
		}
		m.cells[res.key] = res.value
	}
	return m, nil
}

// addLocked registers a sample without taking the mutex; callers must hold
// it or own the matrix exclusively.
func (m *Matrix) addLocked(s *sample.Sample) {
	if _, ok := m.samples[s.Name]; ok {
		return
	}
	m.samples[s.Name] = s
	m.labels = append(m.labels, s.Name)
}

// AddSample extends the matrix with one new label whose cells are all
// unknown until queried. Adding an existing label is a no-op.
func (m *Matrix) AddSample(s *sample.Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addLocked(s)
}

// Get returns the distance between a and b, adding either sample if it is
// not yet a member. An unknown cell is computed once, recorded
// symmetrically, and memoized; the metric is never re-invoked for a pair
// with a recorded value. The diagonal is definitionally zero and never
// invokes the metric.
func (m *Matrix) Get(a, b *sample.Sample) float64 {
	m.mu.Lock()
	m.addLocked(a)
	m.addLocked(b)
	m.mu.Unlock()

	if a.Name == b.Name {
		return 0
	}

	key := pairKey(a.Name, b.Name)
	m.mu.RLock()
	v, ok := m.cells[key]
	m.mu.RUnlock()
	if ok {
		return v
	}

	// Evaluate outside the lock; a racing fill of the same cell computes
	// the identical value.
	v = m.metric(a.Kmers, b.Kmers)
	m.mu.Lock()
	if prev, ok := m.cells[key]; ok {
		v = prev
	} else {
		m.cells[key] = v
	}
	m.mu.Unlock()
	return v
}

// Known reports whether the cell for the unordered pair (a, b) has been
// computed. The diagonal is always known.
func (m *Matrix) Known(a, b string) bool {
	if a == b {
		return true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.cells[pairKey(a, b)]
	return ok
}

// Labels returns the sample labels in insertion order.
func (m *Matrix) Labels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.labels))
	copy(out, m.labels)
	return out
}

// Sample returns the sample registered under name.
func (m *Matrix) Sample(name string) (*sample.Sample, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.samples[name]
	return s, ok
}

// Len returns the number of indexed samples.
func (m *Matrix) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.labels)
}

// MetricName returns the configured metric name.
func (m *Matrix) MetricName() string {
	return m.metricName
}

// Dense assembles the full matrix in label order, lazily computing any
// cells still unknown.
func (m *Matrix) Dense(ctx context.Context) (*mat.Dense, []string, error) {
	labels := m.Labels()
	n := len(labels)
	if n == 0 {
		return nil, nil, fmt.Errorf("pwmatrix: empty matrix")
	}

	dense := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		a, _ := m.Sample(labels[i])
		for j := i + 1; j < n; j++ {
			b, _ := m.Sample(labels[j])
			v := m.Get(a, b)
			dense.Set(i, j, v)
			dense.Set(j, i, v)
		}
	}
	return dense, labels, nil
}
