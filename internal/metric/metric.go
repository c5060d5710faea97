// Package metric scores dissimilarity between two sparse k-mer frequency
// maps. All metrics are symmetric, deterministic, and bounded in [0, 1].
package metric

import (
	"fmt"
	"math"
	"sort"
)

// Func is a pure, symmetric distance between two frequency maps.
type Func func(a, b map[string]int) float64

var registry = map[string]Func{
	"jaccard": Jaccard,
	"jsd":     JensenShannon,
}

// ByName resolves a metric by its configured name.
func ByName(name string) (Func, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("metric: unknown metric %q (known: %v)", name, Names())
	}
	return fn, nil
}

// Names lists the registered metric names in stable order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Jaccard returns 1 - |A∩B| / |A∪B| over the key sets of the two maps;
// counts are ignored, presence only. Two empty maps have identical key sets
// and compare at distance 0.
func Jaccard(a, b map[string]int) float64 {
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	intersection := 0
	for key := range small {
		if _, ok := large[key]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return 1 - float64(intersection)/float64(union)
}

// JensenShannon returns the Jensen-Shannon distance (the square root of the
// base-2 Jensen-Shannon divergence) between the two maps normalized into
// probability distributions over their key union. Per-key terms with a zero
// leading factor contribute 0 rather than NaN. Two empty maps are treated
// as identical degenerate fingerprints and compare at distance 0.
func JensenShannon(a, b map[string]int) float64 {
	totalA := 0
	for _, c := range a {
		totalA += c
	}
	totalB := 0
	for _, c := range b {
		totalB += c
	}
	if totalA == 0 && totalB == 0 {
		return 0
	}

	divergence := 0.0
	accumulate := func(ca, cb int) {
		var p, q float64
		if totalA > 0 {
			p = float64(ca) / float64(totalA)
		}
		if totalB > 0 {
			q = float64(cb) / float64(totalB)
		}
		z := p + q
		if p > 0 {
			divergence += p * math.Log2(2*p/z)
		}
		if q > 0 {
			divergence += q * math.Log2(2*q/z)
		}
	}

	for key, ca := range a {
		accumulate(ca, b[key])
	}
	for key, cb := range b {
		if _, seen := a[key]; !seen {
			accumulate(0, cb)
		}
	}

	divergence *= 0.5
	if divergence < 0 {
		// float error on near-identical distributions
		divergence = 0
	}
	return math.Sqrt(divergence)
}
