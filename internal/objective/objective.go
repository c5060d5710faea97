// Package objective scores a candidate landmark subset against the full
// distance matrix: each sample's distances to the chosen landmarks form its
// profile, and the fitness is the grand sum of the partial-correlation
// matrix among the landmark profiles. A low sum means the landmarks carry
// little redundant information about the collection.
package objective

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrDegenerate marks a landmark set whose profiles admit no
// partial-correlation score: duplicate or constant profile columns, or a
// singular correlation matrix.
var ErrDegenerate = errors.New("objective: degenerate landmark set")

// Score computes the total partial correlation of the landmark columns of
// dist. dist must be the full square distance matrix; landmarks are column
// indices into it.
func Score(dist mat.Matrix, landmarks []int) (float64, error) {
	n, cols := dist.Dims()
	k := len(landmarks)
	if k < 2 {
		return 0, fmt.Errorf("%w: need at least 2 landmarks, got %d", ErrDegenerate, k)
	}
	if n < 2 {
		return 0, fmt.Errorf("objective: distance matrix has %d rows, need at least 2", n)
	}
	seen := make(map[int]struct{}, k)
	for _, idx := range landmarks {
		if idx < 0 || idx >= cols {
			return 0, fmt.Errorf("objective: landmark index %d out of range [0, %d)", idx, cols)
		}
		if _, dup := seen[idx]; dup {
			return 0, fmt.Errorf("%w: duplicate landmark index %d", ErrDegenerate, idx)
		}
		seen[idx] = struct{}{}
	}

	// Profile matrix: one row per sample, one column per landmark.
	profiles := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		for j, idx := range landmarks {
			profiles.Set(i, j, dist.At(i, idx))
		}
	}

	corr := mat.NewSymDense(k, nil)
	stat.CorrelationMatrix(corr, profiles, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			if math.IsNaN(corr.At(i, j)) {
				// constant profile column
				return 0, ErrDegenerate
			}
		}
	}

	var precision mat.Dense
	if err := precision.Inverse(corr); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDegenerate, err)
	}

	// The partial correlation between landmarks i and j, controlling for
	// all others, falls out of the precision matrix.
	total := 0.0
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			if i == j {
				total++
				continue
			}
			total += -precision.At(i, j) / math.Sqrt(precision.At(i, i)*precision.At(j, j))
		}
	}
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return 0, ErrDegenerate
	}
	return total, nil
}
