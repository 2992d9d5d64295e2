package betagrid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/scan.features/internal/feature"
)

// Euclidean is the L2 distance between two histograms.
func Euclidean(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	return floats.Distance(a, b, 2)
}

// ChiSquare is the chi-squared histogram distance. Zero bins contribute
// nothing, matching the usual convention for normalized histograms.
func ChiSquare(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		denom := a[i] + b[i]
		if denom == 0 {
			continue
		}
		d := a[i] - b[i]
		sum += d * d / denom
	}
	return sum
}

// Bhattacharyya is the Bhattacharyya distance between two normalized
// histograms: -ln of the Bhattacharyya coefficient, clamped at zero overlap.
func Bhattacharyya(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var coeff float64
	for i := range a {
		coeff += math.Sqrt(a[i] * b[i])
	}
	if coeff <= 0 {
		return math.Inf(1)
	}
	if coeff > 1 {
		coeff = 1
	}
	return -math.Log(coeff)
}

// DistanceByName resolves a configured metric name to its implementation.
func DistanceByName(name string) (feature.DistanceFunc, error) {
	switch name {
	case "euclidean":
		return Euclidean, nil
	case "chi2":
		return ChiSquare, nil
	case "bhattacharyya":
		return Bhattacharyya, nil
	default:
		return nil, fmt.Errorf("unknown histogram distance %q", name)
	}
}
