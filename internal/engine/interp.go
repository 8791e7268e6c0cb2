package engine

import (
	"math"
	"sort"
)

// interpAt linearly interpolates y(q) against the ascending axis x. Queries
// outside [x[0], x[n-1]] return NaN; there is no extrapolation.
func interpAt(q float64, x, y []float64) float64 {
	n := len(x)
	if n == 0 || q < x[0] || q > x[n-1] {
		return math.NaN()
	}
	j := sort.SearchFloat64s(x, q)
	if j < n && x[j] == q {
		return y[j]
	}
	// x[j-1] < q < x[j]
	t := (q - x[j-1]) / (x[j] - x[j-1])
	return y[j-1] + t*(y[j]-y[j-1])
}

// Interp evaluates y at every query point in xq. NaN neighbors propagate,
// which is how inherited no-value regions survive resampling.
func Interp(xq, x, y []float64) []float64 {
	out := make([]float64, len(xq))
	for i, q := range xq {
		out[i] = interpAt(q, x, y)
	}
	return out
}
