package engine

import (
	"fmt"
	"math"

	"ArchPull/internal/domain/models"
)

// Resample projects the bridged timeline onto a uniform grid: start at
// cumTime[0], step dt, stopping strictly before cumTime[last]. Each row is
// linearly re-interpolated; NaN regions stay NaN.
func Resample(cumTime []float64, vals [][]float64, dt float64) ([]float64, [][]float64, error) {
	if len(cumTime) == 0 {
		return nil, nil, models.ErrEmptyTimeAxis
	}
	if dt <= 0 {
		return nil, nil, fmt.Errorf("%w: resample interval must be > 0, got %g", models.ErrConfig, dt)
	}

	span := cumTime[len(cumTime)-1] - cumTime[0]
	n := int(math.Floor(span/dt + 1e-9))
	if n <= 0 {
		return nil, nil, fmt.Errorf("window of %gs is shorter than resample interval %gs: %w",
			span, dt, models.ErrEmptyTimeAxis)
	}

	grid := make([]float64, n)
	for i := range grid {
		grid[i] = cumTime[0] + float64(i)*dt
	}

	out := make([][]float64, len(vals))
	for i, row := range vals {
		out[i] = Interp(grid, cumTime, row)
	}
	return grid, out, nil
}
