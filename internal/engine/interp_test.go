package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpAt(t *testing.T) {
	x := []float64{0, 1, 3}
	y := []float64{0, 10, 30}

	assert.Equal(t, 0.0, interpAt(0, x, y))
	assert.Equal(t, 10.0, interpAt(1, x, y))
	assert.InDelta(t, 5.0, interpAt(0.5, x, y), 1e-12)
	assert.InDelta(t, 20.0, interpAt(2, x, y), 1e-12)
	assert.True(t, math.IsNaN(interpAt(-0.1, x, y)))
	assert.True(t, math.IsNaN(interpAt(3.1, x, y)))
	assert.True(t, math.IsNaN(interpAt(0, nil, nil)))
}
