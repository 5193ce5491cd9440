package dem_test

import (
	"math"
	"testing"

	"github.com/alecthomas/assert/v2"

	dem "github.com/wgmilleriii/go-dem"
)

func newTestGrid(t *testing.T, values [][]float64) *dem.Grid {
	t.Helper()
	grid, err := dem.NewGrid(values, dem.NewGeoTransform(0, 1, 0, -1))
	assert.NoError(t, err)
	return grid
}

func TestInterpolateBilinear(t *testing.T) {
	grid := newTestGrid(t, [][]float64{
		{0, 1, 2},
		{2, 3, 4},
		{4, 5, 6},
	})
	for _, tc := range []struct {
		coords   []dem.FractionalPixelCoord
		expected []float64
	}{
		{
			coords: []dem.FractionalPixelCoord{
				{Row: 0.5, Col: 0.5},
				{Row: 0.5, Col: 1.5},
				{Row: 1.5, Col: 0.5},
				{Row: 1.5, Col: 1.5},
				{Row: 1, Col: 1},
				{Row: 0.5, Col: 1},
				{Row: 1, Col: 0.5},
				{Row: 0.2, Col: 0.2},
				{Row: 2.9, Col: 2.9},
			},
			expected: []float64{
				0,
				1,
				2,
				3,
				1.5,
				0.5,
				1,
				0,
				6,
			},
		},
	} {
		actual, err := dem.InterpolateBilinear(t.Context(), grid, tc.coords)
		assert.NoError(t, err)
		assert.Equal(t, tc.expected, actual)
	}
}

func TestInterpolateBilinear_Missing(t *testing.T) {
	grid := newTestGrid(t, [][]float64{
		{0, 1},
		{-9999, 3},
	}).WithNoData(dem.NewNoData(-9999, dem.Int16))

	actual, err := dem.InterpolateBilinear(t.Context(), grid, []dem.FractionalPixelCoord{
		{Row: 1, Col: 1},
		{Row: -1, Col: 0.5},
		{Row: 0.5, Col: 1.5},
	})
	assert.NoError(t, err)
	assert.True(t, math.IsNaN(actual[0]))
	assert.True(t, math.IsNaN(actual[1]))
	assert.Equal(t, 1.0, actual[2])
}

func TestInterpolateNearest(t *testing.T) {
	grid := newTestGrid(t, [][]float64{
		{0, 1, 2},
		{2, 3, 4},
	})
	actual, err := dem.InterpolateNearest(t.Context(), grid, []dem.FractionalPixelCoord{
		{Row: 0.2, Col: 1.7},
		{Row: 1.99, Col: 2.01},
		{Row: 2, Col: 0},
	})
	assert.NoError(t, err)
	assert.Equal(t, 1.0, actual[0])
	assert.Equal(t, 4.0, actual[1])
	assert.True(t, math.IsNaN(actual[2]))
}
