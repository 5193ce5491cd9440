package dem_test

import (
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"

	dem "github.com/wgmilleriii/go-dem"
)

func TestComputeStats(t *testing.T) {
	grid := newTestGrid(t, [][]float64{
		{1, -32768, 10},
		{-32768, 5, 3},
	}).WithNoData(dem.NewNoData(-32768, dem.Int16))

	stats, err := dem.ComputeStats(t.Context(), grid)
	assert.NoError(t, err)
	assert.Equal(t, 6, stats.TotalPixels)
	assert.Equal(t, 4, stats.ValidPixels)
	assert.Equal(t, 2, stats.NoDataPixels)
	assert.Equal(t, stats.TotalPixels, stats.ValidPixels+stats.NoDataPixels)
	assert.Equal(t, 100*4/6.0, stats.PercentValid)
	assert.Equal(t, 1.0, *stats.Min)
	assert.Equal(t, 10.0, *stats.Max)
}

func TestComputeStats_DataType(t *testing.T) {
	grid := newTestGrid(t, [][]float64{
		{float64(float32(1234.5677))},
	}).WithDataType(dem.Float32)

	stats, err := dem.ComputeStats(t.Context(), grid)
	assert.NoError(t, err)
	assert.Equal(t, dem.Float32, stats.DataType)

	var sb strings.Builder
	assert.NoError(t, stats.WriteText(&sb))
	assert.Contains(t, sb.String(), "Elevation range: 1234.5677 to 1234.5677 meters\n")
}

func TestComputeStats_AllNoData(t *testing.T) {
	grid := newTestGrid(t, [][]float64{
		{-9999, -9999},
	}).WithNoData(dem.NewNoData(-9999, dem.Float32))

	stats, err := dem.ComputeStats(t.Context(), grid)
	assert.NoError(t, err)
	assert.Equal(t, 0, stats.ValidPixels)
	assert.Equal(t, 2, stats.NoDataPixels)
	assert.Equal(t, 0.0, stats.PercentValid)
	assert.Zero(t, stats.Min)
	assert.Zero(t, stats.Max)
}

func TestComputeStats_NoSentinel(t *testing.T) {
	grid := newTestGrid(t, [][]float64{
		{-9999, 2},
	})
	stats, err := dem.ComputeStats(t.Context(), grid)
	assert.NoError(t, err)
	assert.Equal(t, 2, stats.ValidPixels)
	assert.Equal(t, 100.0, stats.PercentValid)
	assert.Equal(t, -9999.0, *stats.Min)
}

func TestStats_WriteText(t *testing.T) {
	minElevation, maxElevation := 1523.5, 3255.0
	float32Elevation := float64(float32(1234.5677))
	for _, tc := range []struct {
		name     string
		stats    *dem.Stats
		expected string
	}{
		{
			name: "valid",
			stats: &dem.Stats{
				Path:         "dem_files/USGS_13_n36w107.tif",
				TotalPixels:  4,
				ValidPixels:  3,
				NoDataPixels: 1,
				PercentValid: 75,
				Min:          &minElevation,
				Max:          &maxElevation,
			},
			expected: strings.Join([]string{
				"File: dem_files/USGS_13_n36w107.tif",
				"Total pixels: 4",
				"Valid pixels: 3",
				"Nodata pixels: 1",
				"Percent valid: 75.00%",
				"Elevation range: 1523.5 to 3255 meters",
				"",
			}, "\n"),
		},
		{
			name: "float32",
			stats: &dem.Stats{
				Path:         "float32.tif",
				TotalPixels:  1,
				ValidPixels:  1,
				PercentValid: 100,
				Min:          &float32Elevation,
				Max:          &float32Elevation,
				DataType:     dem.Float32,
			},
			expected: strings.Join([]string{
				"File: float32.tif",
				"Total pixels: 1",
				"Valid pixels: 1",
				"Nodata pixels: 0",
				"Percent valid: 100.00%",
				"Elevation range: 1234.5677 to 1234.5677 meters",
				"",
			}, "\n"),
		},
		{
			name: "all_nodata",
			stats: &dem.Stats{
				Path:         "empty.tif",
				TotalPixels:  2,
				NoDataPixels: 2,
			},
			expected: strings.Join([]string{
				"File: empty.tif",
				"Total pixels: 2",
				"Valid pixels: 0",
				"Nodata pixels: 2",
				"Percent valid: 0.00%",
				"Elevation range: None to None meters",
				"",
			}, "\n"),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var sb strings.Builder
			assert.NoError(t, tc.stats.WriteText(&sb))
			assert.Equal(t, tc.expected, sb.String())
		})
	}
}
