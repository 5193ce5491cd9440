package dem_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"

	dem "github.com/wgmilleriii/go-dem"
)

func filledValues(rows, cols int, f func(row, col int) float64) [][]float64 {
	values := make([][]float64, rows)
	for row := range rows {
		values[row] = make([]float64, cols)
		for col := range cols {
			values[row][col] = f(row, col)
		}
	}
	return values
}

func TestSampler_Example(t *testing.T) {
	values := filledValues(20, 20, func(row, col int) float64 {
		return float64(1000 + row*20 + col)
	})
	values[10][10] = -9999
	lon0, lat0, pixelSize := -106.0, 35.0, 0.001
	grid, err := dem.NewGrid(values, dem.NewGeoTransform(lon0, pixelSize, lat0, -pixelSize))
	assert.NoError(t, err)
	grid.WithNoData(dem.NewNoData(-9999, dem.Float32))

	sampler, err := dem.NewSampler(dem.WithStride(10))
	assert.NoError(t, err)
	samples, err := sampler.Samples(t.Context(), grid)
	assert.NoError(t, err)

	assert.Equal(t, []dem.Sample{
		{Lat: lat0, Lon: lon0, Elevation: 1000},
		{Lat: lat0, Lon: lon0 + 10*pixelSize, Elevation: 1010},
		{Lat: lat0 + 10*-pixelSize, Lon: lon0, Elevation: 1200},
	}, samples)
}

func TestSampler_Count(t *testing.T) {
	for _, tc := range []struct {
		name          string
		rows, cols    int
		stride        int
		expectedCount int
	}{
		{name: "stride_1", rows: 3, cols: 4, stride: 1, expectedCount: 12},
		{name: "exact", rows: 20, cols: 20, stride: 10, expectedCount: 4},
		{name: "ceil", rows: 21, cols: 11, stride: 10, expectedCount: 6},
		{name: "stride_exceeds_dims", rows: 5, cols: 7, stride: 100, expectedCount: 1},
		{name: "single_row", rows: 1, cols: 10, stride: 3, expectedCount: 4},
	} {
		t.Run(tc.name, func(t *testing.T) {
			grid, err := dem.NewGrid(filledValues(tc.rows, tc.cols, func(row, col int) float64 {
				return 1
			}), dem.NewGeoTransform(0, 1, 0, -1))
			assert.NoError(t, err)

			sampler, err := dem.NewSampler(dem.WithStride(tc.stride))
			assert.NoError(t, err)
			samples, err := sampler.Samples(t.Context(), grid)
			assert.NoError(t, err)
			assert.Equal(t, tc.expectedCount, len(samples))
		})
	}
}

func TestSampler_RowMajorAffine(t *testing.T) {
	geoTransform := dem.GeoTransform{10, 0.5, 0.25, 50, 0.125, -0.5}
	grid, err := dem.NewGrid(filledValues(4, 5, func(row, col int) float64 {
		return float64(10*row + col)
	}), geoTransform)
	assert.NoError(t, err)

	sampler, err := dem.NewSampler(dem.WithStride(2))
	assert.NoError(t, err)
	samples, err := sampler.Samples(t.Context(), grid)
	assert.NoError(t, err)

	var expected []dem.Sample
	for row := 0; row < 4; row += 2 {
		for col := 0; col < 5; col += 2 {
			expected = append(expected, dem.Sample{
				Lon:       geoTransform[0] + float64(col)*geoTransform[1] + float64(row)*geoTransform[2],
				Lat:       geoTransform[3] + float64(col)*geoTransform[4] + float64(row)*geoTransform[5],
				Elevation: float64(10*row + col),
			})
		}
	}
	assert.Equal(t, expected, samples)
}

func TestSampler_NoData(t *testing.T) {
	values := filledValues(6, 6, func(row, col int) float64 {
		if (row+col)%2 == 0 {
			return -32768
		}
		return float64(row + col)
	})

	t.Run("declared", func(t *testing.T) {
		grid, err := dem.NewGrid(values, dem.NewGeoTransform(0, 1, 0, -1))
		assert.NoError(t, err)
		grid.WithNoData(dem.NewNoData(-32768, dem.Int16))
		sampler, err := dem.NewSampler()
		assert.NoError(t, err)
		samples, err := sampler.Samples(t.Context(), grid)
		assert.NoError(t, err)
		assert.Equal(t, 18, len(samples))
		for _, sample := range samples {
			assert.NotEqual(t, -32768.0, sample.Elevation)
		}
	})

	t.Run("absent", func(t *testing.T) {
		grid, err := dem.NewGrid(values, dem.NewGeoTransform(0, 1, 0, -1))
		assert.NoError(t, err)
		sampler, err := dem.NewSampler()
		assert.NoError(t, err)
		samples, err := sampler.Samples(t.Context(), grid)
		assert.NoError(t, err)
		assert.Equal(t, 36, len(samples))
	})

	t.Run("override", func(t *testing.T) {
		grid, err := dem.NewGrid(values, dem.NewGeoTransform(0, 1, 0, -1))
		assert.NoError(t, err)
		grid.WithNoData(dem.NewNoData(1, dem.Int16))
		sampler, err := dem.NewSampler(dem.WithNoDataOverride(-32768))
		assert.NoError(t, err)
		samples, err := sampler.Samples(t.Context(), grid)
		assert.NoError(t, err)
		assert.Equal(t, 18, len(samples))
	})

	t.Run("override_not_representable", func(t *testing.T) {
		grid, err := dem.NewGrid([][]float64{{32768, 0, 65535}}, dem.NewGeoTransform(0, 1, 0, -1))
		assert.NoError(t, err)
		grid.WithDataType(dem.Uint16)
		sampler, err := dem.NewSampler(dem.WithNoDataOverride(-32768))
		assert.NoError(t, err)
		samples, err := sampler.Samples(t.Context(), grid)
		assert.NoError(t, err)
		assert.Equal(t, 3, len(samples))
	})
}

func TestSampler_PixelCenter(t *testing.T) {
	grid, err := dem.NewGrid([][]float64{{1, 2}}, dem.NewGeoTransform(-106, 0.5, 35, -0.5))
	assert.NoError(t, err)
	sampler, err := dem.NewSampler(dem.WithPixelCenter())
	assert.NoError(t, err)
	samples, err := sampler.Samples(t.Context(), grid)
	assert.NoError(t, err)
	assert.Equal(t, []dem.Sample{
		{Lat: 34.75, Lon: -105.75, Elevation: 1},
		{Lat: 34.75, Lon: -105.25, Elevation: 2},
	}, samples)
}

func TestSampler_Empty(t *testing.T) {
	for _, values := range [][][]float64{
		nil,
		{{}, {}},
	} {
		grid, err := dem.NewGrid(values, dem.NewGeoTransform(0, 1, 0, -1))
		assert.NoError(t, err)
		sampler, err := dem.NewSampler(dem.WithStride(10))
		assert.NoError(t, err)
		samples, err := sampler.Samples(t.Context(), grid)
		assert.NoError(t, err)
		assert.Equal(t, 0, len(samples))
	}
}

func TestNewSampler_InvalidStride(t *testing.T) {
	for _, stride := range []int{0, -1} {
		_, err := dem.NewSampler(dem.WithStride(stride))
		assert.IsError(t, err, dem.ErrInvalidStride)
	}
}

func TestSampler_Canceled(t *testing.T) {
	grid, err := dem.NewGrid(filledValues(2, 2, func(row, col int) float64 { return 0 }), dem.NewGeoTransform(0, 1, 0, -1))
	assert.NoError(t, err)
	sampler, err := dem.NewSampler()
	assert.NoError(t, err)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = sampler.Samples(ctx, grid)
	assert.True(t, errors.Is(err, context.Canceled))
}

type offsetReprojector struct{}

func (offsetReprojector) ToLonLat(x, y float64) (float64, float64, error) {
	return x / 1000, y / 1000, nil
}

func (offsetReprojector) FromLonLat(lon, lat float64) (float64, float64, error) {
	return lon * 1000, lat * 1000, nil
}

func TestSampler_Reprojector(t *testing.T) {
	grid, err := dem.NewGrid([][]float64{{7}}, dem.NewGeoTransform(500000, 30, 4000000, -30))
	assert.NoError(t, err)
	sampler, err := dem.NewSampler(dem.WithReprojector(offsetReprojector{}))
	assert.NoError(t, err)
	samples, err := sampler.Samples(t.Context(), grid)
	assert.NoError(t, err)
	assert.Equal(t, []dem.Sample{{Lat: 4000, Lon: 500, Elevation: 7}}, samples)
}
