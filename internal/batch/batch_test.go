package batch

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/alecthomas/assert/v2"
	"go.uber.org/zap"

	dem "github.com/wgmilleriii/go-dem"
)

type testRaster struct {
	*dem.Grid
	closed *int
}

func (r testRaster) Close() error {
	*r.closed++
	return nil
}

var errCorrupt = errors.New("corrupt raster")

// testOpenFunc opens rasters from grids, and fails for names not in grids.
func testOpenFunc(grids map[string]*dem.Grid, closed *int) OpenFunc {
	return func(fsys fs.FS, name string) (RasterCloser, error) {
		grid, ok := grids[name]
		if !ok {
			return nil, errCorrupt
		}
		return testRaster{Grid: grid, closed: closed}, nil
	}
}

func newTestGrid(t *testing.T, lon0, elevation float64) *dem.Grid {
	t.Helper()
	values := make([][]float64, 4)
	for row := range values {
		values[row] = []float64{elevation, elevation, elevation, -9999}
	}
	grid, err := dem.NewGrid(values, dem.NewGeoTransform(lon0, 1, 35, -1))
	assert.NoError(t, err)
	return grid.WithNoData(dem.NewNoData(-9999, dem.Float32))
}

func newTestRunner(t *testing.T, closed *int) *Runner {
	t.Helper()
	fsys := fstest.MapFS{
		"a.tif":      &fstest.MapFile{},
		"b.tif":      &fstest.MapFile{},
		"broken.tif": &fstest.MapFile{},
		"notes.txt":  &fstest.MapFile{},
	}
	grids := map[string]*dem.Grid{
		"a.tif": newTestGrid(t, -107, 1500),
		"b.tif": newTestGrid(t, -106, 1600),
	}
	return NewRunner(fsys,
		WithOpenFunc(testOpenFunc(grids, closed)),
		WithLogger(zap.NewNop()),
	)
}

func TestRunner_Files(t *testing.T) {
	runner := newTestRunner(t, new(int))

	names, err := runner.Files(nil)
	assert.NoError(t, err)
	assert.Equal(t, []string{"a.tif", "b.tif", "broken.tif"}, names)

	names, err = runner.Files([]string{"b.tif"})
	assert.NoError(t, err)
	assert.Equal(t, []string{"b.tif"}, names)
}

func TestRunner_Extract(t *testing.T) {
	closed := 0
	runner := newTestRunner(t, &closed)

	result, err := runner.Extract(t.Context(), nil, dem.WithStride(2))
	assert.NoError(t, err)
	assert.Equal(t, []string{"a.tif", "b.tif"}, result.Processed)
	assert.Equal(t, 1, len(result.Skipped))
	assert.Equal(t, "broken.tif", result.Skipped[0].Name)
	assert.IsError(t, result.Skipped[0].Err, errCorrupt)
	assert.Equal(t, 2, closed)

	// Rows 0 and 2, columns 0 and 2 of each grid; column 3 is nodata.
	samples := result.Collection.Samples()
	assert.Equal(t, 8, len(samples))
	assert.Equal(t, dem.Sample{Lat: 35, Lon: -107, Elevation: 1500}, samples[0])
	assert.Equal(t, dem.Sample{Lat: 35, Lon: -106, Elevation: 1600}, samples[4])
	for _, sample := range samples {
		assert.NotEqual(t, -9999.0, sample.Elevation)
	}
}

func TestRunner_ExtractInvalidStride(t *testing.T) {
	closed := 0
	runner := newTestRunner(t, &closed)
	_, err := runner.Extract(t.Context(), nil, dem.WithStride(0))
	assert.IsError(t, err, dem.ErrInvalidStride)
	assert.Equal(t, 0, closed)
}

func TestRunner_ExtractCanceled(t *testing.T) {
	runner := newTestRunner(t, new(int))
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := runner.Extract(ctx, nil)
	assert.IsError(t, err, context.Canceled)
}

func TestRunner_Analyze(t *testing.T) {
	closed := 0
	runner := newTestRunner(t, &closed)

	var seen []string
	result, err := runner.Analyze(t.Context(), nil, func(stats *dem.Stats) error {
		seen = append(seen, stats.Path)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"a.tif", "b.tif"}, seen)
	assert.Equal(t, 1, len(result.Skipped))
	assert.Equal(t, 2, closed)

	stats := result.Stats[1]
	assert.Equal(t, 16, stats.TotalPixels)
	assert.Equal(t, 12, stats.ValidPixels)
	assert.Equal(t, 4, stats.NoDataPixels)
	assert.Equal(t, 75.0, stats.PercentValid)
	assert.Equal(t, 1600.0, *stats.Min)
	assert.Equal(t, 1600.0, *stats.Max)
}

func TestRunner_AnalyzeCallbackError(t *testing.T) {
	runner := newTestRunner(t, new(int))
	errStop := errors.New("stop")
	_, err := runner.Analyze(t.Context(), []string{"a.tif"}, func(*dem.Stats) error {
		return errStop
	})
	assert.IsError(t, err, errStop)
}
