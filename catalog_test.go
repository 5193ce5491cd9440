package dem

import (
	"math"
	"testing"
	"testing/fstest"

	"github.com/alecthomas/assert/v2"

	"github.com/wgmilleriii/go-dem/internal/demtest"
)

func newTestCatalog(t *testing.T, options ...CatalogOption) *Catalog {
	t.Helper()
	fsys := fstest.MapFS{
		"a.tif": &fstest.MapFile{Data: demtest.EncodeGeoTIFF(t, demtest.Values(), demtest.GeoTIFFOptions{
			RowsPerStrip: 2,
			Compression:  demtest.CompressionDeflate,
			Predictor:    demtest.PredictorHorizontal,
			NoData:       "-9999",
		})},
		"bad.tif":    &fstest.MapFile{Data: []byte("not a tiff")},
		"readme.txt": &fstest.MapFile{Data: []byte("not a raster")},
	}
	catalog, err := NewCatalog(t.Context(), fsys, options...)
	assert.NoError(t, err)
	t.Cleanup(catalog.Close)
	return catalog
}

func TestIsRasterFilename(t *testing.T) {
	assert.True(t, IsRasterFilename("a.tif"))
	assert.True(t, IsRasterFilename("USGS_13_n36w107.TIFF"))
	assert.False(t, IsRasterFilename("elevation_cache.json"))
	assert.False(t, IsRasterFilename("tif"))
}

func TestListRasters(t *testing.T) {
	fsys := fstest.MapFS{
		"b.tif":       &fstest.MapFile{},
		"a.tiff":      &fstest.MapFile{},
		"c.json":      &fstest.MapFile{},
		"dir.tif/x":   &fstest.MapFile{},
		"sub/d.tif":   &fstest.MapFile{},
		"notes.txt":   &fstest.MapFile{},
		"upper.TIF":   &fstest.MapFile{},
		"zzz_last.tf": &fstest.MapFile{},
	}
	names, err := ListRasters(fsys)
	assert.NoError(t, err)
	assert.Equal(t, []string{"a.tiff", "b.tif", "upper.TIF"}, names)
}

func TestCatalog(t *testing.T) {
	catalog := newTestCatalog(t)

	assert.Equal(t, []CatalogEntry{
		{
			Name:   "a.tif",
			Rows:   5,
			Cols:   4,
			Bounds: GeoTransform{-106, 0.1, 0, 35, 0, -0.1}.Bounds(5, 4),
		},
	}, catalog.Entries())
	skipped := catalog.Skipped()
	assert.Equal(t, 1, len(skipped))
	assert.Error(t, skipped["bad.tif"])

	elevations, err := catalog.Elevations(t.Context(), []Point{
		{Lat: 34.95, Lon: -105.95},
		{Lat: 34.55, Lon: -105.65},
		{Lat: 34.75, Lon: -105.85},
		{Lat: 40, Lon: -100},
	})
	assert.NoError(t, err)
	assert.Equal(t, 1000.0, elevations[0])
	assert.Equal(t, 1043.0, elevations[1])
	assert.True(t, math.IsNaN(elevations[2]))
	assert.True(t, math.IsNaN(elevations[3]))

	elevation, err := catalog.Elevation(t.Context(), Point{Lat: 34.85, Lon: -105.75})
	assert.NoError(t, err)
	assert.Equal(t, 1012.0, elevation)
}

func TestCatalog_Interpolation(t *testing.T) {
	catalog := newTestCatalog(t, WithInterpolation(), WithCatalogCacheSize(1))

	elevation, err := catalog.Elevation(t.Context(), Point{Lat: 34.95, Lon: -105.6500001})
	assert.NoError(t, err)
	assert.True(t, math.Abs(elevation-1003) < 1e-3)

	elevation, err = catalog.Elevation(t.Context(), Point{Lat: 34.9, Lon: -105.8})
	assert.NoError(t, err)
	assert.True(t, math.Abs(elevation-1006.5) < 1e-6)
}
