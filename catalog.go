package dem

import (
	"context"
	"io/fs"
	"math"
	"path"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rotisserie/eris"
)

var (
	rasterCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dem_catalog_raster_cache_hits_total",
		Help: "The total number of hits on the open raster cache",
	})
	rasterCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dem_catalog_raster_cache_misses_total",
		Help: "The total number of misses on the open raster cache",
	})
	rasterCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dem_catalog_raster_cache_evictions_total",
		Help: "The total number of evictions from the open raster cache",
	})
	lookups = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dem_catalog_lookups_total",
		Help: "The total number of elevation lookups",
	})
	lookupsOutsideCoverage = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dem_catalog_lookups_outside_coverage_total",
		Help: "The total number of elevation lookups outside every raster",
	})
)

// IsRasterFilename returns whether filename looks like a GeoTIFF.
func IsRasterFilename(filename string) bool {
	switch strings.ToLower(path.Ext(filename)) {
	case ".tif", ".tiff":
		return true
	default:
		return false
	}
}

// ListRasters returns the names of the GeoTIFFs in the root of fsys, sorted.
func ListRasters(fsys fs.FS) ([]string, error) {
	dirEntries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, eris.Wrap(err, "list rasters")
	}
	var names []string
	for _, dirEntry := range dirEntries {
		if dirEntry.Type().IsRegular() && IsRasterFilename(dirEntry.Name()) {
			names = append(names, dirEntry.Name())
		}
	}
	return names, nil
}

// A CatalogEntry describes one raster in a Catalog.
type CatalogEntry struct {
	Name   string `json:"name"`
	Rows   int    `json:"rows"`
	Cols   int    `json:"cols"`
	Bounds Bounds `json:"bounds"`
}

type catalogRaster struct {
	geoTIFF     *GeoTIFF
	reprojector Reprojector
}

// A Catalog answers elevation queries from a directory of GeoTIFFs. It is safe
// for concurrent use.
type Catalog struct {
	mutex          sync.RWMutex
	fsys           fs.FS
	entries        []CatalogEntry
	skipped        map[string]error
	geoTIFFOptions []GeoTIFFOption
	cacheSize      int
	interpolate    bool
	rasterCache    *lru.Cache[string, *catalogRaster]
}

// A CatalogOption sets an option on a Catalog.
type CatalogOption func(*Catalog)

// NewCatalog returns a new Catalog of the GeoTIFFs in the root of fsys. Files
// that cannot be opened are skipped and reported by Skipped.
func NewCatalog(ctx context.Context, fsys fs.FS, options ...CatalogOption) (*Catalog, error) {
	c := &Catalog{
		fsys:      fsys,
		skipped:   make(map[string]error),
		cacheSize: 32,
	}
	for _, option := range options {
		option(c)
	}

	var err error
	c.rasterCache, err = lru.NewWithEvict(c.cacheSize, func(key string, value *catalogRaster) {
		_ = value.geoTIFF.Close()
		rasterCacheEvictions.Inc()
	})
	if err != nil {
		return nil, eris.Wrap(err, "catalog: create cache")
	}

	names, err := ListRasters(fsys)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, err := c.index(name)
		if err != nil {
			c.skipped[name] = err
			continue
		}
		c.entries = append(c.entries, entry)
	}
	return c, nil
}

// WithCatalogCacheSize sets the number of rasters that are kept open.
func WithCatalogCacheSize(cacheSize int) CatalogOption {
	return func(c *Catalog) {
		c.cacheSize = cacheSize
	}
}

// WithCatalogGeoTIFFOptions sets the options used to open rasters.
func WithCatalogGeoTIFFOptions(geoTIFFOptions ...GeoTIFFOption) CatalogOption {
	return func(c *Catalog) {
		c.geoTIFFOptions = geoTIFFOptions
	}
}

// WithInterpolation enables bilinear interpolation.
func WithInterpolation() CatalogOption {
	return func(c *Catalog) {
		c.interpolate = true
	}
}

// Entries returns the rasters in c.
func (c *Catalog) Entries() []CatalogEntry {
	return c.entries
}

// Skipped returns the files that could not be indexed and why.
func (c *Catalog) Skipped() map[string]error {
	return c.skipped
}

// Close closes all open rasters.
func (c *Catalog) Close() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.rasterCache.Purge()
}

// index returns the CatalogEntry for the raster name.
func (c *Catalog) index(name string) (CatalogEntry, error) {
	raster, err := c.openRaster(name)
	if err != nil {
		return CatalogEntry{}, err
	}
	defer raster.geoTIFF.Close()

	rows, cols := raster.geoTIFF.Size()
	entry := CatalogEntry{
		Name:   name,
		Rows:   rows,
		Cols:   cols,
		Bounds: EmptyBounds(),
	}
	modelBounds := raster.geoTIFF.GeoTransform().Bounds(rows, cols)
	for _, corner := range [][2]float64{
		{modelBounds.MinX, modelBounds.MinY},
		{modelBounds.MinX, modelBounds.MaxY},
		{modelBounds.MaxX, modelBounds.MinY},
		{modelBounds.MaxX, modelBounds.MaxY},
	} {
		lon, lat := corner[0], corner[1]
		if raster.reprojector != nil {
			if lon, lat, err = raster.reprojector.ToLonLat(lon, lat); err != nil {
				return CatalogEntry{}, err
			}
		}
		entry.Bounds = entry.Bounds.Extend(lon, lat)
	}
	return entry, nil
}

func (c *Catalog) openRaster(name string) (*catalogRaster, error) {
	geoTIFF, err := OpenGeoTIFF(c.fsys, name, c.geoTIFFOptions...)
	if err != nil {
		return nil, err
	}
	reprojector, err := ReprojectorFor(geoTIFF)
	if err != nil {
		_ = geoTIFF.Close()
		return nil, err
	}
	return &catalogRaster{
		geoTIFF:     geoTIFF,
		reprojector: reprojector,
	}, nil
}

// Elevation returns the elevation at point, or NaN if there is no data there.
func (c *Catalog) Elevation(ctx context.Context, point Point) (float64, error) {
	elevations, err := c.Elevations(ctx, []Point{point})
	if err != nil {
		return 0, err
	}
	return elevations[0], nil
}

// Elevations returns the elevations at points. Missing elevations are NaN.
func (c *Catalog) Elevations(ctx context.Context, points []Point) ([]float64, error) {
	lookups.Add(float64(len(points)))
	elevations := make([]float64, len(points))

	// Group indexes by raster.
	indexesByName := make(map[string][]int)
	for index, point := range points {
		entry, ok := c.find(point)
		if !ok {
			lookupsOutsideCoverage.Inc()
			elevations[index] = math.NaN()
			continue
		}
		indexesByName[entry.Name] = append(indexesByName[entry.Name], index)
	}

	// Populate elevations one raster at a time.
	for name, indexes := range indexesByName {
		if err := c.withRaster(name, func(raster *catalogRaster) error {
			coords := make([]FractionalPixelCoord, len(indexes))
			for i, index := range indexes {
				x, y := points[index].Lon, points[index].Lat
				if raster.reprojector != nil {
					var err error
					if x, y, err = raster.reprojector.FromLonLat(x, y); err != nil {
						return err
					}
				}
				row, col, err := raster.geoTIFF.GeoTransform().Invert(x, y)
				if err != nil {
					return err
				}
				coords[i] = FractionalPixelCoord{Row: row, Col: col}
			}
			interpolate := InterpolateNearest
			if c.interpolate {
				interpolate = InterpolateBilinear
			}
			values, err := interpolate(ctx, raster.geoTIFF, coords)
			if err != nil {
				return err
			}
			for i, index := range indexes {
				elevations[index] = values[i]
			}
			return nil
		}); err != nil {
			return nil, err
		}
	}

	return elevations, nil
}

// find returns the first entry containing point.
func (c *Catalog) find(point Point) (CatalogEntry, bool) {
	for _, entry := range c.entries {
		if entry.Bounds.Contains(point.Lon, point.Lat) {
			return entry, true
		}
	}
	return CatalogEntry{}, false
}

// withRaster calls f with the open raster name. The raster is not closed
// while f runs.
func (c *Catalog) withRaster(name string, f func(*catalogRaster) error) error {
	for {
		c.mutex.RLock()
		if raster, ok := c.rasterCache.Get(name); ok {
			rasterCacheHits.Inc()
			err := f(raster)
			c.mutex.RUnlock()
			return err
		}
		c.mutex.RUnlock()

		if err := c.loadRaster(name); err != nil {
			return err
		}
	}
}

// loadRaster opens the raster name and adds it to the cache.
func (c *Catalog) loadRaster(name string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.rasterCache.Contains(name) {
		return nil
	}

	rasterCacheMisses.Inc()

	raster, err := c.openRaster(name)
	if err != nil {
		return err
	}
	c.rasterCache.Add(name, raster)
	return nil
}
