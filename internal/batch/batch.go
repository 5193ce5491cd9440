// Package batch runs sequential jobs over a directory of rasters. A file that
// cannot be read is logged and skipped; the rest of the batch continues.
package batch

import (
	"context"
	"io"
	"io/fs"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	dem "github.com/wgmilleriii/go-dem"
)

// A RasterCloser is a Raster that must be closed after use.
type RasterCloser interface {
	dem.Raster
	io.Closer
}

// An OpenFunc opens the raster name in fsys.
type OpenFunc func(fsys fs.FS, name string) (RasterCloser, error)

// A SkippedFile is a file that a job could not process.
type SkippedFile struct {
	Name string
	Err  error
}

// A Runner runs jobs over the rasters in a file system.
type Runner struct {
	fsys      fs.FS
	open      OpenFunc
	logger    *zap.Logger
	reproject bool
}

// An Option sets an option on a Runner.
type Option func(*Runner)

// NewRunner returns a new Runner over fsys. By default rasters are opened as
// GeoTIFFs.
func NewRunner(fsys fs.FS, options ...Option) *Runner {
	r := &Runner{
		fsys:   fsys,
		open:   openGeoTIFF(),
		logger: zap.L(),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// WithOpenFunc sets the function used to open rasters.
func WithOpenFunc(open OpenFunc) Option {
	return func(r *Runner) {
		r.open = open
	}
}

// WithGeoTIFFOptions opens rasters as GeoTIFFs with geoTIFFOptions.
func WithGeoTIFFOptions(geoTIFFOptions ...dem.GeoTIFFOption) Option {
	return func(r *Runner) {
		r.open = openGeoTIFF(geoTIFFOptions...)
	}
}

func openGeoTIFF(geoTIFFOptions ...dem.GeoTIFFOption) OpenFunc {
	return func(fsys fs.FS, name string) (RasterCloser, error) {
		geoTIFF, err := dem.OpenGeoTIFF(fsys, name, geoTIFFOptions...)
		if err != nil {
			return nil, err
		}
		return geoTIFF, nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithReproject converts sample locations of rasters in a known coordinate
// reference system other than WGS84 to WGS84.
func WithReproject(reproject bool) Option {
	return func(r *Runner) {
		r.reproject = reproject
	}
}

// Files returns names, or all rasters in r's file system if names is empty.
func (r *Runner) Files(names []string) ([]string, error) {
	if len(names) != 0 {
		return names, nil
	}
	return dem.ListRasters(r.fsys)
}

// An ExtractResult is the result of an extraction job.
type ExtractResult struct {
	Collection *dem.Collection
	Processed  []string
	Skipped    []SkippedFile
}

// Extract samples every raster in names, or every raster in r's file system if
// names is empty, into a single collection.
func (r *Runner) Extract(ctx context.Context, names []string, samplerOptions ...dem.SamplerOption) (*ExtractResult, error) {
	names, err := r.Files(names)
	if err != nil {
		return nil, err
	}
	if _, err := dem.NewSampler(samplerOptions...); err != nil {
		return nil, err
	}

	result := &ExtractResult{
		Collection: dem.NewCollection(),
	}
	for _, name := range names {
		log := r.logger.With(zap.String("file", name))
		log.Info("processing")
		samples, err := r.extractFile(ctx, name, samplerOptions)
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			log.Warn("skipping file", zap.Error(err))
			result.Skipped = append(result.Skipped, SkippedFile{Name: name, Err: err})
			continue
		}
		for _, sample := range samples {
			result.Collection.Add(sample)
		}
		result.Processed = append(result.Processed, name)
		log.Debug("processed", zap.Int("samples", len(samples)))
	}

	r.logger.Info("extract complete",
		zap.Int("files", len(result.Processed)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("samples", result.Collection.Len()),
	)
	return result, nil
}

// extractFile returns the samples of a single raster. The raster is closed
// before extractFile returns.
func (r *Runner) extractFile(ctx context.Context, name string, samplerOptions []dem.SamplerOption) ([]dem.Sample, error) {
	raster, err := r.open(r.fsys, name)
	if err != nil {
		return nil, err
	}
	defer raster.Close()

	if r.reproject {
		reprojector, err := dem.ReprojectorFor(raster)
		if err != nil {
			return nil, err
		}
		if reprojector != nil {
			samplerOptions = append(slices.Clip(samplerOptions), dem.WithReprojector(reprojector))
		}
	}
	sampler, err := dem.NewSampler(samplerOptions...)
	if err != nil {
		return nil, err
	}
	samples, err := sampler.Samples(ctx, raster)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: sample %s", name)
	}
	return samples, nil
}

// An AnalyzeResult is the result of a statistics job.
type AnalyzeResult struct {
	Stats   []*dem.Stats
	Skipped []SkippedFile
}

// Analyze computes statistics for every raster in names, or every raster in
// r's file system if names is empty. If f is not nil it is called with each
// file's statistics as soon as they are available.
func (r *Runner) Analyze(ctx context.Context, names []string, f func(*dem.Stats) error) (*AnalyzeResult, error) {
	names, err := r.Files(names)
	if err != nil {
		return nil, err
	}

	result := &AnalyzeResult{}
	for _, name := range names {
		log := r.logger.With(zap.String("file", name))
		stats, err := r.analyzeFile(ctx, name)
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			log.Warn("skipping file", zap.Error(err))
			result.Skipped = append(result.Skipped, SkippedFile{Name: name, Err: err})
			continue
		}
		result.Stats = append(result.Stats, stats)
		if f != nil {
			if err := f(stats); err != nil {
				return nil, err
			}
		}
	}
	return result, nil
}

func (r *Runner) analyzeFile(ctx context.Context, name string) (*dem.Stats, error) {
	raster, err := r.open(r.fsys, name)
	if err != nil {
		return nil, err
	}
	defer raster.Close()

	stats, err := dem.ComputeStats(ctx, raster)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: stats %s", name)
	}
	stats.Path = name
	return stats, nil
}
