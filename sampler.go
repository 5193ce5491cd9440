package dem

import (
	"context"

	"github.com/rotisserie/eris"
)

// ErrInvalidStride is returned when a stride is less than one.
var ErrInvalidStride = eris.New("stride must be at least 1")

// A Sampler extracts elevation samples from a raster at a fixed row and column
// stride.
type Sampler struct {
	stride         int
	pixelCenter    bool
	noDataOverride *float64
	reprojector    Reprojector
}

// A SamplerOption sets an option on a Sampler.
type SamplerOption func(*Sampler)

// NewSampler returns a new Sampler. The default stride is 1.
func NewSampler(options ...SamplerOption) (*Sampler, error) {
	s := &Sampler{
		stride: 1,
	}
	for _, option := range options {
		option(s)
	}
	if s.stride < 1 {
		return nil, ErrInvalidStride
	}
	return s, nil
}

// WithStride sets the row and column step.
func WithStride(stride int) SamplerOption {
	return func(s *Sampler) {
		s.stride = stride
	}
}

// WithPixelCenter makes the Sampler locate samples at pixel centers instead of
// their top left corners.
func WithPixelCenter() SamplerOption {
	return func(s *Sampler) {
		s.pixelCenter = true
	}
}

// WithNoDataOverride replaces the raster's declared nodata sentinel with
// value.
func WithNoDataOverride(value float64) SamplerOption {
	return func(s *Sampler) {
		s.noDataOverride = &value
	}
}

// WithReprojector converts model coordinates to WGS84 with reprojector.
func WithReprojector(reprojector Reprojector) SamplerOption {
	return func(s *Sampler) {
		s.reprojector = reprojector
	}
}

// Stride returns s's stride.
func (s *Sampler) Stride() int {
	return s.stride
}

// noData returns the sentinel that s uses for raster.
func (s *Sampler) noData(raster Raster) (NoData, bool) {
	if s.noDataOverride != nil {
		return NewNoData(*s.noDataOverride, rasterDataType(raster)), true
	}
	return raster.NoData()
}

// Sample calls f for every sampled pixel of raster that is not nodata, in
// row-major order. If f returns an error then sampling stops and the error is
// returned.
func (s *Sampler) Sample(ctx context.Context, raster Raster, f func(Sample) error) error {
	rows, cols := raster.Size()
	if rows == 0 || cols == 0 {
		return nil
	}
	noData, hasNoData := s.noData(raster)
	geoTransform := raster.GeoTransform()
	offset := 0.0
	if s.pixelCenter {
		offset = 0.5
	}

	rowValues := make([]float64, cols)
	for row := 0; row < rows; row += s.stride {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := raster.ReadRow(ctx, row, rowValues); err != nil {
			return err
		}
		for col := 0; col < cols; col += s.stride {
			value := rowValues[col]
			if hasNoData && noData.Matches(value) {
				continue
			}
			lon, lat := geoTransform.Apply(float64(row)+offset, float64(col)+offset)
			if s.reprojector != nil {
				var err error
				if lon, lat, err = s.reprojector.ToLonLat(lon, lat); err != nil {
					return err
				}
			}
			if err := f(Sample{Lat: lat, Lon: lon, Elevation: value}); err != nil {
				return err
			}
		}
	}
	return nil
}

// Samples returns all samples of raster.
func (s *Sampler) Samples(ctx context.Context, raster Raster) ([]Sample, error) {
	var samples []Sample
	if err := s.Sample(ctx, raster, func(sample Sample) error {
		samples = append(samples, sample)
		return nil
	}); err != nil {
		return nil, err
	}
	return samples, nil
}
