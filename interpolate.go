package dem

import (
	"context"
	"math"
)

// A PixelRaster is a Raster that can read individual pixels.
type PixelRaster interface {
	Raster
	Sample(ctx context.Context, coord PixelCoord) (float64, error)
}

// A FractionalPixelCoord is a position within a raster in pixel units. Pixel
// (row, col) covers [row, row+1) x [col, col+1).
type FractionalPixelCoord struct {
	Row float64
	Col float64
}

// samplePixels returns the values at coords with nodata and out of range
// pixels replaced by NaN.
func samplePixels(ctx context.Context, raster PixelRaster, coords []PixelCoord) ([]float64, error) {
	rows, cols := raster.Size()
	noData, hasNoData := raster.NoData()
	samples := make([]float64, len(coords))
	for i, coord := range coords {
		if coord.Row < 0 || coord.Row >= rows || coord.Col < 0 || coord.Col >= cols {
			samples[i] = math.NaN()
			continue
		}
		sample, err := raster.Sample(ctx, coord)
		if err != nil {
			return nil, err
		}
		if hasNoData && noData.Matches(sample) {
			sample = math.NaN()
		}
		samples[i] = sample
	}
	return samples, nil
}

// InterpolateNearest returns the values of the pixels containing coords.
// Missing values are NaN.
func InterpolateNearest(ctx context.Context, raster PixelRaster, coords []FractionalPixelCoord) ([]float64, error) {
	pixelCoords := make([]PixelCoord, len(coords))
	for i, coord := range coords {
		pixelCoords[i] = PixelCoord{
			Row: int(math.Floor(coord.Row)),
			Col: int(math.Floor(coord.Col)),
		}
	}
	return samplePixels(ctx, raster, pixelCoords)
}

// InterpolateBilinear returns the values at coords interpolated between the
// four nearest pixel centers. Coordinates within half a pixel of the edge use
// the edge pixels. If any of the four pixels is missing the result is NaN.
func InterpolateBilinear(ctx context.Context, raster PixelRaster, coords []FractionalPixelCoord) ([]float64, error) {
	rows, cols := raster.Size()
	pixelCoords := make([]PixelCoord, 4*len(coords))
	weights := make([][2]float64, len(coords))
	for i, coord := range coords {
		// Shift so that pixel centers are at integer coordinates.
		y, x := coord.Row-0.5, coord.Col-0.5
		if coord.Row >= 0 && coord.Row < float64(rows) {
			y = min(max(y, 0), float64(rows-1))
		}
		if coord.Col >= 0 && coord.Col < float64(cols) {
			x = min(max(x, 0), float64(cols-1))
		}
		r0, c0 := int(math.Floor(y)), int(math.Floor(x))
		r1, c1 := min(r0+1, rows-1), min(c0+1, cols-1)
		pixelCoords[4*i+0] = PixelCoord{Row: r0, Col: c0}
		pixelCoords[4*i+1] = PixelCoord{Row: r0, Col: c1}
		pixelCoords[4*i+2] = PixelCoord{Row: r1, Col: c0}
		pixelCoords[4*i+3] = PixelCoord{Row: r1, Col: c1}
		weights[i] = [2]float64{y - float64(r0), x - float64(c0)}
	}
	samples, err := samplePixels(ctx, raster, pixelCoords)
	if err != nil {
		return nil, err
	}
	result := make([]float64, len(coords))
	for i := range coords {
		dy, dx := weights[i][0], weights[i][1]
		result[i] = 0 +
			samples[4*i+0]*(1-dx)*(1-dy) +
			samples[4*i+1]*dx*(1-dy) +
			samples[4*i+2]*(1-dx)*dy +
			samples[4*i+3]*dx*dy
	}
	return result, nil
}
