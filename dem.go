// Package dem reads digital elevation model rasters and turns them into
// elevation samples, summary statistics and point lookups.
package dem

import "context"

// A Raster is a grid of elevation values with an affine geotransform.
type Raster interface {
	// Size returns the number of rows and columns.
	Size() (rows, cols int)
	GeoTransform() GeoTransform
	// NoData returns the raster's nodata sentinel, if it declares one.
	NoData() (NoData, bool)
	// ReadRow reads row into dst, which must have at least cols elements.
	ReadRow(ctx context.Context, row int, dst []float64) error
}

// A DataTyper is a Raster that knows the type of its stored samples.
type DataTyper interface {
	DataType() DataType
}

// A PixelCoord is a pixel coordinate.
type PixelCoord struct {
	Row int
	Col int
}

// A Sample is an elevation at a geographic location.
type Sample struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Elevation float64 `json:"elevation"`
}

// A Point is a geographic location.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}
