package dem

import "github.com/rotisserie/eris"

var errSingularGeoTransform = eris.New("singular geotransform")

// A GeoTransform is an affine transform from pixel coordinates to model
// coordinates, in GDAL order: x origin, pixel width, row rotation, y origin,
// column rotation, pixel height.
type GeoTransform [6]float64

// NewGeoTransform returns a north-up GeoTransform.
func NewGeoTransform(xOrigin, pixelWidth, yOrigin, pixelHeight float64) GeoTransform {
	return GeoTransform{xOrigin, pixelWidth, 0, yOrigin, 0, pixelHeight}
}

// Apply returns the model coordinates of the top left corner of the pixel at
// (row, col). For geographic rasters x is the longitude and y is the
// latitude.
func (t GeoTransform) Apply(row, col float64) (x, y float64) {
	x = t[0] + col*t[1] + row*t[2]
	y = t[3] + col*t[4] + row*t[5]
	return x, y
}

// Invert returns the fractional pixel coordinates of (x, y).
func (t GeoTransform) Invert(x, y float64) (row, col float64, err error) {
	det := t[1]*t[5] - t[2]*t[4]
	if det == 0 {
		return 0, 0, errSingularGeoTransform
	}
	dx, dy := x-t[0], y-t[3]
	col = (dx*t[5] - dy*t[2]) / det
	row = (dy*t[1] - dx*t[4]) / det
	return row, col, nil
}

// Bounds returns the model bounding box of a raster with the given size.
func (t GeoTransform) Bounds(rows, cols int) Bounds {
	b := EmptyBounds()
	for _, corner := range [4][2]float64{
		{0, 0},
		{0, float64(cols)},
		{float64(rows), 0},
		{float64(rows), float64(cols)},
	} {
		x, y := t.Apply(corner[0], corner[1])
		b = b.Extend(x, y)
	}
	return b
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// EmptyBounds returns a Bounds that contains nothing.
func EmptyBounds() Bounds {
	return Bounds{MinX: inf, MinY: inf, MaxX: -inf, MaxY: -inf}
}

// Extend returns b extended to include (x, y).
func (b Bounds) Extend(x, y float64) Bounds {
	return Bounds{
		MinX: min(b.MinX, x),
		MinY: min(b.MinY, y),
		MaxX: max(b.MaxX, x),
		MaxY: max(b.MaxY, y),
	}
}

// Contains returns whether b contains (x, y). The maximum edges are
// exclusive so that adjacent tiles do not both claim a point.
func (b Bounds) Contains(x, y float64) bool {
	return b.MinX <= x && x < b.MaxX && b.MinY <= y && y < b.MaxY
}
