package dem

import (
	"context"

	"github.com/rotisserie/eris"
)

// A Grid is an in-memory Raster.
type Grid struct {
	rows         int
	cols         int
	values       []float64
	geoTransform GeoTransform
	dataType     DataType
	noData       NoData
	hasNoData    bool
}

// NewGrid returns a new Grid from row-major values. All rows must have the
// same length.
func NewGrid(values [][]float64, geoTransform GeoTransform) (*Grid, error) {
	g := &Grid{
		rows:         len(values),
		geoTransform: geoTransform,
	}
	if g.rows > 0 {
		g.cols = len(values[0])
	}
	g.values = make([]float64, 0, g.rows*g.cols)
	for row, rowValues := range values {
		if len(rowValues) != g.cols {
			return nil, eris.Errorf("grid: row %d has %d values, expected %d", row, len(rowValues), g.cols)
		}
		g.values = append(g.values, rowValues...)
	}
	if g.cols == 0 {
		g.rows = 0
	}
	return g, nil
}

// WithNoData sets g's nodata sentinel and returns g.
func (g *Grid) WithNoData(noData NoData) *Grid {
	g.noData = noData
	g.hasNoData = true
	return g
}

// WithDataType sets the type that g's values are reported as and returns g.
// The values themselves are not converted.
func (g *Grid) WithDataType(dataType DataType) *Grid {
	g.dataType = dataType
	return g
}

func (g *Grid) DataType() DataType {
	return g.dataType
}

func (g *Grid) Size() (int, int) {
	return g.rows, g.cols
}

func (g *Grid) GeoTransform() GeoTransform {
	return g.geoTransform
}

func (g *Grid) NoData() (NoData, bool) {
	return g.noData, g.hasNoData
}

func (g *Grid) ReadRow(ctx context.Context, row int, dst []float64) error {
	if row < 0 || row >= g.rows {
		return eris.Errorf("grid: row %d out of range", row)
	}
	copy(dst[:g.cols], g.values[row*g.cols:(row+1)*g.cols])
	return nil
}

// Sample returns the value of the pixel at coord.
func (g *Grid) Sample(ctx context.Context, coord PixelCoord) (float64, error) {
	if coord.Row < 0 || coord.Row >= g.rows || coord.Col < 0 || coord.Col >= g.cols {
		return 0, eris.Errorf("grid: pixel %d,%d out of range", coord.Row, coord.Col)
	}
	return g.values[coord.Row*g.cols+coord.Col], nil
}
