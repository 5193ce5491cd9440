package dem

import (
	"context"
	"fmt"
	"io"
	"strconv"
)

// Stats are summary statistics of a raster.
type Stats struct {
	Path         string   `json:"path" yaml:"path"`
	TotalPixels  int      `json:"totalPixels" yaml:"total_pixels"`
	ValidPixels  int      `json:"validPixels" yaml:"valid_pixels"`
	NoDataPixels int      `json:"nodataPixels" yaml:"nodata_pixels"`
	PercentValid float64  `json:"percentValid" yaml:"percent_valid"`
	Min          *float64 `json:"min" yaml:"min"`
	Max          *float64 `json:"max" yaml:"max"`
	DataType     DataType `json:"-" yaml:"-"`
}

func rasterDataType(raster Raster) DataType {
	if typed, ok := raster.(DataTyper); ok {
		return typed.DataType()
	}
	return Float64
}

// ComputeStats scans every pixel of raster.
func ComputeStats(ctx context.Context, raster Raster) (*Stats, error) {
	rows, cols := raster.Size()
	noData, hasNoData := raster.NoData()
	stats := &Stats{
		TotalPixels: rows * cols,
		DataType:    rasterDataType(raster),
	}

	var minElevation, maxElevation float64
	rowValues := make([]float64, cols)
	for row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := raster.ReadRow(ctx, row, rowValues); err != nil {
			return nil, err
		}
		for _, value := range rowValues {
			if hasNoData && noData.Matches(value) {
				continue
			}
			if stats.ValidPixels == 0 {
				minElevation, maxElevation = value, value
			} else {
				minElevation = min(minElevation, value)
				maxElevation = max(maxElevation, value)
			}
			stats.ValidPixels++
		}
	}

	stats.NoDataPixels = stats.TotalPixels - stats.ValidPixels
	if stats.TotalPixels > 0 {
		stats.PercentValid = 100 * float64(stats.ValidPixels) / float64(stats.TotalPixels)
	}
	if stats.ValidPixels > 0 {
		stats.Min = &minElevation
		stats.Max = &maxElevation
	}
	return stats, nil
}

// WriteText writes s in the line-oriented console format.
func (s *Stats) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, ""+
		"File: %s\n"+
		"Total pixels: %d\n"+
		"Valid pixels: %d\n"+
		"Nodata pixels: %d\n"+
		"Percent valid: %.2f%%\n"+
		"Elevation range: %s to %s meters\n",
		s.Path,
		s.TotalPixels,
		s.ValidPixels,
		s.NoDataPixels,
		s.PercentValid,
		formatElevation(s.Min, s.DataType),
		formatElevation(s.Max, s.DataType),
	)
	return err
}

// formatElevation formats value with the shortest representation that
// round-trips through dataType.
func formatElevation(value *float64, dataType DataType) string {
	if value == nil {
		return "None"
	}
	bitSize := 64
	if dataType == Float32 {
		bitSize = 32
	}
	return strconv.FormatFloat(*value, 'f', -1, bitSize)
}
