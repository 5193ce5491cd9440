package dem

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

var inf = math.Inf(1)

// A DataType is the numeric representation of a raster's samples.
type DataType int

const (
	Float64 DataType = iota
	Float32
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
)

var dataTypeNames = map[DataType]string{
	Float64: "float64",
	Float32: "float32",
	Int8:    "int8",
	Uint8:   "uint8",
	Int16:   "int16",
	Uint16:  "uint16",
	Int32:   "int32",
	Uint32:  "uint32",
}

func (t DataType) String() string {
	if name, ok := dataTypeNames[t]; ok {
		return name
	}
	return "DataType(" + strconv.Itoa(int(t)) + ")"
}

// Convert returns v converted to t and back to a float64, i.e. the value
// that a pixel of type t would hold if v were stored in it. The result is
// only meaningful if t.Holds(v).
func (t DataType) Convert(v float64) float64 {
	switch t {
	case Float32:
		return float64(float32(v))
	case Int8:
		return float64(int8(v))
	case Uint8:
		return float64(uint8(v))
	case Int16:
		return float64(int16(v))
	case Uint16:
		return float64(uint16(v))
	case Int32:
		return float64(int32(v))
	case Uint32:
		return float64(uint32(v))
	default:
		return v
	}
}

var integerRanges = map[DataType][2]float64{
	Int8:   {math.MinInt8, math.MaxInt8},
	Uint8:  {0, math.MaxUint8},
	Int16:  {math.MinInt16, math.MaxInt16},
	Uint16: {0, math.MaxUint16},
	Int32:  {math.MinInt32, math.MaxInt32},
	Uint32: {0, math.MaxUint32},
}

// Holds returns whether a pixel of type t can hold v exactly or, for floating
// point types, after rounding.
func (t DataType) Holds(v float64) bool {
	if r, ok := integerRanges[t]; ok {
		return v == math.Trunc(v) && r[0] <= v && v <= r[1]
	}
	if t == Float32 {
		return math.IsInf(v, 0) || !math.IsInf(float64(float32(v)), 0)
	}
	return true
}

// A NoData is a nodata sentinel held in the raster's own representation.
type NoData struct {
	value float64
	nan   bool
	never bool
}

// NewNoData returns a NoData for v as stored in a raster of type t. If no
// pixel of type t can hold v then the NoData matches nothing.
func NewNoData(v float64, t DataType) NoData {
	if math.IsNaN(v) {
		return NoData{value: math.NaN(), nan: true}
	}
	if !t.Holds(v) {
		return NoData{value: v, never: true}
	}
	return NoData{value: t.Convert(v)}
}

// ParseNoData parses a GDAL_NODATA string for a raster of type t.
func ParseNoData(s string, t DataType) (NoData, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "\x00")
	if strings.EqualFold(s, "nan") {
		return NoData{value: math.NaN(), nan: true}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return NoData{}, eris.Wrapf(err, "nodata: parse %q", s)
	}
	return NewNoData(v, t), nil
}

// Value returns the sentinel value. If the sentinel cannot be held by the
// raster then Value returns it unconverted.
func (n NoData) Value() float64 {
	return n.value
}

// Matches returns whether v is the sentinel.
func (n NoData) Matches(v float64) bool {
	switch {
	case n.never:
		return false
	case n.nan:
		return math.IsNaN(v)
	}
	return v == n.value
}
