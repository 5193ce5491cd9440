// Package demtest encodes small synthetic GeoTIFFs for tests.
package demtest

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"math"
	"testing"

	"github.com/alecthomas/assert/v2"
)

const (
	CompressionNone     = 1
	CompressionDeflate  = 8
	PredictorNone       = 1
	PredictorHorizontal = 2
)

const (
	tiffTypeASCII  = 2
	tiffTypeShort  = 3
	tiffTypeLong   = 4
	tiffTypeDouble = 12

	sampleFormatInt     = 2
	modelTypeGeographic = 2
	geoKeyGTModelType   = 1024
	geoKeyGTRasterType  = 1025
	geoKeyGeodeticCRS   = 2048
)

// Origin and PixelSize locate the encoded rasters: the top left corner is at
// lon -106, lat 35 and pixels are 0.1 degrees square.
const (
	OriginLon = -106
	OriginLat = 35
	PixelSize = 0.1
)

type tiffEntry struct {
	tag   uint16
	typ   uint16
	count int
	data  []byte
}

// GeoTIFFOptions control how EncodeGeoTIFF lays out a raster.
type GeoTIFFOptions struct {
	RowsPerStrip int
	Compression  int
	Predictor    int
	NoData       string
	PixelIsPoint bool
	// Bands is the number of samples per pixel. Bands after the first hold
	// the first band's values plus 100 times the band index.
	Bands       int
	Interleaved bool
}

// Values returns a 5x4 grid with a single nodata pixel, -9999 at row 2
// column 1. Every other pixel is 1000 + 10*row + col.
func Values() [][]int16 {
	values := make([][]int16, 5)
	for row := range values {
		values[row] = make([]int16, 4)
		for col := range values[row] {
			values[row][col] = int16(1000 + 10*row + col)
		}
	}
	values[2][1] = -9999
	return values
}

// EncodeGeoTIFF returns a little endian, stripped int16 GeoTIFF in WGS84
// with its top left corner at OriginLon, OriginLat.
func EncodeGeoTIFF(t testing.TB, values [][]int16, options GeoTIFFOptions) []byte {
	t.Helper()
	rows, cols := len(values), len(values[0])
	order := binary.LittleEndian
	if options.RowsPerStrip == 0 {
		options.RowsPerStrip = rows
	}
	if options.Compression == 0 {
		options.Compression = CompressionNone
	}
	if options.Predictor == 0 {
		options.Predictor = PredictorNone
	}

	bands := max(options.Bands, 1)
	planes := bands
	if options.Interleaved {
		planes = 1
	}

	var strips [][]byte
	for plane := range planes {
		for start := 0; start < rows; start += options.RowsPerStrip {
			strips = append(strips, encodeStrip(t, values, start, plane, options))
		}
	}

	short := func(vs ...uint16) []byte {
		var b []byte
		for _, v := range vs {
			b = order.AppendUint16(b, v)
		}
		return b
	}
	long := func(vs ...uint32) []byte {
		var b []byte
		for _, v := range vs {
			b = order.AppendUint32(b, v)
		}
		return b
	}
	double := func(vs ...float64) []byte {
		var b []byte
		for _, v := range vs {
			b = order.AppendUint64(b, math.Float64bits(v))
		}
		return b
	}
	repeat := func(v uint16) []uint16 {
		vs := make([]uint16, bands)
		for i := range vs {
			vs[i] = v
		}
		return vs
	}
	planarConfiguration := uint16(1)
	if bands > 1 && !options.Interleaved {
		planarConfiguration = 2
	}

	rasterType := uint16(1)
	tiepoint := []float64{0, 0, 0, OriginLon, OriginLat, 0}
	if options.PixelIsPoint {
		rasterType = 2
		tiepoint = []float64{0, 0, 0, OriginLon + PixelSize/2, OriginLat - PixelSize/2, 0}
	}

	stripByteCounts := make([]uint32, len(strips))
	for i, strip := range strips {
		stripByteCounts[i] = uint32(len(strip))
	}

	entries := []tiffEntry{
		{tag: 256, typ: tiffTypeLong, count: 1, data: long(uint32(cols))},
		{tag: 257, typ: tiffTypeLong, count: 1, data: long(uint32(rows))},
		{tag: 258, typ: tiffTypeShort, count: bands, data: short(repeat(16)...)},
		{tag: 259, typ: tiffTypeShort, count: 1, data: short(uint16(options.Compression))},
		{tag: 262, typ: tiffTypeShort, count: 1, data: short(1)},
		{tag: 273, typ: tiffTypeLong, count: len(strips)}, // filled in below
		{tag: 277, typ: tiffTypeShort, count: 1, data: short(uint16(bands))},
		{tag: 278, typ: tiffTypeLong, count: 1, data: long(uint32(options.RowsPerStrip))},
		{tag: 279, typ: tiffTypeLong, count: len(strips), data: long(stripByteCounts...)},
		{tag: 284, typ: tiffTypeShort, count: 1, data: short(planarConfiguration)},
		{tag: 317, typ: tiffTypeShort, count: 1, data: short(uint16(options.Predictor))},
		{tag: 339, typ: tiffTypeShort, count: bands, data: short(repeat(sampleFormatInt)...)},
		{tag: 33550, typ: tiffTypeDouble, count: 3, data: double(PixelSize, PixelSize, 0)},
		{tag: 33922, typ: tiffTypeDouble, count: 6, data: double(tiepoint...)},
		{tag: 34735, typ: tiffTypeShort, count: 16, data: short(
			1, 1, 0, 3,
			geoKeyGTModelType, 0, 1, modelTypeGeographic,
			geoKeyGTRasterType, 0, 1, rasterType,
			geoKeyGeodeticCRS, 0, 1, 4326,
		)},
	}
	if options.NoData != "" {
		noData := append([]byte(options.NoData), 0)
		entries = append(entries, tiffEntry{tag: 42113, typ: tiffTypeASCII, count: len(noData), data: noData})
	}

	// Lay out the header, the IFD, out of line values and then the strips.
	ifdOffset := 8
	dataOffset := ifdOffset + 2 + 12*len(entries) + 4
	align := func(n int) int { return n + n%2 }
	for i := range entries {
		if entries[i].tag == 273 {
			entries[i].data = make([]byte, 4*len(strips))
		}
		if len(entries[i].data) > 4 {
			dataOffset = align(dataOffset + len(entries[i].data))
		}
	}
	stripOffsets := make([]uint32, len(strips))
	for i, strip := range strips {
		stripOffsets[i] = uint32(dataOffset)
		dataOffset = align(dataOffset + len(strip))
	}
	for i := range entries {
		if entries[i].tag == 273 {
			entries[i].data = long(stripOffsets...)
		}
	}

	var buf bytes.Buffer
	buf.WriteString("II")
	buf.Write(short(42))
	buf.Write(long(uint32(ifdOffset)))
	buf.Write(short(uint16(len(entries))))
	var outOfLine [][]byte
	nextOffset := ifdOffset + 2 + 12*len(entries) + 4
	for _, entry := range entries {
		buf.Write(short(entry.tag, entry.typ))
		buf.Write(long(uint32(entry.count)))
		if len(entry.data) <= 4 {
			value := make([]byte, 4)
			copy(value, entry.data)
			buf.Write(value)
			continue
		}
		buf.Write(long(uint32(nextOffset)))
		outOfLine = append(outOfLine, entry.data)
		nextOffset = align(nextOffset + len(entry.data))
	}
	buf.Write(long(0))
	for _, data := range append(outOfLine, strips...) {
		buf.Write(data)
		if len(data)%2 == 1 {
			buf.WriteByte(0)
		}
	}
	return buf.Bytes()
}

// encodeStrip encodes the strip of band plane starting at row start.
func encodeStrip(t testing.TB, values [][]int16, start, plane int, options GeoTIFFOptions) []byte {
	t.Helper()
	order := binary.LittleEndian
	var raw []byte
	for row := start; row < min(start+options.RowsPerStrip, len(values)); row++ {
		prev := uint16(0)
		for col := range values[row] {
			v := uint16(values[row][col] + int16(100*plane))
			if options.Predictor == PredictorHorizontal && col > 0 {
				raw = order.AppendUint16(raw, v-prev)
			} else {
				raw = order.AppendUint16(raw, v)
			}
			prev = v
		}
	}
	if options.Compression == CompressionDeflate {
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		_, err := w.Write(raw)
		assert.NoError(t, err)
		assert.NoError(t, w.Close())
		raw = buf.Bytes()
	}
	return raw
}
