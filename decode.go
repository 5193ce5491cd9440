package dem

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"math"

	"github.com/rotisserie/eris"
	"golang.org/x/image/tiff/lzw"
)

// decompress returns the first n bytes of compressedData decompressed.
func decompress(compression int, compressedData []byte, n int) ([]byte, error) {
	var r io.Reader
	switch compression {
	case compressionNone:
		if len(compressedData) < n {
			return nil, errShortRead
		}
		return compressedData[:n], nil
	case compressionLZW:
		lzwReader := lzw.NewReader(bytes.NewReader(compressedData), lzw.MSB, 8)
		defer lzwReader.Close()
		r = lzwReader
	case compressionDeflate, compressionDeflateOld:
		zlibReader, err := zlib.NewReader(bytes.NewReader(compressedData))
		if err != nil {
			return nil, err
		}
		defer zlibReader.Close()
		r = zlibReader
	default:
		return nil, eris.Errorf("unknown compression %d", compression)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

// undoHorizontalPredictor reverses TIFF predictor 2 in place. Each row of
// width samples stores differences from the previous sample.
func undoHorizontalPredictor(data []byte, width, bytesPerSample int, byteOrder binary.ByteOrder) {
	rowBytes := width * bytesPerSample
	if rowBytes == 0 {
		return
	}
	for rowStart := 0; rowStart+rowBytes <= len(data); rowStart += rowBytes {
		row := data[rowStart : rowStart+rowBytes]
		for i := bytesPerSample; i < rowBytes; i += bytesPerSample {
			prev, cur := row[i-bytesPerSample:i], row[i:i+bytesPerSample]
			switch bytesPerSample {
			case 1:
				cur[0] += prev[0]
			case 2:
				byteOrder.PutUint16(cur, byteOrder.Uint16(cur)+byteOrder.Uint16(prev))
			case 4:
				byteOrder.PutUint32(cur, byteOrder.Uint32(cur)+byteOrder.Uint32(prev))
			case 8:
				byteOrder.PutUint64(cur, byteOrder.Uint64(cur)+byteOrder.Uint64(prev))
			}
		}
	}
}

// undoFloatingPointPredictor reverses TIFF predictor 3 and returns the samples
// in little endian order. Each row stores byte-wise differences of the
// samples' bytes, most significant bytes first.
func undoFloatingPointPredictor(data []byte, width, bytesPerSample int) []byte {
	rowBytes := width * bytesPerSample
	result := make([]byte, len(data))
	if rowBytes == 0 {
		return result
	}
	for rowStart := 0; rowStart+rowBytes <= len(data); rowStart += rowBytes {
		row := data[rowStart : rowStart+rowBytes]
		for i := 1; i < rowBytes; i++ {
			row[i] += row[i-1]
		}
		out := result[rowStart : rowStart+rowBytes]
		for k := range width {
			for b := range bytesPerSample {
				out[k*bytesPerSample+b] = row[(bytesPerSample-b-1)*width+k]
			}
		}
	}
	return result
}

// decodeSamples decodes data into dst.
func decodeSamples(dst []float64, data []byte, dataType DataType, byteOrder binary.ByteOrder) {
	switch dataType {
	case Uint8:
		for i := range min(len(dst), len(data)) {
			dst[i] = float64(data[i])
		}
	case Int8:
		for i := range min(len(dst), len(data)) {
			dst[i] = float64(int8(data[i]))
		}
	case Uint16:
		for i := range min(len(dst), len(data)/2) {
			dst[i] = float64(byteOrder.Uint16(data[2*i:]))
		}
	case Int16:
		for i := range min(len(dst), len(data)/2) {
			dst[i] = float64(int16(byteOrder.Uint16(data[2*i:])))
		}
	case Uint32:
		for i := range min(len(dst), len(data)/4) {
			dst[i] = float64(byteOrder.Uint32(data[4*i:]))
		}
	case Int32:
		for i := range min(len(dst), len(data)/4) {
			dst[i] = float64(int32(byteOrder.Uint32(data[4*i:])))
		}
	case Float32:
		for i := range min(len(dst), len(data)/4) {
			dst[i] = float64(math.Float32frombits(byteOrder.Uint32(data[4*i:])))
		}
	case Float64:
		for i := range min(len(dst), len(data)/8) {
			dst[i] = math.Float64frombits(byteOrder.Uint64(data[8*i:]))
		}
	}
}
