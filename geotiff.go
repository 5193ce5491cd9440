package dem

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"io/fs"
	"sync"

	"github.com/google/tiff"
	_ "github.com/google/tiff/bigtiff"
	_ "github.com/google/tiff/geotiff"
	"github.com/maypok86/otter/v2"
	"github.com/rotisserie/eris"
)

var errShortRead = eris.New("short read")

const (
	compressionNone        = 1
	compressionLZW         = 5
	compressionDeflate     = 8
	compressionDeflateOld  = 32946
	predictorNone          = 1
	predictorHorizontal    = 2
	predictorFloatingPoint = 3
	planarSeparate         = 2
	sampleFormatUint       = 1
	sampleFormatInt        = 2
	sampleFormatFloat      = 3
	rasterTypePixelIsPoint = 2
)

// A GeoTIFF is an open GeoTIFF file. Only the first band of the first image
// is read.
type GeoTIFF struct {
	name                   string
	file                   fs.File
	r                      io.ReaderAt
	byteOrder              binary.ByteOrder
	imageWidth             int
	imageLength            int
	blockWidth             int
	blockLength            int
	blocksAcross           int
	blocksDown             int
	tiled                  bool
	blockOffsets           []uint64
	blockByteCounts        []uint64
	smallestBlockByteCount uint64
	compression            int
	predictor              int
	dataType               DataType
	bytesPerSample         int
	blockCacheSizeBytes    int
	blockCache             *otter.Cache[int, []float64]
	emptyBlockMutex        sync.RWMutex
	emptyBlockBytes        []byte
	emptyBlock             []float64
	geoTransform           GeoTransform
	noData                 NoData
	hasNoData              bool
	geoKeys                *ParsedGeoKeys
}

// A GeoTIFFOption sets an option on a GeoTIFF.
type GeoTIFFOption func(*GeoTIFF)

// A geoTIFFIFD is a struct into which github.com/google/tiff can unmarshal an
// IFD.
type geoTIFFIFD struct {
	ImageWidth                uint32    `tiff:"field,tag=256"`
	ImageLength               uint32    `tiff:"field,tag=257"`
	BitsPerSample             uint16    `tiff:"field,tag=258"`
	Compression               uint16    `tiff:"field,tag=259"`
	PhotometricInterpretation uint16    `tiff:"field,tag=262"`
	StripOffsets              []uint64  `tiff:"field,tag=273"`
	SamplesPerPixel           uint16    `tiff:"field,tag=277"`
	RowsPerStrip              uint32    `tiff:"field,tag=278"`
	StripByteCounts           []uint64  `tiff:"field,tag=279"`
	PlanarConfiguration       uint16    `tiff:"field,tag=284"`
	Predictor                 uint16    `tiff:"field,tag=317"`
	TileWidth                 uint32    `tiff:"field,tag=322"`
	TileLength                uint32    `tiff:"field,tag=323"`
	TileOffsets               []uint64  `tiff:"field,tag=324"`
	TileByteCounts            []uint64  `tiff:"field,tag=325"`
	SampleFormat              uint16    `tiff:"field,tag=339"`
	ModelPixelScaleTag        []float64 `tiff:"field,tag=33550"`
	ModelTiepointTag          []float64 `tiff:"field,tag=33922"`
	ModelTransformationTag    []float64 `tiff:"field,tag=34264"`
	GeoKeyDirectoryTag        []uint16  `tiff:"field,tag=34735"`
	GeoDoubleParamsTag        []float64 `tiff:"field,tag=34736"`
	GeoASCIIParamsTag         string    `tiff:"field,tag=34737"`
	GDALNoData                string    `tiff:"field,tag=42113"`
}

type readAtSeeker interface {
	io.ReadSeeker
	io.ReaderAt
}

// OpenGeoTIFF opens the GeoTIFF filename in fsys.
func OpenGeoTIFF(fsys fs.FS, filename string, options ...GeoTIFFOption) (*GeoTIFF, error) {
	var err error
	ok := false

	g := &GeoTIFF{
		name:                filename,
		blockCacheSizeBytes: 128 << 20, // 128MB.
	}
	for _, option := range options {
		option(g)
	}

	g.file, err = fsys.Open(filename)
	if err != nil {
		return nil, err
	}
	defer func() {
		if !ok {
			_ = g.file.Close()
		}
	}()
	r, isReadAtSeeker := g.file.(readAtSeeker)
	if !isReadAtSeeker {
		return nil, eris.Wrapf(errors.ErrUnsupported, "geotiff: %s: file is not seekable", filename)
	}
	g.r = r

	header := make([]byte, 2)
	if _, err := r.ReadAt(header, 0); err != nil {
		return nil, eris.Wrapf(err, "geotiff: %s: read header", filename)
	}
	switch string(header) {
	case "II":
		g.byteOrder = binary.LittleEndian
	case "MM":
		g.byteOrder = binary.BigEndian
	default:
		return nil, eris.Errorf("geotiff: %s: not a TIFF file", filename)
	}

	tiffTIFF, err := tiff.Parse(r, tiff.GetTagSpace("GeoTIFF"), nil)
	if err != nil {
		return nil, eris.Wrapf(err, "geotiff: %s: parse", filename)
	}
	if len(tiffTIFF.IFDs()) == 0 {
		return nil, eris.Errorf("geotiff: %s: no IFDs", filename)
	}

	// Overviews, if any, follow the full resolution image.
	var ifd geoTIFFIFD
	if err := tiff.UnmarshalIFD(tiffTIFF.IFDs()[0], &ifd); err != nil {
		return nil, eris.Wrapf(err, "geotiff: %s: unmarshal IFD", filename)
	}
	if err := g.init(&ifd); err != nil {
		return nil, eris.Wrapf(err, "geotiff: %s", filename)
	}

	ok = true
	return g, nil
}

// WithBlockCacheSize sets the maximum size in bytes of decoded blocks that are
// kept in memory.
func WithBlockCacheSize(blockCacheSize int) GeoTIFFOption {
	return func(g *GeoTIFF) {
		g.blockCacheSizeBytes = blockCacheSize
	}
}

func (g *GeoTIFF) init(ifd *geoTIFFIFD) error {
	// Only the first band is read. Separate planes store it in the first
	// blocks; interleaved pixels would need a stride in decodeBlock.
	planes := 1
	if ifd.SamplesPerPixel > 1 {
		if ifd.PlanarConfiguration != planarSeparate {
			return eris.Wrapf(errors.ErrUnsupported, "%d interleaved samples per pixel", ifd.SamplesPerPixel)
		}
		planes = int(ifd.SamplesPerPixel)
	}
	dataType, err := tiffDataType(ifd.SampleFormat, ifd.BitsPerSample)
	if err != nil {
		return err
	}
	g.dataType = dataType
	g.bytesPerSample = int(ifd.BitsPerSample) / 8

	switch ifd.Compression {
	case 0, compressionNone:
		g.compression = compressionNone
	case compressionLZW, compressionDeflate, compressionDeflateOld:
		g.compression = int(ifd.Compression)
	default:
		return eris.Wrapf(errors.ErrUnsupported, "compression %d", ifd.Compression)
	}
	switch ifd.Predictor {
	case 0, predictorNone:
		g.predictor = predictorNone
	case predictorHorizontal, predictorFloatingPoint:
		g.predictor = int(ifd.Predictor)
	default:
		return eris.Wrapf(errors.ErrUnsupported, "predictor %d", ifd.Predictor)
	}

	g.imageWidth = int(ifd.ImageWidth)
	g.imageLength = int(ifd.ImageLength)
	switch {
	case g.imageWidth == 0 || g.imageLength == 0:
		g.blockWidth, g.blockLength = 1, 1
		g.blockOffsets, g.blockByteCounts = nil, nil
	case ifd.TileWidth != 0 && ifd.TileLength != 0:
		g.blockWidth = int(ifd.TileWidth)
		g.blockLength = int(ifd.TileLength)
		g.blockOffsets = ifd.TileOffsets
		g.blockByteCounts = ifd.TileByteCounts
		g.tiled = true
	case len(ifd.StripOffsets) != 0:
		g.blockWidth = g.imageWidth
		g.blockLength = int(ifd.RowsPerStrip)
		if g.blockLength == 0 || g.blockLength > g.imageLength {
			g.blockLength = g.imageLength
		}
		g.blockOffsets = ifd.StripOffsets
		g.blockByteCounts = ifd.StripByteCounts
	default:
		return eris.New("neither tiles nor strips")
	}
	g.blocksAcross = (g.imageWidth + g.blockWidth - 1) / g.blockWidth
	g.blocksDown = (g.imageLength + g.blockLength - 1) / g.blockLength
	blocksPerImage := g.blocksAcross * g.blocksDown
	if len(g.blockByteCounts) != planes*blocksPerImage || len(g.blockOffsets) != planes*blocksPerImage {
		return eris.New("incorrect number of block byte counts or offsets")
	}
	g.blockOffsets = g.blockOffsets[:blocksPerImage]
	g.blockByteCounts = g.blockByteCounts[:blocksPerImage]
	if blocksPerImage > 0 {
		g.smallestBlockByteCount = g.blockByteCounts[0]
		for _, blockByteCount := range g.blockByteCounts[1:] {
			g.smallestBlockByteCount = min(g.smallestBlockByteCount, blockByteCount)
		}
	}

	blockBytes := 8 * g.blockWidth * g.blockLength
	g.blockCache, err = otter.New(&otter.Options[int, []float64]{
		MaximumSize: max(g.blockCacheSizeBytes/blockBytes, 1),
	})
	if err != nil {
		return err
	}

	if len(ifd.GeoKeyDirectoryTag) != 0 {
		g.geoKeys, err = ParseGeoKeys(ifd.GeoKeyDirectoryTag, ifd.GeoDoubleParamsTag, []byte(ifd.GeoASCIIParamsTag))
		if err != nil {
			return err
		}
	}

	g.geoTransform, err = tiffGeoTransform(ifd.ModelTransformationTag, ifd.ModelPixelScaleTag, ifd.ModelTiepointTag)
	if err != nil {
		return err
	}
	if g.geoKeys != nil && g.geoKeys.Params[GeoKeyGTRasterType] == rasterTypePixelIsPoint {
		// Tie points refer to pixel centers; shift to the corner as GDAL does.
		x, y := g.geoTransform.Apply(-0.5, -0.5)
		g.geoTransform[0], g.geoTransform[3] = x, y
	}

	if ifd.GDALNoData != "" {
		g.noData, err = ParseNoData(ifd.GDALNoData, g.dataType)
		if err != nil {
			return err
		}
		g.hasNoData = true
	}

	return nil
}

// tiffDataType returns the DataType for a TIFF sample format and bit depth.
func tiffDataType(sampleFormat, bitsPerSample uint16) (DataType, error) {
	switch sampleFormat {
	case 0, sampleFormatUint:
		switch bitsPerSample {
		case 8:
			return Uint8, nil
		case 16:
			return Uint16, nil
		case 32:
			return Uint32, nil
		}
	case sampleFormatInt:
		switch bitsPerSample {
		case 8:
			return Int8, nil
		case 16:
			return Int16, nil
		case 32:
			return Int32, nil
		}
	case sampleFormatFloat:
		switch bitsPerSample {
		case 32:
			return Float32, nil
		case 64:
			return Float64, nil
		}
	}
	return 0, eris.Wrapf(errors.ErrUnsupported, "sample format %d with %d bits per sample", sampleFormat, bitsPerSample)
}

// tiffGeoTransform returns the GeoTransform described by the GeoTIFF model
// tags.
func tiffGeoTransform(transformation, pixelScale, tiepoint []float64) (GeoTransform, error) {
	switch {
	case len(transformation) == 16:
		m := transformation
		return GeoTransform{m[3], m[0], m[1], m[7], m[4], m[5]}, nil
	case len(pixelScale) >= 2 && len(tiepoint) >= 6:
		scaleX, scaleY := pixelScale[0], pixelScale[1]
		i, j := tiepoint[0], tiepoint[1]
		x, y := tiepoint[3], tiepoint[4]
		return NewGeoTransform(x-i*scaleX, scaleX, y+j*scaleY, -scaleY), nil
	default:
		return GeoTransform{}, eris.Wrap(errors.ErrUnsupported, "no georeferencing tags")
	}
}

func (g *GeoTIFF) Close() error {
	return g.file.Close()
}

// Name returns the name g was opened with.
func (g *GeoTIFF) Name() string {
	return g.name
}

func (g *GeoTIFF) Size() (int, int) {
	return g.imageLength, g.imageWidth
}

func (g *GeoTIFF) GeoTransform() GeoTransform {
	return g.geoTransform
}

func (g *GeoTIFF) NoData() (NoData, bool) {
	return g.noData, g.hasNoData
}

// DataType returns the type of g's samples.
func (g *GeoTIFF) DataType() DataType {
	return g.dataType
}

// EPSG returns the EPSG code of g's coordinate reference system, if known.
func (g *GeoTIFF) EPSG() (int, bool) {
	if g.geoKeys == nil {
		return 0, false
	}
	return g.geoKeys.EPSG()
}

// ReadRow reads row into dst.
func (g *GeoTIFF) ReadRow(ctx context.Context, row int, dst []float64) error {
	if row < 0 || row >= g.imageLength {
		return eris.Errorf("geotiff: %s: row %d out of range", g.name, row)
	}
	blockRow := row / g.blockLength
	offset := (row % g.blockLength) * g.blockWidth
	for blockCol := range g.blocksAcross {
		block, err := g.getBlockCached(ctx, blockCol+g.blocksAcross*blockRow)
		if err != nil {
			return err
		}
		col := blockCol * g.blockWidth
		n := min(g.blockWidth, g.imageWidth-col)
		copy(dst[col:col+n], block[offset:offset+n])
	}
	return nil
}

// Sample returns the raw value of the pixel at coord.
func (g *GeoTIFF) Sample(ctx context.Context, coord PixelCoord) (float64, error) {
	if coord.Row < 0 || coord.Row >= g.imageLength || coord.Col < 0 || coord.Col >= g.imageWidth {
		return 0, eris.Errorf("geotiff: %s: pixel %d,%d out of range", g.name, coord.Row, coord.Col)
	}
	blockIndex := coord.Col/g.blockWidth + g.blocksAcross*(coord.Row/g.blockLength)
	block, err := g.getBlockCached(ctx, blockIndex)
	if err != nil {
		return 0, err
	}
	return block[coord.Col%g.blockWidth+(coord.Row%g.blockLength)*g.blockWidth], nil
}

// blockRows returns the number of rows stored in the block at blockIndex. The
// last strip may be short; tiles are always padded.
func (g *GeoTIFF) blockRows(blockIndex int) int {
	if g.tiled {
		return g.blockLength
	}
	return min(g.blockLength, g.imageLength-blockIndex*g.blockLength)
}

// getCompressedBlockData returns the compressed data of the block at
// blockIndex.
func (g *GeoTIFF) getCompressedBlockData(blockIndex int) ([]byte, error) {
	blockByteCount := g.blockByteCounts[blockIndex]
	blockOffset := g.blockOffsets[blockIndex]
	compressedData := make([]byte, blockByteCount)
	switch n, err := g.r.ReadAt(compressedData, int64(blockOffset)); {
	case n == int(blockByteCount):
		return compressedData, nil
	case err != nil:
		return nil, eris.Wrapf(err, "geotiff: %s: read block %d", g.name, blockIndex)
	default:
		return nil, errShortRead
	}
}

// getBlock returns the decoded samples of the block at blockIndex.
func (g *GeoTIFF) getBlock(ctx context.Context, blockIndex int) ([]float64, error) {
	compressedBlockData, err := g.getCompressedBlockData(blockIndex)
	if err != nil {
		return nil, err
	}

	rows := g.blockRows(blockIndex)
	fullBlock := rows == g.blockLength
	if fullBlock {
		if emptyBlock := g.matchEmptyBlock(compressedBlockData); emptyBlock != nil {
			return emptyBlock, nil
		}
	}

	blockData, err := decompress(g.compression, compressedBlockData, rows*g.blockWidth*g.bytesPerSample)
	if err != nil {
		return nil, eris.Wrapf(err, "geotiff: %s: decompress block %d", g.name, blockIndex)
	}
	byteOrder := g.byteOrder
	switch g.predictor {
	case predictorHorizontal:
		undoHorizontalPredictor(blockData, g.blockWidth, g.bytesPerSample, byteOrder)
	case predictorFloatingPoint:
		blockData = undoFloatingPointPredictor(blockData, g.blockWidth, g.bytesPerSample)
		byteOrder = binary.LittleEndian
	}
	block := make([]float64, g.blockWidth*g.blockLength)
	decodeSamples(block, blockData, g.dataType, byteOrder)

	// If we do not know what an empty block looks like compressed, check to
	// see if this is one, and, if so, remember its bytes so that later empty
	// blocks can be detected before they are decompressed. We assume that
	// the empty block is the smallest block.
	if fullBlock && g.hasNoData && uint64(len(compressedBlockData)) == g.smallestBlockByteCount {
		isEmptyBlock := true
		for _, sample := range block {
			if !g.noData.Matches(sample) {
				isEmptyBlock = false
				break
			}
		}
		if isEmptyBlock {
			g.emptyBlockMutex.Lock()
			if g.emptyBlockBytes == nil {
				g.emptyBlockBytes = compressedBlockData
				g.emptyBlock = block
			}
			g.emptyBlockMutex.Unlock()
		}
	}

	return block, nil
}

// matchEmptyBlock returns the decoded empty block if compressedBlockData is
// the known compressed form of an empty block.
func (g *GeoTIFF) matchEmptyBlock(compressedBlockData []byte) []float64 {
	g.emptyBlockMutex.RLock()
	defer g.emptyBlockMutex.RUnlock()
	if g.emptyBlockBytes != nil && bytes.Equal(compressedBlockData, g.emptyBlockBytes) {
		return g.emptyBlock
	}
	return nil
}

// getBlockCached returns the block at blockIndex using g's cache.
func (g *GeoTIFF) getBlockCached(ctx context.Context, blockIndex int) ([]float64, error) {
	return g.blockCache.Get(ctx, blockIndex, otter.LoaderFunc[int, []float64](g.getBlock))
}
