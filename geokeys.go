package dem

import (
	"errors"

	"github.com/rotisserie/eris"
)

var errParse = eris.New("geokeys: parse error")

// A GeoKey identifies an entry in a GeoTIFF GeoKeyDirectory.
type GeoKey uint16

const (
	GeoKeyGTModelType  GeoKey = 1024
	GeoKeyGTRasterType GeoKey = 1025
	GeoKeyGTCitation   GeoKey = 1026

	GeoKeyGeodeticCRS   GeoKey = 2048
	GeoKeyGeogCitation  GeoKey = 2049
	GeoKeyGeodeticDatum GeoKey = 2050
	GeoKeyPrimeMeridian GeoKey = 2051
	GeoKeyAngularUnits  GeoKey = 2054
	GeoKeyEllipsoid     GeoKey = 2056

	GeoKeyProjectedCRS GeoKey = 3072
	GeoKeyPCSCitation  GeoKey = 3073
	GeoKeyProjection   GeoKey = 3074
	GeoKeyLinearUnits  GeoKey = 3076

	GeoKeyVertical      GeoKey = 4096
	GeoKeyVerticalDatum GeoKey = 4098
	GeoKeyVerticalUnits GeoKey = 4099
)

const (
	modelTypeProjected  = 1
	modelTypeGeographic = 2
	userDefined         = 32767
)

// ParsedGeoKeys are the values of a GeoKeyDirectory, by location.
type ParsedGeoKeys struct {
	Params       map[GeoKey]int
	DoubleParams map[GeoKey]float64
	ASCIIParams  map[GeoKey]string
}

// ParseGeoKeys parses a GeoKeyDirectoryTag and the params tags it refers to.
func ParseGeoKeys(directory []uint16, doubleParams []float64, asciiParams []byte) (*ParsedGeoKeys, error) {
	if len(directory) < 4 {
		return nil, errParse
	}

	if keyDirectoryVersion := int(directory[0]); keyDirectoryVersion != 1 {
		return nil, errParse
	}
	if keyRevision := int(directory[1]); keyRevision != 1 {
		return nil, errParse
	}
	if minorRevision := int(directory[2]); minorRevision != 0 && minorRevision != 1 {
		return nil, errParse
	}
	numberOfKeys := int(directory[3])
	if len(directory) < 4+4*numberOfKeys {
		return nil, errParse
	}

	parsedGeoKeys := &ParsedGeoKeys{
		Params:       make(map[GeoKey]int),
		DoubleParams: make(map[GeoKey]float64),
		ASCIIParams:  make(map[GeoKey]string),
	}
	for i := range numberOfKeys {
		keyValues := directory[4+4*i : 4+4*(i+1)]
		key := GeoKey(keyValues[0])
		tiffTagLocation := int(keyValues[1])
		numberOfValues := int(keyValues[2])
		switch tiffTagLocation {
		case 0:
			if numberOfValues != 1 {
				return nil, errParse
			}
			parsedGeoKeys.Params[key] = int(keyValues[3])
		case 34736: // GeoDoubleParamsTag
			index := int(keyValues[3])
			if numberOfValues != 1 {
				return nil, eris.Wrapf(errors.ErrUnsupported, "geokeys: key %d has %d doubles", key, numberOfValues)
			}
			if index >= len(doubleParams) {
				return nil, errParse
			}
			parsedGeoKeys.DoubleParams[key] = doubleParams[index]
		case 34737: // GeoASCIIParamsTag
			index := int(keyValues[3])
			if index+numberOfValues > len(asciiParams) {
				return nil, errParse
			}
			parsedGeoKeys.ASCIIParams[key] = string(asciiParams[index : index+numberOfValues])
		default:
			return nil, eris.Wrapf(errors.ErrUnsupported, "geokeys: key %d in tag %d", key, tiffTagLocation)
		}
	}
	return parsedGeoKeys, nil
}

// EPSG returns the EPSG code of the coordinate reference system described by
// k. User defined systems have no code.
func (k *ParsedGeoKeys) EPSG() (int, bool) {
	var key GeoKey
	switch k.Params[GeoKeyGTModelType] {
	case modelTypeProjected:
		key = GeoKeyProjectedCRS
	case modelTypeGeographic:
		key = GeoKeyGeodeticCRS
	default:
		return 0, false
	}
	code, ok := k.Params[key]
	if !ok || code == 0 || code == userDefined {
		return 0, false
	}
	return code, true
}
