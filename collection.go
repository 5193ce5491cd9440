package dem

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// A Format is a serialization of a Collection.
type Format string

const (
	FormatKeyed   Format = "keyed"
	FormatList    Format = "list"
	FormatGeoJSON Format = "geojson"
)

// ParseFormat parses a Format.
func ParseFormat(s string) (Format, error) {
	switch format := Format(strings.ToLower(s)); format {
	case FormatKeyed, FormatList, FormatGeoJSON:
		return format, nil
	default:
		return "", eris.Errorf("unknown format %q", s)
	}
}

// A Collection is an ordered sequence of samples.
type Collection struct {
	samples []Sample
}

// NewCollection returns a new Collection containing samples.
func NewCollection(samples ...Sample) *Collection {
	return &Collection{
		samples: samples,
	}
}

// Add appends sample to c.
func (c *Collection) Add(sample Sample) {
	c.samples = append(c.samples, sample)
}

// Len returns the number of samples in c.
func (c *Collection) Len() int {
	return len(c.samples)
}

// Samples returns c's samples in insertion order.
func (c *Collection) Samples() []Sample {
	return c.samples
}

// SampleKey returns the key of a sample at (lat, lon) in the keyed format.
func SampleKey(lat, lon float64) string {
	return fmt.Sprintf("%.5f,%.5f", lat, lon)
}

// Keyed returns c as a map from sample key to elevation. Later samples
// overwrite earlier samples with the same key.
func (c *Collection) Keyed() map[string]float64 {
	keyed := make(map[string]float64, len(c.samples))
	for _, sample := range c.samples {
		keyed[SampleKey(sample.Lat, sample.Lon)] = sample.Elevation
	}
	return keyed
}

// Write writes c to w in format.
func (c *Collection) Write(w io.Writer, format Format) error {
	var value any
	switch format {
	case FormatKeyed:
		value = c.Keyed()
	case FormatList:
		samples := c.samples
		if samples == nil {
			samples = []Sample{}
		}
		value = samples
	case FormatGeoJSON:
		value = c.FeatureCollection()
	default:
		return eris.Errorf("unknown format %q", format)
	}
	if err := json.NewEncoder(w).Encode(value); err != nil {
		return eris.Wrapf(err, "collection: encode %s", format)
	}
	return nil
}

// FeatureCollection returns c as a GeoJSON FeatureCollection of three
// dimensional points.
func (c *Collection) FeatureCollection() *geojson.FeatureCollection {
	featureCollection := &geojson.FeatureCollection{
		Features: make([]*geojson.Feature, 0, len(c.samples)),
	}
	for _, sample := range c.samples {
		featureCollection.Features = append(featureCollection.Features, &geojson.Feature{
			Geometry: geom.NewPointFlat(geom.XYZ, []float64{sample.Lon, sample.Lat, sample.Elevation}).SetSRID(epsgWGS84),
			Properties: map[string]any{
				"elevation": sample.Elevation,
			},
		})
	}
	return featureCollection
}

// ReadKeyed reads a keyed collection. Samples are sorted by latitude and then
// longitude.
func ReadKeyed(r io.Reader) (*Collection, error) {
	var keyed map[string]float64
	if err := json.NewDecoder(r).Decode(&keyed); err != nil {
		return nil, eris.Wrap(err, "collection: decode keyed")
	}
	samples := make([]Sample, 0, len(keyed))
	for key, elevation := range keyed {
		latStr, lonStr, ok := strings.Cut(key, ",")
		if !ok {
			return nil, eris.Errorf("collection: invalid key %q", key)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "collection: invalid key %q", key)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "collection: invalid key %q", key)
		}
		samples = append(samples, Sample{Lat: lat, Lon: lon, Elevation: elevation})
	}
	slices.SortFunc(samples, compareLatLon)
	return NewCollection(samples...), nil
}

// ReadList reads a list collection.
func ReadList(r io.Reader) (*Collection, error) {
	var samples []Sample
	if err := json.NewDecoder(r).Decode(&samples); err != nil {
		return nil, eris.Wrap(err, "collection: decode list")
	}
	return NewCollection(samples...), nil
}

func compareLatLon(a, b Sample) int {
	return cmp.Or(cmp.Compare(a.Lat, b.Lat), cmp.Compare(a.Lon, b.Lon))
}
