package dem

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
)

const earthRadiusMeters = 6371000

// A ProfilePoint is a point along an elevation profile.
type ProfilePoint struct {
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
	Elevation *float64 `json:"elevation"`
	Distance  float64  `json:"distance"`
}

// A Profile is the elevation along a straight line.
type Profile struct {
	Points        []ProfilePoint `json:"points"`
	TotalDistance float64        `json:"totalDistance"`
	NumPoints     int            `json:"numPoints"`
	Start         Point          `json:"start"`
	End           Point          `json:"end"`
}

// HaversineDistance returns the great circle distance between a and b in
// meters.
func HaversineDistance(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// ProfilePoints returns n points evenly spaced in latitude and longitude from
// start to end inclusive.
func ProfilePoints(start, end Point, n int) ([]Point, error) {
	if n < 2 {
		return nil, eris.Errorf("profile: need at least 2 points, got %d", n)
	}
	points := make([]Point, n)
	for i := range n {
		fraction := float64(i) / float64(n-1)
		points[i] = Point{
			Lat: start.Lat + (end.Lat-start.Lat)*fraction,
			Lon: start.Lon + (end.Lon-start.Lon)*fraction,
		}
	}
	return points, nil
}

// An Elevationer returns the elevations at points, with NaN for missing
// values.
type Elevationer interface {
	Elevations(ctx context.Context, points []Point) ([]float64, error)
}

// NewProfile returns the elevation profile from start to end with n points.
// Distances are measured from start along the great circle.
func NewProfile(ctx context.Context, elevationer Elevationer, start, end Point, n int) (*Profile, error) {
	points, err := ProfilePoints(start, end, n)
	if err != nil {
		return nil, err
	}
	elevations, err := elevationer.Elevations(ctx, points)
	if err != nil {
		return nil, err
	}
	totalDistance := HaversineDistance(start, end)
	distanceStep := totalDistance / float64(n-1)
	profile := &Profile{
		Points:        make([]ProfilePoint, n),
		TotalDistance: totalDistance,
		NumPoints:     n,
		Start:         start,
		End:           end,
	}
	for i, point := range points {
		profile.Points[i] = ProfilePoint{
			Lat:       point.Lat,
			Lon:       point.Lon,
			Elevation: OptionalElevation(elevations[i]),
			Distance:  distanceStep * float64(i),
		}
	}
	return profile, nil
}

// OptionalElevation returns nil if elevation is NaN, and a pointer to
// elevation otherwise.
func OptionalElevation(elevation float64) *float64 {
	if math.IsNaN(elevation) {
		return nil
	}
	return &elevation
}
