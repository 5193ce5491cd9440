package dem_test

import (
	"context"
	"math"
	"testing"

	"github.com/alecthomas/assert/v2"

	dem "github.com/wgmilleriii/go-dem"
)

type elevationerFunc func(dem.Point) float64

func (f elevationerFunc) Elevations(ctx context.Context, points []dem.Point) ([]float64, error) {
	elevations := make([]float64, len(points))
	for i, point := range points {
		elevations[i] = f(point)
	}
	return elevations, nil
}

func TestHaversineDistance(t *testing.T) {
	for _, tc := range []struct {
		a, b     dem.Point
		expected float64
	}{
		{a: dem.Point{Lat: 0, Lon: 0}, b: dem.Point{Lat: 0, Lon: 0}, expected: 0},
		{a: dem.Point{Lat: 0, Lon: 0}, b: dem.Point{Lat: 1, Lon: 0}, expected: 6371000 * math.Pi / 180},
		{a: dem.Point{Lat: 0, Lon: 0}, b: dem.Point{Lat: 0, Lon: 180}, expected: 6371000 * math.Pi},
	} {
		actual := dem.HaversineDistance(tc.a, tc.b)
		assert.True(t, math.Abs(actual-tc.expected) < 1e-6)
		assert.True(t, math.Abs(dem.HaversineDistance(tc.b, tc.a)-actual) < 1e-6)
	}
}

func TestProfilePoints(t *testing.T) {
	points, err := dem.ProfilePoints(dem.Point{Lat: 35, Lon: -106}, dem.Point{Lat: 36, Lon: -105}, 5)
	assert.NoError(t, err)
	assert.Equal(t, []dem.Point{
		{Lat: 35, Lon: -106},
		{Lat: 35.25, Lon: -105.75},
		{Lat: 35.5, Lon: -105.5},
		{Lat: 35.75, Lon: -105.25},
		{Lat: 36, Lon: -105},
	}, points)

	for _, n := range []int{-1, 0, 1} {
		_, err := dem.ProfilePoints(dem.Point{}, dem.Point{Lat: 1}, n)
		assert.Error(t, err)
	}
}

func TestNewProfile(t *testing.T) {
	start, end := dem.Point{Lat: 0, Lon: 0}, dem.Point{Lat: 0, Lon: 1}
	elevationer := elevationerFunc(func(point dem.Point) float64 {
		if point.Lon > 0.5 {
			return math.NaN()
		}
		return 1000 * point.Lon
	})

	profile, err := dem.NewProfile(t.Context(), elevationer, start, end, 3)
	assert.NoError(t, err)
	assert.Equal(t, 3, profile.NumPoints)
	assert.Equal(t, start, profile.Start)
	assert.Equal(t, end, profile.End)
	assert.True(t, math.Abs(profile.TotalDistance-6371000*math.Pi/180) < 1e-6)

	assert.Equal(t, 3, len(profile.Points))
	assert.Equal(t, 0.0, *profile.Points[0].Elevation)
	assert.Equal(t, 500.0, *profile.Points[1].Elevation)
	assert.Zero(t, profile.Points[2].Elevation)
	assert.Equal(t, 0.0, profile.Points[0].Distance)
	assert.Equal(t, profile.TotalDistance/2, profile.Points[1].Distance)
	assert.Equal(t, profile.TotalDistance, profile.Points[2].Distance)
}

func TestOptionalElevation(t *testing.T) {
	assert.Zero(t, dem.OptionalElevation(math.NaN()))
	assert.Equal(t, 12.5, *dem.OptionalElevation(12.5))
}
