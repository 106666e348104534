// Package geo provides the geographic primitives used by geocoding,
// routing and transport scoring.
package geo

import (
	"fmt"
	"math"
)

// Point represents a geographic coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the point lies within the WGS84 coordinate domain.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Round6 returns the point with both coordinates rounded to six decimals,
// about 0.11m of precision. Cache keys are built from rounded points so
// that jitter in provider output does not fragment the cache.
func (p Point) Round6() Point {
	return Point{Lat: Round6(p.Lat), Lon: Round6(p.Lon)}
}

// Key renders the point as a stable cache-key fragment.
func (p Point) Key() string {
	return fmt.Sprintf("%.6f,%.6f", Round6(p.Lat), Round6(p.Lon))
}

// Round6 rounds a coordinate to six decimal places.
func Round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// Distance calculates the Haversine distance between two points in meters.
func Distance(p1, p2 Point) float64 {
	const R = 6371000 // Earth radius in meters
	dLat := (p2.Lat - p1.Lat) * (math.Pi / 180.0)
	dLon := (p2.Lon - p1.Lon) * (math.Pi / 180.0)
	lat1 := p1.Lat * (math.Pi / 180.0)
	lat2 := p2.Lat * (math.Pi / 180.0)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return R * c
}

// TravelMinutes estimates travel time in minutes for a straight-line
// distance in meters at the given speed in km/h.
func TravelMinutes(distMeters, speedKmh float64) float64 {
	if speedKmh <= 0 {
		return 0
	}
	return distMeters / 1000.0 / speedKmh * 60.0
}
