package geo

import (
	"math"

	"twistmap/internal/models"
)

// HaversineMeters calculates the distance between two coordinates in meters.
func HaversineMeters(a, b models.Coordinate) float64 {
	const earthRadius = 6371000.0 // Earth's radius in meters

	lat1Rad := a.Lat * math.Pi / 180
	lat2Rad := b.Lat * math.Pi / 180
	deltaLat := (b.Lat - a.Lat) * math.Pi / 180
	deltaLng := (b.Lng - a.Lng) * math.Pi / 180

	// Haversine formula
	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadius * c
}

// Interpolate returns steps evenly spaced coordinates from a to b,
// inclusive of both endpoints. steps below 2 yields just the endpoints.
func Interpolate(a, b models.Coordinate, steps int) []models.Coordinate {
	if steps < 2 {
		steps = 2
	}
	points := make([]models.Coordinate, steps)
	for i := 0; i < steps; i++ {
		t := float64(i) / float64(steps-1)
		points[i] = models.Coordinate{
			Lat: a.Lat + (b.Lat-a.Lat)*t,
			Lng: a.Lng + (b.Lng-a.Lng)*t,
		}
	}
	return points
}

// Nearest returns the index of the coordinate in line closest to p, or -1
// for an empty line.
func Nearest(p models.Coordinate, line []models.Coordinate) int {
	best := -1
	bestDistance := math.MaxFloat64
	for i, c := range line {
		if d := HaversineMeters(p, c); d < bestDistance {
			best = i
			bestDistance = d
		}
	}
	return best
}
