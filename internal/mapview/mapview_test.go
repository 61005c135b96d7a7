package mapview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twistmap/internal/models"
)

func TestMarkersFor_Classification(t *testing.T) {
	waypoints := []models.Waypoint{
		{Lat: 49.1, Lng: -122.5, Name: "Start"},
		{Lat: 49.2, Lng: -122.6}, // shaping, excluded
		{Lat: 49.3, Lng: -122.7, Name: "Lookout"},
		{Lat: 49.4, Lng: -122.8, Name: "End"},
	}

	markers := MarkersFor(waypoints)
	require.Len(t, markers, 3)
	assert.Equal(t, MarkerStart, markers[0].Kind)
	assert.Equal(t, MarkerInterior, markers[1].Kind)
	assert.Equal(t, MarkerEnd, markers[2].Kind)
	assert.Equal(t, "Lookout", markers[1].Label)
}

func TestMarkersFor_SingleNamedIsStart(t *testing.T) {
	markers := MarkersFor([]models.Waypoint{
		{},
		{Lat: 49.3, Lng: -122.7, Name: "Only"},
		{},
	})
	require.Len(t, markers, 1)
	assert.Equal(t, MarkerStart, markers[0].Kind)
}

func TestLayerBounds(t *testing.T) {
	layer := Layer{
		Line: []models.Coordinate{
			{Lat: 49.0, Lng: -123.0},
			{Lat: 49.5, Lng: -122.0},
		},
		Markers: []Marker{
			{At: models.Coordinate{Lat: 48.5, Lng: -122.5}},
		},
	}

	b := layer.Bounds()
	assert.Equal(t, models.Coordinate{Lat: 48.5, Lng: -123.0}, b.SouthWest)
	assert.Equal(t, models.Coordinate{Lat: 49.5, Lng: -122.0}, b.NorthEast)
	assert.False(t, b.Degenerate())
}

func TestDegenerateBounds(t *testing.T) {
	point := Layer{Line: []models.Coordinate{{Lat: 49, Lng: -123}}}
	assert.True(t, point.Bounds().Degenerate())

	empty := Layer{}
	assert.True(t, empty.Bounds().Degenerate())
}
