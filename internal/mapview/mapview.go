// Package mapview is the boundary to the rendering surface. The engine
// never talks to a concrete map widget; it drives this interface, and the
// embedding UI supplies the implementation.
package mapview

import "twistmap/internal/models"

// MarkerKind is the three-way visual classification of a named waypoint.
type MarkerKind int

const (
	MarkerStart MarkerKind = iota
	MarkerEnd
	MarkerInterior
)

// Marker is one rendered waypoint pin.
type Marker struct {
	At    models.Coordinate
	Kind  MarkerKind
	Label string
}

// Layer is the rendered artifact for one route: the line plus its
// markers.
type Layer struct {
	Line    []models.Coordinate
	Markers []Marker
}

// Bounds is an axis-aligned box around a layer.
type Bounds struct {
	SouthWest models.Coordinate
	NorthEast models.Coordinate
}

// Degenerate reports whether the bounds enclose no area, which makes them
// unusable as a fit target.
func (b Bounds) Degenerate() bool {
	return b.SouthWest.Lat == b.NorthEast.Lat && b.SouthWest.Lng == b.NorthEast.Lng
}

// Bounds computes the box around every coordinate in the layer.
func (l Layer) Bounds() Bounds {
	points := make([]models.Coordinate, 0, len(l.Line)+len(l.Markers))
	points = append(points, l.Line...)
	for _, m := range l.Markers {
		points = append(points, m.At)
	}
	if len(points) == 0 {
		return Bounds{}
	}

	b := Bounds{SouthWest: points[0], NorthEast: points[0]}
	for _, p := range points[1:] {
		if p.Lat < b.SouthWest.Lat {
			b.SouthWest.Lat = p.Lat
		}
		if p.Lng < b.SouthWest.Lng {
			b.SouthWest.Lng = p.Lng
		}
		if p.Lat > b.NorthEast.Lat {
			b.NorthEast.Lat = p.Lat
		}
		if p.Lng > b.NorthEast.Lng {
			b.NorthEast.Lng = p.Lng
		}
	}
	return b
}

// MarkersFor renders the named subset of a waypoint sequence. Unnamed
// shaping points are excluded entirely; the first named waypoint gets the
// start pin, the last (when more than one) the end pin.
func MarkersFor(waypoints []models.Waypoint) []Marker {
	named := models.NamedWaypoints(waypoints)
	markers := make([]Marker, len(named))
	for i, w := range named {
		kind := MarkerInterior
		switch {
		case i == 0:
			kind = MarkerStart
		case i == len(named)-1:
			kind = MarkerEnd
		}
		markers[i] = Marker{At: w.Coordinate(), Kind: kind, Label: w.Name}
	}
	return markers
}

// Map is the single map instance shared by the layer cache and the draft
// engine. AddLayer replaces any layer already attached under the same id.
type Map interface {
	AddLayer(id string, layer Layer)
	RemoveLayer(id string)
	HasLayer(id string) bool

	PanTo(center models.Coordinate, zoom int)
	FitBounds(b Bounds)

	// PixelToCoordinate converts a window pixel position to a map
	// coordinate, regardless of what UI overlays the pixel.
	PixelToCoordinate(x, y int) models.Coordinate

	Viewport() models.Viewport
}

// Window reports the size of the full application window, which may be
// larger than the map's own bounding box.
type Window interface {
	Size() (width, height int)
}
