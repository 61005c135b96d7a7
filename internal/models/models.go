package models

import "fmt"

// Coordinate is a geographic point in latitude/longitude order.
// The OSRM wire format is longitude-first; the swap happens at the
// routing client boundary, never here.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Waypoint is a point in a route draft or a persisted Twist.
// An empty name marks a shaping point: it biases the computed route
// geometry but is never rendered on the map.
type Waypoint struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Name string  `json:"name"`
}

// Named reports whether the waypoint is rendered as part of the route.
func (w Waypoint) Named() bool {
	return w.Name != ""
}

// Coordinate returns the waypoint's position.
func (w Waypoint) Coordinate() Coordinate {
	return Coordinate{Lat: w.Lat, Lng: w.Lng}
}

// WaypointRole classifies a waypoint by its position in the sequence.
type WaypointRole string

const (
	RoleStart   WaypointRole = "start"
	RoleEnd     WaypointRole = "end"
	RoleNamed   WaypointRole = "named"
	RoleShaping WaypointRole = "shaping"
)

// RoleFor computes the role of the waypoint at index i in a sequence of
// length n. Index 0 is the start; the last index is the end when the
// sequence has more than one element. A single-element sequence has its
// sole waypoint treated as start.
func RoleFor(i, n int, named bool) WaypointRole {
	switch {
	case i == 0:
		return RoleStart
	case i == n-1 && n > 1:
		return RoleEnd
	case named:
		return RoleNamed
	default:
		return RoleShaping
	}
}

// Roles classifies every waypoint in the sequence.
func Roles(waypoints []Waypoint) []WaypointRole {
	roles := make([]WaypointRole, len(waypoints))
	for i, w := range waypoints {
		roles[i] = RoleFor(i, len(waypoints), w.Named())
	}
	return roles
}

// NamedWaypoints returns the subset of waypoints that carry a name, in
// sequence order.
func NamedWaypoints(waypoints []Waypoint) []Waypoint {
	named := make([]Waypoint, 0, len(waypoints))
	for _, w := range waypoints {
		if w.Named() {
			named = append(named, w)
		}
	}
	return named
}

// TwistGeometry is the payload served by GET /twists/{id}/geometry.
type TwistGeometry struct {
	ID            int64        `json:"id"`
	Name          string       `json:"name"`
	IsPaved       bool         `json:"is_paved"`
	Waypoints     []Waypoint   `json:"waypoints"`
	RouteGeometry []Coordinate `json:"route_geometry"`
}

// SubmissionPayload is the immutable result of finalizing a draft. Its
// fields are injected into the creation request body at the transport
// boundary.
type SubmissionPayload struct {
	Waypoints     []Waypoint   `json:"waypoints"`
	RouteGeometry []Coordinate `json:"route_geometry"`
}

// Viewport is the last-seen map view, persisted between sessions.
type Viewport struct {
	Center Coordinate `json:"center"`
	Zoom   int        `json:"zoom"`
}

// Filter values for the Twist list, mirroring the server's vocabulary.
const (
	FilterAll     = "all"
	FilterOwn     = "own"
	FilterNotOwn  = "notown"
	FilterPaved   = "paved"
	FilterUnpaved = "unpaved"
	FilterRated   = "rated"
	FilterUnrated = "unrated"
)

// ListRequest carries the query parameters for GET /twists/templates/list.
// Page/Pages select the window; OpenID and MapCenter are the client-only
// context injected before every outbound refresh.
type ListRequest struct {
	Page      int
	Pages     int
	OpenID    int64 // 0 when no dropdown is open
	Search    string
	Ownership string
	Pavement  string
	Ratings   string
	MapCenter *Coordinate
}

// ListItem is the rendered state of one Twist row in the server markup.
type ListItem struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	IsPaved bool   `json:"is_paved"`
	Visible bool   `json:"is_visible"`
}

// ListPage is one response from the list endpoint: the rendered items and
// the notification payload describing which pages they cover.
type ListPage struct {
	Items     []ListItem `json:"items"`
	StartPage int        `json:"startPage"`
	NumPages  int        `json:"numPages"`
}

// TwistLayerID is the map-layer identifier for a persisted Twist. Draft
// layers use a separate "draft-" namespace so the two can never collide.
func TwistLayerID(id int64) string {
	return fmt.Sprintf("twist-%d", id)
}
