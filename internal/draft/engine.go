// Package draft owns the in-progress waypoint sequence during route
// creation and keeps the drawn route line in step with it.
package draft

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"twistmap/internal/bus"
	"twistmap/internal/mapview"
	"twistmap/internal/models"
	"twistmap/internal/routing"
	"twistmap/internal/twistsapi"
)

// Reason is the structured negative result of Finalize. It is a normal
// value for UI display, never an error.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonUnnamedEndpoints Reason = "unnamed-endpoints"
	ReasonNoRoute          Reason = "no-route"
)

// Engine drives route creation. Every structural mutation supersedes any
// in-flight routing request; responses for superseded waypoint sets are
// discarded even if they arrive.
type Engine struct {
	router   *routing.Client
	m        mapview.Map
	events   *bus.Bus
	debounce time.Duration

	mu          sync.Mutex
	active      bool
	layerID     string // reserved "draft-" namespace, never a Twist layer id
	waypoints   []models.Waypoint
	geometry    []models.Coordinate
	rev         int // bumped on every geometry-affecting mutation
	geomRev     int // revision the current geometry was fetched for
	submittable bool

	debounceTimer *time.Timer
	cancelFetch   context.CancelFunc
}

// New creates an idle engine. An auth-state change destroys any active
// draft.
func New(router *routing.Client, m mapview.Map, events *bus.Bus, debounce time.Duration) *Engine {
	e := &Engine{
		router:   router,
		m:        m,
		events:   events,
		debounce: debounce,
		geomRev:  -1,
	}
	if events != nil {
		events.Subscribe(bus.AuthChange, func(bus.Event) { e.Cancel() })
	}
	return e
}

// Begin enters route-creation mode. Calling Begin while a draft is active
// is a no-op.
func (e *Engine) Begin() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.beginLocked()
}

func (e *Engine) beginLocked() {
	if e.active {
		return
	}
	e.active = true
	e.layerID = "draft-" + uuid.NewString()
	e.waypoints = nil
	e.geometry = nil
	e.rev = 0
	e.geomRev = -1
	e.submittable = false
}

// Active reports whether a draft is in progress.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Waypoints returns a copy of the current waypoint sequence.
func (e *Engine) Waypoints() []models.Waypoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.Waypoint(nil), e.waypoints...)
}

// Geometry returns a copy of the most recently fetched route line.
func (e *Engine) Geometry() []models.Coordinate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.Coordinate(nil), e.geometry...)
}

// Roles classifies the current waypoint sequence.
func (e *Engine) Roles() []models.WaypointRole {
	e.mu.Lock()
	defer e.mu.Unlock()
	return models.Roles(e.waypoints)
}

// PlaceWaypoint appends a waypoint at position, starting a draft if none
// is active.
func (e *Engine) PlaceWaypoint(position models.Coordinate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.beginLocked()
	e.waypoints = append(e.waypoints, models.Waypoint{Lat: position.Lat, Lng: position.Lng})
	e.mutatedLocked()
}

// MoveWaypoint updates the position of the waypoint at index.
func (e *Engine) MoveWaypoint(index int, position models.Coordinate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkIndexLocked(index)
	e.waypoints[index].Lat = position.Lat
	e.waypoints[index].Lng = position.Lng
	e.mutatedLocked()
}

// RenameWaypoint sets the name of the waypoint at index. Naming an
// interior waypoint promotes it from shaping to named; it does not change
// the route geometry, so no refresh is issued.
func (e *Engine) RenameWaypoint(index int, name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkIndexLocked(index)
	e.waypoints[index].Name = name
	e.submittable = false
	e.redrawLocked()
}

// DeleteWaypoint removes the waypoint at index; remaining waypoints are
// reclassified by position.
func (e *Engine) DeleteWaypoint(index int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkIndexLocked(index)
	e.waypoints = append(e.waypoints[:index], e.waypoints[index+1:]...)
	e.mutatedLocked()
}

func (e *Engine) checkIndexLocked(index int) {
	if index < 0 || index >= len(e.waypoints) {
		// A UI action referencing a waypoint that no longer exists means
		// the draft state and the screen have desynchronized.
		panic(fmt.Sprintf("draft: waypoint index %d out of range (have %d)", index, len(e.waypoints)))
	}
}

// mutatedLocked records a geometry-affecting change: it supersedes any
// in-flight fetch and schedules a debounced refresh with the latest set.
func (e *Engine) mutatedLocked() {
	e.rev++
	e.submittable = false

	if e.cancelFetch != nil {
		e.cancelFetch()
		e.cancelFetch = nil
	}

	if len(e.waypoints) < 2 {
		// No route is possible; drop the line but keep the markers.
		e.geometry = nil
		e.geomRev = -1
		e.redrawLocked()
		return
	}

	e.redrawLocked()

	if e.debounceTimer != nil {
		e.debounceTimer.Stop()
	}
	e.debounceTimer = time.AfterFunc(e.debounce, e.refresh)
}

// refresh issues the routing request for the waypoint set current at call
// time. At most one request is honored at a time: the previous one is
// cancelled before this one starts, and a response is applied only while
// its revision is still the latest.
func (e *Engine) refresh() {
	e.mu.Lock()
	if !e.active || len(e.waypoints) < 2 {
		e.mu.Unlock()
		return
	}
	if e.cancelFetch != nil {
		e.cancelFetch()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancelFetch = cancel
	rev := e.rev
	waypoints := append([]models.Waypoint(nil), e.waypoints...)
	e.mu.Unlock()

	geometry, err := e.router.Route(ctx, waypoints)

	e.mu.Lock()
	defer e.mu.Unlock()

	if errors.Is(err, context.Canceled) {
		// Superseded; the stale line stays on screen to avoid flicker.
		return
	}
	if rev != e.rev || !e.active {
		// A mutation won the race with this response. Discard it.
		return
	}
	if err != nil {
		log.Printf("⚠️  Route fetch failed: %v", err)
		if e.events != nil {
			e.events.Publish(bus.FlashEvent("Could not fetch route"))
		}
		return
	}

	e.geometry = geometry
	e.geomRev = rev
	e.redrawLocked()
}

func (e *Engine) redrawLocked() {
	if !e.active {
		return
	}
	e.m.AddLayer(e.layerID, mapview.Layer{
		Line:    append([]models.Coordinate(nil), e.geometry...),
		Markers: draftMarkers(e.waypoints),
	})
}

// draftMarkers renders every draft waypoint, named or not: shaping points
// stay draggable while drawing, they just never survive into the finished
// layer.
func draftMarkers(waypoints []models.Waypoint) []mapview.Marker {
	markers := make([]mapview.Marker, len(waypoints))
	for i, w := range waypoints {
		kind := mapview.MarkerInterior
		switch models.RoleFor(i, len(waypoints), w.Named()) {
		case models.RoleStart:
			kind = mapview.MarkerStart
		case models.RoleEnd:
			kind = mapview.MarkerEnd
		}
		markers[i] = mapview.Marker{At: w.Coordinate(), Kind: kind, Label: w.Name}
	}
	return markers
}

// Finalize validates the draft and, on success, produces the immutable
// submission payload. It mutates nothing but the validity flag and may be
// called repeatedly.
func (e *Engine) Finalize() (models.SubmissionPayload, Reason) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.waypoints) > 0 {
		first := e.waypoints[0]
		last := e.waypoints[len(e.waypoints)-1]
		if !first.Named() || !last.Named() {
			e.submittable = false
			return models.SubmissionPayload{}, ReasonUnnamedEndpoints
		}
	}

	// The geometry must have been fetched for the waypoint set as it
	// stands now, not a stale one.
	if len(e.waypoints) < 2 || e.geomRev != e.rev || len(e.geometry) == 0 {
		e.submittable = false
		return models.SubmissionPayload{}, ReasonNoRoute
	}

	e.submittable = true
	return models.SubmissionPayload{
		Waypoints:     append([]models.Waypoint(nil), e.waypoints...),
		RouteGeometry: append([]models.Coordinate(nil), e.geometry...),
	}, ReasonNone
}

// Cancel discards the draft and its map artifacts unconditionally. It is
// a no-op when no draft is active.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active {
		return
	}
	if e.cancelFetch != nil {
		e.cancelFetch()
		e.cancelFetch = nil
	}
	if e.debounceTimer != nil {
		e.debounceTimer.Stop()
		e.debounceTimer = nil
	}
	e.m.RemoveLayer(e.layerID)
	e.active = false
	e.layerID = ""
	e.waypoints = nil
	e.geometry = nil
	e.geomRev = -1
	e.submittable = false
}

// AttachTo registers the creation-body interceptor on the Twist client:
// the current submission payload's waypoints and route geometry are
// injected into the request immediately before it is sent.
func (e *Engine) AttachTo(client *twistsapi.Client) {
	client.Use(func(body map[string]any) error {
		e.mu.Lock()
		defer e.mu.Unlock()

		if !e.submittable {
			return errors.New("draft is not submittable")
		}
		body["waypoints"] = append([]models.Waypoint(nil), e.waypoints...)
		body["route_geometry"] = append([]models.Coordinate(nil), e.geometry...)
		return nil
	})
}
