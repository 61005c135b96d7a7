// Package layercache lazily loads and caches one rendered map layer per
// persisted Twist, and toggles map membership without re-fetching.
package layercache

import (
	"context"
	"errors"
	"log"
	"sync"

	"twistmap/internal/bus"
	"twistmap/internal/mapview"
	"twistmap/internal/models"
	"twistmap/internal/twistsapi"
)

type entryState int

const (
	stateLoading entryState = iota
	stateReady
)

type entry struct {
	state entryState
	layer mapview.Layer
	name  string

	// Desired membership once the load completes.
	wantVisible bool
	wantPan     bool
}

// Cache holds at most one entry per Twist identifier. Loads are
// de-duplicated: a visibility request for an identifier already loading
// only updates the desired membership.
type Cache struct {
	api    *twistsapi.Client
	m      mapview.Map
	events *bus.Bus

	mu      sync.Mutex
	entries map[int64]*entry
}

// New creates an empty cache over the shared map instance.
func New(api *twistsapi.Client, m mapview.Map, events *bus.Bus) *Cache {
	return &Cache{
		api:     api,
		m:       m,
		entries: make(map[int64]*entry),
		events:  events,
	}
}

// EnsureVisible makes the Twist's layer a member of the map, fetching its
// geometry on first request. Idempotent; at most one concurrent load per
// identifier. With panTo the map is fitted to the layer once it shows.
func (c *Cache) EnsureVisible(ctx context.Context, id int64, panTo bool) {
	c.mu.Lock()
	if e, ok := c.entries[id]; ok {
		if e.state == stateLoading {
			e.wantVisible = true
			e.wantPan = e.wantPan || panTo
			c.mu.Unlock()
			return
		}
		layer := e.layer
		c.mu.Unlock()
		c.attach(id, layer, panTo)
		return
	}

	e := &entry{state: stateLoading, wantVisible: true, wantPan: panTo}
	c.entries[id] = e
	c.mu.Unlock()

	geometry, err := c.api.Geometry(ctx, id)

	c.mu.Lock()
	if c.entries[id] != e {
		// Evicted while loading; whatever arrived is no longer wanted.
		c.mu.Unlock()
		return
	}
	if err != nil {
		// No partially-constructed entry survives a failed load; the id
		// becomes eligible for a fresh fetch on the next request.
		delete(c.entries, id)
		c.mu.Unlock()

		if errors.Is(err, context.Canceled) || errors.Is(err, twistsapi.ErrAuthRequired) {
			// Cancelled loads are silent; auth losses are surfaced once
			// by the session controller, not per request.
			return
		}
		log.Printf("⚠️  Failed to load Twist %d geometry: %v", id, err)
		if c.events != nil {
			c.events.Publish(bus.FlashEvent("Could not load Twist"))
		}
		return
	}

	e.state = stateReady
	e.name = geometry.Name
	e.layer = mapview.Layer{
		Line:    geometry.RouteGeometry,
		Markers: mapview.MarkersFor(geometry.Waypoints),
	}
	visible, pan, layer := e.wantVisible, e.wantPan, e.layer
	e.wantPan = false
	c.mu.Unlock()

	if visible {
		c.attach(id, layer, pan)
	}
}

func (c *Cache) attach(id int64, layer mapview.Layer, panTo bool) {
	layerID := models.TwistLayerID(id)
	if !c.m.HasLayer(layerID) {
		c.m.AddLayer(layerID, layer)
	}
	if panTo {
		c.fit(id, layer)
	}
}

// SetHidden removes the Twist's layer from the map without touching the
// cache entry; the layer can be shown again without a fetch.
func (c *Cache) SetHidden(id int64) {
	c.mu.Lock()
	if e, ok := c.entries[id]; ok && e.state == stateLoading {
		e.wantVisible = false
		e.wantPan = false
	}
	c.mu.Unlock()
	c.m.RemoveLayer(models.TwistLayerID(id))
}

// Evict removes the entry from both the map and the cache. Safe to call
// for an identifier with no entry.
func (c *Cache) Evict(id int64) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
	c.m.RemoveLayer(models.TwistLayerID(id))
}

// Focus pans and zooms the map to the cached layer's bounds. Missing
// entries and degenerate bounds are skipped with a diagnostic.
func (c *Cache) Focus(id int64) {
	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok || e.state != stateReady {
		c.mu.Unlock()
		log.Printf("Focus skipped: no loaded layer for Twist %d", id)
		return
	}
	layer := e.layer
	c.mu.Unlock()

	c.fit(id, layer)
}

func (c *Cache) fit(id int64, layer mapview.Layer) {
	b := layer.Bounds()
	if b.Degenerate() {
		log.Printf("Focus skipped: degenerate bounds for Twist %d", id)
		return
	}
	c.m.FitBounds(b)
}

// Visible reports whether the Twist's layer is currently a map member.
func (c *Cache) Visible(id int64) bool {
	return c.m.HasLayer(models.TwistLayerID(id))
}

// CachedIDs returns the identifiers with a loaded or loading entry.
func (c *Cache) CachedIDs() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]int64, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	return ids
}
