// Package listsync reconciles the server-rendered Twist list with the
// map layers and enriches outgoing list requests with client-only
// context.
package listsync

import (
	"context"
	"log"
	"sync"
	"time"

	"twistmap/internal/bus"
	"twistmap/internal/layercache"
	"twistmap/internal/mapview"
	"twistmap/internal/models"
	"twistmap/internal/twistsapi"
)

// Trigger describes what caused a list refresh, which decides how many
// pages to re-request.
type Trigger int

const (
	// TriggerFilter is a filter or viewport change: the list restarts at
	// page one.
	TriggerFilter Trigger = iota

	// TriggerIdentity is an auth or other identity change unrelated to
	// scrolling: every page loaded so far is re-requested so the user's
	// scroll position does not collapse.
	TriggerIdentity
)

// DraftCanceller is the slice of the draft engine the controller needs:
// route-creation mode must end when a new Twist lands.
type DraftCanceller interface {
	Cancel()
}

// ListView is the rendered Twist list markup, as seen by the engine.
type ListView interface {
	// Apply swaps in (start page 1) or appends (later pages) rendered
	// items.
	Apply(page models.ListPage)

	// VisibleIDs returns the ids whose rendered state is "visible".
	VisibleIDs() []int64

	SetDropdownOpen(id int64, open bool)
	SetDropdownContent(id int64, content string)
	ClearTextSelection()
}

// Controller wires the list to the layer cache and the event bus.
type Controller struct {
	api    *twistsapi.Client
	cache  *layercache.Cache
	draft  DraftCanceller
	view   ListView
	m      mapview.Map
	win    mapview.Window
	events *bus.Bus

	doubleClickTimeout time.Duration

	mu              sync.Mutex
	pagesLoaded     int
	openID          int64 // 0 = no dropdown open
	loadedDropdowns map[int64]bool
	filter          models.ListRequest

	pendingClickID    int64
	pendingClickTimer *time.Timer
}

// New creates the controller and subscribes it to the bus.
func New(
	api *twistsapi.Client,
	cache *layercache.Cache,
	draft DraftCanceller,
	view ListView,
	m mapview.Map,
	win mapview.Window,
	events *bus.Bus,
	doubleClickTimeout time.Duration,
) *Controller {
	c := &Controller{
		api:                api,
		cache:              cache,
		draft:              draft,
		view:               view,
		m:                  m,
		win:                win,
		events:             events,
		doubleClickTimeout: doubleClickTimeout,
		loadedDropdowns:    make(map[int64]bool),
	}

	events.Subscribe(bus.TwistsLoaded, func(e bus.Event) {
		c.onTwistsLoaded(e.StartPage, e.NumPages)
	})
	events.Subscribe(bus.TwistAdded, func(e bus.Event) {
		c.onTwistAdded(e.TwistID)
	})
	events.Subscribe(bus.TwistDeleted, func(e bus.Event) {
		c.onTwistDeleted(e.TwistID)
	})
	events.Subscribe(bus.RefreshTwists, func(bus.Event) {
		c.Refresh(context.Background(), TriggerIdentity)
	})
	events.Subscribe(bus.AuthChange, func(bus.Event) {
		c.Refresh(context.Background(), TriggerIdentity)
	})
	return c
}

// SetFilter records the user's current search/filter selection, carried
// on every outgoing list request.
func (c *Controller) SetFilter(filter models.ListRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = filter
}

// PagesLoaded returns the number of list pages loaded so far.
func (c *Controller) PagesLoaded() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pagesLoaded
}

// OpenID returns the identifier of the open dropdown, or 0.
func (c *Controller) OpenID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openID
}

// onTwistsLoaded tracks page counts and, on a full refresh, reconciles
// map membership with the authoritative rendered visible-set.
func (c *Controller) onTwistsLoaded(startPage, numPages int) {
	c.mu.Lock()
	if startPage == 1 {
		c.pagesLoaded = numPages
	} else {
		c.pagesLoaded = startPage + numPages - 1
	}
	fullRefresh := startPage == 1
	c.mu.Unlock()

	if !fullRefresh {
		return
	}

	visible := make(map[int64]bool)
	for _, id := range c.view.VisibleIDs() {
		visible[id] = true
		c.cache.EnsureVisible(context.Background(), id, false)
	}
	for _, id := range c.cache.CachedIDs() {
		if !visible[id] {
			c.cache.SetHidden(id)
		}
	}
}

func (c *Controller) onTwistAdded(id int64) {
	// A landed creation ends route-creation mode before its layer shows.
	c.draft.Cancel()
	c.cache.EnsureVisible(context.Background(), id, true)
}

func (c *Controller) onTwistDeleted(id int64) {
	c.cache.SetHidden(id)
	c.cache.Evict(id)

	c.mu.Lock()
	delete(c.loadedDropdowns, id)
	if c.openID == id {
		c.openID = 0
	}
	c.mu.Unlock()
}

// ItemClick handles a click on a list item's visibility area. A single
// click toggles the item's map membership; a second click within the
// double-click window cancels the pending toggle and focuses the layer
// instead. The pending counter resets when the window elapses.
func (c *Controller) ItemClick(id int64) {
	c.mu.Lock()
	if c.pendingClickTimer != nil && c.pendingClickID == id {
		c.pendingClickTimer.Stop()
		c.pendingClickTimer = nil
		c.mu.Unlock()

		c.cache.Focus(id)
		c.view.ClearTextSelection()
		return
	}

	if c.pendingClickTimer != nil {
		// A different item was clicked: resolve the earlier click as a
		// single click now.
		c.pendingClickTimer.Stop()
		earlier := c.pendingClickID
		c.pendingClickTimer = nil
		c.mu.Unlock()
		c.toggleVisibility(earlier)
		c.mu.Lock()
	}

	c.pendingClickID = id
	c.pendingClickTimer = time.AfterFunc(c.doubleClickTimeout, func() {
		c.mu.Lock()
		if c.pendingClickID != id || c.pendingClickTimer == nil {
			c.mu.Unlock()
			return
		}
		c.pendingClickTimer = nil
		c.mu.Unlock()
		c.toggleVisibility(id)
	})
	c.mu.Unlock()
}

func (c *Controller) toggleVisibility(id int64) {
	if c.cache.Visible(id) {
		c.cache.SetHidden(id)
		return
	}
	c.cache.EnsureVisible(context.Background(), id, false)
}

// HeaderClick opens or closes an item's detail dropdown. At most one
// dropdown is open at a time; the first open lazily loads its content.
func (c *Controller) HeaderClick(ctx context.Context, id int64) {
	c.mu.Lock()
	if c.openID == id {
		c.openID = 0
		c.mu.Unlock()
		c.view.SetDropdownOpen(id, false)
		return
	}

	previous := c.openID
	c.openID = id
	needsLoad := !c.loadedDropdowns[id]
	if needsLoad {
		c.loadedDropdowns[id] = true
	}
	c.mu.Unlock()

	if previous != 0 {
		c.view.SetDropdownOpen(previous, false)
	}
	c.view.SetDropdownOpen(id, true)

	if !needsLoad {
		return
	}
	content, err := c.api.DropdownContent(ctx, id)
	if err != nil {
		log.Printf("⚠️  Failed to load dropdown for Twist %d: %v", id, err)
		c.mu.Lock()
		delete(c.loadedDropdowns, id) // retry on next open
		c.mu.Unlock()
		return
	}
	c.view.SetDropdownContent(id, content)
}

// Refresh requests a fresh rendering of the list, enriched with the open
// dropdown, the page depth appropriate for the trigger, and the
// geographic coordinate under the visual center of the full window.
func (c *Controller) Refresh(ctx context.Context, trigger Trigger) {
	c.mu.Lock()
	req := c.filter
	req.Page = 1
	req.Pages = 1
	if trigger == TriggerIdentity && c.pagesLoaded > 1 {
		req.Pages = c.pagesLoaded
	}
	req.OpenID = c.openID
	c.mu.Unlock()

	center := c.windowCenter()
	req.MapCenter = &center

	page, err := c.api.List(ctx, req)
	if err != nil {
		log.Printf("⚠️  List refresh failed: %v", err)
		c.events.Publish(bus.FlashEvent("Could not refresh Twist list"))
		return
	}

	c.view.Apply(page)
	c.events.Publish(bus.TwistsLoadedEvent(page.StartPage, page.NumPages))
}

// LoadNextPage extends the list by one page past the deepest loaded one.
func (c *Controller) LoadNextPage(ctx context.Context) {
	c.mu.Lock()
	req := c.filter
	req.Page = c.pagesLoaded + 1
	req.Pages = 1
	req.OpenID = c.openID
	c.mu.Unlock()

	center := c.windowCenter()
	req.MapCenter = &center

	page, err := c.api.List(ctx, req)
	if err != nil {
		log.Printf("⚠️  List page load failed: %v", err)
		c.events.Publish(bus.FlashEvent("Could not load more Twists"))
		return
	}

	c.view.Apply(page)
	c.events.Publish(bus.TwistsLoadedEvent(page.StartPage, page.NumPages))
}

// windowCenter converts the pixel midpoint of the full window, not just
// the map's bounding box, so an overlapping side panel does not bias the
// spatial query.
func (c *Controller) windowCenter() models.Coordinate {
	width, height := c.win.Size()
	return c.m.PixelToCoordinate(width/2, height/2)
}
