// Package app assembles the engine: configuration, durable store, event
// bus, transport clients, and the controllers that sit between them and
// the UI shell.
package app

import (
	"context"
	"log"
	"strings"

	"twistmap/internal/bus"
	"twistmap/internal/config"
	"twistmap/internal/draft"
	"twistmap/internal/layercache"
	"twistmap/internal/listsync"
	"twistmap/internal/mapview"
	"twistmap/internal/notify"
	"twistmap/internal/routing"
	"twistmap/internal/session"
	"twistmap/internal/store"
	"twistmap/internal/twistsapi"
	"twistmap/internal/viewstore"
)

// UI is the surface the embedding shell provides: the map widget, the
// window, the rendered list, and a sink for the expiry countdown.
type UI struct {
	Map    mapview.Map
	Window mapview.Window
	List   listsync.ListView

	// OnCountdown receives the whole seconds left once per second while
	// the session warning is showing. Optional.
	OnCountdown func(secondsLeft int)
}

// App owns every engine component and their shared wiring.
type App struct {
	Config *config.Config
	Events *bus.Bus

	Store     *store.Store
	ViewStore *viewstore.ViewStore
	API       *twistsapi.Client
	Router    *routing.Client
	Draft     *draft.Engine
	Cache     *layercache.Cache
	List      *listsync.Controller
	Session   *session.Controller
	Feed      *notify.Feed

	ui UI
}

// New wires the engine together. Nothing runs until Start.
func New(cfg *config.Config, ui UI) (*App, error) {
	db, err := store.Open(cfg.StateFile)
	if err != nil {
		return nil, err
	}

	events := bus.New()
	api := twistsapi.New(cfg.BaseURL, events)
	router := routing.NewClient(cfg.OSRMURL)

	draftEngine := draft.New(router, ui.Map, events, cfg.RefreshDebounce)
	draftEngine.AttachTo(api)

	cache := layercache.New(api, ui.Map, events)
	list := listsync.New(api, cache, draftEngine, ui.List, ui.Map, ui.Window, events, cfg.DoubleClickTimeout)
	sess := session.New(db, events, cfg.SessionLifetime(), cfg.WarningOffset(), ui.OnCountdown)

	return &App{
		Config:    cfg,
		Events:    events,
		Store:     db,
		ViewStore: viewstore.New(db),
		API:       api,
		Router:    router,
		Draft:     draftEngine,
		Cache:     cache,
		List:      list,
		Session:   sess,
		Feed:      notify.New(feedURL(cfg.BaseURL), events),
		ui:        ui,
	}, nil
}

// Start restores persisted state and brings up the background pieces:
// the session timers and the notification feed. The feed stops when ctx
// is cancelled.
func (a *App) Start(ctx context.Context) {
	log.Printf("🚀 %s engine starting", a.Config.InstanceName)

	viewport, ok, err := a.ViewStore.Load()
	if err != nil {
		log.Printf("⚠️  Failed to load saved viewport: %v", err)
	} else if ok {
		a.ui.Map.PanTo(viewport.Center, viewport.Zoom)
		log.Printf("🗺️  Restored viewport %.4f,%.4f @ z%d",
			viewport.Center.Lat, viewport.Center.Lng, viewport.Zoom)
	}

	a.Session.Start()
	go a.Feed.Run(ctx)
}

// Close persists the final viewport and tears everything down.
func (a *App) Close() error {
	if err := a.ViewStore.Save(a.ui.Map.Viewport()); err != nil {
		log.Printf("⚠️  Failed to save viewport: %v", err)
	}
	a.Feed.Close()
	a.Session.Stop()
	a.Draft.Cancel()
	return a.Store.Close()
}

// feedURL converts the server base URL into its WebSocket counterpart.
func feedURL(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://") + "/ws"
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://") + "/ws"
	}
	return baseURL + "/ws"
}
