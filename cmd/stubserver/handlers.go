package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"twistmap/internal/models"
	"twistmap/pkg/geo"
	"twistmap/pkg/utils"
)

// twistStore is an in-memory stand-in for the real Twist database.
type twistStore struct {
	mu      sync.RWMutex
	nextID  int64
	twists  map[int64]*storedTwist
	visible map[int64]bool
}

type storedTwist struct {
	geometry models.TwistGeometry
	owned    bool
	rated    bool
}

func newTwistStore() *twistStore {
	s := &twistStore{
		nextID:  1,
		twists:  make(map[int64]*storedTwist),
		visible: make(map[int64]bool),
	}
	s.seed()
	return s
}

// seed fills the store with a handful of rides around Vancouver so the
// engine has something to sync against out of the box.
func (s *twistStore) seed() {
	rides := []struct {
		name  string
		paved bool
		start models.Coordinate
		end   models.Coordinate
		owned bool
		rated bool
	}{
		{"Cypress Lookout Run", true, models.Coordinate{Lat: 49.33, Lng: -123.19}, models.Coordinate{Lat: 49.39, Lng: -123.20}, true, true},
		{"Seymour Gravel Loop", false, models.Coordinate{Lat: 49.36, Lng: -122.95}, models.Coordinate{Lat: 49.43, Lng: -122.97}, false, false},
		{"Sea to Sky Sprint", true, models.Coordinate{Lat: 49.38, Lng: -123.27}, models.Coordinate{Lat: 49.70, Lng: -123.15}, false, true},
		{"Iona Flats Cruise", true, models.Coordinate{Lat: 49.21, Lng: -123.21}, models.Coordinate{Lat: 49.22, Lng: -123.11}, true, false},
	}
	for _, ride := range rides {
		line := geo.Interpolate(ride.start, ride.end, 24)
		id := s.nextID
		s.nextID++
		s.twists[id] = &storedTwist{
			geometry: models.TwistGeometry{
				ID:      id,
				Name:    ride.name,
				IsPaved: ride.paved,
				Waypoints: []models.Waypoint{
					{Lat: ride.start.Lat, Lng: ride.start.Lng, Name: "Start"},
					{Lat: ride.end.Lat, Lng: ride.end.Lng, Name: "End"},
				},
				RouteGeometry: line,
			},
			owned: ride.owned,
			rated: ride.rated,
		}
		s.visible[id] = true
	}
}

func (s *twistStore) get(id int64) (*storedTwist, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.twists[id]
	return t, ok
}

func (s *twistStore) create(name string, paved bool, waypoints []models.Waypoint, line []models.Coordinate) models.TwistGeometry {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	geometry := models.TwistGeometry{
		ID:            id,
		Name:          name,
		IsPaved:       paved,
		Waypoints:     waypoints,
		RouteGeometry: line,
	}
	s.twists[id] = &storedTwist{geometry: geometry, owned: true}
	s.visible[id] = true
	return geometry
}

func (s *twistStore) delete(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.twists[id]; !ok {
		return false
	}
	delete(s.twists, id)
	delete(s.visible, id)
	return true
}

// list filters, orders, and pages the stored twists the way the real
// server does: nearest to the map center first.
func (s *twistStore) list(req listQuery, pageSize, maxLoaded int) models.ListPage {
	s.mu.RLock()
	var all []*storedTwist
	for _, t := range s.twists {
		all = append(all, t)
	}
	s.mu.RUnlock()

	var filtered []*storedTwist
	for _, t := range all {
		if req.search != "" && !strings.Contains(strings.ToLower(t.geometry.Name), strings.ToLower(req.search)) {
			continue
		}
		switch req.ownership {
		case models.FilterOwn:
			if !t.owned {
				continue
			}
		case models.FilterNotOwn:
			if t.owned {
				continue
			}
		}
		switch req.pavement {
		case models.FilterPaved:
			if !t.geometry.IsPaved {
				continue
			}
		case models.FilterUnpaved:
			if t.geometry.IsPaved {
				continue
			}
		}
		switch req.ratings {
		case models.FilterRated:
			if !t.rated {
				continue
			}
		case models.FilterUnrated:
			if t.rated {
				continue
			}
		}
		filtered = append(filtered, t)
	}

	if req.center != nil {
		sort.Slice(filtered, func(i, j int) bool {
			return geo.HaversineMeters(*req.center, midpoint(filtered[i].geometry.RouteGeometry)) <
				geo.HaversineMeters(*req.center, midpoint(filtered[j].geometry.RouteGeometry))
		})
	} else {
		sort.Slice(filtered, func(i, j int) bool {
			return filtered[i].geometry.ID < filtered[j].geometry.ID
		})
	}

	start := (req.page - 1) * pageSize
	count := req.pages * pageSize
	if count > maxLoaded {
		count = maxLoaded
	}
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + count
	if end > len(filtered) {
		end = len(filtered)
	}

	s.mu.RLock()
	items := make([]models.ListItem, 0, end-start)
	for _, t := range filtered[start:end] {
		items = append(items, models.ListItem{
			ID:      t.geometry.ID,
			Name:    t.geometry.Name,
			IsPaved: t.geometry.IsPaved,
			Visible: s.visible[t.geometry.ID],
		})
	}
	s.mu.RUnlock()

	numPages := (len(items) + pageSize - 1) / pageSize
	if numPages == 0 {
		numPages = 1
	}
	return models.ListPage{Items: items, StartPage: req.page, NumPages: numPages}
}

func midpoint(line []models.Coordinate) models.Coordinate {
	if len(line) == 0 {
		return models.Coordinate{}
	}
	return line[len(line)/2]
}

type listQuery struct {
	page      int
	pages     int
	search    string
	ownership string
	pavement  string
	ratings   string
	center    *models.Coordinate
}

func parseListQuery(r *http.Request) listQuery {
	q := listQuery{page: 1, pages: 1}
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		q.page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("pages")); err == nil && v > 0 {
		q.pages = v
	}
	q.search = r.URL.Query().Get("search")
	q.ownership = r.URL.Query().Get("ownership")
	q.pavement = r.URL.Query().Get("pavement")
	q.ratings = r.URL.Query().Get("ratings")

	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("map_center_lat"), 64)
	lng, lngErr := strconv.ParseFloat(r.URL.Query().Get("map_center_lng"), 64)
	if latErr == nil && lngErr == nil {
		q.center = &models.Coordinate{Lat: lat, Lng: lng}
	}
	return q
}

func twistID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// getGeometry serves the full geometry for one Twist.
func getGeometry(store *twistStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := twistID(r)
		if err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid twist id")
			return
		}
		t, ok := store.get(id)
		if !ok {
			utils.Error(w, http.StatusNotFound, "twist not found")
			return
		}
		utils.Success(w, t.geometry)
	}
}

// listTwists serves the filtered, center-ordered, paged list.
func listTwists(store *twistStore, pageSize, maxLoaded int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := store.list(parseListQuery(r), pageSize, maxLoaded)
		utils.Success(w, page)
	}
}

// getDropdown serves the lazily-loaded detail fragment for one Twist.
func getDropdown(store *twistStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := twistID(r)
		if err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid twist id")
			return
		}
		t, ok := store.get(id)
		if !ok {
			utils.Error(w, http.StatusNotFound, "twist not found")
			return
		}
		surface := "unpaved"
		if t.geometry.IsPaved {
			surface = "paved"
		}
		utils.HTML(w, http.StatusOK, fmt.Sprintf(
			`<div class="twist-detail"><h4>%s</h4><p>%s, %d waypoints</p></div>`,
			t.geometry.Name, surface, len(t.geometry.Waypoints)))
	}
}

// createTwist accepts a finalized draft submission and announces it on
// the notification feed.
func createTwist(store *twistStore, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name          string              `json:"name"`
			IsPaved       bool                `json:"is_paved"`
			Waypoints     []models.Waypoint   `json:"waypoints"`
			RouteGeometry []models.Coordinate `json:"route_geometry"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(body.Waypoints) < 2 {
			utils.Error(w, http.StatusUnprocessableEntity, "a twist needs at least two waypoints")
			return
		}
		if body.Name == "" {
			body.Name = fmt.Sprintf("Untitled Twist %d", rand.Intn(1000))
		}

		geometry := store.create(body.Name, body.IsPaved, body.Waypoints, body.RouteGeometry)
		log.Printf("✅ Created twist %d %q (%d waypoints)", geometry.ID, geometry.Name, len(geometry.Waypoints))
		hub.Notify("twistAdded", map[string]interface{}{"id": geometry.ID})
		utils.JSON(w, http.StatusCreated, geometry)
	}
}

// deleteTwist removes a Twist and announces the removal.
func deleteTwist(store *twistStore, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := twistID(r)
		if err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid twist id")
			return
		}
		if !store.delete(id) {
			utils.Error(w, http.StatusNotFound, "twist not found")
			return
		}
		log.Printf("🗑️  Deleted twist %d", id)
		hub.Notify("twistDeleted", map[string]interface{}{"id": id})
		utils.Success(w, map[string]string{"status": "deleted"})
	}
}

// route serves an OSRM-shaped response with a synthetic polyline that
// interpolates between the requested waypoints.
func route() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		coords := chi.URLParam(r, "coords")
		pairs := strings.Split(coords, ";")
		if len(pairs) < 2 {
			utils.JSON(w, http.StatusBadRequest, map[string]string{"code": "InvalidQuery"})
			return
		}

		var points []models.Coordinate
		for _, pair := range pairs {
			parts := strings.Split(pair, ",")
			if len(parts) != 2 {
				utils.JSON(w, http.StatusBadRequest, map[string]string{"code": "InvalidQuery"})
				return
			}
			lng, lngErr := strconv.ParseFloat(parts[0], 64)
			lat, latErr := strconv.ParseFloat(parts[1], 64)
			if lngErr != nil || latErr != nil {
				utils.JSON(w, http.StatusBadRequest, map[string]string{"code": "InvalidQuery"})
				return
			}
			points = append(points, models.Coordinate{Lat: lat, Lng: lng})
		}

		var line []models.Coordinate
		distance := 0.0
		for i := 0; i+1 < len(points); i++ {
			distance += geo.HaversineMeters(points[i], points[i+1])
			segment := geo.Interpolate(points[i], points[i+1], 12)
			if i > 0 {
				segment = segment[1:]
			}
			line = append(line, segment...)
		}

		coordinates := make([][]float64, len(line))
		for i, p := range line {
			coordinates[i] = []float64{p.Lng, p.Lat}
		}
		utils.Success(w, map[string]interface{}{
			"code": "Ok",
			"routes": []map[string]interface{}{{
				"distance": distance,
				"duration": distance / 15.0,
				"geometry": map[string]interface{}{
					"type":        "LineString",
					"coordinates": coordinates,
				},
			}},
		})
	}
}
