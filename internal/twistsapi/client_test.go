package twistsapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twistmap/internal/bus"
	"twistmap/internal/models"
)

func TestGeometry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/twists/7/geometry", r.URL.Path)
		json.NewEncoder(w).Encode(models.TwistGeometry{
			ID:      7,
			Name:    "Coast Loop",
			IsPaved: true,
			Waypoints: []models.Waypoint{
				{Lat: 49.1, Lng: -122.5, Name: "Start"},
				{Lat: 49.3, Lng: -122.7, Name: "End"},
			},
			RouteGeometry: []models.Coordinate{{Lat: 49.1, Lng: -122.5}},
		})
	}))
	defer server.Close()

	geometry, err := New(server.URL, bus.New()).Geometry(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Coast Loop", geometry.Name)
	assert.Len(t, geometry.Waypoints, 2)
}

func TestList_EnrichedQueryParameters(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = map[string]string{}
		for k := range r.URL.Query() {
			got[k] = r.URL.Query().Get(k)
		}
		json.NewEncoder(w).Encode(models.ListPage{StartPage: 1, NumPages: 2})
	}))
	defer server.Close()

	page, err := New(server.URL, bus.New()).List(context.Background(), models.ListRequest{
		Page:      1,
		Pages:     3,
		OpenID:    12,
		Ownership: models.FilterOwn,
		MapCenter: &models.Coordinate{Lat: 49.25, Lng: -123.1},
	})
	require.NoError(t, err)

	assert.Equal(t, "3", got["pages"])
	assert.Equal(t, "12", got["open_id"])
	assert.Equal(t, "49.25", got["map_center_lat"])
	assert.Equal(t, "-123.1", got["map_center_lng"])
	assert.Equal(t, "own", got["ownership"])
	assert.Equal(t, 2, page.NumPages)
}

func TestCreate_InterceptorInjectsSubmission(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := New(server.URL, bus.New())
	client.Use(func(body map[string]any) error {
		body["waypoints"] = []models.Waypoint{{Lat: 49.1, Lng: -122.5, Name: "Start"}}
		body["route_geometry"] = []models.Coordinate{{Lat: 49.1, Lng: -122.5}}
		return nil
	})

	err := client.Create(context.Background(), map[string]any{
		"name":     "Coast Loop",
		"is_paved": true,
	})
	require.NoError(t, err)

	assert.Equal(t, "Coast Loop", received["name"])
	assert.Contains(t, received, "waypoints")
	assert.Contains(t, received, "route_geometry")
}

func TestCreate_InterceptorAbort(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := New(server.URL, bus.New())
	client.Use(func(map[string]any) error {
		return errors.New("draft not submittable")
	})

	err := client.Create(context.Background(), map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "draft not submittable")
	assert.False(t, called, "request must not reach the server")
}

func TestAuthFailurePublishesSingleAuthLost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	events := bus.New()
	lost := 0
	events.Subscribe(bus.AuthLost, func(bus.Event) { lost++ })

	_, err := New(server.URL, events).Geometry(context.Background(), 1)
	assert.ErrorIs(t, err, ErrAuthRequired)
	assert.Equal(t, 1, lost)
}

func TestNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := New(server.URL, bus.New()).Geometry(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}
