package routing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twistmap/internal/models"
)

func TestRoute_SwapsLngLatOrder(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, "full", r.URL.Query().Get("overview"))
		assert.Equal(t, "geojson", r.URL.Query().Get("geometries"))
		w.Write([]byte(`{"routes":[{"geometry":{"coordinates":[[-123.1,49.2],[-123.0,49.3]]}}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	geometry, err := client.Route(context.Background(), []models.Waypoint{
		{Lat: 49.2, Lng: -123.1, Name: "Start"},
		{Lat: 49.3, Lng: -123.0, Name: "End"},
	})
	require.NoError(t, err)

	assert.Contains(t, gotPath, "/route/v1/driving/")
	assert.Contains(t, gotPath, "-123.1") // lng first on the wire
	require.Len(t, geometry, 2)
	assert.Equal(t, models.Coordinate{Lat: 49.2, Lng: -123.1}, geometry[0])
	assert.Equal(t, models.Coordinate{Lat: 49.3, Lng: -123.0}, geometry[1])
}

func TestRoute_NoRoutes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"routes":[]}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Route(context.Background(), []models.Waypoint{
		{Lat: 49.2, Lng: -123.1},
		{Lat: 49.3, Lng: -123.0},
	})
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestRoute_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Route(context.Background(), []models.Waypoint{
		{Lat: 49.2, Lng: -123.1},
		{Lat: 49.3, Lng: -123.0},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestRoute_Cancellation(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := NewClient(server.URL).Route(ctx, []models.Waypoint{
		{Lat: 49.2, Lng: -123.1},
		{Lat: 49.3, Lng: -123.0},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRoute_TooFewWaypoints(t *testing.T) {
	_, err := NewClient("http://example.invalid").Route(context.Background(), []models.Waypoint{
		{Lat: 49.2, Lng: -123.1},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 2")
}
