// Package routing is the OSRM routing-service client used while drawing
// a route.
package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"twistmap/internal/models"
)

// ErrNoRoute is returned when the routing service cannot produce a route
// between the requested waypoints.
var ErrNoRoute = errors.New("routing service returned no route")

// Client calls the OSRM HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a routing client against baseURL
// (e.g. https://router.project-osrm.org).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// routeResponse mirrors the OSRM /route/v1 response shape.
type routeResponse struct {
	Routes []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"` // [lng, lat] pairs
		} `json:"geometry"`
	} `json:"routes"`
}

// Route fetches the driving geometry through the given waypoints, in
// order. The context cancels the request cooperatively; a cancelled call
// returns ctx.Err() and nothing else.
func (c *Client) Route(ctx context.Context, waypoints []models.Waypoint) ([]models.Coordinate, error) {
	if len(waypoints) < 2 {
		return nil, fmt.Errorf("need at least 2 waypoints, got %d", len(waypoints))
	}

	// OSRM takes semicolon-joined lng,lat pairs.
	var path strings.Builder
	for i, w := range waypoints {
		if i > 0 {
			path.WriteString(";")
		}
		fmt.Fprintf(&path, "%f,%f", w.Lng, w.Lat)
	}

	url := fmt.Sprintf(
		"%s/route/v1/driving/%s?overview=full&geometries=geojson",
		c.baseURL, path.String(),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("routing request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to read routing response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("routing service returned status %d: %s", resp.StatusCode, string(body))
	}

	var decoded routeResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to parse routing response: %w", err)
	}
	if len(decoded.Routes) == 0 {
		return nil, ErrNoRoute
	}

	// Swap the wire's lng,lat order to the engine's lat,lng.
	raw := decoded.Routes[0].Geometry.Coordinates
	geometry := make([]models.Coordinate, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			continue
		}
		geometry = append(geometry, models.Coordinate{Lat: pair[1], Lng: pair[0]})
	}
	if len(geometry) == 0 {
		return nil, ErrNoRoute
	}
	return geometry, nil
}
