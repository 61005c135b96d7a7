// Package twistsapi is the HTTP client for the Twist server: the
// geometry, list, dropdown, creation, and deletion endpoints.
package twistsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"twistmap/internal/bus"
	"twistmap/internal/models"
)

// ErrAuthRequired is returned when the server rejects a request with an
// authentication or authorization status. The client publishes a single
// AuthLost notification before returning it.
var ErrAuthRequired = errors.New("authentication required")

// ErrNotFound is returned for 404 responses.
var ErrNotFound = errors.New("twist not found")

// BodyInterceptor rewrites an outgoing creation request body immediately
// before it is sent. Returning an error aborts the request.
type BodyInterceptor func(body map[string]any) error

// Client talks to the Twist server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	events     *bus.Bus

	mu           sync.Mutex
	interceptors []BodyInterceptor
}

// New creates a client for the Twist server at baseURL. Authentication
// failures observed on any request are published to events.
func New(baseURL string, events *bus.Bus) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		events: events,
	}
}

// Use registers an interceptor for creation request bodies. Interceptors
// run in registration order.
func (c *Client) Use(i BodyInterceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interceptors = append(c.interceptors, i)
}

// Geometry fetches the stored waypoints and route line for one Twist.
func (c *Client) Geometry(ctx context.Context, id int64) (models.TwistGeometry, error) {
	var geometry models.TwistGeometry
	err := c.getJSON(ctx, fmt.Sprintf("%s/twists/%d/geometry", c.baseURL, id), &geometry)
	return geometry, err
}

// List fetches a window of the rendered Twist list.
func (c *Client) List(ctx context.Context, req models.ListRequest) (models.ListPage, error) {
	params := url.Values{}
	if req.Page > 0 {
		params.Set("page", strconv.Itoa(req.Page))
	}
	if req.Pages > 0 {
		params.Set("pages", strconv.Itoa(req.Pages))
	}
	if req.OpenID != 0 {
		params.Set("open_id", strconv.FormatInt(req.OpenID, 10))
	}
	if req.Search != "" {
		params.Set("search", req.Search)
	}
	if req.Ownership != "" {
		params.Set("ownership", req.Ownership)
	}
	if req.Pavement != "" {
		params.Set("pavement", req.Pavement)
	}
	if req.Ratings != "" {
		params.Set("ratings", req.Ratings)
	}
	if req.MapCenter != nil {
		params.Set("map_center_lat", strconv.FormatFloat(req.MapCenter.Lat, 'f', -1, 64))
		params.Set("map_center_lng", strconv.FormatFloat(req.MapCenter.Lng, 'f', -1, 64))
	}

	var page models.ListPage
	err := c.getJSON(ctx, c.baseURL+"/twists/templates/list?"+params.Encode(), &page)
	return page, err
}

// DropdownContent fetches the lazily-loaded detail fragment for one
// Twist's list dropdown.
func (c *Client) DropdownContent(ctx context.Context, id int64) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/twists/%d/templates/dropdown", c.baseURL, id), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", c.wrapTransport(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if err := c.checkStatus(resp.StatusCode, body); err != nil {
		return "", err
	}
	return string(body), nil
}

// Create submits a new Twist. The body starts as the surrounding form's
// fields (name, is_paved); registered interceptors extend it with the
// draft's waypoints and route geometry immediately before send.
func (c *Client) Create(ctx context.Context, body map[string]any) error {
	c.mu.Lock()
	interceptors := make([]BodyInterceptor, len(c.interceptors))
	copy(interceptors, c.interceptors)
	c.mu.Unlock()

	for _, intercept := range interceptors {
		if err := intercept(body); err != nil {
			return fmt.Errorf("creation request rejected: %w", err)
		}
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode creation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/twists", bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.wrapTransport(ctx, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	return c.checkStatus(resp.StatusCode, respBody)
}

// Delete removes a Twist.
func (c *Client) Delete(ctx context.Context, id int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/twists/%d", c.baseURL, id), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.wrapTransport(ctx, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	return c.checkStatus(resp.StatusCode, body)
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.wrapTransport(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := c.checkStatus(resp.StatusCode, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) wrapTransport(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("request failed: %w", err)
}

func (c *Client) checkStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		if c.events != nil {
			c.events.Publish(bus.Event{Kind: bus.AuthLost})
		}
		return ErrAuthRequired
	case status == http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("server returned status %d: %s", status, string(body))
	}
}
