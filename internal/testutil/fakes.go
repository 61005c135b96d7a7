// Package testutil provides in-memory fakes for the engine's external
// collaborators (map surface, rendered list, window).
package testutil

import (
	"sync"

	"twistmap/internal/mapview"
	"twistmap/internal/models"
)

// FakeMap is an in-memory mapview.Map that records pan/fit calls.
type FakeMap struct {
	mu     sync.Mutex
	layers map[string]mapview.Layer

	PanCalls  []models.Coordinate
	FitCalls  []mapview.Bounds
	ZoomLevel int
	Center    models.Coordinate

	// PixelCoordinate is returned by PixelToCoordinate.
	PixelCoordinate models.Coordinate
	PixelCalls      [][2]int
}

// NewFakeMap creates an empty FakeMap.
func NewFakeMap() *FakeMap {
	return &FakeMap{layers: make(map[string]mapview.Layer), ZoomLevel: 11}
}

func (m *FakeMap) AddLayer(id string, layer mapview.Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.layers[id] = layer
}

func (m *FakeMap) RemoveLayer(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.layers, id)
}

func (m *FakeMap) HasLayer(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.layers[id]
	return ok
}

// Layer returns the attached layer for id, if any.
func (m *FakeMap) Layer(id string) (mapview.Layer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.layers[id]
	return l, ok
}

// LayerCount returns the number of attached layers.
func (m *FakeMap) LayerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.layers)
}

func (m *FakeMap) PanTo(center models.Coordinate, zoom int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PanCalls = append(m.PanCalls, center)
	m.Center = center
	m.ZoomLevel = zoom
}

func (m *FakeMap) FitBounds(b mapview.Bounds) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FitCalls = append(m.FitCalls, b)
}

func (m *FakeMap) PixelToCoordinate(x, y int) models.Coordinate {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PixelCalls = append(m.PixelCalls, [2]int{x, y})
	return m.PixelCoordinate
}

func (m *FakeMap) Viewport() models.Viewport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.Viewport{Center: m.Center, Zoom: m.ZoomLevel}
}

// FakeWindow reports a fixed window size.
type FakeWindow struct {
	Width, Height int
}

func (w FakeWindow) Size() (int, int) {
	return w.Width, w.Height
}

// FakeListView is an in-memory rendered Twist list.
type FakeListView struct {
	mu sync.Mutex

	Items            []models.ListItem
	OpenStates       map[int64]bool
	DropdownContents map[int64]string
	SelectionCleared int
}

// NewFakeListView creates an empty FakeListView.
func NewFakeListView() *FakeListView {
	return &FakeListView{
		OpenStates:       make(map[int64]bool),
		DropdownContents: make(map[int64]string),
	}
}

// Apply replaces or extends the rendered items, as the real view does
// when it swaps in server markup.
func (v *FakeListView) Apply(page models.ListPage) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if page.StartPage == 1 {
		v.Items = append([]models.ListItem(nil), page.Items...)
		return
	}
	v.Items = append(v.Items, page.Items...)
}

func (v *FakeListView) VisibleIDs() []int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	var ids []int64
	for _, item := range v.Items {
		if item.Visible {
			ids = append(ids, item.ID)
		}
	}
	return ids
}

func (v *FakeListView) SetDropdownOpen(id int64, open bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.OpenStates[id] = open
}

func (v *FakeListView) SetDropdownContent(id int64, content string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.DropdownContents[id] = content
}

func (v *FakeListView) ClearTextSelection() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.SelectionCleared++
}
