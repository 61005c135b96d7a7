// Package viewstore remembers the last map viewport between sessions.
package viewstore

import (
	"encoding/json"
	"fmt"

	"twistmap/internal/models"
	"twistmap/internal/store"
)

const viewportKey = "map.viewport"

// ViewStore persists the map viewport in the durable client store.
type ViewStore struct {
	kv *store.Store
}

// New wraps kv with the viewport slot.
func New(kv *store.Store) *ViewStore {
	return &ViewStore{kv: kv}
}

// Save records the viewport as the one to restore on next load.
func (v *ViewStore) Save(viewport models.Viewport) error {
	data, err := json.Marshal(viewport)
	if err != nil {
		return fmt.Errorf("failed to encode viewport: %w", err)
	}
	return v.kv.Set(viewportKey, string(data))
}

// Load returns the saved viewport, and whether one was saved.
func (v *ViewStore) Load() (models.Viewport, bool, error) {
	var viewport models.Viewport

	value, ok, err := v.kv.Get(viewportKey)
	if err != nil || !ok {
		return viewport, false, err
	}

	if err := json.Unmarshal([]byte(value), &viewport); err != nil {
		// A corrupt slot is treated as unset rather than fatal; the map
		// falls back to its default view.
		return models.Viewport{}, false, nil
	}
	return viewport, true, nil
}

// Clear forgets the saved viewport.
func (v *ViewStore) Clear() error {
	return v.kv.Delete(viewportKey)
}
