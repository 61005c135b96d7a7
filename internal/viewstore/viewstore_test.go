package viewstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twistmap/internal/models"
	"twistmap/internal/store"
)

func newTestViewStore(t *testing.T) *ViewStore {
	t.Helper()
	kv, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return New(kv)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	vs := newTestViewStore(t)

	_, ok, err := vs.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	saved := models.Viewport{
		Center: models.Coordinate{Lat: 49.2827, Lng: -123.1207},
		Zoom:   12,
	}
	require.NoError(t, vs.Save(saved))

	loaded, ok, err := vs.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, saved, loaded)
}

func TestClear(t *testing.T) {
	vs := newTestViewStore(t)

	require.NoError(t, vs.Save(models.Viewport{Zoom: 9}))
	require.NoError(t, vs.Clear())

	_, ok, err := vs.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}
