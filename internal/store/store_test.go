package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetGetRoundTrip(t *testing.T) {
	s := openTestStore(t)

	_, ok, err := s.Get("session.expires_at")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set("session.expires_at", "1772400000"))

	value, ok, err := s.Get("session.expires_at")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1772400000", value)
}

func TestSetOverwrites(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Set("k", "one"))
	require.NoError(t, s.Set("k", "two"))

	value, ok, err := s.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "two", value)
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Set("k", "v"))
	require.NoError(t, s.Delete("k"))
	require.NoError(t, s.Delete("k")) // deleting a missing key is fine

	_, ok, err := s.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set("map.viewport", `{"center":{"lat":49,"lng":-123},"zoom":11}`))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	value, ok, err := s.Get("map.viewport")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, value, `"zoom":11`)
}
