package session

import (
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twistmap/internal/bus"
	"twistmap/internal/store"
)

type eventLog struct {
	mu     sync.Mutex
	events []bus.Kind
}

func (l *eventLog) record(k bus.Kind) func(bus.Event) {
	return func(bus.Event) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.events = append(l.events, k)
	}
}

func (l *eventLog) count(k bus.Kind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, got := range l.events {
		if got == k {
			n++
		}
	}
	return n
}

type harness struct {
	controller *Controller
	db         *store.Store
	events     *bus.Bus
	log        *eventLog

	mu    sync.Mutex
	ticks []int
}

func newHarness(t *testing.T, lifetime, offset time.Duration) *harness {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	events := bus.New()
	h := &harness{db: db, events: events, log: &eventLog{}}
	events.Subscribe(bus.AuthChange, h.log.record(bus.AuthChange))
	events.Subscribe(bus.Flash, h.log.record(bus.Flash))

	h.controller = New(db, events, lifetime, offset, func(secondsLeft int) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.ticks = append(h.ticks, secondsLeft)
	})
	h.controller.Start()
	t.Cleanup(h.controller.Stop)
	return h
}

func (h *harness) tickCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.ticks)
}

func TestSessionSetArmsTimers(t *testing.T) {
	h := newHarness(t, time.Hour, 5*time.Minute)

	h.events.Publish(bus.Event{Kind: bus.SessionSet})

	assert.Equal(t, StateArmed, h.controller.State())
	remaining := h.controller.Remaining()
	assert.Greater(t, remaining, 59*time.Minute)
	assert.LessOrEqual(t, remaining, time.Hour)

	raw, ok, err := h.db.Get(expiryKey)
	require.NoError(t, err)
	require.True(t, ok, "expiry is persisted")
	epoch, err := strconv.ParseInt(raw, 10, 64)
	require.NoError(t, err)
	assert.InDelta(t, time.Now().Add(time.Hour).Unix(), epoch, 5)
}

func TestTokenExpiryClaimWins(t *testing.T) {
	h := newHarness(t, time.Hour, 5*time.Minute)

	claimed := time.Now().Add(10 * time.Minute)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "rider",
		"exp": claimed.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	h.events.Publish(bus.Event{Kind: bus.SessionSet, Token: signed})

	remaining := h.controller.Remaining()
	assert.Greater(t, remaining, 9*time.Minute)
	assert.Less(t, remaining, 11*time.Minute, "claim overrides configured lifetime")
}

func TestWarningThenExpiry(t *testing.T) {
	h := newHarness(t, 150*time.Millisecond, 80*time.Millisecond)

	h.events.Publish(bus.Event{Kind: bus.SessionSet})

	require.Eventually(t, func() bool {
		return h.controller.State() == StateWarning
	}, 2*time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, h.tickCount(), 1, "warning seeds the countdown")

	require.Eventually(t, func() bool {
		return h.controller.State() == StateExpired
	}, 2*time.Second, time.Millisecond)

	assert.Equal(t, 1, h.log.count(bus.AuthChange))
	assert.Equal(t, 1, h.log.count(bus.Flash))
	_, ok, err := h.db.Get(expiryKey)
	require.NoError(t, err)
	assert.False(t, ok, "persisted expiry removed on expiry")
	assert.Zero(t, h.controller.Remaining())
}

func TestZeroOffsetSkipsWarning(t *testing.T) {
	h := newHarness(t, 60*time.Millisecond, 0)

	h.events.Publish(bus.Event{Kind: bus.SessionSet})

	require.Eventually(t, func() bool {
		return h.controller.State() == StateExpired
	}, 2*time.Second, time.Millisecond)
	assert.Zero(t, h.tickCount(), "no countdown without a warning window")
}

func TestShortRemainingWarnsImmediately(t *testing.T) {
	h := newHarness(t, 250*time.Millisecond, time.Hour)

	h.events.Publish(bus.Event{Kind: bus.SessionSet})

	require.Eventually(t, func() bool {
		return h.controller.State() == StateWarning
	}, 2*time.Second, time.Millisecond)
	remaining := h.controller.Remaining()
	assert.LessOrEqual(t, remaining, 250*time.Millisecond,
		"countdown seeds from actual remaining, not the full offset")
}

func TestRenewExtendsAndRearms(t *testing.T) {
	h := newHarness(t, time.Hour, 5*time.Minute)
	h.events.Publish(bus.Event{Kind: bus.SessionSet})

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, h.controller.Renew())

	assert.Equal(t, StateArmed, h.controller.State())
	assert.Greater(t, h.controller.Remaining(), 59*time.Minute)
}

func TestRenewFromWarningReturnsToArmed(t *testing.T) {
	h := newHarness(t, 200*time.Millisecond, 150*time.Millisecond)
	h.events.Publish(bus.Event{Kind: bus.SessionSet})

	require.Eventually(t, func() bool {
		return h.controller.State() == StateWarning
	}, 2*time.Second, time.Millisecond)

	require.NoError(t, h.controller.Renew())
	assert.Equal(t, StateArmed, h.controller.State())
}

func TestRenewAfterExpiryFails(t *testing.T) {
	h := newHarness(t, 40*time.Millisecond, 0)
	h.events.Publish(bus.Event{Kind: bus.SessionSet})

	require.Eventually(t, func() bool {
		return h.controller.State() == StateExpired
	}, 2*time.Second, time.Millisecond)

	assert.Error(t, h.controller.Renew())
	assert.Equal(t, StateExpired, h.controller.State())
}

func TestExpirySignalBeatsQueuedRenewal(t *testing.T) {
	h := newHarness(t, time.Hour, 0)
	h.events.Publish(bus.Event{Kind: bus.SessionSet})

	// Post the expiry signal by hand, as if the timer fired in the same
	// instant the user clicked renew.
	h.controller.signal(h.controller.expireCh)
	err := h.controller.Renew()

	assert.Error(t, err)
	assert.Equal(t, StateExpired, h.controller.State())
	assert.Equal(t, 1, h.log.count(bus.AuthChange))
}

func TestSessionClearedGoesIdle(t *testing.T) {
	h := newHarness(t, time.Hour, 5*time.Minute)
	h.events.Publish(bus.Event{Kind: bus.SessionSet})
	require.Equal(t, StateArmed, h.controller.State())

	h.events.Publish(bus.Event{Kind: bus.SessionCleared})

	assert.Equal(t, StateIdle, h.controller.State())
	assert.Zero(t, h.controller.Remaining())
	_, ok, err := h.db.Get(expiryKey)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, h.log.count(bus.Flash), "logout is not an expiry")
}

func TestAuthLostForcesExpiry(t *testing.T) {
	h := newHarness(t, time.Hour, 5*time.Minute)
	h.events.Publish(bus.Event{Kind: bus.SessionSet})

	h.events.Publish(bus.Event{Kind: bus.AuthLost})

	require.Eventually(t, func() bool {
		return h.controller.State() == StateExpired
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, 1, h.log.count(bus.AuthChange))
}

func TestStartRestoresPersistedSession(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	expiresAt := time.Now().Add(30 * time.Minute)
	require.NoError(t, db.Set(expiryKey, strconv.FormatInt(expiresAt.Unix(), 10)))

	c := New(db, bus.New(), time.Hour, 5*time.Minute, nil)
	c.Start()
	t.Cleanup(c.Stop)

	assert.Equal(t, StateArmed, c.State())
	assert.Greater(t, c.Remaining(), 29*time.Minute)
}

func TestStartDiscardsStaleSession(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Set(expiryKey, strconv.FormatInt(time.Now().Add(-time.Minute).Unix(), 10)))

	c := New(db, bus.New(), time.Hour, 5*time.Minute, nil)
	c.Start()
	t.Cleanup(c.Stop)

	assert.Equal(t, StateIdle, c.State())
	_, ok, err := db.Get(expiryKey)
	require.NoError(t, err)
	assert.False(t, ok, "stale expiry removed quietly")
}
