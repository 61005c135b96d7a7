// Package session tracks the lifetime of the authenticated session and
// drives the expiry-warning countdown.
package session

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"twistmap/internal/bus"
	"twistmap/internal/store"
)

// State is the controller's lifecycle phase.
type State int

const (
	// StateIdle means no session is active.
	StateIdle State = iota

	// StateArmed means a session is active and its warning has not fired.
	StateArmed

	// StateWarning means the session is inside the warning window and the
	// countdown is ticking.
	StateWarning

	// StateExpired means the session ran out. Terminal until the next
	// login.
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateWarning:
		return "warning"
	case StateExpired:
		return "expired"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

const expiryKey = "session.expires_at"

// Controller arms timers against the session expiry instant and turns
// them into bus events. All timer callbacks funnel through a single
// command loop so state transitions never race.
type Controller struct {
	db       *store.Store
	events   *bus.Bus
	lifetime time.Duration
	offset   time.Duration

	// onTick, when set, receives the whole seconds remaining once per
	// second while the warning is showing.
	onTick func(secondsLeft int)

	now func() time.Time

	mu        sync.Mutex
	state     State
	expiresAt time.Time
	warnTimer *time.Timer
	expTimer  *time.Timer
	ticker    *time.Ticker
	tickStop  chan struct{}

	warnCh   chan struct{}
	expireCh chan struct{}
	renewCh  chan chan error
	stopCh   chan struct{}
	done     chan struct{}
}

// New creates a stopped controller and subscribes it to auth events on
// the bus. Call Start to restore any persisted session and begin the
// command loop.
func New(db *store.Store, events *bus.Bus, lifetime, offset time.Duration, onTick func(secondsLeft int)) *Controller {
	c := &Controller{
		db:       db,
		events:   events,
		lifetime: lifetime,
		offset:   offset,
		onTick:   onTick,
		now:      time.Now,
		warnCh:   make(chan struct{}, 1),
		expireCh: make(chan struct{}, 1),
		renewCh:  make(chan chan error),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}

	events.Subscribe(bus.SessionSet, func(e bus.Event) {
		c.beginSession(e.Token)
	})
	events.Subscribe(bus.SessionCleared, func(bus.Event) {
		c.endSession()
	})
	events.Subscribe(bus.AuthLost, func(bus.Event) {
		// The server already considers the session dead. Expire now
		// rather than waiting for the local timer.
		c.forceExpire()
	})
	return c
}

// Start restores a persisted expiry instant, arms timers for it, and
// starts the command loop.
func (c *Controller) Start() {
	go c.run()

	raw, ok, err := c.db.Get(expiryKey)
	if err != nil {
		log.Printf("⚠️  Failed to read persisted session expiry: %v", err)
		return
	}
	if !ok {
		return
	}
	epoch, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("⚠️  Discarding corrupt session expiry %q", raw)
		c.db.Delete(expiryKey)
		return
	}
	expiresAt := time.Unix(epoch, 0)
	if !expiresAt.After(c.now()) {
		// Expired while the app was closed. Clean up quietly.
		c.db.Delete(expiryKey)
		return
	}
	log.Printf("🔑 Restored session, %s remaining", time.Until(expiresAt).Round(time.Second))
	c.armAt(expiresAt)
}

// Stop tears down the command loop and all timers.
func (c *Controller) Stop() {
	close(c.stopCh)
	<-c.done
	c.mu.Lock()
	c.clearTimersLocked()
	c.mu.Unlock()
}

// State returns the current lifecycle phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Remaining returns the time left on the session, zero when none is
// active.
func (c *Controller) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateArmed && c.state != StateWarning {
		return 0
	}
	if d := c.expiresAt.Sub(c.now()); d > 0 {
		return d
	}
	return 0
}

// Renew extends the session by a full lifetime. When a renewal races the
// expiry instant, expiry wins: the command loop drains the expiry signal
// before honoring the renewal.
func (c *Controller) Renew() error {
	reply := make(chan error, 1)
	select {
	case c.renewCh <- reply:
		return <-reply
	case <-c.stopCh:
		return fmt.Errorf("session controller stopped")
	}
}

func (c *Controller) run() {
	defer close(c.done)
	for {
		select {
		case <-c.warnCh:
			c.enterWarning()
		case <-c.expireCh:
			c.expire()
		case reply := <-c.renewCh:
			// Expiry posted before the renewal wins the race.
			select {
			case <-c.expireCh:
				c.expire()
				reply <- fmt.Errorf("session already expired")
			default:
				reply <- c.renew()
			}
		case <-c.stopCh:
			return
		}
	}
}

// beginSession seeds the expiry instant from the token's exp claim when
// it carries one, falling back to a full lifetime from now.
func (c *Controller) beginSession(token string) {
	expiresAt := c.now().Add(c.lifetime)
	if token != "" {
		if claimed, ok := tokenExpiry(token); ok {
			expiresAt = claimed
		}
	}
	c.persist(expiresAt)
	log.Printf("🔑 Session set, expires %s", expiresAt.Format(time.RFC3339))
	c.armAt(expiresAt)
}

func (c *Controller) endSession() {
	c.mu.Lock()
	c.clearTimersLocked()
	c.state = StateIdle
	c.expiresAt = time.Time{}
	c.mu.Unlock()
	c.db.Delete(expiryKey)
	log.Printf("🔑 Session cleared")
}

// armAt arms the warning and expiry timers for the given instant. When
// the warning window has already begun it fires immediately, seeding the
// countdown with whatever time actually remains.
func (c *Controller) armAt(expiresAt time.Time) {
	c.mu.Lock()
	c.clearTimersLocked()
	c.expiresAt = expiresAt
	c.state = StateArmed

	remaining := expiresAt.Sub(c.now())
	c.expTimer = time.AfterFunc(remaining, func() { c.signal(c.expireCh) })

	if c.offset > 0 {
		untilWarning := remaining - c.offset
		if untilWarning < 0 {
			untilWarning = 0
		}
		c.warnTimer = time.AfterFunc(untilWarning, func() { c.signal(c.warnCh) })
	}
	c.mu.Unlock()
}

func (c *Controller) signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (c *Controller) enterWarning() {
	c.mu.Lock()
	if c.state != StateArmed {
		c.mu.Unlock()
		return
	}
	c.state = StateWarning
	remaining := c.expiresAt.Sub(c.now())
	c.startCountdownLocked()
	c.mu.Unlock()

	log.Printf("⏳ Session expires in %s", remaining.Round(time.Second))
	if c.onTick != nil {
		c.onTick(int(remaining.Round(time.Second).Seconds()))
	}
}

func (c *Controller) startCountdownLocked() {
	c.ticker = time.NewTicker(time.Second)
	stop := make(chan struct{})
	c.tickStop = stop
	ticks := c.ticker.C
	go func() {
		for {
			select {
			case <-ticks:
				c.mu.Lock()
				if c.state != StateWarning {
					c.mu.Unlock()
					return
				}
				remaining := c.expiresAt.Sub(c.now())
				c.mu.Unlock()
				if remaining < 0 {
					remaining = 0
				}
				if c.onTick != nil {
					c.onTick(int(remaining.Round(time.Second).Seconds()))
				}
			case <-stop:
				return
			}
		}
	}()
}

func (c *Controller) renew() error {
	c.mu.Lock()
	if c.state != StateArmed && c.state != StateWarning {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("cannot renew session in state %s", state)
	}
	c.mu.Unlock()

	expiresAt := c.now().Add(c.lifetime)
	c.persist(expiresAt)
	c.armAt(expiresAt)
	log.Printf("🔑 Session renewed until %s", expiresAt.Format(time.RFC3339))
	c.events.Publish(bus.Event{Kind: bus.SessionSet})
	return nil
}

func (c *Controller) expire() {
	c.mu.Lock()
	if c.state == StateExpired || c.state == StateIdle {
		c.mu.Unlock()
		return
	}
	c.clearTimersLocked()
	c.state = StateExpired
	c.expiresAt = time.Time{}
	c.mu.Unlock()

	c.db.Delete(expiryKey)
	log.Printf("🔑 Session expired")
	c.events.Publish(bus.Event{Kind: bus.AuthChange})
	c.events.Publish(bus.FlashEvent("Your session has expired. Please log in again."))
}

func (c *Controller) forceExpire() {
	c.signal(c.expireCh)
}

func (c *Controller) persist(expiresAt time.Time) {
	if err := c.db.Set(expiryKey, strconv.FormatInt(expiresAt.Unix(), 10)); err != nil {
		log.Printf("⚠️  Failed to persist session expiry: %v", err)
	}
}

func (c *Controller) clearTimersLocked() {
	if c.warnTimer != nil {
		c.warnTimer.Stop()
		c.warnTimer = nil
	}
	if c.expTimer != nil {
		c.expTimer.Stop()
		c.expTimer = nil
	}
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	if c.tickStop != nil {
		close(c.tickStop)
		c.tickStop = nil
	}
}

// tokenExpiry pulls the exp claim out of a JWT without verifying the
// signature. The client never holds the signing key; the server is the
// authority and rejects a stale token regardless.
func tokenExpiry(token string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
