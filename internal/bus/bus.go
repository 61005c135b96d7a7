// Package bus is the shared event bus coupling the map engines together.
// Notification kinds form a closed enum matching the server's event
// vocabulary; each kind carries a typed payload on the Event struct.
package bus

import "sync"

// Kind names one notification on the bus.
type Kind string

const (
	// Flash triggers a short-lived user-visible notice. Payload: Message.
	Flash Kind = "flashMessage"

	// AuthChange signals that the user's authentication status may have
	// changed (login, logout, hard expiry). No payload.
	AuthChange Kind = "authChange"

	// SessionSet signals that a new session cookie has been set.
	// Payload: Token (the cookie value, may be empty).
	SessionSet Kind = "sessionSet"

	// SessionCleared signals that the session cookie has been cleared.
	// No payload.
	SessionCleared Kind = "sessionCleared"

	// AuthLost signals that a request failed with an authentication or
	// authorization status. No payload.
	AuthLost Kind = "authLost"

	// TwistAdded signals that a new Twist has been added. Payload: TwistID.
	TwistAdded Kind = "twistAdded"

	// TwistDeleted signals that a Twist has been deleted. Payload: TwistID.
	TwistDeleted Kind = "twistDeleted"

	// TwistsLoaded signals that a set of Twists has been loaded into the
	// list. Payload: StartPage and NumPages.
	TwistsLoaded Kind = "twistsLoaded"

	// RefreshTwists signals that the Twist list needs to be refreshed,
	// preserving the user's scroll depth. No payload.
	RefreshTwists Kind = "refreshTwists"
)

// Event is one notification with its payload. Only the fields documented
// for the Kind are meaningful.
type Event struct {
	Kind      Kind
	Message   string
	Token     string
	TwistID   int64
	StartPage int
	NumPages  int
}

// FlashEvent builds a Flash notification.
func FlashEvent(message string) Event {
	return Event{Kind: Flash, Message: message}
}

// TwistsLoadedEvent builds a TwistsLoaded notification.
func TwistsLoadedEvent(startPage, numPages int) Event {
	return Event{Kind: TwistsLoaded, StartPage: startPage, NumPages: numPages}
}

// Handler receives published events for one subscribed kind.
type Handler func(Event)

// Bus dispatches events synchronously to subscribers in subscription
// order. Handlers may publish further events; the bus does not hold its
// lock during dispatch.
type Bus struct {
	mu   sync.RWMutex
	subs map[Kind][]Handler
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[Kind][]Handler)}
}

// Subscribe registers h for every future event of kind k.
func (b *Bus) Subscribe(k Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[k] = append(b.subs[k], h)
}

// Publish delivers e to every subscriber of its kind.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.subs[e.Kind]))
	copy(handlers, b.subs[e.Kind])
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}
