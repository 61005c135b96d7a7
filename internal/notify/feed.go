// Package notify maintains the server notification feed over a
// WebSocket and republishes incoming messages on the event bus.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"twistmap/internal/bus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 2048

	// Delay before redialing after the connection drops
	reconnectDelay = 5 * time.Second
)

// message is the wire envelope the server sends on the feed.
type message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Feed is the client end of the notification WebSocket.
type Feed struct {
	url    string
	events *bus.Bus
	dialer *websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// New creates a feed for the given ws:// or wss:// URL. Call Run to
// connect.
func New(url string, events *bus.Bus) *Feed {
	return &Feed{
		url:    url,
		events: events,
		dialer: websocket.DefaultDialer,
	}
}

// Run dials the feed and pumps messages until ctx is cancelled or Close
// is called. A dropped connection is redialed after a short delay.
func (f *Feed) Run(ctx context.Context) {
	for {
		if err := f.connect(ctx); err != nil {
			if ctx.Err() != nil || f.isClosed() {
				return
			}
			log.Printf("⚠️  Notification feed connect failed: %v", err)
		} else {
			f.readPump()
			if ctx.Err() != nil || f.isClosed() {
				return
			}
			log.Printf("🔌 Notification feed disconnected, redialing")
		}

		select {
		case <-time.After(reconnectDelay):
		case <-ctx.Done():
			return
		}
	}
}

// Close tears down the connection and stops any redial loop.
func (f *Feed) Close() {
	f.mu.Lock()
	f.closed = true
	conn := f.conn
	f.conn = nil
	f.mu.Unlock()
	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		conn.Close()
	}
}

func (f *Feed) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Feed) connect(ctx context.Context) error {
	conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return err
	}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		conn.Close()
		return nil
	}
	f.conn = conn
	f.mu.Unlock()
	log.Printf("🔌 Notification feed connected to %s", f.url)
	go f.pingLoop(conn)
	return nil
}

// readPump reads feed messages until the connection drops and turns
// each one into a bus event.
func (f *Feed) readPump() {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn == nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !f.isClosed() {
				log.Printf("⚠️  Notification feed read error: %v", err)
			}
			return
		}

		var msg message
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("⚠️  Invalid feed message: %v", err)
			continue
		}
		f.dispatch(msg)
	}
}

func (f *Feed) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for range ticker.C {
		if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
			return
		}
	}
}

// dispatch maps a feed message onto the bus vocabulary. Unknown types
// are logged and dropped so older clients survive newer servers.
func (f *Feed) dispatch(msg message) {
	switch bus.Kind(msg.Type) {
	case bus.TwistAdded, bus.TwistDeleted:
		var data struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			log.Printf("⚠️  Feed %s message missing id: %v", msg.Type, err)
			return
		}
		f.events.Publish(bus.Event{Kind: bus.Kind(msg.Type), TwistID: data.ID})

	case bus.Flash:
		var data struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			log.Printf("⚠️  Feed flash message malformed: %v", err)
			return
		}
		f.events.Publish(bus.FlashEvent(data.Message))

	case bus.SessionSet:
		var data struct {
			Token string `json:"token"`
		}
		if len(msg.Data) > 0 {
			json.Unmarshal(msg.Data, &data)
		}
		f.events.Publish(bus.Event{Kind: bus.SessionSet, Token: data.Token})

	case bus.SessionCleared, bus.RefreshTwists:
		f.events.Publish(bus.Event{Kind: bus.Kind(msg.Type)})

	default:
		log.Printf("⚠️  Unknown feed message type %q", msg.Type)
	}
}
