package handlers

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// AssetEvent is the message broadcast to feed subscribers whenever an asset
// changes. UserID selects which feed receives it; an empty UserID goes to
// every feed.
type AssetEvent struct {
	Event   string `json:"event"`
	AssetID string `json:"assetID"`
	UserID  string `json:"userID,omitempty"`
}

type subscriber struct {
	userID string
	send   chan AssetEvent
}

// EventHub fans asset events out to websocket subscribers. Subscribers that
// cannot keep up are dropped rather than blocking the writer.
type EventHub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}

	upgrader websocket.Upgrader
}

// NewEventHub returns a hub ready for subscribers.
func NewEventHub() *EventHub {
	return &EventHub{
		subs: make(map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Broadcast delivers the event to every subscriber of the matching user feed.
// Safe to call on a nil hub.
func (h *EventHub) Broadcast(event AssetEvent) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if sub.userID != "" && event.UserID != "" && sub.userID != event.UserID {
			continue
		}
		select {
		case sub.send <- event:
		default:
			// Slow consumer, cut it loose.
			close(sub.send)
			delete(h.subs, sub)
		}
	}
}

func (h *EventHub) add(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[sub] = struct{}{}
}

func (h *EventHub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; ok {
		close(sub.send)
		delete(h.subs, sub)
	}
}

// SubscriberCount returns the number of connected subscribers.
func (h *EventHub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// EventsHandler upgrades the connection and streams the user's asset events
// until the client disconnects.
func (h *EventHub) EventsHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Warnf("websocket upgrade failed: %v", err)
		return
	}

	sub := &subscriber{userID: userID, send: make(chan AssetEvent, 16)}
	h.add(sub)

	zap.S().Debugf("event subscriber connected, user_id: '%v'", userID)

	// Reader only watches for the client going away.
	go func() {
		defer h.remove(sub)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		defer conn.Close()
		for event := range sub.send {
			b, err := json.Marshal(event)
			if err != nil {
				zap.S().Errorf("failed to marshal asset event: %v", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				h.remove(sub)
				return
			}
		}
	}()
}
