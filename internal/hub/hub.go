// Package hub fans session events out to connected SSE and websocket clients.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"gridscope/internal/metrics"
	"gridscope/internal/session"
)

// DefaultKeepAlive is the interval between SSE keep-alive comments
const DefaultKeepAlive = 30 * time.Second

// ErrStopped is returned when subscribing to a hub that is no longer running
var ErrStopped = errors.New("hub stopped")

// Message is one encoded event ready to be written to a client
type Message struct {
	Type string
	Data []byte
}

// Client represents a connected subscriber
type Client struct {
	id     string
	events chan Message
}

// ID returns the client's identifier
func (c *Client) ID() string { return c.id }

// Events delivers encoded events. It is closed when the client is
// unsubscribed or the hub stops.
func (c *Client) Events() <-chan Message { return c.events }

// Hub manages client connections
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan session.Event
	done       chan struct{}
	log        *slog.Logger

	KeepAlive time.Duration
}

// New creates a new Hub
func New(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan session.Event, 256),
		done:       make(chan struct{}),
		log:        log,
		KeepAlive:  DefaultKeepAlive,
	}
}

// Run starts the hub's event loop and returns once ctx is cancelled
func (h *Hub) Run(ctx context.Context) error {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.SSEClients.Set(float64(n))
			h.log.Info("client connected", "client", client.id, "total", n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.events)
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.SSEClients.Set(float64(n))
			h.log.Info("client disconnected", "client", client.id, "total", n)

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				h.log.Error("failed to marshal event", "type", event.Type, "error", err)
				continue
			}
			msg := Message{Type: string(event.Type), Data: data}

			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.events <- msg:
				default:
					// Client is slow, skip this message
					h.log.Debug("client is slow, skipping message", "client", client.id, "type", msg.Type)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	h.mu.Lock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.events)
	}
	h.mu.Unlock()
	metrics.SSEClients.Set(0)
}

// Broadcast sends an event to all connected clients
func (h *Hub) Broadcast(event session.Event) {
	select {
	case h.broadcast <- event:
	default:
		h.log.Warn("broadcast channel full, dropping event", "type", event.Type)
	}
}

// Forward relays everything published on bus until ctx is cancelled
func (h *Hub) Forward(ctx context.Context, bus *session.EventBus) error {
	ch := make(chan session.Event, 256)
	bus.Subscribe(ch)
	defer bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.done:
			return nil
		case event := <-ch:
			h.Broadcast(event)
		}
	}
}

// Subscribe registers a new client
func (h *Hub) Subscribe() (*Client, error) {
	client := &Client{
		id:     uuid.NewString(),
		events: make(chan Message, 64),
	}
	select {
	case h.register <- client:
		return client, nil
	case <-h.done:
		return nil, ErrStopped
	}
}

// Unsubscribe removes a client and closes its event channel
func (h *Hub) Unsubscribe(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP handles SSE connections
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	client, err := h.Subscribe()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer h.Unsubscribe(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	fmt.Fprintf(w, ": connected %s\n\n", client.id)
	flusher.Flush()

	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.events:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Type, msg.Data); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
