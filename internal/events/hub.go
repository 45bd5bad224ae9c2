package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Event is one safety event with SSE framing metadata.
type Event struct {
	ID   int64          `json:"id,omitempty"`
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// client is one SSE subscriber connection.
type client struct {
	id     string
	writer http.ResponseWriter
	ctx    context.Context
	cancel context.CancelFunc
	events chan Event
	mu     sync.Mutex // protects writer
}

// Hub fans safety events out to SSE clients with ring-buffered resume.
//
// Lock ordering: h.mu (hub maps) before buffer.mu. Client event channels are
// never closed: teardown is signalled through the client context, so Publish
// can race with a disconnect without sending on a closed channel.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	buffer  *ringBuffer

	heartbeatInterval time.Duration
	heartbeatTicker   *time.Ticker
	stopHeartbeat     chan struct{}

	done chan struct{}
	wg   sync.WaitGroup
}

// NewHub creates an event hub keeping the last bufferSize events.
func NewHub(bufferSize int, heartbeatInterval time.Duration) *Hub {
	if bufferSize <= 0 {
		bufferSize = 50
	}
	return &Hub{
		clients:           make(map[string]*client),
		buffer:            newRingBuffer(bufferSize),
		heartbeatInterval: heartbeatInterval,
		done:              make(chan struct{}),
	}
}

// Publish buffers the event, assigns its monotonic ID, and delivers it to
// every connected client. Slow clients are skipped rather than blocking the
// control path.
func (h *Hub) Publish(event Event) {
	event.ID = h.buffer.append(event)

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case <-c.ctx.Done():
			continue
		case <-h.done:
			return
		case c.events <- event:
		case <-time.After(100 * time.Millisecond):
			// Drop for this client; the buffer still holds the event for resume.
		}
	}
}

// Emit publishes a typed event. Satisfies the sequencer's publisher port.
func (h *Hub) Emit(eventType string, data map[string]any) {
	h.Publish(Event{Type: eventType, Data: data})
}

// Subscribe attaches an SSE client and blocks until it disconnects or the
// hub stops. Supports Last-Event-ID resume.
func (h *Hub) Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientCtx, cancel := context.WithCancel(ctx)

	c := &client{
		id:     fmt.Sprintf("client_%d", time.Now().UnixNano()),
		writer: w,
		ctx:    clientCtx,
		cancel: cancel,
		events: make(chan Event, 100),
	}

	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		cancel()
		return fmt.Errorf("hub stopped")
	default:
	}
	h.clients[c.id] = c
	if len(h.clients) == 1 && h.heartbeatTicker == nil {
		h.startHeartbeatLocked()
	}
	h.mu.Unlock()

	if err := h.sendEvent(c, Event{Type: "ready", Data: map[string]any{"lastId": h.buffer.lastID()}}); err != nil {
		h.unregister(c.id)
		return fmt.Errorf("send ready event: %w", err)
	}

	if lastIDStr := r.Header.Get("Last-Event-ID"); lastIDStr != "" {
		if lastID, err := strconv.ParseInt(lastIDStr, 10, 64); err == nil && lastID > 0 {
			for _, event := range h.buffer.after(lastID) {
				if err := h.sendEvent(c, event); err != nil {
					h.unregister(c.id)
					return fmt.Errorf("replay events: %w", err)
				}
			}
		}
	}

	h.serveClient(c)
	return nil
}

func (h *Hub) serveClient(c *client) {
	defer h.unregister(c.id)

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-h.done:
			return
		case event := <-c.events:
			if err := h.sendEvent(c, event); err != nil {
				return
			}
		}
	}
}

func (h *Hub) sendEvent(c *client, event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if event.ID > 0 {
		if _, err := fmt.Fprintf(c.writer, "id: %d\n", event.ID); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(c.writer, "event: %s\n", event.Type); err != nil {
		return err
	}
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	if _, err := fmt.Fprintf(c.writer, "data: %s\n\n", data); err != nil {
		return err
	}
	if flusher, ok := c.writer.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

func (h *Hub) unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, exists := h.clients[clientID]; exists {
		c.cancel()
		delete(h.clients, clientID)
		if len(h.clients) == 0 {
			h.stopHeartbeatLocked()
		}
	}
}

// startHeartbeatLocked starts the SSE comment heartbeat. Caller holds h.mu.
func (h *Hub) startHeartbeatLocked() {
	if h.heartbeatInterval <= 0 {
		return
	}
	h.heartbeatTicker = time.NewTicker(h.heartbeatInterval)
	h.stopHeartbeat = make(chan struct{})

	ticker := h.heartbeatTicker
	stop := h.stopHeartbeat

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-ticker.C:
				h.sendHeartbeats()
			case <-stop:
				return
			case <-h.done:
				return
			}
		}
	}()
}

// stopHeartbeatLocked stops the heartbeat goroutine. Caller holds h.mu.
func (h *Hub) stopHeartbeatLocked() {
	if h.heartbeatTicker != nil {
		h.heartbeatTicker.Stop()
		h.heartbeatTicker = nil
	}
	if h.stopHeartbeat != nil {
		close(h.stopHeartbeat)
		h.stopHeartbeat = nil
	}
}

func (h *Hub) sendHeartbeats() {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.mu.Lock()
		_, err := fmt.Fprint(c.writer, ": heartbeat\n\n")
		if err == nil {
			if flusher, ok := c.writer.(http.Flusher); ok {
				flusher.Flush()
			}
		}
		c.mu.Unlock()
		if err != nil {
			c.cancel()
		}
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop shuts the hub down and disconnects every client.
func (h *Hub) Stop() {
	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		return
	default:
	}
	close(h.done)
	h.stopHeartbeatLocked()
	for _, c := range h.clients {
		c.cancel()
	}
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	h.wg.Wait()
}

// ringBuffer keeps the most recent events with monotonic IDs.
type ringBuffer struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
	nextID   int64
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{capacity: capacity, nextID: 1}
}

// append assigns the event's ID, stores it, and returns the ID.
func (b *ringBuffer) append(event Event) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	event.ID = b.nextID
	b.nextID++

	b.events = append(b.events, event)
	if len(b.events) > b.capacity {
		b.events = b.events[len(b.events)-b.capacity:]
	}
	return event.ID
}

// after returns buffered events with IDs strictly greater than lastID.
func (b *ringBuffer) after(lastID int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Event
	for _, event := range b.events {
		if event.ID > lastID {
			out = append(out, event)
		}
	}
	return out
}

// lastID returns the highest assigned event ID, or 0.
func (b *ringBuffer) lastID() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextID - 1
}
