// Package ws streams engine events to dashboard clients over websockets.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/vaultbot/internal/domain"
	"github.com/alanyoungcy/vaultbot/internal/metrics"
)

// defaultChannels are the bus channels relayed to clients. A new client
// receives all of them until it unsubscribes.
var defaultChannels = []string{
	domain.ChannelActivity,
	domain.ChannelTrade,
	domain.ChannelVault,
	domain.ChannelStatus,
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Auth and CORS middleware run before the upgrade.
	CheckOrigin: func(*http.Request) bool { return true },
}

// SnapshotSource supplies the engine state sent to a client on connect.
type SnapshotSource interface {
	Snapshot() domain.EngineSnapshot
}

// Hub relays engine events from the signal bus to connected clients. Every
// process sharing the bus sees the same stream.
type Hub struct {
	bus    domain.SignalBus
	source SnapshotSource
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates a hub. With a nil source clients get no initial snapshot.
func NewHub(bus domain.SignalBus, source SnapshotSource, logger *slog.Logger) *Hub {
	return &Hub{
		bus:     bus,
		source:  source,
		logger:  logger.With(slog.String("component", "ws_hub")),
		clients: make(map[*client]struct{}),
	}
}

// Run subscribes to every relayed channel and fans messages out until ctx
// is cancelled, then disconnects all clients.
func (h *Hub) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, ch := range defaultChannels {
		msgs, err := h.bus.Subscribe(ctx, ch)
		if err != nil {
			h.logger.ErrorContext(ctx, "ws: subscribe failed",
				slog.String("channel", ch),
				slog.String("error", err.Error()),
			)
			continue
		}
		wg.Add(1)
		go func(channel string, msgs <-chan []byte) {
			defer wg.Done()
			h.relay(ctx, channel, msgs)
		}(ch, msgs)
	}

	<-ctx.Done()
	wg.Wait()

	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		h.dropLocked(c)
	}
	h.mu.Unlock()
	return ctx.Err()
}

func (h *Hub) relay(ctx context.Context, channel string, msgs <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgs:
			if !ok {
				h.logger.Warn("ws: bus subscription closed", slog.String("channel", channel))
				return
			}
			h.fanout(channel, data)
		}
	}
}

// fanout delivers data to every client subscribed to channel. A client whose
// buffer is full misses the message.
func (h *Hub) fanout(channel string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.isSubscribed(channel) {
			continue
		}
		if !c.enqueue(data) {
			h.logger.Warn("ws: slow client, message dropped", slog.String("channel", channel))
		}
	}
}

// HandleWS upgrades the request, sends the current snapshot and attaches
// the client to every default channel.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newClient(h, conn)
	if snap, ok := h.snapshot(); ok {
		c.enqueue(snap)
	}
	if !h.attach(c) {
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) snapshot() ([]byte, bool) {
	if h.source == nil {
		return nil, false
	}
	data, err := json.Marshal(domain.Event{
		Kind:      "snapshot",
		Timestamp: time.Now().UTC(),
		Payload:   h.source.Snapshot(),
	})
	if err != nil {
		h.logger.Warn("ws: encode snapshot", slog.String("error", err.Error()))
		return nil, false
	}
	return data, true
}

func (h *Hub) attach(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	metrics.WSClients.Set(float64(len(h.clients)))
	h.logger.Info("ws: client connected", slog.Int("clients", len(h.clients)))
	return true
}

func (h *Hub) detach(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	h.dropLocked(c)
	h.logger.Info("ws: client disconnected", slog.Int("clients", len(h.clients)))
}

func (h *Hub) dropLocked(c *client) {
	delete(h.clients, c)
	close(c.send)
	metrics.WSClients.Set(float64(len(h.clients)))
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
