// Package ws fans accepted telemetry readings out to live websocket
// subscribers. There is no buffering or replay: a subscriber connecting after
// a publish must query current state separately.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/thermasense/telemetry-engine/internal/domain"
	"github.com/thermasense/telemetry-engine/internal/observability"
)

// envelope is the one server-to-client message shape. No client-to-server
// message types are defined.
type envelope struct {
	Type string                  `json:"type"`
	Data domain.TelemetryReading `json:"data"`
}

// Hub tracks the set of open subscriber connections. Registration,
// unregistration, and fan-out all funnel through the Run loop, so the client
// set needs no lock.
type Hub struct {
	logger  *slog.Logger
	metrics *observability.Metrics

	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}
	clients    map[*client]struct{}
}

// NewHub creates a Hub. Run must be started before connections are served.
func NewHub(logger *slog.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{
		logger:     logger,
		metrics:    metrics,
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
		clients:    make(map[*client]struct{}),
	}
}

// Run owns the client set until ctx is cancelled, then closes every
// remaining connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				c.close()
			}
			h.clients = make(map[*client]struct{})
			h.metrics.SubscriberCount.Set(0)
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.metrics.SubscriberCount.Set(float64(len(h.clients)))
			h.logger.Debug("subscriber connected", "subscribers", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.close()
				h.metrics.SubscriberCount.Set(float64(len(h.clients)))
				h.logger.Debug("subscriber disconnected", "subscribers", len(h.clients))
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// The subscriber is not draining its queue; drop it
					// rather than letting it stall the fan-out.
					delete(h.clients, c)
					c.close()
					h.metrics.SubscriberCount.Set(float64(len(h.clients)))
				}
			}
			h.metrics.BroadcastMessages.Inc()
		}
	}
}

// Publish serializes one TELEMETRY envelope and queues it for delivery to
// every open connection. It never blocks and reports nothing to the caller;
// delivery failures surface only as dropped connections.
func (h *Hub) Publish(r domain.TelemetryReading) {
	msg, err := json.Marshal(envelope{Type: "TELEMETRY", Data: r})
	if err != nil {
		h.logger.Error("marshal telemetry envelope", "error", err)
		return
	}
	select {
	case h.broadcast <- msg:
	case <-h.done:
	default:
		h.logger.Warn("broadcast queue full, dropping message")
	}
}
