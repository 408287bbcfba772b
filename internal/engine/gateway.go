// Package engine holds the ingestion gateway: the single serialization point
// through which every telemetry reading enters the system, whether it arrives
// on the direct HTTP endpoint or from the realtime feed.
package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/thermasense/telemetry-engine/internal/domain"
	"github.com/thermasense/telemetry-engine/internal/observability"
)

// Broadcaster fans an accepted reading out to live subscribers. Publish must
// not block the ingestion path and must not surface delivery failures.
type Broadcaster interface {
	Publish(r domain.TelemetryReading)
}

// AlertEvaluator judges a derived heat index for alert dispatch.
type AlertEvaluator interface {
	Evaluate(heatIndex float64, r domain.TelemetryReading)
}

// Current is the latest accepted reading plus its read-time freshness.
// IsFresh is derived when queried, never cached, so a sensor going silent is
// reflected without further writes.
type Current struct {
	Temp      float64
	Humidity  float64
	Timestamp time.Time
	IsFresh   bool
}

// Gateway owns the current-state cache and the rolling history, and drives
// the fixed side-effect sequence for each accepted reading: state update,
// history append, heat-index computation, broadcast, alert evaluation.
// A mutex serializes Accept calls so concurrent readings never interleave
// that sequence.
type Gateway struct {
	freshness   time.Duration
	clock       clockwork.Clock
	broadcaster Broadcaster
	alerts      AlertEvaluator
	logger      *slog.Logger
	metrics     *observability.Metrics

	mu         sync.Mutex
	latest     domain.TelemetryReading
	lastUpdate time.Time
	history    *history
}

// New creates a Gateway. Broadcaster and alert evaluator may be nil, which
// disables the corresponding side effect (used by tests and degraded wiring).
func New(capacity int, freshness time.Duration, b Broadcaster, a AlertEvaluator, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Gateway {
	return &Gateway{
		freshness:   freshness,
		clock:       clock,
		broadcaster: b,
		alerts:      a,
		logger:      logger,
		metrics:     metrics,
		history:     newHistory(capacity),
	}
}

// Accept validates a reading and, on success, applies its side effects in
// order: overwrite current state, append to history, compute the heat index,
// publish to subscribers, evaluate the alert with that same heat index.
// Broadcast delivery and alert notification sends are fire-and-forget; they
// never delay the next Accept.
//
// A rejected reading mutates nothing.
func (g *Gateway) Accept(temp, humidity float64, source domain.Source) error {
	if err := domain.ValidateValues(temp, humidity); err != nil {
		g.metrics.ReadingsRejected.Inc()
		g.logger.Warn("reading rejected", "source", source, "error", err)
		return err
	}

	g.mu.Lock()
	now := g.clock.Now()
	r := domain.TelemetryReading{Temp: temp, Humidity: humidity, ObservedAt: now}
	g.latest = r
	g.lastUpdate = now
	g.history.Append(r)
	hi := domain.HeatIndex(temp, humidity)
	if g.broadcaster != nil {
		g.broadcaster.Publish(r)
	}
	if g.alerts != nil {
		g.alerts.Evaluate(hi, r)
	}
	g.mu.Unlock()

	g.metrics.ReadingsAccepted.WithLabelValues(string(source)).Inc()
	g.metrics.CurrentHeatIndex.Set(hi)
	g.logger.Debug("reading accepted",
		"source", source, "temp", temp, "humidity", humidity, "heat_index", hi)
	return nil
}

// Current returns the latest accepted reading with freshness computed at
// read time against the configured window.
func (g *Gateway) Current() Current {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Current{
		Temp:      g.latest.Temp,
		Humidity:  g.latest.Humidity,
		Timestamp: g.latest.ObservedAt,
		IsFresh:   !g.lastUpdate.IsZero() && g.clock.Since(g.lastUpdate) < g.freshness,
	}
}

// History returns a point-in-time copy of the rolling history in insertion order.
func (g *Gateway) History() []domain.TelemetryReading {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.history.Snapshot()
}

// Analytics aggregates a history snapshot into time buckets for the given granularity.
func (g *Gateway) Analytics(granularity domain.Granularity) []domain.Bucket {
	return domain.Aggregate(g.History(), granularity)
}
