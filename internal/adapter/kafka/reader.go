// Package kafka consumes the external realtime telemetry feed and hands each
// decoded reading to the engine.
package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/thermasense/telemetry-engine/internal/config"
	"github.com/thermasense/telemetry-engine/internal/domain"
	"github.com/thermasense/telemetry-engine/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Ingestor is the slice of the engine the reader needs.
type Ingestor interface {
	Accept(temp, humidity float64, source domain.Source) error
}

// Reader pulls feed messages from Kafka and forwards them to the ingestor.
type Reader struct {
	reader  *kafkago.Reader
	gateway Ingestor
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewReader builds a consumer for the feed topic. The group starts at the
// last offset: the feed carries live readings, so replaying a backlog after
// downtime would only churn stale state.
func NewReader(cfg *config.Config, gateway Ingestor, logger *slog.Logger, metrics *observability.Metrics) *Reader {
	return &Reader{
		reader: kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:     cfg.KafkaBrokers,
			Topic:       cfg.KafkaFeedTopic,
			GroupID:     cfg.KafkaGroupID,
			StartOffset: kafkago.LastOffset,
			MinBytes:    1,
			MaxBytes:    1 << 20,
		}),
		gateway: gateway,
		logger:  logger,
		metrics: metrics,
	}
}

// Run consumes until ctx is cancelled. Broker errors back off and retry;
// malformed payloads are skipped. Neither stops the loop.
func (r *Reader) Run(ctx context.Context) error {
	backoff := initialBackoff
	for {
		msg, err := r.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			r.logger.Error("read feed message", "error", err, "backoff", backoff)
			r.metrics.FeedErrors.Inc()
			if err := sleepWithContext(ctx, backoff); err != nil {
				return nil
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = initialBackoff

		temp, humidity, err := domain.ParseFeedPayload(msg.Value)
		if err != nil {
			r.logger.Warn("skipping malformed feed payload", "error", err, "offset", msg.Offset)
			r.metrics.FeedErrors.Inc()
			continue
		}

		if err := r.gateway.Accept(temp, humidity, domain.SourceFeed); err != nil {
			r.logger.Warn("feed reading rejected", "error", err, "offset", msg.Offset)
		}
	}
}

// Close releases the consumer's broker connections.
func (r *Reader) Close() error {
	return r.reader.Close()
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
