// Command telemetryd runs the ThermaSense telemetry engine: HTTP ingestion
// and queries, the Kafka realtime feed consumer, websocket fan-out, and
// heat-index email alerting.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/thermasense/telemetry-engine/internal/adapter/http"
	kafkaadapter "github.com/thermasense/telemetry-engine/internal/adapter/kafka"
	"github.com/thermasense/telemetry-engine/internal/adapter/smtp"
	"github.com/thermasense/telemetry-engine/internal/adapter/ws"
	"github.com/thermasense/telemetry-engine/internal/alert"
	"github.com/thermasense/telemetry-engine/internal/config"
	"github.com/thermasense/telemetry-engine/internal/engine"
	"github.com/thermasense/telemetry-engine/internal/identity"
	"github.com/thermasense/telemetry-engine/internal/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "telemetryd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	store, err := identity.Open(cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("open identity store: %w", err)
	}
	defer store.Close()

	var notifier alert.Notifier
	if cfg.SMTPEnabled {
		mailer, err := smtp.NewMailer(cfg, logger)
		if err != nil {
			return fmt.Errorf("create mailer: %w", err)
		}
		notifier = mailer
		logger.Info("alert email enabled", "host", cfg.SMTPHost, "from", cfg.AlertFrom)
	} else {
		logger.Warn("alert email disabled, alerts will be logged only")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := ws.NewHub(logger, metrics)
	go hub.Run(ctx)

	dispatcher := alert.New(cfg.AlertThreshold, cfg.AlertCooldown, cfg.AlertZone,
		store, notifier, clock, logger, metrics)

	gateway := engine.New(cfg.HistoryCapacity, cfg.FreshnessWindow,
		hub, dispatcher, clock, logger, metrics)

	var feed *kafkaadapter.Reader
	if cfg.FeedEnabled {
		feed = kafkaadapter.NewReader(cfg, gateway, logger, metrics)
		go func() {
			if err := feed.Run(ctx); err != nil {
				logger.Error("feed consumer stopped", "error", err)
			}
		}()
		logger.Info("realtime feed enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaFeedTopic)
	} else {
		logger.Info("realtime feed disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, gateway, store,
		http.HandlerFunc(hub.ServeWS), store, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if feed != nil {
		if err := feed.Close(); err != nil {
			logger.Error("close feed consumer", "error", err)
		}
	}
	logger.Info("shutdown complete")
	return nil
}
