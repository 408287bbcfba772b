package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Ingestion engine.
	HistoryCapacity int
	FreshnessWindow time.Duration

	// Alerting.
	AlertThreshold float64
	AlertCooldown  time.Duration
	AlertZone      string

	// Realtime feed (Kafka) configuration.
	FeedEnabled    bool
	KafkaBrokers   []string
	KafkaFeedTopic string
	KafkaGroupID   string

	// Identity store.
	SQLitePath string

	// Notification transport. SMTP credentials present implies enabled.
	SMTPEnabled bool
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	AlertFrom   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	freshnessWindow, err := parseDuration("FRESHNESS_WINDOW", "10s")
	if err != nil {
		return nil, err
	}
	alertCooldown, err := parseDuration("ALERT_COOLDOWN", "5m")
	if err != nil {
		return nil, err
	}
	historyCapacity, err := parsePositiveInt("HISTORY_CAPACITY", 10000)
	if err != nil {
		return nil, err
	}
	smtpPort, err := parsePositiveInt("SMTP_PORT", 587)
	if err != nil {
		return nil, err
	}
	alertThreshold, err := parseFloat("ALERT_THRESHOLD", 40.0)
	if err != nil {
		return nil, err
	}

	smtpHost := os.Getenv("SMTP_HOST")
	smtpUser := os.Getenv("SMTP_USER")
	smtpPass := os.Getenv("SMTP_PASS")
	smtpEnabled := smtpHost != "" && smtpUser != "" && smtpPass != ""
	if v := os.Getenv("SMTP_ENABLED"); v != "" {
		smtpEnabled = v == "true"
	}

	feedEnabled := true
	if v := os.Getenv("FEED_ENABLED"); v != "" {
		feedEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		HistoryCapacity: historyCapacity,
		FreshnessWindow: freshnessWindow,

		AlertThreshold: alertThreshold,
		AlertCooldown:  alertCooldown,
		AlertZone:      envOrDefault("ALERT_ZONE", "main"),

		FeedEnabled:    feedEnabled,
		KafkaBrokers:   parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaFeedTopic: envOrDefault("KAFKA_FEED_TOPIC", "telemetry-readings"),
		KafkaGroupID:   envOrDefault("KAFKA_GROUP_ID", "thermasense-engine"),

		SQLitePath: envOrDefault("SQLITE_PATH", "thermasense.db"),

		SMTPEnabled: smtpEnabled,
		SMTPHost:    smtpHost,
		SMTPPort:    smtpPort,
		SMTPUser:    smtpUser,
		SMTPPass:    smtpPass,
		AlertFrom:   envOrDefault("ALERT_FROM", smtpUser),
	}

	if cfg.FeedEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when the feed is enabled")
	}
	if cfg.FeedEnabled && cfg.KafkaFeedTopic == "" {
		return nil, errors.New("KAFKA_FEED_TOPIC is required when the feed is enabled")
	}
	if cfg.SMTPEnabled && (cfg.SMTPHost == "" || cfg.SMTPUser == "" || cfg.SMTPPass == "") {
		return nil, errors.New("SMTP_ENABLED is true but SMTP_HOST, SMTP_USER, or SMTP_PASS is not set")
	}
	if cfg.SQLitePath == "" {
		return nil, errors.New("SQLITE_PATH is required")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(s string) []string {
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}
