package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Source identifies which ingestion path produced a reading.
type Source string

const (
	// SourcePush marks readings received on the direct HTTP endpoint.
	SourcePush Source = "push"
	// SourceFeed marks readings forwarded from the external realtime feed.
	SourceFeed Source = "feed"
)

var (
	// ErrMissingField reports a payload with no usable temp or humidity value.
	ErrMissingField = errors.New("missing temp or humidity")
	// ErrNotFinite reports a value that parsed but is NaN or infinite.
	ErrNotFinite = errors.New("temp and humidity must be finite")
)

// TelemetryReading is one accepted sensor observation.
type TelemetryReading struct {
	Temp       float64   `json:"temp"`
	Humidity   float64   `json:"humidity"`
	ObservedAt time.Time `json:"timestamp"`
}

// ValidateValues rejects readings whose values cannot be represented as
// finite numbers. Validation happens before any state is mutated; a NaN
// heat index derived later is data, not a validation failure.
func ValidateValues(temp, humidity float64) error {
	if !isFinite(temp) || !isFinite(humidity) {
		return ErrNotFinite
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// feedRecord is the wire shape emitted by the external feed. The feed is
// loosely typed: temp and humidity arrive as JSON numbers or numeric strings,
// and records may carry extra fields, which are ignored.
type feedRecord struct {
	Temp     json.RawMessage `json:"temp"`
	Humidity json.RawMessage `json:"humidity"`
}

// ParseFeedPayload extracts temp and humidity from a raw feed record,
// coercing numbers and numeric strings alike.
func ParseFeedPayload(value []byte) (temp, humidity float64, err error) {
	var rec feedRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return 0, 0, fmt.Errorf("parse feed payload: %w", err)
	}
	if temp, err = coerceNumeric(rec.Temp); err != nil {
		return 0, 0, err
	}
	if humidity, err = coerceNumeric(rec.Humidity); err != nil {
		return 0, 0, err
	}
	if err := ValidateValues(temp, humidity); err != nil {
		return 0, 0, err
	}
	return temp, humidity, nil
}

func coerceNumeric(raw json.RawMessage) (float64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, ErrMissingField
	}
	s = strings.TrimSpace(strings.Trim(s, `"`))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrMissingField
	}
	return v, nil
}
