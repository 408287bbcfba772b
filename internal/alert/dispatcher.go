// Package alert debounces danger threshold crossings and fans notifications
// out to approved recipients.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/thermasense/telemetry-engine/internal/domain"
	"github.com/thermasense/telemetry-engine/internal/observability"
)

// dispatchTimeout bounds one whole dispatch: recipient lookup plus all sends.
const dispatchTimeout = 30 * time.Second

// RecipientSource lists the addresses that should receive alert notifications.
type RecipientSource interface {
	ListApprovedRecipients(ctx context.Context) ([]string, error)
}

// Notifier sends a single notification to one recipient.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Dispatcher is a two-state debounce over the heat index: Armed (eligible to
// dispatch) and Cooling (within the cooldown of the last dispatched alert).
// Re-crossing the threshold during Cooling is silently ignored no matter how
// far the metric spikes; sub-threshold readings never reset or extend the
// cooldown. This is a debounce, not a hysteresis band.
type Dispatcher struct {
	threshold float64
	cooldown  time.Duration
	zone      string

	recipients RecipientSource
	notifier   Notifier // nil when the transport is unconfigured
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics

	mu        sync.Mutex
	lastAlert time.Time
}

// New creates a Dispatcher. A nil notifier means notification transport is
// unconfigured: qualifying events still advance the cooldown, they just log
// instead of sending.
func New(threshold float64, cooldown time.Duration, zone string, recipients RecipientSource, notifier Notifier, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		threshold:  threshold,
		cooldown:   cooldown,
		zone:       zone,
		recipients: recipients,
		notifier:   notifier,
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
	}
}

// Evaluate inspects one derived heat index. Below the threshold (or NaN) it
// is a no-op. At or above the threshold while Armed it records the alert time
// synchronously, then dispatches notifications in the background; the caller
// never waits on recipient sends.
func (d *Dispatcher) Evaluate(heatIndex float64, r domain.TelemetryReading) {
	if math.IsNaN(heatIndex) || heatIndex < d.threshold {
		return
	}

	d.mu.Lock()
	if !d.lastAlert.IsZero() && d.clock.Since(d.lastAlert) <= d.cooldown {
		d.mu.Unlock()
		return
	}
	d.lastAlert = d.clock.Now()
	d.mu.Unlock()

	go d.dispatch(heatIndex, r)
}

// LastAlertTime reports when the most recent alert was dispatched, zero if none.
func (d *Dispatcher) LastAlertTime() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastAlert
}

// dispatch fetches the recipient snapshot and sends one notification per
// recipient independently. A failure for one recipient never blocks or fails
// the others, and nothing here propagates back to the ingestion path.
func (d *Dispatcher) dispatch(heatIndex float64, r domain.TelemetryReading) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	recipients, err := d.recipients.ListApprovedRecipients(ctx)
	if err != nil {
		d.logger.Error("list alert recipients failed", "error", err)
		d.metrics.AlertsSuppressed.Inc()
		return
	}
	if d.notifier == nil || len(recipients) == 0 {
		d.logger.Warn("danger threshold crossed but alert delivery is suppressed",
			"heat_index", heatIndex,
			"recipients", len(recipients),
			"transport_configured", d.notifier != nil,
		)
		d.metrics.AlertsSuppressed.Inc()
		return
	}

	subject := fmt.Sprintf("THERMASENSE ALERT: extreme danger in zone %s", d.zone)
	body := fmt.Sprintf(
		"DANGER! Heat index has reached %.1f°C in zone %s.\n"+
			"Observed at: %s\n"+
			"Temperature: %.1f°C\n"+
			"Humidity: %.1f%%\n\n"+
			"Please check the dashboard immediately.",
		heatIndex, d.zone, r.ObservedAt.Format(time.RFC3339), r.Temp, r.Humidity,
	)

	d.metrics.AlertsDispatched.Inc()
	d.logger.Info("dispatching alert",
		"zone", d.zone, "heat_index", heatIndex, "recipients", len(recipients))

	var wg sync.WaitGroup
	for _, to := range recipients {
		wg.Add(1)
		go func(to string) {
			defer wg.Done()
			if err := d.notifier.Send(ctx, to, subject, body); err != nil {
				d.logger.Error("alert notification failed", "to", to, "error", err)
				d.metrics.AlertSendErrors.Inc()
			}
		}(to)
	}
	wg.Wait()
}
