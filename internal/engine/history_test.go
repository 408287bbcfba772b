package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thermasense/telemetry-engine/internal/domain"
)

func tempReading(temp float64) domain.TelemetryReading {
	return domain.TelemetryReading{Temp: temp, Humidity: 50, ObservedAt: time.Unix(int64(temp), 0)}
}

func TestHistory_AppendBelowCapacity(t *testing.T) {
	h := newHistory(4)
	h.Append(tempReading(1))
	h.Append(tempReading(2))

	snap := h.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, 1.0, snap[0].Temp)
	assert.Equal(t, 2.0, snap[1].Temp)
}

func TestHistory_EvictsOldestAtCapacity(t *testing.T) {
	h := newHistory(3)
	for i := 1; i <= 5; i++ {
		h.Append(tempReading(float64(i)))
	}

	snap := h.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, 3.0, snap[0].Temp)
	assert.Equal(t, 4.0, snap[1].Temp)
	assert.Equal(t, 5.0, snap[2].Temp)
}

func TestHistory_FullCapacitySlide(t *testing.T) {
	const capacity = 10000
	h := newHistory(capacity)
	for i := 1; i <= capacity+1; i++ {
		h.Append(tempReading(float64(i)))
	}

	snap := h.Snapshot()
	require.Len(t, snap, capacity)
	// The first reading is gone; the 2nd through 10,001st remain in order.
	assert.Equal(t, 2.0, snap[0].Temp)
	assert.Equal(t, float64(capacity+1), snap[capacity-1].Temp)
	for i := 1; i < len(snap); i++ {
		assert.Equal(t, snap[i-1].Temp+1, snap[i].Temp)
	}
}

func TestHistory_SnapshotIsACopy(t *testing.T) {
	h := newHistory(3)
	h.Append(tempReading(1))

	snap := h.Snapshot()
	snap[0].Temp = 99

	assert.Equal(t, 1.0, h.Snapshot()[0].Temp)
}

func TestHistory_Len(t *testing.T) {
	h := newHistory(2)
	assert.Equal(t, 0, h.Len())
	h.Append(tempReading(1))
	assert.Equal(t, 1, h.Len())
	h.Append(tempReading(2))
	h.Append(tempReading(3))
	assert.Equal(t, 2, h.Len())
}
