package engine

import "github.com/thermasense/telemetry-engine/internal/domain"

// history is a fixed-capacity FIFO buffer of accepted readings. Appending
// beyond capacity silently evicts the oldest entry; eviction is expected
// steady-state behavior once the buffer is full, not an error.
//
// Not safe for concurrent use; the gateway serializes access.
type history struct {
	buf   []domain.TelemetryReading
	start int
	size  int
}

func newHistory(capacity int) *history {
	return &history{buf: make([]domain.TelemetryReading, capacity)}
}

func (h *history) Append(r domain.TelemetryReading) {
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = r
		h.size++
		return
	}
	h.buf[h.start] = r
	h.start = (h.start + 1) % len(h.buf)
}

// Snapshot returns the buffered readings in insertion order. The slice is a
// copy; callers never see internal storage.
func (h *history) Snapshot() []domain.TelemetryReading {
	out := make([]domain.TelemetryReading, h.size)
	for i := range out {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

func (h *history) Len() int {
	return h.size
}
