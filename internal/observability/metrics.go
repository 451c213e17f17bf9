package observability

import "sync"

// Counter names recorded by the ticket lifecycle.
const (
	CounterTicketsOpened       = "tickets_opened"
	CounterTicketsClaimed      = "tickets_claimed"
	CounterTicketsClosed       = "tickets_closed"
	CounterRecoveryScanned     = "recovery_scanned"
	CounterRecoveryRecovered   = "recovery_recovered"
	CounterRecoverySkipped     = "recovery_skipped"
	CounterTranscriptDelivered = "transcripts_delivered"
	CounterTranscriptFailed    = "transcript_delivery_failed"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		counters: make(map[string]int64),
	}
}

// Inc increments the named counter by one.
func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

// Add increments the named counter by delta.
func (m *Metrics) Add(name string, delta int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += delta
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]int64 {
	if m == nil {
		return map[string]int64{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.counters))
	for name, value := range m.counters {
		out[name] = value
	}
	return out
}
