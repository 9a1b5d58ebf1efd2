package store

import (
	"time"

	"solar-telemetry/pkg/events"
)

// MaxAlerts is the alert history cap.
const MaxAlerts = 10

// AlertEntry is one alert as shown to collaborators. Entries are never
// modified after creation.
type AlertEntry struct {
	ID        string          `json:"id"`
	Severity  events.Severity `json:"severity"`
	Message   string          `json:"message"`
	Timestamp time.Time       `json:"timestamp"`
}

// AlertBuffer is a fixed-capacity ring of alerts iterated newest first.
// Pushing into a full buffer overwrites the oldest entry.
type AlertBuffer struct {
	entries []AlertEntry
	head    int // slot the next push writes to
	count   int
}

// NewAlertBuffer creates a buffer holding at most capacity entries.
func NewAlertBuffer(capacity int) *AlertBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &AlertBuffer{entries: make([]AlertEntry, capacity)}
}

// Push prepends an entry, evicting the oldest one when full.
func (b *AlertBuffer) Push(e AlertEntry) {
	b.entries[b.head] = e
	b.head = (b.head + 1) % len(b.entries)
	if b.count < len(b.entries) {
		b.count++
	}
}

func (b *AlertBuffer) Len() int { return b.count }

func (b *AlertBuffer) Cap() int { return len(b.entries) }

// Slice returns a copy of the entries, newest first.
func (b *AlertBuffer) Slice() []AlertEntry {
	out := make([]AlertEntry, b.count)
	for i := 0; i < b.count; i++ {
		idx := (b.head - 1 - i + len(b.entries)) % len(b.entries)
		out[i] = b.entries[idx]
	}
	return out
}
