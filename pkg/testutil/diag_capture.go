package testutil

import (
	"sync"

	"solar-telemetry/pkg/diag"
)

// CapturingPublisher collects diagnostic events for assertions in tests.
type CapturingPublisher struct {
	mu     sync.Mutex
	Events []diag.Event
}

func NewCapturingPublisher() *CapturingPublisher { return &CapturingPublisher{} }

func (c *CapturingPublisher) Publish(event diag.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Events = append(c.Events, event)
}

func (c *CapturingPublisher) Snapshot() []diag.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]diag.Event, len(c.Events))
	copy(out, c.Events)
	return out
}

// Count returns how many captured events have the given type.
func (c *CapturingPublisher) Count(eventType string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.Events {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
}
