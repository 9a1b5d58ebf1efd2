package diag

// NoopPublisher is a diagnostics publisher that does nothing
// Useful for testing or when diagnostics are disabled
type NoopPublisher struct{}

// NewNoopPublisher creates a new no-op diagnostics publisher
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

// Publish does nothing
func (n *NoopPublisher) Publish(event Event) {
	// No-op
}
