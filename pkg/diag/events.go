package diag

import "time"

type Event interface {
	Timestamp() time.Time // When the event occurred
	EventType() string    // For categorization/filtering
}

type ConnectionStateChanged struct {
	timestamp time.Time
	State     string
	Transport string // Empty unless the channel is up
}

func (e ConnectionStateChanged) Timestamp() time.Time { return e.timestamp }
func (e ConnectionStateChanged) EventType() string    { return "connection_state_changed" }

func NewConnectionStateChanged(state, transport string) ConnectionStateChanged {
	return ConnectionStateChanged{
		timestamp: time.Now(),
		State:     state,
		Transport: transport,
	}
}

type ReconnectScheduled struct {
	timestamp time.Time
	Attempt   int
	Delay     time.Duration
}

func (e ReconnectScheduled) Timestamp() time.Time { return e.timestamp }
func (e ReconnectScheduled) EventType() string    { return "reconnect_scheduled" }

func NewReconnectScheduled(attempt int, delay time.Duration) ReconnectScheduled {
	return ReconnectScheduled{
		timestamp: time.Now(),
		Attempt:   attempt,
		Delay:     delay,
	}
}

type ReconnectExhausted struct {
	timestamp time.Time
	Attempts  int
}

func (e ReconnectExhausted) Timestamp() time.Time { return e.timestamp }
func (e ReconnectExhausted) EventType() string    { return "reconnect_exhausted" }

func NewReconnectExhausted(attempts int) ReconnectExhausted {
	return ReconnectExhausted{timestamp: time.Now(), Attempts: attempts}
}

type TransportError struct {
	timestamp time.Time
	Err       error
	Context   string // e.g. "dial", "read"
	Severity  ErrorSeverity
}

func (e TransportError) Timestamp() time.Time { return e.timestamp }
func (e TransportError) EventType() string    { return "transport_error" }

func NewTransportError(err error, context string, severity ErrorSeverity) TransportError {
	return TransportError{
		timestamp: time.Now(),
		Err:       err,
		Context:   context,
		Severity:  severity,
	}
}

type MessageDispatched struct {
	timestamp time.Time
	Type      string
}

func (e MessageDispatched) Timestamp() time.Time { return e.timestamp }
func (e MessageDispatched) EventType() string    { return "message_dispatched" }

func NewMessageDispatched(msgType string) MessageDispatched {
	return MessageDispatched{timestamp: time.Now(), Type: msgType}
}

type MessageDropped struct {
	timestamp time.Time
	Type      string
	Reason    string // "unknown_type" or "invalid_payload"
}

func (e MessageDropped) Timestamp() time.Time { return e.timestamp }
func (e MessageDropped) EventType() string    { return "message_dropped" }

func NewMessageDropped(msgType, reason string) MessageDropped {
	return MessageDropped{timestamp: time.Now(), Type: msgType, Reason: reason}
}

// InfoReceived records informational messages (handshake acks, backend stats)
// that are never stored.
type InfoReceived struct {
	timestamp time.Time
	Type      string
	Size      int
}

func (e InfoReceived) Timestamp() time.Time { return e.timestamp }
func (e InfoReceived) EventType() string    { return "info_received" }

func NewInfoReceived(msgType string, size int) InfoReceived {
	return InfoReceived{timestamp: time.Now(), Type: msgType, Size: size}
}

type ErrorSeverity int

const (
	ErrorSeverityInfo ErrorSeverity = iota
	ErrorSeverityWarning
	ErrorSeverityError
	ErrorSeverityCritical
)

func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityInfo:
		return "info"
	case ErrorSeverityWarning:
		return "warning"
	case ErrorSeverityError:
		return "error"
	case ErrorSeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalText keys severity maps by name in JSON.
func (s ErrorSeverity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type Publisher interface {
	// Publish hands a diagnostic event to its consumer.
	// This is a non-blocking, fire-and-forget call.
	Publish(event Event)
}

// PublisherFunc adapts a plain function to Publisher.
type PublisherFunc func(Event)

func (f PublisherFunc) Publish(event Event) { f(event) }

// Multi fans every event out to each non-nil publisher in order.
func Multi(pubs ...Publisher) Publisher {
	out := make(multi, 0, len(pubs))
	for _, p := range pubs {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

type multi []Publisher

func (m multi) Publish(event Event) {
	for _, p := range m {
		p.Publish(event)
	}
}
