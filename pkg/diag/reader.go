package diag

import "time"

type Snapshot struct {
	// Message flow
	MessagesReceived  uint64            `json:"messagesReceived"`
	DispatchedByType  map[string]uint64 `json:"dispatchedByType"`
	DroppedByReason   map[string]uint64 `json:"droppedByReason"`
	InfoMessages      uint64            `json:"infoMessages"`
	MessagesPerSecond float64           `json:"messagesPerSecond"`
	LastMessageAt     time.Time         `json:"lastMessageAt"`

	// Channel state
	ConnectionState   string `json:"connectionState"`
	Transport         string `json:"transport"`
	ReconnectAttempts uint64 `json:"reconnectAttempts"`
	ReconnectsFailed  uint64 `json:"reconnectsFailed"` // Times the attempt ceiling was exhausted

	// Error breakdown
	ErrorsTotal      uint64                   `json:"errorsTotal"`
	ErrorsByContext  map[string]uint64        `json:"errorsByContext"`
	ErrorsBySeverity map[ErrorSeverity]uint64 `json:"errorsBySeverity"`
	RecentErrors     []string                 `json:"recentErrors"` // Newest first

	// System
	UptimeSeconds      float64 `json:"uptimeSeconds"`
	ChannelUtilization float64 `json:"channelUtilization"`
}

type Reader interface {
	Snapshot() Snapshot
}
