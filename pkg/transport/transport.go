package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"solar-telemetry/pkg/events"
)

var (
	// ErrClosed reports that the backend ended the channel on purpose.
	ErrClosed = errors.New("channel closed by backend")

	// ErrUnsupportedScheme is returned by a dialer that cannot serve the address.
	ErrUnsupportedScheme = errors.New("unsupported address scheme")
)

// Transport names accepted by ForNames.
const (
	NameWebSocket = "websocket"
	NamePolling   = "polling"
	NameMQTT      = "mqtt"
)

// Conn is one live channel. Next blocks until a message arrives, the channel
// fails, or ctx is done. Messages come back in the order the backend sent them.
type Conn interface {
	Next(ctx context.Context) (events.Message, error)
	Close() error
	Name() string
}

// Dialer opens a Conn to the given address.
type Dialer interface {
	Dial(ctx context.Context, address string) (Conn, error)
}

// Options configures the dialers built by ForNames.
type Options struct {
	HTTPClient   *http.Client
	PollInterval time.Duration
	MQTTClientID string
}

// ForNames builds a negotiating dialer trying the named transports in order.
func ForNames(names []string, opts Options) (Dialer, error) {
	var dialers []Dialer
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		switch name {
		case "":
			continue
		case NameWebSocket:
			dialers = append(dialers, &WebSocketDialer{})
		case NamePolling:
			dialers = append(dialers, &PollingDialer{Client: opts.HTTPClient, Interval: opts.PollInterval})
		case NameMQTT:
			dialers = append(dialers, &MQTTDialer{ClientID: opts.MQTTClientID})
		default:
			return nil, fmt.Errorf("unknown transport %q", raw)
		}
	}
	if len(dialers) == 0 {
		return nil, errors.New("no transports configured")
	}
	return Negotiate(dialers...), nil
}

type negotiator struct {
	dialers []Dialer
}

// Negotiate returns a Dialer that tries each dialer in order and keeps the
// first one that connects.
func Negotiate(dialers ...Dialer) Dialer {
	return &negotiator{dialers: dialers}
}

func (n *negotiator) Dial(ctx context.Context, address string) (Conn, error) {
	var errs []error
	for _, d := range n.dialers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		conn, err := d.Dial(ctx, address)
		if err == nil {
			return conn, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, errors.New("no transports configured")
	}
	return nil, fmt.Errorf("all transports failed: %w", errors.Join(errs...))
}
