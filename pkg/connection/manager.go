package connection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"solar-telemetry/pkg/backoff"
	"solar-telemetry/pkg/diag"
	"solar-telemetry/pkg/events"
	"solar-telemetry/pkg/transport"
)

// ErrNoAddress is returned when the manager is built without a channel address.
var ErrNoAddress = errors.New("channel address is required")

var supportedSchemes = map[string]bool{
	"http": true, "https": true,
	"ws": true, "wss": true,
	"mqtt": true, "mqtts": true, "tcp": true, "ssl": true,
}

// Config wires a Manager to its transport and collaborators.
type Config struct {
	Address string
	Dialer  transport.Dialer
	Policy  backoff.Policy

	// Handler receives every inbound message on the receive goroutine, in
	// arrival order. It must not call Disconnect.
	Handler func(events.Message)

	// OnStateChange is called after every transition.
	OnStateChange func(State)

	Emit   func(diag.Event)
	Logger *log.Logger
}

// Manager owns one logical channel to the backend and keeps it alive
// according to its backoff policy.
type Manager struct {
	address string
	dialer  transport.Dialer
	policy  backoff.Policy
	handler func(events.Message)
	onState func(State)
	emit    func(diag.Event)
	logger  *log.Logger

	mu        sync.Mutex
	state     State
	transport string
	conn      transport.Conn
	cancel    context.CancelFunc
	done      chan struct{}
}

// New validates cfg and returns a disconnected Manager.
func New(cfg Config) (*Manager, error) {
	address := strings.TrimSpace(cfg.Address)
	if address == "" {
		return nil, ErrNoAddress
	}
	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("parse channel address: %w", err)
	}
	if !supportedSchemes[u.Scheme] {
		return nil, fmt.Errorf("channel address %q: %w", address, transport.ErrUnsupportedScheme)
	}
	if cfg.Dialer == nil {
		return nil, errors.New("connection: dialer is required")
	}

	m := &Manager{
		address: address,
		dialer:  cfg.Dialer,
		policy:  cfg.Policy,
		handler: cfg.Handler,
		onState: cfg.OnStateChange,
		emit:    cfg.Emit,
		logger:  cfg.Logger,
	}
	if m.policy == nil {
		m.policy = backoff.NewFixed()
	}
	if m.handler == nil {
		m.handler = func(events.Message) {}
	}
	if m.logger == nil {
		m.logger = log.New(io.Discard, "", 0)
	}
	return m, nil
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transport returns the name of the live transport, or "" when not connected.
func (m *Manager) Transport() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transport
}

// Connect starts the channel in the background. It is a no-op unless the
// manager is Disconnected. The channel lives until Disconnect, ctx is done,
// the backend closes it, or the backoff policy gives up.
func (m *Manager) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.state != Disconnected {
		m.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	changed := m.setStateLocked(Connecting, "")
	m.mu.Unlock()

	m.notify(changed, Connecting, "")
	go m.run(runCtx, done)
	return nil
}

// Disconnect stops the channel and waits for the receive goroutine to exit.
// No message is delivered once it returns. Calling it again is a no-op.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	cancel, done, conn := m.cancel, m.done, m.conn
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if conn != nil {
		_ = conn.Close()
	}
	<-done
}

func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer m.finish(done)

	attempt := 0
	for {
		conn, err := m.dialer.Dial(ctx, m.address)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, transport.ErrClosed) {
				m.logger.Printf("connection: %s closed by backend during dial", m.address)
				return
			}
			m.logger.Printf("connection: dial %s failed: %v", m.address, err)
			m.publish(diag.NewTransportError(err, "dial", diag.ErrorSeverityWarning))
		} else {
			attempt = 0
			err = m.serve(ctx, conn)
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, transport.ErrClosed) {
				m.logger.Printf("connection: %s closed by backend", conn.Name())
				return
			}
			m.logger.Printf("connection: %s lost: %v", conn.Name(), err)
			m.publish(diag.NewTransportError(err, "receive", diag.ErrorSeverityWarning))
		}

		attempt++
		delay, ok := m.policy.Next(attempt)
		if !ok {
			m.logger.Printf("connection: giving up after %d reconnect attempts", attempt-1)
			m.publish(diag.NewReconnectExhausted(attempt - 1))
			return
		}
		m.transition(Reconnecting, "")
		m.publish(diag.NewReconnectScheduled(attempt, delay))
		if !sleep(ctx, delay) {
			return
		}
	}
}

// serve pumps messages from conn to the handler until conn fails or ctx ends.
func (m *Manager) serve(ctx context.Context, conn transport.Conn) error {
	m.mu.Lock()
	if ctx.Err() != nil {
		m.mu.Unlock()
		_ = conn.Close()
		return ctx.Err()
	}
	m.conn = conn
	changed := m.setStateLocked(Connected, conn.Name())
	m.mu.Unlock()
	m.notify(changed, Connected, conn.Name())
	m.logger.Printf("connection: connected to %s via %s", m.address, conn.Name())

	defer func() {
		m.mu.Lock()
		m.conn = nil
		m.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		msg, err := conn.Next(ctx)
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		m.handler(msg)
	}
}

func (m *Manager) finish(done chan struct{}) {
	m.mu.Lock()
	if m.done != done {
		m.mu.Unlock()
		return
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.cancel = nil
	m.done = nil
	m.conn = nil
	changed := m.setStateLocked(Disconnected, "")
	m.mu.Unlock()

	m.notify(changed, Disconnected, "")
}

func (m *Manager) transition(s State, transportName string) {
	m.mu.Lock()
	changed := m.setStateLocked(s, transportName)
	m.mu.Unlock()
	m.notify(changed, s, transportName)
}

func (m *Manager) setStateLocked(s State, transportName string) bool {
	if m.state == s && m.transport == transportName {
		return false
	}
	m.state = s
	m.transport = transportName
	return true
}

func (m *Manager) notify(changed bool, s State, transportName string) {
	if !changed {
		return
	}
	m.publish(diag.NewConnectionStateChanged(s.String(), transportName))
	if m.onState != nil {
		m.onState(s)
	}
}

func (m *Manager) publish(event diag.Event) {
	if m.emit != nil {
		m.emit(event)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
