package testutil

import (
	"context"
	"sync"

	"solar-telemetry/pkg/events"
	"solar-telemetry/pkg/transport"
)

type frame struct {
	msg events.Message
	err error
}

// MockConn is a transport.Conn fed by the test through Send and Fail.
type MockConn struct {
	name   string
	frames chan frame

	mu         sync.Mutex
	closeCalls int
	closeOnce  sync.Once
	closed     chan struct{}
}

func NewMockConn(name string) *MockConn {
	return &MockConn{name: name, frames: make(chan frame, 64), closed: make(chan struct{})}
}

// Send queues a message for Next.
func (c *MockConn) Send(msg events.Message) { c.frames <- frame{msg: msg} }

// SendRaw queues a raw envelope for Next.
func (c *MockConn) SendRaw(raw string) { c.Send(events.ParseEnvelope([]byte(raw))) }

// Fail makes Next return err once every queued message has been read.
func (c *MockConn) Fail(err error) { c.frames <- frame{err: err} }

func (c *MockConn) Next(ctx context.Context) (events.Message, error) {
	select {
	case f := <-c.frames:
		return f.msg, f.err
	case <-c.closed:
		return events.Message{}, transport.ErrClosed
	case <-ctx.Done():
		return events.Message{}, ctx.Err()
	}
}

func (c *MockConn) Close() error {
	c.mu.Lock()
	c.closeCalls++
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *MockConn) Name() string { return c.name }

func (c *MockConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls > 0
}

// MockDialer hands out connections from DialFunc and records every call.
// With no DialFunc each dial returns a fresh MockConn named "mock".
type MockDialer struct {
	DialFunc func(attempt int, address string) (transport.Conn, error)

	mu        sync.Mutex
	calls     int
	addresses []string
}

func (d *MockDialer) Dial(ctx context.Context, address string) (transport.Conn, error) {
	d.mu.Lock()
	d.calls++
	attempt := d.calls
	d.addresses = append(d.addresses, address)
	d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.DialFunc == nil {
		return NewMockConn("mock"), nil
	}
	return d.DialFunc(attempt, address)
}

func (d *MockDialer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *MockDialer) Addresses() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.addresses...)
}
