package client

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"solar-telemetry/pkg/backoff"
	"solar-telemetry/pkg/connection"
	"solar-telemetry/pkg/diag"
	"solar-telemetry/pkg/events"
	"solar-telemetry/pkg/store"
	"solar-telemetry/pkg/transport"
)

const diagBufferSize = 100

// Config is everything the client needs to reach the backend.
type Config struct {
	// BaseURL is the backend address, for example http://localhost:8080 or
	// mqtt://broker:1883/solar. Required.
	BaseURL string

	// Transports lists the transports to try, in order. Defaults to
	// websocket then polling.
	Transports []string

	// MaxReconnectAttempts bounds consecutive failed reconnects. Zero means
	// the default of 10; a negative value disables reconnecting.
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration

	// Policy overrides MaxReconnectAttempts and ReconnectDelay when set.
	Policy backoff.Policy

	RatedCapacityW float64
	MQTTClientID   string
	PollInterval   time.Duration

	// Dialer overrides Transports when set.
	Dialer transport.Dialer

	// Now overrides the clock used for synthesized alert ids and timestamps.
	Now func() time.Time
}

// Snapshot is what subscribers and the feed see.
type Snapshot struct {
	ConnectionState connection.State   `json:"connectionState"`
	Transport       string             `json:"transport,omitempty"`
	Metrics         store.Metrics      `json:"metrics"`
	Alerts          []store.AlertEntry `json:"alerts"`
	Prediction      *store.Prediction  `json:"prediction"`
	Efficiency      float64            `json:"efficiency"`
}

// Client is the single entry point for the rendering layer: it owns the
// channel, classifies what arrives and keeps the derived state.
type Client struct {
	logger     *log.Logger
	store      *store.Store
	classifier *events.Classifier
	conn       *connection.Manager

	subMu  sync.Mutex
	subs   map[int]func(Snapshot)
	nextID int

	eventCh         chan diag.Event
	publisherCtx    context.Context
	publisherCancel context.CancelFunc
	publisherDone   chan struct{}
	closeOnce       sync.Once
}

// New builds a disconnected client. publisher may be nil.
func New(cfg Config, logger *log.Logger, publisher diag.Publisher) (*Client, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	dialer := cfg.Dialer
	if dialer == nil {
		names := cfg.Transports
		if len(names) == 0 {
			names = []string{transport.NameWebSocket, transport.NamePolling}
		}
		var err error
		dialer, err = transport.ForNames(names, transport.Options{
			PollInterval: cfg.PollInterval,
			MQTTClientID: cfg.MQTTClientID,
		})
		if err != nil {
			return nil, fmt.Errorf("configure transports: %w", err)
		}
	}

	c := &Client{
		logger:  logger,
		subs:    make(map[int]func(Snapshot)),
		eventCh: make(chan diag.Event, diagBufferSize),
	}

	var storeOpts []store.Option
	if cfg.Now != nil {
		storeOpts = append(storeOpts, store.WithClock(cfg.Now))
	}
	c.store = store.New(cfg.RatedCapacityW, storeOpts...)
	c.classifier = events.NewClassifier(c.store, logger, c.emit)

	conn, err := connection.New(connection.Config{
		Address:       cfg.BaseURL,
		Dialer:        dialer,
		Policy:        policyFor(cfg),
		Handler:       c.handle,
		OnStateChange: func(connection.State) { c.broadcast() },
		Emit:          c.emit,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	c.conn = conn

	c.store.Subscribe(func(store.Snapshot) { c.broadcast() })

	if publisher == nil {
		publisher = diag.NewNoopPublisher()
	}
	c.startPublisher(publisher)
	return c, nil
}

func policyFor(cfg Config) backoff.Policy {
	if cfg.Policy != nil {
		return cfg.Policy
	}
	p := backoff.NewFixed()
	switch {
	case cfg.MaxReconnectAttempts > 0:
		p.MaxAttempts = cfg.MaxReconnectAttempts
	case cfg.MaxReconnectAttempts < 0:
		p.MaxAttempts = 0
	}
	if cfg.ReconnectDelay > 0 {
		p.Delay = cfg.ReconnectDelay
	}
	return p
}

// Connect opens the channel in the background. Calling it while a channel is
// already live does nothing.
func (c *Client) Connect(ctx context.Context) error {
	return c.conn.Connect(ctx)
}

// Disconnect closes the channel. No subscriber is called for inbound data
// after it returns. It must not be called from a subscriber.
func (c *Client) Disconnect() {
	c.conn.Disconnect()
}

// Close disconnects and stops the diagnostics publisher.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.conn.Disconnect()
		c.publisherCancel()
		<-c.publisherDone
	})
}

// State returns a copy of the current state.
func (c *Client) State() Snapshot {
	s := c.store.Snapshot()
	return Snapshot{
		ConnectionState: c.conn.State(),
		Transport:       c.conn.Transport(),
		Metrics:         s.Metrics,
		Alerts:          s.Alerts,
		Prediction:      s.Prediction,
		Efficiency:      s.Efficiency,
	}
}

// Subscribe calls fn with a fresh snapshot after every state change. The
// returned function removes the subscription.
func (c *Client) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		})
	}
}

func (c *Client) handle(msg events.Message) {
	c.classifier.Dispatch(msg)
}

func (c *Client) broadcast() {
	c.subMu.Lock()
	if len(c.subs) == 0 {
		c.subMu.Unlock()
		return
	}
	fns := make([]func(Snapshot), 0, len(c.subs))
	for id := 0; id < c.nextID; id++ {
		if fn, ok := c.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	c.subMu.Unlock()

	snap := c.State()
	for _, fn := range fns {
		fn(snap)
	}
}

// startPublisher forwards diagnostics to publisher on its own goroutine.
func (c *Client) startPublisher(publisher diag.Publisher) {
	c.publisherCtx, c.publisherCancel = context.WithCancel(context.Background())
	c.publisherDone = make(chan struct{})
	go func() {
		defer close(c.publisherDone)
		for {
			select {
			case event := <-c.eventCh:
				publisher.Publish(event)
			case <-c.publisherCtx.Done():
				return
			}
		}
	}()
}

// emit never blocks; events are dropped when the buffer is full.
func (c *Client) emit(event diag.Event) {
	select {
	case c.eventCh <- event:
	default:
	}
}
