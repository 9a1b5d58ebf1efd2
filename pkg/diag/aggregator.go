package diag

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Clock interface allows for deterministic testing
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Config for diagnostics settings
type Config struct {
	BufferSize        int
	MaxRecentErrors   int
	RateWindowSeconds int
}

func DefaultConfig() Config {
	return Config{
		BufferSize:        1000,
		MaxRecentErrors:   50,
		RateWindowSeconds: 10,
	}
}

// Aggregator consumes diagnostic events on its own goroutine and keeps
// running counters for status output and the state feed.
type Aggregator struct {
	mu    sync.RWMutex
	clock Clock
	cfg   Config

	messagesReceived uint64
	infoMessages     uint64
	dispatchedByType map[string]uint64
	droppedByReason  map[string]uint64
	messageTimes     []time.Time
	lastMessageAt    time.Time

	connectionState   string
	transport         string
	reconnectAttempts uint64
	reconnectsFailed  uint64

	errorsTotal      uint64
	errorsByContext  map[string]uint64
	errorsBySeverity map[ErrorSeverity]uint64

	// Recent errors (ring buffer)
	recentErrors []string
	errorIndex   int

	eventCh chan Event
	done    chan struct{}
	wg      sync.WaitGroup

	startTime time.Time
}

// NewAggregator creates a new diagnostics aggregator
func NewAggregator(clock Clock, cfg Config) *Aggregator {
	if clock == nil {
		clock = RealClock{}
	}
	if cfg.MaxRecentErrors <= 0 {
		cfg.MaxRecentErrors = DefaultConfig().MaxRecentErrors
	}
	if cfg.RateWindowSeconds <= 0 {
		cfg.RateWindowSeconds = DefaultConfig().RateWindowSeconds
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}

	return &Aggregator{
		clock:            clock,
		cfg:              cfg,
		connectionState:  "disconnected",
		dispatchedByType: make(map[string]uint64),
		droppedByReason:  make(map[string]uint64),
		errorsByContext:  make(map[string]uint64),
		errorsBySeverity: make(map[ErrorSeverity]uint64),
		messageTimes:     make([]time.Time, 0, cfg.RateWindowSeconds*10),
		recentErrors:     make([]string, cfg.MaxRecentErrors),
		eventCh:          make(chan Event, cfg.BufferSize),
		done:             make(chan struct{}),
		startTime:        clock.Now(),
	}
}

// Start begins processing diagnostic events
func (a *Aggregator) Start(ctx context.Context) {
	a.wg.Add(1)
	go a.processEvents(ctx)
}

// Stop shuts down the processing goroutine and waits for it
func (a *Aggregator) Stop() {
	close(a.done)
	a.wg.Wait()
}

// Publish implements Publisher
func (a *Aggregator) Publish(event Event) {
	select {
	case a.eventCh <- event:
	default:
		// Drop rather than stall the receive path
	}
}

// Snapshot implements Reader
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	now := a.clock.Now()

	dispatched := make(map[string]uint64, len(a.dispatchedByType))
	for k, v := range a.dispatchedByType {
		dispatched[k] = v
	}
	dropped := make(map[string]uint64, len(a.droppedByReason))
	for k, v := range a.droppedByReason {
		dropped[k] = v
	}
	byContext := make(map[string]uint64, len(a.errorsByContext))
	for k, v := range a.errorsByContext {
		byContext[k] = v
	}
	bySeverity := make(map[ErrorSeverity]uint64, len(a.errorsBySeverity))
	for k, v := range a.errorsBySeverity {
		bySeverity[k] = v
	}

	recentErrors := make([]string, 0)
	for i := 0; i < len(a.recentErrors); i++ {
		idx := (a.errorIndex - i - 1 + len(a.recentErrors)) % len(a.recentErrors)
		if a.recentErrors[idx] != "" {
			recentErrors = append(recentErrors, a.recentErrors[idx])
		}
	}

	return Snapshot{
		MessagesReceived:   a.messagesReceived,
		DispatchedByType:   dispatched,
		DroppedByReason:    dropped,
		InfoMessages:       a.infoMessages,
		MessagesPerSecond:  a.calculateRate(now),
		LastMessageAt:      a.lastMessageAt,
		ConnectionState:    a.connectionState,
		Transport:          a.transport,
		ReconnectAttempts:  a.reconnectAttempts,
		ReconnectsFailed:   a.reconnectsFailed,
		ErrorsTotal:        a.errorsTotal,
		ErrorsByContext:    byContext,
		ErrorsBySeverity:   bySeverity,
		RecentErrors:       recentErrors,
		UptimeSeconds:      now.Sub(a.startTime).Seconds(),
		ChannelUtilization: float64(len(a.eventCh)) / float64(cap(a.eventCh)) * 100,
	}
}

func (a *Aggregator) processEvents(ctx context.Context) {
	defer a.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.done:
			return
		case event := <-a.eventCh:
			a.handleEvent(event)
		}
	}
}

func (a *Aggregator) handleEvent(event Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()

	switch e := event.(type) {
	case MessageDispatched:
		a.countMessage(now)
		a.dispatchedByType[e.Type]++

	case MessageDropped:
		a.countMessage(now)
		a.droppedByReason[e.Reason]++

	case InfoReceived:
		a.countMessage(now)
		a.infoMessages++

	case ConnectionStateChanged:
		a.connectionState = e.State
		a.transport = e.Transport

	case ReconnectScheduled:
		a.reconnectAttempts++

	case ReconnectExhausted:
		a.reconnectsFailed++
		a.addRecentError(fmt.Sprintf("reconnect gave up after %d attempts", e.Attempts))

	case TransportError:
		a.errorsTotal++
		a.errorsByContext[e.Context]++
		a.errorsBySeverity[e.Severity]++
		if e.Err != nil {
			a.addRecentError(e.Context + ": " + e.Err.Error())
		}
	}
}

func (a *Aggregator) countMessage(t time.Time) {
	a.messagesReceived++
	a.lastMessageAt = t

	cutoff := t.Add(-time.Duration(a.cfg.RateWindowSeconds) * time.Second)
	for len(a.messageTimes) > 0 && a.messageTimes[0].Before(cutoff) {
		a.messageTimes = a.messageTimes[1:]
	}
	a.messageTimes = append(a.messageTimes, t)
}

func (a *Aggregator) addRecentError(err string) {
	a.recentErrors[a.errorIndex] = err
	a.errorIndex = (a.errorIndex + 1) % len(a.recentErrors)
}

func (a *Aggregator) calculateRate(now time.Time) float64 {
	if len(a.messageTimes) == 0 {
		return 0.0
	}

	cutoff := now.Add(-time.Duration(a.cfg.RateWindowSeconds) * time.Second)
	count := 0
	for _, t := range a.messageTimes {
		if t.After(cutoff) {
			count++
		}
	}

	return float64(count) / float64(a.cfg.RateWindowSeconds)
}
