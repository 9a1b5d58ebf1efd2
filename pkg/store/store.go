package store

import (
	"fmt"
	"sync"
	"time"

	"solar-telemetry/pkg/events"
)

// DefaultRatedCapacityW is the array capacity used for efficiency when none is configured.
const DefaultRatedCapacityW = 5000.0

// Metrics is the latest solar-data reading. It is always replaced as a whole.
type Metrics struct {
	SolarPower   float64 `json:"solarPower"`
	LoadPower    float64 `json:"loadPower"`
	BatteryLevel float64 `json:"batteryLevel"`
	GridPower    float64 `json:"gridPower"`
	Temperature  float64 `json:"temperature"`
	Humidity     float64 `json:"humidity"`
}

// Prediction is the latest power forecast. No history is kept.
type Prediction struct {
	PredictedPower float64   `json:"predictedPower"`
	Confidence     float64   `json:"confidence"`
	Timestamp      time.Time `json:"timestamp"`
}

// Snapshot is a point-in-time copy of the store. Prediction is nil until the
// first prediction event arrives.
type Snapshot struct {
	Metrics    Metrics      `json:"metrics"`
	Alerts     []AlertEntry `json:"alerts"`
	Prediction *Prediction  `json:"prediction"`
	Efficiency float64      `json:"efficiency"`
}

// Store holds the live telemetry state. Reducers are serialized and each
// one notifies subscribers before the next one starts.
type Store struct {
	applyMu sync.Mutex

	mu             sync.RWMutex
	ratedCapacityW float64
	metrics        Metrics
	alerts         *AlertBuffer
	prediction     *Prediction
	lastIDMillis   int64

	now func() time.Time

	subMu  sync.Mutex
	subs   map[int]func(Snapshot)
	nextID int
}

type Option func(*Store)

// WithClock overrides the time source used for synthesized ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store. A non-positive capacity falls back to the default.
func New(ratedCapacityW float64, opts ...Option) *Store {
	if ratedCapacityW <= 0 {
		ratedCapacityW = DefaultRatedCapacityW
	}
	s := &Store{
		ratedCapacityW: ratedCapacityW,
		alerts:         NewAlertBuffer(MaxAlerts),
		now:            time.Now,
		subs:           make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Efficiency is power as a percentage of rated capacity. It is not clamped:
// output above the rating reads as more than 100.
func Efficiency(powerW, ratedCapacityW float64) float64 {
	if powerW <= 0 || ratedCapacityW <= 0 {
		return 0
	}
	return powerW / ratedCapacityW * 100
}

func (s *Store) ApplyMetrics(p events.MetricsPayload) {
	s.apply(func() {
		s.metrics = Metrics{
			SolarPower:   p.SolarPower,
			LoadPower:    p.LoadPower,
			BatteryLevel: p.BatteryLevel,
			GridPower:    p.GridPower,
			Temperature:  p.Temperature,
			Humidity:     p.Humidity,
		}
	})
}

func (s *Store) ApplyAlert(p events.AlertPayload) {
	s.apply(func() {
		id := p.ID
		if id == "" {
			id = s.syntheticID("alert")
		}
		s.alerts.Push(AlertEntry{
			ID:        id,
			Severity:  p.Severity,
			Message:   p.Message,
			Timestamp: s.timestampOrNow(p.Timestamp),
		})
	})
}

func (s *Store) ApplyAnomaly(p events.AnomalyPayload) {
	s.apply(func() {
		s.alerts.Push(AlertEntry{
			ID:        s.syntheticID("anomaly"),
			Severity:  events.SeverityWarn,
			Message:   p.Message,
			Timestamp: s.timestampOrNow(p.Timestamp),
		})
	})
}

func (s *Store) ApplyPrediction(p events.PredictionPayload) {
	s.apply(func() {
		s.prediction = &Prediction{
			PredictedPower: p.PredictedPower,
			Confidence:     p.Confidence,
			Timestamp:      s.timestampOrNow(p.Timestamp),
		}
	})
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every reducer. The
// returned function removes the subscription and is safe to call twice.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) apply(reduce func()) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	s.mu.Lock()
	reduce()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

func (s *Store) notify(snap Snapshot) {
	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Metrics:    s.metrics,
		Alerts:     s.alerts.Slice(),
		Efficiency: Efficiency(s.metrics.SolarPower, s.ratedCapacityW),
	}
	if s.prediction != nil {
		p := *s.prediction
		snap.Prediction = &p
	}
	return snap
}

// syntheticID builds "<prefix>-<unix millis>", bumping the millisecond when
// two ids would collide.
func (s *Store) syntheticID(prefix string) string {
	ms := s.now().UnixMilli()
	if ms <= s.lastIDMillis {
		ms = s.lastIDMillis + 1
	}
	s.lastIDMillis = ms
	return fmt.Sprintf("%s-%d", prefix, ms)
}

func (s *Store) timestampOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return s.now().UTC()
	}
	return t
}
