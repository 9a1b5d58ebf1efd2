// Package metrics exports client diagnostics and live readings to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"solar-telemetry/pkg/diag"
	"solar-telemetry/pkg/store"
)

var connectionStates = []string{"disconnected", "connecting", "connected", "reconnecting"}

// Publisher is a diag.Publisher that updates Prometheus collectors.
type Publisher struct {
	MessagesTotal      *prometheus.CounterVec
	DroppedTotal       *prometheus.CounterVec
	InfoTotal          prometheus.Counter
	ErrorsTotal        *prometheus.CounterVec
	ReconnectsTotal    prometheus.Counter
	ReconnectsFailed   prometheus.Counter
	ConnectionState    *prometheus.GaugeVec
	SolarPowerWatts    prometheus.Gauge
	LoadPowerWatts     prometheus.Gauge
	GridPowerWatts     prometheus.Gauge
	BatteryLevel       prometheus.Gauge
	TemperatureCelsius prometheus.Gauge
	Humidity           prometheus.Gauge
	EfficiencyPercent  prometheus.Gauge
	AlertsActive       prometheus.Gauge
}

// NewPublisher registers the collectors with reg. A nil reg uses the default registry.
func NewPublisher(reg prometheus.Registerer) *Publisher {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	p := &Publisher{
		MessagesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solarwatch_messages_dispatched_total",
				Help: "Inbound messages applied to state, by type",
			},
			[]string{"type"},
		),
		DroppedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solarwatch_messages_dropped_total",
				Help: "Inbound messages dropped, by reason",
			},
			[]string{"reason"},
		),
		InfoTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "solarwatch_messages_info_total",
			Help: "Informational messages received",
		}),
		ErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solarwatch_transport_errors_total",
				Help: "Transport errors, by context and severity",
			},
			[]string{"context", "severity"},
		),
		ReconnectsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "solarwatch_reconnects_scheduled_total",
			Help: "Reconnection attempts scheduled",
		}),
		ReconnectsFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "solarwatch_reconnects_exhausted_total",
			Help: "Times the reconnection policy gave up",
		}),
		ConnectionState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "solarwatch_connection_state",
				Help: "1 for the current connection state, 0 otherwise",
			},
			[]string{"state"},
		),
		SolarPowerWatts: f.NewGauge(prometheus.GaugeOpts{
			Name: "solarwatch_solar_power_watts",
			Help: "Latest solar output",
		}),
		LoadPowerWatts: f.NewGauge(prometheus.GaugeOpts{
			Name: "solarwatch_load_power_watts",
			Help: "Latest household load",
		}),
		GridPowerWatts: f.NewGauge(prometheus.GaugeOpts{
			Name: "solarwatch_grid_power_watts",
			Help: "Latest grid exchange",
		}),
		BatteryLevel: f.NewGauge(prometheus.GaugeOpts{
			Name: "solarwatch_battery_level_percent",
			Help: "Latest battery charge",
		}),
		TemperatureCelsius: f.NewGauge(prometheus.GaugeOpts{
			Name: "solarwatch_temperature_celsius",
			Help: "Latest ambient temperature",
		}),
		Humidity: f.NewGauge(prometheus.GaugeOpts{
			Name: "solarwatch_humidity_percent",
			Help: "Latest ambient humidity",
		}),
		EfficiencyPercent: f.NewGauge(prometheus.GaugeOpts{
			Name: "solarwatch_efficiency_percent",
			Help: "Solar output as a percentage of rated capacity",
		}),
		AlertsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "solarwatch_alerts",
			Help: "Alerts currently held",
		}),
	}
	p.setConnectionState("disconnected")
	return p
}

func (p *Publisher) Publish(event diag.Event) {
	switch e := event.(type) {
	case diag.MessageDispatched:
		p.MessagesTotal.WithLabelValues(e.Type).Inc()
	case diag.MessageDropped:
		p.DroppedTotal.WithLabelValues(e.Reason).Inc()
	case diag.InfoReceived:
		p.InfoTotal.Inc()
	case diag.TransportError:
		p.ErrorsTotal.WithLabelValues(e.Context, e.Severity.String()).Inc()
	case diag.ReconnectScheduled:
		p.ReconnectsTotal.Inc()
	case diag.ReconnectExhausted:
		p.ReconnectsFailed.Inc()
	case diag.ConnectionStateChanged:
		p.setConnectionState(e.State)
	}
}

// ObserveState copies the latest readings into the gauges.
func (p *Publisher) ObserveState(m store.Metrics, efficiency float64, alerts int) {
	p.SolarPowerWatts.Set(m.SolarPower)
	p.LoadPowerWatts.Set(m.LoadPower)
	p.GridPowerWatts.Set(m.GridPower)
	p.BatteryLevel.Set(m.BatteryLevel)
	p.TemperatureCelsius.Set(m.Temperature)
	p.Humidity.Set(m.Humidity)
	p.EfficiencyPercent.Set(efficiency)
	p.AlertsActive.Set(float64(alerts))
}

func (p *Publisher) setConnectionState(current string) {
	for _, s := range connectionStates {
		v := 0.0
		if s == current {
			v = 1
		}
		p.ConnectionState.WithLabelValues(s).Set(v)
	}
}
