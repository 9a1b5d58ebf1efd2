package events

import (
	"math"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Inbound event types sent by the monitoring backend.
const (
	TypeConnected  = "connected"
	TypeSolarData  = "solar-data"
	TypeAlert      = "alert"
	TypePrediction = "prediction"
	TypeAnomaly    = "anomaly"
	TypeStats      = "stats"
)

// Message is one inbound frame: a declared type and its raw JSON payload.
type Message struct {
	Type string
	Data []byte
}

// ParseEnvelope decodes a `{"type": ..., "data": ...}` frame. Frames that are
// not JSON objects yield a Message with an empty Type, which the classifier
// drops as unknown.
func ParseEnvelope(raw []byte) Message {
	if !gjson.ValidBytes(raw) {
		return Message{}
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return Message{}
	}

	msg := Message{Type: root.Get("type").String()}
	if data := root.Get("data"); data.Exists() {
		msg.Data = []byte(data.Raw)
	}
	return msg
}

type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarn     Severity = "WARN"
	SeverityCritical Severity = "CRITICAL"
)

var severityAliases = map[string]Severity{
	"INFO":     SeverityInfo,
	"WARN":     SeverityWarn,
	"WARNING":  SeverityWarn,
	"CRITICAL": SeverityCritical,
	"ERROR":    SeverityCritical,
}

// ParseSeverity maps a backend severity string onto the three known levels.
// Anything unrecognised is treated as INFO.
func ParseSeverity(s string) Severity {
	if sev, ok := severityAliases[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return sev
	}
	return SeverityInfo
}

// MetricsPayload is the data of a solar-data event.
type MetricsPayload struct {
	SolarPower   float64
	LoadPower    float64
	BatteryLevel float64
	GridPower    float64
	Temperature  float64
	Humidity     float64
}

// AlertPayload is the data of an alert event. Timestamp is zero when absent.
type AlertPayload struct {
	ID        string
	Severity  Severity
	Message   string
	Timestamp time.Time
}

// AnomalyPayload is the data of an anomaly event.
type AnomalyPayload struct {
	Message   string
	Timestamp time.Time
}

// PredictionPayload is the data of a prediction event.
type PredictionPayload struct {
	PredictedPower float64
	Confidence     float64
	Timestamp      time.Time
}

func decodeMetrics(data gjson.Result) MetricsPayload {
	return MetricsPayload{
		SolarPower:   number(data.Get("solarPower")),
		LoadPower:    number(data.Get("loadPower")),
		BatteryLevel: number(data.Get("batteryLevel")),
		GridPower:    number(data.Get("gridPower")),
		Temperature:  number(data.Get("temperature")),
		Humidity:     number(data.Get("humidity")),
	}
}

func decodeAlert(data gjson.Result) AlertPayload {
	return AlertPayload{
		ID:        data.Get("id").String(),
		Severity:  ParseSeverity(data.Get("severity").String()),
		Message:   data.Get("message").String(),
		Timestamp: timestamp(data.Get("timestamp")),
	}
}

func decodeAnomaly(data gjson.Result) AnomalyPayload {
	return AnomalyPayload{
		Message:   data.Get("message").String(),
		Timestamp: timestamp(data.Get("timestamp")),
	}
}

func decodePrediction(data gjson.Result) PredictionPayload {
	return PredictionPayload{
		PredictedPower: number(data.Get("predictedPower")),
		Confidence:     number(data.Get("confidence")),
		Timestamp:      timestamp(data.Get("timestamp")),
	}
}

// number accepts JSON numbers and numeric strings; anything else, including
// values that overflow to infinity or spell NaN, is 0.
func number(r gjson.Result) float64 {
	var f float64
	switch r.Type {
	case gjson.Number:
		f = r.Num
	case gjson.String:
		f = r.Float()
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// timestamp accepts epoch milliseconds or an RFC 3339 string.
func timestamp(r gjson.Result) time.Time {
	switch r.Type {
	case gjson.Number:
		return time.UnixMilli(r.Int()).UTC()
	case gjson.String:
		if t, err := time.Parse(time.RFC3339Nano, r.Str); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
