package events

import (
	"log"
	"os"
	"testing"
	"time"

	"solar-telemetry/pkg/diag"
)

type recordingReducer struct {
	metrics     []MetricsPayload
	alerts      []AlertPayload
	anomalies   []AnomalyPayload
	predictions []PredictionPayload
	order       []string
}

func (r *recordingReducer) ApplyMetrics(p MetricsPayload) {
	r.metrics = append(r.metrics, p)
	r.order = append(r.order, TypeSolarData)
}

func (r *recordingReducer) ApplyAlert(p AlertPayload) {
	r.alerts = append(r.alerts, p)
	r.order = append(r.order, TypeAlert)
}

func (r *recordingReducer) ApplyAnomaly(p AnomalyPayload) {
	r.anomalies = append(r.anomalies, p)
	r.order = append(r.order, TypeAnomaly)
}

func (r *recordingReducer) ApplyPrediction(p PredictionPayload) {
	r.predictions = append(r.predictions, p)
	r.order = append(r.order, TypePrediction)
}

func (r *recordingReducer) calls() int { return len(r.order) }

func createTestLogger() *log.Logger { return log.New(os.Stdout, "[TEST] ", 0) }

func newTestClassifier() (*Classifier, *recordingReducer, *[]diag.Event) {
	reducer := &recordingReducer{}
	var emitted []diag.Event
	c := NewClassifier(reducer, createTestLogger(), func(e diag.Event) { emitted = append(emitted, e) })
	return c, reducer, &emitted
}

func TestDispatch_SolarData(t *testing.T) {
	c, reducer, emitted := newTestClassifier()

	msg := ParseEnvelope([]byte(`{"type":"solar-data","data":{"solarPower":2500,"loadPower":1200.5,"batteryLevel":87,"gridPower":-300,"temperature":31.2,"humidity":40}}`))
	if !c.Dispatch(msg) {
		t.Fatal("expected solar-data to be dispatched")
	}

	if len(reducer.metrics) != 1 {
		t.Fatalf("expected 1 metrics call, got %d", len(reducer.metrics))
	}
	want := MetricsPayload{SolarPower: 2500, LoadPower: 1200.5, BatteryLevel: 87, GridPower: -300, Temperature: 31.2, Humidity: 40}
	if reducer.metrics[0] != want {
		t.Errorf("expected %+v, got %+v", want, reducer.metrics[0])
	}
	if len(*emitted) != 1 || (*emitted)[0].EventType() != "message_dispatched" {
		t.Errorf("expected a single message_dispatched event, got %v", *emitted)
	}
}

func TestDispatch_MissingFieldsDefaultToZero(t *testing.T) {
	c, reducer, _ := newTestClassifier()

	c.Dispatch(Message{Type: TypeSolarData, Data: []byte(`{"solarPower":100,"loadPower":"250","temperature":null,"humidity":"n/a"}`)})

	got := reducer.metrics[0]
	if got.BatteryLevel != 0 {
		t.Errorf("expected missing batteryLevel to be 0, got %f", got.BatteryLevel)
	}
	if got.LoadPower != 250 {
		t.Errorf("expected numeric string to parse, got %f", got.LoadPower)
	}
	if got.Temperature != 0 || got.Humidity != 0 {
		t.Errorf("expected null and non-numeric to be 0, got %f/%f", got.Temperature, got.Humidity)
	}
}

func TestDispatch_NonFiniteNumbersDefaultToZero(t *testing.T) {
	c, reducer, _ := newTestClassifier()

	c.Dispatch(ParseEnvelope([]byte(`{"type":"solar-data","data":{"solarPower":1e400,"loadPower":"NaN","batteryLevel":50}}`)))
	c.Dispatch(ParseEnvelope([]byte(`{"type":"prediction","data":{"predictedPower":"-Inf","confidence":1e999}}`)))

	got := reducer.metrics[0]
	if got.SolarPower != 0 || got.LoadPower != 0 {
		t.Errorf("expected non-finite readings to be 0, got %f/%f", got.SolarPower, got.LoadPower)
	}
	if got.BatteryLevel != 50 {
		t.Errorf("expected finite reading to survive, got %f", got.BatteryLevel)
	}
	p := reducer.predictions[0]
	if p.PredictedPower != 0 || p.Confidence != 0 {
		t.Errorf("expected non-finite prediction to be 0, got %+v", p)
	}
}

func TestDispatch_Alert(t *testing.T) {
	c, reducer, _ := newTestClassifier()

	c.Dispatch(Message{Type: TypeAlert, Data: []byte(`{"id":"a1","severity":"critical","message":"inverter offline","timestamp":"2024-05-01T10:00:00Z"}`)})

	if len(reducer.alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(reducer.alerts))
	}
	a := reducer.alerts[0]
	if a.ID != "a1" || a.Severity != SeverityCritical || a.Message != "inverter offline" {
		t.Errorf("unexpected alert %+v", a)
	}
	if !a.Timestamp.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected timestamp %v", a.Timestamp)
	}
}

func TestDispatch_AnomalyAndPrediction(t *testing.T) {
	c, reducer, _ := newTestClassifier()

	c.Dispatch(Message{Type: TypeAnomaly, Data: []byte(`{"message":"X","timestamp":1714557600000}`)})
	c.Dispatch(Message{Type: TypePrediction, Data: []byte(`{"predictedPower":3100,"confidence":0.82,"timestamp":1714557600000}`)})

	if len(reducer.anomalies) != 1 || reducer.anomalies[0].Message != "X" {
		t.Errorf("unexpected anomalies %+v", reducer.anomalies)
	}
	if !reducer.anomalies[0].Timestamp.Equal(time.UnixMilli(1714557600000)) {
		t.Errorf("unexpected anomaly timestamp %v", reducer.anomalies[0].Timestamp)
	}
	if len(reducer.predictions) != 1 {
		t.Fatalf("expected 1 prediction, got %d", len(reducer.predictions))
	}
	if p := reducer.predictions[0]; p.PredictedPower != 3100 || p.Confidence != 0.82 {
		t.Errorf("unexpected prediction %+v", p)
	}
}

func TestDispatch_InformationalTypes(t *testing.T) {
	c, reducer, emitted := newTestClassifier()

	for _, typ := range []string{TypeConnected, TypeStats} {
		if c.Dispatch(Message{Type: typ, Data: []byte(`{"clients":3}`)}) {
			t.Errorf("expected %s not to be dispatched", typ)
		}
	}

	if reducer.calls() != 0 {
		t.Errorf("expected no reducer calls, got %d", reducer.calls())
	}
	for _, e := range *emitted {
		if e.EventType() != "info_received" {
			t.Errorf("expected info_received, got %s", e.EventType())
		}
	}
}

func TestDispatch_Drops(t *testing.T) {
	tests := []struct {
		name   string
		msg    Message
		reason string
	}{
		{"unknown type", Message{Type: "unknown-future-type", Data: []byte(`{"a":1}`)}, DropUnknownType},
		{"empty type", Message{}, DropUnknownType},
		{"missing data", Message{Type: TypeSolarData}, DropInvalidPayload},
		{"array data", Message{Type: TypeAlert, Data: []byte(`[1,2]`)}, DropInvalidPayload},
		{"scalar data", Message{Type: TypePrediction, Data: []byte(`42`)}, DropInvalidPayload},
		{"broken json", Message{Type: TypeAnomaly, Data: []byte(`{"message":`)}, DropInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, reducer, emitted := newTestClassifier()

			if c.Dispatch(tt.msg) {
				t.Fatal("expected message to be dropped")
			}
			if reducer.calls() != 0 {
				t.Errorf("expected no reducer calls, got %d", reducer.calls())
			}
			if len(*emitted) != 1 {
				t.Fatalf("expected 1 diagnostic event, got %d", len(*emitted))
			}
			dropped, ok := (*emitted)[0].(diag.MessageDropped)
			if !ok || dropped.Reason != tt.reason {
				t.Errorf("expected drop reason %q, got %#v", tt.reason, (*emitted)[0])
			}
		})
	}
}

func TestDispatch_PreservesArrivalOrder(t *testing.T) {
	c, reducer, _ := newTestClassifier()

	c.Dispatch(Message{Type: TypeAlert, Data: []byte(`{"id":"1"}`)})
	c.Dispatch(Message{Type: TypeSolarData, Data: []byte(`{}`)})
	c.Dispatch(Message{Type: TypePrediction, Data: []byte(`{}`)})
	c.Dispatch(Message{Type: TypeAnomaly, Data: []byte(`{}`)})

	want := []string{TypeAlert, TypeSolarData, TypePrediction, TypeAnomaly}
	for i, typ := range want {
		if reducer.order[i] != typ {
			t.Errorf("call %d: expected %s, got %s", i, typ, reducer.order[i])
		}
	}
}

func TestNilEmitterAndLogger(t *testing.T) {
	c := NewClassifier(&recordingReducer{}, nil, nil)
	c.Dispatch(Message{Type: "nope"})
	c.Dispatch(Message{Type: TypeStats})
}
