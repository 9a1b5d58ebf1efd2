package events

import (
	"log"

	"github.com/tidwall/gjson"

	"solar-telemetry/pkg/diag"
)

// Drop reasons reported through diagnostics.
const (
	DropUnknownType    = "unknown_type"
	DropInvalidPayload = "invalid_payload"
)

// Reducer receives classified payloads. Implementations must not fail on
// zero-valued fields.
type Reducer interface {
	ApplyMetrics(MetricsPayload)
	ApplyAlert(AlertPayload)
	ApplyAnomaly(AnomalyPayload)
	ApplyPrediction(PredictionPayload)
}

// Classifier routes each inbound message to exactly one reducer method by its
// declared type. It holds no state of its own.
type Classifier struct {
	reducer Reducer
	logger  *log.Logger
	emit    func(diag.Event)
}

// NewClassifier creates a classifier dispatching to reducer. emit may be nil.
func NewClassifier(reducer Reducer, logger *log.Logger, emit func(diag.Event)) *Classifier {
	return &Classifier{reducer: reducer, logger: logger, emit: emit}
}

// Dispatch classifies msg and applies it. It reports whether the message
// reached a reducer; informational and dropped messages return false.
func (c *Classifier) Dispatch(msg Message) bool {
	switch msg.Type {
	case TypeConnected, TypeStats:
		c.logf("received %s message (%d bytes)", msg.Type, len(msg.Data))
		c.publish(diag.NewInfoReceived(msg.Type, len(msg.Data)))
		return false
	case TypeSolarData, TypeAlert, TypePrediction, TypeAnomaly:
	default:
		c.drop(msg.Type, DropUnknownType)
		return false
	}

	data, ok := payloadObject(msg.Data)
	if !ok {
		c.drop(msg.Type, DropInvalidPayload)
		return false
	}

	switch msg.Type {
	case TypeSolarData:
		c.reducer.ApplyMetrics(decodeMetrics(data))
	case TypeAlert:
		c.reducer.ApplyAlert(decodeAlert(data))
	case TypePrediction:
		c.reducer.ApplyPrediction(decodePrediction(data))
	case TypeAnomaly:
		c.reducer.ApplyAnomaly(decodeAnomaly(data))
	}

	c.publish(diag.NewMessageDispatched(msg.Type))
	return true
}

func payloadObject(raw []byte) (gjson.Result, bool) {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return gjson.Result{}, false
	}
	data := gjson.ParseBytes(raw)
	return data, data.IsObject()
}

func (c *Classifier) drop(msgType, reason string) {
	c.logf("dropping %q message: %s", msgType, reason)
	c.publish(diag.NewMessageDropped(msgType, reason))
}

func (c *Classifier) publish(event diag.Event) {
	if c.emit != nil {
		c.emit(event)
	}
}

func (c *Classifier) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
