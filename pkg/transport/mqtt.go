package transport

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"solar-telemetry/pkg/events"
)

const (
	defaultTopicPrefix = "solar"
	mqttQueueSize      = 256
	mqttQuiesceMillis  = 250
)

// MQTTDialer subscribes to <prefix>/# on a broker given as
// mqtt://host:port/<prefix>. Retries belong to the connection manager, so the
// paho client never reconnects on its own.
type MQTTDialer struct {
	ClientID string
	Username string
	Password string
	QoS      byte
}

func (d *MQTTDialer) Dial(ctx context.Context, address string) (Conn, error) {
	broker, prefix, err := parseBrokerAddress(address)
	if err != nil {
		return nil, err
	}

	clientID := d.ClientID
	if clientID == "" {
		clientID = "solarwatch-" + uuid.NewString()
	}

	c := &mqttConn{
		prefix: prefix,
		msgs:   make(chan events.Message, mqttQueueSize),
		lost:   make(chan error, 1),
		done:   make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetUsername(d.Username)
	opts.SetPassword(d.Password)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetCleanSession(true)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		select {
		case c.lost <- err:
		default:
		}
	})

	c.client = mqtt.NewClient(opts)
	if err := waitToken(ctx, c.client.Connect()); err != nil {
		// A connect abandoned on ctx is still in flight; paho tears the
		// session down once it settles.
		c.client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, err)
	}

	topic := prefix + "/#"
	if err := waitToken(ctx, c.client.Subscribe(topic, d.QoS, c.handle)); err != nil {
		c.client.Disconnect(0)
		return nil, fmt.Errorf("mqtt subscribe %s: %w", topic, err)
	}
	return c, nil
}

func parseBrokerAddress(address string) (broker, prefix string, err error) {
	u, err := url.Parse(address)
	if err != nil {
		return "", "", fmt.Errorf("parse address: %w", err)
	}
	var scheme string
	switch u.Scheme {
	case "mqtt", "tcp":
		scheme = "tcp"
	case "mqtts", "ssl":
		scheme = "ssl"
	default:
		return "", "", fmt.Errorf("mqtt: %w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	prefix = strings.Trim(u.Path, "/")
	if prefix == "" {
		prefix = defaultTopicPrefix
	}
	return scheme + "://" + u.Host, prefix, nil
}

func waitToken(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

type mqttConn struct {
	client mqtt.Client
	prefix string

	msgs chan events.Message
	lost chan error

	closeOnce sync.Once
	done      chan struct{}
}

func (c *mqttConn) Name() string { return NameMQTT }

func (c *mqttConn) handle(_ mqtt.Client, m mqtt.Message) {
	msg := fromPublish(c.prefix, m)
	select {
	case c.msgs <- msg:
	case <-c.done:
	}
}

func (c *mqttConn) Next(ctx context.Context) (events.Message, error) {
	// Drain queued messages before reporting a lost connection.
	select {
	case msg := <-c.msgs:
		return msg, nil
	default:
	}

	select {
	case msg := <-c.msgs:
		return msg, nil
	case err := <-c.lost:
		return events.Message{}, fmt.Errorf("mqtt connection lost: %w", err)
	case <-c.done:
		return events.Message{}, ErrClosed
	case <-ctx.Done():
		return events.Message{}, ctx.Err()
	}
}

func (c *mqttConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.client.Disconnect(mqttQuiesceMillis)
	})
	return nil
}

// fromPublish turns a publish into a Message. Payloads that already carry an
// envelope are used as is; bare payloads take their type from the topic
// suffix, so solar/solar-data carries a solar-data event.
func fromPublish(prefix string, m mqtt.Message) events.Message {
	payload := m.Payload()
	if msg := events.ParseEnvelope(payload); msg.Type != "" {
		return msg
	}

	typ := strings.TrimPrefix(m.Topic(), prefix+"/")
	if i := strings.LastIndex(typ, "/"); i >= 0 {
		typ = typ[i+1:]
	}
	return events.Message{Type: typ, Data: payload}
}
