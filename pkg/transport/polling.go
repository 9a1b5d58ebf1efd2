package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"solar-telemetry/pkg/events"
)

const (
	defaultPollInterval = time.Second
	defaultPollTimeout  = 30 * time.Second
	maxPollBody         = 4 << 20
)

// PollingDialer reads the backend through GET <base>/poll?cursor=N. Each
// response is {"cursor": n, "events": [envelope, ...]}. A 204 or 410 answer
// means the backend has closed the channel.
type PollingDialer struct {
	Client   *http.Client
	Interval time.Duration
	Path     string // defaults to "/poll"
}

func (d *PollingDialer) Dial(ctx context.Context, address string) (Conn, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("parse address: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("polling: %w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	path := d.Path
	if path == "" {
		path = "/poll"
	}
	u.Path = strings.TrimRight(u.Path, "/") + path

	client := d.Client
	if client == nil {
		client = &http.Client{Timeout: defaultPollTimeout}
	}
	interval := d.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	c := &pollConn{
		client:   client,
		endpoint: u,
		interval: interval,
		done:     make(chan struct{}),
	}
	// The first poll doubles as the connectivity check.
	if err := c.poll(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

type pollConn struct {
	client   *http.Client
	endpoint *url.URL
	interval time.Duration

	cursor  int64
	pending []events.Message

	closeOnce sync.Once
	done      chan struct{}
}

func (c *pollConn) Name() string { return NamePolling }

func (c *pollConn) Next(ctx context.Context) (events.Message, error) {
	for len(c.pending) == 0 {
		select {
		case <-c.done:
			return events.Message{}, ErrClosed
		case <-ctx.Done():
			return events.Message{}, ctx.Err()
		case <-time.After(c.interval):
		}
		if err := c.poll(ctx); err != nil {
			return events.Message{}, err
		}
	}
	msg := c.pending[0]
	c.pending = c.pending[1:]
	return msg, nil
}

func (c *pollConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *pollConn) poll(ctx context.Context) error {
	u := *c.endpoint
	q := u.Query()
	q.Set("cursor", strconv.FormatInt(c.cursor, 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build poll request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("poll %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusGone:
		return ErrClosed
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("poll %s: unexpected status %d", c.endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPollBody))
	if err != nil {
		return fmt.Errorf("read poll response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return fmt.Errorf("poll %s: malformed response", c.endpoint)
	}

	root := gjson.ParseBytes(body)
	if cursor := root.Get("cursor"); cursor.Exists() {
		c.cursor = cursor.Int()
	}
	root.Get("events").ForEach(func(_, ev gjson.Result) bool {
		c.pending = append(c.pending, events.ParseEnvelope([]byte(ev.Raw)))
		return true
	})
	return nil
}
