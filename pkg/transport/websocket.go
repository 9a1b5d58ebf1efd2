package transport

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/coder/websocket"

	"solar-telemetry/pkg/events"
)

const wsReadLimit = 1 << 20

// WebSocketDialer connects to the backend's /ws endpoint. http and https
// addresses are mapped onto ws and wss.
type WebSocketDialer struct {
	Path string // defaults to "/ws"
}

func (d *WebSocketDialer) Dial(ctx context.Context, address string) (Conn, error) {
	target, err := d.endpoint(address)
	if err != nil {
		return nil, err
	}

	c, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", target, err)
	}
	c.SetReadLimit(wsReadLimit)
	return &wsConn{conn: c}, nil
}

func (d *WebSocketDialer) endpoint(address string) (string, error) {
	u, err := url.Parse(address)
	if err != nil {
		return "", fmt.Errorf("parse address: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("websocket: %w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	path := d.Path
	if path == "" {
		path = "/ws"
	}
	if !strings.HasSuffix(u.Path, path) {
		u.Path = strings.TrimRight(u.Path, "/") + path
	}
	return u.String(), nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Name() string { return NameWebSocket }

func (c *wsConn) Next(ctx context.Context) (events.Message, error) {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return events.Message{}, ErrClosed
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return events.Message{}, ctxErr
			}
			return events.Message{}, fmt.Errorf("websocket read: %w", err)
		}
		if typ != websocket.MessageText {
			continue
		}
		return events.ParseEnvelope(data), nil
	}
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
