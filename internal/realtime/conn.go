package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Event names carried in the envelope.
const (
	EventNotificationNew = "notification:new"
)

// Envelope is one inbound frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Conn is the read side of a channel connection. [*websocket.Conn] satisfies it.
type Conn interface {
	ReadJSON(v any) error
	Close() error
}

// Dialer opens a connection to url with the given handshake headers.
type Dialer func(ctx context.Context, url string, header http.Header) (Conn, error)

// WebsocketDialer adapts a gorilla dialer. A nil dialer uses
// [websocket.DefaultDialer] with a 10 second handshake timeout.
func WebsocketDialer(d *websocket.Dialer) Dialer {
	if d == nil {
		d = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		}
	}

	return func(ctx context.Context, url string, header http.Header) (Conn, error) {
		conn, resp, err := d.DialContext(ctx, url, header)
		if err != nil {
			if resp != nil {
				return nil, fmt.Errorf("websocket handshake failed with status %d: %w", resp.StatusCode, err)
			}
			return nil, err
		}
		return conn, nil
	}
}
