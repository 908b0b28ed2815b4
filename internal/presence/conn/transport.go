package conn

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	dErrors "vigil/pkg/domain-errors"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	writeTimeout            = 5 * time.Second
)

// Transport is a single live presence socket. Exactly one goroutine calls
// ReadMessage; WriteMessage may be called from any goroutine and is
// serialized by the implementation. Close unblocks a pending read.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens transports. The manager never dials while a transport is
// live, so implementations see at most one outstanding Dial per manager.
//
// Error Contract:
//   - CodeUnauthorized: the server rejected the handshake credentials.
//   - CodeUnavailable: the endpoint is unreachable or refused the upgrade.
type Dialer interface {
	Dial(ctx context.Context, socketURL string) (Transport, error)
}

// WSDialer dials WebSocket transports.
type WSDialer struct {
	// Header is attached to the handshake request; callers put the bearer
	// token here. Browser hosts cannot set socket headers, so the server
	// side also accepts a token query parameter.
	Header http.Header

	// HandshakeTimeout bounds the upgrade round trip. Zero means 10s.
	HandshakeTimeout time.Duration
}

func (d *WSDialer) Dial(ctx context.Context, socketURL string) (Transport, error) {
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	c, resp, err := dialer.DialContext(ctx, socketURL, d.Header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusUnauthorized {
				return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "socket handshake rejected")
			}
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "presence socket dial failed")
	}
	return &wsTransport{conn: c}, nil
}

// wsTransport guards writes with a mutex because pings and filter updates
// come from different goroutines.
type wsTransport struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) WriteMessage(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
