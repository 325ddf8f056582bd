package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 5 * time.Second

type wsTransport struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// DialWebSocket connects to a bridge that speaks JSON envelopes over
// websocket text frames.
func DialWebSocket(ctx context.Context, url string) (Transport, error) {
	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := d.DialContext(ctx, url, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	conn.SetReadLimit(MaxFrame)
	return &wsTransport{conn: conn}, nil
}

// NewWebSocketTransport wraps an already established connection, e.g. one
// accepted by a websocket.Upgrader.
func NewWebSocketTransport(conn *websocket.Conn) Transport {
	conn.SetReadLimit(MaxFrame)
	return &wsTransport{conn: conn}
}

func (t *wsTransport) Read() (Envelope, error) {
	_, b, err := t.conn.ReadMessage()
	if err != nil {
		return Envelope{}, err
	}
	return decodeEnvelope(b)
}

func (t *wsTransport) Write(env Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, b)
}

func (t *wsTransport) Close() error { return t.conn.Close() }
