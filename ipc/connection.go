package ipc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
)

// Handler processes a received envelope. Return nil to send no reply.
type Handler func(env Envelope) (*Envelope, error)

// Transport moves whole envelopes. The framing is the transport's concern:
// stream sockets use a length prefix, websockets one message per envelope.
type Transport interface {
	Read() (Envelope, error)
	Write(env Envelope) error
	Close() error
}

type streamTransport struct {
	rwc io.ReadWriteCloser
	mu  sync.Mutex
}

// NewStreamTransport frames envelopes over a byte stream such as a unix
// socket.
func NewStreamTransport(rwc io.ReadWriteCloser) Transport {
	return &streamTransport{rwc: rwc}
}

func (t *streamTransport) Read() (Envelope, error) { return ReadEnvelope(t.rwc) }

func (t *streamTransport) Write(env Envelope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return WriteEnvelope(t.rwc, env)
}

func (t *streamTransport) Close() error { return t.rwc.Close() }

// Connection represents a single game bridge talking to the agent.
// Each game player gets its own connection, identified after the hello handshake.
type Connection struct {
	transport Transport
	handlers  map[string]Handler
	validator *Validator
	Player    string
}

func NewConnection(t Transport, handlers map[string]Handler) *Connection {
	if handlers == nil {
		handlers = make(map[string]Handler)
	}
	return &Connection{
		transport: t,
		handlers:  handlers,
	}
}

// WithValidator checks every inbound envelope against v before dispatch.
func (c *Connection) WithValidator(v *Validator) *Connection {
	c.validator = v
	return c
}

func (c *Connection) RegisterHandler(msgType string, handler Handler) {
	c.handlers[msgType] = handler
}

func (c *Connection) Send(msgType string, data any) error {
	env, err := NewEnvelope(msgType, data)
	if err != nil {
		return err
	}
	return c.transport.Write(env)
}

// ReadLoop blocks until the connection closes, errors, or ctx is done. It
// owns the transport lifetime so callers don't need to track cleanup.
func (c *Connection) ReadLoop(ctx context.Context) {
	defer c.transport.Close()

	stop := context.AfterFunc(ctx, func() { c.transport.Close() })
	defer stop()

	for {
		env, err := c.transport.Read()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				slog.Info("connection closed", "player", c.Player)
			} else {
				slog.Warn("connection read ended", "player", c.Player, "error", err)
			}
			return
		}

		if c.validator != nil {
			if err := c.validator.Validate(env); err != nil {
				slog.Warn("rejected message", "type", env.Type, "error", err)
				if err := c.Send(TypeError, ErrorMessage{Message: err.Error()}); err != nil {
					return
				}
				continue
			}
		}

		handler, ok := c.handlers[env.Type]
		if !ok {
			slog.Warn("no handler for message type", "type", env.Type)
			continue
		}

		resp, err := handler(env)
		if err != nil {
			slog.Error("handler error", "type", env.Type, "error", err)
			if err := c.Send(TypeError, ErrorMessage{Message: err.Error()}); err != nil {
				return
			}
			continue
		}

		if resp != nil {
			if err := c.transport.Write(*resp); err != nil {
				slog.Error("failed to send response", "type", resp.Type, "error", err)
				return
			}
			slog.Debug("sent response", "type", resp.Type, "player", c.Player)
		}
	}
}
