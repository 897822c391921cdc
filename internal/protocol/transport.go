package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	nats "github.com/nats-io/nats.go"
)

// Transport carries an already-encoded Request to a Dispatcher (possibly
// across a process boundary) and returns the encoded Response.
type Transport interface {
	Call(ctx context.Context, req Request) (Response, error)
}

// Loopback is the default, in-process transport for the CLI-embedded
// engine: it calls the Dispatcher directly, with no serialization round
// trip, since caller and dispatcher share an address space.
type Loopback struct {
	Dispatcher *Dispatcher
}

func (l Loopback) Call(ctx context.Context, req Request) (Response, error) {
	return l.Dispatcher.Dispatch(ctx, req), nil
}

// NATSTransport carries requests over a nats.go request/reply subject,
// with a companion streaming subject for progress notifications, for the
// standalone daemon mode — grounded on ODSapper-CLIAIRMONITOR's
// internal/nats.Client request/reply wrapper.
type NATSTransport struct {
	conn    *nats.Conn
	subject string
	timeout time.Duration
}

// NewNATSTransport connects to url and binds to subject (the request/reply
// subject; subject+".progress" is used for streaming notifications).
func NewNATSTransport(url, subject string, timeout time.Duration) (*NATSTransport, error) {
	conn, err := nats.Connect(url,
		nats.Name("memex"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("protocol: connect to nats: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &NATSTransport{conn: conn, subject: subject, timeout: timeout}, nil
}

func (t *NATSTransport) Close() {
	t.conn.Close()
}

// Call marshals req, sends it as a NATS request, and unmarshals the reply.
func (t *NATSTransport) Call(ctx context.Context, req Request) (Response, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("protocol: marshal request: %w", err)
	}

	msg, err := t.conn.RequestWithContext(ctx, t.subject, data)
	if err != nil {
		return Response{}, fmt.Errorf("protocol: nats request: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return Response{}, fmt.Errorf("protocol: unmarshal response: %w", err)
	}
	return resp, nil
}

// Serve binds a Dispatcher to the given request/reply subject, replying
// to every incoming request until ctx is cancelled. Serve sends no
// progress notifications itself; handlers publish those separately via
// PublishProgress.
func Serve(ctx context.Context, conn *nats.Conn, subject string, d *Dispatcher) (*nats.Subscription, error) {
	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		var req Request
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			reply, _ := json.Marshal(Response{Success: false, Error: &Error{Code: CodeBadRequest, Message: err.Error()}})
			_ = msg.Respond(reply)
			return
		}

		resp := d.Dispatch(ctx, req)
		reply, err := json.Marshal(resp)
		if err != nil {
			reply, _ = json.Marshal(Response{Success: false, Error: &Error{Code: CodeInternal, Message: err.Error()}})
		}
		_ = msg.Respond(reply)
	})
	if err != nil {
		return nil, fmt.Errorf("protocol: subscribe %s: %w", subject, err)
	}
	return sub, nil
}

// PublishProgress sends a best-effort progress notification on
// subject+".progress" — used by long-running batch operations so a
// streaming client can render incremental progress.
func PublishProgress(conn *nats.Conn, subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return conn.Publish(subject+".progress", data)
}
