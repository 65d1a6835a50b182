package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
)

// ErrClosed is returned by transports and clients after Close.
var ErrClosed = errors.New("bridge closed")

// Transport carries encoded envelopes between the two sides.
type Transport interface {
	Send(ctx context.Context, frame []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// ConnTransport adapts a websocket connection. It serves both the fiber
// relay (whose conn embeds the same type) and dialed clients.
type ConnTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func NewConnTransport(conn *websocket.Conn) *ConnTransport {
	return &ConnTransport{conn: conn}
}

func (t *ConnTransport) Send(ctx context.Context, frame []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, frame)
}

// Receive honours only the context deadline; close the transport to unblock
// a reader early.
func (t *ConnTransport) Receive(ctx context.Context) ([]byte, error) {
	deadline, _ := ctx.Deadline()
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, ErrClosed
			}
			return nil, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (t *ConnTransport) Close() error {
	t.writeMu.Lock()
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	t.writeMu.Unlock()
	return t.conn.Close()
}

// Pipe returns two in-process transports wired to each other.
func Pipe() (Transport, Transport) {
	ab := make(chan []byte, 16)
	ba := make(chan []byte, 16)
	done := make(chan struct{})
	var once sync.Once
	closeFn := func() error {
		once.Do(func() { close(done) })
		return nil
	}
	return &pipeEnd{in: ba, out: ab, done: done, close: closeFn},
		&pipeEnd{in: ab, out: ba, done: done, close: closeFn}
}

type pipeEnd struct {
	in    <-chan []byte
	out   chan<- []byte
	done  chan struct{}
	close func() error
}

func (p *pipeEnd) Send(ctx context.Context, frame []byte) error {
	select {
	case p.out <- append([]byte(nil), frame...):
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeEnd) Receive(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-p.in:
		return frame, nil
	case <-p.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipeEnd) Close() error { return p.close() }
