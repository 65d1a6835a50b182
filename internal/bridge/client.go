package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shopchat/shopchat-backend/internal/identity"
)

// ErrHandshakeFailed is returned when no init arrived after every attempt.
var ErrHandshakeFailed = errors.New("bridge handshake failed")

// ClientOptions tunes request and handshake timing.
type ClientOptions struct {
	RequestTimeout    time.Duration
	HandshakeAttempts int
	HandshakeInterval time.Duration
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 10 * time.Second
	}
	if o.HandshakeAttempts <= 0 {
		o.HandshakeAttempts = 5
	}
	if o.HandshakeInterval <= 0 {
		o.HandshakeInterval = 2 * time.Second
	}
	return o
}

// Client is the iframe side of the bridge: correlated requests over a
// Transport. Run must be running for replies to be delivered.
type Client struct {
	t      Transport
	opts   ClientOptions
	logger *logrus.Logger

	mu          sync.Mutex
	pending     map[string]chan Message
	inits       chan Init
	unsolicited chan Envelope
	done        chan struct{}
	closeOnce   sync.Once
}

func NewClient(t Transport, opts ClientOptions, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		t:           t,
		opts:        opts.withDefaults(),
		logger:      logger,
		pending:     make(map[string]chan Message),
		inits:       make(chan Init, 1),
		unsolicited: make(chan Envelope, 32),
		done:        make(chan struct{}),
	}
}

// Unsolicited yields messages that answer no pending request.
func (c *Client) Unsolicited() <-chan Envelope {
	return c.unsolicited
}

// Run reads frames until the transport closes or ctx ends.
func (c *Client) Run(ctx context.Context) error {
	defer c.shutdown()

	go func() {
		select {
		case <-ctx.Done():
			_ = c.t.Close()
		case <-c.done:
		}
	}()

	for {
		frame, err := c.t.Receive(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		env, err := Decode(frame)
		if err != nil {
			c.logger.WithError(err).Warn("dropping bridge frame")
			continue
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env Envelope) {
	c.mu.Lock()
	ch, ok := c.pending[env.ID]
	c.mu.Unlock()
	if ok && env.ID != "" {
		select {
		case ch <- env.Message:
		default:
		}
		return
	}

	if init, ok := env.Message.(Init); ok {
		select {
		case c.inits <- init:
		default:
		}
	}

	select {
	case c.unsolicited <- env:
	default:
		c.logger.WithField("type", env.Message.Type()).Warn("unsolicited bridge queue full, dropping")
	}
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Request sends req and waits for the reply carrying the same id.
func (c *Client) Request(ctx context.Context, req Request) (Message, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	id := uuid.NewString()
	ch := c.register(id, 1)
	defer c.unregister(id)

	if err := c.send(ctx, id, req); err != nil {
		return nil, err
	}

	select {
	case msg := <-ch:
		return msg, nil
	case <-c.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, fmt.Errorf("%s request %s: %w", req.Type(), id, ctx.Err())
	}
}

// Handshake sends REQUEST_SESSION_DATA until an init arrives, waiting the
// configured interval between attempts. A late answer to an earlier attempt,
// or an unsolicited init, also completes it.
func (c *Client) Handshake(ctx context.Context) (Init, error) {
	id := uuid.NewString()
	ch := c.register(id, c.opts.HandshakeAttempts)
	defer c.unregister(id)

	for attempt := 1; attempt <= c.opts.HandshakeAttempts; attempt++ {
		if err := c.send(ctx, id, RequestSessionData{}); err != nil {
			return Init{}, err
		}

		timer := time.NewTimer(c.opts.HandshakeInterval)
		select {
		case msg := <-ch:
			timer.Stop()
			if init, ok := msg.(Init); ok {
				return init, nil
			}
			return Init{}, fmt.Errorf("%w: unexpected %s reply", ErrHandshakeFailed, msg.Type())
		case init := <-c.inits:
			timer.Stop()
			return init, nil
		case <-c.done:
			timer.Stop()
			return Init{}, ErrClosed
		case <-ctx.Done():
			timer.Stop()
			return Init{}, ctx.Err()
		case <-timer.C:
			c.logger.WithField("attempt", attempt).Debug("no init yet, retrying handshake")
		}
	}
	return Init{}, ErrHandshakeFailed
}

// AwaitSession runs the handshake for at most wait and returns the session
// it produced. When the page never answers, a fallback identity is returned.
func (c *Client) AwaitSession(ctx context.Context, wait time.Duration) identity.Identity {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	init, err := c.Handshake(ctx)
	if err != nil || init.SessionID == "" {
		c.logger.WithError(err).Warn("no session from page, using fallback id")
		return identity.Fallback(time.Now())
	}

	source := identity.Source(init.Source)
	if source == "" {
		source = identity.SourceProvided
	}
	if identity.IsFallback(init.SessionID) {
		source = identity.SourceFallback
	}
	return identity.Identity{SessionID: init.SessionID, Source: source, Shop: init.Context.Shop}
}

// Notify sends a message that expects no reply.
func (c *Client) Notify(ctx context.Context, msg Message) error {
	return c.send(ctx, "", msg)
}

func (c *Client) send(ctx context.Context, id string, msg Message) error {
	frame, err := Encode(Envelope{ID: id, Message: msg})
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	return c.t.Send(ctx, frame)
}

func (c *Client) register(id string, buffer int) chan Message {
	ch := make(chan Message, buffer)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	return ch
}

func (c *Client) unregister(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}
