package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shopchat/shopchat-backend/internal/identity"
)

// Handler answers the requests the storefront page side is responsible for.
type Handler interface {
	SessionData(ctx context.Context, req RequestSessionData) (Init, error)
	SendChatMessage(ctx context.Context, req SendChatMessage) (ChatResponse, error)
	AddToCart(ctx context.Context, req AddToCart) (AddToCartSuccess, error)
	// NavigateToProduct is fire-and-forget and produces no reply.
	NavigateToProduct(ctx context.Context, req NavigateToProduct) error
	GetAllConversations(ctx context.Context, req GetAllConversations) (ConversationsResponse, error)
	GetConversation(ctx context.Context, req GetConversation) (ConversationResponse, error)
}

// Router decodes request frames, invokes the handler and encodes the reply
// under the request's correlation id.
type Router struct {
	handler Handler
	logger  *logrus.Logger
	timeout time.Duration
}

func NewRouter(handler Handler, timeout time.Duration, logger *logrus.Logger) *Router {
	if logger == nil {
		logger = logrus.New()
	}
	return &Router{handler: handler, logger: logger, timeout: timeout}
}

// Handle returns the reply envelope for env, or nil when none is due.
func (r *Router) Handle(ctx context.Context, env Envelope) *Envelope {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	reply := func(m Message) *Envelope { return &Envelope{ID: env.ID, Message: m} }

	switch m := env.Message.(type) {
	case RequestSessionData:
		init, err := r.handler.SessionData(ctx, m)
		if err != nil {
			r.logger.WithError(err).Warn("session lookup failed, answering with fallback id")
			fb := identity.Fallback(time.Now())
			init = Init{SessionID: fb.SessionID, Source: string(fb.Source), Degraded: true}
		}
		return reply(init)
	case SendChatMessage:
		resp, err := r.handler.SendChatMessage(ctx, m)
		if err != nil {
			return reply(ChatError{Error: err.Error()})
		}
		return reply(resp)
	case AddToCart:
		resp, err := r.handler.AddToCart(ctx, m)
		if err != nil {
			return reply(AddToCartError{VariantID: m.VariantID, Error: err.Error()})
		}
		return reply(resp)
	case NavigateToProduct:
		if err := r.handler.NavigateToProduct(ctx, m); err != nil {
			r.logger.WithError(err).WithField("url", m.URL).Warn("navigate-to-product failed")
		}
		return nil
	case GetAllConversations:
		resp, err := r.handler.GetAllConversations(ctx, m)
		if err != nil {
			return reply(ChatError{Error: err.Error()})
		}
		return reply(resp)
	case GetConversation:
		resp, err := r.handler.GetConversation(ctx, m)
		if err != nil {
			return reply(ChatError{Error: err.Error()})
		}
		return reply(resp)
	case Init, ConversationsResponse, ConversationResponse, ChatResponse, ChatError, AddToCartSuccess, AddToCartError:
		r.logger.WithFields(logrus.Fields{
			"type": m.Type(),
			"id":   env.ID,
		}).Warn("dropping iframe-bound message sent to the page side")
		return nil
	default:
		r.logger.WithField("id", env.ID).Warn("dropping message without a payload")
		return nil
	}
}

// Serve reads frames from t until it closes or ctx ends. Frames that do not
// decode are logged and ignored. Requests are handled concurrently, so replies
// may be sent in a different order than the requests arrived.
func (r *Router) Serve(ctx context.Context, t Transport) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		frame, err := t.Receive(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		env, err := Decode(frame)
		if err != nil {
			r.logger.WithError(err).WithField("id", env.ID).Warn("dropping bridge frame")
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			r.reply(ctx, t, env)
		}()
	}
}

func (r *Router) reply(ctx context.Context, t Transport, env Envelope) {
	out := r.Handle(ctx, env)
	if out == nil {
		return
	}
	encoded, err := Encode(*out)
	if err != nil {
		r.logger.WithError(err).WithField("type", out.Message.Type()).Error("failed to encode bridge reply")
		return
	}
	if err := t.Send(ctx, encoded); err != nil && ctx.Err() == nil {
		r.logger.WithError(err).WithField("id", out.ID).Warn("failed to send bridge reply")
	}
}
