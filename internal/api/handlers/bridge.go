package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/shopchat/shopchat-backend/internal/bridge"
	"github.com/shopchat/shopchat-backend/internal/identity"
	"github.com/shopchat/shopchat-backend/internal/services"
)

// BridgeUpgrade admits websocket upgrades on /ws from allowed origins only and
// captures the visitor signals for the relay.
func BridgeUpgrade(policy bridge.OriginPolicy, logger *logrus.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		origin := c.Get(fiber.HeaderOrigin)
		self := c.Protocol() + "://" + c.Hostname()
		if !policy.WithSelf(self).Allows(origin) {
			logger.WithFields(logrus.Fields{
				"origin": origin,
				"ip":     c.IP(),
			}).Warn("rejecting bridge connection from unlisted origin")
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Origin not allowed",
			})
		}

		c.Locals("signals", signalsFrom(c))
		c.Locals("shop_context", bridge.ShopContext{
			Shop:       c.Query("shop"),
			Currency:   c.Query("currency"),
			Locale:     c.Query("locale"),
			CustomerID: c.Query("customer_id"),
			PageURL:    c.Query("page_url"),
		})
		return c.Next()
	}
}

// BridgeRelay handles WebSocket /ws/bridge, answering bridge requests on
// behalf of the storefront page.
func BridgeRelay(svc *services.Services) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		signals, _ := conn.Locals("signals").(identity.Signals)
		shop, _ := conn.Locals("shop_context").(bridge.ShopContext)

		transport := bridge.NewConnTransport(conn.Conn)
		defer transport.Close()

		router := bridge.NewRouter(svc.Bridge.Session(signals, shop), svc.Config.Bridge.RequestTimeout, svc.Logger)
		if err := router.Serve(context.Background(), transport); err != nil {
			svc.Logger.WithError(err).Debug("bridge connection ended")
		}
	}
}
