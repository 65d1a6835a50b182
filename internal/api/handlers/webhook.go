package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/shopchat/shopchat-backend/internal/services"
)

// ProxyWebhook handles POST /api/webhook
func ProxyWebhook(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := map[string]interface{}{}
		if err := c.BodyParser(&body); err != nil {
			return invalidBody(c)
		}

		res, err := svc.Webhook.Proxy(c.UserContext(), body)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(res.Status).JSON(res.Body)
	}
}
