package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	apimodels "github.com/shopchat/shopchat-backend/internal/api/models"
	"github.com/shopchat/shopchat-backend/internal/services"
)

// TestWebhooks handles POST /api/test-webhooks
func TestWebhooks(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req apimodels.TestWebhooksRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return invalidBody(c)
			}
		}

		results := svc.Diagnostics.TestWebhooks(c.UserContext(), req.URLs)
		success := true
		for _, r := range results {
			if !r.OK {
				success = false
			}
		}
		return c.JSON(fiber.Map{
			"success": success,
			"results": results,
		})
	}
}

// TestConnection handles GET /api/test-connection
func TestConnection(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(svc.Diagnostics.TestConnection(c.UserContext()))
	}
}

// Health handles GET /api/health
func Health() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "healthy",
			"service":   "shopchat-backend",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
