package handlers

import (
	"github.com/gofiber/fiber/v2"

	apimodels "github.com/shopchat/shopchat-backend/internal/api/models"
	"github.com/shopchat/shopchat-backend/internal/services"
)

// TrackEvent handles POST /api/analytics
func TrackEvent(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req apimodels.AnalyticsRequest
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}

		skipped, err := svc.Analytics.Track(c.UserContext(), services.TrackInput{
			ID:         req.ID,
			Event:      req.Event,
			SessionID:  req.SessionID,
			Properties: req.Properties,
			Timestamp:  req.Timestamp.Ptr(),
		})
		if err != nil {
			return respondError(c, err)
		}

		resp := fiber.Map{"success": true}
		if skipped {
			resp["skipped"] = true
		}
		return c.JSON(resp)
	}
}

// ListEvents handles GET /api/analytics?session_id=&limit=
func ListEvents(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		events, err := svc.Analytics.List(c.UserContext(), c.Query("session_id"), c.QueryInt("limit"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"events": events,
			"count":  len(events),
		})
	}
}
