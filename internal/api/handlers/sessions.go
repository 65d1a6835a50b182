package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	apimodels "github.com/shopchat/shopchat-backend/internal/api/models"
	"github.com/shopchat/shopchat-backend/internal/identity"
	"github.com/shopchat/shopchat-backend/internal/services"
)

// GetSessionStatus handles GET /api/sessions?session_id=
func GetSessionStatus(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, exists, err := svc.Chat.GetSession(c.UserContext(), c.Query("session_id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"exists":  exists,
			"session": session,
		})
	}
}

// UpsertSession handles POST /api/sessions. Without a session id in the body
// one is derived from the visitor's cookies and headers.
func UpsertSession(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req apimodels.SessionRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return invalidBody(c)
			}
		}

		id := identity.Identity{SessionID: req.SessionID, Source: identity.SourceProvided}
		if id.SessionID == "" {
			signals := signalsFrom(c)
			if req.Shop != "" {
				signals.Shop = req.Shop
			}
			if req.ScreenSize != "" {
				signals.ScreenSize = req.ScreenSize
			}
			id = identity.Derive(signals, time.Now())
		}

		session, err := svc.Chat.UpsertSession(c.UserContext(), id.SessionID, req.Name)
		if err != nil {
			return respondError(c, err)
		}

		return c.JSON(fiber.Map{
			"success": true,
			"session": session,
			"source":  id.Source,
		})
	}
}

// GetSessionHistory handles GET /api/sessions/:id
func GetSessionHistory(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.Params("id")
		messages, err := svc.Chat.SessionHistory(c.UserContext(), sessionID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"session_id": sessionID,
			"messages":   messages,
		})
	}
}
