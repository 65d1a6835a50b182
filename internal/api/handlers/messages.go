package handlers

import (
	"github.com/gofiber/fiber/v2"

	apimodels "github.com/shopchat/shopchat-backend/internal/api/models"
	"github.com/shopchat/shopchat-backend/internal/services"
)

// SaveMessage handles POST /api/messages/save
func SaveMessage(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req apimodels.SaveMessageRequest
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}

		msg, err := svc.Chat.SaveMessage(c.UserContext(), services.SaveMessageInput{
			SessionID:      req.SessionID,
			ConversationID: req.ConversationID,
			Content:        req.Content,
			Role:           req.Role,
			Type:           req.Type,
			AudioURL:       req.AudioURL,
			Cards:          req.Cards,
			Timestamp:      req.Timestamp.Ptr(),
		})
		if err != nil {
			return respondError(c, err)
		}

		return c.JSON(fiber.Map{
			"success": true,
			"message": msg,
		})
	}
}
