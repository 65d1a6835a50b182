package handlers

import (
	"github.com/gofiber/fiber/v2"

	apimodels "github.com/shopchat/shopchat-backend/internal/api/models"
	"github.com/shopchat/shopchat-backend/internal/services"
)

// ListConversations handles GET /api/conversations?session_id=
func ListConversations(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := svc.Chat.ListConversations(c.UserContext(), c.Query("session_id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(list)
	}
}

// GetConversation handles GET /api/conversations/:id?session_id=
func GetConversation(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		messages, err := svc.Chat.GetConversationHistory(c.UserContext(), c.Query("session_id"), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(messages)
	}
}

// SaveConversation handles POST /api/conversations/save
func SaveConversation(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req apimodels.SaveConversationRequest
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}

		conv, err := svc.Chat.SaveConversation(c.UserContext(), services.SaveConversationInput{
			SessionID:      req.SessionID,
			ConversationID: req.ConversationID,
			Name:           req.Name,
		})
		if err != nil {
			return respondError(c, err)
		}

		return c.JSON(fiber.Map{
			"success":      true,
			"conversation": conv,
		})
	}
}

// DeleteConversation handles DELETE /api/conversations/:id?session_id=
func DeleteConversation(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deleted, err := svc.Chat.DeleteConversation(c.UserContext(), c.Query("session_id"), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"success": true,
			"deleted": deleted,
		})
	}
}
