package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/shopchat/shopchat-backend/internal/api/handlers"
	"github.com/shopchat/shopchat-backend/internal/api/middleware"
	"github.com/shopchat/shopchat-backend/internal/bridge"
	"github.com/shopchat/shopchat-backend/internal/config"
	"github.com/shopchat/shopchat-backend/internal/services"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, svc *services.Services) {
	api := app.Group("/api", middleware.APIRateLimit(300, time.Minute))

	// Conversations
	api.Get("/conversations", handlers.ListConversations(svc))
	api.Post("/conversations/save", handlers.SaveConversation(svc))
	api.Get("/conversations/:id", handlers.GetConversation(svc))
	api.Delete("/conversations/:id", handlers.DeleteConversation(svc))

	// Messages
	api.Post("/messages/save", handlers.SaveMessage(svc))

	// Sessions
	api.Get("/sessions", handlers.GetSessionStatus(svc))
	api.Post("/sessions", handlers.UpsertSession(svc))
	api.Get("/sessions/:id", handlers.GetSessionHistory(svc))

	// Webhook proxy
	api.Post("/webhook", middleware.ChatRateLimit(), handlers.ProxyWebhook(svc))

	// Analytics
	api.Post("/analytics", middleware.AnalyticsRateLimit(), handlers.TrackEvent(svc))
	api.Get("/analytics", handlers.ListEvents(svc))

	// Diagnostics
	api.Post("/test-webhooks", handlers.TestWebhooks(svc))
	api.Get("/test-connection", handlers.TestConnection(svc))
	api.Get("/health", handlers.Health())

	// Bridge relay
	policy := bridge.NewOriginPolicy(append(svc.Config.Bridge.AllowedOrigins, config.ShopifyCDNOrigin)...)
	app.Use("/ws", handlers.BridgeUpgrade(policy, svc.Logger))
	app.Get("/ws/bridge", websocket.New(handlers.BridgeRelay(svc)))
}
