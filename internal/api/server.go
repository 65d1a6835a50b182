package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/shopchat/shopchat-backend/internal/api/middleware"
	"github.com/shopchat/shopchat-backend/internal/services"
)

// AppOptions toggles middleware that tests do not want.
type AppOptions struct {
	AccessLog bool
}

// NewApp builds the fiber application with middleware and routes.
func NewApp(svc *services.Services, opts AppOptions) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "ShopChat Backend",
		ErrorHandler: ErrorHandler,
	})

	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(logger.New())
	}
	app.Use(middleware.RequestTrace(middleware.TraceConfig{
		Logger:    svc.Logger,
		SkipPaths: []string{"/api/health"},
	}))
	// The widget is embedded in arbitrary storefront pages.
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, X-Request-ID, X-Shopify-Shop-Domain, X-Screen-Size",
		AllowMethods:  "GET, POST, DELETE, OPTIONS",
		ExposeHeaders: middleware.RequestIDHeader,
	}))

	SetupRoutes(app, svc)
	return app
}

// ErrorHandler answers uncaught errors. fiber errors keep their code, anything
// else becomes a generic 500. The request id is echoed when one was assigned.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	body := fiber.Map{
		"error":     "Internal server error",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		body["error"] = fe.Message
	}
	if id := middleware.GetRequestID(c); id != "" {
		body["request_id"] = id
	}
	return c.Status(code).JSON(body)
}
