package middleware

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// sessionKey prefers the widget's session id, from a JSON body or the query
// string, so visitors behind one NAT do not share a bucket.
func sessionKey(prefix string) func(c *fiber.Ctx) string {
	return func(c *fiber.Ctx) string {
		if sid := requestSessionID(c); sid != "" {
			return fmt.Sprintf("%s:session:%s", prefix, sid)
		}
		return fmt.Sprintf("%s:ip:%s", prefix, c.IP())
	}
}

func requestSessionID(c *fiber.Ctx) string {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) && len(c.Body()) > 0 {
		var body struct {
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal(c.Body(), &body); err == nil && strings.TrimSpace(body.SessionID) != "" {
			return strings.TrimSpace(body.SessionID)
		}
	}
	return strings.TrimSpace(c.Query("session_id"))
}

// APIRateLimit returns a rate limiter for API endpoints (configurable)
func APIRateLimit(max int, expiration time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:          max,
		Expiration:   expiration,
		KeyGenerator: sessionKey("api"),
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "API rate limit exceeded. Please slow down your requests.",
			})
		},
	})
}

// ChatRateLimit returns a rate limiter for the webhook proxy (30 per minute)
func ChatRateLimit() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:          30,
		Expiration:   1 * time.Minute,
		KeyGenerator: sessionKey("chat"),
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Chat rate limit exceeded. Please wait before sending more messages.",
			})
		},
		SkipSuccessfulRequests: false,
		SkipFailedRequests:     true,
	})
}

// AnalyticsRateLimit bounds event ingestion (120 per minute)
func AnalyticsRateLimit() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:          120,
		Expiration:   1 * time.Minute,
		KeyGenerator: sessionKey("analytics"),
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many analytics events. Please try again later.",
			})
		},
	})
}
