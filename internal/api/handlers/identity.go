package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/shopchat/shopchat-backend/internal/identity"
)

// ShopHeader is sent by the storefront integration script.
const ShopHeader = "X-Shopify-Shop-Domain"

// signalsFrom collects the visitor traits identity derivation uses.
func signalsFrom(c *fiber.Ctx) identity.Signals {
	cookies := make(map[string]string, len(identity.ShopifyCookies))
	for _, name := range identity.ShopifyCookies {
		if v := c.Cookies(name); v != "" {
			cookies[name] = v
		}
	}

	shop := c.Get(ShopHeader)
	if shop == "" {
		shop = c.Query("shop")
	}

	return identity.Signals{
		Cookies:    cookies,
		Shop:       shop,
		UserAgent:  c.Get(fiber.HeaderUserAgent),
		Language:   c.Get(fiber.HeaderAcceptLanguage),
		ScreenSize: c.Get("X-Screen-Size"),
	}
}
