// Package identity derives the visitor session id shared by the storefront
// page and the chat iframe. It is best-effort fingerprinting, not authentication.
package identity

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// FallbackPrefix marks ids synthesized after the parent page never answered.
const FallbackPrefix = "fallback-"

// ShopifyCookies are checked in priority order.
var ShopifyCookies = []string{"_shopify_y", "_y", "_shopify_s", "_s", "cart"}

// Source says how an identity was obtained.
type Source string

const (
	SourceCookie      Source = "cookie"
	SourceFingerprint Source = "fingerprint"
	SourceFallback    Source = "fallback"
	SourceProvided    Source = "provided"
)

// Identity is a derived session id and its provenance.
type Identity struct {
	SessionID string `json:"session_id"`
	Source    Source `json:"source"`
	Shop      string `json:"shop,omitempty"`
}

// Degraded reports whether the id came from the fallback path.
func (i Identity) Degraded() bool {
	return i.Source == SourceFallback
}

// Signals are the visitor attributes available to derivation.
type Signals struct {
	Cookies    map[string]string
	Shop       string
	UserAgent  string
	Language   string
	ScreenSize string
}

// Derive picks the first known Shopify cookie, qualifying it with the shop
// domain when one is known, and otherwise builds a fingerprint id.
func Derive(s Signals, now time.Time) Identity {
	shop := normalizeShop(s.Shop)
	for _, name := range ShopifyCookies {
		v := strings.TrimSpace(s.Cookies[name])
		if v == "" {
			continue
		}
		id := v
		if shop != "" {
			id = shop + "_" + v
		}
		return Identity{SessionID: id, Source: SourceCookie, Shop: shop}
	}
	return Identity{SessionID: Fingerprint(s, now), Source: SourceFingerprint, Shop: shop}
}

// Fingerprint encodes shop domain and browser traits into a timestamped id.
func Fingerprint(s Signals, now time.Time) string {
	raw := strings.Join([]string{normalizeShop(s.Shop), s.UserAgent, s.Language, s.ScreenSize}, "|")
	enc := base64.RawURLEncoding.EncodeToString([]byte(raw))
	if len(enc) > 32 {
		enc = enc[:32]
	}
	return "fp_" + enc + "_" + strconv.FormatInt(now.UnixMilli(), 10)
}

// Fallback synthesizes fallback-<unix-ms>-<random>.
func Fallback(now time.Time) Identity {
	return Identity{
		SessionID: FallbackPrefix + strconv.FormatInt(now.UnixMilli(), 10) + "-" + randomSuffix(9),
		Source:    SourceFallback,
	}
}

// IsFallback reports whether id was synthesized by Fallback.
func IsFallback(id string) bool {
	return strings.HasPrefix(id, FallbackPrefix)
}

func normalizeShop(shop string) string {
	shop = strings.ToLower(strings.TrimSpace(shop))
	shop = strings.TrimPrefix(shop, "https://")
	shop = strings.TrimPrefix(shop, "http://")
	return strings.TrimSuffix(shop, "/")
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomSuffix(n int) string {
	var b strings.Builder
	max := big.NewInt(int64(len(base36)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			b.WriteByte(base36[time.Now().UnixNano()%int64(len(base36))])
			continue
		}
		b.WriteByte(base36[idx.Int64()])
	}
	return b.String()
}
