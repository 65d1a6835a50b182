package bridge

import (
	"net/url"
	"strings"
)

// OriginPolicy is the allow-list applied to every inbound message, in both
// directions of the bridge.
type OriginPolicy struct {
	allowed map[string]bool
}

// NewOriginPolicy builds a policy from scheme://host[:port] origins. Entries
// that do not parse are ignored.
func NewOriginPolicy(origins ...string) OriginPolicy {
	p := OriginPolicy{allowed: make(map[string]bool, len(origins))}
	for _, o := range origins {
		if n := normalizeOrigin(o); n != "" {
			p.allowed[n] = true
		}
	}
	return p
}

// WithSelf returns a copy of the policy that also admits self, the origin the
// relay itself is served from.
func (p OriginPolicy) WithSelf(self string) OriginPolicy {
	out := OriginPolicy{allowed: make(map[string]bool, len(p.allowed)+1)}
	for k := range p.allowed {
		out.allowed[k] = true
	}
	if n := normalizeOrigin(self); n != "" {
		out.allowed[n] = true
	}
	return out
}

// Allows reports whether origin is on the list. An empty origin never is.
func (p OriginPolicy) Allows(origin string) bool {
	n := normalizeOrigin(origin)
	return n != "" && p.allowed[n]
}

// Origins lists the admitted origins.
func (p OriginPolicy) Origins() []string {
	out := make([]string, 0, len(p.allowed))
	for k := range p.allowed {
		out = append(out, k)
	}
	return out
}

func normalizeOrigin(origin string) string {
	origin = strings.TrimSpace(origin)
	if origin == "" || origin == "null" {
		return ""
	}
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Host)
	switch {
	case u.Scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	case u.Scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	}
	return strings.ToLower(u.Scheme) + "://" + host
}
