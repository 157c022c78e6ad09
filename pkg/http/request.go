package http

import (
	"net"
	"net/http"
	"strings"
)

// IPConfig decides which upstream addresses may assert a client IP via
// forwarding headers. Build it with NewIPConfig so the CIDR ranges are
// parsed once.
type IPConfig struct {
	trustedProxies []*net.IPNet
}

// NewIPConfig parses the trusted proxy CIDR ranges. Invalid ranges are
// skipped; an empty list means forwarding headers are never trusted.
func NewIPConfig(trustedProxyCIDRs []string) *IPConfig {
	cfg := &IPConfig{}
	for _, cidr := range trustedProxyCIDRs {
		_, ipNet, err := net.ParseCIDR(strings.TrimSpace(cidr))
		if err != nil {
			continue
		}
		cfg.trustedProxies = append(cfg.trustedProxies, ipNet)
	}
	return cfg
}

// ExtractClientIP extracts the real client IP address from the request.
// X-Forwarded-For and X-Real-IP are honored only when the connection itself
// comes from a trusted proxy; otherwise the headers are attacker-controlled
// and the peer address wins.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remoteIP := remoteAddr(r)

	if config != nil && config.isTrustedProxy(remoteIP) {
		// X-Forwarded-For may carry a chain; the first valid entry is the
		// original client.
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			for _, ip := range strings.Split(xff, ",") {
				ip = strings.TrimSpace(ip)
				if net.ParseIP(ip) != nil {
					return ip
				}
			}
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" && net.ParseIP(xri) != nil {
			return xri
		}
	}

	return remoteIP
}

// remoteAddr strips the port from the connection's peer address
func remoteAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

func (c *IPConfig) isTrustedProxy(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, ipNet := range c.trustedProxies {
		if ipNet.Contains(parsed) {
			return true
		}
	}
	return false
}
