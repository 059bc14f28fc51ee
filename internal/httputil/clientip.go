package httputil

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the address used to key per-client stream limits.
//
// With trustProxy set, the leftmost parseable X-Forwarded-For entry wins,
// then X-Real-IP. Garbage in either header is skipped rather than trusted.
// Otherwise only RemoteAddr is used. IPv4-mapped IPv6 addresses are unmapped
// so one client never counts under two keys.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		for _, entry := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
			if addr, ok := parseAddr(entry); ok {
				return addr
			}
		}
		if addr, ok := parseAddr(r.Header.Get("X-Real-IP")); ok {
			return addr
		}
	}
	if addr, ok := parseAddr(r.RemoteAddr); ok {
		return addr
	}
	return r.RemoteAddr
}

// parseAddr accepts a bare address or host:port and returns the canonical
// address text.
func parseAddr(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	ip, err := netip.ParseAddr(strings.Trim(s, "[]"))
	if err != nil {
		return "", false
	}
	return ip.Unmap().WithZone("").String(), true
}
