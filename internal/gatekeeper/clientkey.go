package gatekeeper

import (
	"net"
	"net/http"
	"strings"
)

// ClientKey identifies the entity being rate limited: "user:<subject>" when
// the request carries a verified identity, otherwise "ip:<address>".
func ClientKey(r *http.Request, subject string) string {
	if subject != "" {
		return "user:" + subject
	}
	return "ip:" + ClientIP(r)
}

// ClientIP resolves the caller address with proxy-header precedence:
// X-Forwarded-For first hop, then X-Real-IP, then the socket remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := xff
		if i := strings.IndexByte(xff, ','); i >= 0 {
			first = xff[:i]
		}
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
