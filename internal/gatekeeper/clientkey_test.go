package gatekeeper

import (
	"net/http/httptest"
	"testing"
)

func TestClientKeyPrefersSubject(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/accounts", nil)
	r.RemoteAddr = "192.0.2.7:51234"

	if got := ClientKey(r, "alice-subject"); got != "user:alice-subject" {
		t.Fatalf("ClientKey = %q", got)
	}
	if got := ClientKey(r, ""); got != "ip:192.0.2.7" {
		t.Fatalf("anonymous ClientKey = %q", got)
	}
}

func TestClientIPHeaderPrecedence(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		realIP     string
		remoteAddr string
		want       string
	}{
		{"forwarded first hop wins", "203.0.113.5, 10.0.0.1", "198.51.100.2", "192.0.2.7:51234", "203.0.113.5"},
		{"single forwarded hop", "203.0.113.5", "", "192.0.2.7:51234", "203.0.113.5"},
		{"real ip when no forwarded", "", "198.51.100.2", "192.0.2.7:51234", "198.51.100.2"},
		{"remote addr fallback", "", "", "192.0.2.7:51234", "192.0.2.7"},
		{"remote addr without port", "", "", "192.0.2.7", "192.0.2.7"},
		{"blank forwarded falls through", "  ", "198.51.100.2", "192.0.2.7:51234", "198.51.100.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/v1/accounts", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := ClientIP(r); got != tt.want {
				t.Fatalf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
