package gatekeeper

import (
	"testing"

	"banking-service/internal/auth"
)

func TestResolveIdentity(t *testing.T) {
	tests := []struct {
		name      string
		principal *auth.Principal
		want      string
		wantOK    bool
	}{
		{
			"email claim wins",
			&auth.Principal{Subject: "sub-1", Claims: map[string]string{
				"email":              "alice@example.com",
				"preferred_username": "bob@example.com",
			}},
			"alice@example.com", true,
		},
		{
			"preferred_username when email missing",
			&auth.Principal{Subject: "sub-1", Claims: map[string]string{
				"preferred_username": "alice@example.com",
			}},
			"alice@example.com", true,
		},
		{
			"preferred_username must look like an email",
			&auth.Principal{Subject: "sub-1", Claims: map[string]string{
				"preferred_username": "alice",
			}},
			"", false,
		},
		{
			"email-shaped subject as last resort",
			&auth.Principal{Subject: "alice@example.com", Claims: map[string]string{}},
			"alice@example.com", true,
		},
		{
			"opaque subject yields no identity",
			&auth.Principal{Subject: "9f2c3a44", Claims: map[string]string{}},
			"", false,
		},
		{
			"nil principal",
			nil,
			"", false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveIdentity(tt.principal)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("ResolveIdentity = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
