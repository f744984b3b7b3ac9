package gatekeeper

import (
	"strings"

	"banking-service/internal/auth"
)

// ResolveIdentity extracts a stable caller identity from a verified
// principal. Precedence: explicit email claim, then preferred_username if it
// looks like an email, then the subject if it looks like an email. The
// second return value is false when no identity can be derived; an absent
// identity is a normal outcome, not an error.
func ResolveIdentity(p *auth.Principal) (string, bool) {
	if p == nil {
		return "", false
	}
	if email := p.Claims["email"]; email != "" {
		return email, true
	}
	if username := p.Claims["preferred_username"]; strings.Contains(username, "@") {
		return username, true
	}
	if strings.Contains(p.Subject, "@") {
		return p.Subject, true
	}
	return "", false
}
