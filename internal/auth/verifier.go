package auth

import (
	"context"
	"errors"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Principal is the authenticated caller as reported by the identity
// provider: a stable subject plus whatever claims the provider attached.
type Principal struct {
	Subject string
	Claims  map[string]string
}

// Verifier validates a bearer token and returns the principal it belongs
// to. Token issuance and signature verification are the identity provider's
// job; this service only delegates.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}
