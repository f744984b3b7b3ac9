package gatekeeper

import (
	"context"

	"banking-service/internal/auth"
)

type contextKey int

const (
	principalKey contextKey = iota
	identityKey
	classificationKey
	clientKeyKey
)

func withPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the verified principal, or nil when the
// request is anonymous.
func PrincipalFromContext(ctx context.Context) *auth.Principal {
	p, _ := ctx.Value(principalKey).(*auth.Principal)
	return p
}

func withIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the resolved caller identity; empty means
// anonymous.
func IdentityFromContext(ctx context.Context) string {
	s, _ := ctx.Value(identityKey).(string)
	return s
}

func withClassification(ctx context.Context, c Classification) context.Context {
	return context.WithValue(ctx, classificationKey, c)
}

// ClassificationFromContext returns the endpoint classification stored by
// the rate-limit stage.
func ClassificationFromContext(ctx context.Context) (Classification, bool) {
	c, ok := ctx.Value(classificationKey).(Classification)
	return c, ok
}

func withClientKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, clientKeyKey, key)
}

// ClientKeyFromContext returns the rate-limit client key for this request.
func ClientKeyFromContext(ctx context.Context) string {
	s, _ := ctx.Value(clientKeyKey).(string)
	return s
}
