package gatekeeper

// RateLimiter answers whether a client may proceed under a policy. Allow
// consumes one token when it admits the request; AvailableTokens is a
// non-consuming, best-effort query used to populate response headers.
type RateLimiter interface {
	Allow(clientKey string, policy Policy) bool
	AvailableTokens(clientKey string, policy Policy) int
}
