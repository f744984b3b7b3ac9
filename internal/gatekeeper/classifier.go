package gatekeeper

import (
	"net/http"
	"strings"
)

// Classification is the classifier's verdict for one endpoint.
type Classification struct {
	Policy    Policy
	Sensitive bool
	// Operation labels sensitive writes for the audit trail,
	// e.g. "CREATE_USER" or "DELETE_TRANSACTION".
	Operation string
}

// Classifier maps an HTTP method and path to a rate-limit policy and a
// sensitive-operation label. Infrastructure paths must be filtered out with
// IsInfrastructurePath before calling Classify.
type Classifier struct {
	policies         PolicySet
	skipPrefixes     []string
	staticExtensions []string
}

func NewClassifier(policies PolicySet, skipPrefixes, staticExtensions []string) *Classifier {
	return &Classifier{
		policies:         policies,
		skipPrefixes:     skipPrefixes,
		staticExtensions: staticExtensions,
	}
}

// IsInfrastructurePath reports whether a path is excluded from rate
// limiting and auditing entirely (health checks, API docs, admin consoles,
// static assets).
func (c *Classifier) IsInfrastructurePath(path string) bool {
	for _, prefix := range c.skipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	for _, ext := range c.staticExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// Classify returns the policy and audit label for a request. Precedence:
//  1. user create/delete, account delete, any transaction write -> STRICT, sensitive
//  2. any GET -> RELAXED, not sensitive
//  3. everything else -> DEFAULT, sensitive
func (c *Classifier) Classify(method, path string) Classification {
	resource := resourceSegment(path)
	write := method != http.MethodGet && method != http.MethodHead

	if write {
		op := operationLabel(method, resource)
		switch resource {
		case "transactions":
			return Classification{Policy: c.policies.Strict, Sensitive: true, Operation: op}
		case "users":
			if method == http.MethodPost || method == http.MethodDelete {
				return Classification{Policy: c.policies.Strict, Sensitive: true, Operation: op}
			}
		case "accounts":
			if method == http.MethodDelete {
				return Classification{Policy: c.policies.Strict, Sensitive: true, Operation: op}
			}
		}
		return Classification{Policy: c.policies.Default, Sensitive: true, Operation: op}
	}

	return Classification{Policy: c.policies.Relaxed}
}

// resourceSegment extracts the innermost addressed resource collection from
// a path like /api/v1/accounts/01234567/transactions/{id}.
func resourceSegment(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		switch segments[i] {
		case "users", "accounts", "transactions":
			return segments[i]
		}
	}
	return ""
}

func operationLabel(method, resource string) string {
	var action string
	switch method {
	case http.MethodPost:
		action = "CREATE"
	case http.MethodPut, http.MethodPatch:
		action = "UPDATE"
	case http.MethodDelete:
		action = "DELETE"
	default:
		action = method
	}

	switch resource {
	case "users":
		return action + "_USER"
	case "accounts":
		return action + "_ACCOUNT"
	case "transactions":
		return action + "_TRANSACTION"
	}
	return action
}
