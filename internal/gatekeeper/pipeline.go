package gatekeeper

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"banking-service/internal/audit"
	"banking-service/internal/auth"
	"banking-service/internal/models"
	"banking-service/internal/repository"
	"banking-service/internal/util"
)

// Pipeline orchestrates the gatekeeper stages around the business
// handlers: correlation tagging, rate limiting, token verification,
// identity resolution, ownership checks and audit completion. Each stage is
// an explicit chi middleware; rejections short-circuit everything except
// auditing.
type Pipeline struct {
	limiter    RateLimiter
	classifier *Classifier
	verifier   auth.Verifier
	authorizer *Authorizer
	trail      *audit.Trail
	retryAfter time.Duration
	logger     *zap.Logger
}

func NewPipeline(
	limiter RateLimiter,
	classifier *Classifier,
	verifier auth.Verifier,
	authorizer *Authorizer,
	trail *audit.Trail,
	retryAfter time.Duration,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		limiter:    limiter,
		classifier: classifier,
		verifier:   verifier,
		authorizer: authorizer,
		trail:      trail,
		retryAfter: retryAfter,
		logger:     logger,
	}
}

// Trace propagates the request ID into the response so callers and the
// audit trail can be correlated.
func (p *Pipeline) Trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-Id", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit classifies the endpoint, consumes a token for the client's
// bucket and rejects with 429 when exhausted. Infrastructure paths bypass
// the stage entirely and never create buckets or audit events.
func (p *Pipeline) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p.classifier.IsInfrastructurePath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		class := p.classifier.Classify(r.Method, r.URL.Path)
		clientKey := ClientKey(r, subjectOf(r))

		if !p.limiter.Allow(clientKey, class.Policy) {
			p.trail.Record(models.AuditEvent{
				Kind:      models.EventRateLimitExceeded,
				Actor:     IdentityFromContext(r.Context()),
				ClientIP:  ClientIP(r),
				UserAgent: r.UserAgent(),
				Path:      r.URL.Path,
				Method:    r.Method,
				Outcome:   models.OutcomeDenied,
				Details:   map[string]string{"policy": class.Policy.Name, "client_key": clientKey},
			})
			p.logger.Warn("Rate limit exceeded",
				util.String("client_key", clientKey),
				util.String("policy", class.Policy.Name),
				util.String("path", r.URL.Path))
			writeRateLimited(w, r, class.Policy, p.retryAfter)
			return
		}

		w.Header().Set("X-RateLimit-Remaining",
			strconv.Itoa(p.limiter.AvailableTokens(clientKey, class.Policy)))
		w.Header().Set("X-RateLimit-Type", class.Policy.Name)

		ctx := withClassification(r.Context(), class)
		ctx = withClientKey(ctx, clientKey)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authenticate verifies the bearer token and resolves the caller identity.
// Infrastructure paths stay public. A missing or invalid token is rejected
// with 401; a valid token without a derivable identity proceeds as
// anonymous and will fail any ownership check downstream.
func (p *Pipeline) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p.classifier.IsInfrastructurePath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r)
		if token == "" {
			p.recordAuthFailure(r, "missing bearer token")
			WriteDenied(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		principal, err := p.verifier.Verify(r.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidToken) {
				p.logger.Error("Token verification failed", util.ErrorField(err))
			}
			p.recordAuthFailure(r, "token rejected")
			WriteDenied(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		ctx := withPrincipal(r.Context(), principal)
		if identity, ok := ResolveIdentity(principal); ok {
			ctx = withIdentity(ctx, identity)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AuditCompletion records the business outcome of sensitive operations
// once the handler finishes, deriving ALLOWED/DENIED from the response
// status. A cancelled or timed-out request is recorded as TIMEOUT instead.
func (p *Pipeline) AuditCompletion(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		class, ok := ClassificationFromContext(r.Context())
		if !ok || !class.Sensitive {
			next.ServeHTTP(w, r)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		kind := models.EventSensitiveOperation
		if r.Context().Err() != nil {
			kind = models.EventTimeout
		}
		outcome := models.OutcomeAllowed
		if ww.Status() >= 400 {
			outcome = models.OutcomeDenied
		}

		p.trail.Record(models.AuditEvent{
			Kind:      kind,
			Actor:     IdentityFromContext(r.Context()),
			ClientIP:  ClientIP(r),
			UserAgent: r.UserAgent(),
			Path:      r.URL.Path,
			Method:    r.Method,
			Outcome:   outcome,
			Operation: class.Operation,
			Details:   map[string]string{"status": strconv.Itoa(ww.Status())},
		})
	})
}

// CheckOwnership is the first action inside every protected handler. It
// evaluates ownership of ref, writes the rejection response itself and
// reports whether the handler may proceed. Denials are audited at the point
// of denial, before the caller sees the response.
func (p *Pipeline) CheckOwnership(w http.ResponseWriter, r *http.Request, ref ResourceRef) bool {
	identity := IdentityFromContext(r.Context())

	decision, err := p.authorizer.Authorize(r.Context(), identity, ref)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			WriteDenied(w, http.StatusNotFound, notFoundMessage(ref.Kind))
			return false
		}
		p.logger.Error("Ownership check failed",
			util.String("resource", ref.Target()),
			util.ErrorField(err))
		WriteDenied(w, http.StatusInternalServerError, "Internal server error")
		return false
	}

	if decision.Allowed {
		return true
	}

	if decision.Reason == ReasonUnauthenticated {
		p.recordAuthFailure(r, "anonymous caller on owned resource")
		WriteDenied(w, http.StatusUnauthorized, "Unauthorized")
		return false
	}

	p.trail.Record(models.AuditEvent{
		Kind:      models.EventAuthorizationFailure,
		Actor:     identity,
		ClientIP:  ClientIP(r),
		UserAgent: r.UserAgent(),
		Path:      r.URL.Path,
		Method:    r.Method,
		Outcome:   models.OutcomeDenied,
		Details:   map[string]string{"resource": ref.Target(), "resource_kind": string(ref.Kind)},
	})
	WriteDenied(w, http.StatusForbidden, forbiddenMessage(ref.Kind))
	return false
}

func (p *Pipeline) recordAuthFailure(r *http.Request, reason string) {
	p.trail.Record(models.AuditEvent{
		Kind:      models.EventAuthenticationFailure,
		ClientIP:  ClientIP(r),
		UserAgent: r.UserAgent(),
		Path:      r.URL.Path,
		Method:    r.Method,
		Outcome:   models.OutcomeDenied,
		Details:   map[string]string{"reason": reason},
	})
}

func subjectOf(r *http.Request) string {
	if p := PrincipalFromContext(r.Context()); p != nil {
		return p.Subject
	}
	return ""
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}

func notFoundMessage(kind ResourceKind) string {
	switch kind {
	case ResourceUser:
		return "User not found"
	case ResourceTransaction:
		return "Transaction not found"
	default:
		return "Account not found"
	}
}

func forbiddenMessage(kind ResourceKind) string {
	switch kind {
	case ResourceUser:
		return "You do not have access to this user"
	case ResourceTransaction:
		return "You do not have access to this transaction"
	default:
		return "You do not have access to this account"
	}
}
