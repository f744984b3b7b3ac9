package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"banking-service/internal/gatekeeper"
	"banking-service/internal/util"
)

// NewRouter creates and configures the chi router. The gatekeeper stages run
// in a fixed order: rate limiting first, then authentication, then audit
// completion around the business routes. Ownership checks run inside the
// handlers themselves.
func NewRouter(
	gate *gatekeeper.Pipeline,
	userHandler *UserHandler,
	accountHandler *AccountHandler,
	transactionHandler *TransactionHandler,
	logger *zap.Logger,
) chi.Router {
	router := chi.NewRouter()

	// Middleware stack
	router.Use(middleware.RequestID)
	router.Use(gate.Trace)
	router.Use(LoggerMiddleware(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"X-Request-Id", "X-RateLimit-Remaining", "X-RateLimit-Type", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Gatekeeper stages. Rate limiting runs before authentication so a
	// flood of bad tokens cannot bypass the limiter.
	router.Use(gate.RateLimit)
	router.Use(gate.Authenticate)
	router.Use(gate.AuditCompletion)

	// Health check endpoint; bypasses the gatekeeper stages entirely.
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		util.Info("Health check requested")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"banking-service"}`))
	})

	// API routes
	router.Route("/api/v1", func(r chi.Router) {
		userHandler.RegisterRoutes(r)
		accountHandler.RegisterRoutes(r)
		transactionHandler.RegisterRoutes(r)
	})

	// 404 handler
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	// Method not allowed handler
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		w.Write([]byte(`{"error":"method not allowed"}`))
	})

	return router
}

// LoggerMiddleware creates a middleware that logs HTTP requests
func LoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Info("HTTP request",
					util.String("method", r.Method),
					util.String("path", r.URL.Path),
					util.String("remote_addr", r.RemoteAddr),
					util.Int("status", ww.Status()),
					util.Duration("duration", time.Since(start)),
					util.String("user_agent", r.UserAgent()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
