// Package middleware provides HTTP middleware for the storage service.
package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rohansen856/database-layering/internal/errors"
	"github.com/rohansen856/database-layering/internal/metrics"
	"github.com/rohansen856/database-layering/internal/ratelimit"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// RequestIDKey is the context key for request ID.
	RequestIDKey ContextKey = "request_id"
	// ClientIDKey is the context key for the rate limit client id.
	ClientIDKey ContextKey = "client_id"
)

// GetRequestID returns the request id set by the RequestID middleware.
func GetRequestID(r *http.Request) string {
	return r.Header.Get("X-Request-ID")
}

// RequestID adds a unique request ID to each request.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		r = r.WithContext(ctx)

		// Also set the header on the request for downstream handlers
		r.Header.Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r)
	})
}

// Logging logs HTTP request details.
func Logging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			logger.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", GetRequestID(r)),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

// Metrics records request counts and latency per route template.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			endpoint := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tmpl, err := route.GetPathTemplate(); err == nil {
					endpoint = tmpl
				}
			}
			m.RecordRequest(r.Method, endpoint, strconv.Itoa(rw.statusCode), time.Since(start).Seconds())
		})
	}
}

// Recovery recovers from panics and returns a 500 error.
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						zap.Any("error", err),
						zap.String("request_id", GetRequestID(r)),
						zap.String("path", r.URL.Path),
					)

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					w.Write([]byte(`{"status":"error","error_code":"INTERNAL_ERROR","message":"internal server error"}`))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// CORS adds CORS headers to responses.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					allowed = true
					break
				}
			}

			if allowed && origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, X-Client-ID, X-Region, X-Request-ID")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Auth checks the X-API-Key header on protected routes.
type Auth struct {
	enabled      bool
	apiKey       string
	errorHandler *errors.Handler
	logger       *zap.Logger
}

// NewAuth creates the API key middleware. When disabled it passes every
// request through.
func NewAuth(enabled bool, apiKey string, errorHandler *errors.Handler, logger *zap.Logger) *Auth {
	return &Auth{
		enabled:      enabled,
		apiKey:       apiKey,
		errorHandler: errorHandler,
		logger:       logger,
	}
}

// Authenticate rejects requests without the configured API key.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.enabled {
			next.ServeHTTP(w, r)
			return
		}

		if r.Header.Get("X-API-Key") != a.apiKey {
			a.logger.Warn("invalid api key",
				zap.String("request_id", GetRequestID(r)),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
			)
			a.errorHandler.WriteUnauthorized(w, GetRequestID(r))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RateLimit applies the sliding window limiter per client.
type RateLimit struct {
	limiter      *ratelimit.Limiter
	metrics      *metrics.Metrics
	errorHandler *errors.Handler
	logger       *zap.Logger
}

// NewRateLimit creates the rate limit middleware. A nil limiter means
// limiting is disabled and every request passes through.
func NewRateLimit(limiter *ratelimit.Limiter, m *metrics.Metrics, errorHandler *errors.Handler, logger *zap.Logger) *RateLimit {
	return &RateLimit{
		limiter:      limiter,
		metrics:      m,
		errorHandler: errorHandler,
		logger:       logger,
	}
}

// Limit rejects clients that exhausted their window budget. The client is
// identified by X-Client-ID; anonymous requests share the "default" bucket.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		clientID := r.Header.Get("X-Client-ID")
		if clientID == "" {
			clientID = "default"
		}

		decision := rl.limiter.Check(r.Context(), clientID)
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			retryAfter := int(math.Ceil(decision.ResetIn.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("X-RateLimit-Reset", strconv.Itoa(retryAfter))

			rl.metrics.RecordRateLimited()
			rl.logger.Warn("rate limit exceeded",
				zap.String("client_id", clientID),
				zap.String("request_id", GetRequestID(r)),
				zap.String("path", r.URL.Path),
			)
			rl.errorHandler.WriteRateLimitedError(w, retryAfter, GetRequestID(r))
			return
		}

		ctx := context.WithValue(r.Context(), ClientIDKey, clientID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code.
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Chain chains multiple middleware functions.
func Chain(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
