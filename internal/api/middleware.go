// internal/api/middleware.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/openclub/courtbook/internal/tenant"
)

type Middleware func(http.Handler) http.Handler

func ChainMiddleware(h http.Handler, middleware ...Middleware) http.Handler {
	for _, m := range middleware {
		h = m(h)
	}
	return h
}

func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create response wrapper to capture status code
		wrapped := wrapResponseWriter(w)

		next.ServeHTTP(wrapped, r)
		log.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.status).
			Dur("duration", time.Since(start)).
			Msg("Request completed")
	})
}

func WithRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger := log.Ctx(r.Context())
				// Log the full stack trace
				stack := debug.Stack()
				logger.Error().
					Interface("error", err).
					Str("stack", string(stack)).
					Msg("Panic recovered")

				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()

		logger := log.With().Str("request_id", requestID).Logger()
		ctx := logger.WithContext(r.Context())

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

const (
	organizationHeader = "X-Organization-ID"
	clubHeader         = "X-Club-ID"
)

// WithTenantScope resolves the tenant scope from the request headers and
// stashes it in the context. Requests without a complete scope never reach
// the handlers.
func WithTenantScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopeFromHeaders(r)
		if err != nil {
			log.Ctx(r.Context()).Warn().Err(err).Msg("Request rejected: missing tenant scope")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		logger := log.Ctx(r.Context()).With().
			Int64("organization_id", scope.OrganizationID).
			Int64("club_id", scope.ClubID).
			Logger()
		ctx := logger.WithContext(tenant.ContextWithScope(r.Context(), scope))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func parseHeaderID(r *http.Request, header string) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get(header))
	if raw == "" {
		return 0, fmt.Errorf("%s header is required", header)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s header must be a positive integer", header)
	}
	return id, nil
}

func scopeFromHeaders(r *http.Request) (tenant.Scope, error) {
	orgID, err := parseHeaderID(r, organizationHeader)
	if err != nil {
		return tenant.Scope{}, err
	}
	clubID, err := parseHeaderID(r, clubHeader)
	if err != nil {
		return tenant.Scope{}, err
	}
	scope := tenant.Scope{OrganizationID: orgID, ClubID: clubID}
	if !scope.Valid() {
		return tenant.Scope{}, tenant.ErrMissingScope
	}
	return scope, nil
}

// WithTimeout bounds every request, mirroring the per-handler context
// deadline the write paths expect.
func WithTimeout(timeout time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}
