package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/sealdoc/sealdoc/internal/ratelimit"
	"github.com/sealdoc/sealdoc/internal/service"
)

type contextKey string

const requestContextKey contextKey = "request_context"

// RequestContextFrom returns the authenticated caller identity, set by
// the auth middleware.
func RequestContextFrom(ctx context.Context) service.RequestContext {
	rc, _ := ctx.Value(requestContextKey).(service.RequestContext)
	return rc
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"bytes", ww.BytesWritten(),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// authMiddleware resolves the API key to an account/user and stores the
// caller identity in the request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("Authorization")
		if key == "" {
			key = r.Header.Get("X-Api-Key")
		}
		if strings.HasPrefix(key, "Bearer ") {
			key = strings.TrimPrefix(key, "Bearer ")
		}

		if key == "" {
			s.sendError(w, http.StatusUnauthorized, "missing API key")
			return
		}

		apiKey, err := s.apiKeys.GetByKey(key)
		if err != nil {
			s.logger.Error("failed to look up API key", "error", err)
			s.sendError(w, http.StatusInternalServerError, "authentication failed")
			return
		}
		if apiKey == nil {
			s.logger.Warn("unauthorized API request",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			s.sendError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		if err := s.apiKeys.TouchLastUsed(apiKey.ID); err != nil {
			s.logger.Warn("failed to update key usage", "key_id", apiKey.ID, "error", err)
		}

		rc := service.RequestContext{
			AccountID: apiKey.AccountID,
			AuthorID:  apiKey.UserID,
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestContextKey, rc)))
	})
}

// rateLimitMiddleware enforces per-account request budgets. Runs after
// auth so the account is known. A nil limiter disables it.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		rc := RequestContextFrom(r.Context())
		allowed, err := s.limiter.Allow(rc.AccountID)
		if err != nil {
			s.logger.Error("rate limit check failed", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(ratelimit.Window.Seconds())))
			s.sendError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
