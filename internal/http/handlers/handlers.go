package handlers

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/diagnosis/passwordless-api/internal/http/response"
	"github.com/diagnosis/passwordless-api/internal/ratelimit"
	"github.com/diagnosis/passwordless-api/internal/service"
	"github.com/diagnosis/passwordless-api/pkg/auth"
	"github.com/diagnosis/passwordless-api/pkg/config"
	"github.com/diagnosis/passwordless-api/pkg/logger"
)

type claimsKey struct{}

type Handlers struct {
	flow    service.FlowService
	limiter ratelimit.Limiter
	config  *config.Config
}

func New(flow service.FlowService, limiter ratelimit.Limiter, config *config.Config) *Handlers {
	return &Handlers{
		flow:    flow,
		limiter: limiter,
		config:  config,
	}
}

// RequireJWT guards endpoints that act on the authenticated user.
func (h *Handlers) RequireJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "Missing or invalid authorization header", "UNAUTHORIZED")
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := auth.Parse(token, h.config.Auth.JWTSecret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token", "INVALID_TOKEN")
			return
		}

		ctx := context.WithValue(r.Context(), logger.UserIDKey, claims.Sub)
		ctx = context.WithValue(ctx, claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TokenRequestRateLimit throttles code-request endpoints per client IP.
func (h *Handlers) TokenRequestRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := getClientIP(r)
		key := "token_request:" + clientIP

		allowed, err := h.limiter.Allow(r.Context(), key, 5, time.Minute)
		if err != nil {
			logger.ErrorContext(r.Context(), "Rate limit check failed", "error", err)
			// Allow request on error (fail open)
		} else if !allowed {
			writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.", "RATE_LIMIT_EXCEEDED")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Helper functions
func getClaims(r *http.Request) *auth.Claims {
	if claims, ok := r.Context().Value(claimsKey{}).(*auth.Claims); ok {
		return claims
	}
	return nil
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message, code string) {
	response.WriteError(w, statusCode, message, code)
}
