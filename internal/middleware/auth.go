package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"tilemap-server/internal/auth"
	"tilemap-server/internal/shared/errors"
	"tilemap-server/internal/shared/response"
)

type contextKey string

const ClientContextKey contextKey = "client"

// JWTMiddleware requires a valid bearer token on write endpoints. Clients
// are services, not browser sessions, so the token travels in the
// Authorization header rather than a cookie.
func JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := slog.With(
			"middleware", "jwt",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)
		logger.Debug("Processing JWT authentication")

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			response.Error(w, r, logger, errors.Unauthorized("authentication required"))
			return
		}

		claims, err := auth.ValidateToken(token)
		if err != nil {
			response.Error(w, r, logger, errors.Unauthorized("invalid token"))
			return
		}

		ctx := context.WithValue(r.Context(), ClientContextKey, claims)
		logger.Debug("JWT authentication successful",
			"client_id", claims.ClientID,
			"role", claims.Role)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireEditor additionally demands the editor role, for endpoints that
// mutate map data.
func RequireEditor(next http.Handler) http.Handler {
	return JWTMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := slog.With(
			"middleware", "require_editor",
			"method", r.Method,
			"path", r.URL.Path,
		)

		claims := GetClientFromContext(r)
		if claims == nil || claims.Role != auth.RoleEditor {
			response.Error(w, r, logger, errors.Unauthorized("editor role required"))
			return
		}

		next.ServeHTTP(w, r)
	}))
}

// GetClientFromContext returns the authenticated client claims, or nil.
func GetClientFromContext(r *http.Request) *auth.Claims {
	if claims, ok := r.Context().Value(ClientContextKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}
