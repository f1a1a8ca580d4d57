package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// JWTValidator defines the interface for validating JWT tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator.
type JWTClaims struct {
	UserID string
	Email  string
}

type contextKeyUserID struct{}
type contextKeyEmail struct{}

// GetUserID retrieves the authenticated user ID from the context.
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(contextKeyUserID{}).(string)
	if !ok {
		return ""
	}
	return userID
}

// GetEmail retrieves the authenticated user email from the context.
func GetEmail(ctx context.Context) string {
	email, ok := ctx.Value(contextKeyEmail{}).(string)
	if !ok {
		return ""
	}
	return email
}

// RequireAuth rejects requests without a valid bearer token and stashes the
// authenticated subject in the request context.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx = context.WithValue(ctx, contextKeyUserID{}, claims.UserID)
			ctx = context.WithValue(ctx, contextKeyEmail{}, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
