package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/FACorreiaa/go-identity-service/internal/api"
	"github.com/FACorreiaa/go-identity-service/internal/token"
	"github.com/FACorreiaa/go-identity-service/internal/types"
)

// Define typed context keys
type contextKey string

const (
	UserIDKey   contextKey = "userID"
	UserRoleKey contextKey = "userRole"
)

// Authenticate is middleware that requires a valid session token. A missing
// or non-Bearer header is answered with 401; a token that fails verification
// is answered with 403.
func Authenticate(logger *slog.Logger, tokens token.Verifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				l.DebugContext(ctx, "Missing Authorization header")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authorization header required")
				return
			}

			headerParts := strings.Fields(authHeader)
			if len(headerParts) != 2 || !strings.EqualFold(headerParts[0], "bearer") {
				l.DebugContext(ctx, "Invalid Authorization header format")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
				return
			}

			claims, err := tokens.Verify(types.PurposeSession, headerParts[1])
			if err != nil {
				l.WarnContext(ctx, "Session token rejected", slog.Any("error", err))
				switch {
				case errors.Is(err, types.ErrTokenExpired):
					api.ErrorResponse(w, r, http.StatusForbidden, "Token has expired")
				case errors.Is(err, types.ErrTokenConfig):
					api.ErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
				default:
					api.ErrorResponse(w, r, http.StatusForbidden, "Invalid token")
				}
				return
			}
			if !claims.Role.IsValid() {
				l.WarnContext(ctx, "Session token carries unknown role", slog.String("role", string(claims.Role)))
				api.ErrorResponse(w, r, http.StatusForbidden, "Invalid token")
				return
			}

			ctx = WithClaims(ctx, claims)
			l.DebugContext(ctx, "Authentication successful", slog.String("userID", claims.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authorize permits the request when the authenticated role is one of roles.
// An empty role list admits any authenticated caller. It must run after
// Authenticate; without claims the request is answered with 401.
func Authorize(roles ...types.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetUserRoleFromContext(r.Context())
			if !ok {
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}
			if !HasRole(role, roles...) {
				api.ErrorResponse(w, r, http.StatusForbidden, "Access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HasRole reports whether role is allowed by the given set.
func HasRole(role types.Role, allowed ...types.Role) bool {
	if len(allowed) == 0 {
		return true
	}
	switch role {
	case types.RoleUser, types.RoleAdmin:
		for _, a := range allowed {
			if a == role {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// WithClaims stores verified session claims in ctx.
func WithClaims(ctx context.Context, claims *types.Claims) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
	return context.WithValue(ctx, UserRoleKey, claims.Role)
}

// Helper functions to get claims from context
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

func GetUserRoleFromContext(ctx context.Context) (types.Role, bool) {
	role, ok := ctx.Value(UserRoleKey).(types.Role)
	return role, ok
}

// AuthenticatedUserID returns the caller's id or types.ErrUnauthenticated.
func AuthenticatedUserID(ctx context.Context) (uuid.UUID, error) {
	raw, ok := GetUserIDFromContext(ctx)
	if !ok || raw == "" {
		return uuid.Nil, types.ErrUnauthenticated
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, types.ErrUnauthenticated
	}
	return id, nil
}
