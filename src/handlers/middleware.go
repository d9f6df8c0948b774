package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/username/smartledger/backend/src/logger"
	"github.com/username/smartledger/backend/src/security"
	"github.com/username/smartledger/backend/src/utils"
)

// contextKey is unexported so no other package can collide with our context
// values.
type contextKey string

const identityContextKey contextKey = "identity"

// AuthMiddleware validates the bearer token and stores the caller identity
// on the request context.
func (h *UserHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			logger.L.Debug("AuthMiddleware: Authorization header missing", "path", r.URL.Path)
			utils.SendJSONError(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == "" {
			logger.L.Debug("AuthMiddleware: Token string empty", "path", r.URL.Path)
			utils.SendJSONError(w, "Malformed token", http.StatusUnauthorized)
			return
		}

		identity, err := h.authService.ValidateToken(tokenString)
		if err != nil {
			logger.L.Warn("AuthMiddleware: Token validation failed", "path", r.URL.Path, "error", err)
			utils.SendJSONError(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		next(w, r.WithContext(ctx))
	}
}

// IdentityFromContext returns the verified caller set by AuthMiddleware.
func IdentityFromContext(ctx context.Context) (security.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(security.Identity)
	return identity, ok
}

// requireIdentity is the per-handler guard: it fetches the identity or ends
// the request with a 401.
func requireIdentity(w http.ResponseWriter, r *http.Request) (security.Identity, bool) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok || identity.UID == "" {
		utils.SendJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return security.Identity{}, false
	}
	return identity, true
}
