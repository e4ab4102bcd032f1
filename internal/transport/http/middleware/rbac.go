package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"hrdesk/internal/transport/http/api"
)

type PermissionStore interface {
	HasPermission(ctx context.Context, roleID, permission string) (bool, error)
}

func RequirePermission(permission string, store PermissionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !Allow(w, r, permission, store) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Allow runs the permission check inline, for routes whose permission
// depends on a path parameter. It writes the failure response itself.
func Allow(w http.ResponseWriter, r *http.Request, permission string, store PermissionStore) bool {
	requestID := GetRequestID(r.Context())
	user, ok := GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return false
	}
	allowed, err := store.HasPermission(r.Context(), user.RoleID, permission)
	if err != nil {
		slog.Error("permission check failed", "permission", permission, "err", err, "requestId", requestID)
		api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", requestID)
		return false
	}
	if !allowed {
		api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", requestID)
		return false
	}
	return true
}
