package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrdesk/internal/domain/auth"
)

type tokenTable map[string]auth.UserContext

func (t tokenTable) Authenticate(_ context.Context, token string) (auth.UserContext, error) {
	user, ok := t[token]
	if !ok {
		return auth.UserContext{}, auth.ErrSessionExpired
	}
	return user, nil
}

type rolePerms map[string][]string

func (p rolePerms) HasPermission(_ context.Context, roleID, permission string) (bool, error) {
	if roleID == "broken" {
		return false, errors.New("db down")
	}
	for _, perm := range p[roleID] {
		if perm == permission {
			return true, nil
		}
	}
	return false, nil
}

func TestAuthMiddlewareSetsUser(t *testing.T) {
	tokens := tokenTable{"good": {UserID: "u1", RoleID: "r1", RoleName: auth.RoleHR, SessionID: "s1"}}

	var seen auth.UserContext
	handler := Auth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUser(r.Context())
		require.True(t, ok)
		seen = user
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "u1", seen.UserID)
	assert.Equal(t, auth.RoleHR, seen.RoleName)
	assert.Equal(t, "s1", seen.SessionID)
}

func TestAuthMiddlewareIgnoresMissingOrRevokedToken(t *testing.T) {
	tokens := tokenTable{}
	handler := Auth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := GetUser(r.Context())
		assert.False(t, ok)
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer revoked"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code, header)
	}
}

func TestRequirePermission(t *testing.T) {
	perms := rolePerms{"r-hr": {auth.PermPayrollRead}}
	handler := RequirePermission(auth.PermPayrollRead, perms)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name string
		ctx  context.Context
		want int
	}{
		{"anonymous", context.Background(), http.StatusUnauthorized},
		{"allowed", WithUser(context.Background(), auth.UserContext{UserID: "u", RoleID: "r-hr"}), http.StatusNoContent},
		{"denied", WithUser(context.Background(), auth.UserContext{UserID: "u", RoleID: "r-emp"}), http.StatusForbidden},
		{"store error", WithUser(context.Background(), auth.UserContext{UserID: "u", RoleID: "broken"}), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(tc.ctx)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
