package authhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrdesk/internal/domain/auth"
	"hrdesk/internal/transport/http/middleware"
)

type fakeAuth struct {
	loggedOut []auth.UserContext
	toggled   map[string]bool
}

func (f *fakeAuth) Login(_ context.Context, email, password, mfaCode string) (auth.LoginResult, error) {
	if email != "hr@example.com" || password != "Secret123" {
		return auth.LoginResult{}, auth.ErrInvalidCredentials
	}
	if mfaCode == "" {
		return auth.LoginResult{}, auth.ErrMFARequired
	}
	return auth.LoginResult{Token: "jwt", User: auth.UserContext{UserID: "u1", RoleID: "r1", RoleName: auth.RoleHR}}, nil
}

func (f *fakeAuth) Logout(_ context.Context, user auth.UserContext) error {
	f.loggedOut = append(f.loggedOut, user)
	return nil
}

func (f *fakeAuth) SetupMFA(_ context.Context, userID string) (auth.MFASetup, error) {
	return auth.MFASetup{Secret: "SECRET", OTPAuthURL: "otpauth://totp/hrdesk:" + userID}, nil
}

func (f *fakeAuth) ToggleMFA(_ context.Context, userID, code string, enabled bool) error {
	if code != "123456" {
		return auth.ErrMFAInvalid
	}
	f.toggled[userID] = enabled
	return nil
}

type fakeSessions struct{ dropped []string }

func (f *fakeSessions) DropSession(session string) { f.dropped = append(f.dropped, session) }

type envelope struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func newRouter(h *Handler, user *auth.UserContext) http.Handler {
	r := chi.NewRouter()
	if user != nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(middleware.WithUser(req.Context(), *user)))
			})
		})
	}
	h.RegisterPublicRoutes(r)
	h.RegisterRoutes(r)
	return r
}

func do(t *testing.T, handler http.Handler, path string, body any) (int, envelope) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw)))
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env
}

func TestLogin(t *testing.T) {
	h := NewHandler(&fakeAuth{toggled: map[string]bool{}})
	router := newRouter(h, nil)

	tests := []struct {
		name   string
		body   map[string]string
		status int
		code   string
	}{
		{"missing fields", map[string]string{"email": " "}, http.StatusBadRequest, "validation_error"},
		{"wrong password", map[string]string{"email": "hr@example.com", "password": "nope"}, http.StatusUnauthorized, "invalid_credentials"},
		{"mfa required", map[string]string{"email": "hr@example.com", "password": "Secret123"}, http.StatusUnauthorized, "mfa_required"},
		{"ok", map[string]string{"email": "hr@example.com", "password": "Secret123", "mfaCode": "123456"}, http.StatusOK, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, env := do(t, router, "/auth/login", tc.body)
			assert.Equal(t, tc.status, status)
			if tc.code != "" {
				require.NotNil(t, env.Error)
				assert.Equal(t, tc.code, env.Error.Code)
				return
			}
			assert.Equal(t, "jwt", env.Data["token"])
		})
	}
}

func TestLoginRejectsUnknownFields(t *testing.T) {
	router := newRouter(NewHandler(&fakeAuth{toggled: map[string]bool{}}), nil)
	status, env := do(t, router, "/auth/login", map[string]string{"email": "a@b.c", "password": "x", "tenant": "t"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", env.Error.Code)
}

func TestLogoutDropsSessionState(t *testing.T) {
	svc := &fakeAuth{toggled: map[string]bool{}}
	views, confirmations := &fakeSessions{}, &fakeSessions{}
	user := auth.UserContext{UserID: "u1", SessionID: "s1"}
	router := newRouter(NewHandler(svc, views, confirmations), &user)

	status, _ := do(t, router, "/auth/logout", map[string]string{})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []auth.UserContext{user}, svc.loggedOut)
	assert.Equal(t, []string{"s1"}, views.dropped)
	assert.Equal(t, []string{"s1"}, confirmations.dropped)
}

func TestLogoutRequiresSession(t *testing.T) {
	router := newRouter(NewHandler(&fakeAuth{toggled: map[string]bool{}}), nil)
	status, env := do(t, router, "/auth/logout", map[string]string{})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", env.Error.Code)
}

func TestMFAToggle(t *testing.T) {
	svc := &fakeAuth{toggled: map[string]bool{}}
	user := auth.UserContext{UserID: "u1", SessionID: "s1"}
	router := newRouter(NewHandler(svc), &user)

	status, env := do(t, router, "/auth/mfa/setup", map[string]string{})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "SECRET", env.Data["secret"])

	status, env = do(t, router, "/auth/mfa/enable", map[string]string{"code": "000000"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "mfa_invalid", env.Error.Code)

	status, env = do(t, router, "/auth/mfa/enable", map[string]string{"code": "123456"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "enabled", env.Data["status"])
	assert.True(t, svc.toggled["u1"])

	status, _ = do(t, router, "/auth/mfa/disable", map[string]string{"code": "123456"})
	assert.Equal(t, http.StatusOK, status)
	assert.False(t, svc.toggled["u1"])
}
