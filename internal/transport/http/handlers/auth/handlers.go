package authhandler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"hrdesk/internal/domain/auth"
	"hrdesk/internal/platform/validate"
	"hrdesk/internal/transport/http/api"
	"hrdesk/internal/transport/http/shared"
)

type Authenticator interface {
	Login(ctx context.Context, email, password, mfaCode string) (auth.LoginResult, error)
	Logout(ctx context.Context, user auth.UserContext) error
	SetupMFA(ctx context.Context, userID string) (auth.MFASetup, error)
	ToggleMFA(ctx context.Context, userID, code string, enabled bool) error
}

// SessionStore is list state and pending confirmations kept per login.
type SessionStore interface {
	DropSession(session string)
}

type Handler struct {
	Service  Authenticator
	Sessions []SessionStore
}

func NewHandler(service Authenticator, sessions ...SessionStore) *Handler {
	return &Handler{Service: service, Sessions: sessions}
}

// RegisterPublicRoutes mounts the routes reachable without a session.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/logout", h.HandleLogout)
	r.Post("/auth/mfa/setup", h.HandleMFASetup)
	r.Post("/auth/mfa/enable", h.HandleMFAToggle(true))
	r.Post("/auth/mfa/disable", h.HandleMFAToggle(false))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	MFACode  string `json:"mfaCode"`
}

type mfaCodeRequest struct {
	Code string `json:"code"`
}

type loginResponse struct {
	Token string            `json:"token"`
	User  map[string]string `json:"user"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.WriteError(w, r, err)
		return
	}
	v := validate.New()
	email := strings.TrimSpace(payload.Email)
	v.Required("email", email)
	v.Required("password", payload.Password)
	if err := v.Err(); err != nil {
		shared.WriteError(w, r, err)
		return
	}

	res, err := h.Service.Login(r.Context(), email, payload.Password, strings.TrimSpace(payload.MFACode))
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Success(w, loginResponse{
		Token: res.Token,
		User:  map[string]string{"id": res.User.UserID, "roleId": res.User.RoleID, "role": res.User.RoleName},
	}, shared.RequestID(r))
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	user := shared.User(r)
	if user.UserID == "" {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", shared.RequestID(r))
		return
	}
	if err := h.Service.Logout(r.Context(), user); err != nil {
		shared.WriteError(w, r, err)
		return
	}
	if user.SessionID != "" {
		for _, s := range h.Sessions {
			s.DropSession(user.SessionID)
		}
	}
	api.Success(w, map[string]string{"status": "logged_out"}, shared.RequestID(r))
}

func (h *Handler) HandleMFASetup(w http.ResponseWriter, r *http.Request) {
	user := shared.User(r)
	if user.UserID == "" {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", shared.RequestID(r))
		return
	}
	setup, err := h.Service.SetupMFA(r.Context(), user.UserID)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Success(w, setup, shared.RequestID(r))
}

func (h *Handler) HandleMFAToggle(enabled bool) http.HandlerFunc {
	status := "disabled"
	if enabled {
		status = "enabled"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		user := shared.User(r)
		if user.UserID == "" {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", shared.RequestID(r))
			return
		}
		var payload mfaCodeRequest
		if err := shared.DecodeJSON(r, &payload); err != nil {
			shared.WriteError(w, r, err)
			return
		}
		if err := h.Service.ToggleMFA(r.Context(), user.UserID, strings.TrimSpace(payload.Code), enabled); err != nil {
			shared.WriteError(w, r, err)
			return
		}
		api.Success(w, map[string]string{"status": status}, shared.RequestID(r))
	}
}
