package corehandler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"hrdesk/internal/domain/auth"
	"hrdesk/internal/domain/employee"
	"hrdesk/internal/transport/http/api"
	"hrdesk/internal/transport/http/middleware"
	"hrdesk/internal/transport/http/shared"
)

type Directory interface {
	Get(ctx context.Context, id string) (employee.Employee, error)
	ByUserID(ctx context.Context, userID string) (employee.Employee, error)
	Count(ctx context.Context, search string) (int, error)
	List(ctx context.Context, search string, limit, offset int) ([]employee.Employee, error)
}

type Handler struct {
	Employees Directory
	Perms     middleware.PermissionStore
}

func NewHandler(employees Directory, perms middleware.PermissionStore) *Handler {
	return &Handler{Employees: employees, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/me", h.handleMe)
	r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/employees", h.handleListEmployees)
	r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/employees/{employeeID}", h.handleGetEmployee)
}

type meResponse struct {
	User     map[string]string  `json:"user"`
	Employee *employee.Employee `json:"employee,omitempty"`
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user := shared.User(r)
	if user.UserID == "" {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", shared.RequestID(r))
		return
	}
	out := meResponse{User: map[string]string{"id": user.UserID, "roleId": user.RoleID, "role": user.RoleName}}
	emp, err := h.Employees.ByUserID(r.Context(), user.UserID)
	switch {
	case err == nil:
		out.Employee = &emp
	case !errors.Is(err, employee.ErrNotFound):
		shared.WriteError(w, r, err)
		return
	}
	api.Success(w, out, shared.RequestID(r))
}

func (h *Handler) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, 50, 200)
	search := strings.TrimSpace(r.URL.Query().Get("search"))
	total, err := h.Employees.Count(r.Context(), search)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	items, err := h.Employees.List(r.Context(), search, page.Limit, page.Offset)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, items, shared.RequestID(r))
}

func (h *Handler) handleGetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Employees.Get(r.Context(), chi.URLParam(r, "employeeID"))
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Success(w, emp, shared.RequestID(r))
}
