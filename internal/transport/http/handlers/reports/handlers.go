package reportshandler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"hrdesk/internal/domain/auth"
	"hrdesk/internal/domain/reports"
	"hrdesk/internal/transport/http/api"
	"hrdesk/internal/transport/http/middleware"
	"hrdesk/internal/transport/http/shared"
)

type Dashboards interface {
	Dashboard(ctx context.Context, employeeID string, sections reports.Sections) (reports.Dashboard, error)
}

type Handler struct {
	Service Dashboards
	Perms   middleware.PermissionStore
}

func NewHandler(service Dashboards, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequirePermission(auth.PermDashboardRead, h.Perms)).Get("/dashboard", h.handleDashboard)
}

// handleDashboard aggregates over every employee unless ?employeeId narrows
// the adjustment totals to one. Payroll figures need payroll.read and the
// hiring pipeline needs recruitment.read.
func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user := shared.User(r)
	var sections reports.Sections
	var err error
	if sections.Payroll, err = h.Perms.HasPermission(r.Context(), user.RoleID, auth.PermPayrollRead); err != nil {
		shared.WriteError(w, r, err)
		return
	}
	if sections.Recruitment, err = h.Perms.HasPermission(r.Context(), user.RoleID, auth.PermRecruitmentRead); err != nil {
		shared.WriteError(w, r, err)
		return
	}
	d, err := h.Service.Dashboard(r.Context(), strings.TrimSpace(r.URL.Query().Get("employeeId")), sections)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Success(w, d, shared.RequestID(r))
}
