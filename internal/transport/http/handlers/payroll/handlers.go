package payrollhandler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrdesk/internal/domain/audit"
	"hrdesk/internal/domain/auth"
	"hrdesk/internal/domain/employee"
	"hrdesk/internal/domain/listing"
	"hrdesk/internal/domain/payroll"
	"hrdesk/internal/platform/metrics"
	"hrdesk/internal/transport/http/api"
	viewshandler "hrdesk/internal/transport/http/handlers/views"
	"hrdesk/internal/transport/http/middleware"
	"hrdesk/internal/transport/http/shared"
)

type EmployeeFinder interface {
	ByUserID(ctx context.Context, userID string) (employee.Employee, error)
}

type Handler struct {
	Payrolls  *payroll.Service
	Payslips  *payroll.PayslipService
	Employees EmployeeFinder
	Views     *viewshandler.Registry
	Metrics   *metrics.Collector
}

func NewHandler(payrolls *payroll.Service, payslips *payroll.PayslipService, employees EmployeeFinder, views *viewshandler.Registry, collector *metrics.Collector) *Handler {
	h := &Handler{Payrolls: payrolls, Payslips: payslips, Employees: employees, Views: views, Metrics: collector}
	views.Register(viewshandler.View{
		Descriptor: payroll.PayrollDescriptor,
		Source:     payrolls.Source(),
		Permission: auth.PermPayrollRead,
	})
	views.Register(viewshandler.View{
		Descriptor: payroll.PayslipDescriptor,
		Source:     payslips.Source(),
		Permission: auth.PermPayslipsRead,
		Scope:      h.payslipScope,
	})
	h.registerActions()
	return h
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	perms := h.Views.Perms
	r.Route("/employees/{employeeID}/payrolls", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermPayrollRead, perms)).Get("/export", h.handleExportPayrolls)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, perms)).Get("/{id}", h.handleGetPayroll)
		r.With(middleware.RequirePermission(auth.PermPayrollDelete, perms)).Delete("/{id}", h.handleDeletePayroll)
		r.With(middleware.RequirePermission(auth.PermPayrollDelete, perms)).Post("/bulk-delete", h.handleBulkDeletePayrolls)
	})
	r.Route("/employees/{employeeID}/payslips", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermPayslipsRead, perms)).Get("/export", h.handleExportPayslips)
		r.With(middleware.RequirePermission(auth.PermPayslipsRead, perms)).Get("/{id}/download", h.handleDownload)
		r.With(middleware.RequirePermission(auth.PermPayslipsManage, perms)).Post("/{id}/email", h.handleEmail)
		r.With(middleware.RequirePermission(auth.PermPayslipsManage, perms)).Delete("/{id}", h.handleDeletePayslip)
	})
}

// payslipScope lets payslip managers open any employee's payslips and pins
// everyone else to their own employee record.
func (h *Handler) payslipScope(r *http.Request, scope string) (string, error) {
	user := shared.User(r)
	manager, err := h.Views.Perms.HasPermission(r.Context(), user.RoleID, auth.PermPayslipsManage)
	if err != nil {
		return "", err
	}
	if manager {
		return scope, nil
	}
	self, err := h.Employees.ByUserID(r.Context(), user.UserID)
	if errors.Is(err, employee.ErrNotFound) {
		return "", shared.ErrForbidden
	}
	if err != nil {
		return "", err
	}
	if scope != "" && scope != self.ID {
		return "", shared.ErrForbidden
	}
	return self.ID, nil
}

func (h *Handler) registerActions() {
	h.Views.Handle("delete_payroll", viewshandler.Action{
		Permission: auth.PermPayrollDelete,
		Run: func(ctx context.Context, actor audit.Actor, p listing.Pending) (viewshandler.Outcome, error) {
			if err := h.Payrolls.Delete(ctx, actor, p.Scope, p.IDs[0]); err != nil {
				return viewshandler.Outcome{}, err
			}
			return viewshandler.Outcome{Message: "Payroll deleted."}, nil
		},
	})
	h.Views.Handle("bulk_delete_payroll", viewshandler.Action{
		Permission: auth.PermPayrollDelete,
		Run: func(ctx context.Context, actor audit.Actor, p listing.Pending) (viewshandler.Outcome, error) {
			res, err := h.Payrolls.BulkDelete(ctx, actor, p.Scope, p.IDs)
			if err != nil {
				return viewshandler.Outcome{}, err
			}
			return viewshandler.Outcome{Data: res, Message: fmt.Sprintf("%d payrolls deleted.", len(res.Deleted))}, nil
		},
	})
	h.Views.Handle("delete_payslip", viewshandler.Action{
		Permission: auth.PermPayslipsManage,
		Run: func(ctx context.Context, actor audit.Actor, p listing.Pending) (viewshandler.Outcome, error) {
			if err := h.Payslips.Delete(ctx, actor, p.Scope, p.IDs[0]); err != nil {
				return viewshandler.Outcome{}, err
			}
			return viewshandler.Outcome{Message: "Payslip deleted."}, nil
		},
	})
}

type payrollDetail struct {
	Payroll   payroll.Payroll   `json:"payroll"`
	Breakdown payroll.Breakdown `json:"breakdown"`
}

func (h *Handler) handleGetPayroll(w http.ResponseWriter, r *http.Request) {
	p, breakdown, err := h.Payrolls.Get(r.Context(), chi.URLParam(r, "employeeID"), chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Success(w, payrollDetail{Payroll: p, Breakdown: breakdown}, shared.RequestID(r))
}

func (h *Handler) handleDeletePayroll(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")
	p, _, err := h.Payrolls.Get(r.Context(), employeeID, chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	h.Views.Confirm(w, r, "delete_payroll", payroll.PayrollDescriptor.Name, employeeID, "", []string{p.ID})
}

func (h *Handler) handleBulkDeletePayrolls(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")
	selected, err := h.Views.Selected(r, payroll.PayrollDescriptor.Name, employeeID)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	h.Views.Confirm(w, r, "bulk_delete_payroll", payroll.PayrollDescriptor.Name, employeeID, "", selected)
}

func (h *Handler) handleExportPayrolls(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")
	all := shared.QueryBool(r, "all")
	set, err := h.Views.ExportSet(r, payroll.PayrollDescriptor.Name, employeeID, all)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	shared.ServeCSV(w, r, h.Metrics, payroll.PayrollDescriptor.Name, all, func(out io.Writer) (int, error) {
		return h.Payrolls.Export(r.Context(), shared.Actor(r), employeeID, set, out)
	})
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	employeeID, err := h.payslipScope(r, chi.URLParam(r, "employeeID"))
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	file, err := h.Payslips.Download(r.Context(), shared.Actor(r), employeeID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, payroll.ErrRenderFailed) || errors.Is(err, payroll.ErrStorageFailed) {
			shared.Failed(w, r, h.Views.Notifier, err, "The payslip could not be generated. Please try again.")
			return
		}
		shared.WriteError(w, r, err)
		return
	}
	shared.ServeFile(w, file.Name, file.ContentType, file.Data, true)
}

func (h *Handler) handleEmail(w http.ResponseWriter, r *http.Request) {
	err := h.Payslips.Email(r.Context(), shared.Actor(r), chi.URLParam(r, "employeeID"), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, payroll.ErrRenderFailed) || errors.Is(err, payroll.ErrStorageFailed) {
			shared.Failed(w, r, h.Views.Notifier, err, "The payslip could not be generated. Please try again.")
			return
		}
		shared.WriteError(w, r, err)
		return
	}
	shared.Done(w, r, h.Views.Notifier, http.StatusOK, nil, "Payslip emailed.")
}

func (h *Handler) handleDeletePayslip(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")
	ps, err := h.Payslips.Get(r.Context(), employeeID, chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	h.Views.Confirm(w, r, "delete_payslip", payroll.PayslipDescriptor.Name, employeeID, "", []string{ps.ID})
}

func (h *Handler) handleExportPayslips(w http.ResponseWriter, r *http.Request) {
	employeeID, err := h.payslipScope(r, chi.URLParam(r, "employeeID"))
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	all := shared.QueryBool(r, "all")
	set, err := h.Views.ExportSet(r, payroll.PayslipDescriptor.Name, employeeID, all)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	shared.ServeCSV(w, r, h.Metrics, payroll.PayslipDescriptor.Name, all, func(out io.Writer) (int, error) {
		return h.Payslips.Export(r.Context(), shared.Actor(r), employeeID, set, out)
	})
}
