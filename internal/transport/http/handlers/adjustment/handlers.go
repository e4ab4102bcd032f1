package adjustmenthandler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"hrdesk/internal/domain/adjustment"
	"hrdesk/internal/domain/audit"
	"hrdesk/internal/domain/auth"
	"hrdesk/internal/domain/listing"
	"hrdesk/internal/platform/metrics"
	"hrdesk/internal/transport/http/api"
	viewshandler "hrdesk/internal/transport/http/handlers/views"
	"hrdesk/internal/transport/http/middleware"
	"hrdesk/internal/transport/http/shared"
)

type Handler struct {
	Service *adjustment.Service
	Views   *viewshandler.Registry
	Metrics *metrics.Collector
}

func NewHandler(service *adjustment.Service, views *viewshandler.Registry, collector *metrics.Collector) *Handler {
	h := &Handler{Service: service, Views: views, Metrics: collector}
	for _, kind := range []adjustment.Kind{adjustment.Allowance, adjustment.Deduction} {
		views.Register(viewshandler.View{
			Descriptor: adjustment.Descriptor(kind),
			Source:     service.Source(kind),
			Permission: auth.PermPayrollRead,
		})
		h.registerActions(kind)
	}
	return h
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	perms := h.Views.Perms
	for _, kind := range []adjustment.Kind{adjustment.Allowance, adjustment.Deduction} {
		kind := kind
		r.Route("/employees/{employeeID}/"+kind.View(), func(r chi.Router) {
			r.With(middleware.RequirePermission(auth.PermPayrollRead, perms)).Get("/export", h.handleExport(kind))
			r.With(middleware.RequirePermission(auth.PermPayrollRead, perms)).Get("/{id}", h.handleGet(kind))
			r.With(middleware.RequirePermission(auth.PermPayrollWrite, perms)).Post("/", h.handleCreate(kind))
			r.With(middleware.RequirePermission(auth.PermPayrollWrite, perms)).Put("/{id}", h.handleUpdate(kind))
			r.With(middleware.RequirePermission(auth.PermPayrollWrite, perms)).Post("/{id}/deactivate", h.handleConfirmOne(kind, "deactivate"))
			r.With(middleware.RequirePermission(auth.PermPayrollWrite, perms)).Post("/{id}/reactivate", h.handleConfirmOne(kind, "reactivate"))
			r.With(middleware.RequirePermission(auth.PermPayrollWrite, perms)).Post("/bulk-deactivate", h.handleBulkDeactivate(kind))
		})
	}
}

func actionName(verb string, kind adjustment.Kind) string {
	return verb + "_" + string(kind)
}

func title(kind adjustment.Kind) string {
	s := string(kind)
	return strings.ToUpper(s[:1]) + s[1:]
}

func (h *Handler) registerActions(kind adjustment.Kind) {
	h.Views.Handle(actionName("deactivate", kind), viewshandler.Action{
		Permission: auth.PermPayrollWrite,
		Run: func(ctx context.Context, actor audit.Actor, p listing.Pending) (viewshandler.Outcome, error) {
			changed, err := h.Service.Deactivate(ctx, actor, kind, p.Scope, p.IDs[0])
			if err != nil {
				return viewshandler.Outcome{}, err
			}
			msg := title(kind) + " deactivated."
			if !changed {
				msg = title(kind) + " was already inactive."
			}
			return viewshandler.Outcome{Data: map[string]bool{"changed": changed}, Message: msg}, nil
		},
	})
	h.Views.Handle(actionName("reactivate", kind), viewshandler.Action{
		Permission: auth.PermPayrollWrite,
		Run: func(ctx context.Context, actor audit.Actor, p listing.Pending) (viewshandler.Outcome, error) {
			changed, err := h.Service.Reactivate(ctx, actor, kind, p.Scope, p.IDs[0])
			if err != nil {
				return viewshandler.Outcome{}, err
			}
			msg := title(kind) + " reactivated."
			if !changed {
				msg = title(kind) + " was already active."
			}
			return viewshandler.Outcome{Data: map[string]bool{"changed": changed}, Message: msg}, nil
		},
	})
	h.Views.Handle(actionName("bulk_deactivate", kind), viewshandler.Action{
		Permission: auth.PermPayrollWrite,
		Run: func(ctx context.Context, actor audit.Actor, p listing.Pending) (viewshandler.Outcome, error) {
			res, err := h.Service.BulkDeactivate(ctx, actor, kind, p.Scope, p.IDs)
			if err != nil {
				return viewshandler.Outcome{}, err
			}
			return viewshandler.Outcome{Data: res, Message: fmt.Sprintf("%d %s deactivated.", len(res.Changed), kind.View())}, nil
		},
	})
}

func (h *Handler) handleGet(kind adjustment.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := h.Service.Get(r.Context(), kind, chi.URLParam(r, "employeeID"), chi.URLParam(r, "id"))
		if err != nil {
			shared.WriteError(w, r, err)
			return
		}
		api.Success(w, item, shared.RequestID(r))
	}
}

func (h *Handler) handleCreate(kind adjustment.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in adjustment.Input
		if err := shared.DecodeJSON(r, &in); err != nil {
			shared.WriteError(w, r, err)
			return
		}
		item, err := h.Service.Create(r.Context(), shared.Actor(r), kind, chi.URLParam(r, "employeeID"), in)
		if err != nil {
			shared.WriteError(w, r, err)
			return
		}
		shared.Done(w, r, h.Views.Notifier, http.StatusCreated, item, title(kind)+" created.")
	}
}

func (h *Handler) handleUpdate(kind adjustment.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in adjustment.Input
		if err := shared.DecodeJSON(r, &in); err != nil {
			shared.WriteError(w, r, err)
			return
		}
		item, err := h.Service.Update(r.Context(), shared.Actor(r), kind, chi.URLParam(r, "employeeID"), chi.URLParam(r, "id"), in)
		if err != nil {
			shared.WriteError(w, r, err)
			return
		}
		shared.Done(w, r, h.Views.Notifier, http.StatusOK, item, title(kind)+" updated.")
	}
}

// handleConfirmOne checks the record exists in this employee's collection
// before handing out a confirmation token for it.
func (h *Handler) handleConfirmOne(kind adjustment.Kind, verb string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		employeeID := chi.URLParam(r, "employeeID")
		item, err := h.Service.Get(r.Context(), kind, employeeID, chi.URLParam(r, "id"))
		if err != nil {
			shared.WriteError(w, r, err)
			return
		}
		h.Views.Confirm(w, r, actionName(verb, kind), kind.View(), employeeID, "", []string{item.ID})
	}
}

func (h *Handler) handleBulkDeactivate(kind adjustment.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		employeeID := chi.URLParam(r, "employeeID")
		selected, err := h.Views.Selected(r, kind.View(), employeeID)
		if err != nil {
			shared.WriteError(w, r, err)
			return
		}
		h.Views.Confirm(w, r, actionName("bulk_deactivate", kind), kind.View(), employeeID, "", selected)
	}
}

func (h *Handler) handleExport(kind adjustment.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		employeeID := chi.URLParam(r, "employeeID")
		all := shared.QueryBool(r, "all")
		set, err := h.Views.ExportSet(r, kind.View(), employeeID, all)
		if err != nil {
			shared.WriteError(w, r, err)
			return
		}
		shared.ServeCSV(w, r, h.Metrics, kind.View(), all, func(out io.Writer) (int, error) {
			return h.Service.Export(r.Context(), shared.Actor(r), kind, employeeID, set, out)
		})
	}
}
