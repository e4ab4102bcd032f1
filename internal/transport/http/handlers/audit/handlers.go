package audithandler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"hrdesk/internal/domain/audit"
	"hrdesk/internal/domain/auth"
	"hrdesk/internal/domain/export"
	"hrdesk/internal/platform/metrics"
	"hrdesk/internal/transport/http/api"
	"hrdesk/internal/transport/http/middleware"
	"hrdesk/internal/transport/http/shared"
)

type Trail interface {
	Count(ctx context.Context, filter audit.Filter) (int, error)
	List(ctx context.Context, filter audit.Filter, limit, offset int) ([]audit.Event, error)
	Each(ctx context.Context, filter audit.Filter, fn func(audit.Event) error) error
	Record(ctx context.Context, e audit.Entry) error
}

type Handler struct {
	Service Trail
	Perms   middleware.PermissionStore
	Metrics *metrics.Collector
}

func NewHandler(service Trail, perms middleware.PermissionStore, collector *metrics.Collector) *Handler {
	return &Handler{Service: service, Perms: perms, Metrics: collector}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/audit", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermAuditRead, h.Perms)).Get("/events", h.handleListEvents)
		r.With(middleware.RequirePermission(auth.PermAuditRead, h.Perms)).Get("/events/export", h.handleExportEvents)
	})
}

func filterFrom(r *http.Request) audit.Filter {
	q := r.URL.Query()
	return audit.Filter{
		Action:     strings.TrimSpace(q.Get("action")),
		TargetType: strings.TrimSpace(q.Get("targetType")),
		ActorID:    strings.TrimSpace(q.Get("actorId")),
	}
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, 100, 500)
	filter := filterFrom(r)
	total, err := h.Service.Count(r.Context(), filter)
	if err != nil {
		slog.Warn("audit count failed", "err", err)
	}

	events, err := h.Service.List(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, events, shared.RequestID(r))
}

var eventHeader = []string{"ID", "Actor", "Action", "Target Type", "Target ID", "Request ID", "IP", "Created At"}

func (h *Handler) handleExportEvents(w http.ResponseWriter, r *http.Request) {
	filter := filterFrom(r)
	shared.ServeCSV(w, r, h.Metrics, "audit_events", true, func(out io.Writer) (int, error) {
		cw := export.NewWriter(out)
		if err := cw.Write(eventHeader); err != nil {
			return 0, err
		}
		err := h.Service.Each(r.Context(), filter, func(evt audit.Event) error {
			created := evt.CreatedAt
			return cw.Write([]string{
				evt.ID, evt.ActorID, evt.Action, evt.TargetType, evt.TargetID,
				evt.RequestID, evt.IP, export.Timestamp(&created),
			})
		})
		if err != nil {
			return cw.Rows() - 1, err
		}
		if err := cw.Flush(); err != nil {
			return cw.Rows() - 1, err
		}
		rows := cw.Rows() - 1
		if err := h.Service.Record(r.Context(), audit.Entry{
			Actor:      shared.Actor(r),
			Action:     "export_audit_events",
			TargetType: "audit",
			Details:    map[string]any{"rows": rows, "action": filter.Action, "targetType": filter.TargetType, "actorId": filter.ActorID},
		}); err != nil {
			slog.Warn("audit export record failed", "err", err)
		}
		return rows, nil
	})
}
