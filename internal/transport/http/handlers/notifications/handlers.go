package notificationshandler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrdesk/internal/domain/notifications"
	"hrdesk/internal/transport/http/api"
	"hrdesk/internal/transport/http/shared"
)

type Drainer interface {
	Drain(ctx context.Context, userID string) ([]notifications.Flash, error)
}

type Handler struct {
	Service Drainer
}

func NewHandler(service Drainer) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/notifications/flash", h.handleFlash)
}

// handleFlash returns and clears the caller's pending flash messages.
func (h *Handler) handleFlash(w http.ResponseWriter, r *http.Request) {
	user := shared.User(r)
	if user.UserID == "" {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", shared.RequestID(r))
		return
	}
	items, err := h.Service.Drain(r.Context(), user.UserID)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	if items == nil {
		items = []notifications.Flash{}
	}
	api.Success(w, items, shared.RequestID(r))
}
