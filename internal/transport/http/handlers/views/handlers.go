package viewshandler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"hrdesk/internal/domain/listing"
	"hrdesk/internal/transport/http/api"
	"hrdesk/internal/transport/http/middleware"
	"hrdesk/internal/transport/http/shared"
)

func (g *Registry) RegisterRoutes(r chi.Router) {
	r.Route("/views/{view}", func(r chi.Router) {
		r.Get("/", g.handleGet)
		r.Patch("/", g.handlePatch)
		r.Post("/sort", g.handleSort)
		r.Post("/select-page", g.handleSelectPage)
		r.Post("/select-all", g.handleSelectAll)
		r.Post("/selection/{id}", g.handleToggle)
		r.Delete("/selection", g.handleClear)
	})
	r.Post("/confirmations/{token}", g.handleConfirm)
	r.Delete("/confirmations/{token}", g.handleCancel)
}

type patchRequest struct {
	Search       *string `json:"search"`
	FilterType   *string `json:"filterType"`
	FilterStatus *string `json:"filterStatus"`
	PerPage      *int    `json:"perPage"`
	Page         *int    `json:"page"`
}

type sortRequest struct {
	Field string `json:"field"`
}

func (g *Registry) resolve(w http.ResponseWriter, r *http.Request) (View, string, string, bool) {
	name := chi.URLParam(r, "view")
	v, scope, ok := g.Resolve(w, r, name, strings.TrimSpace(r.URL.Query().Get("scope")))
	return v, name, scope, ok
}

func (g *Registry) handleGet(w http.ResponseWriter, r *http.Request) {
	v, name, scope, ok := g.resolve(w, r)
	if !ok {
		return
	}
	g.respond(w, r, v, name, scope)
}

func (g *Registry) handlePatch(w http.ResponseWriter, r *http.Request) {
	v, name, scope, ok := g.resolve(w, r)
	if !ok {
		return
	}
	var payload patchRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.WriteError(w, r, err)
		return
	}
	_, err := g.Sessions.Update(sessionKey(r), name, scope, v.Descriptor, func(s *listing.ViewState) error {
		if payload.Search != nil && strings.TrimSpace(*payload.Search) != s.Search {
			s.SetSearch(*payload.Search)
		}
		if payload.FilterType != nil && *payload.FilterType != s.FilterType {
			if err := s.SetFilterType(v.Descriptor, *payload.FilterType); err != nil {
				return err
			}
		}
		if payload.FilterStatus != nil && *payload.FilterStatus != s.FilterStatus {
			if err := s.SetFilterStatus(v.Descriptor, *payload.FilterStatus); err != nil {
				return err
			}
		}
		if payload.PerPage != nil && *payload.PerPage != s.PerPage {
			if err := s.SetPerPage(*payload.PerPage); err != nil {
				return err
			}
		}
		if payload.Page != nil {
			s.SetPage(*payload.Page)
		}
		return nil
	})
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	g.respond(w, r, v, name, scope)
}

func (g *Registry) handleSort(w http.ResponseWriter, r *http.Request) {
	v, name, scope, ok := g.resolve(w, r)
	if !ok {
		return
	}
	var payload sortRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.WriteError(w, r, err)
		return
	}
	_, err := g.Sessions.Update(sessionKey(r), name, scope, v.Descriptor, func(s *listing.ViewState) error {
		return s.SortBy(v.Descriptor, strings.TrimSpace(payload.Field))
	})
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	g.respond(w, r, v, name, scope)
}

// handleSelectPage toggles the current page in or out of the selection. The
// page is derived first so the toggle acts on the rows the caller sees now.
func (g *Registry) handleSelectPage(w http.ResponseWriter, r *http.Request) {
	v, name, scope, ok := g.resolve(w, r)
	if !ok {
		return
	}
	key := sessionKey(r)
	state := g.Sessions.Get(key, name, scope, v.Descriptor)
	if _, err := listing.Derive(r.Context(), v.Source, scope, &state); err != nil {
		shared.WriteError(w, r, err)
		return
	}
	_, err := g.Sessions.Update(key, name, scope, v.Descriptor, func(s *listing.ViewState) error {
		s.Page = state.Page
		s.PageIDs = state.PageIDs
		s.ToggleSelectAll()
		return nil
	})
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	g.respond(w, r, v, name, scope)
}

func (g *Registry) handleSelectAll(w http.ResponseWriter, r *http.Request) {
	v, name, scope, ok := g.resolve(w, r)
	if !ok {
		return
	}
	key := sessionKey(r)
	state := g.Sessions.Get(key, name, scope, v.Descriptor)
	if err := listing.SelectAllData(r.Context(), v.Source, scope, &state, g.SelectionCap); err != nil {
		shared.WriteError(w, r, err)
		return
	}
	_, err := g.Sessions.Update(key, name, scope, v.Descriptor, func(s *listing.ViewState) error {
		return s.SelectAllData(state.Selected, 0)
	})
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	g.respond(w, r, v, name, scope)
}

func (g *Registry) handleToggle(w http.ResponseWriter, r *http.Request) {
	v, name, scope, ok := g.resolve(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	_, err := g.Sessions.Update(sessionKey(r), name, scope, v.Descriptor, func(s *listing.ViewState) error {
		if !s.IsSelected(id) && g.SelectionCap > 0 && len(s.Selected) >= g.SelectionCap {
			return listing.ErrSelectionTooLarge
		}
		s.ToggleSelected(id)
		return nil
	})
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	g.respond(w, r, v, name, scope)
}

func (g *Registry) handleClear(w http.ResponseWriter, r *http.Request) {
	v, name, scope, ok := g.resolve(w, r)
	if !ok {
		return
	}
	_, err := g.Sessions.Update(sessionKey(r), name, scope, v.Descriptor, func(s *listing.ViewState) error {
		s.ClearSelection()
		return nil
	})
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	g.respond(w, r, v, name, scope)
}

// respond derives the current page and stores the page ids it produced.
func (g *Registry) respond(w http.ResponseWriter, r *http.Request, v View, name, scope string) {
	key := sessionKey(r)
	state := g.Sessions.Get(key, name, scope, v.Descriptor)
	res, err := listing.Derive(r.Context(), v.Source, scope, &state)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	_, err = g.Sessions.Update(key, name, scope, v.Descriptor, func(s *listing.ViewState) error {
		s.Page = state.Page
		s.PageIDs = state.PageIDs
		return nil
	})
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Success(w, res, shared.RequestID(r))
}

func (g *Registry) handleConfirm(w http.ResponseWriter, r *http.Request) {
	p, err := g.Confirmations.Take(sessionKey(r), chi.URLParam(r, "token"))
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	action, ok := g.actions[p.Action]
	if !ok {
		shared.WriteError(w, r, listing.ErrConfirmationNotFound)
		return
	}
	if action.Permission != "" && !middleware.Allow(w, r, action.Permission, g.Perms) {
		return
	}
	out, err := action.Run(r.Context(), shared.Actor(r), p)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	if v, err := g.View(p.View); err == nil {
		_, _ = g.Sessions.Update(sessionKey(r), p.View, p.Scope, v.Descriptor, func(s *listing.ViewState) error {
			s.Deselect(p.IDs...)
			return nil
		})
	}
	shared.Done(w, r, g.Notifier, http.StatusOK, out.Data, out.Message)
}

func (g *Registry) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := g.Confirmations.Cancel(sessionKey(r), chi.URLParam(r, "token")); err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.SuccessWithNotice(w, nil, api.Notice{Type: "info", Message: "Action cancelled."}, shared.RequestID(r))
}
