package viewshandler

import (
	"context"
	"fmt"
	"net/http"

	"hrdesk/internal/domain/audit"
	"hrdesk/internal/domain/export"
	"hrdesk/internal/domain/listing"
	"hrdesk/internal/transport/http/api"
	"hrdesk/internal/transport/http/middleware"
	"hrdesk/internal/transport/http/shared"
)

// ScopeFunc checks the requested scope for the caller and returns the scope
// to use. It may narrow it, for example to the caller's own employee record.
type ScopeFunc func(r *http.Request, scope string) (string, error)

type View struct {
	Descriptor listing.Descriptor
	Source     listing.Source
	Permission string
	Scope      ScopeFunc
}

// Action runs a confirmed mutation. It receives the ids captured when the
// confirmation was requested, never the live selection.
type Action struct {
	Permission string
	Run        func(ctx context.Context, actor audit.Actor, p listing.Pending) (Outcome, error)
}

type Outcome struct {
	Data    any
	Message string
}

// Registry owns the per-session list state and the pending confirmations
// shared by every collection handler.
type Registry struct {
	Sessions      *listing.Sessions
	Confirmations *listing.Confirmations
	Perms         middleware.PermissionStore
	Notifier      shared.Notifier
	SelectionCap  int

	views   map[string]View
	actions map[string]Action
}

func NewRegistry(sessions *listing.Sessions, confirmations *listing.Confirmations, perms middleware.PermissionStore, notifier shared.Notifier, selectionCap int) *Registry {
	return &Registry{
		Sessions:      sessions,
		Confirmations: confirmations,
		Perms:         perms,
		Notifier:      notifier,
		SelectionCap:  selectionCap,
		views:         map[string]View{},
		actions:       map[string]Action{},
	}
}

func (g *Registry) Register(v View) {
	if _, dup := g.views[v.Descriptor.Name]; dup {
		panic(fmt.Sprintf("view %q registered twice", v.Descriptor.Name))
	}
	g.views[v.Descriptor.Name] = v
}

func (g *Registry) Handle(name string, a Action) {
	if _, dup := g.actions[name]; dup {
		panic(fmt.Sprintf("action %q registered twice", name))
	}
	g.actions[name] = a
}

func (g *Registry) View(name string) (View, error) {
	v, ok := g.views[name]
	if !ok {
		return View{}, listing.ErrUnknownView
	}
	return v, nil
}

// Resolve looks up a view, checks the caller may read it and settles the
// scope. It writes the failure response itself and reports false.
func (g *Registry) Resolve(w http.ResponseWriter, r *http.Request, name, scope string) (View, string, bool) {
	v, err := g.View(name)
	if err != nil {
		shared.WriteError(w, r, err)
		return View{}, "", false
	}
	if !middleware.Allow(w, r, v.Permission, g.Perms) {
		return View{}, "", false
	}
	if v.Scope != nil {
		scope, err = v.Scope(r, scope)
		if err != nil {
			shared.WriteError(w, r, err)
			return View{}, "", false
		}
	}
	if v.Descriptor.ScopeRequired && scope == "" {
		shared.WriteError(w, r, listing.ErrScopeRequired)
		return View{}, "", false
	}
	return v, scope, true
}

// State returns the caller's stored state for a view.
func (g *Registry) State(r *http.Request, view, scope string) (listing.ViewState, error) {
	v, err := g.View(view)
	if err != nil {
		return listing.ViewState{}, err
	}
	return g.Sessions.Get(sessionKey(r), view, scope, v.Descriptor), nil
}

// Selected returns the ids currently selected in a view.
func (g *Registry) Selected(r *http.Request, view, scope string) ([]string, error) {
	state, err := g.State(r, view, scope)
	if err != nil {
		return nil, err
	}
	return state.Selected, nil
}

// Confirm records a pending action and answers 202 with its token. Nothing
// changes until the token is posted back by the same session.
func (g *Registry) Confirm(w http.ResponseWriter, r *http.Request, action, view, scope, param string, ids []string) {
	if _, ok := g.actions[action]; !ok {
		shared.WriteError(w, r, fmt.Errorf("confirm %s: no such action", action))
		return
	}
	if len(ids) == 0 {
		shared.WriteError(w, r, listing.ErrEmptySelection)
		return
	}
	if g.SelectionCap > 0 && len(ids) > g.SelectionCap {
		shared.WriteError(w, r, listing.ErrSelectionTooLarge)
		return
	}
	p := g.Confirmations.RequestParam(sessionKey(r), action, view, scope, param, ids)
	api.Accepted(w, p, shared.RequestID(r))
}

// sessionKey ties list state and confirmations to the login session, so two
// tabs of one login share a selection but two logins do not.
func sessionKey(r *http.Request) string {
	user := shared.User(r)
	if user.SessionID != "" {
		return user.SessionID
	}
	return "user:" + user.UserID
}

// ExportSet names the rows an export covers: every row matching the view's
// filters when all is set, the current selection otherwise.
func (g *Registry) ExportSet(r *http.Request, view, scope string, all bool) (export.Set, error) {
	state, err := g.State(r, view, scope)
	if err != nil {
		return export.Set{}, err
	}
	if all {
		return export.Set{All: true, Filter: state.Filter(scope)}, nil
	}
	if len(state.Selected) == 0 {
		return export.Set{}, listing.ErrEmptySelection
	}
	return export.Set{IDs: state.Selected}, nil
}
