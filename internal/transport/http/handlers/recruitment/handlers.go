package recruitmenthandler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"hrdesk/internal/domain/audit"
	"hrdesk/internal/domain/auth"
	"hrdesk/internal/domain/listing"
	"hrdesk/internal/domain/recruitment"
	"hrdesk/internal/platform/metrics"
	"hrdesk/internal/platform/validate"
	"hrdesk/internal/transport/http/api"
	viewshandler "hrdesk/internal/transport/http/handlers/views"
	"hrdesk/internal/transport/http/middleware"
	"hrdesk/internal/transport/http/shared"
)

// MultipartOverhead covers the form fields sent alongside the CV.
const MultipartOverhead = 1 << 20

type Handler struct {
	Service    *recruitment.Service
	Views      *viewshandler.Registry
	Metrics    *metrics.Collector
	MaxCVBytes int64
}

func NewHandler(service *recruitment.Service, views *viewshandler.Registry, collector *metrics.Collector, maxCVBytes int64) *Handler {
	h := &Handler{Service: service, Views: views, Metrics: collector, MaxCVBytes: maxCVBytes}
	views.Register(viewshandler.View{
		Descriptor: recruitment.AdvertDescriptor,
		Source:     service.AdvertSource(),
		Permission: auth.PermRecruitmentRead,
	})
	views.Register(viewshandler.View{
		Descriptor: recruitment.ApplicationDescriptor,
		Source:     service.ApplicationSource(),
		Permission: auth.PermRecruitmentRead,
	})
	h.registerActions()
	return h
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	perms := h.Views.Perms
	read := middleware.RequirePermission(auth.PermRecruitmentRead, perms)
	write := middleware.RequirePermission(auth.PermRecruitmentWrite, perms)
	remove := middleware.RequirePermission(auth.PermRecruitmentDelete, perms)

	r.Route("/job-adverts", func(r chi.Router) {
		r.With(write).Post("/", h.handleCreateAdvert)
		r.With(read).Get("/export", h.handleExportAdverts)
		r.With(remove).Post("/bulk-delete", h.handleBulkDeleteAdverts)
		r.With(read).Get("/{id}", h.handleGetAdvert)
		r.With(write).Put("/{id}", h.handleUpdateAdvert)
		r.With(remove).Delete("/{id}", h.handleDeleteAdvert)
	})
	r.Route("/applications", func(r chi.Router) {
		r.With(read).Get("/export", h.handleExportApplications)
		r.With(write).Post("/bulk-status", h.handleBulkStatus)
		r.With(remove).Post("/bulk-delete", h.handleBulkDeleteApplications)
		r.With(read).Get("/{id}", h.handleGetApplication)
		r.With(read).Get("/{id}/cv", h.handleDownloadCV)
		r.With(write).Put("/{id}/status", h.handleSetStatus)
		r.With(write).Put("/{id}/note", h.handleSetNote)
		r.With(remove).Delete("/{id}", h.handleDeleteApplication)
	})
}

// RegisterPublicRoutes mounts the careers pages. They need no session.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/public/jobs", h.handlePublicList)
	r.Get("/public/jobs/{slug}", h.handlePublicAdvert)
	r.Post("/public/jobs/{slug}/apply", h.handleApply)
}

func (h *Handler) registerActions() {
	h.Views.Handle("delete_job_advert", viewshandler.Action{
		Permission: auth.PermRecruitmentDelete,
		Run: func(ctx context.Context, actor audit.Actor, p listing.Pending) (viewshandler.Outcome, error) {
			if err := h.Service.DeleteAdvert(ctx, actor, p.IDs[0]); err != nil {
				return viewshandler.Outcome{}, err
			}
			return viewshandler.Outcome{Message: "Job advert deleted."}, nil
		},
	})
	h.Views.Handle("bulk_delete_job_adverts", viewshandler.Action{
		Permission: auth.PermRecruitmentDelete,
		Run: func(ctx context.Context, actor audit.Actor, p listing.Pending) (viewshandler.Outcome, error) {
			res, err := h.Service.DeleteAdverts(ctx, actor, p.IDs)
			if err != nil {
				return viewshandler.Outcome{}, err
			}
			return viewshandler.Outcome{Data: res, Message: fmt.Sprintf("%d job adverts deleted.", len(res.Changed))}, nil
		},
	})
	h.Views.Handle("delete_application", viewshandler.Action{
		Permission: auth.PermRecruitmentDelete,
		Run: func(ctx context.Context, actor audit.Actor, p listing.Pending) (viewshandler.Outcome, error) {
			if err := h.Service.DeleteApplication(ctx, actor, p.IDs[0]); err != nil {
				return viewshandler.Outcome{}, err
			}
			return viewshandler.Outcome{Message: "Application deleted."}, nil
		},
	})
	h.Views.Handle("bulk_delete_applications", viewshandler.Action{
		Permission: auth.PermRecruitmentDelete,
		Run: func(ctx context.Context, actor audit.Actor, p listing.Pending) (viewshandler.Outcome, error) {
			res, err := h.Service.DeleteApplications(ctx, actor, p.Scope, p.IDs)
			if err != nil {
				return viewshandler.Outcome{}, err
			}
			return viewshandler.Outcome{Data: res, Message: fmt.Sprintf("%d applications deleted.", len(res.Changed))}, nil
		},
	})
	h.Views.Handle("bulk_status_applications", viewshandler.Action{
		Permission: auth.PermRecruitmentWrite,
		Run: func(ctx context.Context, actor audit.Actor, p listing.Pending) (viewshandler.Outcome, error) {
			res, err := h.Service.BulkStatus(ctx, actor, p.Scope, p.IDs, p.Param)
			if err != nil {
				return viewshandler.Outcome{}, err
			}
			return viewshandler.Outcome{Data: res, Message: fmt.Sprintf("%d applications marked %s.", len(res.Changed), p.Param)}, nil
		},
	})
}

func scopeParam(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("scope"))
}

func (h *Handler) handleCreateAdvert(w http.ResponseWriter, r *http.Request) {
	var in recruitment.AdvertInput
	if err := shared.DecodeJSON(r, &in); err != nil {
		shared.WriteError(w, r, err)
		return
	}
	advert, err := h.Service.CreateAdvert(r.Context(), shared.Actor(r), in)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	shared.Done(w, r, h.Views.Notifier, http.StatusCreated, advert, "Job advert created.")
}

func (h *Handler) handleGetAdvert(w http.ResponseWriter, r *http.Request) {
	advert, err := h.Service.GetAdvert(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Success(w, advert, shared.RequestID(r))
}

func (h *Handler) handleUpdateAdvert(w http.ResponseWriter, r *http.Request) {
	var in recruitment.AdvertInput
	if err := shared.DecodeJSON(r, &in); err != nil {
		shared.WriteError(w, r, err)
		return
	}
	advert, err := h.Service.UpdateAdvert(r.Context(), shared.Actor(r), chi.URLParam(r, "id"), in)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	shared.Done(w, r, h.Views.Notifier, http.StatusOK, advert, "Job advert updated.")
}

func (h *Handler) handleDeleteAdvert(w http.ResponseWriter, r *http.Request) {
	advert, err := h.Service.GetAdvert(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	h.Views.Confirm(w, r, "delete_job_advert", recruitment.AdvertDescriptor.Name, "", "", []string{advert.ID})
}

func (h *Handler) handleBulkDeleteAdverts(w http.ResponseWriter, r *http.Request) {
	selected, err := h.Views.Selected(r, recruitment.AdvertDescriptor.Name, "")
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	h.Views.Confirm(w, r, "bulk_delete_job_adverts", recruitment.AdvertDescriptor.Name, "", "", selected)
}

func (h *Handler) handleExportAdverts(w http.ResponseWriter, r *http.Request) {
	all := shared.QueryBool(r, "all")
	set, err := h.Views.ExportSet(r, recruitment.AdvertDescriptor.Name, "", all)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	shared.ServeCSV(w, r, h.Metrics, recruitment.AdvertDescriptor.Name, all, func(out io.Writer) (int, error) {
		return h.Service.ExportAdverts(r.Context(), shared.Actor(r), set, out)
	})
}

func (h *Handler) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.Service.GetApplication(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Success(w, app, shared.RequestID(r))
}

func (h *Handler) handleDownloadCV(w http.ResponseWriter, r *http.Request) {
	cv, err := h.Service.CV(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	shared.ServeFile(w, cv.Filename, cv.ContentType, cv.Data, true)
}

type statusRequest struct {
	Status string `json:"status"`
}

type noteRequest struct {
	PrivateNote string `json:"privateNote"`
}

func (h *Handler) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var payload statusRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.WriteError(w, r, err)
		return
	}
	changed, err := h.Service.SetStatus(r.Context(), shared.Actor(r), chi.URLParam(r, "id"), strings.TrimSpace(payload.Status))
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	msg := "Application status updated."
	if !changed {
		msg = "Application already had that status."
	}
	shared.Done(w, r, h.Views.Notifier, http.StatusOK, map[string]bool{"changed": changed}, msg)
}

func (h *Handler) handleSetNote(w http.ResponseWriter, r *http.Request) {
	var payload noteRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.WriteError(w, r, err)
		return
	}
	if err := h.Service.SetNote(r.Context(), shared.Actor(r), chi.URLParam(r, "id"), payload.PrivateNote); err != nil {
		shared.WriteError(w, r, err)
		return
	}
	shared.Done(w, r, h.Views.Notifier, http.StatusOK, nil, "Note saved.")
}

// handleBulkStatus validates the target status before issuing the token so a
// bad value never reaches the confirmation step.
func (h *Handler) handleBulkStatus(w http.ResponseWriter, r *http.Request) {
	var payload statusRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.WriteError(w, r, err)
		return
	}
	status, err := recruitment.ParseApplicationStatus(strings.TrimSpace(payload.Status))
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	scope := scopeParam(r)
	selected, err := h.Views.Selected(r, recruitment.ApplicationDescriptor.Name, scope)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	h.Views.Confirm(w, r, "bulk_status_applications", recruitment.ApplicationDescriptor.Name, scope, string(status), selected)
}

func (h *Handler) handleDeleteApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.Service.GetApplication(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	h.Views.Confirm(w, r, "delete_application", recruitment.ApplicationDescriptor.Name, scopeParam(r), "", []string{app.ID})
}

func (h *Handler) handleBulkDeleteApplications(w http.ResponseWriter, r *http.Request) {
	scope := scopeParam(r)
	selected, err := h.Views.Selected(r, recruitment.ApplicationDescriptor.Name, scope)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	h.Views.Confirm(w, r, "bulk_delete_applications", recruitment.ApplicationDescriptor.Name, scope, "", selected)
}

func (h *Handler) handleExportApplications(w http.ResponseWriter, r *http.Request) {
	scope := scopeParam(r)
	all := shared.QueryBool(r, "all")
	set, err := h.Views.ExportSet(r, recruitment.ApplicationDescriptor.Name, scope, all)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	shared.ServeCSV(w, r, h.Metrics, recruitment.ApplicationDescriptor.Name, all, func(out io.Writer) (int, error) {
		return h.Service.ExportApplications(r.Context(), shared.Actor(r), scope, set, out)
	})
}

type publicAdvert struct {
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Deadline    string `json:"deadline"`
	Open        bool   `json:"open"`
}

func toPublic(a recruitment.Advert, open bool) publicAdvert {
	return publicAdvert{
		Title:       a.Title,
		Slug:        a.Slug,
		Description: a.Description,
		Deadline:    a.Deadline.Format("2006-01-02"),
		Open:        open,
	}
}

func (h *Handler) handlePublicList(w http.ResponseWriter, r *http.Request) {
	adverts, err := h.Service.PublicAdverts(r.Context())
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	out := make([]publicAdvert, 0, len(adverts))
	for _, a := range adverts {
		out = append(out, toPublic(a, true))
	}
	api.Success(w, out, shared.RequestID(r))
}

func (h *Handler) handlePublicAdvert(w http.ResponseWriter, r *http.Request) {
	advert, err := h.Service.PublicAdvert(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Success(w, toPublic(advert, h.Service.IsOpen(advert)), shared.RequestID(r))
}

func (h *Handler) handleApply(w http.ResponseWriter, r *http.Request) {
	sub, err := h.decodeSubmission(r)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	app, err := h.Service.Submit(r.Context(), shared.Actor(r), chi.URLParam(r, "slug"), sub)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Created(w, map[string]string{"id": app.ID, "status": string(app.Status)},
		api.Notice{Type: "success", Message: "Thank you, your application has been received."}, shared.RequestID(r))
}

func (h *Handler) decodeSubmission(r *http.Request) (recruitment.Submission, error) {
	if !strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data") {
		v := validate.New()
		v.Add("body", "must be multipart/form-data")
		return recruitment.Submission{}, v.Err()
	}
	if err := r.ParseMultipartForm(h.MaxCVBytes + MultipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return recruitment.Submission{}, err
		}
		v := validate.New()
		v.Add("body", "is not a valid multipart form")
		return recruitment.Submission{}, v.Err()
	}
	sub := recruitment.Submission{
		Name:        r.FormValue("name"),
		Email:       r.FormValue("email"),
		Phone:       r.FormValue("phone"),
		CoverLetter: r.FormValue("coverLetter"),
	}
	file, header, err := r.FormFile("cv")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return sub, nil
	case err != nil:
		return recruitment.Submission{}, err
	}
	defer file.Close()
	cv, err := readCV(file, header, h.MaxCVBytes)
	if err != nil {
		return recruitment.Submission{}, err
	}
	sub.CV = cv
	return sub, nil
}

// readCV reads at most one byte past the limit so an oversized file is
// reported by validation rather than silently truncated.
func readCV(file multipart.File, header *multipart.FileHeader, limit int64) (recruitment.CV, error) {
	reader := io.Reader(file)
	if limit > 0 {
		reader = io.LimitReader(file, limit+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return recruitment.CV{}, fmt.Errorf("read cv: %w", err)
	}
	return recruitment.CV{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
