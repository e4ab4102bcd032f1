package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"hrdesk/internal/domain/adjustment"
	"hrdesk/internal/domain/audit"
	"hrdesk/internal/domain/auth"
	"hrdesk/internal/domain/employee"
	"hrdesk/internal/domain/listing"
	"hrdesk/internal/domain/notifications"
	"hrdesk/internal/domain/payroll"
	"hrdesk/internal/domain/recruitment"
	"hrdesk/internal/domain/reports"
	"hrdesk/internal/platform/config"
	cryptoutil "hrdesk/internal/platform/crypto"
	"hrdesk/internal/platform/email"
	"hrdesk/internal/platform/metrics"
	"hrdesk/internal/platform/storage"
	adjustmenthandler "hrdesk/internal/transport/http/handlers/adjustment"
	audithandler "hrdesk/internal/transport/http/handlers/audit"
	authhandler "hrdesk/internal/transport/http/handlers/auth"
	corehandler "hrdesk/internal/transport/http/handlers/core"
	notificationshandler "hrdesk/internal/transport/http/handlers/notifications"
	payrollhandler "hrdesk/internal/transport/http/handlers/payroll"
	recruitmenthandler "hrdesk/internal/transport/http/handlers/recruitment"
	reportshandler "hrdesk/internal/transport/http/handlers/reports"
	viewshandler "hrdesk/internal/transport/http/handlers/views"
	"hrdesk/internal/transport/http/middleware"
)

// Deps is everything the router needs that outlives a request.
type Deps struct {
	Config        config.Config
	DB            *pgxpool.Pool
	Crypto        *cryptoutil.Service
	Files         storage.Storage
	Mailer        email.Mailer
	Metrics       *metrics.Collector
	Sessions      *listing.Sessions
	Confirmations *listing.Confirmations
	Flash         *notifications.Service
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	pool := d.DB

	authService := auth.NewService(auth.NewStore(pool), cfg.JWTSecret, d.Crypto, cfg.CompanyName)
	employees := employee.NewStore(pool)
	adjustments := adjustment.NewService(adjustment.NewStore(pool))
	payrollStore := payroll.NewStore(pool)
	payrolls := payroll.NewService(payrollStore, d.Files)
	payslips := payroll.NewPayslipService(payrollStore, d.Files, payroll.NewPDFRenderer(), employees, payroll.PayslipOptions{
		Company:  payroll.Company{Name: cfg.CompanyName, Address: cfg.CompanyAddress, Email: cfg.CompanyEmail},
		Currency: cfg.Currency,
		Mailer:   d.Mailer,
	})
	hiring := recruitment.NewService(recruitment.NewStore(pool), cfg.MaxCVBytes)
	dashboards := reports.NewService(adjustments, payrolls, hiring)
	trail := audit.New(pool)

	views := viewshandler.NewRegistry(d.Sessions, d.Confirmations, authService, d.Flash, cfg.SelectionCap)
	adjustmentHandler := adjustmenthandler.NewHandler(adjustments, views, d.Metrics)
	payrollHandler := payrollhandler.NewHandler(payrolls, payslips, employees, views, d.Metrics)
	recruitmentHandler := recruitmenthandler.NewHandler(hiring, views, d.Metrics, cfg.MaxCVBytes)
	authHandler := authhandler.NewHandler(authService, d.Sessions, d.Confirmations)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(d.Metrics))
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes, cfg.MaxCVBytes+recruitmenthandler.MultipartOverhead))
	router.Use(middleware.SensitiveRateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.Auth(authService))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(d.Metrics.Snapshot())
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		authHandler.RegisterPublicRoutes(r)
		recruitmentHandler.RegisterPublicRoutes(r)

		authHandler.RegisterRoutes(r)
		views.RegisterRoutes(r)
		adjustmentHandler.RegisterRoutes(r)
		payrollHandler.RegisterRoutes(r)
		recruitmentHandler.RegisterRoutes(r)
		corehandler.NewHandler(employees, authService).RegisterRoutes(r)
		reportshandler.NewHandler(dashboards, authService).RegisterRoutes(r)
		audithandler.NewHandler(trail, authService, d.Metrics).RegisterRoutes(r)
		notificationshandler.NewHandler(d.Flash).RegisterRoutes(r)
	})

	return router
}
