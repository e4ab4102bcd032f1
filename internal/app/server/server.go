package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"hrdesk/internal/domain/listing"
	"hrdesk/internal/domain/notifications"
	"hrdesk/internal/platform/config"
	cryptoutil "hrdesk/internal/platform/crypto"
	"hrdesk/internal/platform/db"
	"hrdesk/internal/platform/email"
	"hrdesk/internal/platform/jobs"
	"hrdesk/internal/platform/logging"
	"hrdesk/internal/platform/metrics"
	"hrdesk/internal/platform/storage"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	Config config.Config
	DB     *pgxpool.Pool
	Router http.Handler
	Jobs   *jobs.Service
}

// New connects to the database, prepares the schema and builds the router.
// The caller owns the returned App and must Close it.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	crypto, err := cryptoutil.New(cfg.DataEncryptionKey)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("encryption key: %w", err)
	}
	if !crypto.Configured() {
		slog.Warn("DATA_ENCRYPTION_KEY not set; payslips are stored unencrypted and MFA is unavailable")
	}
	files, err := storage.New(ctx, cfg, crypto)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: %w", err)
	}
	mailer := email.New(cfg)
	if !mailer.Enabled() {
		slog.Info("email delivery disabled")
	}

	collector := metrics.New()
	sessions := listing.NewSessions(cfg.ViewSessionTTL)
	confirmations := listing.NewConfirmations(cfg.ConfirmationTTL)
	flash := notifications.New(notifications.NewStore(pool), cfg.FlashTTL)

	router := NewRouter(Deps{
		Config:        cfg,
		DB:            pool,
		Crypto:        crypto,
		Files:         files,
		Mailer:        mailer,
		Metrics:       collector,
		Sessions:      sessions,
		Confirmations: confirmations,
		Flash:         flash,
	})

	sweeper := jobs.New(collector)
	registerSweepers(sweeper, cfg.SweepInterval, sessions, confirmations, flash)

	return &App{Config: cfg, DB: pool, Router: router, Jobs: sweeper}, nil
}

func registerSweepers(s *jobs.Service, every time.Duration, sessions *listing.Sessions, confirmations *listing.Confirmations, flash *notifications.Service) {
	s.Register(jobs.Task{
		Name:     "sweep_view_sessions",
		Interval: every,
		Run: func(context.Context) (int, error) {
			return sessions.Sweep(), nil
		},
	})
	s.Register(jobs.Task{
		Name:     "sweep_confirmations",
		Interval: every,
		Run: func(context.Context) (int, error) {
			return confirmations.Sweep(), nil
		},
	})
	s.Register(jobs.Task{
		Name:     "purge_flash_messages",
		Interval: every,
		Run:      flash.Purge,
	})
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}

// Run is the process entry point: it serves until SIGINT or SIGTERM and then
// drains in-flight requests.
func Run() {
	cfg := config.Load()
	logging.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer app.Close()

	app.Jobs.Start(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("hrdesk listening", "addr", cfg.Addr, "env", cfg.Environment)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "err", err)
			app.Close()
			os.Exit(1)
		}
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("graceful shutdown failed", "err", err)
	}
}
