// Package main is the entry point for the back-office API server.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ceylongems/backoffice/internal/config"
	"github.com/ceylongems/backoffice/internal/database"
	"github.com/ceylongems/backoffice/internal/gateway"
	"github.com/ceylongems/backoffice/internal/handler"
	"github.com/ceylongems/backoffice/internal/identity"
	"github.com/ceylongems/backoffice/internal/middleware"
	"github.com/ceylongems/backoffice/internal/repository"
	"github.com/ceylongems/backoffice/internal/service"
	"github.com/ceylongems/backoffice/internal/session"
)

func main() {
	// Setup structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Info("Starting back-office API",
		slog.String("environment", cfg.Server.Environment),
		slog.Int("port", cfg.Server.Port),
	)

	// Connect to PostgreSQL
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	// Run migrations
	if err := db.RunMigrations(cfg.Database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Database migrations completed")

	// Connect to Redis
	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()
	logger.Info("Connected to Redis")

	// Explicitly constructed services, injected where needed. No
	// package-level singletons.
	provider := identity.NewClient(cfg.Identity)
	policy := session.NewCookiePolicy(cfg.Server.IsProduction(), cfg.Session.Timeout)

	profileRepo := repository.NewProfileRepository(db.Pool())
	auditRepo := repository.NewAuditRepository(db.Pool())
	paymentRepo := repository.NewPaymentRepository(db.Pool())

	auditRecorder := service.NewAuditRecorder(auditRepo, logger)
	authService := service.NewAuthService(provider, profileRepo, logger)
	paymentService := service.NewPaymentService(paymentRepo, gateway.NewSigner(cfg.Payment), auditRecorder, logger)

	authHandler := handler.NewAuthHandler(authService, auditRecorder, policy, logger)
	paymentHandler := handler.NewPaymentHandler(paymentService, logger)
	profileHandler := handler.NewProfileHandler(profileRepo, auditRecorder, logger)
	auditHandler := handler.NewAuditHandler(auditRecorder, logger)
	dashboardHandler := handler.NewDashboardHandler(paymentRepo, profileRepo, logger)

	// Setup router
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics())
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Server.AdminOrigin))
	r.Use(chimiddleware.Timeout(30 * time.Second))

	// Health check and metrics endpoints (no auth required)
	r.Get("/health", healthHandler(db, rdb))
	r.Handle("/metrics", promhttp.Handler())

	// Storefront API: guest checkout allowed, identity attached when
	// resolvable, gateway webhook unauthenticated (signature-verified).
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(rdb, middleware.DefaultRateLimitConfig()))
		r.With(middleware.OptionalIdentity(provider)).Post("/checkout", paymentHandler.CreateIntent)
		r.Post("/payments/notify", paymentHandler.Notify)
	})

	// Administrative routes: every request passes the access gate.
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Gate(middleware.GateConfig{
			SessionTimeout:     cfg.Session.Timeout,
			LoginPath:          cfg.Session.LoginPath,
			ForbiddenPath:      cfg.Session.ForbiddenPath,
			PublicPaths:        []string{cfg.Session.LoginPath, cfg.Session.ForbiddenPath},
			SuperAdminPrefixes: []string{"/admin/settings"},
		}, provider, profileRepo, policy, logger))

		r.With(middleware.RateLimit(rdb, middleware.LoginRateLimitConfig())).
			Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)

		r.Mount("/dashboard", dashboardHandler.Routes())
		r.Mount("/users", profileHandler.Routes())
		r.Mount("/settings", profileHandler.SettingsRoutes())
		r.Mount("/payments", paymentHandler.AdminRoutes())
		r.Mount("/audit", auditHandler.Routes())
	})

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	logger.Info("Server stopped")
}

func healthHandler(db *database.Postgres, rdb *database.Redis) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := "ok"
		code := http.StatusOK
		if err := db.Ping(ctx); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		} else if err := rdb.Ping(ctx); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		fmt.Fprintf(w, `{"status":%q}`, status)
	}
}
