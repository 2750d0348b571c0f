// Package server wires the dependency graph and owns the HTTP lifecycle:
// router, middleware, routes, graceful shutdown. main.go stays minimal and
// everything here is constructed once at startup — the store handle is opened
// here, injected downward, and closed when the server stops.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mmmykhailo/timecracker-api/internal/auth"
	"github.com/mmmykhailo/timecracker-api/internal/config"
	"github.com/mmmykhailo/timecracker-api/internal/handler"
	"github.com/mmmykhailo/timecracker-api/internal/middleware"
	sqliteRepo "github.com/mmmykhailo/timecracker-api/internal/repository/sqlite"
	"github.com/mmmykhailo/timecracker-api/internal/service"
)

// Server bundles the router with the resources it owns. The database handle
// is acquired in New and released during Start's shutdown path; it is never
// re-initialized mid-request.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New builds the full dependency chain: store, token/password services,
// GitHub provider, domain services, handlers, routes.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	tokens, err := auth.NewTokenService(s.config.JWTAccessSecret, s.config.JWTRefreshSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()
	github := auth.NewGitHubProvider(
		s.config.GitHubClientID,
		s.config.GitHubClientSecret,
		s.config.GitHubCallbackURL,
	)

	authService := service.NewAuthService(s.db, s.db, tokens, passwords, github, s.logger)
	reportService := service.NewReportService(s.db, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	reportHandler := handler.NewReportHandler(reportService, s.logger)

	requireAuth := auth.RequireAuth(tokens)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/refresh", authHandler.HandleRefresh)
		r.Get("/github", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/logout", authHandler.HandleLogout)
			r.Get("/profile", authHandler.HandleProfile)
		})
	})

	s.router.Route("/reports", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/", reportHandler.HandleList)
		r.Post("/", reportHandler.HandleCreate)
		r.Get("/daily-durations", reportHandler.HandleDailyDurations)
		r.Get("/date/{date}", reportHandler.HandleGetByDate)
		r.Put("/date/{date}", reportHandler.HandleUpsertByDate)
		r.Patch("/{id}", reportHandler.HandleUpdateByID)
		r.Put("/{id}", reportHandler.HandleUpdateByID)
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then drains in-flight
// requests for up to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
