// Package web serves the import engine over HTTP: JSON and multipart
// imports, template and export downloads, container management and the
// dictionary listing.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/entityregistry/internal/config"
	"github.com/JonMunkholm/entityregistry/internal/core"
	mw "github.com/JonMunkholm/entityregistry/internal/web/middleware"
)

// Server is the HTTP front of the registry.
type Server struct {
	cfg      *config.Config
	store    core.Store
	importer *core.Importer
	validate *validator.Validate
	router   *chi.Mux
	server   *http.Server
}

// NewServer wires routes and middleware around store and importer.
func NewServer(cfg *config.Config, store core.Store, importer *core.Importer) *Server {
	s := &Server{
		cfg:      cfg,
		store:    store,
		importer: importer,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(mw.SecurityHeaders(s.cfg.Security.EnableCSP))
	if s.cfg.Rate.Enabled {
		s.router.Use(mw.NewRateLimiter(s.cfg.Rate.RequestsPerMinute).Middleware)
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(s.cfg.Security.RequireAPIKey, s.cfg.Security.APIKeys))

		// Imports get their own, tighter budget.
		r.Group(func(r chi.Router) {
			if s.cfg.Rate.Enabled {
				r.Use(mw.NewRateLimiter(s.cfg.Rate.ImportLimit).Middleware)
			}
			r.Post("/import", s.handleImport)
			r.Post("/import/upload", s.handleUpload)
		})

		r.Get("/template/{kind}", s.handleTemplate)
		r.Get("/export/{kind}", s.handleExport)
		r.Get("/dictionaries", s.handleDictionaries)

		r.Post("/entity-files", s.handleCreateEntityFile)
		r.Post("/folders", s.handleCreateFolder)
		r.Post("/incident-files", s.handleCreateIncidentFile)
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}
	slog.Info("starting server", "addr", sc.Addr())
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the handler tree, for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
