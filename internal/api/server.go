package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sealdoc/sealdoc/internal/acquire"
	"github.com/sealdoc/sealdoc/internal/config"
	"github.com/sealdoc/sealdoc/internal/metrics"
	"github.com/sealdoc/sealdoc/internal/ratelimit"
	"github.com/sealdoc/sealdoc/internal/repository"
	"github.com/sealdoc/sealdoc/internal/service"
	sdtls "github.com/sealdoc/sealdoc/internal/tls"
)

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	templates  *service.TemplateService
	acquirer   *acquire.Acquirer
	apiKeys    *repository.APIKeyRepository
	limiter    *ratelimit.Limiter
	config     *config.Config
	logger     *slog.Logger
	startTime  time.Time
}

// NewServer creates a new API server. limiter may be nil to disable
// rate limiting.
func NewServer(templates *service.TemplateService, acquirer *acquire.Acquirer, apiKeys *repository.APIKeyRepository, limiter *ratelimit.Limiter, cfg *config.Config, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		templates: templates,
		acquirer:  acquirer,
		apiKeys:   apiKeys,
		limiter:   limiter,
		config:    cfg,
		logger:    logger,
		startTime: time.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(metrics.HTTPMiddleware)
	s.router.Use(chimw.Recoverer)

	// Health check (no auth required)
	s.router.Get("/health", s.handleHealth)

	if s.config.Metrics.Enabled {
		if m := metrics.Global(); m != nil {
			s.router.Handle(s.config.Metrics.Path, promhttp.HandlerFor(
				m.Registry(),
				promhttp.HandlerOpts{EnableOpenMetrics: true},
			))
		}
	}

	// API v1 routes (auth required)
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Use(s.rateLimitMiddleware)

		r.Get("/templates", s.handleListTemplates)
		r.Post("/templates", s.handleCreateTemplate)
		r.Get("/templates/{id}", s.handleGetTemplate)
		r.Put("/templates/{id}", s.handleUpdateTemplate)
		r.Patch("/templates/{id}", s.handleUpdateTemplate)
		r.Delete("/templates/{id}", s.handleDeleteTemplate)
	})
}

// Handler returns the root HTTP handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:         s.config.Server.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	tlsCfg := s.config.Server.TLS
	if !tlsCfg.Enabled {
		s.logger.Info("starting HTTP API server", "addr", s.config.Server.ListenAddr)
		return s.httpServer.ListenAndServe()
	}

	if tlsCfg.ACME.Enabled {
		manager := sdtls.NewACMEManager(tlsCfg.ACME.Email, tlsCfg.ACME.Domains, tlsCfg.ACME.CacheDir)
		s.httpServer.TLSConfig = manager.TLSConfig()

		// Challenge listener; redirects everything else to HTTPS.
		go func() {
			if err := http.ListenAndServe(":80", manager.HTTPHandler(nil)); err != nil {
				s.logger.Error("ACME challenge server failed", "error", err)
			}
		}()

		s.logger.Info("starting HTTPS API server with ACME", "addr", s.config.Server.ListenAddr, "domains", tlsCfg.ACME.Domains)
		return s.httpServer.ListenAndServeTLS("", "")
	}

	cert, err := sdtls.LoadCertificate(tlsCfg.CertFile, tlsCfg.KeyFile)
	if err != nil {
		return err
	}
	s.httpServer.TLSConfig = cert

	s.logger.Info("starting HTTPS API server", "addr", s.config.Server.ListenAddr)
	return s.httpServer.ListenAndServeTLS("", "")
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
