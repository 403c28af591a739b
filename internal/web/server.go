package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/justestif/albumrank/internal/metrics"
)

// DefaultAddr is the default server address.
const DefaultAddr = "127.0.0.1:8080"

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

func (c *ServerConfig) defaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 15 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// Server is the HTTP server for the API.
type Server struct {
	cfg      ServerConfig
	router   chi.Router
	server   *http.Server
	handlers *Handlers
	auth     *Authenticator
	artwork  http.Handler
	gatherer prometheus.Gatherer
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics exposes g on /metrics and records request metrics in m.
func WithMetrics(g prometheus.Gatherer, m *metrics.Metrics) Option {
	return func(s *Server) {
		s.gatherer = g
		s.metrics = m
	}
}

// WithArtworkHandler serves locally stored artwork under /artwork/.
func WithArtworkHandler(h http.Handler) Option {
	return func(s *Server) {
		s.artwork = h
	}
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, svc Services, auth *Authenticator, opts ...Option) *Server {
	cfg.defaults()

	s := &Server{
		cfg:    cfg,
		router: chi.NewRouter(),
		auth:   auth,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("web")
	s.handlers = NewHandlers(svc, s.logger)

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(accessLog(s.logger))
	s.router.Use(instrument(s.metrics))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

// setupRoutes configures routes for the application.
func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.Get("/healthz", h.Health)
	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	if s.artwork != nil {
		s.router.Handle("/artwork/*", http.StripPrefix("/artwork/", s.artwork))
	}
	s.router.Get("/public/{slug}", h.PublicList)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.auth.Middleware)

		r.Route("/lists", func(r chi.Router) {
			r.Get("/", h.ListLists)
			r.Post("/", h.CreateList)
			r.Post("/ensure", h.EnsureLists)

			r.Route("/{listID}", func(r chi.Router) {
				r.Patch("/", h.RenameList)
				r.Delete("/", h.DeleteList)

				r.Get("/items", h.ListItems)
				r.Post("/items", h.AddItem)
				r.Delete("/items/{albumID}", h.RemoveItem)
				r.Put("/order", h.Reorder)

				r.Post("/comparisons", h.SubmitComparison)
				r.Get("/comparisons", h.ComparisonHistory)
				r.Get("/pair", h.SuggestPair)
				r.Get("/standings", h.Standings)
				r.Get("/tiers", h.Tiers)

				r.Post("/share", h.Publish)
				r.Delete("/share", h.Unpublish)
			})
		})

		r.Get("/catalog/search", h.SearchCatalog)

		r.Route("/albums", func(r chi.Router) {
			r.Post("/ingest", h.IngestAlbum)
			r.Post("/manual", h.CreateManualAlbum)

			r.Route("/{albumID}", func(r chi.Router) {
				r.Get("/", h.AlbumDetail)
				r.Patch("/", h.UpdateAlbum)
				r.Post("/artwork", h.RefetchArtwork)
				r.Get("/memberships", h.AlbumMemberships)
			})
		})
	})
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and shuts it down gracefully when ctx is done or an
// interrupt signal arrives.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}
