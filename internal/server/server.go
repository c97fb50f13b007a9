// Package server provides the HTTP server setup and wiring.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pendergraft/delegation-deployments/internal/auth"
	"github.com/pendergraft/delegation-deployments/internal/chains"
	"github.com/pendergraft/delegation-deployments/internal/config"
	deploymentsDomain "github.com/pendergraft/delegation-deployments/internal/deployments/domain"
	deploymentsTransport "github.com/pendergraft/delegation-deployments/internal/deployments/transport"
	"github.com/pendergraft/delegation-deployments/internal/middleware/logging"
	"github.com/pendergraft/delegation-deployments/internal/middleware/ratelimit"
	"github.com/pendergraft/delegation-deployments/internal/middleware/realip"
	"github.com/pendergraft/delegation-deployments/internal/middleware/security"
	"github.com/pendergraft/delegation-deployments/internal/observability/metrics"
	"github.com/pendergraft/delegation-deployments/internal/registry"
	runsDomain "github.com/pendergraft/delegation-deployments/internal/runs/domain"
	runsTransport "github.com/pendergraft/delegation-deployments/internal/runs/transport"
	"github.com/pendergraft/delegation-deployments/internal/storage"
)

// Deps are the collaborators the server is wired from.
type Deps struct {
	Store     storage.Store
	Registry  *registry.Registry
	Catalog   *chains.Catalog
	Overrides chains.Overrides
	Validator runsDomain.Validator
}

// Server is the HTTP server
type Server struct {
	cfg    *config.Config
	store  storage.Store
	logger *slog.Logger
	router *chi.Mux

	deploymentsSvc deploymentsDomain.Service
	runsSvc        runsDomain.Service
}

// New creates a new server
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		store:  deps.Store,
		logger: logger,
		router: chi.NewRouter(),
	}

	opts := []runsDomain.Option{runsDomain.WithLogger(logger)}
	if cfg.Cache.Enabled {
		opts = append(opts, runsDomain.WithCache(cfg.Cache.TTL))
	}
	runsImpl := runsDomain.NewService(deps.Validator, deps.Store, opts...)

	s.runsSvc = runsDomain.LoggingMiddleware(logger)(runsImpl)
	s.deploymentsSvc = deploymentsDomain.NewService(deps.Registry, deps.Catalog, deps.Overrides)

	if err := s.setupMiddleware(); err != nil {
		return nil, err
	}
	s.setupRoutes()

	return s, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// MetricsHandler returns the metrics HTTP handler for separate metrics server
func (s *Server) MetricsHandler() http.Handler {
	return metrics.Handler()
}

// Runs returns the runs service, for the scheduler.
func (s *Server) Runs() runsDomain.Service {
	return s.runsSvc
}

func (s *Server) setupMiddleware() error {
	clientIP, err := realip.Middleware(s.cfg.Proxy)
	if err != nil {
		return err
	}

	// Client IP first; rate limiting and logging read it.
	s.router.Use(middleware.RequestID)
	s.router.Use(clientIP)
	s.router.Use(security.Headers)
	s.router.Use(security.MaxBodySize(s.cfg.Server.MaxBodyKB))
	s.router.Use(ratelimit.Middleware(s.cfg.RateLimit))
	s.router.Use(logging.Middleware(s.logger))
	if metrics.Enabled() {
		s.router.Use(metrics.Middleware)
	}
	s.router.Use(middleware.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(time.Duration(s.cfg.Server.RequestTimeout) * time.Second))
	}
	s.router.Use(cors)
	return nil
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)

	deploymentsHandler := deploymentsTransport.NewHandler(s.deploymentsSvc)
	runsHandler := runsTransport.NewHandler(s.runsSvc)

	requireAuth := passthrough
	if s.cfg.Auth.APIKey != "" {
		requireAuth = auth.Middleware(auth.NewStaticKey(s.cfg.Auth.APIKey), writeError)
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/versions", deploymentsHandler.RegisterVersionRoutes)
		r.Route("/chains", deploymentsHandler.RegisterChainRoutes)

		r.Route("/runs", func(r chi.Router) {
			runsHandler.RegisterReadRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				runsHandler.RegisterWriteRoutes(r)
			})
		})

		r.With(requireAuth).Get("/auth/whoami", s.handleWhoAmI)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports whether run history storage is reachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		status := "unavailable"
		if errors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
		}
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": status})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleWhoAmI echoes the caller's key id. With auth disabled it succeeds
// for anyone.
func (s *Server) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"authRequired": s.cfg.Auth.APIKey != ""}
	if p := auth.PrincipalFromContext(r.Context()); p != nil {
		resp["keyId"] = p.KeyID
	}
	writeJSON(w, http.StatusOK, resp)
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
