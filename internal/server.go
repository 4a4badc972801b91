package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cost-control-api/internal/apierr"
	"cost-control-api/internal/auth"
	"cost-control-api/internal/config"
	"cost-control-api/internal/db"
	"cost-control-api/internal/handlers"
	"cost-control-api/internal/response"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/atomic"
)

// Deps are the collaborators a Server is built from.
type Deps struct {
	Store   db.Store
	Ping    func(ctx context.Context) error
	Imports *handlers.ImportsHandler
	Log     *slog.Logger
}

type Server struct {
	Store      db.Store
	Router     *chi.Mux
	JWTManager *auth.JWTManager
	Metrics    *Metrics

	cfg     *config.Config
	log     *slog.Logger
	ping    func(ctx context.Context) error
	imports *handlers.ImportsHandler
	isReady atomic.Bool
	srv     *http.Server
}

func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Store == nil {
		return nil, errors.New("server requires a store")
	}
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTExpiry)
	if err := jwtManager.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("JWT configuration: %w", err)
	}

	s := &Server{
		Store:      deps.Store,
		Router:     chi.NewRouter(),
		JWTManager: jwtManager,
		Metrics:    NewMetrics(),
		cfg:        cfg,
		log:        log,
		ping:       deps.Ping,
		imports:    deps.Imports,
	}
	s.isReady.Store(true)
	if s.imports != nil && s.imports.OnImport == nil {
		s.imports.OnImport = s.Metrics.ObserveImport
	}

	s.Router.Use(response.CORS)
	s.Router.Use(s.requestContext)
	s.Router.Use(s.httpLogger)
	s.Router.Use(middleware.Recoverer)
	if cfg.EnableMetrics {
		s.Router.Use(s.Metrics.Middleware())
	}

	s.Router.NotFound(s.handle(func(http.ResponseWriter, *http.Request) error {
		return apierr.New(apierr.CodeNotFound, "Route not found", http.StatusNotFound, nil)
	}))
	s.Router.MethodNotAllowed(s.handle(func(http.ResponseWriter, *http.Request) error {
		return apierr.MethodNotAllowed()
	}))

	// Public routes
	s.Router.Get("/health", s.handleHealth)
	s.Router.Get("/readyz", s.handleReadiness)
	s.Router.Get("/drain", s.handleDrain)
	s.Router.Get("/undrain", s.handleUndrain)
	s.Router.Get("/dbping", s.handle(s.dbPing))
	if cfg.EnableMetrics {
		s.Router.Get("/metrics", s.Metrics.Handler().ServeHTTP)
	}
	s.mountDocs(s.Router)

	// Everything else needs a verified caller
	s.Router.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(s.JWTManager))
		s.mountProtectedRoutes(r)
	})

	return s, nil
}

func (s *Server) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareSlog(s.log, next)
}

// mountProtectedRoutes mounts all routes that require authentication.
// Reads need any role, writes need ProjectManager, project deletion needs Admin.
func (s *Server) mountProtectedRoutes(r chi.Router) {
	pm := auth.MustRole(auth.RoleProjectManager)
	admin := auth.MustRole(auth.RoleAdmin)

	// Projects
	r.Get("/projects", s.handle(s.listProjects))
	r.With(pm).Post("/projects", s.handle(s.createProject))
	r.With(pm).Put("/projects", s.missingID("Project"))
	r.With(admin).Delete("/projects", s.missingID("Project"))
	r.Get("/projects/{projectId}", s.handle(s.getProject))
	r.With(pm).Put("/projects/{projectId}", s.handle(s.updateProject))
	r.With(admin).Delete("/projects/{projectId}", s.handle(s.deleteProject))
	r.Get("/projects/{projectId}/summary", s.handle(s.getProjectSummary))

	// Budget lines
	r.Get("/projects/{projectId}/budget", s.handle(s.listBudgetLines))
	r.With(pm).Post("/projects/{projectId}/budget", s.handle(s.createBudgetLine))
	r.With(pm).Put("/projects/{projectId}/budget", s.missingID("Budget line"))
	r.With(pm).Delete("/projects/{projectId}/budget", s.missingID("Budget line"))
	r.Get("/projects/{projectId}/budget/{lineId}", s.handle(s.getBudgetLine))
	r.With(pm).Put("/projects/{projectId}/budget/{lineId}", s.handle(s.updateBudgetLine))
	r.With(pm).Delete("/projects/{projectId}/budget/{lineId}", s.handle(s.deleteBudgetLine))

	// Employees
	r.Get("/projects/{projectId}/employees", s.handle(s.listEmployees))
	r.With(pm).Post("/projects/{projectId}/employees", s.handle(s.createEmployee))
	r.With(pm).Put("/projects/{projectId}/employees", s.missingID("Employee"))
	r.With(pm).Delete("/projects/{projectId}/employees", s.missingID("Employee"))
	r.Get("/projects/{projectId}/employees/{id}", s.handle(s.getEmployee))
	r.With(pm).Put("/projects/{projectId}/employees/{id}", s.handle(s.updateEmployee))
	r.With(pm).Delete("/projects/{projectId}/employees/{id}", s.handle(s.deleteEmployee))

	// Time entries
	r.Get("/projects/{projectId}/time-entries", s.handle(s.listTimeEntries))
	r.With(pm).Post("/projects/{projectId}/time-entries", s.handle(s.createTimeEntry))
	r.Get("/time-entries", s.handle(s.listTimeEntries))
	r.With(pm).Post("/time-entries", s.handle(s.createTimeEntry))
	r.With(pm).Put("/time-entries", s.missingID("Time entry"))
	r.With(pm).Delete("/time-entries", s.missingID("Time entry"))
	r.Get("/time-entries/{id}", s.handle(s.getTimeEntry))
	r.With(pm).Put("/time-entries/{id}", s.handle(s.updateTimeEntry))
	r.With(pm).Delete("/time-entries/{id}", s.handle(s.deleteTimeEntry))

	// Actuals
	r.Get("/projects/{projectId}/actuals", s.handle(s.listActuals))
	r.With(pm).Post("/projects/{projectId}/actuals", s.handle(s.upsertActual))
	r.Get("/projects/{projectId}/actuals/{month}", s.handle(s.getMonthActuals))
	r.With(pm).Post("/projects/{projectId}/actuals/{month}", s.handle(s.upsertActual))
	if s.imports != nil {
		r.With(pm).Post("/projects/{projectId}/actuals/import", s.handle(s.imports.UploadActuals))
	}

	// Projections
	r.Get("/projects/{projectId}/projections", s.handle(s.listProjections))
	r.With(pm).Post("/projects/{projectId}/projections", s.handle(s.createProjection))
	r.With(pm).Put("/projects/{projectId}/projections", s.missingID("Projection"))
	r.With(pm).Delete("/projects/{projectId}/projections", s.missingID("Projection"))
	r.Get("/projects/{projectId}/projections/{snapshotId}", s.handle(s.getProjection))
	r.With(pm).Put("/projects/{projectId}/projections/{snapshotId}", s.handle(s.updateProjection))
	r.With(pm).Delete("/projects/{projectId}/projections/{snapshotId}", s.handle(s.deleteProjection))

	// Reference data
	r.Get("/cost-codes", s.handle(s.listCostCodes))
	r.Get("/cost-codes/{id}", s.handle(s.getCostCode))
	r.Get("/labor-rates", s.handle(s.listLaborRates))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, map[string]string{"status": "ok"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	if !s.isReady.Load() {
		response.JSON(w, http.StatusServiceUnavailable, map[string]any{"data": map[string]string{"status": "not ready"}})
		return
	}
	response.OK(w, map[string]string{"status": "ready"})
}

func (s *Server) handleDrain(w http.ResponseWriter, _ *http.Request) {
	if !s.isReady.Swap(false) {
		response.OK(w, map[string]string{"status": "already draining"})
		return
	}
	s.log.Info("Server marked as not ready")
	response.OK(w, map[string]string{"status": "draining"})
}

func (s *Server) handleUndrain(w http.ResponseWriter, _ *http.Request) {
	if s.isReady.Swap(true) {
		response.OK(w, map[string]string{"status": "already ready"})
		return
	}
	s.log.Info("Server marked as ready")
	response.OK(w, map[string]string{"status": "ready"})
}

func (s *Server) dbPing(w http.ResponseWriter, r *http.Request) error {
	if s.ping == nil {
		return apierr.New(apierr.CodeNotFound, "Route not found", http.StatusNotFound, nil)
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.ping(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	response.OK(w, map[string]string{"db": "ok"})
	return nil
}

// Drain marks the server not ready so load balancers stop routing to it.
func (s *Server) Drain() {
	s.isReady.Store(false)
}

func (s *Server) Ready() bool {
	return s.isReady.Load()
}

func (s *Server) RunInBackground() {
	s.srv = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		s.log.Info("Starting HTTP server", "listenAddress", s.cfg.ListenAddr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server failed", "err", err)
		}
	}()
}

// Shutdown drains, waits for the configured drain period and then stops
// accepting requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Drain()
	if s.cfg.DrainDuration > 0 {
		s.log.Info("Draining", "duration", s.cfg.DrainDuration)
		select {
		case <-time.After(s.cfg.DrainDuration):
		case <-ctx.Done():
		}
	}
	if s.srv == nil {
		return nil
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Error("Graceful HTTP server shutdown failed", "err", err)
		return err
	}
	s.log.Info("HTTP server gracefully stopped")
	return nil
}
