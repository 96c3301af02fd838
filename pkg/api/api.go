package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"meridian-hq/meridian/pkg/audit"
	"meridian-hq/meridian/pkg/audit/recorder"
	"meridian-hq/meridian/pkg/config"
	"meridian-hq/meridian/pkg/efficacy"
	"meridian-hq/meridian/pkg/engine"
	"meridian-hq/meridian/pkg/store"
	"meridian-hq/meridian/pkg/telemetry/health"
	"meridian-hq/meridian/pkg/telemetry/logging"
	"meridian-hq/meridian/pkg/telemetry/metrics"
	"meridian-hq/meridian/pkg/workflow"
)

// Dependencies carries everything the API serves.
type Dependencies struct {
	Engine    *engine.Engine
	Workflow  *workflow.Service
	Versions  store.Store
	Auditor   *recorder.Recorder
	Trail     audit.Storage
	Labels    efficacy.LabelStore
	Scheduler *efficacy.Scheduler
	Checker   *health.Checker
	Metrics   *metrics.Collector
	Config    *config.Config
	Logger    *slog.Logger
}

// API is the HTTP surface of Meridian.
type API struct {
	deps   Dependencies
	logger *slog.Logger
}

// New creates the API. Logger and Checker fall back to defaults when nil;
// everything else is required by the routes that use it.
func New(deps Dependencies) *API {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Checker == nil {
		deps.Checker = health.New(0)
	}
	return &API{
		deps:   deps,
		logger: logger.With("component", "api"),
	}
}

// Router builds the chi router with all routes and middleware mounted.
func (a *API) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/healthz", a.handleLiveness)
	r.Get("/readyz", a.handleReadiness)

	if a.deps.Metrics != nil && a.deps.Config != nil && a.deps.Config.Telemetry.Metrics.Enabled {
		r.Handle(a.deps.Config.Telemetry.Metrics.Path, a.deps.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/evaluate", a.handleEvaluate)

		r.Route("/changes", func(r chi.Router) {
			r.Post("/", a.handleSubmitChange)
			r.Get("/", a.handleListChanges)
			r.Get("/{id}", a.handleGetChange)
			r.Post("/{id}/approve", a.handleApproveChange)
			r.Post("/{id}/reject", a.handleRejectChange)
		})

		r.Route("/entities/{entityType}/{entityID}", func(r chi.Router) {
			r.Get("/versions", a.handleListVersions)
			r.Get("/versions/{version}", a.handleGetVersion)
			r.Get("/deployments", a.handleListDeployments)
			r.Post("/deploy", a.handleDeploy)
		})

		r.Route("/audit", func(r chi.Router) {
			r.Get("/", a.handleQueryAudit)
			r.Get("/verify", a.handleVerifyAudit)
		})

		r.Get("/efficacy/{rulesetID}", a.handleEfficacyReport)
		r.Post("/labels", a.handleSubmitLabel)
	})

	return r
}

// requestLogger logs one line per request and threads the request ID into
// the context so downstream log records carry it.
func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logging.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		if user := currentUser(r); user.ID != "" {
			ctx = logging.WithUserID(ctx, user.ID)
		}
		r = r.WithContext(ctx)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		a.logger.InfoContext(ctx, "request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
		)
	})
}

// currentUser reads the acting user from gateway-injected headers.
func currentUser(r *http.Request) workflow.User {
	return workflow.User{
		ID:       r.Header.Get("X-User-ID"),
		Username: r.Header.Get("X-Username"),
		Role:     workflow.Role(r.Header.Get("X-User-Role")),
	}
}

func (a *API) handleLiveness(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, a.deps.Checker.Liveness(r.Context()))
}

func (a *API) handleReadiness(w http.ResponseWriter, r *http.Request) {
	status := a.deps.Checker.Readiness(r.Context())
	if status.Status != "ready" {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, status)
}
