package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/serik1987/corefacility/internal/auth"
	"github.com/serik1987/corefacility/internal/config"
	"github.com/serik1987/corefacility/internal/metrics"
	"github.com/serik1987/corefacility/internal/service"
)

// RouterConfig wires the HTTP API together.
type RouterConfig struct {
	Auth     *AuthHandler
	Users    *UserHandler
	Groups   *GroupHandler
	Projects *ProjectHandler
	Journal  *JournalHandler
	Admin    *AdminHandler

	Authenticator auth.Authenticator
	Refresher     auth.Refresher
	AuthConfig    config.AuthConfig

	Audit       *service.AuditService
	AuditConfig config.AuditConfig

	Metrics *metrics.Metrics
	Logger  zerolog.Logger

	// HealthCheck probes the datastore; nil reports healthy unconditionally.
	HealthCheck func(ctx context.Context) error
}

// Router is the HTTP entry point of the server.
type Router struct {
	cfg    RouterConfig
	logger zerolog.Logger
}

// NewRouter creates a router.
func NewRouter(cfg RouterConfig) *Router {
	return &Router{cfg: cfg, logger: cfg.Logger.With().Str("component", "router").Logger()}
}

// metricsMiddleware observes request counts and latency.
func (rt *Router) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rt.cfg.Metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		rt.cfg.Metrics.RequestsTotal.WithLabelValues(r.Method, strconv.Itoa(ww.Status())).Inc()
		rt.cfg.Metrics.RequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

// Handler builds the route tree.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(rt.metricsMiddleware)
	r.Use(auth.Middleware(rt.cfg.Authenticator, rt.cfg.AuthConfig, rt.logger))
	r.Use(auth.Finalizer(rt.cfg.Refresher, rt.cfg.AuthConfig))
	r.Use(AuditMiddleware(rt.cfg.Audit, rt.cfg.AuditConfig.BodyLimit, rt.logger))

	r.Get("/health", rt.handleHealth)
	if rt.cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.cfg.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/login", rt.cfg.Auth.Login)
		r.Post("/activation", rt.cfg.Auth.Activate)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)
			r.Get("/profile", rt.cfg.Auth.Profile)
			r.Post("/logout", rt.cfg.Auth.Logout)
			r.Post("/logout-all", rt.cfg.Auth.LogoutAll)
			r.Post("/refresh", rt.cfg.Auth.Refresh)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(auth.AdminOnly).Post("/", rt.cfg.Users.Create)
			r.With(auth.AdminOnly).Get("/", rt.cfg.Users.List)
			r.Route("/{id}", func(r chi.Router) {
				r.With(auth.AdminOrSelf).Get("/", rt.cfg.Users.Get)
				r.With(auth.AdminOrSelf).Patch("/", rt.cfg.Users.Update)
				r.With(auth.AdminOnly).Delete("/", rt.cfg.Users.Delete)
				r.With(auth.AdminOrSelf).Put("/password", rt.cfg.Users.SetPassword)
				r.With(auth.AdminOnly).Post("/activation-code", rt.cfg.Users.IssueActivation)
			})
		})

		r.Route("/groups", func(r chi.Router) {
			r.Use(auth.RequireAuth, auth.NoSupport)
			r.Post("/", rt.cfg.Groups.Create)
			r.Get("/", rt.cfg.Groups.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", rt.cfg.Groups.Get)
				r.Patch("/", rt.cfg.Groups.Update)
				r.Delete("/", rt.cfg.Groups.Delete)
				r.Get("/members", rt.cfg.Groups.ListMembers)
				r.Post("/members", rt.cfg.Groups.AddMember)
				r.Delete("/members/{userID}", rt.cfg.Groups.RemoveMember)
			})
		})

		r.Route("/projects", func(r chi.Router) {
			r.Use(auth.RequireAuth, auth.NoSupport)
			r.Post("/", rt.cfg.Projects.Create)
			r.Get("/", rt.cfg.Projects.List)
			r.Route("/{alias}", func(r chi.Router) {
				r.Get("/", rt.cfg.Projects.Get)
				r.Patch("/", rt.cfg.Projects.Update)
				r.Delete("/", rt.cfg.Projects.Delete)
				r.Get("/permissions", rt.cfg.Projects.ACL)
				r.Put("/permissions", rt.cfg.Projects.SetPermission)
				r.Delete("/permissions/{groupID}", rt.cfg.Projects.DeletePermission)

				r.Route("/journal", func(r chi.Router) {
					r.Get("/path", rt.cfg.Journal.ResolvePath)
					r.Get("/records", rt.cfg.Journal.Search)
					r.Post("/records", rt.cfg.Journal.CreateRecord)
					r.Get("/hashtags", rt.cfg.Journal.ListHashtags)
				})
			})
		})

		r.Route("/journal/records/{id}", func(r chi.Router) {
			r.Use(auth.RequireAuth, auth.NoSupport)
			r.Get("/", rt.cfg.Journal.GetRecord)
			r.Patch("/", rt.cfg.Journal.UpdateRecord)
			r.Delete("/", rt.cfg.Journal.DeleteRecord)
			r.Put("/checked", rt.cfg.Journal.SetChecked)
			r.Put("/values/{identifier}", rt.cfg.Journal.SetCustomValue)
			r.Delete("/values/{identifier}", rt.cfg.Journal.DeleteCustomValue)
			r.Post("/hashtags", rt.cfg.Journal.AttachHashtag)
			r.Delete("/hashtags/{description}", rt.cfg.Journal.DetachHashtag)
			r.Get("/descriptors", rt.cfg.Journal.ListDescriptors)
			r.Post("/descriptors", rt.cfg.Journal.CreateDescriptor)
			r.Delete("/descriptors/{descriptorID}", rt.cfg.Journal.DeleteDescriptor)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.AdminOnly)
			r.Get("/queue", rt.cfg.Admin.ListQueue)
			r.Get("/queue/{id}", rt.cfg.Admin.GetQueued)
			r.Post("/queue/{id}/confirm", rt.cfg.Admin.ConfirmQueued)
			r.Delete("/queue/{id}", rt.cfg.Admin.PurgeQueued)
			r.Get("/logs", rt.cfg.Admin.ListAuditLog)
			r.Get("/logs/{id}", rt.cfg.Admin.GetAuditRow)
		})
	})

	return r
}

// handleHealth reports process and datastore liveness.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.HealthCheck != nil {
		if err := rt.cfg.HealthCheck(r.Context()); err != nil {
			rt.logger.Error().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
