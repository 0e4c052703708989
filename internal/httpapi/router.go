package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/MrEthical07/goSession/permission"
)

// Options configures the router. Zero values are usable.
type Options struct {
	Logger *slog.Logger
	// Metrics, when set, is served at GET /metrics.
	Metrics http.Handler
	// Registerer, when set, receives per-route HTTP metrics.
	Registerer prometheus.Registerer
	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP.
	TrustProxy bool
	// Health reports backend readiness for GET /healthz.
	Health func(ctx context.Context) error
}

type handlers struct {
	engine *goSession.Engine
	logger *slog.Logger
	health func(ctx context.Context) error
}

// NewRouter wires every route onto a chi router.
func NewRouter(engine *goSession.Engine, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &handlers{engine: engine, logger: logger, health: opts.Health}

	r := chi.NewRouter()
	if opts.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(logger))
	if opts.Registerer != nil {
		r.Use(middleware.RequestMetrics(opts.Registerer, "sessiond"))
	}

	r.Get("/healthz", h.healthz)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(engine))

		r.Post("/auth/register", h.register)
		r.Post("/auth/login", h.login)
		r.Post("/auth/logout", h.logout)
		r.Get("/auth/verify", h.verify)
		r.With(middleware.RequireLevel(permission.Unverified, permission.Unverified)).
			Post("/auth/verify/resend", h.resendVerification)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAtLeast(permission.Unverified))
			r.Get("/account", h.account)
			r.Post("/account/email", h.changeEmail)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAtLeast(permission.User))
			r.Post("/account/password", h.changePassword)
			r.Post("/account/username", h.changeUsername)
		})

		r.With(middleware.RequireAtLeast(permission.Admin)).Get("/admin/ping", h.adminPing)
	})

	return r
}
