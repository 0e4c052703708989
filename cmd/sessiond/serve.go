package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/httpapi"
	"github.com/MrEthical07/goSession/mail"
	promexport "github.com/MrEthical07/goSession/metrics/export/prometheus"
)

type serveOptions struct {
	Addr           string
	Backend        backendOptions
	JWTSecret      string
	LookupKey      string
	BaseURL        string
	InsecureCookie bool
	PreserveDevice bool
	RateLimit      bool
	Metrics        bool
	Audit          bool
	TrustProxy     bool
	LogFormat      string
	LogLevel       string
	SMTP           mail.Config
	ShutdownGrace  time.Duration
}

func serveCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Run the session HTTP server.

Secrets are read from flags or, preferably, the environment:
  SESSIOND_JWT_SECRET   access token signing key (at least 32 bytes)
  SESSIOND_LOOKUP_KEY   refresh/verification lookup key (at least 32 bytes)
  SESSIOND_DSN          database DSN for the sqlite and postgres backends

Without --smtp-addr, verification emails are logged instead of sent.

Examples:
  sessiond serve --backend=memory
  sessiond serve --backend=postgres --auto-migrate --redis-addr=localhost:6379`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Addr, "addr", ":8080", "Listen address")
	f.StringVar(&opts.Backend.Kind, "backend", "memory", "Store backend: memory, sqlite, postgres, redis")
	f.StringVar(&opts.Backend.DSN, "dsn", envOr("SESSIOND_DSN", ""), "Database DSN (env SESSIOND_DSN)")
	f.StringVar(&opts.Backend.RedisAddr, "redis-addr", envOr("SESSIOND_REDIS_ADDR", ""), "Redis address for the redis backend and rate limits")
	f.StringVar(&opts.Backend.RedisPrefix, "redis-prefix", "", "Key prefix for the redis backend")
	f.BoolVar(&opts.Backend.AutoMigrate, "auto-migrate", false, "Apply SQL migrations on start")
	f.StringVar(&opts.JWTSecret, "jwt-secret", envOr("SESSIOND_JWT_SECRET", ""), "Access token signing key (env SESSIOND_JWT_SECRET)")
	f.StringVar(&opts.LookupKey, "lookup-key", envOr("SESSIOND_LOOKUP_KEY", ""), "Token lookup key (env SESSIOND_LOOKUP_KEY)")
	f.StringVar(&opts.BaseURL, "base-url", "http://localhost:8080", "Public base URL used in verification links")
	f.BoolVar(&opts.InsecureCookie, "insecure-cookies", false, "Drop the Secure attribute from cookies (local HTTP only)")
	f.BoolVar(&opts.PreserveDevice, "preserve-device", false, "Keep the first login's user agent and IP across refreshes")
	f.BoolVar(&opts.RateLimit, "rate-limit", true, "Throttle logins and verification mail (needs --redis-addr)")
	f.BoolVar(&opts.Metrics, "metrics", true, "Serve Prometheus metrics at /metrics")
	f.BoolVar(&opts.Audit, "audit", false, "Log audit events")
	f.BoolVar(&opts.TrustProxy, "trust-proxy", false, "Take client IPs from X-Forwarded-For / X-Real-IP")
	f.StringVar(&opts.LogFormat, "log-format", "json", "Log format: json or text")
	f.StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	f.StringVar(&opts.SMTP.Addr, "smtp-addr", envOr("SESSIOND_SMTP_ADDR", ""), "SMTP relay host:port")
	f.StringVar(&opts.SMTP.Username, "smtp-user", envOr("SESSIOND_SMTP_USER", ""), "SMTP username")
	f.StringVar(&opts.SMTP.Password, "smtp-password", envOr("SESSIOND_SMTP_PASSWORD", ""), "SMTP password (env SESSIOND_SMTP_PASSWORD)")
	f.StringVar(&opts.SMTP.From, "smtp-from", envOr("SESSIOND_SMTP_FROM", ""), "Sender address")
	f.DurationVar(&opts.ShutdownGrace, "shutdown-grace", 10*time.Second, "Time allowed for in-flight requests on shutdown")

	return cmd
}

func runServe(parent context.Context, opts serveOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := newLogger(opts.LogFormat, opts.LogLevel)
	if err != nil {
		return err
	}

	be, err := openBackend(ctx, opts.Backend, logger)
	if err != nil {
		return err
	}
	defer be.close()

	engine, err := buildEngine(opts, be, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	routerOpts := httpapi.Options{
		Logger:     logger,
		TrustProxy: opts.TrustProxy,
		Health:     be.health,
	}
	if opts.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			promexport.NewCollector(engine),
		)
		routerOpts.Registerer = reg
		routerOpts.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           httpapi.NewRouter(engine, routerOpts),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", opts.Addr, "backend", opts.Backend.Kind, "version", version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func buildEngine(opts serveOptions, be *backend, logger *slog.Logger) (*goSession.Engine, error) {
	cfg := goSession.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(opts.JWTSecret)
	cfg.Tokens.LookupKey = []byte(opts.LookupKey)
	cfg.Tokens.PreserveDeviceMetadata = opts.PreserveDevice
	cfg.Cookie.Secure = !opts.InsecureCookie
	cfg.Verification.BaseURL = opts.BaseURL
	cfg.RateLimit.Enabled = opts.RateLimit
	cfg.Audit.Enabled = opts.Audit
	cfg.Metrics.Enabled = opts.Metrics
	cfg.Metrics.EnableLatencyHistograms = opts.Metrics

	var mailer goSession.Mailer = mail.LogMailer{Logger: logger}
	if opts.SMTP.Addr != "" {
		smtpMailer, err := mail.NewSMTP(opts.SMTP)
		if err != nil {
			return nil, err
		}
		mailer = smtpMailer
	}

	b := goSession.New().
		WithConfig(cfg).
		WithStore(be.store).
		WithMailer(mailer).
		WithLogger(logger)
	if be.redis != nil {
		b = b.WithRedis(be.redis)
	} else if opts.RateLimit {
		logger.Warn("rate limiting disabled: no --redis-addr")
	}
	if opts.Audit {
		b = b.WithAuditSink(goSession.NewSlogSink(logger))
	}

	return b.Build()
}
