package goSession

import (
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/secret"
	"github.com/MrEthical07/goSession/tokenstore"
)

// dummyPassword is hashed once at Build so that Authenticate spends the
// same Argon2 work on unknown emails as on wrong passwords.
const dummyPassword = "goSession-timing-equalizer"

// Builder assembles an Engine. A Builder can be used for one Build only.
type Builder struct {
	config    Config
	store     Store
	mailer    Mailer
	redis     redis.UniversalClient
	logger    *slog.Logger
	auditSink AuditSink
	clock     func() time.Time

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration. The builder keeps its own copy.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the persistence backend. Required.
func (b *Builder) WithStore(s Store) *Builder {
	b.store = s
	return b
}

// WithMailer sets the verification mail transport. Without one,
// SendVerificationEmail returns ErrEngineNotReady.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithRedis enables the login and verification throttles.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the engine logger. Defaults to discarding output.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets where audit events go when Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the per-operation latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock overrides the engine's time source. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.store == nil {
		return nil, errors.New("store required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := b.clock
	if now == nil {
		now = time.Now
	}

	// -------- HASHERS --------
	passwords, err := password.NewArgon2(cfg.Password.hasherConfig())
	if err != nil {
		return nil, err
	}
	tokenHashCfg := cfg.Password.hasherConfig()
	tokenHashCfg.MinLength = 0
	tokenHasher, err := password.NewArgon2(tokenHashCfg)
	if err != nil {
		return nil, err
	}
	dummyHash, err := passwords.Hash(dummyPassword)
	if err != nil {
		return nil, err
	}

	// -------- TOKENS --------
	codec, err := secret.NewCodec(cfg.Tokens.LookupKey, tokenHasher)
	if err != nil {
		return nil, err
	}
	tokens := tokenstore.New(b.store, codec)
	tokens.SetClock(now)

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cfg.JWT.VerifyKeys,
	})
	if err != nil {
		return nil, err
	}
	jm.SetClock(now)

	engine := &Engine{
		config:     cfg,
		store:      b.store,
		mailer:     b.mailer,
		logger:     logger,
		passwords:  passwords,
		tokens:     tokens,
		jwtManager: jm,
		audit:      newAuditDispatcher(cfg.Audit, b.auditSink, logger),
		metrics:    NewMetrics(cfg.Metrics),
		dummyHash:  dummyHash,
		now:        now,
	}

	// -------- RATE LIMITS --------
	if b.redis != nil && cfg.RateLimit.Enabled {
		engine.limiter = rate.New(b.redis, rate.Config{
			Prefix:                  cfg.RateLimit.RedisPrefix,
			EnableIPThrottle:        cfg.RateLimit.EnableIPThrottle,
			MaxLoginAttempts:        cfg.RateLimit.MaxLoginAttempts,
			LoginCooldown:           cfg.RateLimit.LoginCooldown,
			MaxVerificationRequests: cfg.RateLimit.MaxVerificationRequests,
			VerificationCooldown:    cfg.RateLimit.VerificationCooldown,
		})
	}

	b.built = true

	return engine, nil
}
