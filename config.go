package goSession

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/secret"
)

// Config holds every engine setting. Start from DefaultConfig and override.
type Config struct {
	JWT          JWTConfig
	Tokens       TokenConfig
	Cookie       CookieConfig
	Password     PasswordConfig
	Verification VerificationConfig
	RateLimit    RateLimitConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures access tokens.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig configures the opaque refresh and verification tokens.
type TokenConfig struct {
	// LookupKey is the HMAC key deriving storage ids from secrets. At least 32 bytes.
	LookupKey       []byte
	RefreshTTL      time.Duration
	VerificationTTL time.Duration
	// PreserveDeviceMetadata makes a rotated refresh token inherit the user
	// agent and IP of the token it replaces instead of the current request's.
	PreserveDeviceMetadata bool
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig names and scopes the session cookies.
type CookieConfig struct {
	AccessName  string
	RefreshName string
	Path        string
	Domain      string
	// Secure should only be disabled for plain-HTTP local development.
	Secure bool
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the Argon2id parameters shared by account passwords
// and token hashes. MinLength applies to passwords only.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
	// UpgradeOnLogin rehashes a password with current parameters after a
	// successful Authenticate when the stored hash is weaker.
	UpgradeOnLogin bool
}

func (p PasswordConfig) hasherConfig() password.Config {
	return password.Config{
		Memory:      p.Memory,
		Time:        p.Time,
		Parallelism: p.Parallelism,
		SaltLength:  p.SaltLength,
		KeyLength:   p.KeyLength,
		MinLength:   p.MinLength,
	}
}

/*
====================================
VERIFICATION CONFIG
====================================
*/

// VerificationConfig shapes the verification email link.
type VerificationConfig struct {
	// BaseURL is the public origin, e.g. "https://app.example.com".
	BaseURL string
	Path    string
	Param   string
	Subject string
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig configures Redis fixed-window throttles. They are active
// only when the Builder was given a Redis client.
type RateLimitConfig struct {
	Enabled                 bool
	RedisPrefix             string
	EnableIPThrottle        bool
	MaxLoginAttempts        int
	LoginCooldown           time.Duration
	MaxVerificationRequests int
	VerificationCooldown    time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns production defaults. Keys are left empty and must
// be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "hs256",
			Leeway:        5 * time.Second,
		},
		Tokens: TokenConfig{
			RefreshTTL:      7 * 24 * time.Hour,
			VerificationTTL: 30 * time.Minute,
		},
		Cookie: CookieConfig{
			AccessName:  "access_token",
			RefreshName: "refresh_token",
			Path:        "/",
			Secure:      true,
		},
		Password: PasswordConfig{
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      8,
			UpgradeOnLogin: true,
		},
		Verification: VerificationConfig{
			BaseURL: "http://localhost:8080",
			Path:    "/auth/verify",
			Param:   "token",
			Subject: "Verify your email",
		},
		RateLimit: RateLimitConfig{
			Enabled:                 true,
			RedisPrefix:             "gsrl",
			EnableIPThrottle:        true,
			MaxLoginAttempts:        5,
			LoginCooldown:           15 * time.Minute,
			MaxVerificationRequests: 3,
			VerificationCooldown:    10 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.Tokens.LookupKey = cloneBytes(cfg.Tokens.LookupKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 && len(c.JWT.VerifyKeys) == 0 {
			return errors.New("ed25519 requires PublicKey or VerifyKeys")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience must not be blank")
	}

	// Tokens
	if len(c.Tokens.LookupKey) < secret.MinKeyBytes {
		return errors.New("Tokens LookupKey must be at least 32 bytes")
	}
	if c.Tokens.RefreshTTL <= 0 {
		return errors.New("Tokens RefreshTTL must be > 0")
	}
	if c.Tokens.VerificationTTL <= 0 {
		return errors.New("Tokens VerificationTTL must be > 0")
	}
	if c.Tokens.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("Tokens RefreshTTL must exceed JWT AccessTTL")
	}

	// Cookies
	if c.Cookie.AccessName == "" || c.Cookie.RefreshName == "" {
		return errors.New("Cookie names must be set")
	}
	if c.Cookie.AccessName == c.Cookie.RefreshName {
		return errors.New("Cookie AccessName and RefreshName must differ")
	}
	if !strings.HasPrefix(c.Cookie.Path, "/") {
		return errors.New("Cookie Path must start with /")
	}

	// Password
	if c.Password.MinLength < 0 {
		return errors.New("Password MinLength must be >= 0")
	}

	// Verification
	u, err := url.Parse(c.Verification.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("Verification BaseURL must be an absolute URL")
	}
	if !strings.HasPrefix(c.Verification.Path, "/") {
		return errors.New("Verification Path must start with /")
	}
	if c.Verification.Param == "" {
		return errors.New("Verification Param must be set")
	}
	if strings.TrimSpace(c.Verification.Subject) == "" {
		return errors.New("Verification Subject must be set")
	}

	// Rate limits
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxLoginAttempts <= 0 || c.RateLimit.LoginCooldown <= 0 {
			return errors.New("RateLimit login budget must be > 0")
		}
		if c.RateLimit.MaxVerificationRequests <= 0 || c.RateLimit.VerificationCooldown <= 0 {
			return errors.New("RateLimit verification budget must be > 0")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
