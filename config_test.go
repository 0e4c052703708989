package goSession

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"testing"
	"time"
)

func TestDefaultConfigNeedsKeys(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("default config without keys must not validate")
	}

	cfg = testConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config should validate: %v", err)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"zero access ttl":      func(c *Config) { c.JWT.AccessTTL = 0 },
		"negative leeway":      func(c *Config) { c.JWT.Leeway = -time.Second },
		"huge leeway":          func(c *Config) { c.JWT.Leeway = 3 * time.Minute },
		"short hs256 key":      func(c *Config) { c.JWT.PrivateKey = []byte("short") },
		"unknown method":       func(c *Config) { c.JWT.SigningMethod = "rs256" },
		"ed25519 no keys":      func(c *Config) { c.JWT.SigningMethod = "ed25519"; c.JWT.PrivateKey = nil },
		"blank audience":       func(c *Config) { c.JWT.Audience = "   " },
		"short lookup key":     func(c *Config) { c.Tokens.LookupKey = []byte("short") },
		"zero refresh ttl":     func(c *Config) { c.Tokens.RefreshTTL = 0 },
		"zero verify ttl":      func(c *Config) { c.Tokens.VerificationTTL = 0 },
		"refresh below access": func(c *Config) { c.Tokens.RefreshTTL = c.JWT.AccessTTL },
		"empty cookie name":    func(c *Config) { c.Cookie.AccessName = "" },
		"same cookie names":    func(c *Config) { c.Cookie.RefreshName = c.Cookie.AccessName },
		"relative cookie path": func(c *Config) { c.Cookie.Path = "api" },
		"negative min length":  func(c *Config) { c.Password.MinLength = -1 },
		"relative base url":    func(c *Config) { c.Verification.BaseURL = "/verify" },
		"relative verify path": func(c *Config) { c.Verification.Path = "verify" },
		"empty param":          func(c *Config) { c.Verification.Param = "" },
		"empty subject":        func(c *Config) { c.Verification.Subject = " " },
		"zero login budget":    func(c *Config) { c.RateLimit.MaxLoginAttempts = 0 },
		"zero verify budget":   func(c *Config) { c.RateLimit.VerificationCooldown = 0 },
		"zero audit buffer":    func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestConfigValidateAcceptsDisabledRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Enabled = false
	cfg.RateLimit.MaxLoginAttempts = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled limits should not be checked: %v", err)
	}
}

func TestConfigEd25519(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	cfg := testConfig()
	cfg.JWT.SigningMethod = "ed25519"
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	if err := cfg.Validate(); err != nil {
		t.Fatalf("ed25519 config should validate: %v", err)
	}

	env := newTestEnv(t, withConfig(func(c *Config) { *c = cfg }))
	user := env.register(t, "a@example.com", "password-1")
	jar := env.login(t, context.Background(), user)
	if _, err := env.engine.ResolveIdentity(context.Background(), jarWith(jar.Pending()...)); err != nil {
		t.Fatalf("ResolveIdentity with ed25519 failed: %v", err)
	}
}

func TestBuilderCopiesConfig(t *testing.T) {
	cfg := testConfig()
	key := cfg.JWT.PrivateKey

	env := newTestEnv(t, withConfig(func(c *Config) { *c = cfg }))
	key[0] ^= 0xff

	got := env.engine.Config()
	if bytes.Equal(got.JWT.PrivateKey, key) {
		t.Fatal("engine must not share key memory with the caller")
	}
	got.Tokens.LookupKey[0] ^= 0xff
	if bytes.Equal(env.engine.Config().Tokens.LookupKey, got.Tokens.LookupKey) {
		t.Fatal("Config must return a copy")
	}
}

func TestBuilderRequiresStoreAndSingleUse(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected error without store")
	}

	b := New().WithConfig(testConfig()).WithStore(newTestEnv(t).store)
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected error on second Build")
	}
}
