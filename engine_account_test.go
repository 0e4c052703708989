package goSession

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/password"
)

func TestRegisterNormalizesEmail(t *testing.T) {
	env := newTestEnv(t)

	user, err := env.engine.Register(context.Background(), "  alice ", "  Alice@Example.COM ", "password-1")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.Email != "alice@example.com" || user.Username != "alice" {
		t.Fatalf("unexpected user %+v", user)
	}
	if user.Verified || user.Role != RoleUser {
		t.Fatalf("new accounts must be unverified users, got %+v", user)
	}
	if strings.Contains(user.PasswordHash, "password-1") || !strings.HasPrefix(user.PasswordHash, "$argon2id$") {
		t.Fatalf("unexpected password hash %q", user.PasswordHash)
	}

	_, err = env.engine.Register(context.Background(), "other", "alice@example.com", "password-2")
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestRegisterInvalidInput(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name, username, email, plain string
	}{
		{"empty username", " ", "a@example.com", "password-1"},
		{"no at sign", "a", "example.com", "password-1"},
		{"empty password", "a", "a@example.com", ""},
		{"short password", "a", "a@example.com", "short"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.engine.Register(context.Background(), tc.username, tc.email, tc.plain)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	registered := env.register(t, "a@example.com", "password-1")

	user, err := env.engine.Authenticate(context.Background(), " A@example.com", "password-1")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if user.ID != registered.ID {
		t.Fatalf("expected %s, got %s", registered.ID, user.ID)
	}

	if _, err := env.engine.Authenticate(context.Background(), "a@example.com", "password-2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := env.engine.Authenticate(context.Background(), "nobody@example.com", "password-1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateUpgradesWeakHash(t *testing.T) {
	weak := newTestEnv(t)
	weak.register(t, "a@example.com", "password-1")

	strong := newTestEnv(t, withStore(weak.store), withConfig(func(cfg *Config) {
		cfg.Password.Time = 2
	}))
	if _, err := strong.engine.Authenticate(context.Background(), "a@example.com", "password-1"); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	stored, err := weak.store.GetUserByEmail(context.Background(), "a@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if !strings.Contains(stored.PasswordHash, ",t=2,") {
		t.Fatalf("expected rehash with t=2, got %q", stored.PasswordHash)
	}

	hasher, err := password.NewArgon2(strong.engine.Config().Password.hasherConfig())
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	if ok, _ := hasher.Verify("password-1", stored.PasswordHash); !ok {
		t.Fatal("upgraded hash must still verify")
	}
}

func TestAuthenticateRateLimited(t *testing.T) {
	mr, client := newTestRedis(t)
	env := newTestEnv(t, withRedis(client), withConfig(func(cfg *Config) {
		cfg.RateLimit.MaxLoginAttempts = 3
		cfg.RateLimit.LoginCooldown = time.Minute
	}))
	env.register(t, "a@example.com", "password-1")

	ctx := WithClientIP(context.Background(), "192.0.2.1")
	for i := 0; i < 3; i++ {
		if _, err := env.engine.Authenticate(ctx, "a@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	if _, err := env.engine.Authenticate(ctx, "a@example.com", "password-1"); !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}

	mr.FastForward(time.Minute + time.Second)

	if _, err := env.engine.Authenticate(ctx, "a@example.com", "password-1"); err != nil {
		t.Fatalf("expected login after cooldown, got %v", err)
	}
	if n, _ := env.engine.limiter.LoginAttempts(ctx, "a@example.com"); n != 0 {
		t.Fatalf("expected counter reset after success, got %d", n)
	}
}

func TestAuthenticateFailsOpenWithoutRedis(t *testing.T) {
	mr, client := newTestRedis(t)
	env := newTestEnv(t, withRedis(client))
	env.register(t, "a@example.com", "password-1")

	mr.Close()

	if _, err := env.engine.Authenticate(context.Background(), "a@example.com", "password-1"); err != nil {
		t.Fatalf("expected login with limiter down, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "a@example.com", "password-1")
	ctx := context.Background()

	if err := env.engine.ChangePassword(ctx, user.ID, "wrong", "password-2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := env.engine.ChangePassword(ctx, user.ID, "password-1", "password-1"); !errors.Is(err, ErrUnchanged) {
		t.Fatalf("expected ErrUnchanged, got %v", err)
	}
	if err := env.engine.ChangePassword(ctx, user.ID, "password-1", "short"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := env.engine.ChangePassword(ctx, "missing", "password-1", "password-2"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	if err := env.engine.ChangePassword(ctx, user.ID, "password-1", "password-2"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	if _, err := env.engine.Authenticate(ctx, "a@example.com", "password-1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	if _, err := env.engine.Authenticate(ctx, "a@example.com", "password-2"); err != nil {
		t.Fatalf("new password must work, got %v", err)
	}
}

func TestChangeEmailResetsVerification(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "a@example.com", "password-1")
	env.register(t, "taken@example.com", "password-1")
	ctx := context.Background()

	verified := user.Clone()
	verified.Verified = true
	if err := env.store.UpdateUser(ctx, verified); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}

	if _, err := env.engine.ChangeEmail(ctx, user.ID, "password-1", "bad"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := env.engine.ChangeEmail(ctx, user.ID, "password-1", "A@example.com"); !errors.Is(err, ErrUnchanged) {
		t.Fatalf("expected ErrUnchanged, got %v", err)
	}
	if _, err := env.engine.ChangeEmail(ctx, user.ID, "wrong", "b@example.com"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := env.engine.ChangeEmail(ctx, user.ID, "password-1", "taken@example.com"); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}

	updated, err := env.engine.ChangeEmail(ctx, user.ID, "password-1", "B@example.com")
	if err != nil {
		t.Fatalf("ChangeEmail failed: %v", err)
	}
	if updated.Email != "b@example.com" || updated.Verified {
		t.Fatalf("unexpected user %+v", updated)
	}
	if _, err := env.engine.Authenticate(ctx, "b@example.com", "password-1"); err != nil {
		t.Fatalf("login with new email failed: %v", err)
	}
	if _, err := env.engine.Authenticate(ctx, "a@example.com", "password-1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old email must stop working, got %v", err)
	}
}

func TestChangeUsername(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "a@example.com", "password-1")
	ctx := context.Background()

	if _, err := env.engine.ChangeUsername(ctx, user.ID, "  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := env.engine.ChangeUsername(ctx, user.ID, user.Username); !errors.Is(err, ErrUnchanged) {
		t.Fatalf("expected ErrUnchanged, got %v", err)
	}

	updated, err := env.engine.ChangeUsername(ctx, user.ID, " bob ")
	if err != nil {
		t.Fatalf("ChangeUsername failed: %v", err)
	}
	if updated.Username != "bob" {
		t.Fatalf("expected bob, got %q", updated.Username)
	}
}
