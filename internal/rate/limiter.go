package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited is returned when a budget is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// Config holds rate limiter tuning parameters.
type Config struct {
	Prefix                  string
	EnableIPThrottle        bool
	MaxLoginAttempts        int
	LoginCooldown           time.Duration
	MaxVerificationRequests int
	VerificationCooldown    time.Duration
}

// Limiter enforces per-account and per-IP budgets using Redis counters.
// A nil *Limiter allows everything.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a Limiter backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "gsrl"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckLogin returns ErrRateLimited once email, or ip when IP throttling is
// on, has accumulated MaxLoginAttempts failures in the current window.
// It does not count the attempt.
func (l *Limiter) CheckLogin(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	if err := l.checkCounter(ctx, l.loginUserKey(email), l.config.MaxLoginAttempts); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		return l.checkCounter(ctx, l.loginIPKey(ip), l.config.MaxLoginAttempts)
	}
	return nil
}

// IncrementLogin records one failed login.
func (l *Limiter) IncrementLogin(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	if _, err := l.incrementWithTTL(ctx, l.loginUserKey(email), l.config.LoginCooldown); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if _, err := l.incrementWithTTL(ctx, l.loginIPKey(ip), l.config.LoginCooldown); err != nil {
			return err
		}
	}
	return nil
}

// ResetLogin clears the account counter after a successful login. The IP
// counter is left alone so one good account cannot launder an IP.
func (l *Limiter) ResetLogin(ctx context.Context, email string) error {
	if l == nil {
		return nil
	}
	if err := l.redis.Del(ctx, l.loginUserKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// LoginAttempts returns the failure count for email in the current window.
func (l *Limiter) LoginAttempts(ctx context.Context, email string) (int, error) {
	if l == nil {
		return 0, nil
	}
	count, err := l.redis.Get(ctx, l.loginUserKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// AllowVerification counts one verification email for userID and returns
// ErrRateLimited when the window budget is exceeded.
func (l *Limiter) AllowVerification(ctx context.Context, userID string) error {
	if l == nil {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, l.verifyKey(userID), l.config.VerificationCooldown)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxVerificationRequests) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(maxAttempts) {
		return ErrRateLimited
	}

	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func (l *Limiter) loginUserKey(email string) string {
	return l.config.Prefix + ":login:u:" + email
}

func (l *Limiter) loginIPKey(ip string) string {
	return l.config.Prefix + ":login:ip:" + ip
}

func (l *Limiter) verifyKey(userID string) string {
	return l.config.Prefix + ":verify:" + userID
}
