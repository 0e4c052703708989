// Package redisstore implements store.Store on Redis.
//
// Users are hashes indexed by a per-email key; tokens are binary records
// whose Redis TTL outlives their logical expiry by a retention window, so an
// expired token is still observable as expired rather than missing.
// Multi-key mutations and consume-deletes run as Lua scripts.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goSession/store"
)

const (
	defaultPrefix    = "gs"
	defaultRetention = 24 * time.Hour
)

// createUserLua inserts a user and its email index unless either exists.
// KEYS[1] = user key, KEYS[2] = email key
// ARGV    = id, email, username, password_hash, role, verified, created_at
var createUserLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 or redis.call('EXISTS', KEYS[2]) == 1 then
  return {err='exists'}
end
redis.call('HSET', KEYS[1],
  'id', ARGV[1], 'email', ARGV[2], 'username', ARGV[3], 'password_hash', ARGV[4],
  'role', ARGV[5], 'verified', ARGV[6], 'created_at', ARGV[7])
redis.call('SET', KEYS[2], ARGV[1])
return 1
`)

// updateUserLua rewrites a user and moves its email index.
// KEYS[1] = user key, KEYS[2] = new email key
// ARGV    = id, email, username, password_hash, role, verified, email key prefix
var updateUserLua = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'email')
if not current then
  return {err='not_found'}
end
local owner = redis.call('GET', KEYS[2])
if owner and owner ~= ARGV[1] then
  return {err='exists'}
end
if current ~= ARGV[2] then
  redis.call('DEL', ARGV[7] .. current)
end
redis.call('SET', KEYS[2], ARGV[1])
redis.call('HSET', KEYS[1],
  'email', ARGV[2], 'username', ARGV[3], 'password_hash', ARGV[4],
  'role', ARGV[5], 'verified', ARGV[6])
return 1
`)

// deleteTokenLua removes a token record and returns the prior value.
// KEYS[1] = token key
var deleteTokenLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return false
end
redis.call('DEL', KEYS[1])
return data
`)

// Option configures a Store.
type Option func(*Store)

// WithPrefix namespaces every key under prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithRetention sets how long a token record stays readable after expiry.
func WithRetention(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.retention = d
		}
	}
}

// Store is a Redis-backed store.Store.
type Store struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

var _ store.Store = (*Store)(nil)

// New returns a Store on client.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		redis:     client,
		prefix:    defaultPrefix,
		retention: defaultRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) userKey(id string) string {
	return s.prefix + ":user:" + id
}

func (s *Store) emailKeyPrefix() string {
	return s.prefix + ":email:"
}

func (s *Store) tokenKey(family store.Family, id string) string {
	return s.prefix + ":tok:" + string(family) + ":" + id
}

func (s *Store) CreateUser(ctx context.Context, user *store.User) error {
	email := store.NormalizeEmail(user.Email)

	err := createUserLua.Run(ctx, s.redis,
		[]string{s.userKey(user.ID), s.emailKeyPrefix() + email},
		user.ID,
		email,
		user.Username,
		user.PasswordHash,
		string(user.Role),
		boolFlag(user.Verified),
		user.CreatedAt.UnixMilli(),
	).Err()
	if err != nil {
		if err.Error() == "exists" {
			return store.ErrUserExists
		}
		return fmt.Errorf("redisstore: create user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	fields, err := s.redis.HGetAll(ctx, s.userKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: get user: %w", err)
	}
	if len(fields) == 0 {
		return nil, store.ErrUserNotFound
	}
	return decodeUser(fields)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	id, err := s.redis.Get(ctx, s.emailKeyPrefix()+store.NormalizeEmail(email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get user by email: %w", err)
	}
	return s.GetUserByID(ctx, id)
}

func (s *Store) UpdateUser(ctx context.Context, user *store.User) error {
	email := store.NormalizeEmail(user.Email)

	err := updateUserLua.Run(ctx, s.redis,
		[]string{s.userKey(user.ID), s.emailKeyPrefix() + email},
		user.ID,
		email,
		user.Username,
		user.PasswordHash,
		string(user.Role),
		boolFlag(user.Verified),
		s.emailKeyPrefix(),
	).Err()
	if err != nil {
		switch err.Error() {
		case "not_found":
			return store.ErrUserNotFound
		case "exists":
			return store.ErrUserExists
		default:
			return fmt.Errorf("redisstore: update user: %w", err)
		}
	}
	return nil
}

func (s *Store) SaveToken(ctx context.Context, family store.Family, rec *store.TokenRecord) error {
	data, err := encodeToken(rec)
	if err != nil {
		return err
	}

	ttl := time.Until(rec.ExpiresAt) + s.retention
	if ttl < time.Second {
		ttl = time.Second
	}
	if err := s.redis.Set(ctx, s.tokenKey(family, rec.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: save token: %w", err)
	}
	return nil
}

func (s *Store) GetToken(ctx context.Context, family store.Family, id string) (*store.TokenRecord, error) {
	data, err := s.redis.Get(ctx, s.tokenKey(family, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get token: %w", err)
	}
	return decodeToken(id, data)
}

func (s *Store) DeleteToken(ctx context.Context, family store.Family, id string) (*store.TokenRecord, error) {
	result, err := deleteTokenLua.Run(ctx, s.redis, []string{s.tokenKey(family, id)}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: delete token: %w", err)
	}
	data, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("redisstore: delete token: unexpected lua result %T", result)
	}
	return decodeToken(id, []byte(data))
}

func decodeUser(fields map[string]string) (*store.User, error) {
	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redisstore: corrupt user record: %w", err)
	}
	return &store.User{
		ID:           fields["id"],
		Email:        fields["email"],
		Username:     fields["username"],
		PasswordHash: fields["password_hash"],
		Role:         store.Role(fields["role"]),
		Verified:     fields["verified"] == "1",
		CreatedAt:    time.UnixMilli(createdAt).UTC(),
	}, nil
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
