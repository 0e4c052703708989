package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/store/memory"
	"github.com/MrEthical07/goSession/store/redisstore"
	"github.com/MrEthical07/goSession/store/sqlstore"
)

type backendOptions struct {
	Kind        string
	DSN         string
	RedisAddr   string
	RedisPrefix string
	AutoMigrate bool
}

// backend is an opened store plus what the server needs around it.
type backend struct {
	store  goSession.Store
	redis  redis.UniversalClient
	health func(ctx context.Context) error
	close  func()
}

func openBackend(ctx context.Context, opts backendOptions, logger *slog.Logger) (*backend, error) {
	b := &backend{close: func() {}}

	if opts.RedisAddr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{opts.RedisAddr},
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		b.redis = client
		b.close = func() { _ = client.Close() }
	}

	switch strings.ToLower(opts.Kind) {
	case "memory":
		logger.Warn("memory backend: accounts and sessions are lost on restart")
		b.store = memory.New()
		b.health = func(context.Context) error { return nil }

	case "redis":
		if b.redis == nil {
			return nil, errors.New("redis backend requires --redis-addr")
		}
		var storeOpts []redisstore.Option
		if opts.RedisPrefix != "" {
			storeOpts = append(storeOpts, redisstore.WithPrefix(opts.RedisPrefix))
		}
		client := b.redis
		b.store = redisstore.New(client, storeOpts...)
		b.health = func(ctx context.Context) error { return client.Ping(ctx).Err() }

	case "postgres", "postgresql", "sqlite", "sqlite3":
		if opts.DSN == "" {
			b.close()
			return nil, fmt.Errorf("%s backend requires --dsn", opts.Kind)
		}
		dialect, err := sqlstore.ParseDialect(opts.Kind)
		if err != nil {
			b.close()
			return nil, err
		}
		st, err := sqlstore.Open(ctx, dialect, opts.DSN)
		if err != nil {
			b.close()
			return nil, err
		}
		if opts.AutoMigrate {
			if err := st.Migrate(ctx); err != nil {
				_ = st.Close()
				b.close()
				return nil, err
			}
		}
		closeRedis := b.close
		b.store = st
		b.health = func(ctx context.Context) error { return st.DB().PingContext(ctx) }
		b.close = func() {
			_ = st.Close()
			closeRedis()
		}

	default:
		b.close()
		return nil, fmt.Errorf("unknown backend %q (memory, sqlite, postgres, redis)", opts.Kind)
	}

	return b, nil
}

func newLogger(format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	handlerOpts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (json, text)", format)
	}
}
