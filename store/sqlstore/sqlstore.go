// Package sqlstore implements store.Store on database/sql for PostgreSQL
// (jackc/pgx stdlib driver) and SQLite (modernc.org/sqlite).
//
// Token consumption relies on DELETE ... RETURNING, which both engines
// execute atomically per row.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrEthical07/goSession/store"
)

const pgUniqueViolation = "23505"

// Store is a SQL-backed store.Store.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ store.Store = (*Store)(nil)

// New wraps an open database handle. The caller registers the driver.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Open opens dsn with the driver matching dialect and pings it.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	if dialect == SQLite {
		// Serializes writers so concurrent requests never see SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}
	return New(db, dialect), nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

const userColumns = `id, email, username, password_hash, role, verified, created_at`

func (s *Store) CreateUser(ctx context.Context, user *store.User) error {
	query := s.dialect.rebind(`INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		store.NormalizeEmail(user.Email),
		user.Username,
		user.PasswordHash,
		string(user.Role),
		user.Verified,
		user.CreatedAt.UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrUserExists
		}
		return fmt.Errorf("sqlstore: create user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, store.NormalizeEmail(email))
}

func (s *Store) getUser(ctx context.Context, query string, arg string) (*store.User, error) {
	var (
		u         store.User
		role      string
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(query), arg).Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash, &role, &u.Verified, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get user: %w", err)
	}
	u.Role = store.Role(role)
	u.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &u, nil
}

func (s *Store) UpdateUser(ctx context.Context, user *store.User) error {
	query := s.dialect.rebind(`UPDATE users SET email = ?, username = ?, password_hash = ?, role = ?, verified = ? WHERE id = ?`)

	res, err := s.db.ExecContext(ctx, query,
		store.NormalizeEmail(user.Email),
		user.Username,
		user.PasswordHash,
		string(user.Role),
		user.Verified,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrUserExists
		}
		return fmt.Errorf("sqlstore: update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: update user: %w", err)
	}
	if n == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

const tokenColumns = `user_id, hash, expires_at, user_agent, ip_address`

func (s *Store) SaveToken(ctx context.Context, family store.Family, rec *store.TokenRecord) error {
	query := s.dialect.rebind(`INSERT INTO auth_tokens (family, id, ` + tokenColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		string(family),
		rec.ID,
		rec.UserID,
		rec.Hash,
		rec.ExpiresAt.UnixMilli(),
		rec.UserAgent,
		rec.IPAddress,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: save token: %w", err)
	}
	return nil
}

func (s *Store) GetToken(ctx context.Context, family store.Family, id string) (*store.TokenRecord, error) {
	query := `SELECT ` + tokenColumns + ` FROM auth_tokens WHERE family = ? AND id = ?`
	return s.scanToken(ctx, "get token", query, family, id)
}

func (s *Store) DeleteToken(ctx context.Context, family store.Family, id string) (*store.TokenRecord, error) {
	query := `DELETE FROM auth_tokens WHERE family = ? AND id = ? RETURNING ` + tokenColumns
	return s.scanToken(ctx, "delete token", query, family, id)
}

func (s *Store) scanToken(ctx context.Context, op, query string, family store.Family, id string) (*store.TokenRecord, error) {
	rec := store.TokenRecord{ID: id}
	var expiresAt int64

	err := s.db.QueryRowContext(ctx, s.dialect.rebind(query), string(family), id).Scan(
		&rec.UserID, &rec.Hash, &expiresAt, &rec.UserAgent, &rec.IPAddress,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: %s: %w", op, err)
	}
	rec.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	return &rec, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	// modernc reports "UNIQUE constraint failed: <table>.<column>".
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
