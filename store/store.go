package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("store: user not found")
	// ErrUserExists is returned when a user with the same email already exists.
	ErrUserExists = errors.New("store: user already exists")
	// ErrTokenNotFound is returned when no token record matches the lookup id,
	// including when a concurrent caller deleted it first.
	ErrTokenNotFound = errors.New("store: token not found")
)

// Role is the coarse account role.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is an account record. PasswordHash is an argon2id PHC string.
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	Role         Role
	Verified     bool
	CreatedAt    time.Time
}

// IsAdmin reports whether u has the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// IsVerified reports whether u confirmed their email.
func (u *User) IsVerified() bool {
	return u != nil && u.Verified
}

// Clone returns a copy that can be mutated without affecting u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// Family separates token records by purpose. Ids never collide across families.
type Family string

const (
	FamilyRefresh      Family = "refresh"
	FamilyVerification Family = "verification"
)

// Valid reports whether f is a known family.
func (f Family) Valid() bool {
	return f == FamilyRefresh || f == FamilyVerification
}

// TokenRecord is a persisted opaque token. ID is the derived lookup id and
// Hash the slow hash of the raw secret; the secret itself is never stored.
type TokenRecord struct {
	ID        string
	Hash      string
	ExpiresAt time.Time
	UserID    string
	UserAgent string
	IPAddress string
}

// Expired reports whether the record is past its expiry at now.
func (r *TokenRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Store is the persistence contract.
//
// DeleteToken is the only token mutation besides SaveToken and must be
// atomic: it removes the record if present and returns the removed row, so
// that among concurrent callers exactly one observes the row and the others
// get ErrTokenNotFound.
type Store interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error

	SaveToken(ctx context.Context, family Family, rec *TokenRecord) error
	GetToken(ctx context.Context, family Family, id string) (*TokenRecord, error)
	DeleteToken(ctx context.Context, family Family, id string) (*TokenRecord, error)
}

// NormalizeEmail is the canonical form under which emails are stored and matched.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
