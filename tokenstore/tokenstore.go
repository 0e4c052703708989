// Package tokenstore manages the lifecycle of opaque single-use tokens:
// refresh tokens and email-verification tokens.
//
// Create hands the raw secret to the caller and persists only its lookup id
// and slow hash. Consume authenticates a presented secret and, by default,
// removes the record through the store's conditional delete so that a secret
// is accepted at most once even under concurrent use.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/secret"
	"github.com/MrEthical07/goSession/store"
)

var (
	// ErrMissingSecret is returned when no secret was presented.
	ErrMissingSecret = errors.New("token secret missing")
	// ErrNotFound is returned when no record matches the derived id, including
	// when a concurrent consumer won the delete.
	ErrNotFound = errors.New("token not found")
	// ErrInvalidSecret is returned when a record exists but the secret does not match its hash.
	ErrInvalidSecret = errors.New("token secret invalid")
	// ErrExpired is returned when the record is past its expiry. The record is deleted.
	ErrExpired = errors.New("token expired")
	// ErrOwnerMismatch is returned by ConsumeOwned when the record belongs to
	// someone else. The record is left in place.
	ErrOwnerMismatch = errors.New("token owner mismatch")
	// ErrStoreUnavailable wraps backend failures.
	ErrStoreUnavailable = errors.New("token store unavailable")
)

// Backend is the subset of store.Store the manager needs.
type Backend interface {
	SaveToken(ctx context.Context, family store.Family, rec *store.TokenRecord) error
	GetToken(ctx context.Context, family store.Family, id string) (*store.TokenRecord, error)
	DeleteToken(ctx context.Context, family store.Family, id string) (*store.TokenRecord, error)
}

// Metadata is diagnostic device context recorded with a token. It is never
// used for authorization.
type Metadata struct {
	UserAgent string
	IPAddress string
}

// Manager creates and consumes tokens.
type Manager struct {
	backend Backend
	codec   *secret.Codec
	now     func() time.Time
}

// New returns a Manager over backend.
func New(backend Backend, codec *secret.Codec) *Manager {
	return &Manager{
		backend: backend,
		codec:   codec,
		now:     time.Now,
	}
}

// SetClock replaces the time source used for expiry. Call it before the
// Manager is shared.
func (m *Manager) SetClock(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// Create mints a secret for ownerID valid for ttl and returns it. A
// non-positive ttl produces an already expired record.
func (m *Manager) Create(ctx context.Context, family store.Family, ownerID string, ttl time.Duration, meta Metadata) (string, error) {
	if !family.Valid() {
		return "", fmt.Errorf("unknown token family %q", family)
	}
	if ownerID == "" {
		return "", errors.New("token owner required")
	}

	raw, err := m.codec.Generate()
	if err != nil {
		return "", err
	}
	hash, err := m.codec.Hash(raw)
	if err != nil {
		return "", err
	}

	rec := &store.TokenRecord{
		ID:        m.codec.DeriveLookupID(raw),
		Hash:      hash,
		ExpiresAt: m.now().Add(ttl),
		UserID:    ownerID,
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
	}
	if err := m.backend.SaveToken(ctx, family, rec); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return raw, nil
}

// Consume authenticates raw within family and returns its record.
//
// Failures are ErrMissingSecret, ErrNotFound, ErrInvalidSecret or ErrExpired
// (in that order of checking), or ErrStoreUnavailable. With deleteAfterUse
// the record is removed before success is reported, and only the caller
// whose delete returned the row succeeds.
func (m *Manager) Consume(ctx context.Context, family store.Family, raw string, deleteAfterUse bool) (*store.TokenRecord, error) {
	return m.consume(ctx, family, raw, deleteAfterUse, "")
}

// ConsumeOwned is Consume with deletion, restricted to records owned by
// ownerID. A record owned by anyone else fails with ErrOwnerMismatch after
// the secret checks and is not deleted. An empty ownerID accepts any owner.
func (m *Manager) ConsumeOwned(ctx context.Context, family store.Family, raw, ownerID string) (*store.TokenRecord, error) {
	return m.consume(ctx, family, raw, true, ownerID)
}

func (m *Manager) consume(ctx context.Context, family store.Family, raw string, deleteAfterUse bool, ownerID string) (*store.TokenRecord, error) {
	if raw == "" {
		return nil, ErrMissingSecret
	}

	id := m.codec.DeriveLookupID(raw)
	rec, err := m.backend.GetToken(ctx, family, id)
	if err != nil {
		return nil, m.mapErr(err)
	}

	if !m.codec.Verify(rec.Hash, raw) {
		return nil, ErrInvalidSecret
	}

	if rec.Expired(m.now()) {
		if _, err := m.backend.DeleteToken(ctx, family, id); err != nil && !errors.Is(err, store.ErrTokenNotFound) {
			return nil, m.mapErr(err)
		}
		return nil, ErrExpired
	}

	if ownerID != "" && rec.UserID != ownerID {
		return rec, ErrOwnerMismatch
	}
	if !deleteAfterUse {
		return rec, nil
	}

	prior, err := m.backend.DeleteToken(ctx, family, id)
	if err != nil {
		return nil, m.mapErr(err)
	}
	return prior, nil
}

func (m *Manager) mapErr(err error) error {
	if errors.Is(err, store.ErrTokenNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
