// Package storetest is the behavioral suite shared by every store.Store backend.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/store"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) store.Store

// Run exercises s against the store.Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("UserLifecycle", func(t *testing.T) { testUserLifecycle(t, newStore(t)) })
	t.Run("DuplicateEmail", func(t *testing.T) { testDuplicateEmail(t, newStore(t)) })
	t.Run("UpdateUser", func(t *testing.T) { testUpdateUser(t, newStore(t)) })
	t.Run("TokenLifecycle", func(t *testing.T) { testTokenLifecycle(t, newStore(t)) })
	t.Run("FamiliesIsolated", func(t *testing.T) { testFamiliesIsolated(t, newStore(t)) })
	t.Run("ExpiredRecordsVisible", func(t *testing.T) { testExpiredRecordsVisible(t, newStore(t)) })
	t.Run("ConcurrentDelete", func(t *testing.T) { testConcurrentDelete(t, newStore(t)) })
}

// NewUser returns a user fixture with a millisecond-truncated CreatedAt.
func NewUser(id, email string) *store.User {
	return &store.User{
		ID:           id,
		Email:        email,
		Username:     "user-" + id,
		PasswordHash: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		Role:         store.RoleUser,
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
}

// NewToken returns a token fixture expiring after ttl.
func NewToken(id, userID string, ttl time.Duration) *store.TokenRecord {
	return &store.TokenRecord{
		ID:        id,
		Hash:      "hash-of-" + id,
		ExpiresAt: time.Now().Add(ttl).UTC().Truncate(time.Millisecond),
		UserID:    userID,
		UserAgent: "storetest/1.0",
		IPAddress: "192.0.2.10",
	}
}

func mustCreateUser(t *testing.T, s store.Store, u *store.User) {
	t.Helper()
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s) failed: %v", u.ID, err)
	}
}

func testUserLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := NewUser("u1", "alice@example.com")
	mustCreateUser(t, s, u)

	byID, err := s.GetUserByID(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if byID.Email != u.Email || byID.Username != u.Username || byID.PasswordHash != u.PasswordHash {
		t.Fatalf("unexpected user: %+v", byID)
	}
	if byID.Role != store.RoleUser || byID.Verified {
		t.Fatalf("unexpected role/verified: %s/%v", byID.Role, byID.Verified)
	}
	if !byID.CreatedAt.Equal(u.CreatedAt) {
		t.Fatalf("CreatedAt mismatch: got %v want %v", byID.CreatedAt, u.CreatedAt)
	}

	byEmail, err := s.GetUserByEmail(ctx, "ALICE@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if byEmail.ID != "u1" {
		t.Fatalf("expected u1, got %s", byEmail.ID)
	}

	if _, err := s.GetUserByID(ctx, "missing"); !errors.Is(err, store.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := s.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, store.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func testDuplicateEmail(t *testing.T, s store.Store) {
	mustCreateUser(t, s, NewUser("u1", "dup@example.com"))

	err := s.CreateUser(context.Background(), NewUser("u2", "Dup@Example.com"))
	if !errors.Is(err, store.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func testUpdateUser(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreateUser(t, s, NewUser("u1", "first@example.com"))
	mustCreateUser(t, s, NewUser("u2", "second@example.com"))

	u, err := s.GetUserByID(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	u.Verified = true
	u.Username = "renamed"
	u.Email = "moved@example.com"
	if err := s.UpdateUser(ctx, u); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}

	got, err := s.GetUserByEmail(ctx, "moved@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail after update failed: %v", err)
	}
	if !got.Verified || got.Username != "renamed" {
		t.Fatalf("update not persisted: %+v", got)
	}
	if _, err := s.GetUserByEmail(ctx, "first@example.com"); !errors.Is(err, store.ErrUserNotFound) {
		t.Fatalf("old email should no longer resolve, got %v", err)
	}

	got.Email = "second@example.com"
	if err := s.UpdateUser(ctx, got); !errors.Is(err, store.ErrUserExists) {
		t.Fatalf("expected ErrUserExists on email collision, got %v", err)
	}

	ghost := NewUser("ghost", "ghost@example.com")
	if err := s.UpdateUser(ctx, ghost); !errors.Is(err, store.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for missing user, got %v", err)
	}
}

func testTokenLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreateUser(t, s, NewUser("u1", "tok@example.com"))
	rec := NewToken("id-1", "u1", time.Hour)

	if err := s.SaveToken(ctx, store.FamilyRefresh, rec); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	got, err := s.GetToken(ctx, store.FamilyRefresh, "id-1")
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if got.Hash != rec.Hash || got.UserID != "u1" || got.UserAgent != rec.UserAgent || got.IPAddress != rec.IPAddress {
		t.Fatalf("unexpected record: %+v", got)
	}
	if !got.ExpiresAt.Equal(rec.ExpiresAt) {
		t.Fatalf("ExpiresAt mismatch: got %v want %v", got.ExpiresAt, rec.ExpiresAt)
	}

	prior, err := s.DeleteToken(ctx, store.FamilyRefresh, "id-1")
	if err != nil {
		t.Fatalf("DeleteToken failed: %v", err)
	}
	if prior.ID != "id-1" || prior.Hash != rec.Hash || prior.UserID != "u1" {
		t.Fatalf("DeleteToken returned unexpected row: %+v", prior)
	}

	if _, err := s.DeleteToken(ctx, store.FamilyRefresh, "id-1"); !errors.Is(err, store.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound on second delete, got %v", err)
	}
	if _, err := s.GetToken(ctx, store.FamilyRefresh, "id-1"); !errors.Is(err, store.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound after delete, got %v", err)
	}
}

func testFamiliesIsolated(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreateUser(t, s, NewUser("u1", "fam@example.com"))

	if err := s.SaveToken(ctx, store.FamilyVerification, NewToken("shared", "u1", time.Hour)); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}
	if _, err := s.GetToken(ctx, store.FamilyRefresh, "shared"); !errors.Is(err, store.ErrTokenNotFound) {
		t.Fatalf("expected refresh lookup to miss, got %v", err)
	}
	if _, err := s.DeleteToken(ctx, store.FamilyRefresh, "shared"); !errors.Is(err, store.ErrTokenNotFound) {
		t.Fatalf("expected refresh delete to miss, got %v", err)
	}
	if _, err := s.GetToken(ctx, store.FamilyVerification, "shared"); err != nil {
		t.Fatalf("verification record should survive: %v", err)
	}
}

func testExpiredRecordsVisible(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreateUser(t, s, NewUser("u1", "exp@example.com"))

	rec := NewToken("old", "u1", -time.Second)
	if err := s.SaveToken(ctx, store.FamilyRefresh, rec); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}
	got, err := s.GetToken(ctx, store.FamilyRefresh, "old")
	if err != nil {
		t.Fatalf("expired record must still be readable: %v", err)
	}
	if !got.Expired(time.Now()) {
		t.Fatal("expected record to report expiry")
	}
}

func testConcurrentDelete(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreateUser(t, s, NewUser("u1", "race@example.com"))
	if err := s.SaveToken(ctx, store.FamilyRefresh, NewToken("race", "u1", time.Hour)); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	const workers = 16
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make(chan error, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.DeleteToken(ctx, store.FamilyRefresh, "race")
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	var success, notFound int
	for err := range results {
		switch {
		case err == nil:
			success++
		case errors.Is(err, store.ErrTokenNotFound):
			notFound++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 || notFound != workers-1 {
		t.Fatalf("expected exactly one winner, got success=%d notFound=%d", success, notFound)
	}
}
