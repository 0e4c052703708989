package goSession

import (
	"errors"

	"github.com/MrEthical07/goSession/store"
	"github.com/MrEthical07/goSession/tokenstore"
)

var (
	// ErrMissingCredential is returned when no token was presented.
	ErrMissingCredential = errors.New("missing credential")
	// ErrTokenNotFound is returned when a presented secret matches no stored record.
	ErrTokenNotFound = tokenstore.ErrNotFound
	// ErrInvalidSecret is returned when a record exists but the secret does not match it.
	ErrInvalidSecret = tokenstore.ErrInvalidSecret
	// ErrTokenExpired is returned when the matching record is past its expiry.
	ErrTokenExpired = tokenstore.ErrExpired
	// ErrTokenOwnerMismatch is returned when a refresh token does not belong to
	// the user signed in by the access token.
	ErrTokenOwnerMismatch = tokenstore.ErrOwnerMismatch
	// ErrStaleIdentity is returned when a valid credential names a user that no longer exists.
	ErrStaleIdentity = errors.New("stale identity")
	// ErrMailDelivery is returned when the verification email could not be sent.
	ErrMailDelivery = errors.New("mail delivery failed")

	// ErrUserNotFound is returned when an account lookup misses.
	ErrUserNotFound = store.ErrUserNotFound
	// ErrAccountExists is returned when the email is already registered.
	ErrAccountExists = store.ErrUserExists
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidInput is returned for empty or unacceptable account fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnchanged is returned when an account change would not change anything.
	ErrUnchanged = errors.New("new value must differ from current value")
	// ErrLoginRateLimited is returned when too many failed logins were recorded.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrVerificationRateLimited is returned when verification emails are requested too often.
	ErrVerificationRateLimited = errors.New("verification rate limited")
	// ErrStoreUnavailable wraps persistence failures.
	ErrStoreUnavailable = tokenstore.ErrStoreUnavailable
	// ErrEngineNotReady is returned when an operation needs a collaborator that was not configured.
	ErrEngineNotReady = errors.New("engine not ready")
)
