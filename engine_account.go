package goSession

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/store"
)

// Register creates an unverified account with role USER. It does not log
// the user in.
func (e *Engine) Register(ctx context.Context, username, email, plain string) (*User, error) {
	username = strings.TrimSpace(username)
	email = store.NormalizeEmail(email)
	if username == "" || !validEmail(email) || plain == "" {
		return nil, ErrInvalidInput
	}

	hash, err := e.hashPassword(plain)
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         RoleUser,
		Verified:     false,
		CreatedAt:    e.now().UTC(),
	}

	if err := e.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrUserExists) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegister, false, "", ErrAccountExists, nil)
			return nil, ErrAccountExists
		}
		e.logger.ErrorContext(ctx, "register: store failure", "error", err)
		return nil, storeErr(err)
	}

	e.metricInc(MetricRegisterSuccess)
	e.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	e.emitAudit(ctx, auditEventRegister, true, user.ID, nil, nil)
	return user, nil
}

// Authenticate checks an email and password pair. Unknown emails and wrong
// passwords both yield ErrInvalidCredentials after the same hashing work.
// When a Redis client was configured, repeated failures per email and per
// client IP yield ErrLoginRateLimited until the window passes.
func (e *Engine) Authenticate(ctx context.Context, email, plain string) (*User, error) {
	email = store.NormalizeEmail(email)
	ip := clientIPFromContext(ctx)

	if err := e.limiter.CheckLogin(ctx, email, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrLoginRateLimited, nil)
			return nil, ErrLoginRateLimited
		}
		// fail open: a limiter outage must not lock everybody out
		e.logger.WarnContext(ctx, "login limiter unavailable", "error", err)
	}

	user, err := e.store.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrUserNotFound) {
			e.logger.ErrorContext(ctx, "login: store failure", "error", err)
			return nil, storeErr(err)
		}
		_, _ = e.passwords.Verify(plain, e.dummyHash)
		e.loginFailed(ctx, email, ip, "")
		return nil, ErrInvalidCredentials
	}

	ok, err := e.passwords.Verify(plain, user.PasswordHash)
	if err != nil {
		e.logger.ErrorContext(ctx, "login: stored hash unreadable", "user_id", user.ID, "error", err)
	}
	if !ok {
		e.loginFailed(ctx, email, ip, user.ID)
		return nil, ErrInvalidCredentials
	}

	if err := e.limiter.ResetLogin(ctx, email); err != nil {
		e.logger.WarnContext(ctx, "login limiter reset failed", "error", err)
	}
	e.upgradeHash(ctx, user, plain)

	e.metricInc(MetricLoginSuccess)
	e.logger.InfoContext(ctx, "credentials accepted", "user_id", user.ID)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, nil, nil)
	return user, nil
}

func (e *Engine) loginFailed(ctx context.Context, email, ip, userID string) {
	if err := e.limiter.IncrementLogin(ctx, email, ip); err != nil {
		e.logger.WarnContext(ctx, "login limiter increment failed", "error", err)
	}
	e.metricInc(MetricLoginFailure)
	e.logger.WarnContext(ctx, "credentials rejected", "user_id", userID, "ip", ip)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, ErrInvalidCredentials, nil)
}

// upgradeHash rewrites a hash made with weaker parameters. Failures are
// logged only; the login already succeeded.
func (e *Engine) upgradeHash(ctx context.Context, user *User, plain string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	needs, err := e.passwords.NeedsRehash(user.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := e.passwords.Hash(plain)
	if err != nil {
		return
	}
	updated := user.Clone()
	updated.PasswordHash = hash
	if err := e.store.UpdateUser(ctx, updated); err != nil {
		e.logger.WarnContext(ctx, "password rehash not saved", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash = hash
}

/*
====================================
ACCOUNT CHANGES
====================================
*/

// ChangePassword replaces the password after checking the current one.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := e.accountUser(ctx, userID)
	if err != nil {
		return err
	}

	if ok, _ := e.passwords.Verify(oldPassword, user.PasswordHash); !ok {
		e.emitAudit(ctx, auditEventPasswordChange, false, user.ID, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}
	if oldPassword == newPassword {
		return ErrUnchanged
	}

	hash, err := e.hashPassword(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := e.store.UpdateUser(ctx, user); err != nil {
		return e.updateErr(ctx, err)
	}

	e.metricInc(MetricPasswordChanged)
	e.logger.InfoContext(ctx, "password changed", "user_id", user.ID)
	e.emitAudit(ctx, auditEventPasswordChange, true, user.ID, nil, nil)
	return nil
}

// ChangeEmail moves the account to newEmail after confirming the password.
// The account becomes unverified until the new address is confirmed.
func (e *Engine) ChangeEmail(ctx context.Context, userID, plain, newEmail string) (*User, error) {
	newEmail = store.NormalizeEmail(newEmail)
	if !validEmail(newEmail) {
		return nil, ErrInvalidInput
	}

	user, err := e.accountUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Email == newEmail {
		return nil, ErrUnchanged
	}
	if ok, _ := e.passwords.Verify(plain, user.PasswordHash); !ok {
		e.emitAudit(ctx, auditEventEmailChange, false, user.ID, ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	user.Email = newEmail
	user.Verified = false
	if err := e.store.UpdateUser(ctx, user); err != nil {
		return nil, e.updateErr(ctx, err)
	}

	e.metricInc(MetricAccountUpdated)
	e.logger.InfoContext(ctx, "email changed, awaiting verification", "user_id", user.ID)
	e.emitAudit(ctx, auditEventEmailChange, true, user.ID, nil, nil)
	return user, nil
}

// ChangeUsername sets a new display name for userID. It must differ from the current one.
func (e *Engine) ChangeUsername(ctx context.Context, userID, username string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidInput
	}

	user, err := e.accountUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Username == username {
		return nil, ErrUnchanged
	}

	user.Username = username
	if err := e.store.UpdateUser(ctx, user); err != nil {
		return nil, e.updateErr(ctx, err)
	}

	e.metricInc(MetricAccountUpdated)
	e.emitAudit(ctx, auditEventUsernameChange, true, user.ID, nil, nil)
	return user, nil
}

func (e *Engine) accountUser(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	user, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storeErr(err)
	}
	return user, nil
}

func (e *Engine) updateErr(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, store.ErrUserExists):
		return ErrAccountExists
	case errors.Is(err, store.ErrUserNotFound):
		return ErrUserNotFound
	default:
		e.logger.ErrorContext(ctx, "account update failed", "error", err)
		return storeErr(err)
	}
}

func (e *Engine) hashPassword(plain string) (string, error) {
	hash, err := e.passwords.Hash(plain)
	if err != nil {
		if errors.Is(err, password.ErrTooShort) {
			return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return "", err
	}
	return hash, nil
}

// validEmail is a shape check only; ownership is proven by verification.
func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}
