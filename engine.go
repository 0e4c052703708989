package goSession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/store"
	"github.com/MrEthical07/goSession/tokenstore"
)

// Engine runs the session lifecycle: login, rotation, logout, identity
// resolution, registration and email verification. It holds no per-request
// state and is safe for concurrent use.
type Engine struct {
	config     Config
	store      Store
	mailer     Mailer
	logger     *slog.Logger
	passwords  *password.Argon2
	tokens     *tokenstore.Manager
	jwtManager *jwt.Manager
	limiter    *rate.Limiter
	audit      *auditDispatcher
	metrics    *Metrics
	dummyHash  string
	now        func() time.Time
}

// Close stops the audit dispatcher after flushing queued events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events never reached the sink.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

func (e *Engine) metricInc(id MetricID) {
	if e != nil && e.metrics != nil {
		e.metrics.Inc(id)
	}
}

/*
====================================
LOGIN / LOGOUT / REFRESH
====================================
*/

// Login establishes user as the request's identity. With rotate it issues
// a fresh access token and refresh token into jar; without it the existing
// cookies are left as they are.
func (e *Engine) Login(ctx context.Context, jar *CookieJar, user *User, rotate bool) (*Identity, error) {
	if user == nil || user.ID == "" {
		return Anonymous(), fmt.Errorf("%w: user required", ErrInvalidInput)
	}
	if rotate {
		if err := e.issueSession(ctx, jar, user, deviceFromContext(ctx)); err != nil {
			return Anonymous(), err
		}
	}
	return identityFor(user), nil
}

// Logout clears both session cookies and revokes the presented refresh
// token. When a valid access token names a user, a refresh token owned by
// anyone else is left alone. It never fails; problems are logged.
func (e *Engine) Logout(ctx context.Context, jar *CookieJar) {
	raw, ok := jar.Get(e.config.Cookie.RefreshName)
	owner := e.accessTokenOwner(jar)
	e.clearSessionCookies(jar)
	e.metricInc(MetricLogout)

	if !ok || raw == "" {
		e.emitAudit(ctx, auditEventLogout, true, owner, nil, nil)
		return
	}

	rec, err := e.tokens.ConsumeOwned(ctx, store.FamilyRefresh, raw, owner)
	if errors.Is(err, ErrTokenOwnerMismatch) {
		e.logger.WarnContext(ctx, "logout: mismatched refresh token",
			"user_id", owner, "token_owner", rec.UserID)
		e.emitAudit(ctx, auditEventLogout, false, owner, err, nil)
		return
	}
	if err != nil {
		e.logger.WarnContext(ctx, "logout: refresh token not revoked", "error", err)
		e.emitAudit(ctx, auditEventLogout, false, owner, err, nil)
		return
	}

	e.logger.InfoContext(ctx, "user logged out", "user_id", rec.UserID)
	e.emitAudit(ctx, auditEventLogout, true, rec.UserID, nil, nil)
}

// accessTokenOwner returns the user named by a valid access cookie in jar.
func (e *Engine) accessTokenOwner(jar *CookieJar) string {
	token, ok := jar.Get(e.config.Cookie.AccessName)
	if !ok || token == "" {
		return ""
	}
	userID, valid := e.jwtManager.Verify(token)
	if !valid {
		return ""
	}
	return userID
}

// Refresh consumes the refresh secret raw and rotates the session for its
// owner. Each refresh secret is accepted at most once.
func (e *Engine) Refresh(ctx context.Context, jar *CookieJar, raw string) (*Identity, error) {
	if raw == "" {
		return Anonymous(), ErrMissingCredential
	}

	rec, err := e.tokens.Consume(ctx, store.FamilyRefresh, raw, true)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, "", err, nil)
		return Anonymous(), err
	}

	user, err := e.loadUser(ctx, rec.UserID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, rec.UserID, err, nil)
		return Anonymous(), err
	}

	meta := deviceFromContext(ctx)
	if e.config.Tokens.PreserveDeviceMetadata {
		meta = tokenstore.Metadata{UserAgent: rec.UserAgent, IPAddress: rec.IPAddress}
	}
	if err := e.issueSession(ctx, jar, user, meta); err != nil {
		e.metricInc(MetricRefreshFailure)
		return Anonymous(), err
	}

	e.metricInc(MetricRefreshSuccess)
	e.logger.InfoContext(ctx, "session refreshed", "user_id", user.ID)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, user.ID, nil, nil)
	return identityFor(user), nil
}

func (e *Engine) issueSession(ctx context.Context, jar *CookieJar, user *User, meta tokenstore.Metadata) error {
	access, err := e.jwtManager.Sign(user.ID)
	if err != nil {
		return fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := e.tokens.Create(ctx, store.FamilyRefresh, user.ID, e.config.Tokens.RefreshTTL, meta)
	if err != nil {
		e.logger.ErrorContext(ctx, "refresh token not stored", "user_id", user.ID, "error", err)
		return err
	}

	e.setSessionCookies(jar, access, refresh)
	e.metricInc(MetricSessionIssued)
	e.emitAudit(ctx, auditEventSessionIssued, true, user.ID, nil, nil)
	return nil
}

// loadUser maps a missing owner to ErrStaleIdentity.
func (e *Engine) loadUser(ctx context.Context, id string) (*User, error) {
	user, err := e.store.GetUserByID(ctx, id)
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, store.ErrUserNotFound):
		e.metricInc(MetricStaleIdentity)
		return nil, ErrStaleIdentity
	default:
		return nil, storeErr(err)
	}
}

func storeErr(err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
