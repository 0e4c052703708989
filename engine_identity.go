package goSession

import (
	"context"
	"errors"
	"time"
)

// ResolveIdentity authenticates the request behind jar.
//
// A valid access token is trusted as is and no rotation happens. Otherwise
// the refresh cookie, if any, is consumed and the session rotated. Any
// failure clears both session cookies and yields the anonymous identity
// together with the cause; the returned identity is never nil.
func (e *Engine) ResolveIdentity(ctx context.Context, jar *CookieJar) (*Identity, error) {
	start := time.Now()
	id, err := e.resolve(ctx, jar)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricResolveLatency, time.Since(start))
	}

	if err != nil {
		e.clearSessionCookies(jar)
		if !errors.Is(err, ErrMissingCredential) {
			e.metricInc(MetricIdentityAnonymous)
			e.logger.DebugContext(ctx, "request resolved anonymous", "error", err)
			e.emitAudit(ctx, auditEventIdentityAnonymous, false, "", err, nil)
		}
		return Anonymous(), err
	}
	return id, nil
}

func (e *Engine) resolve(ctx context.Context, jar *CookieJar) (*Identity, error) {
	if token, ok := jar.Get(e.config.Cookie.AccessName); ok && token != "" {
		if userID, valid := e.jwtManager.Verify(token); valid {
			user, err := e.loadUser(ctx, userID)
			if err != nil {
				// no fallback to refresh: the token named a user we cannot load
				return nil, err
			}
			return e.Login(ctx, jar, user, false)
		}
	}

	e.clearAccessCookie(jar)

	raw, ok := jar.Get(e.config.Cookie.RefreshName)
	if !ok || raw == "" {
		return nil, ErrMissingCredential
	}
	return e.Refresh(ctx, jar, raw)
}
