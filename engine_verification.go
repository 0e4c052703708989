package goSession

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/mail"
	"github.com/MrEthical07/goSession/store"
)

// SendVerificationEmail mints a verification token for user and mails the
// confirmation link. If delivery fails the token stays stored and the error
// wraps ErrMailDelivery.
func (e *Engine) SendVerificationEmail(ctx context.Context, user *User) error {
	if user == nil || user.ID == "" || user.Email == "" {
		return ErrInvalidInput
	}
	if e.mailer == nil {
		return fmt.Errorf("%w: no mailer configured", ErrEngineNotReady)
	}

	if err := e.limiter.AllowVerification(ctx, user.ID); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricVerificationRateLimited)
			e.emitAudit(ctx, auditEventVerificationSent, false, user.ID, ErrVerificationRateLimited, nil)
			return ErrVerificationRateLimited
		}
		e.logger.WarnContext(ctx, "verification limiter unavailable", "error", err)
	}

	ttl := e.config.Tokens.VerificationTTL
	raw, err := e.tokens.Create(ctx, store.FamilyVerification, user.ID, ttl, deviceFromContext(ctx))
	if err != nil {
		e.logger.ErrorContext(ctx, "verification token not stored", "user_id", user.ID, "error", err)
		return err
	}

	body, err := mail.VerificationBody(user.Username, e.verificationLink(raw), ttl)
	if err != nil {
		return fmt.Errorf("render verification email: %w", err)
	}

	if err := e.mailer.Send(ctx, user.Email, e.config.Verification.Subject, body); err != nil {
		e.metricInc(MetricVerificationMailFailure)
		e.logger.ErrorContext(ctx, "verification email not sent", "user_id", user.ID, "error", err)
		e.emitAudit(ctx, auditEventVerificationSent, false, user.ID, ErrMailDelivery, nil)
		return fmt.Errorf("%w: %v", ErrMailDelivery, err)
	}

	e.metricInc(MetricVerificationSent)
	e.logger.InfoContext(ctx, "verification email sent", "user_id", user.ID)
	e.emitAudit(ctx, auditEventVerificationSent, true, user.ID, nil, nil)
	return nil
}

// ConsumeVerification redeems a verification secret and marks its owner
// verified. On any failure the account is left untouched.
func (e *Engine) ConsumeVerification(ctx context.Context, raw string) (*User, error) {
	if raw == "" {
		return nil, ErrMissingCredential
	}

	rec, err := e.tokens.Consume(ctx, store.FamilyVerification, raw, true)
	if err != nil {
		e.verificationFailed(ctx, "", err)
		return nil, err
	}

	user, err := e.loadUser(ctx, rec.UserID)
	if err != nil {
		e.verificationFailed(ctx, rec.UserID, err)
		return nil, err
	}

	if !user.Verified {
		verified := user.Clone()
		verified.Verified = true
		if err := e.store.UpdateUser(ctx, verified); err != nil {
			e.verificationFailed(ctx, user.ID, err)
			return nil, e.updateErr(ctx, err)
		}
		user = verified
	}

	e.metricInc(MetricVerificationSuccess)
	e.logger.InfoContext(ctx, "email verified", "user_id", user.ID)
	e.emitAudit(ctx, auditEventVerificationSuccess, true, user.ID, nil, nil)
	return user, nil
}

func (e *Engine) verificationFailed(ctx context.Context, userID string, err error) {
	e.metricInc(MetricVerificationFailure)
	e.logger.WarnContext(ctx, "verification rejected", "user_id", userID, "error", err)
	e.emitAudit(ctx, auditEventVerificationFailure, false, userID, err, nil)
}

// verificationLink builds <BaseURL><Path>?<Param>=<raw>. BaseURL was
// checked by Validate.
func (e *Engine) verificationLink(raw string) string {
	u, err := url.Parse(e.config.Verification.BaseURL)
	if err != nil {
		u = &url.URL{}
	}
	u = u.JoinPath(e.config.Verification.Path)
	q := u.Query()
	q.Set(e.config.Verification.Param, raw)
	u.RawQuery = q.Encode()
	return u.String()
}
