package goSession

import (
	"context"
	"errors"
)

const (
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventRefreshSuccess      = "refresh_success"
	auditEventRefreshFailure      = "refresh_failure"
	auditEventSessionIssued       = "session_issued"
	auditEventLogout              = "logout"
	auditEventRegister            = "register"
	auditEventVerificationSent    = "verification_sent"
	auditEventVerificationSuccess = "verification_success"
	auditEventVerificationFailure = "verification_failure"
	auditEventIdentityAnonymous   = "identity_anonymous"
	auditEventPasswordChange      = "password_change"
	auditEventEmailChange         = "email_change"
	auditEventUsernameChange      = "username_change"
)

// AuditErrorCode is the stable, secret-free error label in AuditEvent.Error.
type AuditErrorCode string

const (
	AuditErrMissingCredential  AuditErrorCode = "missing_credential"
	AuditErrTokenNotFound      AuditErrorCode = "token_not_found"
	AuditErrInvalidSecret      AuditErrorCode = "invalid_secret"
	AuditErrTokenExpired       AuditErrorCode = "token_expired"
	AuditErrStaleIdentity      AuditErrorCode = "stale_identity"
	AuditErrOwnerMismatch      AuditErrorCode = "owner_mismatch"
	AuditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	AuditErrRateLimited        AuditErrorCode = "rate_limited"
	AuditErrDuplicate          AuditErrorCode = "duplicate"
	AuditErrMailDelivery       AuditErrorCode = "mail_delivery"
	AuditErrUnavailable        AuditErrorCode = "backend_unavailable"
	AuditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := AuditErrorCodeOf(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// AuditErrorCodeOf maps err onto an AuditErrorCode, or "" for nil.
func AuditErrorCodeOf(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrMissingCredential):
		return AuditErrMissingCredential
	case errors.Is(err, ErrTokenNotFound):
		return AuditErrTokenNotFound
	case errors.Is(err, ErrInvalidSecret):
		return AuditErrInvalidSecret
	case errors.Is(err, ErrTokenExpired):
		return AuditErrTokenExpired
	case errors.Is(err, ErrTokenOwnerMismatch):
		return AuditErrOwnerMismatch
	case errors.Is(err, ErrStaleIdentity):
		return AuditErrStaleIdentity
	case errors.Is(err, ErrInvalidCredentials):
		return AuditErrInvalidCredentials
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrVerificationRateLimited):
		return AuditErrRateLimited
	case errors.Is(err, ErrAccountExists):
		return AuditErrDuplicate
	case errors.Is(err, ErrMailDelivery):
		return AuditErrMailDelivery
	case errors.Is(err, ErrStoreUnavailable):
		return AuditErrUnavailable
	default:
		return AuditErrInternal
	}
}
